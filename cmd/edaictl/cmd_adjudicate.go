package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/manthanabc/EDAI-5/internal/adjudication"
	"github.com/manthanabc/EDAI-5/internal/service/cases"
)

var adjudicateFlags struct {
	caseID       string
	judgeModel   string
	coJudgeModel string
	actor        string
}

var adjudicateCmd = &cobra.Command{
	Use:   "adjudicate",
	Short: "Run the adjudication pipeline for one case",
	RunE:  runAdjudicate,
}

var verdictsCmd = &cobra.Command{
	Use:   "verdicts",
	Short: "List a case's verdicts and check their hashes",
	RunE:  runVerdicts,
}

func init() {
	f := adjudicateCmd.Flags()
	f.StringVar(&adjudicateFlags.caseID, "case-id", "", "Case UUID (required)")
	f.StringVar(&adjudicateFlags.judgeModel, "judge-model", "", "Judge model override")
	f.StringVar(&adjudicateFlags.coJudgeModel, "co-judge-model", "", "Co-judge model override")
	f.StringVar(&adjudicateFlags.actor, "actor", cases.DefaultActor, "Actor recorded in the audit log")
	_ = adjudicateCmd.MarkFlagRequired("case-id")

	verdictsCmd.Flags().StringVar(&adjudicateFlags.caseID, "case-id", "", "Case UUID (required)")
	_ = verdictsCmd.MarkFlagRequired("case-id")
}

func runAdjudicate(cmd *cobra.Command, _ []string) error {
	id, err := parseCaseID(adjudicateFlags.caseID)
	if err != nil {
		return err
	}
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	out, err := app.Cases().Adjudicate(cmd.Context(), cases.AdjudicateInput{
		CaseID: id,
		Actor:  adjudicateFlags.actor,
		Options: adjudication.Options{
			JudgeModel:   adjudicateFlags.judgeModel,
			CoJudgeModel: adjudicateFlags.coJudgeModel,
		},
	})
	if err != nil {
		return err
	}
	if err := printJSON(cmd.OutOrStdout(), out.Response()); err != nil {
		return err
	}
	if out.Result.Verdict.Failed {
		return fmt.Errorf("verdict failed (%s); case left %s", out.Result.Verdict.Outcome, out.Status)
	}
	return nil
}

func runVerdicts(cmd *cobra.Command, _ []string) error {
	id, err := parseCaseID(adjudicateFlags.caseID)
	if err != nil {
		return err
	}
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	hist, err := app.Cases().Verdicts(cmd.Context(), id)
	if err != nil {
		return err
	}
	if err := printJSON(cmd.OutOrStdout(), hist); err != nil {
		return err
	}
	if len(hist.Tampered) > 0 {
		return fmt.Errorf("%d verdict(s) failed hash verification", len(hist.Tampered))
	}
	return nil
}
