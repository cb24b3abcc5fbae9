package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/manthanabc/EDAI-5/internal/model"
)

var caseFlags struct {
	file   string
	caseID string
}

var caseCmd = &cobra.Command{
	Use:   "case",
	Short: "Import and inspect cases",
}

var caseImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a case from a YAML file",
	Long: `Import a case from a YAML file of the form:

  title: Undelivered order
  claimant: I paid for a laptop that never arrived.
  respondent: The parcel was handed to the courier.
  documents:
    - url: /uploads/receipt.png
      name: receipt.png
      type: image/png`,
	RunE: runCaseImport,
}

var caseShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a case as JSON",
	RunE:  runCaseShow,
}

func init() {
	caseImportCmd.Flags().StringVarP(&caseFlags.file, "file", "f", "", "Case YAML file (required)")
	_ = caseImportCmd.MarkFlagRequired("file")

	caseShowCmd.Flags().StringVar(&caseFlags.caseID, "case-id", "", "Case UUID (required)")
	_ = caseShowCmd.MarkFlagRequired("case-id")

	caseCmd.AddCommand(caseImportCmd)
	caseCmd.AddCommand(caseShowCmd)
}

func loadCaseFile(path string) (model.Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Case{}, fmt.Errorf("read case file: %w", err)
	}
	var c model.Case
	if err := yaml.Unmarshal(data, &c); err != nil {
		return model.Case{}, fmt.Errorf("parse case file: %w", err)
	}
	return c, nil
}

func runCaseImport(cmd *cobra.Command, _ []string) error {
	c, err := loadCaseFile(caseFlags.file)
	if err != nil {
		return err
	}
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	created, err := app.Cases().ImportCase(cmd.Context(), c)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported case %s (%d documents)\n", created.ID, len(created.Documents))
	return nil
}

func runCaseShow(cmd *cobra.Command, _ []string) error {
	id, err := parseCaseID(caseFlags.caseID)
	if err != nil {
		return err
	}
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	c, err := app.Cases().Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), c)
}
