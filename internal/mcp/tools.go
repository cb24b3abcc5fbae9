package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/manthanabc/EDAI-5/internal/adjudication"
	"github.com/manthanabc/EDAI-5/internal/ctxutil"
	"github.com/manthanabc/EDAI-5/internal/service/cases"
	"github.com/manthanabc/EDAI-5/internal/storage"
)

func (s *Server) registerTools() {
	// edai_adjudicate: run the full pipeline for one case.
	s.mcpServer.AddTool(
		mcplib.NewTool("edai_adjudicate",
			mcplib.WithDescription(`Run AI adjudication for a dispute case.

The judge model restates both parties' arguments, reads the arbitration
rules relevant to the dispute, and issues a verdict with reasoning and rule
citations. A second co-judge model then audits the verdict for bias and
logical fallacies.

WHAT YOU GET BACK:
- result: the verdict, reasoning, citations, and bias audit
- analysis: the normalized claimant and respondent arguments
- status: the case status afterwards (RESOLVED, or ESCALATED when the bias audit failed)

A failed verdict (missing configuration, provider outage, refusal, or
unparseable output) is returned as an error result and leaves the case unchanged.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(true),
			mcplib.WithString("case_id",
				mcplib.Description("UUID of the case to adjudicate"),
				mcplib.Required(),
			),
			mcplib.WithString("judge_model",
				mcplib.Description("Optional model identifier for the judge, e.g. google/gemini-2.0-flash-lite-preview"),
			),
			mcplib.WithString("co_judge_model",
				mcplib.Description("Optional model identifier for the bias-auditing co-judge"),
			),
		),
		s.handleAdjudicate,
	)

	// edai_case_verdicts: verdict history with integrity check.
	s.mcpServer.AddTool(
		mcplib.NewTool("edai_case_verdicts",
			mcplib.WithDescription(`List the recorded AI verdicts for a case, newest first.

Each verdict carries a content hash. The response includes the Merkle root
over all hashes and lists any verdict whose stored hash no longer matches
its content.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("case_id",
				mcplib.Description("UUID of the case"),
				mcplib.Required(),
			),
		),
		s.handleCaseVerdicts,
	)

	// edai_retrieve_context: query the arbitration reference document.
	if s.retriever != nil {
		s.mcpServer.AddTool(
			mcplib.NewTool("edai_retrieve_context",
				mcplib.WithDescription(`Return the arbitration reference passages most relevant to a query.

This is the same retrieval the judge sees when deciding a case. Passages are
ranked by keyword overlap; when nothing matches, the document's opening
passages are returned.`),
				mcplib.WithReadOnlyHintAnnotation(true),
				mcplib.WithIdempotentHintAnnotation(true),
				mcplib.WithOpenWorldHintAnnotation(false),
				mcplib.WithString("query",
					mcplib.Description("Free-text description of the dispute or rule you are looking for"),
					mcplib.Required(),
				),
			),
			s.handleRetrieveContext,
		)
	}
}

func parseCaseID(request mcplib.CallToolRequest) (uuid.UUID, error) {
	raw := strings.TrimSpace(request.GetString("case_id", ""))
	if raw == "" {
		return uuid.Nil, errors.New("case_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("case_id must be a UUID: %v", err)
	}
	return id, nil
}

func caseError(id uuid.UUID, err error) *mcplib.CallToolResult {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return errorResult(fmt.Sprintf("case %s not found", id))
	case errors.Is(err, cases.ErrAdjudicationInProgress):
		return errorResult(fmt.Sprintf("case %s is already being adjudicated", id))
	default:
		return errorResult(fmt.Sprintf("case %s: %v", id, err))
	}
}

func (s *Server) handleAdjudicate(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id, err := parseCaseID(request)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	out, err := s.cases.Adjudicate(ctx, cases.AdjudicateInput{
		CaseID: id,
		Actor:  ctxutil.ActorFromContext(ctx, Actor),
		Options: adjudication.Options{
			JudgeModel:   request.GetString("judge_model", ""),
			CoJudgeModel: request.GetString("co_judge_model", ""),
		},
	})
	if err != nil {
		return caseError(id, err), nil
	}

	data, _ := json.MarshalIndent(out.Response(), "", "  ")
	res := textResult(string(data))
	res.IsError = out.Result.Verdict.Failed
	return res, nil
}

func (s *Server) handleCaseVerdicts(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id, err := parseCaseID(request)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	h, err := s.cases.Verdicts(ctx, id)
	if err != nil {
		return caseError(id, err), nil
	}
	data, _ := json.MarshalIndent(h, "", "  ")
	return textResult(string(data)), nil
}

func (s *Server) handleRetrieveContext(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	query := strings.TrimSpace(request.GetString("query", ""))
	if query == "" {
		return errorResult("query is required"), nil
	}
	text := s.retriever.Retrieve(ctx, query)
	if text == "" {
		return errorResult("the arbitration reference document is unavailable"), nil
	}
	return textResult(text), nil
}
