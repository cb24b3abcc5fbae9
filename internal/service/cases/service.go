// Package cases owns the case lifecycle around an adjudication: it loads the
// case, resolves the provider configuration, runs the pipeline, and records
// the verdict, the new status, and the audit entry.
//
// Both the HTTP API and the MCP server delegate to this service.
package cases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/manthanabc/EDAI-5/internal/adjudication"
	"github.com/manthanabc/EDAI-5/internal/integrity"
	"github.com/manthanabc/EDAI-5/internal/model"
	"github.com/manthanabc/EDAI-5/internal/storage"
)

// DefaultActor is recorded in the audit log when the caller is anonymous.
const DefaultActor = "AI_JUDGE"

var (
	// ErrAdjudicationInProgress is returned when the case already has an
	// adjudication running in this process.
	ErrAdjudicationInProgress = errors.New("cases: adjudication already in progress for this case")

	// ErrInvalidCase wraps validation failures from ImportCase.
	ErrInvalidCase = errors.New("cases: invalid case")
)

// ConfigResolver returns the provider configuration for one adjudication.
type ConfigResolver interface {
	Resolve(ctx context.Context) model.ProviderConfig
}

// Pipeline runs one adjudication. *adjudication.Service implements it.
type Pipeline interface {
	Adjudicate(ctx context.Context, snap model.CaseSnapshot, cfg model.ProviderConfig, opts adjudication.Options) adjudication.Result
}

// Service coordinates adjudications with persistence.
type Service struct {
	store    storage.Store
	resolver ConfigResolver
	pipeline Pipeline
	locks    *adjudication.CaseLocks
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Service. locks may be nil, in which case a private set is used.
func New(store storage.Store, resolver ConfigResolver, pipeline Pipeline, locks *adjudication.CaseLocks, logger *slog.Logger) *Service {
	if locks == nil {
		locks = adjudication.NewCaseLocks()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		resolver: resolver,
		pipeline: pipeline,
		locks:    locks,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// AdjudicateInput identifies the case and the caller.
type AdjudicateInput struct {
	CaseID uuid.UUID
	Actor  string
	adjudication.Options
}

// Outcome is the result of Adjudicate. Verdict is nil when the verdict
// stage failed and nothing was persisted.
type Outcome struct {
	Result  adjudication.Result
	Verdict *model.Verdict
	Status  model.CaseStatus
}

// Adjudicate runs the pipeline for one case and persists a successful verdict.
// A failed verdict is returned without being stored and without changing the
// case status.
func (s *Service) Adjudicate(ctx context.Context, in AdjudicateInput) (Outcome, error) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("edai.case_id", in.CaseID.String()))

	// 1. One adjudication per case at a time.
	release, ok := s.locks.TryAcquire(in.CaseID)
	if !ok {
		return Outcome{}, ErrAdjudicationInProgress
	}
	defer release()

	// 2. Load the case and the current provider configuration.
	c, err := s.store.GetCase(ctx, in.CaseID)
	if err != nil {
		return Outcome{}, fmt.Errorf("cases: load %s: %w", in.CaseID, err)
	}
	cfg := s.resolver.Resolve(ctx)

	// 3. Run the pipeline.
	res := s.pipeline.Adjudicate(ctx, c.Snapshot(), cfg, in.Options)
	out := Outcome{Result: res, Status: c.Status}
	if res.Verdict.Failed {
		s.logger.Warn("cases: verdict failed, case left unchanged",
			"case_id", in.CaseID, "outcome", res.Verdict.Outcome, "status", c.Status)
		return out, nil
	}

	// 4. Persist verdict, analysis, status, and audit entry together.
	v := model.Verdict{
		ID:              uuid.New(),
		CaseID:          in.CaseID,
		Content:         res.Verdict.Content,
		Reasoning:       res.Verdict.Reasoning,
		Citations:       res.Verdict.Citations,
		Confidence:      res.Verdict.ConfidenceScore,
		PassedBiasCheck: res.Verdict.PassedBiasCheck,
		BiasReasoning:   res.Verdict.BiasReasoning,
		JudgeModel:      res.JudgeModel,
		CoJudgeModel:    res.CoJudgeModel,
		CreatedAt:       s.now(),
	}
	if v.ContentHash, err = integrity.VerdictHash(v); err != nil {
		return Outcome{}, fmt.Errorf("cases: hash verdict: %w", err)
	}
	status := res.Disposition.Status(c.Status)
	rec := model.AdjudicationRecord{
		Verdict:  v,
		Analysis: res.Analysis,
		Status:   status,
		Audit:    auditEntry(in.CaseID, actorOrDefault(in.Actor), res),
	}
	if err := s.store.RecordAdjudication(ctx, rec); err != nil {
		return Outcome{}, fmt.Errorf("cases: record adjudication: %w", err)
	}

	s.logger.Info("cases: verdict recorded",
		"case_id", in.CaseID, "verdict_id", v.ID, "status", status, "passed_bias_check", v.PassedBiasCheck)
	out.Verdict = &v
	out.Status = status
	return out, nil
}

func actorOrDefault(actor string) string {
	if actor == "" {
		return DefaultActor
	}
	return actor
}

func auditEntry(caseID uuid.UUID, actor string, res adjudication.Result) model.AuditEntry {
	if res.Disposition == model.DispositionEscalated {
		return model.AuditEntry{
			CaseID:  caseID,
			Action:  model.AuditActionCaseEscalated,
			Actor:   actor,
			Details: "AI Verdict failed bias check: " + res.Verdict.BiasReasoning,
		}
	}
	return model.AuditEntry{
		CaseID:  caseID,
		Action:  model.AuditActionVerdictGenerated,
		Actor:   actor,
		Details: "AI generated a verdict. Bias check passed. Verdict issued.",
	}
}

// History is a case's verdicts, newest first, with the Merkle root over
// their content hashes.
type History struct {
	Verdicts  []model.Verdict `json:"verdicts"`
	ChainRoot string          `json:"chain_root"`
	// Tampered lists verdicts whose stored hash no longer matches their content.
	Tampered []uuid.UUID `json:"tampered,omitempty"`
}

// Verdicts returns the verdict history of a case.
func (s *Service) Verdicts(ctx context.Context, caseID uuid.UUID) (History, error) {
	if _, err := s.store.GetCase(ctx, caseID); err != nil {
		return History{}, fmt.Errorf("cases: load %s: %w", caseID, err)
	}
	vs, err := s.store.ListVerdicts(ctx, caseID)
	if err != nil {
		return History{}, fmt.Errorf("cases: list verdicts: %w", err)
	}
	if vs == nil {
		vs = []model.Verdict{}
	}
	h := History{Verdicts: vs, ChainRoot: integrity.VerdictChainRoot(vs)}
	for _, v := range vs {
		if !integrity.VerifyVerdictHash(v) {
			h.Tampered = append(h.Tampered, v.ID)
		}
	}
	if len(h.Tampered) > 0 {
		s.logger.Error("cases: verdict hash mismatch", "case_id", caseID, "count", len(h.Tampered))
	}
	return h, nil
}

// AuditTrail returns the audit entries of a case, oldest first.
func (s *Service) AuditTrail(ctx context.Context, caseID uuid.UUID) ([]model.AuditEntry, error) {
	if _, err := s.store.GetCase(ctx, caseID); err != nil {
		return nil, fmt.Errorf("cases: load %s: %w", caseID, err)
	}
	entries, err := s.store.ListAuditEntries(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("cases: list audit entries: %w", err)
	}
	if entries == nil {
		entries = []model.AuditEntry{}
	}
	return entries, nil
}

// Get returns one case.
func (s *Service) Get(ctx context.Context, caseID uuid.UUID) (model.Case, error) {
	return s.store.GetCase(ctx, caseID)
}

// List returns the most recent cases.
func (s *Service) List(ctx context.Context, limit int) ([]model.Case, error) {
	return s.store.ListCases(ctx, limit)
}

// ImportCase validates and stores a new case in the OPEN state.
func (s *Service) ImportCase(ctx context.Context, c model.Case) (model.Case, error) {
	if err := model.ValidateCase(c); err != nil {
		return model.Case{}, fmt.Errorf("%w: %v", ErrInvalidCase, err)
	}
	c.ID = uuid.Nil
	c.Status = model.CaseStatusOpen
	c.Analysis = nil
	created, err := s.store.CreateCase(ctx, c)
	if err != nil {
		return model.Case{}, fmt.Errorf("cases: create: %w", err)
	}
	s.logger.Info("cases: imported", "case_id", created.ID, "documents", len(created.Documents))
	return created, nil
}

// Response is the wire shape shared by the HTTP and MCP surfaces.
func (o Outcome) Response() model.AdjudicateResponse {
	return model.AdjudicateResponse{
		Verdict:     o.Verdict,
		Result:      o.Result.Verdict,
		Analysis:    o.Result.Analysis,
		Status:      o.Status,
		Disposition: o.Result.Disposition,
	}
}
