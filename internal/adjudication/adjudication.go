// Package adjudication runs the four-stage AI adjudication pipeline:
// normalize the parties' claims, retrieve rule context, generate a verdict,
// and audit that verdict for bias with a second model.
//
// Adjudicate never returns an error. Every stage degrades to a well-typed
// fallback on failure; only the verdict stage's failure is visible in the
// result, as a VerdictResult with Failed set. A missing provider credential
// stops the pipeline at the first model call.
package adjudication

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/manthanabc/EDAI-5/internal/extract"
	"github.com/manthanabc/EDAI-5/internal/llm"
	"github.com/manthanabc/EDAI-5/internal/model"
	"github.com/manthanabc/EDAI-5/internal/rag"
	"github.com/manthanabc/EDAI-5/internal/telemetry"
)

// DefaultModel is used for a judge role that neither the request nor the
// provider configuration names.
const DefaultModel = "google/gemini-2.0-flash-lite-preview"

// DefaultConfidence is attached to every successfully parsed verdict.
const DefaultConfidence = 0.9

// Defaults for Config fields left zero.
const (
	DefaultTemperature  = 0.7
	DefaultStageTimeout = 60 * time.Second
)

// Fallback texts surfaced in failed verdicts and skipped audits.
const (
	ContentConfigurationRequired   = "Verdict: Configuration Required"
	ReasoningConfigurationRequired = "The AI Arbitrator is not configured. Please ask an Admin to set the API key in the Settings page."
	ContentServiceUnavailable      = "Verdict: Service Unavailable"
	ContentRefusal                 = "Verdict: AI Refusal"
	ReasoningRefusal               = "The AI model refused to process this case."
	ContentParseError              = "Verdict: Parsing Error"
	ReasoningParseError            = "The AI generated a response that could not be parsed."
	BiasSkipped                    = "Bias check skipped due to service unavailability."
)

// Pipeline stages, used as span and metric attributes.
const (
	StageNormalize = "normalize"
	StageRetrieve  = "retrieve"
	StageVerdict   = "verdict"
	StageBias      = "bias_check"
)

// Retriever supplies reference passages for a query. *rag.Index implements it.
type Retriever interface {
	Retrieve(ctx context.Context, query string) string
}

// Encoder turns evidence documents into inline model parts.
// *evidence.Encoder implements it.
type Encoder interface {
	Encode(ctx context.Context, docs []model.EvidenceDocument) []llm.ContentPart
}

// Config holds the pipeline's fixed dependencies and tuning.
type Config struct {
	Gateways  llm.Selector
	Encoder   Encoder
	Retriever Retriever

	// GuidelinesPath names an optional static rules document placed ahead of
	// the retrieved passages. It is re-read on every adjudication.
	GuidelinesPath string
	Temperature    float64
	StageTimeout   time.Duration
}

// Options are per-request model overrides.
type Options struct {
	JudgeModel   string
	CoJudgeModel string
}

// Result is the outcome of one adjudication.
type Result struct {
	Verdict      model.VerdictResult
	Analysis     model.NormalizedAnalysis
	Disposition  model.Disposition
	JudgeModel   string
	CoJudgeModel string
}

// Service runs adjudications. It is safe for concurrent use.
type Service struct {
	cfg    Config
	logger *slog.Logger
	tracer trace.Tracer

	stageDuration metric.Float64Histogram
	outcomes      metric.Int64Counter
}

// New creates a Service.
func New(cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Temperature < 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = DefaultStageTimeout
	}
	meter := telemetry.Meter("edai/adjudication")
	stageDur, _ := meter.Float64Histogram("edai.adjudication.stage.duration",
		metric.WithDescription("Time spent in each adjudication stage (ms)"),
		metric.WithUnit("ms"),
	)
	outcomes, _ := meter.Int64Counter("edai.adjudication.outcomes",
		metric.WithDescription("Adjudications by verdict outcome"),
	)
	return &Service{
		cfg:           cfg,
		logger:        logger,
		tracer:        otel.Tracer("edai/adjudication"),
		stageDuration: stageDur,
		outcomes:      outcomes,
	}
}

// Models returns the judge and co-judge models for one call. Request
// overrides win over the provider configuration, which wins over DefaultModel.
func Models(cfg model.ProviderConfig, opts Options) (judge, coJudge string) {
	return firstNonEmpty(opts.JudgeModel, cfg.JudgeModel, DefaultModel),
		firstNonEmpty(opts.CoJudgeModel, cfg.CoJudgeModel, DefaultModel)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// Adjudicate runs the pipeline for snap using the provider configuration cfg.
func (s *Service) Adjudicate(ctx context.Context, snap model.CaseSnapshot, cfg model.ProviderConfig, opts Options) Result {
	judge, coJudge := Models(cfg, opts)
	ctx, span := s.tracer.Start(ctx, "adjudication.run", trace.WithAttributes(
		attribute.String("edai.case_id", snap.ID.String()),
		attribute.String("edai.judge_model", judge),
		attribute.String("edai.co_judge_model", coJudge),
	))
	defer span.End()

	res := Result{JudgeModel: judge, CoJudgeModel: coJudge, Analysis: emptyAnalysis()}
	gw := s.cfg.Gateways.Select(cfg.APIKey)
	log := s.logger.With("case_id", snap.ID, "judge_model", judge, "co_judge_model", coJudge)

	finish := func(v model.VerdictResult) Result {
		res.Verdict = v
		res.Disposition = model.DispositionFor(v)
		span.SetAttributes(
			attribute.String("edai.outcome", string(v.Outcome)),
			attribute.String("edai.disposition", string(res.Disposition)),
		)
		s.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(v.Outcome))))
		log.Info("adjudication: complete",
			"outcome", v.Outcome,
			"disposition", res.Disposition,
			"passed_bias_check", v.PassedBiasCheck,
		)
		return res
	}

	// 1. Normalize both parties' statements. Evidence images are encoded
	// once and reused by the verdict stage.
	images := s.encode(ctx, snap)
	analysis, err := s.normalize(ctx, gw, judge, snap, images)
	if errors.Is(err, llm.ErrConfigurationMissing) {
		return finish(configurationRequired())
	}
	if err != nil {
		log.Warn("adjudication: normalization failed, continuing with empty analysis", "error", err)
	} else {
		res.Analysis = analysis
	}

	// 2. Assemble the rule context.
	ruleContext := s.retrieve(ctx, snap)

	// 3. Generate the verdict.
	verdict, err := s.verdict(ctx, gw, judge, snap, res.Analysis, ruleContext, images)
	if errors.Is(err, llm.ErrConfigurationMissing) {
		return finish(configurationRequired())
	}
	if verdict.Failed {
		log.Warn("adjudication: verdict stage failed", "outcome", verdict.Outcome, "error", err)
	}

	// 4. Audit the verdict with the co-judge.
	passed, biasReasoning, err := s.biasCheck(ctx, gw, coJudge, verdict)
	if errors.Is(err, llm.ErrConfigurationMissing) {
		return finish(configurationRequired())
	}
	if err != nil {
		log.Warn("adjudication: bias check unavailable, passing by default", "error", err)
	}
	verdict.PassedBiasCheck = passed
	verdict.BiasReasoning = biasReasoning
	return finish(verdict)
}

func emptyAnalysis() model.NormalizedAnalysis {
	return model.NormalizedAnalysis{
		ClaimantArguments:   []model.Argument{},
		RespondentArguments: []model.Argument{},
	}
}

func configurationRequired() model.VerdictResult {
	return model.VerdictResult{
		Content:   ContentConfigurationRequired,
		Reasoning: ReasoningConfigurationRequired,
		Citations: []string{},
		Failed:    true,
		Outcome:   model.OutcomeConfigurationMissing,
	}
}

func failedVerdict(outcome model.VerdictOutcome, content, reasoning string) model.VerdictResult {
	return model.VerdictResult{
		Content:         content,
		Reasoning:       reasoning,
		Citations:       []string{},
		PassedBiasCheck: true,
		Failed:          true,
		Outcome:         outcome,
	}
}

// stage runs fn under the per-stage timeout and records its duration.
func (s *Service) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "adjudication."+name)
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StageTimeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.stageDuration.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(
		attribute.String("stage", name),
		attribute.String("status", status),
	))
	return err
}

func (s *Service) encode(ctx context.Context, snap model.CaseSnapshot) []llm.ContentPart {
	if s.cfg.Encoder == nil {
		return nil
	}
	return s.cfg.Encoder.Encode(ctx, snap.Documents)
}

func (s *Service) normalize(ctx context.Context, gw llm.Gateway, judge string, snap model.CaseSnapshot, images []llm.ContentPart) (model.NormalizedAnalysis, error) {
	var analysis model.NormalizedAnalysis
	err := s.stage(ctx, StageNormalize, func(ctx context.Context) error {
		text, err := gw.Complete(ctx, judge, []llm.Message{
			llm.SystemMessage(normalizeSystem),
			llm.UserMessage(normalizePrompt(snap), images...),
		}, s.cfg.Temperature)
		if err != nil {
			return err
		}
		return extract.DecodeValid(text, analysisSchema, &analysis)
	})
	if err != nil {
		return model.NormalizedAnalysis{}, err
	}
	if analysis.ClaimantArguments == nil {
		analysis.ClaimantArguments = []model.Argument{}
	}
	if analysis.RespondentArguments == nil {
		analysis.RespondentArguments = []model.Argument{}
	}
	return analysis, nil
}

// retrieve builds the judge's rule context. It never fails: when neither
// the guidelines nor the reference passages are available the fixed
// rag.ContextUnavailable text is used.
func (s *Service) retrieve(ctx context.Context, snap model.CaseSnapshot) string {
	var out string
	_ = s.stage(ctx, StageRetrieve, func(ctx context.Context) error {
		var guidelines string
		if s.cfg.GuidelinesPath != "" {
			g, err := rag.LoadGuidelines(s.cfg.GuidelinesPath)
			if err != nil {
				s.logger.Warn("adjudication: guidelines unavailable", "path", s.cfg.GuidelinesPath, "error", err)
				out = rag.ContextUnavailable
				return err
			}
			guidelines = g
		}
		var retrieved string
		if s.cfg.Retriever != nil {
			retrieved = s.cfg.Retriever.Retrieve(ctx, retrievalQuery(snap))
		}
		if guidelines == "" && retrieved == "" {
			out = rag.ContextUnavailable
			return nil
		}
		out = rag.BuildContext(guidelines, retrieved)
		return nil
	})
	return out
}

type verdictPayload struct {
	Content   string   `json:"content"`
	Reasoning string   `json:"reasoning"`
	Citations []string `json:"citations"`
}

// verdict never returns a zero result: every failure is mapped onto a failed
// VerdictResult. The error is returned alongside for logging and so the
// caller can detect a missing configuration.
func (s *Service) verdict(ctx context.Context, gw llm.Gateway, judge string, snap model.CaseSnapshot, analysis model.NormalizedAnalysis, ruleContext string, images []llm.ContentPart) (model.VerdictResult, error) {
	var (
		text    string
		payload verdictPayload
		callErr error
	)
	parseErr := s.stage(ctx, StageVerdict, func(ctx context.Context) error {
		text, callErr = gw.Complete(ctx, judge, []llm.Message{
			llm.SystemMessage(fmt.Sprintf(verdictSystem, ruleContext)),
			llm.UserMessage(verdictPrompt(snap, analysis), images...),
		}, s.cfg.Temperature)
		if callErr != nil {
			return callErr
		}
		if err := extract.DecodeValid(text, verdictSchema, &payload); err != nil {
			return err
		}
		if strings.TrimSpace(payload.Content) == "" {
			return &extract.ParseError{Err: errors.New("verdict content is empty")}
		}
		return nil
	})

	switch {
	case callErr != nil && errors.Is(callErr, llm.ErrConfigurationMissing):
		return configurationRequired(), callErr
	case callErr != nil:
		return failedVerdict(model.OutcomeUnavailable, ContentServiceUnavailable,
			"AI Service is currently unavailable. Error details: "+callErr.Error()), callErr
	case parseErr != nil && extract.IsRefusal(text):
		return failedVerdict(model.OutcomeRefusal, ContentRefusal, ReasoningRefusal), parseErr
	case parseErr != nil:
		return failedVerdict(model.OutcomeParseError, ContentParseError, ReasoningParseError), parseErr
	}

	citations := payload.Citations
	if citations == nil {
		citations = []string{}
	}
	return model.VerdictResult{
		Content:         payload.Content,
		Reasoning:       payload.Reasoning,
		Citations:       citations,
		ConfidenceScore: DefaultConfidence,
		Outcome:         model.OutcomeOK,
	}, nil
}

type biasPayload struct {
	Passed    *bool  `json:"passed"`
	Reasoning string `json:"reasoning"`
}

// biasCheck audits v with the co-judge. Any failure passes the verdict with
// the BiasSkipped reasoning and returns the cause.
func (s *Service) biasCheck(ctx context.Context, gw llm.Gateway, coJudge string, v model.VerdictResult) (bool, string, error) {
	var payload biasPayload
	err := s.stage(ctx, StageBias, func(ctx context.Context) error {
		text, err := gw.Complete(ctx, coJudge, []llm.Message{
			llm.UserMessage(fmt.Sprintf(biasPrompt, v.Content, v.Reasoning)),
		}, s.cfg.Temperature)
		if err != nil {
			return err
		}
		return extract.DecodeValid(text, biasSchema, &payload)
	})
	if err != nil || payload.Passed == nil {
		if err == nil {
			err = &extract.ParseError{Err: errors.New("bias check result has no passed field")}
		}
		return true, BiasSkipped, err
	}
	return *payload.Passed, payload.Reasoning, nil
}
