package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Argument is one normalized claim and the evidence the model tied to it.
type Argument struct {
	Claim    string `json:"claim"`
	Evidence string `json:"evidence"`
}

// NormalizedAnalysis is the structured restatement of both parties' positions.
type NormalizedAnalysis struct {
	ClaimantArguments   []Argument `json:"claimantArguments"`
	RespondentArguments []Argument `json:"respondentArguments"`
}

// MarshalJSON renders nil argument lists as empty arrays.
func (a NormalizedAnalysis) MarshalJSON() ([]byte, error) {
	type alias NormalizedAnalysis
	out := alias(a)
	if out.ClaimantArguments == nil {
		out.ClaimantArguments = []Argument{}
	}
	if out.RespondentArguments == nil {
		out.RespondentArguments = []Argument{}
	}
	return json.Marshal(out)
}

// VerdictOutcome classifies how the verdict stage ended.
type VerdictOutcome string

const (
	OutcomeOK                   VerdictOutcome = "ok"
	OutcomeRefusal              VerdictOutcome = "refusal"
	OutcomeParseError           VerdictOutcome = "parse_error"
	OutcomeConfigurationMissing VerdictOutcome = "configuration_missing"
	OutcomeUnavailable          VerdictOutcome = "unavailable"
)

// VerdictResult is the terminal artifact of one adjudication call.
type VerdictResult struct {
	Content         string         `json:"content"`
	Reasoning       string         `json:"reasoning"`
	Citations       []string       `json:"citations"`
	ConfidenceScore float64        `json:"confidence"`
	PassedBiasCheck bool           `json:"passedBiasCheck"`
	BiasReasoning   string         `json:"biasCheckReasoning,omitempty"`
	Failed          bool           `json:"failed"`
	Outcome         VerdictOutcome `json:"outcome"`
}

// Disposition is the routing decision derived from a verdict.
type Disposition string

const (
	DispositionResolved  Disposition = "resolved"
	DispositionEscalated Disposition = "escalated"
	// DispositionNeedsReview leaves the case status untouched.
	DispositionNeedsReview Disposition = "needs_review"
)

// DispositionFor applies the routing rule: a failed verdict changes nothing,
// a failed bias audit escalates to a human, anything else resolves.
func DispositionFor(v VerdictResult) Disposition {
	switch {
	case v.Failed:
		return DispositionNeedsReview
	case !v.PassedBiasCheck:
		return DispositionEscalated
	default:
		return DispositionResolved
	}
}

// Status returns the case status that follows this disposition.
func (d Disposition) Status(current CaseStatus) CaseStatus {
	switch d {
	case DispositionResolved:
		return CaseStatusResolved
	case DispositionEscalated:
		return CaseStatusEscalated
	default:
		return current
	}
}

// Verdict is a persisted AI verdict.
type Verdict struct {
	ID              uuid.UUID `json:"id"`
	CaseID          uuid.UUID `json:"case_id"`
	Content         string    `json:"content"`
	Reasoning       string    `json:"reasoning"`
	Citations       []string  `json:"citations"`
	Confidence      float64   `json:"confidence"`
	PassedBiasCheck bool      `json:"passed_bias_check"`
	BiasReasoning   string    `json:"bias_reasoning,omitempty"`
	JudgeModel      string    `json:"judge_model"`
	CoJudgeModel    string    `json:"co_judge_model"`
	IsHuman         bool      `json:"is_human"`
	ContentHash     string    `json:"content_hash"`
	CreatedAt       time.Time `json:"created_at"`
}

// AdjudicationRecord is everything written atomically after a successful
// adjudication: the verdict, the analysis, the new status, and the audit entry.
type AdjudicationRecord struct {
	Verdict  Verdict
	Analysis NormalizedAnalysis
	Status   CaseStatus
	Audit    AuditEntry
}
