package edai

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Case statuses.
const (
	StatusOpen      = "OPEN"
	StatusResolved  = "RESOLVED"
	StatusEscalated = "ESCALATED"
)

// EvidenceDocument is the metadata of one uploaded evidence file.
type EvidenceDocument struct {
	URL          string `json:"url"`
	DisplayName  string `json:"display_name"`
	MimeTypeHint string `json:"mime_type,omitempty"`
}

// Case is a dispute.
type Case struct {
	ID                    uuid.UUID          `json:"id,omitempty"`
	Title                 string             `json:"title"`
	ClaimantDescription   string             `json:"claimant_description"`
	RespondentDescription string             `json:"respondent_description,omitempty"`
	Status                string             `json:"status,omitempty"`
	Analysis              json.RawMessage    `json:"analysis,omitempty"`
	Documents             []EvidenceDocument `json:"documents"`
	CreatedAt             time.Time          `json:"created_at,omitempty"`
	UpdatedAt             time.Time          `json:"updated_at,omitempty"`
}

// Argument is one claim extracted from a party's statement.
type Argument struct {
	Claim    string `json:"claim"`
	Evidence string `json:"evidence"`
}

// Analysis is the normalized view of both parties' arguments.
type Analysis struct {
	ClaimantArguments   []Argument `json:"claimantArguments"`
	RespondentArguments []Argument `json:"respondentArguments"`
}

// VerdictResult is what the pipeline produced, persisted or not.
type VerdictResult struct {
	Content         string   `json:"content"`
	Reasoning       string   `json:"reasoning"`
	Citations       []string `json:"citations"`
	ConfidenceScore float64  `json:"confidence"`
	PassedBiasCheck bool     `json:"passedBiasCheck"`
	BiasReasoning   string   `json:"biasCheckReasoning,omitempty"`
	Failed          bool     `json:"failed"`
	Outcome         string   `json:"outcome"`
}

// Verdict is a persisted verdict with its content hash.
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

// AdjudicateRequest optionally overrides the configured models.
type AdjudicateRequest struct {
	JudgeModel   string `json:"judge_model,omitempty"`
	CoJudgeModel string `json:"co_judge_model,omitempty"`
}

// AdjudicateResponse is returned by the verdict endpoint.
type AdjudicateResponse struct {
	Verdict     *Verdict      `json:"verdict,omitempty"`
	Result      VerdictResult `json:"result"`
	Analysis    Analysis      `json:"analysis"`
	Status      string        `json:"status"`
	Disposition string        `json:"disposition"`
}

// History lists a case's verdicts newest first with the Merkle root over
// their hashes and the IDs of any verdict whose hash no longer matches.
type History struct {
	Verdicts  []Verdict   `json:"verdicts"`
	ChainRoot string      `json:"chain_root"`
	Tampered  []uuid.UUID `json:"tampered,omitempty"`
}

// AuditEntry records a state change on a case.
type AuditEntry struct {
	ID        uuid.UUID `json:"id"`
	CaseID    uuid.UUID `json:"case_id"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// ProviderConfig is the persisted model provider configuration. APIKey is
// redacted in responses.
type ProviderConfig struct {
	Provider        string   `json:"provider"`
	APIKey          string   `json:"apiKey"`
	JudgeModel      string   `json:"judgeModel,omitempty"`
	CoJudgeModel    string   `json:"coJudgeModel,omitempty"`
	AvailableModels []string `json:"availableModels,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Storage   string `json:"storage"`
	Reference string `json:"reference"`
	Uptime    int64  `json:"uptime_seconds"`
}

type apiEnvelope struct {
	Data json.RawMessage `json:"data"`
}

type apiErrorEnvelope struct {
	Error struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details,omitempty"`
	} `json:"error"`
}
