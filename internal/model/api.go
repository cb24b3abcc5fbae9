package model

import (
	"fmt"
	"time"
)

// Field length limits for case submissions. These keep a single oversized
// description from blowing through the model's context window.
const (
	MaxTitleLen       = 500
	MaxDescriptionLen = 64 * 1024 // 64 KB
	MaxDocuments      = 50
)

// ValidateCase checks per-field limits on a case before it is stored.
func ValidateCase(c Case) error {
	if c.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(c.Title) > MaxTitleLen {
		return fmt.Errorf("title exceeds maximum length of %d characters", MaxTitleLen)
	}
	if c.ClaimantDescription == "" {
		return fmt.Errorf("claimant description is required")
	}
	if len(c.ClaimantDescription) > MaxDescriptionLen {
		return fmt.Errorf("claimant description exceeds maximum length of %d bytes", MaxDescriptionLen)
	}
	if len(c.RespondentDescription) > MaxDescriptionLen {
		return fmt.Errorf("respondent description exceeds maximum length of %d bytes", MaxDescriptionLen)
	}
	if len(c.Documents) > MaxDocuments {
		return fmt.Errorf("case has %d documents, maximum is %d", len(c.Documents), MaxDocuments)
	}
	for i, d := range c.Documents {
		if d.URL == "" {
			return fmt.Errorf("documents[%d].url is required", i)
		}
	}
	return nil
}

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// AdjudicateRequest is the optional request body for POST /v1/cases/{case_id}/verdict.
type AdjudicateRequest struct {
	JudgeModel   string `json:"judge_model,omitempty"`
	CoJudgeModel string `json:"co_judge_model,omitempty"`
}

// AdjudicateResponse is returned by POST /v1/cases/{case_id}/verdict.
type AdjudicateResponse struct {
	Verdict     *Verdict           `json:"verdict,omitempty"`
	Result      VerdictResult      `json:"result"`
	Analysis    NormalizedAnalysis `json:"analysis"`
	Status      CaseStatus         `json:"status"`
	Disposition Disposition        `json:"disposition"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Storage string `json:"storage"`
	// Reference reports whether the arbitration reference document is loaded.
	Reference string `json:"reference"`
	Uptime    int64  `json:"uptime_seconds"`
}
