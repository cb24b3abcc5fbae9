// Package model defines the domain types shared by the adjudication pipeline,
// the storage layer, and the HTTP/MCP surfaces.
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CaseStatus is the lifecycle state of a dispute.
type CaseStatus string

const (
	CaseStatusOpen       CaseStatus = "OPEN"
	CaseStatusAIReviewed CaseStatus = "AI_REVIEWED"
	CaseStatusResolved   CaseStatus = "RESOLVED"
	CaseStatusEscalated  CaseStatus = "ESCALATED"
)

// EvidenceDocument is the metadata of one uploaded evidence file. URL is the
// storage-relative location (e.g. "/uploads/123_receipt.png").
type EvidenceDocument struct {
	URL          string `json:"url" yaml:"url"`
	DisplayName  string `json:"display_name" yaml:"name"`
	MimeTypeHint string `json:"mime_type,omitempty" yaml:"type"`
}

// CaseSnapshot is the read-only view of a case at adjudication time.
// The pipeline never mutates it.
type CaseSnapshot struct {
	ID                    uuid.UUID          `json:"id"`
	Title                 string             `json:"title"`
	ClaimantDescription   string             `json:"claimant_description"`
	RespondentDescription string             `json:"respondent_description,omitempty"`
	Documents             []EvidenceDocument `json:"documents"`
}

// Case is the persisted dispute record.
type Case struct {
	ID                    uuid.UUID          `json:"id" yaml:"-"`
	Title                 string             `json:"title" yaml:"title"`
	ClaimantDescription   string             `json:"claimant_description" yaml:"claimant"`
	RespondentDescription string             `json:"respondent_description,omitempty" yaml:"respondent"`
	Status                CaseStatus         `json:"status" yaml:"-"`
	Analysis              json.RawMessage    `json:"analysis,omitempty" yaml:"-"`
	Documents             []EvidenceDocument `json:"documents" yaml:"documents"`
	CreatedAt             time.Time          `json:"created_at" yaml:"-"`
	UpdatedAt             time.Time          `json:"updated_at" yaml:"-"`
}

// Snapshot returns an independent copy of the fields the pipeline reads.
func (c Case) Snapshot() CaseSnapshot {
	docs := make([]EvidenceDocument, len(c.Documents))
	copy(docs, c.Documents)
	return CaseSnapshot{
		ID:                    c.ID,
		Title:                 c.Title,
		ClaimantDescription:   c.ClaimantDescription,
		RespondentDescription: c.RespondentDescription,
		Documents:             docs,
	}
}

// AuditEntry records a state-changing action on a case.
type AuditEntry struct {
	ID        uuid.UUID `json:"id"`
	CaseID    uuid.UUID `json:"case_id"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// Audit actions written by the adjudication service.
const (
	AuditActionVerdictGenerated = "AI_VERDICT_GENERATED"
	AuditActionCaseEscalated    = "CASE_ESCALATED"
)
