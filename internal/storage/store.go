package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/manthanabc/EDAI-5/internal/model"
)

// Store is the persistence contract shared by the Postgres and SQLite backends.
type Store interface {
	GetSetting(ctx context.Context, key string) (string, error)
	PutSetting(ctx context.Context, key, value string) error

	CreateCase(ctx context.Context, c model.Case) (model.Case, error)
	GetCase(ctx context.Context, id uuid.UUID) (model.Case, error)
	ListCases(ctx context.Context, limit int) ([]model.Case, error)

	// RecordAdjudication writes the verdict, the analysis, the new case
	// status, and the audit entry in one transaction.
	RecordAdjudication(ctx context.Context, rec model.AdjudicationRecord) error
	ListVerdicts(ctx context.Context, caseID uuid.UUID) ([]model.Verdict, error)
	ListAuditEntries(ctx context.Context, caseID uuid.UUID) ([]model.AuditEntry, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context)
}

// DefaultListLimit bounds ListCases when the caller passes a non-positive limit.
const DefaultListLimit = 100
