package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/manthanabc/EDAI-5/internal/model"
)

// ListAuditEntries returns a case's audit trail in chronological order.
func (db *DB) ListAuditEntries(ctx context.Context, caseID uuid.UUID) ([]model.AuditEntry, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, case_id, action, actor, details, created_at
		 FROM audit_log WHERE case_id = $1 ORDER BY created_at, id`, caseID)
	if err != nil {
		return nil, fmt.Errorf("storage: list audit entries: %w", err)
	}
	defer rows.Close()

	out := []model.AuditEntry{}
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.CaseID, &e.Action, &e.Actor, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan audit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
