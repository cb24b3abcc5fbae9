package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/manthanabc/EDAI-5/internal/model"
)

// PrepareCase fills server-assigned fields on a new case.
func PrepareCase(c model.Case, now time.Time) model.Case {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = model.CaseStatusOpen
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	return c
}

// CreateCase inserts a case and its evidence documents.
func (db *DB) CreateCase(ctx context.Context, c model.Case) (model.Case, error) {
	c = PrepareCase(c, time.Now().UTC())

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.Case{}, fmt.Errorf("storage: begin create case: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO cases (id, title, claimant_description, respondent_description, status, analysis, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.Title, c.ClaimantDescription, c.RespondentDescription, string(c.Status),
		nullJSON(c.Analysis), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return model.Case{}, fmt.Errorf("storage: insert case: %w", err)
	}

	for i, d := range c.Documents {
		if _, err := tx.Exec(ctx,
			`INSERT INTO case_documents (id, case_id, position, url, display_name, mime_type)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New(), c.ID, i, d.URL, d.DisplayName, d.MimeTypeHint,
		); err != nil {
			return model.Case{}, fmt.Errorf("storage: insert case document %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Case{}, fmt.Errorf("storage: commit create case: %w", err)
	}
	return c, nil
}

// GetCase returns a case with its documents in upload order.
func (db *DB) GetCase(ctx context.Context, id uuid.UUID) (model.Case, error) {
	var (
		c        model.Case
		status   string
		analysis []byte
	)
	err := db.pool.QueryRow(ctx,
		`SELECT id, title, claimant_description, respondent_description, status, analysis, created_at, updated_at
		 FROM cases WHERE id = $1`, id,
	).Scan(&c.ID, &c.Title, &c.ClaimantDescription, &c.RespondentDescription, &status, &analysis, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Case{}, fmt.Errorf("storage: case %s: %w", id, ErrNotFound)
		}
		return model.Case{}, fmt.Errorf("storage: get case: %w", err)
	}
	c.Status = model.CaseStatus(status)
	c.Analysis = analysis

	docs, err := db.caseDocuments(ctx, id)
	if err != nil {
		return model.Case{}, err
	}
	c.Documents = docs
	return c, nil
}

func (db *DB) caseDocuments(ctx context.Context, caseID uuid.UUID) ([]model.EvidenceDocument, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT url, display_name, mime_type FROM case_documents WHERE case_id = $1 ORDER BY position`, caseID)
	if err != nil {
		return nil, fmt.Errorf("storage: query case documents: %w", err)
	}
	defer rows.Close()

	docs := []model.EvidenceDocument{}
	for rows.Next() {
		var d model.EvidenceDocument
		if err := rows.Scan(&d.URL, &d.DisplayName, &d.MimeTypeHint); err != nil {
			return nil, fmt.Errorf("storage: scan case document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// ListCases returns the most recently created cases without their documents.
func (db *DB) ListCases(ctx context.Context, limit int) ([]model.Case, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, title, claimant_description, respondent_description, status, analysis, created_at, updated_at
		 FROM cases ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list cases: %w", err)
	}
	defer rows.Close()

	var out []model.Case
	for rows.Next() {
		var (
			c        model.Case
			status   string
			analysis []byte
		)
		if err := rows.Scan(&c.ID, &c.Title, &c.ClaimantDescription, &c.RespondentDescription, &status, &analysis, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan case: %w", err)
		}
		c.Status = model.CaseStatus(status)
		c.Analysis = analysis
		out = append(out, c)
	}
	return out, rows.Err()
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
