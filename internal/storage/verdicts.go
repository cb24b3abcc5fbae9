package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/manthanabc/EDAI-5/internal/model"
)

const (
	adjudicationMaxRetries = 3
	adjudicationRetryDelay = 20 * time.Millisecond
)

// PrepareAdjudication fills ids and timestamps on an adjudication record.
func PrepareAdjudication(rec model.AdjudicationRecord, now time.Time) model.AdjudicationRecord {
	if rec.Verdict.ID == uuid.Nil {
		rec.Verdict.ID = uuid.New()
	}
	if rec.Verdict.CreatedAt.IsZero() {
		rec.Verdict.CreatedAt = now
	}
	if rec.Verdict.Citations == nil {
		rec.Verdict.Citations = []string{}
	}
	if rec.Audit.ID == uuid.Nil {
		rec.Audit.ID = uuid.New()
	}
	if rec.Audit.CreatedAt.IsZero() {
		rec.Audit.CreatedAt = now
	}
	rec.Audit.CaseID = rec.Verdict.CaseID
	return rec
}

// RecordAdjudication implements Store. The transaction is retried on
// serialization failures and deadlocks.
func (db *DB) RecordAdjudication(ctx context.Context, rec model.AdjudicationRecord) error {
	rec = PrepareAdjudication(rec, time.Now().UTC())

	citations, err := json.Marshal(rec.Verdict.Citations)
	if err != nil {
		return fmt.Errorf("storage: marshal citations: %w", err)
	}
	analysis, err := json.Marshal(rec.Analysis)
	if err != nil {
		return fmt.Errorf("storage: marshal analysis: %w", err)
	}

	return WithRetry(ctx, adjudicationMaxRetries, adjudicationRetryDelay, func() error {
		return pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
			v := rec.Verdict
			if _, err := tx.Exec(ctx,
				`INSERT INTO verdicts (id, case_id, content, reasoning, citations, confidence, passed_bias_check,
				                       bias_reasoning, judge_model, co_judge_model, is_human, content_hash, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
				v.ID, v.CaseID, v.Content, v.Reasoning, citations, v.Confidence, v.PassedBiasCheck,
				v.BiasReasoning, v.JudgeModel, v.CoJudgeModel, v.IsHuman, v.ContentHash, v.CreatedAt,
			); err != nil {
				return fmt.Errorf("storage: insert verdict: %w", err)
			}

			tag, err := tx.Exec(ctx,
				`UPDATE cases SET status = $2, analysis = $3, updated_at = $4 WHERE id = $1`,
				v.CaseID, string(rec.Status), analysis, v.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("storage: update case status: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("storage: case %s: %w", v.CaseID, ErrNotFound)
			}

			a := rec.Audit
			if _, err := tx.Exec(ctx,
				`INSERT INTO audit_log (id, case_id, action, actor, details, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				a.ID, a.CaseID, a.Action, a.Actor, a.Details, a.CreatedAt,
			); err != nil {
				return fmt.Errorf("storage: insert audit entry: %w", err)
			}
			return nil
		})
	})
}

// ListVerdicts returns a case's verdicts, newest first.
func (db *DB) ListVerdicts(ctx context.Context, caseID uuid.UUID) ([]model.Verdict, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, case_id, content, reasoning, citations, confidence, passed_bias_check, bias_reasoning,
		        judge_model, co_judge_model, is_human, content_hash, created_at
		 FROM verdicts WHERE case_id = $1 ORDER BY created_at DESC`, caseID)
	if err != nil {
		return nil, fmt.Errorf("storage: list verdicts: %w", err)
	}
	defer rows.Close()

	out := []model.Verdict{}
	for rows.Next() {
		var (
			v         model.Verdict
			citations []byte
		)
		if err := rows.Scan(&v.ID, &v.CaseID, &v.Content, &v.Reasoning, &citations, &v.Confidence, &v.PassedBiasCheck,
			&v.BiasReasoning, &v.JudgeModel, &v.CoJudgeModel, &v.IsHuman, &v.ContentHash, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan verdict: %w", err)
		}
		if err := json.Unmarshal(citations, &v.Citations); err != nil {
			return nil, fmt.Errorf("storage: decode citations: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
