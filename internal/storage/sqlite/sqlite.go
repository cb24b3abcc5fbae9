// Package sqlite implements storage.Store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/manthanabc/EDAI-5/internal/model"
	"github.com/manthanabc/EDAI-5/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS system_settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cases (
	id                     TEXT PRIMARY KEY,
	title                  TEXT NOT NULL,
	claimant_description   TEXT NOT NULL,
	respondent_description TEXT NOT NULL DEFAULT '',
	status                 TEXT NOT NULL DEFAULT 'OPEN',
	analysis               TEXT,
	created_at             TEXT NOT NULL,
	updated_at             TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS case_documents (
	id           TEXT PRIMARY KEY,
	case_id      TEXT NOT NULL,
	position     INTEGER NOT NULL,
	url          TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	mime_type    TEXT NOT NULL DEFAULT '',
	UNIQUE (case_id, position),
	FOREIGN KEY (case_id) REFERENCES cases(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS verdicts (
	id                TEXT PRIMARY KEY,
	case_id           TEXT NOT NULL,
	content           TEXT NOT NULL,
	reasoning         TEXT NOT NULL,
	citations         TEXT NOT NULL DEFAULT '[]',
	confidence        REAL NOT NULL,
	passed_bias_check INTEGER NOT NULL,
	bias_reasoning    TEXT NOT NULL DEFAULT '',
	judge_model       TEXT NOT NULL,
	co_judge_model    TEXT NOT NULL,
	is_human          INTEGER NOT NULL DEFAULT 0,
	content_hash      TEXT NOT NULL,
	created_at        TEXT NOT NULL,
	FOREIGN KEY (case_id) REFERENCES cases(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS audit_log (
	id         TEXT PRIMARY KEY,
	case_id    TEXT NOT NULL,
	action     TEXT NOT NULL,
	actor      TEXT NOT NULL,
	details    TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	FOREIGN KEY (case_id) REFERENCES cases(id) ON DELETE CASCADE
);
`

// Store is a SQLite-backed storage.Store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a private in-memory database.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}
	// One connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000", schema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: init: %w", err)
		}
	}
	return &Store{db: db, logger: logger}, nil
}

// Ping implements storage.Store.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements storage.Store.
func (s *Store) Close(_ context.Context) {
	if err := s.db.Close(); err != nil {
		s.logger.Warn("sqlite: close", "error", err)
	}
}

func ts(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTS(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// GetSetting implements storage.Store.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM system_settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("sqlite: setting %s: %w", key, storage.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: get setting %s: %w", key, err)
	}
	return v, nil
}

// PutSetting implements storage.Store.
func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO system_settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, ts(time.Now()))
	if err != nil {
		return fmt.Errorf("sqlite: put setting %s: %w", key, err)
	}
	return nil
}

// CreateCase implements storage.Store.
func (s *Store) CreateCase(ctx context.Context, c model.Case) (model.Case, error) {
	c = storage.PrepareCase(c, time.Now().UTC())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Case{}, fmt.Errorf("sqlite: begin create case: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var analysis any
	if len(c.Analysis) > 0 {
		analysis = string(c.Analysis)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cases (id, title, claimant_description, respondent_description, status, analysis, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID.String(), c.Title, c.ClaimantDescription, c.RespondentDescription, string(c.Status), analysis,
		ts(c.CreatedAt), ts(c.UpdatedAt),
	); err != nil {
		return model.Case{}, fmt.Errorf("sqlite: insert case: %w", err)
	}
	for i, d := range c.Documents {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO case_documents (id, case_id, position, url, display_name, mime_type) VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), c.ID.String(), i, d.URL, d.DisplayName, d.MimeTypeHint,
		); err != nil {
			return model.Case{}, fmt.Errorf("sqlite: insert case document %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return model.Case{}, fmt.Errorf("sqlite: commit create case: %w", err)
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(r rowScanner) (model.Case, error) {
	var (
		c                model.Case
		id, status       string
		analysis         sql.NullString
		created, updated string
	)
	if err := r.Scan(&id, &c.Title, &c.ClaimantDescription, &c.RespondentDescription, &status, &analysis, &created, &updated); err != nil {
		return model.Case{}, err
	}
	var err error
	if c.ID, err = uuid.Parse(id); err != nil {
		return model.Case{}, fmt.Errorf("sqlite: parse case id: %w", err)
	}
	c.Status = model.CaseStatus(status)
	if analysis.Valid {
		c.Analysis = json.RawMessage(analysis.String)
	}
	if c.CreatedAt, err = parseTS(created); err != nil {
		return model.Case{}, fmt.Errorf("sqlite: parse created_at: %w", err)
	}
	if c.UpdatedAt, err = parseTS(updated); err != nil {
		return model.Case{}, fmt.Errorf("sqlite: parse updated_at: %w", err)
	}
	return c, nil
}

// GetCase implements storage.Store.
func (s *Store) GetCase(ctx context.Context, id uuid.UUID) (model.Case, error) {
	c, err := scanCase(s.db.QueryRowContext(ctx,
		`SELECT id, title, claimant_description, respondent_description, status, analysis, created_at, updated_at
		 FROM cases WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Case{}, fmt.Errorf("sqlite: case %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return model.Case{}, fmt.Errorf("sqlite: get case: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT url, display_name, mime_type FROM case_documents WHERE case_id = ? ORDER BY position`, id.String())
	if err != nil {
		return model.Case{}, fmt.Errorf("sqlite: query case documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	c.Documents = []model.EvidenceDocument{}
	for rows.Next() {
		var d model.EvidenceDocument
		if err := rows.Scan(&d.URL, &d.DisplayName, &d.MimeTypeHint); err != nil {
			return model.Case{}, fmt.Errorf("sqlite: scan case document: %w", err)
		}
		c.Documents = append(c.Documents, d)
	}
	return c, rows.Err()
}

// ListCases implements storage.Store.
func (s *Store) ListCases(ctx context.Context, limit int) ([]model.Case, error) {
	if limit <= 0 {
		limit = storage.DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, claimant_description, respondent_description, status, analysis, created_at, updated_at
		 FROM cases ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list cases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan case: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RecordAdjudication implements storage.Store.
func (s *Store) RecordAdjudication(ctx context.Context, rec model.AdjudicationRecord) error {
	rec = storage.PrepareAdjudication(rec, time.Now().UTC())

	citations, err := json.Marshal(rec.Verdict.Citations)
	if err != nil {
		return fmt.Errorf("sqlite: marshal citations: %w", err)
	}
	analysis, err := json.Marshal(rec.Analysis)
	if err != nil {
		return fmt.Errorf("sqlite: marshal analysis: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin adjudication: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	v := rec.Verdict
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO verdicts (id, case_id, content, reasoning, citations, confidence, passed_bias_check,
		                       bias_reasoning, judge_model, co_judge_model, is_human, content_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID.String(), v.CaseID.String(), v.Content, v.Reasoning, string(citations), v.Confidence, v.PassedBiasCheck,
		v.BiasReasoning, v.JudgeModel, v.CoJudgeModel, v.IsHuman, v.ContentHash, ts(v.CreatedAt),
	); err != nil {
		return fmt.Errorf("sqlite: insert verdict: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE cases SET status = ?, analysis = ?, updated_at = ? WHERE id = ?`,
		string(rec.Status), string(analysis), ts(v.CreatedAt), v.CaseID.String())
	if err != nil {
		return fmt.Errorf("sqlite: update case status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sqlite: case %s: %w", v.CaseID, storage.ErrNotFound)
	}

	a := rec.Audit
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO audit_log (id, case_id, action, actor, details, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID.String(), a.CaseID.String(), a.Action, a.Actor, a.Details, ts(a.CreatedAt),
	); err != nil {
		return fmt.Errorf("sqlite: insert audit entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit adjudication: %w", err)
	}
	return nil
}

// ListVerdicts implements storage.Store.
func (s *Store) ListVerdicts(ctx context.Context, caseID uuid.UUID) ([]model.Verdict, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, case_id, content, reasoning, citations, confidence, passed_bias_check, bias_reasoning,
		        judge_model, co_judge_model, is_human, content_hash, created_at
		 FROM verdicts WHERE case_id = ? ORDER BY created_at DESC`, caseID.String())
	if err != nil {
		return nil, fmt.Errorf("sqlite: list verdicts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []model.Verdict{}
	for rows.Next() {
		var (
			v                  model.Verdict
			id, cid, citations string
			created            string
		)
		if err := rows.Scan(&id, &cid, &v.Content, &v.Reasoning, &citations, &v.Confidence, &v.PassedBiasCheck,
			&v.BiasReasoning, &v.JudgeModel, &v.CoJudgeModel, &v.IsHuman, &v.ContentHash, &created); err != nil {
			return nil, fmt.Errorf("sqlite: scan verdict: %w", err)
		}
		if v.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("sqlite: parse verdict id: %w", err)
		}
		if v.CaseID, err = uuid.Parse(cid); err != nil {
			return nil, fmt.Errorf("sqlite: parse case id: %w", err)
		}
		if err := json.Unmarshal([]byte(citations), &v.Citations); err != nil {
			return nil, fmt.Errorf("sqlite: decode citations: %w", err)
		}
		if v.CreatedAt, err = parseTS(created); err != nil {
			return nil, fmt.Errorf("sqlite: parse created_at: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListAuditEntries implements storage.Store.
func (s *Store) ListAuditEntries(ctx context.Context, caseID uuid.UUID) ([]model.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, case_id, action, actor, details, created_at
		 FROM audit_log WHERE case_id = ? ORDER BY created_at, rowid`, caseID.String())
	if err != nil {
		return nil, fmt.Errorf("sqlite: list audit entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []model.AuditEntry{}
	for rows.Next() {
		var (
			e                model.AuditEntry
			id, cid, created string
		)
		if err := rows.Scan(&id, &cid, &e.Action, &e.Actor, &e.Details, &created); err != nil {
			return nil, fmt.Errorf("sqlite: scan audit entry: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("sqlite: parse audit id: %w", err)
		}
		if e.CaseID, err = uuid.Parse(cid); err != nil {
			return nil, fmt.Errorf("sqlite: parse case id: %w", err)
		}
		if e.CreatedAt, err = parseTS(created); err != nil {
			return nil, fmt.Errorf("sqlite: parse created_at: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
