package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manthanabc/EDAI-5/internal/model"
	"github.com/manthanabc/EDAI-5/internal/storage"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "edai.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func TestSettingsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.GetSetting(ctx, "ai_config")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.PutSetting(ctx, "ai_config", `{"provider":"openrouter"}`))
	require.NoError(t, s.PutSetting(ctx, "ai_config", `{"provider":"gemini"}`))
	v, err := s.GetSetting(ctx, "ai_config")
	require.NoError(t, err)
	assert.Equal(t, `{"provider":"gemini"}`, v)
}

func TestCreateAndGetCase(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	created, err := s.CreateCase(ctx, model.Case{
		Title:               "Undelivered laptop",
		ClaimantDescription: "Paid but never received.",
		Documents: []model.EvidenceDocument{
			{URL: "/uploads/receipt.png", DisplayName: "receipt.png", MimeTypeHint: "image/png"},
			{URL: "/uploads/chat.jpg", DisplayName: "chat.jpg", MimeTypeHint: "image/jpeg"},
		},
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, model.CaseStatusOpen, created.Status)

	got, err := s.GetCase(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Undelivered laptop", got.Title)
	assert.Equal(t, model.CaseStatusOpen, got.Status)
	require.Len(t, got.Documents, 2)
	assert.Equal(t, "receipt.png", got.Documents[0].DisplayName)
	assert.Equal(t, "chat.jpg", got.Documents[1].DisplayName)
	assert.Empty(t, got.Analysis)

	cases, err := s.ListCases(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, cases, 1)

	_, err = s.GetCase(ctx, uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecordAdjudication(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	c, err := s.CreateCase(ctx, model.Case{Title: "t", ClaimantDescription: "d"})
	require.NoError(t, err)

	rec := model.AdjudicationRecord{
		Verdict: model.Verdict{
			CaseID:          c.ID,
			Content:         "In favor of Claimant",
			Reasoning:       "Receipt shows payment.",
			Citations:       []string{"Rule 4.2"},
			Confidence:      0.9,
			PassedBiasCheck: true,
			BiasReasoning:   "No bias found.",
			JudgeModel:      "a/judge",
			CoJudgeModel:    "b/cojudge",
			ContentHash:     "v1:abc",
		},
		Analysis: model.NormalizedAnalysis{
			ClaimantArguments: []model.Argument{{Claim: "Paid", Evidence: "receipt"}},
		},
		Status: model.CaseStatusResolved,
		Audit: model.AuditEntry{
			Action:  model.AuditActionVerdictGenerated,
			Actor:   "AI_JUDGE",
			Details: "Verdict generated",
		},
	}
	require.NoError(t, s.RecordAdjudication(ctx, rec))

	got, err := s.GetCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusResolved, got.Status)
	var analysis model.NormalizedAnalysis
	require.NoError(t, json.Unmarshal(got.Analysis, &analysis))
	assert.Equal(t, "Paid", analysis.ClaimantArguments[0].Claim)
	assert.NotNil(t, analysis.RespondentArguments)

	verdicts, err := s.ListVerdicts(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, verdicts, 1)
	assert.Equal(t, []string{"Rule 4.2"}, verdicts[0].Citations)
	assert.True(t, verdicts[0].PassedBiasCheck)
	assert.Equal(t, "v1:abc", verdicts[0].ContentHash)

	audit, err := s.ListAuditEntries(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, model.AuditActionVerdictGenerated, audit[0].Action)
	assert.Equal(t, c.ID, audit[0].CaseID)
}

func TestRecordAdjudicationUnknownCaseRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	missing := uuid.New()
	err := s.RecordAdjudication(ctx, model.AdjudicationRecord{
		Verdict: model.Verdict{CaseID: missing, Content: "x", Reasoning: "y", ContentHash: "h"},
		Status:  model.CaseStatusResolved,
		Audit:   model.AuditEntry{Action: model.AuditActionVerdictGenerated, Actor: "AI_JUDGE"},
	})
	// Foreign keys reject the verdict row before the status update runs.
	require.Error(t, err)

	verdicts, err := s.ListVerdicts(ctx, missing)
	require.NoError(t, err)
	assert.Empty(t, verdicts)
}
