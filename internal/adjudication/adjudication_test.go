package adjudication

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manthanabc/EDAI-5/internal/llm"
	"github.com/manthanabc/EDAI-5/internal/model"
	"github.com/manthanabc/EDAI-5/internal/rag"
	"github.com/manthanabc/EDAI-5/internal/testutil"
)

type reply struct {
	text string
	err  error
	wait bool // block until ctx is done
}

type call struct {
	model       string
	messages    []llm.Message
	temperature float64
}

// scriptedGateway answers calls in order.
type scriptedGateway struct {
	mu      sync.Mutex
	replies []reply
	calls   []call
}

func (g *scriptedGateway) Complete(ctx context.Context, m string, msgs []llm.Message, temperature float64) (string, error) {
	g.mu.Lock()
	i := len(g.calls)
	g.calls = append(g.calls, call{model: m, messages: msgs, temperature: temperature})
	g.mu.Unlock()
	if i >= len(g.replies) {
		return "", errors.New("unexpected call")
	}
	r := g.replies[i]
	if r.wait {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return r.text, r.err
}

type fixedSelector struct {
	gw      llm.Gateway
	lastKey string
}

func (s *fixedSelector) Select(apiKey string) llm.Gateway {
	s.lastKey = apiKey
	return s.gw
}

type staticRetriever string

func (r staticRetriever) Retrieve(context.Context, string) string { return string(r) }

type fakeEncoder struct{ parts []llm.ContentPart }

func (e fakeEncoder) Encode(context.Context, []model.EvidenceDocument) []llm.ContentPart {
	return e.parts
}

const (
	normalizedJSON = "```json\n{\"claimantArguments\":[{\"claim\":\"X breached the contract\",\"evidence\":\"None\"}],\"respondentArguments\":[]}\n```"
	verdictJSON    = `Here is my decision: {"content":"In favor of Claimant","reasoning":"The contract was breached.","citations":["Rule 1.1"]}`
	biasPassJSON   = `{"passed": true, "reasoning": "No fallacies found."}`
	biasFailJSON   = `{"passed": false, "reasoning": "Ad hominem against respondent."}`
)

var snapshot = model.CaseSnapshot{
	ID:                  uuid.MustParse("6f1c1d2e-3b4a-4c5d-8e9f-0a1b2c3d4e5f"),
	Title:               "Undelivered goods",
	ClaimantDescription: "X breached the contract",
}

var providerCfg = model.ProviderConfig{Provider: model.ProviderOpenRouter, APIKey: "sk-test"}

func newService(gw llm.Gateway, retriever Retriever) (*Service, *fixedSelector) {
	sel := &fixedSelector{gw: gw}
	return New(Config{
		Gateways:     sel,
		Encoder:      fakeEncoder{},
		Retriever:    retriever,
		StageTimeout: time.Second,
	}, testutil.TestLogger()), sel
}

func TestAdjudicateHappyPath(t *testing.T) {
	gw := &scriptedGateway{replies: []reply{{text: normalizedJSON}, {text: verdictJSON}, {text: biasPassJSON}}}
	svc, sel := newService(gw, staticRetriever("Rule 1.1: contracts bind."))

	res := svc.Adjudicate(context.Background(), snapshot, providerCfg, Options{})

	assert.Equal(t, "sk-test", sel.lastKey)
	want := model.VerdictResult{
		Content:         "In favor of Claimant",
		Reasoning:       "The contract was breached.",
		Citations:       []string{"Rule 1.1"},
		ConfidenceScore: DefaultConfidence,
		PassedBiasCheck: true,
		BiasReasoning:   "No fallacies found.",
		Outcome:         model.OutcomeOK,
	}
	if diff := cmp.Diff(want, res.Verdict); diff != "" {
		t.Fatalf("verdict mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, model.DispositionResolved, res.Disposition)
	require.Len(t, res.Analysis.ClaimantArguments, 1)
	assert.Empty(t, res.Analysis.RespondentArguments)
	assert.NotNil(t, res.Analysis.RespondentArguments)

	require.Len(t, gw.calls, 3)
	for i, c := range gw.calls {
		assert.Equal(t, DefaultModel, c.model, "call %d", i)
	}
	verdictSystemText := gw.calls[1].messages[0].Text()
	assert.Contains(t, verdictSystemText, "Additional Policy Guidelines (RAG Retrieved):\nRule 1.1: contracts bind.")
	verdictUserText := gw.calls[1].messages[1].Text()
	assert.Contains(t, verdictUserText, `"claim":"X breached the contract"`)
	assert.Contains(t, verdictUserText, "Original Response (Respondent): No response provided.")
	assert.Contains(t, verdictUserText, "No evidence uploaded.")
	assert.Contains(t, gw.calls[2].messages[0].Text(), "Verdict: In favor of Claimant")
}

func TestAdjudicateModelPrecedence(t *testing.T) {
	gw := &scriptedGateway{replies: []reply{{text: normalizedJSON}, {text: verdictJSON}, {text: biasPassJSON}}}
	svc, _ := newService(gw, staticRetriever("ctx"))
	cfg := providerCfg
	cfg.JudgeModel = "cfg/judge"
	cfg.CoJudgeModel = "cfg/cojudge"

	res := svc.Adjudicate(context.Background(), snapshot, cfg, Options{JudgeModel: "req/judge"})

	assert.Equal(t, "req/judge", res.JudgeModel)
	assert.Equal(t, "cfg/cojudge", res.CoJudgeModel)
	require.Len(t, gw.calls, 3)
	assert.Equal(t, "req/judge", gw.calls[0].model)
	assert.Equal(t, "req/judge", gw.calls[1].model)
	assert.Equal(t, "cfg/cojudge", gw.calls[2].model)
}

func TestAdjudicateBiasFailureEscalates(t *testing.T) {
	gw := &scriptedGateway{replies: []reply{{text: normalizedJSON}, {text: verdictJSON}, {text: biasFailJSON}}}
	svc, _ := newService(gw, staticRetriever("ctx"))

	res := svc.Adjudicate(context.Background(), snapshot, providerCfg, Options{})

	assert.False(t, res.Verdict.Failed)
	assert.False(t, res.Verdict.PassedBiasCheck)
	assert.Equal(t, "Ad hominem against respondent.", res.Verdict.BiasReasoning)
	assert.Equal(t, model.DispositionEscalated, res.Disposition)
}

func TestAdjudicateNormalizeFailureDegrades(t *testing.T) {
	gw := &scriptedGateway{replies: []reply{
		{err: &llm.UpstreamError{Provider: "openrouter", StatusCode: 502, Body: "bad gateway"}},
		{text: verdictJSON},
		{text: biasPassJSON},
	}}
	svc, _ := newService(gw, staticRetriever("ctx"))

	res := svc.Adjudicate(context.Background(), snapshot, providerCfg, Options{})

	assert.False(t, res.Verdict.Failed)
	assert.Empty(t, res.Analysis.ClaimantArguments)
	assert.NotNil(t, res.Analysis.ClaimantArguments)
	assert.Contains(t, gw.calls[1].messages[1].Text(), "Claimant Arguments: []")
}

func TestAdjudicateConfigurationMissingAborts(t *testing.T) {
	gw := &scriptedGateway{replies: []reply{{err: llm.ErrConfigurationMissing}}}
	svc, _ := newService(gw, staticRetriever("ctx"))

	res := svc.Adjudicate(context.Background(), snapshot, model.ProviderConfig{}, Options{})

	assert.Len(t, gw.calls, 1, "no further model calls after configuration is found missing")
	assert.True(t, res.Verdict.Failed)
	assert.Equal(t, model.OutcomeConfigurationMissing, res.Verdict.Outcome)
	assert.Equal(t, ContentConfigurationRequired, res.Verdict.Content)
	assert.NotEmpty(t, res.Verdict.Reasoning)
	assert.Empty(t, res.Verdict.Citations)
	assert.Equal(t, model.DispositionNeedsReview, res.Disposition)
}

func TestAdjudicateVerdictFailures(t *testing.T) {
	tests := []struct {
		name        string
		verdict     reply
		wantOutcome model.VerdictOutcome
		wantContent string
	}{
		{"upstream error", reply{err: errors.New("connection reset")}, model.OutcomeUnavailable, ContentServiceUnavailable},
		{"timeout", reply{wait: true}, model.OutcomeUnavailable, ContentServiceUnavailable},
		{"refusal", reply{text: "I'm sorry, but I am unable to decide this case."}, model.OutcomeRefusal, ContentRefusal},
		{"prose", reply{text: "The claimant should win."}, model.OutcomeParseError, ContentParseError},
		{"missing content", reply{text: `{"reasoning":"r"}`}, model.OutcomeParseError, ContentParseError},
		{"empty content", reply{text: `{"content":"  ","reasoning":"r"}`}, model.OutcomeParseError, ContentParseError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &scriptedGateway{replies: []reply{{text: normalizedJSON}, tt.verdict, {text: biasPassJSON}}}
			svc, _ := newService(gw, staticRetriever("ctx"))
			svc.cfg.StageTimeout = 20 * time.Millisecond

			res := svc.Adjudicate(context.Background(), snapshot, providerCfg, Options{})

			assert.True(t, res.Verdict.Failed)
			assert.Equal(t, tt.wantOutcome, res.Verdict.Outcome)
			assert.Equal(t, tt.wantContent, res.Verdict.Content)
			assert.NotEmpty(t, res.Verdict.Reasoning)
			assert.Empty(t, res.Verdict.Citations)
			assert.Zero(t, res.Verdict.ConfidenceScore)
			assert.Equal(t, model.DispositionNeedsReview, res.Disposition)
		})
	}
}

func TestAdjudicateUnavailableReasoningCarriesCause(t *testing.T) {
	gw := &scriptedGateway{replies: []reply{
		{text: normalizedJSON},
		{err: &llm.UpstreamError{Provider: "openrouter", StatusCode: 429, Body: "quota exceeded"}},
		{text: biasPassJSON},
	}}
	svc, _ := newService(gw, staticRetriever("ctx"))

	res := svc.Adjudicate(context.Background(), snapshot, providerCfg, Options{})

	assert.True(t, strings.HasPrefix(res.Verdict.Reasoning, "AI Service is currently unavailable. Error details: "))
	assert.Contains(t, res.Verdict.Reasoning, "quota exceeded")
}

func TestAdjudicateBiasUnavailablePasses(t *testing.T) {
	tests := []struct {
		name string
		bias reply
	}{
		{"upstream error", reply{err: errors.New("boom")}},
		{"unparseable", reply{text: "looks fine to me"}},
		{"passed missing", reply{text: `{"reasoning":"ok"}`}},
		{"passed not boolean", reply{text: `{"passed":"yes"}`}},
		{"timeout", reply{wait: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &scriptedGateway{replies: []reply{{text: normalizedJSON}, {text: verdictJSON}, tt.bias}}
			svc, _ := newService(gw, staticRetriever("ctx"))
			svc.cfg.StageTimeout = 20 * time.Millisecond

			res := svc.Adjudicate(context.Background(), snapshot, providerCfg, Options{})

			assert.False(t, res.Verdict.Failed)
			assert.True(t, res.Verdict.PassedBiasCheck)
			assert.Equal(t, BiasSkipped, res.Verdict.BiasReasoning)
			assert.Equal(t, model.DispositionResolved, res.Disposition)
		})
	}
}

func TestAdjudicateContextUnavailable(t *testing.T) {
	gw := &scriptedGateway{replies: []reply{{text: normalizedJSON}, {text: verdictJSON}, {text: biasPassJSON}}}
	svc, _ := newService(gw, staticRetriever(""))

	svc.Adjudicate(context.Background(), snapshot, providerCfg, Options{})

	assert.Contains(t, gw.calls[1].messages[0].Text(), rag.ContextUnavailable)
}

func TestAdjudicateGuidelines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.md")
	require.NoError(t, os.WriteFile(path, []byte("Rule 9: be fair."), 0o600))

	t.Run("prepended to retrieved passages", func(t *testing.T) {
		gw := &scriptedGateway{replies: []reply{{text: normalizedJSON}, {text: verdictJSON}, {text: biasPassJSON}}}
		svc, _ := newService(gw, staticRetriever("passage"))
		svc.cfg.GuidelinesPath = path

		svc.Adjudicate(context.Background(), snapshot, providerCfg, Options{})
		assert.Contains(t, gw.calls[1].messages[0].Text(), rag.BuildContext("Rule 9: be fair.", "passage"))
	})

	t.Run("unreadable guidelines", func(t *testing.T) {
		gw := &scriptedGateway{replies: []reply{{text: normalizedJSON}, {text: verdictJSON}, {text: biasPassJSON}}}
		svc, _ := newService(gw, staticRetriever("passage"))
		svc.cfg.GuidelinesPath = filepath.Join(dir, "missing.md")

		res := svc.Adjudicate(context.Background(), snapshot, providerCfg, Options{})
		assert.Contains(t, gw.calls[1].messages[0].Text(), rag.ContextUnavailable)
		assert.False(t, res.Verdict.Failed)
	})
}

func TestAdjudicateForwardsEvidenceImages(t *testing.T) {
	gw := &scriptedGateway{replies: []reply{{text: normalizedJSON}, {text: verdictJSON}, {text: biasPassJSON}}}
	sel := &fixedSelector{gw: gw}
	img := llm.ImagePart("image/png", []byte{0x89, 'P', 'N', 'G'})
	svc := New(Config{
		Gateways:  sel,
		Encoder:   fakeEncoder{parts: []llm.ContentPart{img}},
		Retriever: staticRetriever("ctx"),
	}, testutil.TestLogger())

	snap := snapshot
	snap.Documents = []model.EvidenceDocument{
		{URL: "/uploads/receipt.png", DisplayName: "receipt.png", MimeTypeHint: "image/png"},
		{URL: "/uploads/contract.pdf", DisplayName: "contract.pdf", MimeTypeHint: "application/pdf"},
	}
	svc.Adjudicate(context.Background(), snap, providerCfg, Options{})

	require.Len(t, gw.calls, 3)
	for _, i := range []int{0, 1} {
		user := gw.calls[i].messages[1]
		assert.Contains(t, user.Parts, img, "call %d", i)
		assert.Contains(t, user.Text(), "- contract.pdf (application/pdf)")
	}
	assert.Len(t, gw.calls[2].messages, 1, "bias check is text only")
}

func TestModels(t *testing.T) {
	j, c := Models(model.ProviderConfig{}, Options{})
	assert.Equal(t, DefaultModel, j)
	assert.Equal(t, DefaultModel, c)

	j, c = Models(model.ProviderConfig{JudgeModel: "a", CoJudgeModel: "b"}, Options{CoJudgeModel: " "})
	assert.Equal(t, "a", j)
	assert.Equal(t, "b", c)
}

func TestConfiguredTemperatureReachesGateway(t *testing.T) {
	for _, tc := range []struct {
		name string
		set  float64
		want float64
	}{
		{"zero is kept", 0, 0},
		{"explicit value", 1.2, 1.2},
		{"negative falls back", -1, DefaultTemperature},
	} {
		t.Run(tc.name, func(t *testing.T) {
			gw := &scriptedGateway{replies: []reply{{text: normalizedJSON}, {text: verdictJSON}, {text: biasPassJSON}}}
			svc := New(Config{
				Gateways:     &fixedSelector{gw: gw},
				Encoder:      fakeEncoder{},
				Retriever:    staticRetriever("Rule 1.1"),
				Temperature:  tc.set,
				StageTimeout: time.Second,
			}, testutil.TestLogger())

			svc.Adjudicate(context.Background(), snapshot, providerCfg, Options{})

			require.Len(t, gw.calls, 3)
			for _, c := range gw.calls {
				assert.Equal(t, tc.want, c.temperature)
			}
		})
	}
}

func TestNullCitationsAreAccepted(t *testing.T) {
	gw := &scriptedGateway{replies: []reply{
		{text: normalizedJSON},
		{text: `{"content":"In favor of Respondent","reasoning":"No breach shown.","citations":null}`},
		{text: biasPassJSON},
	}}
	svc, _ := newService(gw, staticRetriever("Rule 1.1"))

	res := svc.Adjudicate(context.Background(), snapshot, providerCfg, Options{})

	assert.False(t, res.Verdict.Failed)
	assert.Equal(t, model.OutcomeOK, res.Verdict.Outcome)
	assert.Equal(t, "In favor of Respondent", res.Verdict.Content)
	assert.NotNil(t, res.Verdict.Citations)
	assert.Empty(t, res.Verdict.Citations)
}
