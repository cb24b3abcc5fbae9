package integrity

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/manthanabc/EDAI-5/internal/model"
)

func sampleVerdict() model.Verdict {
	return model.Verdict{
		ID:              uuid.New(),
		CaseID:          uuid.MustParse("6f1c2d3e-0000-4000-8000-000000000001"),
		Content:         "In favor of Claimant",
		Reasoning:       "The receipt | shows payment.",
		Citations:       []string{"Rule 1.1", "Rule 2.2"},
		Confidence:      0.9,
		PassedBiasCheck: true,
		BiasReasoning:   "No fallacies.",
		JudgeModel:      "google/gemini-2.0-flash-lite-preview",
		CoJudgeModel:    "google/gemini-2.0-flash-lite-preview",
		CreatedAt:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestVerdictHash_Deterministic(t *testing.T) {
	v := sampleVerdict()
	h1, err := VerdictHash(v)
	if err != nil {
		t.Fatal(err)
	}
	v.ID = uuid.New() // the row id is not covered
	h2, err := VerdictHash(v)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatalf("hash not deterministic: %q != %q", h1, h2)
	}
	if !strings.HasPrefix(h1, "v1:") || len(h1) != 3+64 {
		t.Fatalf("unexpected hash format: %q", h1)
	}
}

func TestVerdictHash_NilAndEmptyCitationsMatch(t *testing.T) {
	a := sampleVerdict()
	a.Citations = nil
	b := sampleVerdict()
	b.Citations = []string{}
	ha, _ := VerdictHash(a)
	hb, _ := VerdictHash(b)
	if ha != hb {
		t.Fatal("nil and empty citations should hash identically")
	}
}

func TestVerdictHash_TimezoneInsensitive(t *testing.T) {
	a := sampleVerdict()
	b := sampleVerdict()
	b.CreatedAt = a.CreatedAt.In(time.FixedZone("IST", 5*3600+1800))
	ha, _ := VerdictHash(a)
	hb, _ := VerdictHash(b)
	if ha != hb {
		t.Fatal("same instant in different zones should hash identically")
	}
}

func TestVerifyVerdictHash(t *testing.T) {
	v := sampleVerdict()
	h, err := VerdictHash(v)
	if err != nil {
		t.Fatal(err)
	}
	v.ContentHash = h
	if !VerifyVerdictHash(v) {
		t.Fatal("verification should succeed for matching hash")
	}

	tampered := v
	tampered.Content = "In favor of Respondent"
	if VerifyVerdictHash(tampered) {
		t.Fatal("verification should fail for altered content")
	}

	tampered = v
	tampered.Citations = []string{"Rule 1.1"}
	if VerifyVerdictHash(tampered) {
		t.Fatal("verification should fail for altered citations")
	}

	v.ContentHash = "tampered_hash"
	if VerifyVerdictHash(v) {
		t.Fatal("verification should fail for tampered hash")
	}
}

func TestBuildMerkleRoot_Empty(t *testing.T) {
	root := BuildMerkleRoot(nil)
	if root != "" {
		t.Fatalf("empty input should produce empty root, got %q", root)
	}
}

func TestBuildMerkleRoot_SingleLeaf(t *testing.T) {
	leaf := "abc123"
	root := BuildMerkleRoot([]string{leaf})
	if root != leaf {
		t.Fatalf("single leaf should be the root: got %q, want %q", root, leaf)
	}
}

func TestBuildMerkleRoot_OrderMatters(t *testing.T) {
	r1 := BuildMerkleRoot([]string{"a", "b", "c"})
	r2 := BuildMerkleRoot([]string{"b", "a", "c"})
	if r1 == r2 {
		t.Fatal("different leaf ordering should produce different roots")
	}
	if len(r1) != 64 {
		t.Fatalf("expected 64-char hex SHA-256 root, got %d chars", len(r1))
	}
}

func TestVerdictChainRootUsesCreationOrder(t *testing.T) {
	newest := model.Verdict{ContentHash: "v1:b"}
	oldest := model.Verdict{ContentHash: "v1:a"}
	got := VerdictChainRoot([]model.Verdict{newest, oldest})
	want := BuildMerkleRoot([]string{"v1:a", "v1:b"})
	if got != want {
		t.Fatalf("chain root = %q, want %q", got, want)
	}
	if VerdictChainRoot(nil) != "" {
		t.Fatal("no verdicts should produce empty root")
	}
}
