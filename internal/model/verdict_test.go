package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestDispositionFor(t *testing.T) {
	tests := []struct {
		name string
		in   VerdictResult
		want Disposition
	}{
		{"failed verdict", VerdictResult{Failed: true, PassedBiasCheck: true}, DispositionNeedsReview},
		{"failed verdict and bias", VerdictResult{Failed: true, PassedBiasCheck: false}, DispositionNeedsReview},
		{"bias check failed", VerdictResult{PassedBiasCheck: false}, DispositionEscalated},
		{"clean", VerdictResult{PassedBiasCheck: true}, DispositionResolved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DispositionFor(tt.in); got != tt.want {
				t.Fatalf("DispositionFor = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDispositionStatus(t *testing.T) {
	if got := DispositionResolved.Status(CaseStatusOpen); got != CaseStatusResolved {
		t.Fatalf("resolved -> %q", got)
	}
	if got := DispositionEscalated.Status(CaseStatusOpen); got != CaseStatusEscalated {
		t.Fatalf("escalated -> %q", got)
	}
	if got := DispositionNeedsReview.Status(CaseStatusAIReviewed); got != CaseStatusAIReviewed {
		t.Fatalf("needs_review should keep current status, got %q", got)
	}
}

func TestNormalizedAnalysisMarshalEmpty(t *testing.T) {
	b, err := json.Marshal(NormalizedAnalysis{})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"claimantArguments":[],"respondentArguments":[]}`
	if string(b) != want {
		t.Fatalf("got %s, want %s", b, want)
	}
}

func TestProviderConfigMerge(t *testing.T) {
	base := ProviderConfig{Provider: ProviderOpenRouter, APIKey: "env-key", JudgeModel: "a/judge"}
	got := base.Merge(ProviderConfig{APIKey: "  ", CoJudgeModel: "b/co"})
	if got.APIKey != "env-key" {
		t.Fatalf("blank key must not override, got %q", got.APIKey)
	}
	if got.JudgeModel != "a/judge" || got.CoJudgeModel != "b/co" {
		t.Fatalf("unexpected models: %+v", got)
	}
}

func TestRedactKey(t *testing.T) {
	if got := RedactKey(""); got != "" {
		t.Fatalf("empty key: %q", got)
	}
	if got := RedactKey("short"); got != "*****" {
		t.Fatalf("short key: %q", got)
	}
	if got := RedactKey("AIzaSyABCDEFGHIJKL1234"); got != "AIza"+strings.Repeat("*", 14)+"1234" {
		t.Fatalf("long key: %q", got)
	}
}

func TestCaseSnapshotIsIndependent(t *testing.T) {
	c := Case{
		ID:                  uuid.New(),
		Title:               "t",
		ClaimantDescription: "d",
		Documents:           []EvidenceDocument{{URL: "/a.png"}},
	}
	snap := c.Snapshot()
	c.Documents[0].URL = "/changed.png"
	if snap.Documents[0].URL != "/a.png" {
		t.Fatal("snapshot shares document storage with the case")
	}
}

func TestValidateCase(t *testing.T) {
	if err := ValidateCase(Case{Title: "t", ClaimantDescription: "d"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateCase(Case{ClaimantDescription: "d"}); err == nil {
		t.Fatal("expected error for missing title")
	}
	if err := ValidateCase(Case{Title: "t", ClaimantDescription: "d", Documents: []EvidenceDocument{{}}}); err == nil {
		t.Fatal("expected error for document without url")
	}
}
