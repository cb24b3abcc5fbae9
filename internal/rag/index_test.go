package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	pages []string
	err   error
	calls atomic.Int32
	gate  chan struct{}
}

func (f *fakeSource) Pages(_ context.Context) ([]string, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.pages, nil
}

func TestSplit(t *testing.T) {
	got := Split([]string{"Intro line\n\nRule one", "Rule two\n  \nRule three"})
	want := []string{"Intro line", "Rule one\nRule two", "Rule three\n"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Split mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, Split(nil))
	assert.Empty(t, Split([]string{"", "  "}))
}

func TestTerms(t *testing.T) {
	got := Terms("The seller never shipped the Laptop, the seller lied")
	want := []string{"seller", "never", "shipped", "laptop,", "seller", "lied"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Terms mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, Terms("a an the of"))
}

func TestRankTopFiveByScoreWithStableTies(t *testing.T) {
	paras := []string{
		"p0 refund",                   // 1
		"p1 nothing relevant",         // 0
		"p2 refund delivery",          // 2
		"p3 refund",                   // 1
		"p4 delivery refund warranty", // 3
		"p5 refund",                   // 1
		"p6 refund",                   // 1
	}
	got := Rank(paras, "refund delivery warranty")
	want := []string{
		"p4 delivery refund warranty",
		"p2 refund delivery",
		"p0 refund",
		"p3 refund",
		"p5 refund",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Rank mismatch (-want +got):\n%s", diff)
	}
}

func TestRankRepeatedTermsCountTwice(t *testing.T) {
	paras := []string{"delivery and warranty terms", "refund refund"}
	// Each query occurrence adds one: both paragraphs score 2 and keep order.
	got := Rank(paras, "refund refund delivery warranty")
	assert.Equal(t, []string{"delivery and warranty terms", "refund refund"}, got)

	got = Rank(paras, "refund refund refund delivery")
	assert.Equal(t, "refund refund", got[0])
}

func TestRankFallbackFirstThree(t *testing.T) {
	paras := []string{"a", "b", "c", "d"}
	assert.Equal(t, []string{"a", "b", "c"}, Rank(paras, "zzzz yyyy"))
	assert.Equal(t, []string{"a", "b"}, Rank(paras[:2], "zzzz"))
	// Short tokens are not terms, so nothing scores.
	assert.Equal(t, []string{"a", "b", "c"}, Rank(paras, "a b c"))
}

func TestRetrieveLoadsOnceAndIsIdempotent(t *testing.T) {
	src := &fakeSource{pages: []string{"Refund policy applies.\n\nShipping rules.\n\nWarranty clause."}}
	ix := NewIndex(src, nil)
	assert.Equal(t, StateUnloaded, ix.State())

	first := ix.Retrieve(context.Background(), "refund request")
	second := ix.Retrieve(context.Background(), "refund request")
	assert.Equal(t, "Refund policy applies.", first)
	assert.Equal(t, first, second)
	assert.Equal(t, StateLoaded, ix.State())
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestConcurrentFirstLoadReadsSourceOnce(t *testing.T) {
	src := &fakeSource{pages: []string{"one\n\ntwo"}, gate: make(chan struct{})}
	ix := NewIndex(src, nil)

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = ix.Retrieve(context.Background(), "nothing matches here")
		}(i)
	}
	// Let the goroutines pile up behind the first load.
	for src.calls.Load() == 0 {
		runtime.Gosched()
	}
	close(src.gate)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	for _, r := range results {
		assert.Equal(t, "one\n\ntwo\n", r)
	}
}

func TestRetrieveHonorsCallerDeadlineWhileLoadContinues(t *testing.T) {
	src := &fakeSource{pages: []string{"refund rules"}, gate: make(chan struct{})}
	ix := NewIndex(src, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	assert.Equal(t, "", ix.Retrieve(ctx, "refund"))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, StateUnloaded, ix.State())

	// The abandoned read finishes for the next caller.
	close(src.gate)
	assert.Equal(t, "refund rules\n", ix.Retrieve(context.Background(), "refund"))
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestLoadFailureStaysUnloadedAndRetries(t *testing.T) {
	src := &fakeSource{err: errors.New("disk gone")}
	ix := NewIndex(src, nil)

	assert.Equal(t, "", ix.Retrieve(context.Background(), "refund"))
	assert.Equal(t, StateUnloaded, ix.State())

	src.err = nil
	src.pages = []string{"refund rules"}
	assert.Equal(t, "refund rules\n", ix.Retrieve(context.Background(), "refund"))
	assert.Equal(t, StateLoaded, ix.State())
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestEmptyDocumentYieldsEmptyContext(t *testing.T) {
	ix := NewIndex(&fakeSource{pages: []string{"", ""}}, nil)
	assert.Equal(t, "", ix.Retrieve(context.Background(), "refund"))
	assert.Equal(t, StateLoaded, ix.State())
}

func TestTextSourceAndSourceFor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.txt")
	require.NoError(t, os.WriteFile(path, []byte("page one\fpage two"), 0o600))

	src := SourceFor(path, 5)
	require.IsType(t, TextSource{}, src)
	pages, err := src.Pages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"page one", "page two"}, pages)

	assert.IsType(t, PDFSource{}, SourceFor("guides/Policy.PDF", 5))
}

func TestPDFSourceMissingFile(t *testing.T) {
	_, err := PDFSource{Path: filepath.Join(t.TempDir(), "missing.pdf")}.Pages(context.Background())
	require.Error(t, err)
}

func TestBuildContextAndGuidelines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "standard-rules.md")
	require.NoError(t, os.WriteFile(path, []byte("Rule 1: be fair"), 0o600))
	g, err := LoadGuidelines(path)
	require.NoError(t, err)

	got := BuildContext(g, "excerpt")
	assert.Equal(t, "Standard Arbitration Rules:\nRule 1: be fair\n\nAdditional Policy Guidelines (RAG Retrieved):\nexcerpt", got)

	_, err = LoadGuidelines(filepath.Join(t.TempDir(), "nope.md"))
	require.Error(t, err)
}
