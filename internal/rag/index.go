// Package rag retrieves reference-document passages relevant to a dispute.
//
// The index is built once from the first pages of the reference document and
// is read-only afterwards. Retrieval is keyword overlap, not embeddings.
package rag

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const (
	topK          = 5
	fallbackCount = 3
	minTermRunes  = 4
)

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// State is the index lifecycle state. The only transition is Unloaded to Loaded.
type State int

const (
	StateUnloaded State = iota
	StateLoaded
)

func (s State) String() string {
	if s == StateLoaded {
		return "loaded"
	}
	return "unloaded"
}

// Index is the paragraph cache over a reference document.
type Index struct {
	source Source
	logger *slog.Logger
	tracer trace.Tracer

	group      singleflight.Group
	paragraphs atomic.Pointer[[]string]
}

// NewIndex creates an unloaded index over source.
func NewIndex(source Source, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{source: source, logger: logger, tracer: otel.Tracer("edai/rag")}
}

// State reports whether the paragraph cache has been populated.
func (ix *Index) State() State {
	if ix.paragraphs.Load() != nil {
		return StateLoaded
	}
	return StateUnloaded
}

// Paragraphs returns the cached paragraphs, or nil while unloaded.
func (ix *Index) Paragraphs() []string {
	if p := ix.paragraphs.Load(); p != nil {
		return *p
	}
	return nil
}

// Load populates the cache. Concurrent first calls share one read of the
// source. A failed load leaves the index unloaded so the next call retries.
// A caller whose ctx ends returns ctx.Err() while the shared read continues
// for later callers.
func (ix *Index) Load(ctx context.Context) error {
	if ix.paragraphs.Load() != nil {
		return nil
	}
	ch := ix.group.DoChan("load", func() (any, error) {
		if ix.paragraphs.Load() != nil {
			return nil, nil
		}
		// Detached so one caller's cancellation does not fail every waiter.
		pages, err := ix.source.Pages(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		paras := Split(pages)
		ix.paragraphs.Store(&paras)
		ix.logger.Info("rag: reference document indexed", "pages", len(pages), "paragraphs", len(paras))
		return nil, nil
	})
	select {
	case r := <-ch:
		return r.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Split joins pages (each followed by a newline) and splits on blank lines.
func Split(pages []string) []string {
	var b strings.Builder
	for _, p := range pages {
		b.WriteString(p)
		b.WriteByte('\n')
	}
	full := b.String()
	if strings.TrimSpace(full) == "" {
		return []string{}
	}
	return paragraphBreak.Split(full, -1)
}

// Retrieve returns the paragraphs most relevant to query joined by blank
// lines. It returns "" when the reference document cannot be loaded.
func (ix *Index) Retrieve(ctx context.Context, query string) string {
	ctx, span := ix.tracer.Start(ctx, "rag.retrieve")
	defer span.End()

	if err := ix.Load(ctx); err != nil {
		ix.logger.Warn("rag: reference document unavailable", "error", err)
		span.RecordError(err)
		return ""
	}
	paras := ix.Paragraphs()
	if len(paras) == 0 {
		return ""
	}
	out := Rank(paras, query)
	span.SetAttributes(attribute.Int("rag.paragraphs", len(paras)), attribute.Int("rag.selected", len(out)))
	return strings.Join(out, "\n\n")
}

// Terms returns the lowercased whitespace-separated tokens of query longer
// than three characters, repeats included.
func Terms(query string) []string {
	var terms []string
	for _, t := range strings.Fields(strings.ToLower(query)) {
		if utf8.RuneCountInString(t) >= minTermRunes {
			terms = append(terms, t)
		}
	}
	return terms
}

type scored struct {
	text  string
	score int
}

// Rank selects up to five paragraphs with a positive score, best first,
// ties in document order. With no matches it falls back to the first three
// paragraphs.
func Rank(paragraphs []string, query string) []string {
	terms := Terms(query)
	all := make([]scored, len(paragraphs))
	for i, p := range paragraphs {
		lower := strings.ToLower(p)
		s := 0
		for _, t := range terms {
			if strings.Contains(lower, t) {
				s++
			}
		}
		all[i] = scored{text: p, score: s}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })

	var out []string
	for _, s := range all[:min(topK, len(all))] {
		if s.score > 0 {
			out = append(out, s.text)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), paragraphs[:min(fallbackCount, len(paragraphs))]...)
	}
	return out
}
