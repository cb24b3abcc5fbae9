package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DefaultMaxPages bounds how much of the reference document is indexed.
const DefaultMaxPages = 20

// Source yields the reference document's text one page at a time.
type Source interface {
	Pages(ctx context.Context) ([]string, error)
}

// PDFSource reads the first MaxPages pages of a PDF.
type PDFSource struct {
	Path     string
	MaxPages int
}

// Pages implements Source.
func (s PDFSource) Pages(ctx context.Context) ([]string, error) {
	f, r, err := pdf.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("rag: open pdf %s: %w", s.Path, err)
	}
	defer func() { _ = f.Close() }()

	limit := s.MaxPages
	if limit <= 0 {
		limit = DefaultMaxPages
	}
	limit = min(limit, r.NumPage())

	pages := make([]string, 0, limit)
	for i := 1; i <= limit; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("rag: extract page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// TextSource reads a plain-text reference document. Form feeds separate pages.
type TextSource struct {
	Path string
}

// Pages implements Source.
func (s TextSource) Pages(_ context.Context) ([]string, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("rag: read %s: %w", s.Path, err)
	}
	return strings.Split(string(b), "\f"), nil
}

// SourceFor picks a Source by file extension.
func SourceFor(path string, maxPages int) Source {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return PDFSource{Path: path, MaxPages: maxPages}
	}
	return TextSource{Path: path}
}

