// Package evidence turns uploaded evidence files into inline image parts for
// multimodal model calls.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/manthanabc/EDAI-5/internal/llm"
	"github.com/manthanabc/EDAI-5/internal/model"
)

// DefaultMIMEType is assumed when a document carries no type hint.
const DefaultMIMEType = "image/jpeg"

// DefaultMaxBytes caps the size of a single evidence file.
const DefaultMaxBytes = 10 << 20

const readConcurrency = 4

var errTooLarge = errors.New("evidence: file exceeds size limit")

// Encoder reads evidence files beneath a root directory.
type Encoder struct {
	root     string
	maxBytes int64
	logger   *slog.Logger
}

// NewEncoder creates an Encoder rooted at root.
func NewEncoder(root string, maxBytes int64, logger *slog.Logger) *Encoder {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Encoder{root: root, maxBytes: maxBytes, logger: logger}
}

// Encode returns one inline image part per readable image document, in
// document order. Unreadable, missing, oversized, and non-image documents
// are logged and skipped; Encode never fails.
func (e *Encoder) Encode(ctx context.Context, docs []model.EvidenceDocument) []llm.ContentPart {
	if len(docs) == 0 {
		return []llm.ContentPart{}
	}

	root, err := os.OpenRoot(e.root)
	if err != nil {
		e.logger.Warn("evidence: root unavailable, skipping all documents", "root", e.root, "error", err)
		return []llm.ContentPart{}
	}
	defer func() { _ = root.Close() }()

	slots := make([]*llm.ContentPart, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)
	for i, doc := range docs {
		mt := MIMEType(doc)
		if !strings.HasPrefix(mt, "image/") {
			e.logger.Debug("evidence: skipping non-image document", "name", doc.DisplayName, "type", mt)
			continue
		}
		g.Go(func() error {
			data, err := e.read(gctx, root, doc.URL)
			if err != nil {
				e.logger.Warn("evidence: skipping unreadable document", "name", doc.DisplayName, "url", doc.URL, "error", err)
				return nil
			}
			part := llm.ImagePart(mt, data)
			slots[i] = &part
			return nil
		})
	}
	_ = g.Wait()

	parts := make([]llm.ContentPart, 0, len(docs))
	for _, p := range slots {
		if p != nil {
			parts = append(parts, *p)
		}
	}
	return parts
}

func (e *Encoder) read(ctx context.Context, root *os.Root, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := root.Open(strings.TrimPrefix(url, "/"))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, e.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if int64(len(data)) > e.maxBytes {
		return nil, errTooLarge
	}
	return data, nil
}

// MIMEType returns the document's media type, lowercased and without
// parameters, defaulting to image/jpeg.
func MIMEType(doc model.EvidenceDocument) string {
	hint := strings.TrimSpace(doc.MimeTypeHint)
	if hint == "" {
		return DefaultMIMEType
	}
	if mt, _, err := mime.ParseMediaType(hint); err == nil {
		return mt
	}
	return strings.ToLower(hint)
}

// Listing renders the metadata lines shown to the model alongside images.
func Listing(docs []model.EvidenceDocument) string {
	if len(docs) == 0 {
		return "No evidence uploaded."
	}
	lines := make([]string, len(docs))
	for i, d := range docs {
		lines[i] = fmt.Sprintf("- %s (%s)", d.DisplayName, d.MimeTypeHint)
	}
	return strings.Join(lines, "\n")
}
