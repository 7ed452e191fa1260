// Package extractor turns stored source documents into plain text. Formats
// are dispatched by filename extension with a magic-byte fallback, so a PDF
// uploaded as .bin still extracts.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/voronkovm/diagramflow/internal/core/domain"
	"github.com/voronkovm/diagramflow/internal/core/ports"
	"github.com/voronkovm/diagramflow/internal/infrastructure/extractor/markdown"
	"github.com/voronkovm/diagramflow/internal/infrastructure/extractor/pdf"
	"github.com/voronkovm/diagramflow/internal/infrastructure/extractor/plaintext"
	"github.com/voronkovm/diagramflow/internal/infrastructure/extractor/xlsx"
)

// Parser converts one document format's raw bytes into plain text. Parsers
// keep paragraph breaks where the format has them; the segmenter prefers
// those as split points.
type Parser interface {
	Parse(data []byte) (string, error)
}

type Registry struct {
	storage ports.ObjectStorage
	parsers map[string]Parser
}

func NewRegistry(storage ports.ObjectStorage) *Registry {
	r := &Registry{storage: storage, parsers: map[string]Parser{}}

	plain := plaintext.New()
	r.Register(".txt", plain)
	r.Register(".text", plain)
	r.Register(".log", plain)

	md := markdown.New()
	r.Register(".md", md)
	r.Register(".markdown", md)

	r.Register(".pdf", pdf.New())
	r.Register(".xlsx", xlsx.New())
	return r
}

func (r *Registry) Register(ext string, p Parser) {
	r.parsers[strings.ToLower(ext)] = p
}

func (r *Registry) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	reader, err := r.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}
	if len(data) == 0 {
		return "", errors.New("source document is empty")
	}

	parser, err := r.parserFor(doc, data)
	if err != nil {
		return "", err
	}

	text, err := parser.Parse(data)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", doc.Filename, err)
	}
	return text, nil
}

func (r *Registry) parserFor(doc *domain.Document, data []byte) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(doc.Filename))
	if p, ok := r.parsers[ext]; ok {
		return p, nil
	}
	if isPDF(data) {
		return r.parsers[".pdf"], nil
	}
	if strings.HasPrefix(strings.ToLower(doc.MimeType), "text/") {
		return r.parsers[".txt"], nil
	}
	return nil, fmt.Errorf("unsupported document format: ext=%q mime=%q", ext, doc.MimeType)
}

func isPDF(data []byte) bool {
	return len(data) >= 5 && string(data[:5]) == "%PDF-"
}
