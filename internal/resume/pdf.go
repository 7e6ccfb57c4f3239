package resume

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
)

// DefaultExtractTimeout bounds a single PDF parse.
const DefaultExtractTimeout = 30 * time.Second

// ErrNoText means the document parsed but contained no extractable text.
var ErrNoText = errors.New("no text found in document")

// TextExtractor turns an uploaded document into plain text.
type TextExtractor interface {
	ExtractText(ctx context.Context, r io.Reader, uri string) (string, error)
}

// PDFExtractor extracts the full text of a PDF as one string.
type PDFExtractor struct {
	parser  *pdf.PDFParser
	timeout time.Duration
}

// NewPDFExtractor creates an extractor that does not split by page.
func NewPDFExtractor(ctx context.Context, timeout time.Duration) (*PDFExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{ToPages: false})
	if err != nil {
		return nil, fmt.Errorf("create pdf parser: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultExtractTimeout
	}
	return &PDFExtractor{parser: p, timeout: timeout}, nil
}

// ExtractText parses r and returns its trimmed text content.
func (e *PDFExtractor) ExtractText(ctx context.Context, r io.Reader, uri string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	docs, err := e.parser.Parse(ctx, r, einoParser.WithURI(uri))
	if err != nil {
		return "", fmt.Errorf("parse pdf %s: %w", uri, err)
	}

	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		if c := strings.TrimSpace(doc.Content); c != "" {
			parts = append(parts, c)
		}
	}
	text := strings.Join(parts, "\n")
	slog.Debug("pdf parsed", "uri", uri, "documents", len(docs), "chars", len(text), "elapsed", time.Since(start))
	if text == "" {
		return "", fmt.Errorf("%s: %w", uri, ErrNoText)
	}
	return text, nil
}

// PlainText reads the document as UTF-8 text.
type PlainText struct{}

// ExtractText implements TextExtractor.
func (PlainText) ExtractText(_ context.Context, r io.Reader, uri string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", uri, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("%s: %w", uri, ErrNoText)
	}
	return text, nil
}

// ForName picks an extractor by file name: PDFs go through pdfExtractor, anything
// else is read as plain text.
func ForName(name string, pdfExtractor TextExtractor) TextExtractor {
	if strings.HasSuffix(strings.ToLower(name), ".pdf") && pdfExtractor != nil {
		return pdfExtractor
	}
	return PlainText{}
}
