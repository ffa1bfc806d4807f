// Package extract provides page extraction from documents on disk. The
// extraction internals are an opaque boundary: the rest of the pipeline only
// sees ordered per-page text.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pdfsearch/internal/domain"
)

// TextExtractor reads plain-text documents. Form feeds (\f) act as page
// separators; a document without form feeds is a single page.
type TextExtractor struct{}

// NewTextExtractor creates a plain-text page extractor.
func NewTextExtractor() *TextExtractor { return &TextExtractor{} }

// Supports reports whether the file looks like a plain-text document.
func (e *TextExtractor) Supports(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".text":
		return true
	}
	return false
}

// ExtractPages returns the non-empty pages of the document in order,
// numbered from 1.
func (e *TextExtractor) ExtractPages(path string) ([]domain.Page, error) {
	if !e.Supports(path) {
		return nil, fmt.Errorf("unsupported document type: %s", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var pages []domain.Page
	for i, text := range strings.Split(string(data), "\f") {
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, domain.Page{Number: i + 1, Text: text})
	}
	return pages, nil
}
