// Package pdf reads uploaded PDF documents.
//
// We use the ledongthuc/pdf library both for plain-text extraction (fed to the
// LLM for ask-pdf, facts and podcast scripts) and for glyph positions (used
// by the headless viewer engine to search text and place highlights).
// It's a pure Go implementation, so the service stays a single binary.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNotPDF is returned for content that does not start with the PDF magic bytes.
var ErrNotPDF = errors.New("not a PDF document")

// ExtractionResult holds the text of one document.
type ExtractionResult struct {
	Text      string   // All pages joined with page markers
	Pages     []string // Text per page, index 0 is page 1
	PageCount int
	WordCount int
}

// Extract reads a PDF held in memory and extracts its text page by page.
//
// Go Pattern: the pdf library needs an io.ReaderAt for random access, and
// bytes.Reader gives us one over the uploaded blob without touching disk.
func Extract(data []byte) (res *ExtractionResult, err error) {
	if !ValidatePDF(data) {
		return nil, ErrNotPDF
	}
	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("failed to read PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	pageCount := reader.NumPage()
	pages := make([]string, 0, pageCount)
	var all strings.Builder
	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// image-only pages have no text; keep going
			pages = append(pages, "")
			continue
		}
		text = strings.TrimSpace(text)
		pages = append(pages, text)

		if i > 1 {
			fmt.Fprintf(&all, "\n--- Page %d ---\n", i)
		}
		all.WriteString(text)
	}

	extracted := strings.TrimSpace(all.String())
	return &ExtractionResult{
		Text:      extracted,
		Pages:     pages,
		PageCount: pageCount,
		WordCount: countWords(extracted),
	}, nil
}

// countWords counts whitespace-separated words.
func countWords(text string) int {
	return len(strings.Fields(text))
}

// ValidatePDF checks the "%PDF-" magic bytes.
func ValidatePDF(data []byte) bool {
	return len(data) >= 5 && string(data[:5]) == "%PDF-"
}
