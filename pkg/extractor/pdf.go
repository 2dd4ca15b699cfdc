package extractor

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/lexwatch/lexwatch/internal/types"
)

// maxPDFPages caps extraction for very long documents; a note is appended
// when the document has more pages.
const maxPDFPages = 50

func (e *Extractor) extractPDFBody(resp *http.Response) (string, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading pdf body: %v", err)
	}
	return extractPDFText(e.config.PDFReader, data)
}

// extractPDFText walks the text layer page by page. Pages yielding no text
// are skipped; each page's fragments are joined with single spaces under a
// page marker. Reader failures are soft: the caller reports a failed
// extraction result, never a panic.
func extractPDFText(reader types.PDFReader, data []byte) (string, error) {
	doc, err := reader.Open(data)
	if err != nil {
		return "", fmt.Errorf("content-extraction failed: %v", err)
	}

	total := doc.NumPages()
	limit := total
	if limit > maxPDFPages {
		limit = maxPDFPages
	}

	var pages []string
	for i := 1; i <= limit; i++ {
		fragments, err := doc.PageTexts(i)
		if err != nil || len(fragments) == 0 {
			continue
		}
		pages = append(pages, fmt.Sprintf("--- Page %d ---\n%s", i, strings.Join(fragments, " ")))
	}

	if len(pages) == 0 {
		return "", fmt.Errorf("content-extraction failed: no text layer")
	}
	if total > maxPDFPages {
		pages = append(pages, fmt.Sprintf("[Document has %d pages; showing first %d]", total, maxPDFPages))
	}
	return strings.Join(pages, "\n\n"), nil
}

// ledongReader is the default PDFReader backend.
type ledongReader struct{}

// NewPDFReader returns the default text-layer PDF reader.
func NewPDFReader() types.PDFReader {
	return ledongReader{}
}

func (ledongReader) Open(data []byte) (types.PDFDocument, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	return ledongDocument{r: r}, nil
}

type ledongDocument struct {
	r *pdf.Reader
}

func (d ledongDocument) NumPages() int {
	return d.r.NumPage()
}

// PageTexts recovers from parser panics on malformed content streams, which
// this library is known to raise on real-world documents.
func (d ledongDocument) PageTexts(page int) (fragments []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", page, r)
		}
	}()

	p := d.r.Page(page)
	if p.V.IsNull() {
		return nil, nil
	}
	for _, t := range p.Content().Text {
		if s := strings.TrimSpace(t.S); s != "" {
			fragments = append(fragments, s)
		}
	}
	return fragments, nil
}
