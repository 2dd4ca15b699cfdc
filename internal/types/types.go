package types

import (
	"context"

	"github.com/lexwatch/lexwatch/internal/models"
)

// PDFDocument is an open PDF with a text layer. Pages are 1-based.
type PDFDocument interface {
	NumPages() int
	PageTexts(page int) ([]string, error)
}

// PDFReader opens a PDF document from raw bytes. Extraction logic depends
// only on this surface so the backing library stays swappable.
type PDFReader interface {
	Open(data []byte) (PDFDocument, error)
}

// Analyzer consumes an item plus its assembled context and returns prose.
type Analyzer interface {
	Analyze(ctx context.Context, item models.DocumentItem, contextText string) (string, error)
	AnalyzeStream(ctx context.Context, item models.DocumentItem, contextText string) (<-chan string, error)
}
