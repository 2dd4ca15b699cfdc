// Package analysis assembles the bounded text context handed to the
// downstream language model, and hosts the model client itself.
package analysis

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/lexwatch/lexwatch/internal/models"
	"github.com/lexwatch/lexwatch/pkg/reference"
)

// Fetcher retrieves full text for one related document. The content
// extractor satisfies this.
type Fetcher interface {
	ExtractWithLimit(ctx context.Context, url string, maxLength int) models.ExtractionResult
}

type BuilderConfig struct {
	Fetcher     Fetcher
	Concurrency int // parallel content fetches; ranking order is preserved on join
}

type Builder struct {
	config BuilderConfig
}

func NewBuilder(config BuilderConfig) *Builder {
	if config.Concurrency <= 0 {
		config.Concurrency = 3
	}
	return &Builder{config: config}
}

type ContextOptions struct {
	FetchContent     bool
	MaxContentPerDoc int
	MaxSummaryLength int
}

const blockSeparator = "\n\n---\n\n"

// BuildContext renders one block per match, in ranking order, and returns
// the concatenated context plus the same metadata in structured form. A
// failed content fetch degrades that block to metadata only; it never
// aborts the batch.
func (b *Builder) BuildContext(ctx context.Context, matches []models.RelatedMatch, opts ContextOptions) models.ContextResult {
	if opts.MaxContentPerDoc <= 0 {
		opts.MaxContentPerDoc = 10000
	}
	if opts.MaxSummaryLength <= 0 {
		opts.MaxSummaryLength = 500
	}

	docs := make([]models.DocumentSummary, len(matches))
	for i, m := range matches {
		item := m.Candidate
		docs[i] = models.DocumentSummary{
			Position:     i + 1,
			Relationship: m.Relationship,
			Title:        item.Title,
			URL:          item.URL,
			Summary:      truncateText(item.Summary, opts.MaxSummaryLength),
			References:   reference.ExtractReferences(item.Text()),
		}
		if !item.Published.IsZero() {
			docs[i].Date = item.Published.Format("2006-01-02")
		}
	}

	if opts.FetchContent && b.config.Fetcher != nil {
		g, fetchCtx := errgroup.WithContext(ctx)
		g.SetLimit(b.config.Concurrency)
		for i := range docs {
			if docs[i].URL == "" {
				continue
			}
			i := i
			g.Go(func() error {
				result := b.config.Fetcher.ExtractWithLimit(fetchCtx, docs[i].URL, opts.MaxContentPerDoc)
				if result.Success {
					docs[i].Content = result.Content
				}
				return nil
			})
		}
		g.Wait()
	}

	blocks := make([]string, len(docs))
	for i, doc := range docs {
		blocks[i] = renderBlock(doc)
	}

	return models.ContextResult{
		Context:   strings.Join(blocks, blockSeparator),
		Documents: docs,
	}
}

func renderBlock(doc models.DocumentSummary) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "[%d] %s — %s\n", doc.Position, doc.Relationship, doc.Title)
	if doc.Date != "" {
		fmt.Fprintf(&sb, "Date: %s\n", doc.Date)
	}
	if doc.URL != "" {
		fmt.Fprintf(&sb, "URL: %s\n", doc.URL)
	}
	if doc.Summary != "" {
		fmt.Fprintf(&sb, "Summary: %s\n", doc.Summary)
	}
	if len(doc.References) > 0 {
		fmt.Fprintf(&sb, "References: %s\n", strings.Join(doc.References, ", "))
	}
	if doc.Content != "" {
		fmt.Fprintf(&sb, "Content:\n%s\n", doc.Content)
	}

	return strings.TrimRight(sb.String(), "\n")
}

func truncateText(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
