// Package feed ingests RSS/Atom feeds from EU institutions and normalizes
// their entries into document items: keyword filtering, taxonomy
// categorization, and friendly source naming by feed host.
package feed

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"github.com/lexwatch/lexwatch/internal/models"
	"github.com/lexwatch/lexwatch/pkg/config"
)

const maxSummaryLength = 500

// sourceNames maps feed host fragments to friendly source labels.
var sourceNames = []struct {
	host string
	name string
}{
	{"eur-lex.europa.eu", "EUR-Lex"},
	{"ecb.europa.eu", "ECB"},
	{"eba.europa.eu", "EBA"},
	{"eiopa.europa.eu", "EIOPA"},
	{"esma.europa.eu", "ESMA"},
	{"edpb.europa.eu", "EDPB"},
	{"europarl.europa.eu", "European Parliament"},
	{"consilium.europa.eu", "Council of the EU"},
	{"ec.europa.eu", "European Commission"},
}

type FetcherConfig struct {
	Keywords   []string
	Taxonomy   []config.Category
	MaxPerFeed int
	RateLimit  float64 // feed fetches per second
}

type Fetcher struct {
	config  FetcherConfig
	parser  *gofeed.Parser
	limiter *rate.Limiter
}

func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.MaxPerFeed == 0 {
		cfg.MaxPerFeed = 50
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 2.0
	}
	return &Fetcher{
		config:  cfg,
		parser:  gofeed.NewParser(),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
	}
}

// Fetch retrieves one feed and returns its entries as normalized items.
// Entries with no URL or no keyword match are dropped.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]models.DocumentItem, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", SourceName(feedURL), err)
	}

	source := SourceName(feedURL)
	now := time.Now()

	entries := feed.Items
	if len(entries) > f.config.MaxPerFeed {
		entries = entries[:f.config.MaxPerFeed]
	}

	items := make([]models.DocumentItem, 0, len(entries))
	for _, entry := range entries {
		if entry.Link == "" {
			continue
		}

		summary := entry.Description
		if summary == "" {
			summary = entry.Content
		}
		summary = truncate(stripHTML(summary), maxSummaryLength)

		text := entry.Title + " " + summary
		if len(f.config.Keywords) > 0 && countKeywords(text, f.config.Keywords) == 0 {
			continue
		}

		pub := now
		if entry.PublishedParsed != nil {
			pub = *entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			pub = *entry.UpdatedParsed
		}

		categories := categorize(text, f.config.Taxonomy)
		items = append(items, models.DocumentItem{
			ID:         itemID(entry.Link),
			Source:     source,
			URL:        entry.Link,
			Title:      entry.Title,
			Summary:    summary,
			Published:  pub,
			Tags:       tagsFor(source, categories),
			Categories: categories,
		})
	}
	return items, nil
}

type FetchResult struct {
	Items  []models.DocumentItem
	Errors []error
}

// FetchAll fetches every feed concurrently, deduplicates by URL, and
// returns the merged items newest first. Per-feed failures are collected,
// never fatal.
func (f *Fetcher) FetchAll(ctx context.Context, feedURLs []string) FetchResult {
	var (
		mu     sync.Mutex
		result FetchResult
		wg     sync.WaitGroup
	)

	for _, feedURL := range feedURLs {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			items, err := f.Fetch(ctx, u)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, err)
				return
			}
			result.Items = append(result.Items, items...)
		}(feedURL)
	}
	wg.Wait()

	seen := make(map[string]bool, len(result.Items))
	deduped := result.Items[:0]
	for _, item := range result.Items {
		if seen[item.URL] {
			continue
		}
		seen[item.URL] = true
		deduped = append(deduped, item)
	}
	result.Items = deduped

	sort.SliceStable(result.Items, func(i, j int) bool {
		return result.Items[i].Published.After(result.Items[j].Published)
	})
	return result
}

// SourceName maps a feed URL to a friendly source label.
func SourceName(feedURL string) string {
	host := feedURL
	if u, err := url.Parse(feedURL); err == nil && u.Host != "" {
		host = u.Host
	}
	for _, s := range sourceNames {
		if strings.Contains(host, s.host) {
			return s.name
		}
	}
	return "Other"
}

func countKeywords(text string, keywords []string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			n++
		}
	}
	return n
}

// categorize assigns every taxonomy category whose include patterns appear
// in the text; items matching nothing land in "Other".
func categorize(text string, taxonomy []config.Category) []string {
	lower := strings.ToLower(text)
	var categories []string
	for _, cat := range taxonomy {
		if cat.Name == "Other" {
			continue
		}
		for _, pattern := range cat.Include {
			if strings.Contains(lower, strings.ToLower(pattern)) {
				categories = append(categories, cat.Name)
				break
			}
		}
	}
	if len(categories) == 0 {
		categories = []string{"Other"}
	}
	return categories
}

func tagsFor(source string, categories []string) []string {
	tags := make([]string, len(categories), len(categories)+1)
	copy(tags, categories)
	for _, c := range categories {
		if c == source {
			return tags
		}
	}
	return append(tags, source)
}

func itemID(link string) string {
	h := sha256.Sum256([]byte(link))
	return fmt.Sprintf("%x", h[:8])
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
