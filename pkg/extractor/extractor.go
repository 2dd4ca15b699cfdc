// Package extractor turns a web resource (HTML page or PDF) into clean
// extracted text. Retrieval is a tiered strategy list, proxy channel first
// and then direct, iterated until the first success.
package extractor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lexwatch/lexwatch/internal/models"
	"github.com/lexwatch/lexwatch/internal/types"
)

type Config struct {
	ProxyURL  string // server-side fetch proxy; empty disables the proxy channel
	MaxLength int
	Timeout   time.Duration
	UserAgent string
	PDFReader types.PDFReader
}

type Extractor struct {
	config Config
	client *http.Client
}

func NewWithConfig(config Config) *Extractor {
	if config.MaxLength == 0 {
		config.MaxLength = 50000
	}
	if config.Timeout == 0 {
		config.Timeout = 25 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "Mozilla/5.0 (compatible; LexWatch/1.0)"
	}
	if config.PDFReader == nil {
		config.PDFReader = NewPDFReader()
	}

	return &Extractor{
		config: config,
		client: &http.Client{},
	}
}

// strategy is one retrieval channel. A returned error means the channel
// failed and the next one should be tried; a nil error means the result is
// final regardless of success.
type strategy struct {
	channel models.SourceChannel
	fetch   func(ctx context.Context, rawURL string, maxLength int) (models.ExtractionResult, error)
}

// Extract fetches rawURL and returns its extracted text, truncated to the
// configured maximum length.
func (e *Extractor) Extract(ctx context.Context, rawURL string) models.ExtractionResult {
	return e.ExtractWithLimit(ctx, rawURL, e.config.MaxLength)
}

// ExtractWithLimit is Extract with a per-call length cap.
func (e *Extractor) ExtractWithLimit(ctx context.Context, rawURL string, maxLength int) models.ExtractionResult {
	if strings.TrimSpace(rawURL) == "" {
		return models.ExtractionResult{Success: false, Error: "missing url"}
	}
	if maxLength <= 0 {
		maxLength = e.config.MaxLength
	}

	var strategies []strategy
	if e.config.ProxyURL != "" {
		strategies = append(strategies, strategy{models.ChannelProxy, e.proxyFetch})
	}
	strategies = append(strategies, strategy{models.ChannelDirect, e.directFetch})

	// Channel failures are remembered for diagnostics and surfaced only
	// when every channel is exhausted, preferring the direct-channel error.
	var proxyErr, directErr error
	for _, s := range strategies {
		attemptCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
		result, err := s.fetch(attemptCtx, rawURL, maxLength)
		cancel()
		if err == nil {
			result.SourceChannel = s.channel
			return result
		}
		if s.channel == models.ChannelProxy {
			proxyErr = err
		} else {
			directErr = err
		}
	}

	finalErr := directErr
	if finalErr == nil {
		finalErr = proxyErr
	}
	return models.ExtractionResult{Success: false, Error: finalErr.Error()}
}

// directFetch retrieves the resource without the proxy, routing to the PDF
// extractor when either the URL shape or the declared media type says so.
func (e *Extractor) directFetch(ctx context.Context, rawURL string, maxLength int) (models.ExtractionResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return models.ExtractionResult{}, fmt.Errorf("invalid url: %v", err)
	}
	req.Header.Set("User-Agent", e.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf,*/*")

	resp, err := e.client.Do(req)
	if err != nil {
		return models.ExtractionResult{}, fmt.Errorf("direct fetch failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.ExtractionResult{}, fmt.Errorf("direct fetch: status %d", resp.StatusCode)
	}

	mediaType := strings.ToLower(resp.Header.Get("Content-Type"))
	if looksLikePDF(rawURL) || strings.Contains(mediaType, "application/pdf") {
		content, err := e.extractPDFBody(resp)
		if err != nil {
			return models.ExtractionResult{}, err
		}
		return buildResult(content, models.ContentTypePDF, maxLength), nil
	}

	content, err := e.extractHTMLBody(resp)
	if err != nil {
		return models.ExtractionResult{}, err
	}
	return buildResult(content, models.ContentTypeHTML, maxLength), nil
}

// looksLikePDF checks the URL shape: extension, path segment, or query
// parameter indicating a PDF resource.
func looksLikePDF(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.Contains(strings.ToLower(rawURL), ".pdf")
	}
	path := strings.ToLower(u.Path)
	if strings.HasSuffix(path, ".pdf") || strings.Contains(path, "/pdf/") {
		return true
	}
	query := strings.ToLower(u.RawQuery)
	return strings.Contains(query, "pdf")
}

func buildResult(content string, contentType models.ContentType, maxLength int) models.ExtractionResult {
	originalLength := len(content)
	truncated, wasCut := truncate(content, maxLength)
	return models.ExtractionResult{
		Success:        true,
		Content:        truncated,
		ContentType:    contentType,
		Truncated:      wasCut,
		OriginalLength: originalLength,
	}
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) (string, bool) {
	if len(s) <= max {
		return s, false
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut], true
}
