package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/lexwatch/lexwatch/internal/models"
)

// proxyResponse is the wire contract of the server-side fetch proxy.
type proxyResponse struct {
	Success        bool   `json:"success"`
	Content        string `json:"content"`
	Type           string `json:"type"`
	OriginalLength int    `json:"originalLength"`
	Error          string `json:"error"`
}

// proxyFetch requests the resource through the configured fetch proxy. The
// proxy returns already-extracted text. Transport failures and application
// level failures both make the caller fall through to the direct channel,
// with distinguishable diagnostics.
func (e *Extractor) proxyFetch(ctx context.Context, rawURL string, maxLength int) (models.ExtractionResult, error) {
	proxyURL := e.config.ProxyURL + "?url=" + url.QueryEscape(rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, proxyURL, nil)
	if err != nil {
		return models.ExtractionResult{}, fmt.Errorf("proxy request: %v", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return models.ExtractionResult{}, errors.New("proxy timeout")
		}
		return models.ExtractionResult{}, fmt.Errorf("proxy unreachable: %v", err)
	}
	defer resp.Body.Close()

	var decoded proxyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return models.ExtractionResult{}, fmt.Errorf("proxy response: %v", err)
	}
	if !decoded.Success {
		if decoded.Error == "" {
			decoded.Error = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return models.ExtractionResult{}, fmt.Errorf("proxy: %s", decoded.Error)
	}

	contentType := models.ContentTypeHTML
	if decoded.Type == "pdf" {
		contentType = models.ContentTypePDF
	}

	result := buildResult(decoded.Content, contentType, maxLength)
	// The proxy may have truncated before us; keep the larger original.
	if decoded.OriginalLength > result.OriginalLength {
		result.OriginalLength = decoded.OriginalLength
		result.Truncated = result.OriginalLength > len(result.Content)
	}
	return result, nil
}
