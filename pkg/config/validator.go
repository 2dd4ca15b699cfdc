package config

import (
	"fmt"
	"net/url"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	if c.LLM.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "Ollama base URL is required",
		})
	} else if _, err := url.Parse(c.LLM.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "invalid Ollama base URL",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	// Validate Extractor config
	if c.Extractor.MaxLength < 1 {
		errors = append(errors, ValidationError{
			Field:   "extractor.max_length",
			Message: "max_length must be positive",
		})
	}

	if c.Extractor.TimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "extractor.timeout_seconds",
			Message: "timeout_seconds must be positive",
		})
	}

	if c.Extractor.ProxyURL != "" {
		if u, err := url.Parse(c.Extractor.ProxyURL); err != nil || !strings.HasPrefix(u.Scheme, "http") {
			errors = append(errors, ValidationError{
				Field:   "extractor.proxy_url",
				Message: "proxy_url must be an http(s) URL",
			})
		}
	}

	// Validate Related config
	if c.Related.MaxResults < 1 {
		errors = append(errors, ValidationError{
			Field:   "related.max_results",
			Message: "max_results must be positive",
		})
	}

	// Validate feed URLs
	for _, feed := range c.Feeds {
		if u, err := url.Parse(feed); err != nil || !strings.HasPrefix(u.Scheme, "http") {
			errors = append(errors, ValidationError{
				Field:   "feeds",
				Message: fmt.Sprintf("invalid feed URL: %s", feed),
			})
		}
	}

	if c.Feed.MaxPerFeed < 1 {
		errors = append(errors, ValidationError{
			Field:   "feed.max_per_feed",
			Message: "max_per_feed must be positive",
		})
	}

	if c.Feed.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "feed.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	if c.Feed.RetentionDays < 1 {
		errors = append(errors, ValidationError{
			Field:   "feed.retention_days",
			Message: "retention_days must be positive",
		})
	}

	// Validate taxonomy
	for _, cat := range c.Taxonomy.Categories {
		if strings.TrimSpace(cat.Name) == "" {
			errors = append(errors, ValidationError{
				Field:   "taxonomy.categories",
				Message: "category name cannot be empty",
			})
		}
	}

	// Validate Server config
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "server.port",
			Message: "port must be between 1 and 65535",
		})
	}

	return errors
}
