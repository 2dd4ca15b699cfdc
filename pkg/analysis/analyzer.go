package analysis

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"

	"github.com/lexwatch/lexwatch/internal/models"
)

// AnalyzerConfig configures the downstream model call.
type AnalyzerConfig struct {
	Model          string
	BaseURL        string // Ollama server URL
	MaxTokens      int
	Temperature    float64
	SystemTemplate string
}

// Analyzer turns an item plus its assembled context into a compliance
// analysis. It receives text and returns prose; nothing is persisted.
type Analyzer struct {
	config AnalyzerConfig
	llm    llms.Model
}

const defaultSystemTemplate = "You are a precise analyst for EU regulatory compliance audiences. " +
	"Given a regulatory news item and extracts from related documents, explain what changed, " +
	"which instruments are affected, and what compliance teams should verify. " +
	"Cite only instruments present in the provided context; do not invent sources."

func NewAnalyzerWithConfig(config AnalyzerConfig) (*Analyzer, error) {
	if config.Model == "" {
		config.Model = "mistral"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = defaultSystemTemplate
	}

	llm, err := ollama.New(ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &Analyzer{
		config: config,
		llm:    llm,
	}, nil
}

// Analyze generates a compliance analysis for item from its related-document
// context.
func (a *Analyzer) Analyze(ctx context.Context, item models.DocumentItem, contextText string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, a.config.SystemTemplate),
		llms.TextParts(schema.ChatMessageTypeHuman, a.prompt(item, contextText)),
	}

	response, err := a.llm.GenerateContent(ctx, content,
		llms.WithMaxTokens(a.config.MaxTokens),
		llms.WithTemperature(a.config.Temperature))
	if err != nil {
		return "", fmt.Errorf("analysis error: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("analysis error: empty response")
	}
	return response.Choices[0].Content, nil
}

// AnalyzeStream is Analyze delivered as a channel of chunks. The channel is
// closed when generation finishes; errors arrive as a final error-prefixed
// chunk so a consumer loop stays simple.
func (a *Analyzer) AnalyzeStream(ctx context.Context, item models.DocumentItem, contextText string) (<-chan string, error) {
	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, a.config.SystemTemplate),
		llms.TextParts(schema.ChatMessageTypeHuman, a.prompt(item, contextText)),
	}

	resultChan := make(chan string)

	go func() {
		defer close(resultChan)

		_, err := a.llm.GenerateContent(ctx, content,
			llms.WithMaxTokens(a.config.MaxTokens),
			llms.WithTemperature(a.config.Temperature),
			llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
				select {
				case resultChan <- string(chunk):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}))
		if err != nil {
			resultChan <- fmt.Sprintf("Error: %v", err)
		}
	}()

	return resultChan, nil
}

func (a *Analyzer) prompt(item models.DocumentItem, contextText string) string {
	prompt := fmt.Sprintf("ITEM: %s\nSOURCE: %s\nURL: %s\nSUMMARY: %s",
		item.Title, item.Source, item.URL, item.Summary)
	if contextText != "" {
		prompt += "\n\nRELATED DOCUMENTS:\n" + contextText
	}
	return prompt
}
