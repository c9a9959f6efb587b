package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/ZaguanLabs/lazytl"
)

// OpenAIBatchLimit is the number of texts sent per chat completion.
const OpenAIBatchLimit = 50

// OpenAIProvider implements lazytl.Provider using OpenAI's chat completions.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float32
}

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey      string  // OpenAI API key
	Model       string  // Model to use (default: "gpt-4o-mini")
	Temperature float32 // Temperature for generation (default: 0.2)
	BaseURL     string  // Custom base URL for compatible gateways (optional)
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.2
	}

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		temperature: temperature,
	}
}

// BatchLimit returns OpenAIBatchLimit.
func (p *OpenAIProvider) BatchLimit() int {
	return OpenAIBatchLimit
}

// Translate translates a batch of texts with one chat completion.
func (p *OpenAIProvider) Translate(ctx context.Context, req TranslateRequest) ([]string, error) {
	if len(req.Texts) == 0 {
		return []string{}, nil
	}

	userMessage, err := json.Marshal(req.Texts)
	if err != nil {
		return nil, &lazytl.ProviderError{Message: "encoding OpenAI request", Cause: err}
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildSystemPrompt(req)},
			{Role: openai.ChatMessageRoleUser, Content: string(userMessage)},
		},
		Temperature: p.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		pe := &lazytl.ProviderError{
			Message:   "OpenAI API call failed",
			Cause:     err,
			Retryable: isRetryableError(ctx, err),
		}
		pe.StatusCode = statusCode(err)
		return nil, pe
	}

	if len(resp.Choices) == 0 {
		return nil, &lazytl.ProviderError{
			Message:   "no response from OpenAI",
			Retryable: true,
		}
	}

	return parseResponse(resp.Choices[0].Message.Content, len(req.Texts))
}

func buildSystemPrompt(req TranslateRequest) string {
	targetName := lazytl.GetLanguageName(req.TargetLang)

	source := "Detect the source language."
	if req.SourceLang != "" {
		source = fmt.Sprintf("The source language is %s.", lazytl.GetLanguageName(req.SourceLang))
	}

	var b strings.Builder
	fmt.Fprintf(&b, `# Role
You translate public-sector website content into %s. %s

# Style Guide
- Use the plain, clear register of official information for residents.
- Keep names of places, streets, departments and people as written.
- Do NOT translate HTML tags, attributes, URLs, email addresses or phone numbers.
- Do NOT translate placeholders (e.g., {{name}}, {count}, %%s, $1).
- Preserve leading and trailing whitespace of every string.`, targetName, source)

	if lazytl.IsRTL(req.TargetLang) {
		b.WriteString("\n- The target language is written right-to-left; do not add direction marks.")
	}

	b.WriteString(`

# Format
The user message is a JSON array of strings. Return a JSON object with a single key "translations" containing an array with exactly one translated string per input string, in the same order.
Example: { "translations": ["translated string 1", "translated string 2"] }
- Do NOT wrap in Markdown code blocks.`)

	return b.String()
}

func parseResponse(content string, expectedCount int) ([]string, error) {
	// Try parsing as object first
	var objResult map[string]any
	if err := json.Unmarshal([]byte(content), &objResult); err == nil {
		if translations, ok := objResult["translations"]; ok {
			if arr, ok := translations.([]any); ok {
				return toStringSlice(arr, expectedCount)
			}
		}

		// Fallback: find first array value
		for _, v := range objResult {
			if arr, ok := v.([]any); ok {
				return toStringSlice(arr, expectedCount)
			}
		}
	}

	// Try parsing as direct array
	var arrResult []any
	if err := json.Unmarshal([]byte(content), &arrResult); err == nil {
		return toStringSlice(arrResult, expectedCount)
	}

	return nil, &lazytl.ProviderError{
		Message:   "invalid response format from OpenAI",
		Retryable: false,
	}
}

func toStringSlice(arr []any, expectedCount int) ([]string, error) {
	if len(arr) != expectedCount {
		return nil, &lazytl.CountMismatchError{
			Expected: expectedCount,
			Got:      len(arr),
		}
	}

	result := make([]string, len(arr))
	for i, v := range arr {
		s, ok := v.(string)
		if !ok {
			return nil, &lazytl.ProviderError{
				Message:   fmt.Sprintf("OpenAI returned a non-string translation at index %d: %v", i, v),
				Retryable: false,
			}
		}
		result[i] = s
	}
	return result, nil
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func isRetryableError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	if code := statusCode(err); code != 0 {
		return code == http.StatusTooManyRequests || code >= 500
	}

	// Transport failures carry no status; fall back to the message.
	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"rate limit",
		"timeout",
		"connection refused",
		"connection reset",
		"temporary",
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

var (
	_ Client              = (*OpenAIProvider)(nil)
	_ lazytl.BatchLimiter = (*OpenAIProvider)(nil)
)
