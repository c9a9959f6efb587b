package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ZaguanLabs/lazytl"
)

const (
	// DeepLBatchLimit is the maximum number of texts per /v2/translate call.
	DeepLBatchLimit = 50

	deeplProURL  = "https://api.deepl.com"
	deeplFreeURL = "https://api-free.deepl.com"
)

// DeepLProvider implements lazytl.Provider against the DeepL v2 HTTP API.
type DeepLProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// DeepLConfig holds configuration for the DeepL provider.
type DeepLConfig struct {
	APIKey     string        // DeepL authentication key
	BaseURL    string        // Default: derived from the key (":fx" keys use the free endpoint)
	Timeout    time.Duration // HTTP timeout per call (default: 30s)
	HTTPClient *http.Client  // Optional; overrides Timeout
}

type deeplRequest struct {
	Text       []string `json:"text"`
	TargetLang string   `json:"target_lang"`
	SourceLang string   `json:"source_lang,omitempty"`
}

type deeplResponse struct {
	Translations []struct {
		Text                   string `json:"text"`
		DetectedSourceLanguage string `json:"detected_source_language"`
	} `json:"translations"`
}

type deeplErrorBody struct {
	Message string `json:"message"`
}

// NewDeepLProvider creates a new DeepL provider.
func NewDeepLProvider(cfg DeepLConfig) *DeepLProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = deeplProURL
		if strings.HasSuffix(cfg.APIKey, ":fx") {
			baseURL = deeplFreeURL
		}
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &DeepLProvider{
		client:  client,
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
	}
}

// BatchLimit returns DeepLBatchLimit.
func (p *DeepLProvider) BatchLimit() int {
	return DeepLBatchLimit
}

// Translate translates a batch of texts with one /v2/translate request.
func (p *DeepLProvider) Translate(ctx context.Context, req TranslateRequest) ([]string, error) {
	if len(req.Texts) == 0 {
		return []string{}, nil
	}
	if len(req.Texts) > DeepLBatchLimit {
		return nil, &lazytl.ProviderError{
			Message: fmt.Sprintf("DeepL accepts at most %d texts per call, got %d", DeepLBatchLimit, len(req.Texts)),
		}
	}

	body, err := json.Marshal(deeplRequest{
		Text:       req.Texts,
		TargetLang: deeplTarget(req.TargetLang),
		SourceLang: deeplSource(req.SourceLang),
	})
	if err != nil {
		return nil, &lazytl.ProviderError{Message: "encoding DeepL request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v2/translate", bytes.NewReader(body))
	if err != nil {
		return nil, &lazytl.ProviderError{Message: "building DeepL request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "DeepL-Auth-Key "+p.apiKey)
	httpReq.Header.Set("User-Agent", lazytl.UserAgent())

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &lazytl.ProviderError{
			Message:   "DeepL API call failed",
			Cause:     err,
			Retryable: isTransportRetryable(ctx, err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp)
	}

	var out deeplResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &lazytl.ProviderError{Message: "invalid response format from DeepL", Cause: err}
	}

	if len(out.Translations) != len(req.Texts) {
		return nil, &lazytl.CountMismatchError{Expected: len(req.Texts), Got: len(out.Translations)}
	}

	results := make([]string, len(out.Translations))
	for i, t := range out.Translations {
		results[i] = t.Text
	}
	return results, nil
}

// statusError converts a non-2xx response into a ProviderError. Throttling
// (429, and DeepL's 529 quota signal) and server errors are retryable.
func statusError(resp *http.Response) error {
	msg := http.StatusText(resp.StatusCode)
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var eb deeplErrorBody
	if json.Unmarshal(raw, &eb) == nil && eb.Message != "" {
		msg = eb.Message
	}

	return &lazytl.ProviderError{
		Message:    fmt.Sprintf("DeepL returned %d: %s", resp.StatusCode, msg),
		StatusCode: resp.StatusCode,
		Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
	}
}

// isTransportRetryable reports whether a transport failure is worth
// retrying. Caller cancellation never is.
func isTransportRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}

// deeplTarget maps a locale to a DeepL target code. DeepL requires a region
// for English and Portuguese targets.
func deeplTarget(l lazytl.Locale) string {
	tag := strings.ToUpper(lazytl.NormalizeLocale(string(l)))
	switch tag {
	case "EN":
		return "EN-GB"
	case "PT":
		return "PT-PT"
	}
	return tag
}

// deeplSource maps a locale to a DeepL source code, which is the base
// language only.
func deeplSource(l lazytl.Locale) string {
	if l == "" {
		return ""
	}
	return strings.ToUpper(l.Base())
}

var (
	_ Client              = (*DeepLProvider)(nil)
	_ lazytl.BatchLimiter = (*DeepLProvider)(nil)
)
