package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ZaguanLabs/lazytl"
)

// ErrMockFailure is returned by MockProvider for injected failures.
var ErrMockFailure = errors.New("mock provider failure")

// MockProvider is a deterministic provider for tests. It is safe for
// concurrent use.
type MockProvider struct {
	mu           sync.Mutex
	translations map[string]string
	calls        int
	batchSizes   []int
	requests     []TranslateRequest
	failCalls    map[int]bool
	failText     map[string]bool
	delay        time.Duration
	limit        int
}

// NewMockProvider creates a mock provider with a few Swedish-English
// translations. Unknown texts are returned as "[locale] text".
func NewMockProvider() *MockProvider {
	return &MockProvider{
		translations: map[string]string{
			"Hej":                       "Hello",
			"Välkommen":                 "Welcome",
			"Kontakta oss":              "Contact us",
			"Öppettider":                "Opening hours",
			"Välkommen till kommunen.": "Welcome to the municipality.",
		},
		failCalls: make(map[int]bool),
		failText:  make(map[string]bool),
	}
}

// Set adds or replaces a fixed translation.
func (m *MockProvider) Set(source, translated string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.translations[source] = translated
	return m
}

// FailCall makes the n-th call (1-based) fail with a retryable 503.
func (m *MockProvider) FailCall(n int) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCalls[n] = true
	return m
}

// FailOn makes every call that contains text fail, independent of call order.
func (m *MockProvider) FailOn(text string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failText[text] = true
	return m
}

// WithDelay makes every call sleep for d or until its context is done.
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithBatchLimit sets the limit reported by BatchLimit.
func (m *MockProvider) WithBatchLimit(n int) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limit = n
	return m
}

// BatchLimit returns the configured limit, or zero when unset.
func (m *MockProvider) BatchLimit() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.limit
}

// Translate returns mock translations.
func (m *MockProvider) Translate(ctx context.Context, req TranslateRequest) ([]string, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.batchSizes = append(m.batchSizes, len(req.Texts))
	m.requests = append(m.requests, req)
	fail := m.failCalls[call]
	for _, t := range req.Texts {
		if m.failText[t] {
			fail = true
		}
	}
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, &lazytl.ProviderError{Message: "mock call canceled", Cause: ctx.Err()}
		case <-timer.C:
		}
	}

	if fail {
		return nil, &lazytl.ProviderError{
			Message:    fmt.Sprintf("mock call %d failed", call),
			Cause:      ErrMockFailure,
			StatusCode: 503,
			Retryable:  true,
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	results := make([]string, len(req.Texts))
	for i, text := range req.Texts {
		if translation, ok := m.translations[text]; ok {
			results[i] = translation
		} else {
			results[i] = fmt.Sprintf("[%s] %s", req.TargetLang, text)
		}
	}
	return results, nil
}

// Calls returns the number of Translate calls so far.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// BatchSizes returns the number of texts in each call, in call order.
func (m *MockProvider) BatchSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.batchSizes...)
}

// Requests returns every request received, in call order.
func (m *MockProvider) Requests() []TranslateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TranslateRequest(nil), m.requests...)
}

// Reset clears recorded calls. Fixed translations and failure rules stay.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = 0
	m.batchSizes = nil
	m.requests = nil
}

var (
	_ Client              = (*MockProvider)(nil)
	_ lazytl.BatchLimiter = (*MockProvider)(nil)
)
