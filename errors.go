package lazytl

import (
	"errors"
	"fmt"
)

// ErrProviderUnavailable reports that no provider credential is configured.
// Translation degrades to returning the source text.
var ErrProviderUnavailable = errors.New("translation provider unavailable: no credential configured")

// ProviderError indicates a translation provider failure (transport error,
// non-success status, malformed response).
type ProviderError struct {
	Message    string
	Cause      error
	StatusCode int  // HTTP status when the provider answered, 0 otherwise
	Retryable  bool // Whether the operation can be retried
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("provider error: %s", e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// CacheError indicates a cache store operation failure.
type CacheError struct {
	Op    string // "get" or "upsert"
	Keys  int    // Number of keys or entries involved
	Cause error
}

func (e *CacheError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cache error: %s %d keys: %v", e.Op, e.Keys, e.Cause)
	}
	return fmt.Sprintf("cache error: %s %d keys", e.Op, e.Keys)
}

func (e *CacheError) Unwrap() error {
	return e.Cause
}

// ProcessorError indicates a content processing failure (parse error, etc.).
type ProcessorError struct {
	Message     string
	Cause       error
	ContentType string // The type of content that failed to process
}

func (e *ProcessorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("processor error (%s): %s: %v", e.ContentType, e.Message, e.Cause)
	}
	return fmt.Sprintf("processor error (%s): %s", e.ContentType, e.Message)
}

func (e *ProcessorError) Unwrap() error {
	return e.Cause
}

// CountMismatchError indicates the provider returned a different number of
// translations than texts sent.
type CountMismatchError struct {
	Expected int
	Got      int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("translation count mismatch: expected %d, got %d", e.Expected, e.Got)
}
