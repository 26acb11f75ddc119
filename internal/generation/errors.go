package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/curriculum-orchestrator/internal/platform/httpx"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/openai"
)

// ProviderTransientError is a failure expected to clear on retry.
type ProviderTransientError struct {
	Provider   string
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderTransientError) Error() string {
	return fmt.Sprintf("%s transient error: %v", e.Provider, e.Err)
}

func (e *ProviderTransientError) Unwrap() error { return e.Err }

// ProviderFatalError is a failure that retrying cannot fix.
type ProviderFatalError struct {
	Provider string
	Err      error
}

func (e *ProviderFatalError) Error() string {
	return fmt.Sprintf("%s fatal error: %v", e.Provider, e.Err)
}

func (e *ProviderFatalError) Unwrap() error { return e.Err }

func IsTransient(err error) bool {
	var te *ProviderTransientError
	return errors.As(err, &te)
}

func IsFatal(err error) bool {
	var fe *ProviderFatalError
	return errors.As(err, &fe)
}

// Classify wraps a raw provider error in the matching taxonomy type. Errors
// already classified are returned as is. Caller cancellation passes through
// unwrapped so the walker can tell it apart from provider trouble.
func Classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	if IsTransient(err) || IsFatal(err) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var httpErr *openai.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.QuotaExhausted() {
			return &ProviderFatalError{Provider: provider, Err: err}
		}
		if httpx.IsRetryableHTTPStatus(httpErr.StatusCode) {
			return &ProviderTransientError{Provider: provider, RetryAfter: httpErr.RetryAfter, Err: err}
		}
		return &ProviderFatalError{Provider: provider, Err: err}
	}
	var readErr *openai.ReadError
	if errors.As(err, &readErr) {
		return &ProviderTransientError{Provider: provider, Err: err}
	}
	var decErr *openai.DecodeError
	if errors.As(err, &decErr) {
		return &ProviderFatalError{Provider: provider, Err: err}
	}
	if httpx.IsRetryableError(err) {
		return &ProviderTransientError{Provider: provider, Err: err}
	}
	return &ProviderFatalError{Provider: provider, Err: err}
}
