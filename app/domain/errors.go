package domain

import (
	"fmt"
	"time"
)

// AuthError means a provider rejected the configured credentials or was
// unreachable during authentication. Fatal for that provider only; other
// providers in a multi-provider run continue.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("provider %s: authentication failed: %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// RateLimitedError carries the provider's retry-after hint. The caller
// decides whether to back off or abandon the affected items.
type RateLimitedError struct {
	Provider   string
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("provider %s: rate limited, retry after %s", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("provider %s: rate limited", e.Provider)
}

func (e *RateLimitedError) Unwrap() error { return e.Err }

// TransientError marks a network failure that is safe to retry. Retries
// happen at the adapter call site, never in the executor.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient network error: %v", e.Err) }

func (e *TransientError) Unwrap() error { return e.Err }

// NotFoundError means a literal pattern segment did not resolve. During
// wildcard discovery this is not an error; for a fully literal pattern with
// zero matches it is surfaced to the caller.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("not found: %s", e.Resource) }

// ValidationError reports malformed input (pattern or configuration) and
// fails the invocation before any network activity.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
