package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrRateLimit indicates the provider returned a rate limit error (429).
type ErrRateLimit struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ErrRateLimit) Error() string {
	return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrInvalidResponse indicates the LLM returned content that is empty, is
// not JSON, or does not conform to the requested schema.
type ErrInvalidResponse struct {
	Content json.RawMessage
	Err     error
}

func (e *ErrInvalidResponse) Error() string {
	return fmt.Sprintf("invalid LLM response: %v", e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }

// ErrProviderUnavailable indicates the provider is down or unreachable.
type ErrProviderUnavailable struct {
	Err error
}

func (e *ErrProviderUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("LLM provider unavailable: %v", e.Err)
	}
	return "LLM provider unavailable"
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// ErrRequestRejected indicates the provider refused the request itself
// with a 4xx other than 429. It is never retried.
type ErrRequestRejected struct {
	StatusCode int
	Err        error
}

func (e *ErrRequestRejected) Error() string {
	return fmt.Sprintf("LLM request rejected (HTTP %d): %v", e.StatusCode, e.Err)
}

func (e *ErrRequestRejected) Unwrap() error { return e.Err }

// ErrMaxTokensExceeded indicates structured output was cut off at the
// MaxTokens limit. Adapters raise it only for requests with a Schema; a
// truncated free-text answer is returned with StopReason "max_tokens".
type ErrMaxTokensExceeded struct {
	Content json.RawMessage
}

func (e *ErrMaxTokensExceeded) Error() string {
	return "LLM response truncated: max tokens exceeded"
}

// IsInvalidResponse reports whether err (or anything it wraps) is an
// *ErrInvalidResponse.
func IsInvalidResponse(err error) bool {
	var inv *ErrInvalidResponse
	return errors.As(err, &inv)
}

// IsMalformed reports whether err means the model answered but the answer
// is unusable: invalid, off-schema or truncated. Callers with a
// conservative fallback use it to tell bad output apart from a hard
// upstream failure.
func IsMalformed(err error) bool {
	var truncated *ErrMaxTokensExceeded
	return IsInvalidResponse(err) || errors.As(err, &truncated)
}

// rejectStatus maps an HTTP status from a provider API to the typed error
// family. ok is false when the status carries no useful signal.
func rejectStatus(status int, err error) (mapped error, ok bool) {
	switch {
	case status == http.StatusTooManyRequests:
		return &ErrRateLimit{Err: err}, true
	case status >= http.StatusInternalServerError:
		return &ErrProviderUnavailable{Err: err}, true
	case status >= http.StatusBadRequest:
		return &ErrRequestRejected{StatusCode: status, Err: err}, true
	}
	return nil, false
}
