package llm

import (
	"errors"
	"fmt"
	"strings"
)

// FailoverReason categorizes why an upstream call failed, grounded on the
// teacher's internal/agent/providers.FailoverReason classification.
type FailoverReason string

const (
	ReasonAuth        FailoverReason = "auth"
	ReasonRateLimit   FailoverReason = "rate_limit"
	ReasonTransient   FailoverReason = "transient"
	ReasonInvalidArgs FailoverReason = "invalid_request"
	ReasonUnknown     FailoverReason = "unknown"
)

// ErrUpstreamAuth/ErrUpstreamRateLimited/ErrUpstreamTransient are sentinel
// targets for errors.Is checks by callers that only care about the
// broad category, not the full ProviderError detail.
var (
	ErrUpstreamAuth        = errors.New("llm: upstream authentication rejected")
	ErrUpstreamRateLimited = errors.New("llm: upstream rate limited")
	ErrUpstreamTransient   = errors.New("llm: upstream transient error")
)

// ProviderError wraps an upstream failure with enough context for the
// agentic loop to decide whether to retry or surface a terminal error.
type ProviderError struct {
	Provider string
	Model    string
	Status   int
	Reason   FailoverReason
	Message  string
	Cause    error
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Reason, e.Provider, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s", e.Reason, e.Provider, e.Cause.Error())
	}
	return fmt.Sprintf("[%s] %s", e.Reason, e.Provider)
}

func (e *ProviderError) Unwrap() error {
	switch e.Reason {
	case ReasonAuth:
		return ErrUpstreamAuth
	case ReasonRateLimit:
		return ErrUpstreamRateLimited
	default:
		return ErrUpstreamTransient
	}
}

// wrapError classifies cause by HTTP status (when known) or message text
// and returns a terminal ProviderError for auth/rate-limit cases, or a
// retryable transient error otherwise.
func wrapError(provider, model string, status int, cause error) *ProviderError {
	reason := classify(status, cause)
	return &ProviderError{
		Provider: provider,
		Model:    model,
		Status:   status,
		Reason:   reason,
		Cause:    cause,
	}
}

func classify(status int, cause error) FailoverReason {
	if status == 401 || status == 403 {
		return ReasonAuth
	}
	if status == 429 {
		return ReasonRateLimit
	}
	if status == 400 {
		return ReasonInvalidArgs
	}

	if cause == nil {
		return ReasonUnknown
	}
	msg := strings.ToLower(cause.Error())
	switch {
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "invalid api key"), strings.Contains(msg, "api key"):
		return ReasonAuth
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "429"), strings.Contains(msg, "too many requests"):
		return ReasonRateLimit
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return ReasonTransient
	default:
		return ReasonTransient
	}
}

// isRetryableError reports whether a retry of the same request is worth
// attempting. Auth, rate-limit and invalid-request failures are terminal.
func isRetryableError(err error) bool {
	var perr *ProviderError
	if !errors.As(err, &perr) {
		return true
	}
	switch perr.Reason {
	case ReasonAuth, ReasonRateLimit, ReasonInvalidArgs:
		return false
	default:
		return true
	}
}
