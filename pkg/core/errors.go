package core

import (
	"fmt"
)

// Error is the canonical error returned to clients.
type Error struct {
	Type          ErrorType `json:"type"`
	Message       string    `json:"message"`
	Param         string    `json:"param,omitempty"`
	Code          string    `json:"code,omitempty"`
	RequestID     string    `json:"request_id,omitempty"`
	ProviderError any       `json:"provider_error,omitempty"`
	RetryAfter    *int      `json:"retry_after,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrInvalidRequest  ErrorType = "invalid_request_error"
	ErrInvalidLanguage ErrorType = "invalid_language_error"
	ErrInvalidScenario ErrorType = "invalid_scenario_error"
	ErrAuthentication  ErrorType = "authentication_error"
	ErrSessionNotFound ErrorType = "session_not_found_error"
	ErrDecode          ErrorType = "decode_error"
	ErrRateLimit       ErrorType = "rate_limit_error"
	ErrVendor          ErrorType = "vendor_error"
	ErrSynthesis       ErrorType = "synthesis_error"
	ErrOverloaded      ErrorType = "overloaded_error"
	ErrAPI             ErrorType = "api_error"
)

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
	}
}

// NewInvalidRequestErrorWithParam creates an invalid request error with a parameter.
func NewInvalidRequestErrorWithParam(message, param string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
		Param:   param,
	}
}

// NewInvalidLanguageError creates an error for an unsupported target language.
func NewInvalidLanguageError(language string) *Error {
	return &Error{
		Type:    ErrInvalidLanguage,
		Message: fmt.Sprintf("unsupported language: %q", language),
		Param:   "language",
	}
}

// NewInvalidScenarioError creates an error for an unknown scenario tag.
func NewInvalidScenarioError(scenario string) *Error {
	return &Error{
		Type:    ErrInvalidScenario,
		Message: fmt.Sprintf("unknown scenario: %q", scenario),
		Param:   "scenario",
	}
}

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(message string) *Error {
	return &Error{
		Type:    ErrAuthentication,
		Message: message,
	}
}

// NewSessionNotFoundError creates an error for a continuation-only call
// against an unknown session. Ordinary chat calls never return this; a miss
// there means "start a new session".
func NewSessionNotFoundError(sessionID string) *Error {
	return &Error{
		Type:    ErrSessionNotFound,
		Message: fmt.Sprintf("no active session: %q", sessionID),
		Param:   "sessionId",
	}
}

// NewDecodeError creates an error for tutor output that could not be decoded.
// The underlying parse detail is carried in ProviderError for server-side
// logging; the message stays safe to show to users.
func NewDecodeError(underlying error) *Error {
	e := &Error{
		Type:    ErrDecode,
		Message: "the tutor had trouble responding, please try again",
	}
	if underlying != nil {
		e.ProviderError = underlying.Error()
	}
	return e
}

// NewRateLimitError creates a rate limit error.
func NewRateLimitError(message string, retryAfter int) *Error {
	return &Error{
		Type:       ErrRateLimit,
		Message:    message,
		RetryAfter: &retryAfter,
	}
}

// NewVendorError wraps a generation/synthesis capability failure.
func NewVendorError(vendor string, underlying error) *Error {
	return &Error{
		Type:          ErrVendor,
		Message:       fmt.Sprintf("%s: %v", vendor, underlying),
		ProviderError: underlying.Error(),
	}
}

// NewSynthesisError wraps a speech synthesis failure.
func NewSynthesisError(message string) *Error {
	return &Error{
		Type:    ErrSynthesis,
		Message: message,
	}
}

// NewOverloadedError creates an overloaded error.
func NewOverloadedError(message string) *Error {
	return &Error{
		Type:    ErrOverloaded,
		Message: message,
	}
}

// NewAPIError creates a generic API error.
func NewAPIError(message string) *Error {
	return &Error{
		Type:    ErrAPI,
		Message: message,
	}
}

// IsRetryable returns true if the error is transient and worth retrying.
// Decode and validation failures are shape problems, not network problems,
// and are never retried.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrRateLimit, ErrVendor, ErrOverloaded, ErrAPI:
		return true
	default:
		return false
	}
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	if ue, ok := e.ProviderError.(error); ok {
		return ue
	}
	return nil
}
