package lingua

import (
	"fmt"
	"net/url"
	"time"

	"github.com/fluently/lingua/pkg/core"
)

// Error is the canonical gateway error type.
type Error = core.Error

const (
	ErrInvalidRequest  = core.ErrInvalidRequest
	ErrInvalidLanguage = core.ErrInvalidLanguage
	ErrAuthentication  = core.ErrAuthentication
	ErrSessionNotFound = core.ErrSessionNotFound
	ErrRateLimit       = core.ErrRateLimit
	ErrVendor          = core.ErrVendor
	ErrSynthesis       = core.ErrSynthesis
	ErrOverloaded      = core.ErrOverloaded
	ErrAPI             = core.ErrAPI
)

// TransportError represents HTTP transport-level failures (DNS, timeouts,
// connection reset, TLS handshake) while talking to the gateway.
//
// Use errors.As(err, &TransportError{}) to distinguish transport failures
// from canonical API errors (*Error).
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Op != "" && e.URL != "":
		return fmt.Sprintf("transport error during %s %s: %v", e.Op, redactURLUserInfo(e.URL), e.Err)
	case e.Op != "":
		return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("transport error: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// TurnTimeoutError reports that the client-side deadline for an exchange
// elapsed. The gateway may still complete and persist the turn; the session
// transcript is the source of truth after one of these.
type TurnTimeoutError struct {
	SessionID string
	Timeout   time.Duration
}

func (e *TurnTimeoutError) Error() string {
	return fmt.Sprintf("turn did not complete within %s; the tutor may still have answered, refresh the transcript", e.Timeout)
}

func redactURLUserInfo(raw string) string {
	if raw == "" {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed == nil {
		return raw
	}
	parsed.User = nil
	return parsed.String()
}
