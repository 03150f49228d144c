// Package apierror maps internal errors to the wire error envelope and an
// HTTP status.
package apierror

import (
	"context"
	"errors"
	"net/http"

	"github.com/fluently/lingua/pkg/core"
	"github.com/fluently/lingua/pkg/core/providers/gemini"
	"github.com/fluently/lingua/pkg/core/session"
)

type Envelope struct {
	Error *core.Error `json:"error"`
}

func FromError(err error, requestID string) (*core.Error, int) {
	if err == nil {
		return nil, http.StatusOK
	}

	// Context timeouts/cancellation.
	if errors.Is(err, context.DeadlineExceeded) {
		return &core.Error{
			Type:      core.ErrOverloaded,
			Message:   "request timeout",
			RequestID: requestID,
		}, http.StatusGatewayTimeout
	}
	if errors.Is(err, context.Canceled) {
		return &core.Error{
			Type:      core.ErrAPI,
			Message:   "request cancelled",
			Code:      "cancelled",
			RequestID: requestID,
		}, http.StatusRequestTimeout
	}

	// Already canonical.
	var coreErr *core.Error
	if errors.As(err, &coreErr) && coreErr != nil {
		out := *coreErr
		out.RequestID = requestID
		return &out, statusFromType(coreErr.Type)
	}

	// Store misses on continuation-only calls.
	if errors.Is(err, session.ErrNotFound) {
		return &core.Error{
			Type:      core.ErrSessionNotFound,
			Message:   "session not found",
			RequestID: requestID,
		}, http.StatusNotFound
	}

	// Generation vendor errors.
	var geminiErr *gemini.Error
	if errors.As(err, &geminiErr) && geminiErr != nil {
		return &core.Error{
			Type:          vendorTypeToCore(geminiErr.Type),
			Message:       geminiErr.Message,
			Code:          geminiErr.Code,
			RequestID:     requestID,
			ProviderError: geminiErr.ProviderError,
			RetryAfter:    geminiErr.RetryAfter,
		}, statusFromType(vendorTypeToCore(geminiErr.Type))
	}

	// Unknown errors: internal API error, details stay server-side.
	return &core.Error{
		Type:      core.ErrAPI,
		Message:   "internal error",
		RequestID: requestID,
	}, http.StatusInternalServerError
}

func vendorTypeToCore(t gemini.ErrorType) core.ErrorType {
	switch t {
	case gemini.ErrInvalidRequest:
		return core.ErrInvalidRequest
	case gemini.ErrAuthentication:
		return core.ErrAuthentication
	case gemini.ErrRateLimit:
		return core.ErrRateLimit
	case gemini.ErrOverloaded:
		return core.ErrOverloaded
	default:
		return core.ErrVendor
	}
}

func statusFromType(t core.ErrorType) int {
	switch t {
	case core.ErrInvalidRequest, core.ErrInvalidLanguage, core.ErrInvalidScenario:
		return http.StatusBadRequest
	case core.ErrAuthentication:
		return http.StatusUnauthorized
	case core.ErrSessionNotFound:
		return http.StatusNotFound
	case core.ErrRateLimit:
		return http.StatusTooManyRequests
	case core.ErrOverloaded:
		return 529
	case core.ErrDecode, core.ErrVendor, core.ErrSynthesis:
		return http.StatusBadGateway
	case core.ErrAPI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
