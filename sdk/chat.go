package lingua

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fluently/lingua/pkg/core"
	"github.com/fluently/lingua/pkg/core/types"
)

// ChatService runs tutor exchanges against the gateway.
type ChatService struct {
	client *Client
}

// ExchangeRequest is one learner turn, or a scenario opening when Scenario
// is set and Message is empty.
type ExchangeRequest struct {
	SessionID     string `json:"sessionId"`
	Language      string `json:"language"`
	Scenario      string `json:"scenario,omitempty"`
	Message       string `json:"message,omitempty"`
	AudioData     string `json:"audioData,omitempty"`
	AudioMIMEType string `json:"audioMimeType,omitempty"`
}

// ExchangeResponse is the gateway's reply to one exchange. The structured
// turn is inlined: the body reads {correction, response, sessionId, ...}.
type ExchangeResponse struct {
	types.StructuredTurn
	SessionID string `json:"sessionId"`
	Created   bool   `json:"created"`
	Persona   string `json:"persona"`
}

type historyEnvelope struct {
	SessionID string       `json:"sessionId"`
	Turns     []types.Turn `json:"turns"`
}

type errorEnvelope struct {
	Error *core.Error `json:"error"`
}

// Exchange runs one turn and keeps conv's optimistic state consistent: the
// learner's turn renders before the gateway answers, confirms when the tutor
// replies, and marks failed when the exchange does not complete.
//
// On a *TurnTimeoutError the gateway may still have persisted the turn;
// History is the source of truth afterwards.
func (s *ChatService) Exchange(ctx context.Context, conv *Conversation, req ExchangeRequest) (*ExchangeResponse, error) {
	if conv == nil {
		return nil, core.NewInvalidRequestError("conversation is required")
	}
	if req.SessionID == "" {
		req.SessionID = conv.SessionID()
	}

	if err := conv.beginTurn(req.Message); err != nil {
		return nil, core.NewInvalidRequestError(err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, s.client.turnTimeout)
	defer cancel()

	var resp ExchangeResponse
	err := s.client.doJSON(ctx, http.MethodPost, "/v1/chat", req, &resp, func() { conv.sent() })
	if err != nil {
		conv.failed()
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			return nil, &TurnTimeoutError{SessionID: req.SessionID, Timeout: s.client.turnTimeout}
		}
		return nil, err
	}

	conv.rendered(resp.SessionID, &resp.StructuredTurn)
	return &resp, nil
}

// History fetches the persisted transcript for a session.
func (s *ChatService) History(ctx context.Context, sessionID string) ([]types.Turn, error) {
	var resp historyEnvelope
	err := s.client.doJSON(ctx, http.MethodGet, "/v1/sessions/"+sessionID, nil, &resp, nil)
	if err != nil {
		return nil, err
	}
	return resp.Turns, nil
}

// EndSession removes the session from the gateway.
func (s *ChatService) EndSession(ctx context.Context, sessionID string) error {
	return s.client.doJSON(ctx, http.MethodDelete, "/v1/sessions/"+sessionID, nil, nil, nil)
}

// doJSON issues one JSON request with transport-level retries. onSent fires
// just before the first write attempt so callers observe the in-flight
// state while the gateway is working.
// Gateway errors (any JSON error envelope) are never retried here; the
// gateway already retries the vendor internally.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any, onSent func()) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	url := c.baseURL + path
	backoff := c.retryBackoff
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		if onSent != nil {
			onSent()
			onSent = nil
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = &TransportError{Op: method + " " + path, URL: url, Err: err}
			c.logger.Debug("transport failure", "op", method+" "+path, "attempt", attempt, "error", err)
			continue
		}
		return drainResponse(resp, out)
	}
	return lastErr
}

func drainResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return &TransportError{Op: "read response", Err: err}
	}
	if resp.StatusCode >= 400 {
		var env errorEnvelope
		if jsonErr := json.Unmarshal(data, &env); jsonErr == nil && env.Error != nil {
			return env.Error
		}
		return core.NewAPIError(fmt.Sprintf("gateway returned status %d", resp.StatusCode))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
