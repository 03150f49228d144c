package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fluently/lingua/pkg/core"
	"github.com/fluently/lingua/pkg/core/tutor"
	"github.com/fluently/lingua/pkg/core/types"
	"github.com/fluently/lingua/pkg/gateway/auth"
	"github.com/fluently/lingua/pkg/gateway/config"
	"github.com/fluently/lingua/pkg/gateway/metrics"
	"github.com/fluently/lingua/pkg/gateway/mw"
)

// TurnRunner is the part of the orchestrator the chat handler needs.
type TurnRunner interface {
	RunTurn(ctx context.Context, req tutor.TurnRequest) (*tutor.TurnResult, error)
	History(ctx context.Context, sessionID string) ([]types.Turn, error)
	EndSession(ctx context.Context, sessionID string) error
}

type chatRequest struct {
	SessionID     string `json:"sessionId"`
	Language      string `json:"language"`
	Scenario      string `json:"scenario,omitempty"`
	Message       string `json:"message,omitempty"`
	AudioData     string `json:"audioData,omitempty"`
	AudioMIMEType string `json:"audioMimeType,omitempty"`
}

// chatResponse inlines the structured turn so the body is
// {correction, response, ...} with session metadata alongside.
type chatResponse struct {
	types.StructuredTurn
	SessionID string `json:"sessionId"`
	Created   bool   `json:"created"`
	Persona   string `json:"persona"`
}

// ChatHandler serves POST /v1/chat: one full tutor exchange.
type ChatHandler struct {
	Config       config.Config
	Orchestrator TurnRunner
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodPost {
		writeCoreError(w, reqID, core.NewInvalidRequestError("method not allowed"), http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.Config.MaxBodyBytes)
	var req chatRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeCoreError(w, reqID, core.NewInvalidRequestError("invalid JSON body: "+err.Error()), http.StatusBadRequest)
		return
	}

	turnReq := tutor.TurnRequest{
		SessionID: strings.TrimSpace(req.SessionID),
		Language:  req.Language,
		Scenario:  req.Scenario,
		Text:      req.Message,
	}
	if req.AudioData != "" {
		mime := req.AudioMIMEType
		if mime == "" {
			mime = "audio/wav"
		}
		turnReq.Audio = &types.AudioRef{MIMEType: mime, Data: req.AudioData}
	}
	if principal, ok := auth.PrincipalFrom(r.Context()); ok {
		turnReq.Privileged = principal.Privileged
	}

	result, err := h.Orchestrator.RunTurn(r.Context(), turnReq)
	if err != nil {
		if h.Metrics != nil {
			h.Metrics.ObserveTurnFailure(errorTypeOf(err))
		}
		h.Logger.Error("turn failed", "request_id", reqID, "session_id", turnReq.SessionID, "error", err)
		writeError(w, reqID, err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.ObserveTurn(req.Language, req.Scenario)
	}

	out := chatResponse{
		SessionID: result.SessionID,
		Created:   result.Created,
		Persona:   result.Profile.PersonaName,
	}
	if result.Turn != nil {
		out.StructuredTurn = *result.Turn
	}
	writeJSON(w, http.StatusOK, out)
}

func errorTypeOf(err error) string {
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		return string(coreErr.Type)
	}
	return "internal"
}
