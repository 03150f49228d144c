package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/fluently/lingua/pkg/core"
	"github.com/fluently/lingua/pkg/core/types"
	"github.com/fluently/lingua/pkg/gateway/mw"
)

type historyResponse struct {
	SessionID string       `json:"sessionId"`
	Turns     []types.Turn `json:"turns"`
}

// SessionsHandler serves /v1/sessions/{id}: GET returns the transcript,
// DELETE ends the session.
type SessionsHandler struct {
	Orchestrator TurnRunner
	Logger       *slog.Logger
}

func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	id := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	if id == "" || strings.Contains(id, "/") {
		writeCoreError(w, reqID, core.NewInvalidRequestError("session id is required"), http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		turns, err := h.Orchestrator.History(r.Context(), id)
		if err != nil {
			writeError(w, reqID, err)
			return
		}
		writeJSON(w, http.StatusOK, historyResponse{SessionID: id, Turns: turns})
	case http.MethodDelete:
		if err := h.Orchestrator.EndSession(r.Context(), id); err != nil {
			writeError(w, reqID, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeCoreError(w, reqID, core.NewInvalidRequestError("method not allowed"), http.StatusMethodNotAllowed)
	}
}
