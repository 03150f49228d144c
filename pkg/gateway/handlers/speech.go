package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fluently/lingua/pkg/core"
	"github.com/fluently/lingua/pkg/core/types"
	"github.com/fluently/lingua/pkg/gateway/config"
	"github.com/fluently/lingua/pkg/gateway/metrics"
	"github.com/fluently/lingua/pkg/gateway/mw"
)

// Synthesizer is the part of the voice pipeline the speech handlers need.
type Synthesizer interface {
	Synthesize(ctx context.Context, turnKey, text, voice string) (*types.AudioClip, error)
}

type speechRequest struct {
	Text      string `json:"text"`
	VoiceName string `json:"voiceName"`
	TurnKey   string `json:"turnKey,omitempty"`
}

type speechResponse struct {
	AudioData  string `json:"audioData"`
	Format     string `json:"format"`
	SampleRate int    `json:"sampleRate,omitempty"`
}

// SpeechHandler serves POST /v1/speech: synthesize one complete clip.
type SpeechHandler struct {
	Config       config.Config
	Pipeline     Synthesizer
	ProviderName string
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

func (h *SpeechHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodPost {
		writeCoreError(w, reqID, core.NewInvalidRequestError("method not allowed"), http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.Config.MaxBodyBytes)
	req, coreErr := decodeSpeechRequest(r)
	if coreErr != nil {
		writeCoreError(w, reqID, coreErr, http.StatusBadRequest)
		return
	}

	clip, err := h.Pipeline.Synthesize(r.Context(), req.TurnKey, req.Text, req.VoiceName)
	if h.Metrics != nil {
		h.Metrics.ObserveSynthesis(h.ProviderName, err)
	}
	if err != nil {
		h.Logger.Error("synthesis failed", "request_id", reqID, "error", err)
		writeError(w, reqID, err)
		return
	}

	writeJSON(w, http.StatusOK, speechResponse{
		AudioData:  base64.StdEncoding.EncodeToString(clip.Data),
		Format:     string(clip.Format),
		SampleRate: clip.SampleRate,
	})
}

func decodeSpeechRequest(r *http.Request) (*speechRequest, *core.Error) {
	var req speechRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, core.NewInvalidRequestError("invalid JSON body: " + err.Error())
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, core.NewInvalidRequestErrorWithParam("text is required", "text")
	}
	if req.TurnKey == "" {
		// Stateless callers key the clip cache by content.
		sum := sha256.Sum256([]byte(req.VoiceName + "\x00" + req.Text))
		req.TurnKey = hex.EncodeToString(sum[:8])
	}
	return &req, nil
}
