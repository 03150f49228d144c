package handlers

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fluently/lingua/pkg/core"
	"github.com/fluently/lingua/pkg/gateway/apierror"
	"github.com/fluently/lingua/pkg/gateway/auth"
	"github.com/fluently/lingua/pkg/gateway/config"
	"github.com/fluently/lingua/pkg/gateway/metrics"
	"github.com/fluently/lingua/pkg/gateway/mw"
	"github.com/fluently/lingua/pkg/gateway/ratelimit"
)

type streamChunk struct {
	Audio      string `json:"audio,omitempty"`
	Format     string `json:"format,omitempty"`
	SampleRate int    `json:"sampleRate,omitempty"`
	Seq        int    `json:"seq"`
	Done       bool   `json:"done,omitempty"`
}

type streamError struct {
	Error *core.Error `json:"error"`
}

// StreamHandler serves GET /v1/speech/stream: a websocket that accepts one
// synthesis request and delivers the clip in bounded chunks. The client can
// start playback before the final chunk arrives.
type StreamHandler struct {
	Config       config.Config
	Pipeline     Synthesizer
	Limiter      *ratelimit.Limiter
	ProviderName string
	Metrics      *metrics.Metrics
	Logger       *slog.Logger

	upgrader websocket.Upgrader
}

// NewStreamHandler sets the upgrader to the gateway's CORS allowlist.
func NewStreamHandler(cfg config.Config, pipeline Synthesizer, limiter *ratelimit.Limiter, providerName string, m *metrics.Metrics, logger *slog.Logger) *StreamHandler {
	h := &StreamHandler{
		Config:       cfg,
		Pipeline:     pipeline,
		Limiter:      limiter,
		ProviderName: providerName,
		Metrics:      m,
		Logger:       logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(cfg.CORSAllowedOrigins) == 0 {
				return true
			}
			for allowed := range cfg.CORSAllowedOrigins {
				if allowed == "*" || strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
	return h
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())

	principal := "anonymous"
	if p, ok := auth.PrincipalFrom(r.Context()); ok {
		principal = ratelimit.PrincipalKeyFromAPIKey(p.APIKey)
	}
	var permit *ratelimit.Permit
	if h.Limiter != nil {
		dec := h.Limiter.AcquireStream(principal, time.Now())
		if !dec.Allowed {
			writeCoreError(w, reqID, core.NewRateLimitError("too many concurrent streams", dec.RetryAfter), http.StatusTooManyRequests)
			return
		}
		permit = dec.Permit
	}
	if permit != nil {
		defer permit.Release()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.Logger.Warn("websocket upgrade failed", "request_id", reqID, "error", err)
		return
	}
	defer conn.Close()

	var req speechRequest
	if err := conn.ReadJSON(&req); err != nil {
		h.writeStreamError(conn, reqID, core.NewInvalidRequestError("invalid stream request: "+err.Error()))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		h.writeStreamError(conn, reqID, core.NewInvalidRequestErrorWithParam("text is required", "text"))
		return
	}
	if req.TurnKey == "" {
		req.TurnKey = req.VoiceName + "\x00" + req.Text
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Config.SynthesisTimeout)
	defer cancel()

	clip, err := h.Pipeline.Synthesize(ctx, req.TurnKey, req.Text, req.VoiceName)
	if h.Metrics != nil {
		h.Metrics.ObserveSynthesis(h.ProviderName, err)
	}
	if err != nil {
		h.Logger.Error("stream synthesis failed", "request_id", reqID, "error", err)
		coreErr, _ := apierror.FromError(err, reqID)
		h.writeStreamError(conn, reqID, coreErr)
		return
	}

	chunkSize := h.Config.WSChunkBytes
	if chunkSize <= 0 {
		chunkSize = 32 << 10
	}
	seq := 0
	for off := 0; off < len(clip.Data); off += chunkSize {
		end := off + chunkSize
		if end > len(clip.Data) {
			end = len(clip.Data)
		}
		chunk := streamChunk{
			Audio:      base64.StdEncoding.EncodeToString(clip.Data[off:end]),
			Format:     string(clip.Format),
			SampleRate: clip.SampleRate,
			Seq:        seq,
		}
		if err := h.writeJSON(conn, chunk); err != nil {
			h.Logger.Warn("stream write failed", "request_id", reqID, "seq", seq, "error", err)
			return
		}
		seq++
	}
	if err := h.writeJSON(conn, streamChunk{Seq: seq, Done: true}); err != nil {
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(h.Config.WSWriteTimeout))
}

func (h *StreamHandler) writeJSON(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(h.Config.WSWriteTimeout))
	return conn.WriteJSON(v)
}

func (h *StreamHandler) writeStreamError(conn *websocket.Conn, reqID string, coreErr *core.Error) {
	if coreErr.RequestID == "" {
		coreErr.RequestID = reqID
	}
	_ = h.writeJSON(conn, streamError{Error: coreErr})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseInternalServerErr, string(coreErr.Type)),
		time.Now().Add(h.Config.WSWriteTimeout))
}
