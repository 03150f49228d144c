package handlers

import (
	"net/http"

	"github.com/fluently/lingua/pkg/gateway/config"
)

// HealthHandler answers liveness probes.
type HealthHandler struct{}

func (HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type readyResponse struct {
	OK          bool     `json:"ok"`
	AuthMode    string   `json:"auth_mode"`
	StoreType   string   `json:"store_type"`
	TTSProvider string   `json:"tts_provider"`
	Issues      []string `json:"issues,omitempty"`
}

// ReadyHandler reports whether the gateway is configured well enough to
// serve traffic, with the reasons when it is not.
type ReadyHandler struct {
	Config config.Config
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var issues []string
	if h.Config.GeminiAPIKey == "" {
		issues = append(issues, "generation vendor API key is not set")
	}
	if h.Config.AuthMode == "required" && len(h.Config.APIKeys) == 0 {
		issues = append(issues, "auth mode is required but no API keys are configured")
	}
	if h.Config.TTSProvider == "elevenlabs" && h.Config.ElevenLabsAPIKey == "" {
		issues = append(issues, "tts provider is elevenlabs but no ElevenLabs API key is configured")
	}

	status := http.StatusOK
	if len(issues) > 0 {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, readyResponse{
		OK:          len(issues) == 0,
		AuthMode:    string(h.Config.AuthMode),
		StoreType:   h.Config.StoreType,
		TTSProvider: h.Config.TTSProvider,
		Issues:      issues,
	})
}
