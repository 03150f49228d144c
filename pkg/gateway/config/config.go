// Package config loads gateway configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AuthMode string

const (
	AuthModeRequired AuthMode = "required"
	AuthModeOptional AuthMode = "optional"
	AuthModeDisabled AuthMode = "disabled"
)

type Config struct {
	Addr string

	AuthMode AuthMode
	APIKeys  map[string]struct{}

	// Keys granted the 500-turn hard history cap instead of the 50-turn
	// soft cap.
	PrivilegedKeys map[string]struct{}

	MaxBodyBytes int64

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Session store selection.
	StoreType  string // memory | redis | sqlite
	RedisAddr  string
	RedisDB    int
	SQLitePath string
	SessionTTL time.Duration

	// Generation vendor.
	GeminiAPIKey string
	GeminiModel  string

	// Speech synthesis. Provider selection decides the payload format
	// clients receive: gemini => pcm, elevenlabs => mp3.
	TTSProvider      string
	ElevenLabsAPIKey string
	SynthesisTimeout time.Duration

	// Vendor retry policy.
	VendorTimeout  time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration

	// Per-principal limits.
	LimitRPS                   float64
	LimitBurst                 int
	LimitMaxConcurrentRequests int
	LimitMaxConcurrentStreams  int

	// WebSocket speech stream.
	WSWriteTimeout time.Duration
	WSChunkBytes   int

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	HandlerTimeout      time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                       envOr("LINGUA_ADDR", ":8080"),
		AuthMode:                   AuthMode(envOr("LINGUA_AUTH_MODE", string(AuthModeDisabled))),
		APIKeys:                    make(map[string]struct{}),
		PrivilegedKeys:             make(map[string]struct{}),
		MaxBodyBytes:               envInt64Or("LINGUA_MAX_BODY_BYTES", 8<<20), // 8 MiB: text plus one base64 recording
		CORSAllowedOrigins:         make(map[string]struct{}),
		StoreType:                  envOr("LINGUA_STORE", "memory"),
		RedisAddr:                  envOr("LINGUA_REDIS_ADDR", "localhost:6379"),
		RedisDB:                    envIntOr("LINGUA_REDIS_DB", 0),
		SQLitePath:                 envOr("LINGUA_SQLITE_PATH", "lingua.db"),
		SessionTTL:                 envDurationOr("LINGUA_SESSION_TTL", 24*time.Hour),
		GeminiAPIKey:               strings.TrimSpace(os.Getenv("LINGUA_GEMINI_API_KEY")),
		GeminiModel:                envOr("LINGUA_GEMINI_MODEL", "gemini-2.0-flash"),
		TTSProvider:                envOr("LINGUA_TTS_PROVIDER", "gemini"),
		ElevenLabsAPIKey:           strings.TrimSpace(os.Getenv("LINGUA_ELEVENLABS_API_KEY")),
		SynthesisTimeout:           envDurationOr("LINGUA_SYNTHESIS_TIMEOUT", 15*time.Second),
		VendorTimeout:              envDurationOr("LINGUA_VENDOR_TIMEOUT", 90*time.Second),
		RetryAttempts:              envIntOr("LINGUA_RETRY_ATTEMPTS", 3),
		RetryBaseDelay:             envDurationOr("LINGUA_RETRY_BASE_DELAY", 500*time.Millisecond),
		LimitRPS:                   envFloat64Or("LINGUA_RATE_LIMIT_RPS", 2.0),
		LimitBurst:                 envIntOr("LINGUA_RATE_LIMIT_BURST", 4),
		LimitMaxConcurrentRequests: envIntOr("LINGUA_MAX_CONCURRENT_REQUESTS", 20),
		LimitMaxConcurrentStreams:  envIntOr("LINGUA_MAX_STREAMS_PER_PRINCIPAL", 2),
		WSWriteTimeout:             envDurationOr("LINGUA_WS_WRITE_TIMEOUT", 5*time.Second),
		WSChunkBytes:               envIntOr("LINGUA_WS_CHUNK_BYTES", 32<<10),
		ReadHeaderTimeout:          envDurationOr("LINGUA_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:                envDurationOr("LINGUA_READ_TIMEOUT", 30*time.Second),
		HandlerTimeout:             envDurationOr("LINGUA_TOTAL_REQUEST_TIMEOUT", 2*time.Minute),
		ShutdownGracePeriod:        envDurationOr("LINGUA_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	switch cfg.AuthMode {
	case AuthModeRequired, AuthModeOptional, AuthModeDisabled:
	default:
		return Config{}, fmt.Errorf("LINGUA_AUTH_MODE must be one of required|optional|disabled")
	}

	for _, key := range splitCSV(os.Getenv("LINGUA_API_KEYS")) {
		cfg.APIKeys[key] = struct{}{}
	}
	for _, key := range splitCSV(os.Getenv("LINGUA_PRIVILEGED_KEYS")) {
		cfg.PrivilegedKeys[key] = struct{}{}
	}
	for _, origin := range splitCSV(os.Getenv("LINGUA_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	switch cfg.StoreType {
	case "memory", "redis", "sqlite":
	default:
		return Config{}, fmt.Errorf("LINGUA_STORE must be one of memory|redis|sqlite")
	}
	if cfg.StoreType == "redis" && strings.TrimSpace(cfg.RedisAddr) == "" {
		return Config{}, fmt.Errorf("LINGUA_REDIS_ADDR must be set when LINGUA_STORE=redis")
	}
	if cfg.StoreType == "sqlite" && strings.TrimSpace(cfg.SQLitePath) == "" {
		return Config{}, fmt.Errorf("LINGUA_SQLITE_PATH must be set when LINGUA_STORE=sqlite")
	}

	switch cfg.TTSProvider {
	case "gemini", "elevenlabs":
	default:
		return Config{}, fmt.Errorf("LINGUA_TTS_PROVIDER must be one of gemini|elevenlabs")
	}
	if cfg.TTSProvider == "elevenlabs" && cfg.ElevenLabsAPIKey == "" {
		return Config{}, fmt.Errorf("LINGUA_ELEVENLABS_API_KEY must be set when LINGUA_TTS_PROVIDER=elevenlabs")
	}

	if cfg.GeminiAPIKey == "" {
		return Config{}, fmt.Errorf("LINGUA_GEMINI_API_KEY must be set")
	}
	if cfg.MaxBodyBytes <= 0 {
		return Config{}, fmt.Errorf("LINGUA_MAX_BODY_BYTES must be > 0")
	}
	if cfg.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("LINGUA_SESSION_TTL must be > 0")
	}
	if cfg.SynthesisTimeout <= 0 {
		return Config{}, fmt.Errorf("LINGUA_SYNTHESIS_TIMEOUT must be > 0")
	}
	if cfg.VendorTimeout <= 0 {
		return Config{}, fmt.Errorf("LINGUA_VENDOR_TIMEOUT must be > 0")
	}
	if cfg.RetryAttempts <= 0 {
		return Config{}, fmt.Errorf("LINGUA_RETRY_ATTEMPTS must be > 0")
	}
	if cfg.RetryBaseDelay <= 0 {
		return Config{}, fmt.Errorf("LINGUA_RETRY_BASE_DELAY must be > 0")
	}
	if cfg.LimitRPS < 0 {
		return Config{}, fmt.Errorf("LINGUA_RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.LimitBurst < 0 {
		return Config{}, fmt.Errorf("LINGUA_RATE_LIMIT_BURST must be >= 0")
	}
	if cfg.LimitMaxConcurrentRequests < 0 {
		return Config{}, fmt.Errorf("LINGUA_MAX_CONCURRENT_REQUESTS must be >= 0")
	}
	if cfg.LimitMaxConcurrentStreams < 0 {
		return Config{}, fmt.Errorf("LINGUA_MAX_STREAMS_PER_PRINCIPAL must be >= 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("LINGUA_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.WSChunkBytes <= 0 {
		return Config{}, fmt.Errorf("LINGUA_WS_CHUNK_BYTES must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("LINGUA_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("LINGUA_READ_TIMEOUT must be > 0")
	}
	if cfg.HandlerTimeout <= 0 {
		return Config{}, fmt.Errorf("LINGUA_TOTAL_REQUEST_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("LINGUA_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	if cfg.AuthMode == AuthModeRequired && len(cfg.APIKeys) == 0 {
		return Config{}, fmt.Errorf("LINGUA_API_KEYS must be set when LINGUA_AUTH_MODE=required")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
