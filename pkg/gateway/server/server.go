// Package server assembles the gateway: config, store, vendors, and the
// HTTP surface.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/fluently/lingua/pkg/core/providers/gemini"
	"github.com/fluently/lingua/pkg/core/session"
	"github.com/fluently/lingua/pkg/core/tutor"
	"github.com/fluently/lingua/pkg/core/voice"
	"github.com/fluently/lingua/pkg/core/voice/tts"
	"github.com/fluently/lingua/pkg/gateway/config"
	"github.com/fluently/lingua/pkg/gateway/handlers"
	"github.com/fluently/lingua/pkg/gateway/metrics"
	"github.com/fluently/lingua/pkg/gateway/mw"
	"github.com/fluently/lingua/pkg/gateway/ratelimit"
)

type Server struct {
	cfg     config.Config
	logger  *slog.Logger
	store   session.Store
	orch    *tutor.Orchestrator
	pipe    *voice.Pipeline
	ttsName string
	limiter *ratelimit.Limiter
	metrics *metrics.Metrics
	mux     *http.ServeMux
}

func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := newStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}

	provider := gemini.New(cfg.GeminiAPIKey, gemini.WithModel(cfg.GeminiModel))
	orch := tutor.NewOrchestrator(store, provider,
		tutor.WithBackoff(tutor.BackoffPolicy{
			MaxAttempts: cfg.RetryAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			Factor:      2,
		}),
		tutor.WithVendorTimeout(cfg.VendorTimeout),
		tutor.WithLogger(logger),
	)

	ttsProvider, err := newTTSProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("tts provider: %w", err)
	}
	pipe := voice.NewPipeline(ttsProvider, voice.WithSynthesisTimeout(cfg.SynthesisTimeout))

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		orch:    orch,
		pipe:    pipe,
		ttsName: ttsProvider.Name(),
		limiter: ratelimit.New(ratelimit.Config{
			RPS:                   cfg.LimitRPS,
			Burst:                 cfg.LimitBurst,
			MaxConcurrentRequests: cfg.LimitMaxConcurrentRequests,
			MaxConcurrentStreams:  cfg.LimitMaxConcurrentStreams,
		}),
		metrics: metrics.New(),
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

func newStore(cfg config.Config) (session.Store, error) {
	opts := []session.StoreOption{}
	switch session.StoreType(cfg.StoreType) {
	case session.StoreTypeRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		opts = append(opts, session.WithRedisClient(client), session.WithRedisTTL(cfg.SessionTTL))
	case session.StoreTypeSQLite:
		opts = append(opts, session.WithSQLitePath(cfg.SQLitePath))
	}
	return session.NewStore(session.StoreType(cfg.StoreType), opts...)
}

func newTTSProvider(cfg config.Config) (tts.Provider, error) {
	switch cfg.TTSProvider {
	case "elevenlabs":
		return tts.NewElevenLabs(cfg.ElevenLabsAPIKey), nil
	case "gemini", "":
		return tts.NewGemini(cfg.GeminiAPIKey), nil
	default:
		return nil, fmt.Errorf("unknown tts provider %q", cfg.TTSProvider)
	}
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{Config: s.cfg})
	s.mux.Handle("/metrics", s.metrics.Handler())
	s.mux.Handle("/v1/chat", &handlers.ChatHandler{
		Config:       s.cfg,
		Orchestrator: s.orch,
		Metrics:      s.metrics,
		Logger:       s.logger,
	})
	s.mux.Handle("/v1/sessions/", &handlers.SessionsHandler{
		Orchestrator: s.orch,
		Logger:       s.logger,
	})
	s.mux.Handle("/v1/speech", &handlers.SpeechHandler{
		Config:       s.cfg,
		Pipeline:     s.pipe,
		ProviderName: s.ttsName,
		Metrics:      s.metrics,
		Logger:       s.logger,
	})
	s.mux.Handle("/v1/speech/stream", handlers.NewStreamHandler(
		s.cfg, s.pipe, s.limiter, s.ttsName, s.metrics, s.logger))
}

// Handler returns the mux wrapped in the middleware chain. Order matters:
// the outermost middleware runs first, so a request passes through request-id
// tagging, metrics, access logging, panic recovery, CORS, auth, and rate
// limiting before it reaches a handler.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.RateLimit(s.cfg, s.limiter, h)
	h = mw.Auth(s.cfg, h)
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = s.metrics.Middleware(h)
	h = mw.RequestID(h)
	return h
}

// Close releases the session store's backing resources.
func (s *Server) Close() error {
	return s.store.Close()
}

// Orchestrator exposes the turn orchestrator, mainly for tests.
func (s *Server) Orchestrator() *tutor.Orchestrator { return s.orch }

// Shutdown is a convenience wrapper so main can treat server teardown
// uniformly with http.Server.Shutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	_ = ctx
	return s.Close()
}
