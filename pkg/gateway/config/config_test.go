package config

import (
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LINGUA_GEMINI_API_KEY", "test-key")
}

func TestLoadFromEnvDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.AuthMode != AuthModeDisabled {
		t.Errorf("AuthMode = %q", cfg.AuthMode)
	}
	if cfg.StoreType != "memory" {
		t.Errorf("StoreType = %q", cfg.StoreType)
	}
	if cfg.TTSProvider != "gemini" {
		t.Errorf("TTSProvider = %q", cfg.TTSProvider)
	}
	if cfg.RetryAttempts != 3 {
		t.Errorf("RetryAttempts = %d", cfg.RetryAttempts)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
}

func TestLoadFromEnvMissingGeminiKey(t *testing.T) {
	t.Setenv("LINGUA_GEMINI_API_KEY", "")
	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error without gemini key")
	}
}

func TestLoadFromEnvAuthRequiredNeedsKeys(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("LINGUA_AUTH_MODE", "required")

	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error for required auth without keys")
	}

	t.Setenv("LINGUA_API_KEYS", "k1, k2")
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if len(cfg.APIKeys) != 2 {
		t.Errorf("len(APIKeys) = %d, want 2", len(cfg.APIKeys))
	}
	if _, ok := cfg.APIKeys["k2"]; !ok {
		t.Error("k2 missing after CSV trim")
	}
}

func TestLoadFromEnvValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad auth mode", "LINGUA_AUTH_MODE", "sometimes"},
		{"bad store", "LINGUA_STORE", "dynamo"},
		{"bad tts provider", "LINGUA_TTS_PROVIDER", "espeak"},
		{"elevenlabs without key", "LINGUA_TTS_PROVIDER", "elevenlabs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := LoadFromEnv(); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoadFromEnvPrivilegedKeys(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("LINGUA_PRIVILEGED_KEYS", "vip-key")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if _, ok := cfg.PrivilegedKeys["vip-key"]; !ok {
		t.Error("privileged key not loaded")
	}
}
