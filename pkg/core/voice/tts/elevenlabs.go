package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/fluently/lingua/pkg/core/types"
)

const (
	elevenLabsDefaultBaseURL = "https://api.elevenlabs.io/v1"
	elevenLabsDefaultModel   = "eleven_flash_v2_5"

	// ElevenLabs returns MP3 at this encoding profile.
	elevenLabsOutputFormat = "mp3_44100_128"
)

// ElevenLabsProvider synthesizes speech via the ElevenLabs HTTP API. Output
// is MP3.
type ElevenLabsProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewElevenLabs creates an ElevenLabs provider.
func NewElevenLabs(apiKey string) *ElevenLabsProvider {
	return &ElevenLabsProvider{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    elevenLabsDefaultBaseURL,
		model:      elevenLabsDefaultModel,
		httpClient: &http.Client{},
	}
}

// NewElevenLabsWithClient creates an ElevenLabs provider with a custom base
// URL and HTTP client. Used by tests.
func NewElevenLabsWithClient(apiKey, baseURL string, client *http.Client) *ElevenLabsProvider {
	if client == nil {
		client = &http.Client{}
	}
	return &ElevenLabsProvider{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    baseURL,
		model:      elevenLabsDefaultModel,
		httpClient: client,
	}
}

func (e *ElevenLabsProvider) Name() string {
	return "elevenlabs"
}

type elevenLabsRequest struct {
	Text          string            `json:"text"`
	ModelID       string            `json:"model_id"`
	LanguageCode  string            `json:"language_code,omitempty"`
	VoiceSettings *elevenLabsTuning `json:"voice_settings,omitempty"`
}

type elevenLabsTuning struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type elevenLabsError struct {
	Detail struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"detail"`
}

// Synthesize sends one text-to-speech request and returns the MP3 payload.
func (e *ElevenLabsProvider) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error) {
	if e.apiKey == "" {
		return nil, fmt.Errorf("elevenlabs api key is required")
	}
	voiceID := strings.TrimSpace(opts.Voice)
	if voiceID == "" {
		return nil, fmt.Errorf("voice id is required")
	}

	body, err := json.Marshal(elevenLabsRequest{
		Text:         text,
		ModelID:      e.model,
		LanguageCode: opts.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s",
		e.baseURL, url.PathEscape(voiceID), elevenLabsOutputFormat)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(resp.Body)
		var elErr elevenLabsError
		if json.Unmarshal(errBody, &elErr) == nil && elErr.Detail.Message != "" {
			return nil, fmt.Errorf("elevenlabs: %s: %s", elErr.Detail.Status, elErr.Detail.Message)
		}
		return nil, fmt.Errorf("elevenlabs: status %d: %s", resp.StatusCode, errBody)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("elevenlabs: empty audio payload")
	}

	return &Synthesis{
		Audio:  audio,
		Format: types.AudioFormatMP3,
	}, nil
}
