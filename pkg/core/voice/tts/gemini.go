package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/fluently/lingua/pkg/core/types"
)

const (
	geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	geminiDefaultModel   = "gemini-2.5-flash-preview-tts"
)

// GeminiProvider synthesizes speech via the Gemini TTS models. Output is raw
// little-endian 16-bit PCM at 24 kHz.
type GeminiProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewGemini creates a Gemini TTS provider.
func NewGemini(apiKey string) *GeminiProvider {
	return &GeminiProvider{
		apiKey:     apiKey,
		baseURL:    geminiDefaultBaseURL,
		model:      geminiDefaultModel,
		httpClient: &http.Client{},
	}
}

// NewGeminiWithClient creates a Gemini TTS provider with a custom HTTP
// client. Used by tests.
func NewGeminiWithClient(apiKey, baseURL string, client *http.Client) *GeminiProvider {
	if client == nil {
		client = &http.Client{}
	}
	return &GeminiProvider{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      geminiDefaultModel,
		httpClient: client,
	}
}

func (g *GeminiProvider) Name() string {
	return "gemini"
}

type geminiTTSRequest struct {
	Contents         []geminiTTSContent `json:"contents"`
	GenerationConfig geminiTTSGenConfig `json:"generationConfig"`
}

type geminiTTSContent struct {
	Parts []geminiTTSPart `json:"parts"`
}

type geminiTTSPart struct {
	Text       string         `json:"text,omitempty"`
	InlineData *geminiTTSBlob `json:"inlineData,omitempty"`
}

type geminiTTSBlob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiTTSGenConfig struct {
	ResponseModalities []string        `json:"responseModalities"`
	SpeechConfig       geminiSpeechCfg `json:"speechConfig"`
}

type geminiSpeechCfg struct {
	VoiceConfig geminiVoiceCfg `json:"voiceConfig"`
}

type geminiVoiceCfg struct {
	PrebuiltVoiceConfig geminiPrebuiltVoice `json:"prebuiltVoiceConfig"`
}

type geminiPrebuiltVoice struct {
	VoiceName string `json:"voiceName"`
}

type geminiTTSResponse struct {
	Candidates []struct {
		Content geminiTTSContent `json:"content"`
	} `json:"candidates"`
}

// Synthesize sends one TTS request and returns the PCM payload.
func (g *GeminiProvider) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error) {
	req := geminiTTSRequest{
		Contents: []geminiTTSContent{{Parts: []geminiTTSPart{{Text: text}}}},
		GenerationConfig: geminiTTSGenConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: geminiSpeechCfg{
				VoiceConfig: geminiVoiceCfg{
					PrebuiltVoiceConfig: geminiPrebuiltVoice{VoiceName: opts.Voice},
				},
			},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gemini tts: status %d: %s", resp.StatusCode, errBody)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var ttsResp geminiTTSResponse
	if err := json.Unmarshal(respBody, &ttsResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(ttsResp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini tts: no candidates in response")
	}

	for _, part := range ttsResp.Candidates[0].Content.Parts {
		if part.InlineData == nil || part.InlineData.Data == "" {
			continue
		}
		audio, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			return nil, fmt.Errorf("decode audio payload: %w", err)
		}
		if len(audio) == 0 {
			break
		}
		return &Synthesis{
			Audio:      audio,
			Format:     types.AudioFormatPCM,
			SampleRate: types.PCMSampleRate,
		}, nil
	}
	return nil, fmt.Errorf("gemini tts: empty audio payload")
}
