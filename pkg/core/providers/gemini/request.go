package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/fluently/lingua/pkg/core/tutor"
)

// geminiRequest is the Gemini API request format.
// Note: Gemini API uses camelCase for JSON field names.
type geminiRequest struct {
	Contents          []geminiContent  `json:"contents"`
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenConfig `json:"generationConfig,omitempty"`
}

// geminiContent represents a content object in Gemini format.
type geminiContent struct {
	Role  string       `json:"role,omitempty"` // "user" or "model"
	Parts []geminiPart `json:"parts"`
}

// geminiPart represents a single part within content.
type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *geminiBlob `json:"inlineData,omitempty"`
}

// geminiBlob represents inline binary data.
type geminiBlob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64 encoded
}

// geminiGenConfig contains generation configuration.
type geminiGenConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxOutputTokens  *int     `json:"maxOutputTokens,omitempty"`
	ResponseMIMEType string   `json:"responseMimeType,omitempty"`
}

// buildRequest converts a tutor generation request to the Gemini format.
func buildRequest(req tutor.GenerateRequest) *geminiRequest {
	out := &geminiRequest{}

	if req.System != "" {
		out.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: req.System}},
		}
	}

	out.Contents = make([]geminiContent, 0, len(req.Contents))
	for _, c := range req.Contents {
		gc := geminiContent{Role: c.Role}
		for _, part := range c.Parts {
			if part.Text != "" {
				gc.Parts = append(gc.Parts, geminiPart{Text: part.Text})
			}
			if part.Inline != nil {
				gc.Parts = append(gc.Parts, geminiPart{InlineData: &geminiBlob{
					MIMEType: part.Inline.MIMEType,
					Data:     part.Inline.Data,
				}})
			}
		}
		out.Contents = append(out.Contents, gc)
	}

	maxTokens := DefaultMaxTokens
	out.GenerationConfig = &geminiGenConfig{
		MaxOutputTokens: &maxTokens,
		// The output contract asks for a single JSON object; let Gemini
		// enforce it at the decoding layer too.
		ResponseMIMEType: "application/json",
	}

	return out
}

// doRequest sends a non-streaming generateContent request.
func (p *Provider) doRequest(ctx context.Context, req *geminiRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, p.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, parseError(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return respBody, nil
}
