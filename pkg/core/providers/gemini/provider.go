// Package gemini implements the Google Gemini generation provider.
// It translates between the tutor's generation request and Gemini's
// generateContent wire format.
package gemini

import (
	"context"
	"net/http"

	"github.com/fluently/lingua/pkg/core/tutor"
)

const (
	// DefaultBaseURL is the default Gemini API endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultModel is the generation model used when none is configured.
	DefaultModel = "gemini-2.0-flash"

	// DefaultMaxTokens bounds the tutor reply size.
	DefaultMaxTokens = 2048
)

// Provider calls the Gemini generateContent API. It implements
// tutor.Generator: every call carries the full history, so no conversation
// state lives in the provider.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// New creates a new Gemini provider.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "gemini"
}

// Generate sends one generateContent request and returns the first
// candidate's text.
func (p *Provider) Generate(ctx context.Context, req tutor.GenerateRequest) (string, error) {
	geminiReq := buildRequest(req)

	respBody, err := p.doRequest(ctx, geminiReq)
	if err != nil {
		return "", err
	}

	return parseResponse(respBody)
}
