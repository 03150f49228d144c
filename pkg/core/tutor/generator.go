package tutor

import (
	"context"
)

// Generator is the generation capability the orchestrator consumes. The call
// is a pure function of (system instruction, ordered contents): no hidden
// conversation state lives inside the provider, which keeps retries and
// persistence tractable.
type Generator interface {
	// Generate produces free-form text expected to contain one JSON object
	// matching the structured turn schema.
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// GenerateRequest is the vendor-facing request.
type GenerateRequest struct {
	System   string
	Contents []Content
}

// Content is one conversational unit in vendor terms.
type Content struct {
	Role  string // "user" or "model"
	Parts []Part
}

// Part is a content fragment: text and/or inline binary data.
type Part struct {
	Text   string
	Inline *InlineData
}

// InlineData carries base64-encoded binary with its mime type, used for
// user-submitted audio.
type InlineData struct {
	MIMEType string
	Data     string
}
