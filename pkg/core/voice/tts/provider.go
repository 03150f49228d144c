// Package tts provides text-to-speech providers for tutor replies.
package tts

import (
	"context"

	"github.com/fluently/lingua/pkg/core/types"
)

// Provider is the interface for text-to-speech services. A provider commits
// to one output format; the pipeline branches on Synthesis.Format, never on
// payload sniffing.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize converts text to audio with the given voice identity.
	Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error)
}

// SynthesizeOptions configures synthesis.
type SynthesizeOptions struct {
	Voice      string // Voice identifier
	Language   string // Language code hint
	SampleRate int    // Requested sample rate for PCM output
}

// Synthesis is the result of synthesis. The format tag is authoritative for
// downstream decoding.
type Synthesis struct {
	Audio      []byte
	Format     types.AudioFormat
	SampleRate int // Meaningful for PCM only
}
