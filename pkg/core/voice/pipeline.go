// Package voice converts between the wire forms of audio and playable
// buffers: user recordings are gated and base64-encoded for upload, tutor
// replies are synthesized to speech, and synthesis payloads are decoded for
// playback. The synthesis vendor changed over the system's life, so both MP3
// and raw PCM payloads appear; the format tag on the clip is authoritative,
// the payload bytes are never sniffed.
package voice

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hajimehoshi/go-mp3"

	"github.com/fluently/lingua/pkg/core"
	"github.com/fluently/lingua/pkg/core/types"
	"github.com/fluently/lingua/pkg/core/voice/tts"
)

const (
	// MinRecordingDuration gates accidental taps. Recordings shorter than
	// this never reach the upload encoder.
	MinRecordingDuration = time.Second

	// DefaultSynthesisTimeout bounds one synthesis call.
	DefaultSynthesisTimeout = 15 * time.Second
)

// ErrRecordingTooShort is returned for recordings under the minimum
// duration.
var ErrRecordingTooShort = fmt.Errorf("recording shorter than %v", MinRecordingDuration)

// Recording is a captured user audio clip before upload encoding.
type Recording struct {
	Data     []byte
	MIMEType string
	Duration time.Duration
}

// PlaybackBuffer is decoded audio ready for an output device: interleaved
// float samples in [-1, 1].
type PlaybackBuffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Pipeline handles upload encoding, speech synthesis, and playback decoding.
// The last successful synthesis is cached per tutor turn, one clip at a
// time; synthesizing for a different turn discards the previous clip.
type Pipeline struct {
	provider tts.Provider
	timeout  time.Duration
	minRec   time.Duration

	mu       sync.Mutex
	cacheKey string
	cached   *types.AudioClip
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithSynthesisTimeout overrides the per-call synthesis bound.
func WithSynthesisTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		p.timeout = d
	}
}

// WithMinRecordingDuration overrides the accidental-tap gate.
func WithMinRecordingDuration(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		p.minRec = d
	}
}

// NewPipeline creates a pipeline over the given synthesis provider.
func NewPipeline(provider tts.Provider, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		provider: provider,
		timeout:  DefaultSynthesisTimeout,
		minRec:   MinRecordingDuration,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EncodeForUpload converts a recording into the wire form carried on a chat
// request. Recordings under the minimum duration are rejected.
func (p *Pipeline) EncodeForUpload(rec Recording) (*types.AudioRef, error) {
	if rec.Duration < p.minRec {
		return nil, ErrRecordingTooShort
	}
	if len(rec.Data) == 0 {
		return nil, fmt.Errorf("empty recording")
	}
	mime := rec.MIMEType
	if mime == "" {
		mime = "audio/wav"
	}
	return &types.AudioRef{
		MIMEType: mime,
		Data:     base64.StdEncoding.EncodeToString(rec.Data),
	}, nil
}

// Synthesize produces speech for one tutor turn, keyed by turnKey for
// caching. Repeat calls for the same key replay the cached clip without a
// vendor round-trip.
func (p *Pipeline) Synthesize(ctx context.Context, turnKey, text, voice string) (*types.AudioClip, error) {
	p.mu.Lock()
	if p.cached != nil && p.cacheKey == turnKey {
		clip := p.cached
		p.mu.Unlock()
		return clip, nil
	}
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	syn, err := p.provider.Synthesize(ctx, text, tts.SynthesizeOptions{
		Voice:      voice,
		SampleRate: types.PCMSampleRate,
	})
	if err != nil {
		return nil, core.NewSynthesisError(fmt.Sprintf("speech synthesis failed: %v", err))
	}
	if len(syn.Audio) == 0 {
		return nil, core.NewSynthesisError("speech synthesis returned no audio")
	}

	clip := &types.AudioClip{
		Format:     syn.Format,
		Data:       syn.Audio,
		SampleRate: syn.SampleRate,
	}

	p.mu.Lock()
	p.cacheKey = turnKey
	p.cached = clip
	p.mu.Unlock()

	return clip, nil
}

// DecodeForPlayback converts a clip into a playable buffer, branching on the
// clip's format tag.
func (p *Pipeline) DecodeForPlayback(clip *types.AudioClip) (*PlaybackBuffer, error) {
	switch clip.Format {
	case types.AudioFormatPCM:
		return decodePCM(clip)
	case types.AudioFormatMP3:
		return decodeMP3(clip.Data)
	default:
		return nil, fmt.Errorf("unknown audio format %q", clip.Format)
	}
}

// decodePCM converts little-endian signed 16-bit mono samples to floats in
// [-1, 1].
func decodePCM(clip *types.AudioClip) (*PlaybackBuffer, error) {
	data := clip.Data
	if len(data)%2 != 0 {
		// A truncated trailing byte cannot form a sample.
		data = data[:len(data)-1]
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty pcm payload")
	}

	samples := make([]float32, len(data)/2)
	for i := range samples {
		s := int16(data[2*i]) | int16(data[2*i+1])<<8
		samples[i] = float32(s) / 32768.0
	}

	rate := clip.SampleRate
	if rate == 0 {
		rate = types.PCMSampleRate
	}
	return &PlaybackBuffer{Samples: samples, SampleRate: rate, Channels: 1}, nil
}

// decodeMP3 decodes an MP3 payload. go-mp3 always outputs 16-bit stereo.
func decodeMP3(data []byte) (*PlaybackBuffer, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("decode mp3: empty output")
	}
	if len(raw)%2 != 0 {
		raw = raw[:len(raw)-1]
	}

	samples := make([]float32, len(raw)/2)
	for i := range samples {
		s := int16(raw[2*i]) | int16(raw[2*i+1])<<8
		samples[i] = float32(s) / 32768.0
	}

	return &PlaybackBuffer{Samples: samples, SampleRate: dec.SampleRate(), Channels: 2}, nil
}
