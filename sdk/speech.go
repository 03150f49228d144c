package lingua

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"

	"github.com/fluently/lingua/pkg/core/types"
)

// SpeechService fetches synthesized audio for tutor replies.
//
// It keeps at most one decoded clip, keyed by turn: replaying the current
// reply is free, and requesting speech for a new turn drops the old clip.
type SpeechService struct {
	client *Client

	mu       sync.Mutex
	cacheKey string
	cached   *types.AudioClip
}

type speechRequest struct {
	Text      string `json:"text"`
	VoiceName string `json:"voiceName"`
	TurnKey   string `json:"turnKey,omitempty"`
}

type speechEnvelope struct {
	AudioData  string `json:"audioData"`
	Format     string `json:"format"`
	SampleRate int    `json:"sampleRate,omitempty"`
}

// Speak returns the synthesized clip for one tutor reply. turnKey identifies
// the reply; pass the same key to replay without another gateway call.
func (s *SpeechService) Speak(ctx context.Context, turnKey, text, voiceName string) (*types.AudioClip, error) {
	s.mu.Lock()
	if s.cached != nil && s.cacheKey == turnKey {
		clip := s.cached
		s.mu.Unlock()
		return clip, nil
	}
	s.mu.Unlock()

	var resp speechEnvelope
	err := s.client.doJSON(ctx, http.MethodPost, "/v1/speech", speechRequest{
		Text:      text,
		VoiceName: voiceName,
		TurnKey:   turnKey,
	}, &resp, nil)
	if err != nil {
		return nil, err
	}

	data, err := base64.StdEncoding.DecodeString(resp.AudioData)
	if err != nil {
		return nil, fmt.Errorf("decode audio payload: %w", err)
	}
	clip := &types.AudioClip{
		Format:     types.AudioFormat(resp.Format),
		Data:       data,
		SampleRate: resp.SampleRate,
	}

	s.mu.Lock()
	s.cacheKey = turnKey
	s.cached = clip
	s.mu.Unlock()
	return clip, nil
}
