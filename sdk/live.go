package lingua

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fluently/lingua/pkg/core/types"
)

// StreamChunk is one slice of a clip arriving over the speech stream.
type StreamChunk struct {
	Audio      []byte
	Format     types.AudioFormat
	SampleRate int
	Seq        int
}

type wireChunk struct {
	Audio      string `json:"audio,omitempty"`
	Format     string `json:"format,omitempty"`
	SampleRate int    `json:"sampleRate,omitempty"`
	Seq        int    `json:"seq"`
	Done       bool   `json:"done,omitempty"`
	Error      *Error `json:"error,omitempty"`
}

// StreamSpeech synthesizes text over the websocket stream, invoking onChunk
// for each audio slice as it arrives so playback can start before the clip
// is complete. It returns once the gateway signals the final chunk.
func (s *SpeechService) StreamSpeech(ctx context.Context, turnKey, text, voiceName string, onChunk func(StreamChunk) error) error {
	wsURL := websocketURL(s.client.baseURL) + "/v1/speech/stream"

	header := http.Header{}
	if s.client.apiKey != "" {
		header.Set("Authorization", "Bearer "+s.client.apiKey)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return &TransportError{Op: "dial speech stream", URL: wsURL, Err: err}
	}
	defer conn.Close()

	if err := conn.WriteJSON(speechRequest{Text: text, VoiceName: voiceName, TurnKey: turnKey}); err != nil {
		return &TransportError{Op: "write stream request", Err: err}
	}

	// Unblock reads when the context ends mid-stream.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.SetReadDeadline(time.Now())
		case <-done:
		}
	}()

	for {
		var chunk wireChunk
		if err := conn.ReadJSON(&chunk); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &TransportError{Op: "read stream chunk", Err: err}
		}
		if chunk.Error != nil {
			return chunk.Error
		}
		if chunk.Done {
			return nil
		}
		audio, err := base64.StdEncoding.DecodeString(chunk.Audio)
		if err != nil {
			return &TransportError{Op: "decode stream chunk", Err: err}
		}
		if onChunk != nil {
			if err := onChunk(StreamChunk{
				Audio:      audio,
				Format:     types.AudioFormat(chunk.Format),
				SampleRate: chunk.SampleRate,
				Seq:        chunk.Seq,
			}); err != nil {
				return err
			}
		}
	}
}

func websocketURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}
