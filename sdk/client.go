// Package lingua provides the Go client for the lingua gateway.
//
// The client keeps a local view of the conversation so the UI can render
// the learner's turn immediately and reconcile once the tutor replies.
package lingua

import (
	"log/slog"
	"net/http"
	"time"
)

// DefaultTurnTimeout bounds one full exchange from the client's side. The
// gateway retries the vendor internally, so this sits above a single vendor
// call but below the point where a learner gives up on the conversation.
const DefaultTurnTimeout = 20 * time.Second

// Client talks to a lingua gateway.
type Client struct {
	Chat   *ChatService
	Speech *SpeechService

	baseURL      string
	apiKey       string
	httpClient   *http.Client
	logger       *slog.Logger
	turnTimeout  time.Duration
	maxRetries   int
	retryBackoff time.Duration
}

// NewClient creates a client for the gateway at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:      baseURL,
		logger:       slog.Default(),
		turnTimeout:  DefaultTurnTimeout,
		maxRetries:   2,
		retryBackoff: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = newDefaultHTTPClient()
	}

	c.Chat = &ChatService{client: c}
	c.Speech = &SpeechService{client: c}
	return c
}

// BaseURL returns the configured gateway address.
func (c *Client) BaseURL() string {
	return c.baseURL
}
