package lingua

import (
	"fmt"
	"sync"

	"github.com/fluently/lingua/pkg/core/types"
)

// TurnState tracks where an in-flight exchange is from the UI's point of
// view. The learner's turn renders as soon as the exchange starts; the
// state decides whether it shows as pending, confirmed, or failed.
type TurnState string

const (
	// StateIdle: no exchange in flight.
	StateIdle TurnState = "idle"
	// StateSending: the request left the client but the gateway has not
	// acknowledged it yet.
	StateSending TurnState = "sending"
	// StateAwaiting: the gateway accepted the request and the tutor is
	// composing a reply.
	StateAwaiting TurnState = "awaiting"
	// StateRendered: the tutor's reply arrived and both turns are final.
	StateRendered TurnState = "rendered"
	// StateFailed: the exchange failed; the optimistic turn is marked
	// failed and may be retried.
	StateFailed TurnState = "failed"
)

var turnTransitions = map[TurnState][]TurnState{
	StateIdle:     {StateSending},
	StateSending:  {StateAwaiting, StateFailed},
	StateAwaiting: {StateRendered, StateFailed},
	StateRendered: {StateSending},
	StateFailed:   {StateSending},
}

// CanTransition reports whether moving from s to next is legal.
func (s TurnState) CanTransition(next TurnState) bool {
	for _, allowed := range turnTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// LocalTurn is a turn as the client renders it, which may be ahead of what
// the gateway has persisted.
type LocalTurn struct {
	Turn       types.Turn
	Structured *types.StructuredTurn
	Pending    bool
	Failed     bool
}

// Conversation is the client-side transcript plus the state machine for the
// exchange currently in flight. Safe for concurrent use; one exchange at a
// time.
type Conversation struct {
	mu        sync.Mutex
	sessionID string
	language  string
	state     TurnState
	turns     []LocalTurn
}

// NewConversation starts an empty client-side transcript.
func NewConversation(sessionID, language string) *Conversation {
	return &Conversation{
		sessionID: sessionID,
		language:  language,
		state:     StateIdle,
	}
}

func (c *Conversation) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// State returns the current exchange state.
func (c *Conversation) State() TurnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Turns returns a copy of the local transcript.
func (c *Conversation) Turns() []LocalTurn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]LocalTurn, len(c.turns))
	copy(out, c.turns)
	return out
}

// beginTurn appends the learner's turn optimistically and moves to sending.
// Scenario openings carry no learner turn and pass an empty text.
func (c *Conversation) beginTurn(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.CanTransition(StateSending) {
		return fmt.Errorf("exchange already in flight (state %s)", c.state)
	}
	// A retry reuses the failed optimistic turn instead of appending a
	// duplicate.
	if n := len(c.turns); n > 0 && c.turns[n-1].Failed {
		c.turns[n-1].Failed = false
		c.turns[n-1].Pending = true
	} else if text != "" {
		c.turns = append(c.turns, LocalTurn{
			Turn:    types.Turn{Role: types.RoleUser, Text: text},
			Pending: true,
		})
	}
	c.state = StateSending
	return nil
}

// sent marks the request as accepted by the gateway.
func (c *Conversation) sent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.CanTransition(StateAwaiting) {
		c.state = StateAwaiting
	}
}

// rendered confirms the pending learner turn and appends the tutor's reply.
func (c *Conversation) rendered(sessionID string, reply *types.StructuredTurn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = sessionID
	if n := len(c.turns); n > 0 && c.turns[n-1].Pending {
		c.turns[n-1].Pending = false
	}
	tutorTurn := LocalTurn{
		Turn:       types.Turn{Role: types.RoleTutor},
		Structured: reply,
	}
	if reply != nil {
		tutorTurn.Turn.Text = reply.Response.TargetText
	}
	c.turns = append(c.turns, tutorTurn)
	c.state = StateRendered
}

// failed marks the pending learner turn failed so the UI can offer a retry.
func (c *Conversation) failed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := len(c.turns); n > 0 && c.turns[n-1].Pending {
		c.turns[n-1].Pending = false
		c.turns[n-1].Failed = true
	}
	c.state = StateFailed
}
