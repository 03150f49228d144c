// Package session owns chat session state: the ordered turn history plus the
// active language/scenario configuration, keyed by an opaque session id.
//
// The store is an injected capability, not ambient state. Drivers share the
// same semantics: a lookup miss or a non-empty scenario on an existing id
// creates a fresh session under that id (topic switch replaces history
// wholesale), and invalidation removes the mapping entirely so the next
// request starts clean.
package session

import (
	"time"

	"github.com/fluently/lingua/pkg/core/types"
)

const (
	// HardTurnCap bounds history for privileged sessions. When exceeded, the
	// oldest 20% of turns is pruned, whole turns only.
	HardTurnCap = 500

	// SoftTurnCap bounds history for non-privileged sessions.
	SoftTurnCap = 50
)

// Session is the ordered history of turns plus language/scenario context.
type Session struct {
	ID         string         `json:"id"`
	Language   types.Language `json:"language"`
	Scenario   types.Scenario `json:"scenario,omitempty"`
	Privileged bool           `json:"privileged,omitempty"`
	Turns      []types.Turn   `json:"turns"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// turnCap returns the history bound for this session.
func (s *Session) turnCap() int {
	if s.Privileged {
		return HardTurnCap
	}
	return SoftTurnCap
}

// appendTurns appends turns with monotonically increasing timestamps and
// prunes from the front when the cap is exceeded. Pruning drops the oldest
// complete turns down to 80% of the cap; turns are never split.
func (s *Session) appendTurns(now time.Time, turns ...types.Turn) {
	last := time.Time{}
	if n := len(s.Turns); n > 0 {
		last = s.Turns[n-1].Timestamp
	}

	for _, t := range turns {
		ts := now
		if !ts.After(last) {
			ts = last.Add(time.Nanosecond)
		}
		t.Timestamp = ts
		last = ts
		s.Turns = append(s.Turns, t)
	}
	s.UpdatedAt = now

	if cap := s.turnCap(); len(s.Turns) > cap {
		keep := cap - cap/5
		s.Turns = append([]types.Turn(nil), s.Turns[len(s.Turns)-keep:]...)
	}
}

// snapshot returns a copy safe to hand out of the store. Callers borrow the
// session for one exchange and must not retain it; the copy makes aliasing
// bugs impossible rather than merely forbidden.
func (s *Session) snapshot() *Session {
	out := *s
	out.Turns = append([]types.Turn(nil), s.Turns...)
	return &out
}
