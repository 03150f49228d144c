package session

import (
	"context"
	"sync"
	"time"

	"github.com/fluently/lingua/pkg/core/types"
)

// memoryStore keeps sessions in a process-local map. State is lost on
// restart; the redis and sqlite drivers exist for deployments that need
// durability.
type memoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	clock    func() time.Time
}

func newMemoryStore(clock func() time.Time) *memoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &memoryStore{
		sessions: make(map[string]*Session),
		clock:    clock,
	}
}

func (s *memoryStore) GetOrCreate(ctx context.Context, id string, lang types.Language, scenario types.Scenario, privileged bool) (*Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sessions[id]
	if ok && scenario == types.ScenarioNone {
		return existing.snapshot(), false, nil
	}

	now := s.clock()
	sess := &Session{
		ID:         id,
		Language:   lang,
		Scenario:   scenario,
		Privileged: privileged,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.sessions[id] = sess
	return sess.snapshot(), true, nil
}

func (s *memoryStore) Append(ctx context.Context, id string, turns ...types.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	sess.appendTurns(s.clock(), turns...)
	return nil
}

func (s *memoryStore) History(ctx context.Context, id string) ([]types.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]types.Turn(nil), sess.Turns...), nil
}

func (s *memoryStore) Invalidate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[string]*Session)
	return nil
}
