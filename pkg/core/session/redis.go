package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fluently/lingua/pkg/core/types"
)

const redisKeyPrefix = "lingua:session:"

// redisStore keeps each session as a JSON blob under a TTL'd key. Writes are
// read-modify-write; the orchestrator already serializes exchanges per
// session id, so there is a single writer per key within one process.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
	clock  func() time.Time
}

func newRedisStore(client *redis.Client, ttl time.Duration, clock func() time.Time) *redisStore {
	if clock == nil {
		clock = time.Now
	}
	return &redisStore{client: client, ttl: ttl, clock: clock}
}

func (s *redisStore) key(id string) string {
	return redisKeyPrefix + id
}

func (s *redisStore) load(ctx context.Context, id string) (*Session, error) {
	val, err := s.client.Get(ctx, s.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, fmt.Errorf("redis decode session: %w", err)
	}
	return &sess, nil
}

func (s *redisStore) save(ctx context.Context, sess *Session) error {
	val, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("redis encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sess.ID), val, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (s *redisStore) GetOrCreate(ctx context.Context, id string, lang types.Language, scenario types.Scenario, privileged bool) (*Session, bool, error) {
	if scenario == types.ScenarioNone {
		existing, err := s.load(ctx, id)
		if err == nil {
			// Refresh TTL on read; a failure here is not fatal.
			_ = s.client.Expire(ctx, s.key(id), s.ttl).Err()
			return existing, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, err
		}
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
	if err := s.save(ctx, sess); err != nil {
		return nil, false, err
	}
	return sess.snapshot(), true, nil
}

func (s *redisStore) Append(ctx context.Context, id string, turns ...types.Turn) error {
	sess, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	sess.appendTurns(s.clock(), turns...)
	return s.save(ctx, sess)
}

func (s *redisStore) History(ctx context.Context, id string) ([]types.Turn, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess.Turns, nil
}

func (s *redisStore) Invalidate(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
