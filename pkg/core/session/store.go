package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fluently/lingua/pkg/core/types"
)

var (
	// ErrNotFound is returned when an operation requires an existing session.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidStoreType is returned for an unknown driver name.
	ErrInvalidStoreType = errors.New("invalid session store type")

	// ErrInvalidConfig is returned when a driver is missing required options.
	ErrInvalidConfig = errors.New("invalid session store config")
)

// Store maps an opaque session identifier to its session state.
//
// GetOrCreate returns the session for id, creating one when the id is unknown
// or when scenario is non-empty (topic switch: the old history is replaced,
// not merged). The returned session is a snapshot the caller borrows for one
// exchange. The second result reports whether a new session was created.
//
// Append adds turns to an existing session, assigning monotonic timestamps
// and pruning per the history cap. Invalidate removes the mapping entirely;
// it is invoked whenever a vendor call fails, since a failed call leaves
// context consumption ambiguous.
type Store interface {
	GetOrCreate(ctx context.Context, id string, lang types.Language, scenario types.Scenario, privileged bool) (*Session, bool, error)
	Append(ctx context.Context, id string, turns ...types.Turn) error
	History(ctx context.Context, id string) ([]types.Turn, error)
	Invalidate(ctx context.Context, id string) error
	Close() error
}

// StoreType selects a store driver.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
	StoreTypeSQLite StoreType = "sqlite"
)

// StoreOption configures NewStore.
type StoreOption func(*storeConfig)

type storeConfig struct {
	redisClient *redis.Client
	redisTTL    time.Duration
	sqlitePath  string
	clock       func() time.Time
}

// WithRedisClient sets the client for the redis driver.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithRedisTTL sets the key TTL for the redis driver.
func WithRedisTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.redisTTL = ttl
	}
}

// WithSQLitePath sets the database path for the sqlite driver.
func WithSQLitePath(path string) StoreOption {
	return func(c *storeConfig) {
		c.sqlitePath = path
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(clock func() time.Time) StoreOption {
	return func(c *storeConfig) {
		c.clock = clock
	}
}

// NewStore creates a Store for the given driver type.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	cfg := &storeConfig{clock: time.Now}
	for _, opt := range opts {
		opt(cfg)
	}

	switch storeType {
	case StoreTypeMemory:
		return newMemoryStore(cfg.clock), nil

	case StoreTypeRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		ttl := cfg.redisTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		return newRedisStore(cfg.redisClient, ttl, cfg.clock), nil

	case StoreTypeSQLite:
		if cfg.sqlitePath == "" {
			return nil, ErrInvalidConfig
		}
		return newSQLiteStore(cfg.sqlitePath, cfg.clock)

	default:
		return nil, ErrInvalidStoreType
	}
}
