package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fluently/lingua/pkg/core/types"
)

// sqliteStore persists sessions in a single-file database so state survives
// process restarts. Turn history is stored as a JSON column; sessions are
// read and written whole, matching the borrow-for-one-exchange model.
type sqliteStore struct {
	db    *sql.DB
	clock func() time.Time
}

func newSQLiteStore(path string, clock func() time.Time) (*sqliteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}
	// Single connection: sessions are single-writer per key and this keeps
	// :memory: databases stable across the pool.
	db.SetMaxOpenConns(1)

	store := &sqliteStore{db: db, clock: clock}
	if store.clock == nil {
		store.clock = time.Now
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate session database: %w", err)
	}
	return store, nil
}

func (s *sqliteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		language   TEXT NOT NULL,
		scenario   TEXT NOT NULL DEFAULT '',
		privileged INTEGER NOT NULL DEFAULT 0,
		turns      TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`)
	return err
}

func (s *sqliteStore) load(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, language, scenario, privileged, turns, created_at, updated_at
		 FROM sessions WHERE session_id = ?`, id)

	var sess Session
	var privileged int
	var turnsJSON string
	err := row.Scan(&sess.ID, &sess.Language, &sess.Scenario, &privileged, &turnsJSON, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	sess.Privileged = privileged != 0
	if err := json.Unmarshal([]byte(turnsJSON), &sess.Turns); err != nil {
		return nil, fmt.Errorf("decode session turns: %w", err)
	}
	return &sess, nil
}

func (s *sqliteStore) save(ctx context.Context, sess *Session) error {
	turnsJSON, err := json.Marshal(sess.Turns)
	if err != nil {
		return fmt.Errorf("encode session turns: %w", err)
	}
	privileged := 0
	if sess.Privileged {
		privileged = 1
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, language, scenario, privileged, turns, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			language = excluded.language,
			scenario = excluded.scenario,
			privileged = excluded.privileged,
			turns = excluded.turns,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		sess.ID, sess.Language, sess.Scenario, privileged, string(turnsJSON), sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *sqliteStore) GetOrCreate(ctx context.Context, id string, lang types.Language, scenario types.Scenario, privileged bool) (*Session, bool, error) {
	if scenario == types.ScenarioNone {
		existing, err := s.load(ctx, id)
		if err == nil {
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
		Turns:      []types.Turn{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, false, err
	}
	return sess.snapshot(), true, nil
}

func (s *sqliteStore) Append(ctx context.Context, id string, turns ...types.Turn) error {
	sess, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	sess.appendTurns(s.clock(), turns...)
	return s.save(ctx, sess)
}

func (s *sqliteStore) History(ctx context.Context, id string) ([]types.Turn, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess.Turns, nil
}

func (s *sqliteStore) Invalidate(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id)
	if err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	return nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
