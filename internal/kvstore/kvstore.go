// Package kvstore is the console's local durable key-value store. Values are
// JSON documents grouped by namespace and kept in a single SQLite file.
package kvstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no value is stored under the namespace/key pair.
var ErrNotFound = errors.New("kvstore: not found")

// Entry is one stored value.
type Entry struct {
	Key       string
	Value     []byte
	UpdatedAt time.Time
}

type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

type Option func(*Store)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open opens (or creates) the database at path and migrates it.
// Use ":memory:" for a throwaway store.
func Open(ctx context.Context, path string, options ...Option) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, errors.Wrap(err, "[kvstore.Open] create directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "[kvstore.Open] open sqlite %s", path)
	}
	// One connection keeps ":memory:" coherent and serialises writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "[kvstore.Open] %s", pragma)
		}
	}

	s := &Store{db: db, logger: zerolog.Nop()}
	for _, option := range options {
		option(s)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "[kvstore.Open] migrate")
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE namespace = ? AND key = ?`, namespace, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "[Store.Get] %s/%s", namespace, key)
	}
	return value, nil
}

func (s *Store) Put(ctx context.Context, namespace, key string, value []byte) error {
	s.logger.Debug().Str("namespace", namespace).Str("key", key).Msg("kv put")
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (namespace, key, value, updated_at_ns) VALUES (?, ?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at_ns = excluded.updated_at_ns`,
		namespace, key, value, time.Now().UnixNano(),
	)
	return errors.Wrapf(err, "[Store.Put] %s/%s", namespace, key)
}

// Delete removes a value. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	s.logger.Debug().Str("namespace", namespace).Str("key", key).Msg("kv delete")
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE namespace = ? AND key = ?`, namespace, key)
	return errors.Wrapf(err, "[Store.Delete] %s/%s", namespace, key)
}

// List returns every entry of a namespace ordered by key.
func (s *Store) List(ctx context.Context, namespace string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value, updated_at_ns FROM kv WHERE namespace = ? ORDER BY key`, namespace)
	if err != nil {
		return nil, errors.Wrapf(err, "[Store.List] %s", namespace)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var updated int64
		if err := rows.Scan(&e.Key, &e.Value, &updated); err != nil {
			return nil, errors.Wrapf(err, "[Store.List] scan %s", namespace)
		}
		e.UpdatedAt = time.Unix(0, updated)
		entries = append(entries, e)
	}
	return entries, errors.Wrapf(rows.Err(), "[Store.List] %s", namespace)
}

func (s *Store) GetJSON(ctx context.Context, namespace, key string, v interface{}) error {
	raw, err := s.Get(ctx, namespace, key)
	if err != nil {
		return err
	}
	return errors.Wrapf(json.Unmarshal(raw, v), "[Store.GetJSON] %s/%s", namespace, key)
}

func (s *Store) PutJSON(ctx context.Context, namespace, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "[Store.PutJSON] %s/%s", namespace, key)
	}
	return s.Put(ctx, namespace, key, raw)
}
