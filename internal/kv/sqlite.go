package kv

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/itowlson/spin/internal/sqlite"
)

// sqliteStore backs a key-value store with a sqlite database. This is the
// default backing for the "default" label: a file in the state directory.
type sqliteStore struct {
	path string

	once sync.Once
	db   *sql.DB
	err  error
}

// NewSqliteStoreManager creates a manager over a sqlite-file store. An
// empty path uses an in-memory database.
func NewSqliteStoreManager(path string) StoreManager {
	store := &sqliteStore{path: path}
	summary := "in-memory sqlite store"
	if path != "" {
		summary = fmt.Sprintf("sqlite store at %q", path)
	}
	return &singleStoreManager{
		open: func(ctx context.Context) (Store, error) {
			if err := store.ensure(ctx); err != nil {
				return nil, err
			}
			return store, nil
		},
		summary: summary,
	}
}

func (s *sqliteStore) ensure(ctx context.Context) error {
	s.once.Do(func() {
		s.db, s.err = sqlite.OpenDatabase(s.path)
		if s.err != nil {
			return
		}
		_, s.err = s.db.ExecContext(ctx,
			`CREATE TABLE IF NOT EXISTS spin_key_value (key TEXT PRIMARY KEY, value BLOB NOT NULL)`)
	})
	return s.err
}

func (s *sqliteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM spin_key_value WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *sqliteStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO spin_key_value (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *sqliteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM spin_key_value WHERE key = ?`, key)
	return err
}

func (s *sqliteStore) Exists(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM spin_key_value WHERE key = ?`, key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *sqliteStore) GetKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM spin_key_value ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
