package kv

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLite stores entries in the kv_entries table created by the database
// migrations.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get kv entry %q: %w", key, err)
	}
	return value, nil
}

func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set kv entry %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete kv entry %q: %w", key, err)
	}
	return nil
}
