package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/repostash/repostash/internal/dbx"
)

// Well-known kv keys.
const (
	flatKey    = "repos"
	PendingKey = "pending"
	BackupsKey = "backups"
)

// KVRepository is a small key/value table used for the flat storage tier and
// single-slot payloads (pending record, backup snapshots).
type KVRepository struct {
	db dbx.DBTX
}

// NewKVRepository returns a KVRepository bound to the given DBTX.
func NewKVRepository(db dbx.DBTX) *KVRepository {
	return &KVRepository{db: db}
}

// Get returns the value stored under key. The second result reports whether
// the key exists.
func (r *KVRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key)

	var value []byte
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read kv %q: %w", key, err)
	}
	return value, true, nil
}

// Set upserts the value under key.
func (r *KVRepository) Set(ctx context.Context, key string, value []byte) error {
	query := `INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to upsert kv %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (r *KVRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete kv %q: %w", key, err)
	}
	return nil
}
