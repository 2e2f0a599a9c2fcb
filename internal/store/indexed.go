package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/repostash/repostash/internal/common"
	"github.com/repostash/repostash/internal/dbx"
	"github.com/repostash/repostash/internal/model"
)

// IndexedCap is the hard record cap of the indexed tier.
const IndexedCap = 5000

// IndexedStore is the larger-capacity tier: one row per record keyed by id,
// with status and saved_at lifted into indexed columns for cheap filtering.
type IndexedStore struct {
	db dbx.DBTX
}

// NewIndexedStore returns an IndexedStore bound to the given DBTX.
func NewIndexedStore(db dbx.DBTX) *IndexedStore {
	return &IndexedStore{db: db}
}

func scanRepo(doc []byte) (model.Repo, error) {
	var r model.Repo
	if err := json.Unmarshal(doc, &r); err != nil {
		return model.Repo{}, fmt.Errorf("failed to decode record: %w", err)
	}
	return r, nil
}

// GetAll lists all records ordered by saved_at descending.
func (s *IndexedStore) GetAll(ctx context.Context) ([]model.Repo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM repos ORDER BY saved_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	result := []model.Repo{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		r, err := scanRepo(doc)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Get returns a single record or common.ErrNotFound.
func (s *IndexedStore) Get(ctx context.Context, id string) (model.Repo, error) {
	row := s.db.QueryRowContext(ctx, `SELECT doc FROM repos WHERE id = ?`, id)

	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Repo{}, fmt.Errorf("record %q: %w", id, common.ErrNotFound)
		}
		return model.Repo{}, fmt.Errorf("failed to read record %q: %w", id, err)
	}
	return scanRepo(doc)
}

// Put upserts a record by id.
func (s *IndexedStore) Put(ctx context.Context, r model.Repo) error {
	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode record %q: %w", r.ID, err)
	}
	query := `INSERT INTO repos (id, doc, status, saved_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			doc = excluded.doc,
			status = excluded.status,
			saved_at = excluded.saved_at`
	if _, err := s.db.ExecContext(ctx, query, r.ID, doc, r.Status, r.SavedAt); err != nil {
		return fmt.Errorf("failed to upsert record %q: %w", r.ID, err)
	}
	return nil
}

// Delete removes a record. Removing a missing id is not an error.
func (s *IndexedStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM repos WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete record %q: %w", id, err)
	}
	return nil
}

// Clear removes every record.
func (s *IndexedStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM repos`); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	return nil
}

// ReplaceAllTx atomically replaces the whole tier contents inside a
// transaction on db. Collections above IndexedCap are rejected with
// common.ErrCapExceeded.
func ReplaceAllTx(ctx context.Context, db *sql.DB, repos []model.Repo) error {
	if len(repos) > IndexedCap {
		return fmt.Errorf("%w: indexed tier holds at most %d records, got %d", common.ErrCapExceeded, IndexedCap, len(repos))
	}
	return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		s := NewIndexedStore(tx)
		if err := s.Clear(ctx); err != nil {
			return err
		}
		for _, r := range repos {
			if err := s.Put(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
}
