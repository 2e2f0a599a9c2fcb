package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/repostash/repostash/internal/common"
	"github.com/repostash/repostash/internal/logging"
	"github.com/repostash/repostash/internal/model"
)

// TieredStore owns the two local backends and decides, per call, which one
// is authoritative. The rule is a pure function of current flat-tier
// contents: FlatCap or more records, or zero records, selects the indexed
// tier. There is no persisted mode flag, so a partially completed migration
// self-heals on the next call.
//
// Platform-level failures are logged and converted to false/empty results;
// callers treat them as "operation did not happen". The one exception is
// Update on a missing id, which is a hard common.ErrNotFound.
type TieredStore struct {
	db   *sql.DB
	flat *FlatTable
	idx  *IndexedStore
	log  logging.Logger
}

// NewTieredStore builds a TieredStore over an initialized database handle.
func NewTieredStore(db *sql.DB, log logging.Logger) *TieredStore {
	if log == nil {
		log = logging.NopLogger{}
	}
	return &TieredStore{
		db:   db,
		flat: NewFlatTable(NewKVRepository(db)),
		idx:  NewIndexedStore(db),
		log:  log.With("component", "store"),
	}
}

// useIndexed re-derives tier selection. A flat-tier read failure selects
// the indexed tier, mirroring the empty-flat case.
func (t *TieredStore) useIndexed(ctx context.Context) bool {
	n, err := t.flat.Count(ctx)
	if err != nil {
		t.log.Warn(ctx, "flat tier unreadable, selecting indexed tier", "err", err)
		return true
	}
	return n >= FlatCap || n == 0
}

// migrate copies all flat-tier records into the indexed tier (overwriting
// its contents) and deletes the flat blob. Idempotent: an empty flat tier
// is a no-op. Must complete before the triggering operation proceeds.
func (t *TieredStore) migrate(ctx context.Context) error {
	repos, err := t.flat.ReadAll(ctx)
	if err != nil {
		return err
	}
	if len(repos) == 0 {
		return nil
	}
	if err := ReplaceAllTx(ctx, t.db, repos); err != nil {
		return err
	}
	return t.flat.Clear(ctx)
}

// GetAll returns the full collection from the authoritative tier, running
// any pending migration first. Failures yield an empty collection.
func (t *TieredStore) GetAll(ctx context.Context) []model.Repo {
	if t.useIndexed(ctx) {
		if err := t.migrate(ctx); err != nil {
			t.log.Error(ctx, "tier migration failed", "err", err)
			return []model.Repo{}
		}
		repos, err := t.idx.GetAll(ctx)
		if err != nil {
			t.log.Error(ctx, "indexed read failed", "err", err)
			return []model.Repo{}
		}
		return repos
	}

	repos, err := t.flat.ReadAll(ctx)
	if err != nil {
		t.log.Error(ctx, "flat read failed", "err", err)
		return []model.Repo{}
	}
	return repos
}

// Add inserts a new record. On the flat tier an existing id is rejected;
// the indexed tier upserts (duplicate detection is the caller's concern
// there). Crossing FlatCap triggers migration immediately after the write.
func (t *TieredStore) Add(ctx context.Context, r model.Repo) bool {
	if t.useIndexed(ctx) {
		if err := t.migrate(ctx); err != nil {
			t.log.Error(ctx, "tier migration failed", "err", err)
			return false
		}
		if err := t.idx.Put(ctx, r); err != nil {
			t.log.Error(ctx, "indexed add failed", "id", r.ID, "err", err)
			return false
		}
		return true
	}

	repos, err := t.flat.ReadAll(ctx)
	if err != nil {
		t.log.Error(ctx, "flat read failed", "err", err)
		return false
	}
	for _, existing := range repos {
		if existing.ID == r.ID {
			return false
		}
	}
	repos = append(repos, r)
	if err := t.flat.Write(ctx, repos); err != nil {
		t.log.Error(ctx, "flat write failed", "err", err)
		return false
	}
	if len(repos) >= FlatCap {
		if err := t.migrate(ctx); err != nil {
			t.log.Error(ctx, "tier migration failed", "err", err)
		}
	}
	return true
}

// Upsert inserts or replaces a full record by id (restore semantics).
func (t *TieredStore) Upsert(ctx context.Context, r model.Repo) bool {
	if t.useIndexed(ctx) {
		if err := t.migrate(ctx); err != nil {
			t.log.Error(ctx, "tier migration failed", "err", err)
			return false
		}
		if err := t.idx.Put(ctx, r); err != nil {
			t.log.Error(ctx, "indexed upsert failed", "id", r.ID, "err", err)
			return false
		}
		return true
	}

	repos, err := t.flat.ReadAll(ctx)
	if err != nil {
		t.log.Error(ctx, "flat read failed", "err", err)
		return false
	}
	replaced := false
	for i, existing := range repos {
		if existing.ID == r.ID {
			repos[i] = r
			replaced = true
			break
		}
	}
	if !replaced {
		repos = append(repos, r)
	}
	if err := t.flat.Write(ctx, repos); err != nil {
		t.log.Error(ctx, "flat write failed", "err", err)
		return false
	}
	return true
}

// Remove deletes a record by id. Removing a missing id succeeds.
func (t *TieredStore) Remove(ctx context.Context, id string) bool {
	if t.useIndexed(ctx) {
		if err := t.migrate(ctx); err != nil {
			t.log.Error(ctx, "tier migration failed", "err", err)
			return false
		}
		if err := t.idx.Delete(ctx, id); err != nil {
			t.log.Error(ctx, "indexed delete failed", "id", id, "err", err)
			return false
		}
		return true
	}

	repos, err := t.flat.ReadAll(ctx)
	if err != nil {
		t.log.Error(ctx, "flat read failed", "err", err)
		return false
	}
	filtered := repos[:0]
	for _, existing := range repos {
		if existing.ID != id {
			filtered = append(filtered, existing)
		}
	}
	if err := t.flat.Write(ctx, filtered); err != nil {
		t.log.Error(ctx, "flat write failed", "err", err)
		return false
	}
	return true
}

// Update merges a partial update payload into an existing record. A missing
// id is a hard common.ErrNotFound.
func (t *TieredStore) Update(ctx context.Context, id string, updates map[string]any) error {
	if t.useIndexed(ctx) {
		if err := t.migrate(ctx); err != nil {
			return err
		}
		current, err := t.idx.Get(ctx, id)
		if err != nil {
			return err
		}
		merged, err := current.ApplyUpdates(updates)
		if err != nil {
			return err
		}
		return t.idx.Put(ctx, merged)
	}

	repos, err := t.flat.ReadAll(ctx)
	if err != nil {
		return err
	}
	for i, existing := range repos {
		if existing.ID == id {
			merged, err := existing.ApplyUpdates(updates)
			if err != nil {
				return err
			}
			repos[i] = merged
			return t.flat.Write(ctx, repos)
		}
	}
	return fmt.Errorf("record %q: %w", id, common.ErrNotFound)
}

// ReplaceAll swaps in a whole new collection, routing it to the tier the
// selection rule would pick for the new size and clearing the other tier so
// exactly one backend owns the data. Collections over the target tier's cap
// are rejected.
func (t *TieredStore) ReplaceAll(ctx context.Context, repos []model.Repo) bool {
	if len(repos) >= FlatCap || len(repos) == 0 {
		if err := ReplaceAllTx(ctx, t.db, repos); err != nil {
			if errors.Is(err, common.ErrCapExceeded) {
				t.log.Warn(ctx, "replace rejected", "count", len(repos), "err", err)
			} else {
				t.log.Error(ctx, "indexed replace failed", "err", err)
			}
			return false
		}
		if err := t.flat.Clear(ctx); err != nil {
			t.log.Error(ctx, "flat clear failed", "err", err)
			return false
		}
		return true
	}

	if err := t.flat.Write(ctx, repos); err != nil {
		t.log.Error(ctx, "flat write failed", "err", err)
		return false
	}
	if err := t.idx.Clear(ctx); err != nil {
		t.log.Error(ctx, "indexed clear failed", "err", err)
		return false
	}
	return true
}
