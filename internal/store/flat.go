package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/repostash/repostash/internal/common"
	"github.com/repostash/repostash/internal/model"
)

// FlatCap is the hard record cap of the flat tier. Reaching it (or holding
// zero records) hands authority to the indexed tier.
const FlatCap = 200

// FlatTable is the small-capacity tier: the whole collection serialized as
// one JSON blob under a fixed kv key. Cheap for small collections, useless
// beyond FlatCap.
type FlatTable struct {
	kv *KVRepository
}

// NewFlatTable returns a FlatTable over the given kv repository.
func NewFlatTable(kv *KVRepository) *FlatTable {
	return &FlatTable{kv: kv}
}

// ReadAll returns the stored collection. A missing or non-JSON blob yields
// an empty collection, not an error — the flat tier treats unreadable state
// as empty the same way it treats absent state.
func (f *FlatTable) ReadAll(ctx context.Context) ([]model.Repo, error) {
	value, ok, err := f.kv.Get(ctx, flatKey)
	if err != nil {
		return nil, err
	}
	if !ok || len(value) == 0 {
		return []model.Repo{}, nil
	}

	var repos []model.Repo
	if err := json.Unmarshal(value, &repos); err != nil {
		return []model.Repo{}, nil
	}
	return repos, nil
}

// Write replaces the stored collection. Collections above FlatCap are
// rejected with common.ErrCapExceeded.
func (f *FlatTable) Write(ctx context.Context, repos []model.Repo) error {
	if len(repos) > FlatCap {
		return fmt.Errorf("%w: flat tier holds at most %d records, got %d", common.ErrCapExceeded, FlatCap, len(repos))
	}
	data, err := json.Marshal(repos)
	if err != nil {
		return fmt.Errorf("failed to encode flat collection: %w", err)
	}
	return f.kv.Set(ctx, flatKey, data)
}

// Clear deletes the flat blob entirely.
func (f *FlatTable) Clear(ctx context.Context) error {
	return f.kv.Delete(ctx, flatKey)
}

// Count returns the number of records currently in the flat tier.
func (f *FlatTable) Count(ctx context.Context) (int, error) {
	repos, err := f.ReadAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(repos), nil
}
