package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repostash/repostash/internal/common"
	"github.com/repostash/repostash/internal/model"
)

func setupTiered(t *testing.T) (*TieredStore, *FlatTable, *IndexedStore) {
	t.Helper()
	db := setupDB(t)
	ts := NewTieredStore(db, nil)
	return ts, ts.flat, ts.idx
}

func fillFlat(t *testing.T, flat *FlatTable, n int) []model.Repo {
	t.Helper()
	repos := make([]model.Repo, 0, n)
	for i := 0; i < n; i++ {
		repos = append(repos, testRepo(i))
	}
	require.NoError(t, flat.Write(context.Background(), repos))
	return repos
}

func TestTiered_EmptyStateUsesIndexedTier(t *testing.T) {
	ts, _, _ := setupTiered(t)
	assert.True(t, ts.useIndexed(context.Background()))
}

func TestTiered_SmallFlatCollectionStaysFlat(t *testing.T) {
	ts, flat, idx := setupTiered(t)
	ctx := context.Background()
	fillFlat(t, flat, 3)

	assert.False(t, ts.useIndexed(ctx))

	require.True(t, ts.Add(ctx, testRepo(100)))

	// still on the flat tier
	n, err := flat.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	all, err := idx.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestTiered_MigrationFiresAtBoundary(t *testing.T) {
	ts, flat, idx := setupTiered(t)
	ctx := context.Background()
	fillFlat(t, flat, FlatCap)

	// flat holds exactly FlatCap records: the next add must route through
	// the indexed tier and leave the flat tier empty.
	require.True(t, ts.Add(ctx, testRepo(9999)))

	n, err := flat.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	all, err := idx.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, FlatCap+1)
}

func TestTiered_AddCrossingCapMigratesAfterWrite(t *testing.T) {
	ts, flat, idx := setupTiered(t)
	ctx := context.Background()
	fillFlat(t, flat, FlatCap-1)

	// this add lands on the flat tier and pushes it to the cap, which
	// triggers migration right away.
	require.True(t, ts.Add(ctx, testRepo(9999)))

	n, err := flat.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	all, err := idx.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, FlatCap)
}

func TestTiered_MigrationIsIdempotent(t *testing.T) {
	ts, flat, _ := setupTiered(t)
	ctx := context.Background()

	require.NoError(t, ts.migrate(ctx))
	require.NoError(t, ts.migrate(ctx))

	n, err := flat.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestTiered_AddRejectsDuplicateOnFlatTier(t *testing.T) {
	ts, flat, _ := setupTiered(t)
	ctx := context.Background()
	repos := fillFlat(t, flat, 2)

	assert.False(t, ts.Add(ctx, repos[0]))
	got := ts.GetAll(ctx)
	assert.Len(t, got, 2)
}

func TestTiered_UpsertReplacesOnFlatTier(t *testing.T) {
	ts, flat, _ := setupTiered(t)
	ctx := context.Background()
	repos := fillFlat(t, flat, 2)

	changed := repos[0]
	changed.Note = "restored"
	require.True(t, ts.Upsert(ctx, changed))

	got := ts.GetAll(ctx)
	require.Len(t, got, 2)
	var found bool
	for _, r := range got {
		if r.ID == changed.ID {
			found = true
			assert.Equal(t, "restored", r.Note)
		}
	}
	assert.True(t, found)
}

func TestTiered_RemoveOnBothTiers(t *testing.T) {
	ts, flat, _ := setupTiered(t)
	ctx := context.Background()
	repos := fillFlat(t, flat, 3)

	require.True(t, ts.Remove(ctx, repos[1].ID))
	assert.Len(t, ts.GetAll(ctx), 2)

	// move everything to the indexed tier and remove there too
	require.True(t, ts.ReplaceAll(ctx, nil))
	r := testRepo(500)
	require.True(t, ts.Add(ctx, r))
	require.True(t, ts.Remove(ctx, r.ID))
	assert.Empty(t, ts.GetAll(ctx))
}

func TestTiered_UpdateMissingIsNotFound(t *testing.T) {
	ts, flat, _ := setupTiered(t)
	ctx := context.Background()
	fillFlat(t, flat, 2)

	err := ts.Update(ctx, "no/such", map[string]any{"status": model.StatusViewed})
	require.ErrorIs(t, err, common.ErrNotFound)

	// indexed tier path
	require.True(t, ts.ReplaceAll(ctx, nil))
	err = ts.Update(ctx, "no/such", map[string]any{"status": model.StatusViewed})
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestTiered_UpdateMergesPartialPayload(t *testing.T) {
	ts, flat, _ := setupTiered(t)
	ctx := context.Background()
	repos := fillFlat(t, flat, 2)

	require.NoError(t, ts.Update(ctx, repos[0].ID, map[string]any{"status": model.StatusInUse}))

	got := ts.GetAll(ctx)
	for _, r := range got {
		if r.ID == repos[0].ID {
			assert.Equal(t, model.StatusInUse, r.Status)
			assert.Equal(t, repos[0].SavedAt, r.SavedAt)
		}
	}
}

func TestTiered_ReplaceAllRoutesBySize(t *testing.T) {
	ts, flat, idx := setupTiered(t)
	ctx := context.Background()

	small := []model.Repo{testRepo(1), testRepo(2)}
	require.True(t, ts.ReplaceAll(ctx, small))
	n, err := flat.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	big := make([]model.Repo, FlatCap)
	for i := range big {
		big[i] = testRepo(i)
	}
	require.True(t, ts.ReplaceAll(ctx, big))
	n, err = flat.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	all, err := idx.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, FlatCap)
}

func TestTiered_GetAllRunsPendingMigration(t *testing.T) {
	ts, flat, idx := setupTiered(t)
	ctx := context.Background()
	fillFlat(t, flat, FlatCap)

	got := ts.GetAll(ctx)
	assert.Len(t, got, FlatCap)

	n, err := flat.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	all, err := idx.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, FlatCap)
}
