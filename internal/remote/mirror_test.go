package remote

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repostash/repostash/internal/codec"
	"github.com/repostash/repostash/internal/common"
	"github.com/repostash/repostash/internal/model"
)

func testRepo(i int, note string) model.Repo {
	r := model.Repo{
		Owner:   "owner",
		Name:    fmt.Sprintf("repo-%04d", i),
		Note:    note,
		SavedAt: int64(1000 + i),
	}
	r.Normalize()
	return r
}

func mustSize(t *testing.T, repos []model.Repo) int {
	t.Helper()
	text, err := codec.Marshal(repos)
	require.NoError(t, err)
	return len(text)
}

func TestMirror_PushPullRoundTrip(t *testing.T) {
	kv := NewMemoryKV()
	m := NewMirror(kv, DefaultQuotas(), nil)
	ctx := context.Background()

	want := []model.Repo{testRepo(1, ""), testRepo(2, ""), testRepo(3, "")}
	meta, err := m.Push(ctx, want)
	require.NoError(t, err)
	assert.Equal(t, 1, meta.Version)
	assert.NotEmpty(t, meta.Revision)
	assert.False(t, meta.Partial)
	assert.Equal(t, 3, meta.SyncedCount)
	assert.Equal(t, 3, meta.LocalCount)

	got, gotMeta := m.Pull(ctx)
	require.NotNil(t, gotMeta)
	assert.Equal(t, meta.Revision, gotMeta.Revision)
	assert.Equal(t, want, got)
}

func TestMirror_PushSplitsAcrossChunks(t *testing.T) {
	kv := NewMemoryKV()
	quotas := DefaultQuotas()
	m := NewMirror(kv, quotas, nil)
	ctx := context.Background()

	// enough payload to need several chunks
	repos := make([]model.Repo, 0, 8)
	for i := 0; i < 8; i++ {
		repos = append(repos, testRepo(i, strings.Repeat("x", 3000)))
	}

	meta, err := m.Push(ctx, repos)
	require.NoError(t, err)
	assert.Greater(t, meta.ChunkCount, 1)

	got, _ := m.Pull(ctx)
	assert.Len(t, got, 8)
}

func TestMirror_PushTruncatesMostRecentFirst(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()

	note := strings.Repeat("n", 400)
	repos := []model.Repo{testRepo(1, note), testRepo(2, note), testRepo(3, note)}

	// quota fits exactly the two most recently saved records
	twoNewest := []model.Repo{repos[2], repos[1]}
	quotas := DefaultQuotas()
	quotas.TotalBytes = mustSize(t, twoNewest)
	m := NewMirror(kv, quotas, nil)

	meta, err := m.Push(ctx, repos)
	require.NoError(t, err)
	assert.True(t, meta.Partial)
	assert.Equal(t, 2, meta.SyncedCount)
	assert.Equal(t, 3, meta.LocalCount)

	got, _ := m.Pull(ctx)
	require.Len(t, got, 2)
	ids := []string{got[0].ID, got[1].ID}
	assert.Contains(t, ids, repos[2].ID)
	assert.Contains(t, ids, repos[1].ID)
	assert.NotContains(t, ids, repos[0].ID)
}

func TestMirror_PushFailsWhenNothingFits(t *testing.T) {
	kv := NewMemoryKV()
	quotas := DefaultQuotas()
	quotas.TotalBytes = 10
	m := NewMirror(kv, quotas, nil)

	_, err := m.Push(context.Background(), []model.Repo{testRepo(1, "note")})
	require.ErrorIs(t, err, common.ErrQuotaExceeded)
	assert.Equal(t, 0, kv.Len())
}

func TestMirror_PushFailsOnItemLimitWithoutTouchingRemote(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()

	// seed remote state with a permissive mirror
	loose := NewMirror(kv, DefaultQuotas(), nil)
	prev, err := loose.Push(ctx, []model.Repo{testRepo(1, "")})
	require.NoError(t, err)

	// MaxItems 6 leaves room for a single chunk after the margin; a payload
	// over one chunk must fail hard.
	quotas := DefaultQuotas()
	quotas.MaxItems = itemMargin + 1
	quotas.BytesPerItem = 1000
	strict := NewMirror(kv, quotas, nil)

	big := []model.Repo{testRepo(2, strings.Repeat("x", 2000))}
	_, err = strict.Push(ctx, big)
	require.ErrorIs(t, err, common.ErrItemLimitExceeded)

	got, gotMeta := loose.Pull(ctx)
	require.NotNil(t, gotMeta)
	assert.Equal(t, prev.Revision, gotMeta.Revision)
	assert.Len(t, got, 1)
}

func TestMirror_PushRemovesStaleChunks(t *testing.T) {
	kv := NewMemoryKV()
	m := NewMirror(kv, DefaultQuotas(), nil)
	ctx := context.Background()

	big := make([]model.Repo, 0, 8)
	for i := 0; i < 8; i++ {
		big = append(big, testRepo(i, strings.Repeat("x", 3000)))
	}
	metaBig, err := m.Push(ctx, big)
	require.NoError(t, err)
	require.Greater(t, metaBig.ChunkCount, 1)

	metaSmall, err := m.Push(ctx, []model.Repo{testRepo(0, "")})
	require.NoError(t, err)
	require.Equal(t, 1, metaSmall.ChunkCount)

	for _, key := range kv.Keys() {
		if strings.HasPrefix(key, ChunkKeyPrefix) {
			assert.Equal(t, chunkKey(0), key)
		}
	}

	got, _ := m.Pull(ctx)
	assert.Len(t, got, 1)
}

func TestMirror_PullWithoutRemoteData(t *testing.T) {
	m := NewMirror(NewMemoryKV(), DefaultQuotas(), nil)

	repos, meta := m.Pull(context.Background())
	assert.Nil(t, repos)
	assert.Nil(t, meta)
}

func TestMirror_PullMalformedMeta(t *testing.T) {
	kv := NewMemoryKV()
	m := NewMirror(kv, DefaultQuotas(), nil)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, map[string]string{MetaKey: "not json"}))
	repos, meta := m.Pull(ctx)
	assert.Nil(t, repos)
	assert.Nil(t, meta)

	require.NoError(t, kv.Set(ctx, map[string]string{MetaKey: `{"v":1,"chunkCount":0}`}))
	repos, meta = m.Pull(ctx)
	assert.Nil(t, repos)
	assert.Nil(t, meta)
}

func TestMirror_PullUndecodablePayload(t *testing.T) {
	kv := NewMemoryKV()
	m := NewMirror(kv, DefaultQuotas(), nil)
	ctx := context.Background()

	_, err := m.Push(ctx, []model.Repo{testRepo(1, "")})
	require.NoError(t, err)

	// corrupt the chunk; metadata still points at it
	require.NoError(t, kv.Set(ctx, map[string]string{chunkKey(0): "{broken"}))
	repos, meta := m.Pull(ctx)
	assert.Nil(t, repos)
	assert.Nil(t, meta)
}

func TestMirror_PullMissingChunk(t *testing.T) {
	kv := NewMemoryKV()
	m := NewMirror(kv, DefaultQuotas(), nil)
	ctx := context.Background()

	big := make([]model.Repo, 0, 8)
	for i := 0; i < 8; i++ {
		big = append(big, testRepo(i, strings.Repeat("x", 3000)))
	}
	meta, err := m.Push(ctx, big)
	require.NoError(t, err)
	require.Greater(t, meta.ChunkCount, 1)

	require.NoError(t, kv.Remove(ctx, []string{chunkKey(1)}))
	repos, gotMeta := m.Pull(ctx)
	assert.Nil(t, repos)
	assert.Nil(t, gotMeta)
}

func TestMirror_EnabledFlag(t *testing.T) {
	kv := NewMemoryKV()
	m := NewMirror(kv, DefaultQuotas(), nil)
	ctx := context.Background()

	assert.False(t, m.Enabled(ctx))

	require.NoError(t, m.SetEnabled(ctx, true))
	assert.True(t, m.Enabled(ctx))

	require.NoError(t, m.SetEnabled(ctx, false))
	assert.False(t, m.Enabled(ctx))
}

func TestMirror_DisableKeepsPayload(t *testing.T) {
	kv := NewMemoryKV()
	m := NewMirror(kv, DefaultQuotas(), nil)
	ctx := context.Background()

	_, err := m.Push(ctx, []model.Repo{testRepo(1, "")})
	require.NoError(t, err)
	require.NoError(t, m.SetEnabled(ctx, true))
	require.NoError(t, m.SetEnabled(ctx, false))

	repos, meta := m.Pull(ctx)
	require.NotNil(t, meta)
	assert.Len(t, repos, 1)
}

func TestQuotas_ChunkSize(t *testing.T) {
	assert.Equal(t, 7800, DefaultQuotas().ChunkSize())

	small := Quotas{BytesPerItem: 1000}
	assert.Equal(t, 1000, small.ChunkSize())

	mid := Quotas{BytesPerItem: 4000}
	assert.Equal(t, 3700, mid.ChunkSize())
}

func TestIsSyncKey(t *testing.T) {
	assert.True(t, IsSyncKey(MetaKey))
	assert.True(t, IsSyncKey(chunkKey(3)))
	assert.False(t, IsSyncKey(enabledKey))
	assert.False(t, IsSyncKey("unrelated"))
}
