package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repostash/repostash/internal/common"
)

func newGate(t *testing.T) *Gate {
	t.Helper()
	g, err := NewGate()
	require.NoError(t, err)
	return g
}

func repoPayload(overrides map[string]any) map[string]any {
	repo := map[string]any{
		"name":  "repostash",
		"owner": "acme",
		"url":   "https://github.com/acme/repostash",
	}
	for k, v := range overrides {
		repo[k] = v
	}
	return map[string]any{"repo": repo}
}

func TestGate_AcceptsValidSave(t *testing.T) {
	g := newGate(t)
	require.NoError(t, g.Check(KindSaveRepo, repoPayload(nil)))
	require.NoError(t, g.Check(KindConfirmSaveRepo, repoPayload(map[string]any{
		"topics":     []any{"go", "cli"},
		"customTags": []any{"work"},
		"stars":      float64(42),
		"pinned":     true,
	})))
}

func TestGate_RejectsUnknownKind(t *testing.T) {
	g := newGate(t)
	err := g.Check("FORMAT_DISK", map[string]any{})
	require.ErrorIs(t, err, common.ErrValidation)
	assert.Contains(t, err.Error(), "FORMAT_DISK")
	assert.False(t, g.Known("FORMAT_DISK"))
	assert.True(t, g.Known(KindGetAllRepos))
}

func TestGate_RejectsOversizedFields(t *testing.T) {
	g := newGate(t)

	cases := map[string]map[string]any{
		"long name":  {"name": strings.Repeat("a", 201)},
		"long note":  {"note": strings.Repeat("a", 5001)},
		"long url":   {"url": "https://" + strings.Repeat("a", 2000)},
		"long topic": {"topics": []any{strings.Repeat("a", 201)}},
	}
	for name, overrides := range cases {
		t.Run(name, func(t *testing.T) {
			err := g.Check(KindSaveRepo, repoPayload(overrides))
			require.ErrorIs(t, err, common.ErrValidation)
			assert.Contains(t, err.Error(), KindSaveRepo)
		})
	}
}

func TestGate_RejectsWrongTypes(t *testing.T) {
	g := newGate(t)

	err := g.Check(KindSaveRepo, repoPayload(map[string]any{"stars": "many"}))
	require.ErrorIs(t, err, common.ErrValidation)

	err = g.Check(KindSetSyncEnabled, map[string]any{"enabled": "yes"})
	require.ErrorIs(t, err, common.ErrValidation)

	err = g.Check(KindUpdateRepo, map[string]any{"id": "a/b", "updates": "note=x"})
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestGate_RequiredFields(t *testing.T) {
	g := newGate(t)

	// save needs a repo with name and owner
	err := g.Check(KindSaveRepo, map[string]any{"repo": map[string]any{"name": "x"}})
	require.ErrorIs(t, err, common.ErrValidation)

	err = g.Check(KindRemoveRepo, map[string]any{})
	require.ErrorIs(t, err, common.ErrValidation)

	err = g.Check(KindBulkAddTags, map[string]any{"ids": []any{"a/b"}})
	require.ErrorIs(t, err, common.ErrValidation)

	require.NoError(t, g.Check(KindBulkAddTags, map[string]any{
		"ids":  []any{"a/b"},
		"tags": []any{"keeper"},
	}))
}

func TestGate_NoPayloadKinds(t *testing.T) {
	g := newGate(t)
	for _, kind := range []string{
		KindGetAllRepos, KindGetPendingRepo, KindClearPending,
		KindGetSyncStatus, KindSyncNow, KindGetLicenseInfo,
		KindExportRepos, KindGetStats,
	} {
		require.NoError(t, g.Check(kind, nil))
	}
}
