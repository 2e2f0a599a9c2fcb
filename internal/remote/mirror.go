package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/repostash/repostash/internal/codec"
	"github.com/repostash/repostash/internal/common"
	"github.com/repostash/repostash/internal/logging"
	"github.com/repostash/repostash/internal/model"
)

// Remote item keys. Chunks are numbered from zero; everything the mirror
// writes lives under these names so change notifications can be filtered.
const (
	MetaKey        = "repostash-sync-meta"
	ChunkKeyPrefix = "repostash-sync-chunk-"
	enabledKey     = "repostash-sync-enabled"

	// itemMargin keeps headroom under the item-count quota for metadata
	// and the enabled flag.
	itemMargin = 5
)

// IsSyncKey reports whether a remote key belongs to the mirror's payload,
// i.e. whether a change to it can mean another device pushed.
func IsSyncKey(key string) bool {
	return key == MetaKey || strings.HasPrefix(key, ChunkKeyPrefix)
}

// Quotas describes the remote store's limits.
type Quotas struct {
	TotalBytes   int
	BytesPerItem int
	MaxItems     int
}

// DefaultQuotas mirrors the limits of the browser sync areas this design
// targets: 100 KiB total, 8 KiB per item, 512 items.
func DefaultQuotas() Quotas {
	return Quotas{TotalBytes: 102400, BytesPerItem: 8192, MaxItems: 512}
}

// ChunkSize is the usable chunk payload: the per-item quota minus a 300-byte
// buffer for the key name and store bookkeeping, clamped to [1000, 7800].
func (q Quotas) ChunkSize() int {
	size := q.BytesPerItem - 300
	if size > 7800 {
		size = 7800
	}
	if size < 1000 {
		size = 1000
	}
	return size
}

// Meta describes the last successful push. It is rewritten atomically with
// every push and read by clients to report sync health.
type Meta struct {
	Version     int    `json:"v"`
	Revision    string `json:"revision"`
	ChunkCount  int    `json:"chunkCount"`
	UpdatedAt   int64  `json:"updatedAt"`
	Bytes       int    `json:"bytes"`
	Partial     bool   `json:"partial"`
	SyncedCount int    `json:"syncedCount"`
	LocalCount  int    `json:"localCount"`
}

// Mirror pushes the local collection to a quota-constrained remote KV and
// pulls it back. Push degrades gracefully: when the full collection exceeds
// the byte quota it syncs the most recently saved subset that fits and
// flags the metadata as partial.
type Mirror struct {
	kv     KV
	quotas Quotas
	log    logging.Logger
	now    func() int64
}

// NewMirror builds a Mirror over kv with the given quotas.
func NewMirror(kv KV, quotas Quotas, log logging.Logger) *Mirror {
	if log == nil {
		log = logging.NopLogger{}
	}
	return &Mirror{
		kv:     kv,
		quotas: quotas,
		log:    log.With("component", "mirror"),
		now:    func() int64 { return time.Now().UnixMilli() },
	}
}

// Enabled reads the persisted sync flag. Read failures degrade to false.
func (m *Mirror) Enabled(ctx context.Context) bool {
	res, err := m.kv.Get(ctx, []string{enabledKey})
	if err != nil {
		m.log.Warn(ctx, "reading sync flag failed", "err", err)
		return false
	}
	return res[enabledKey] == "true"
}

// SetEnabled persists the sync flag. Disabling never touches the synced
// payload; remote data stays available to other devices.
func (m *Mirror) SetEnabled(ctx context.Context, enabled bool) error {
	value := "false"
	if enabled {
		value = "true"
	}
	return m.kv.Set(ctx, map[string]string{enabledKey: value})
}

// Meta returns the current remote sync metadata, or nil when it is absent
// or malformed.
func (m *Mirror) Meta(ctx context.Context) *Meta {
	res, err := m.getWithRetry(ctx, []string{MetaKey})
	if err != nil {
		m.log.Warn(ctx, "reading sync metadata failed", "err", err)
		return nil
	}
	raw, ok := res[MetaKey]
	if !ok {
		return nil
	}
	var meta Meta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		m.log.Warn(ctx, "malformed sync metadata", "err", err)
		return nil
	}
	if meta.ChunkCount < 1 {
		return nil
	}
	return &meta
}

// Push encodes the collection and writes it to the remote store.
//
// If the full encoding exceeds the byte quota, records are retried greedily
// in savedAt-descending order, re-measuring after each addition, and the
// resulting subset is marked partial. If even that subset cannot fit, or
// the chunk count would exceed the item quota (minus the metadata margin),
// Push fails hard without touching the previous remote state. On success,
// chunks left over from a previous larger push are removed and the metadata
// is rewritten.
func (m *Mirror) Push(ctx context.Context, repos []model.Repo) (*Meta, error) {
	toSync := repos
	text, err := codec.Marshal(toSync)
	if err != nil {
		return nil, err
	}

	partial := false
	if len(text) > m.quotas.TotalBytes {
		sorted := append([]model.Repo(nil), repos...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].SavedAt > sorted[j].SavedAt
		})

		subset := make([]model.Repo, 0, len(sorted))
		for _, r := range sorted {
			subset = append(subset, r)
			probe, err := codec.Size(subset)
			if err != nil {
				return nil, err
			}
			if probe > m.quotas.TotalBytes {
				subset = subset[:len(subset)-1]
				break
			}
		}
		// an empty subset means not even one record fits; pushing "[]"
		// would wipe remote data another device may still need
		if len(subset) == 0 {
			return nil, fmt.Errorf("%w: no record fits within %d bytes", common.ErrQuotaExceeded, m.quotas.TotalBytes)
		}
		toSync = subset
		if text, err = codec.Marshal(toSync); err != nil {
			return nil, err
		}
		partial = len(toSync) != len(repos)
	}

	if len(text) > m.quotas.TotalBytes {
		return nil, fmt.Errorf("%w: %d bytes over %d", common.ErrQuotaExceeded, len(text), m.quotas.TotalBytes)
	}

	chunks := codec.Chunk(text, m.quotas.ChunkSize())
	if len(chunks) > m.quotas.MaxItems-itemMargin {
		return nil, fmt.Errorf("%w: %d chunks over %d items", common.ErrItemLimitExceeded, len(chunks), m.quotas.MaxItems-itemMargin)
	}

	// Drop chunks beyond the new count so stale tails from a previous,
	// larger push can never be concatenated into a future read.
	if prev := m.Meta(ctx); prev != nil && prev.ChunkCount > len(chunks) {
		stale := make([]string, 0, prev.ChunkCount-len(chunks))
		for i := len(chunks); i < prev.ChunkCount; i++ {
			stale = append(stale, chunkKey(i))
		}
		if err := m.kv.Remove(ctx, stale); err != nil {
			return nil, fmt.Errorf("removing stale chunks: %w", err)
		}
	}

	meta := &Meta{
		Version:     1,
		Revision:    uuid.NewString(),
		ChunkCount:  len(chunks),
		UpdatedAt:   m.now(),
		Bytes:       len(text),
		Partial:     partial,
		SyncedCount: len(toSync),
		LocalCount:  len(repos),
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}

	payload := make(map[string]string, len(chunks)+1)
	for i, c := range chunks {
		payload[chunkKey(i)] = c
	}
	payload[MetaKey] = string(metaJSON)

	if err := m.kv.Set(ctx, payload); err != nil {
		return nil, fmt.Errorf("writing sync payload: %w", err)
	}

	m.log.Info(ctx, "push complete",
		"chunks", meta.ChunkCount, "bytes", meta.Bytes,
		"partial", meta.Partial, "synced", meta.SyncedCount, "local", meta.LocalCount)
	return meta, nil
}

// Pull reads the remote collection. It returns (nil, nil) whenever there is
// no usable remote data: absent or malformed metadata, unreadable chunks,
// or a payload that no longer parses as a record array. A malformed remote
// collection is never partially applied.
func (m *Mirror) Pull(ctx context.Context) ([]model.Repo, *Meta) {
	meta := m.Meta(ctx)
	if meta == nil {
		return nil, nil
	}

	keys := make([]string, meta.ChunkCount)
	for i := range keys {
		keys[i] = chunkKey(i)
	}

	res, err := m.getWithRetry(ctx, keys)
	if err != nil {
		m.log.Warn(ctx, "reading sync chunks failed", "err", err)
		return nil, nil
	}

	chunks := make([]string, meta.ChunkCount)
	for i, k := range keys {
		chunks[i] = res[k]
	}

	repos, err := codec.Decode(chunks)
	if err != nil {
		m.log.Warn(ctx, "undecodable remote collection", "err", err)
		return nil, nil
	}
	return repos, meta
}

// getWithRetry wraps a batched read in a short exponential backoff to ride
// out transient remote failures.
func (m *Mirror) getWithRetry(ctx context.Context, keys []string) (map[string]string, error) {
	var out map[string]string

	backoff := retry.WithMaxRetries(3, retry.NewExponential(100*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		res, err := m.kv.Get(ctx, keys)
		if err != nil {
			return retry.RetryableError(err)
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func chunkKey(i int) string {
	return fmt.Sprintf("%s%d", ChunkKeyPrefix, i)
}
