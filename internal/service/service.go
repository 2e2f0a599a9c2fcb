// Package service implements the command semantics over the tiered local
// store and the remote mirror: staging and confirming saves, record
// updates, bulk operations, sync orchestration and import/export.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/repostash/repostash/internal/common"
	"github.com/repostash/repostash/internal/logging"
	"github.com/repostash/repostash/internal/model"
	"github.com/repostash/repostash/internal/remote"
	"github.com/repostash/repostash/internal/store"
)

// Service wires the local store to the remote mirror. All mutating
// operations are local-first: the local write decides the outcome, the
// remote push runs afterwards in the background and never fails the
// caller.
type Service struct {
	store  *store.TieredStore
	kv     *store.KVRepository
	mirror *remote.Mirror
	log    logging.Logger
	now    func() int64

	wg sync.WaitGroup
}

// New builds a Service. mirror may not be nil; run against a MemoryKV
// mirror when no remote endpoint is configured.
func New(st *store.TieredStore, kv *store.KVRepository, mirror *remote.Mirror, log logging.Logger) *Service {
	if log == nil {
		log = logging.NopLogger{}
	}
	return &Service{
		store:  st,
		kv:     kv,
		mirror: mirror,
		log:    log.With("component", "service"),
		now:    func() int64 { return time.Now().UnixMilli() },
	}
}

// Flush waits for in-flight background pushes. Used on shutdown and in
// tests.
func (s *Service) Flush() {
	s.wg.Wait()
}

// GetAll returns the collection. While sync is enabled it first tries the
// remote copy and mirrors it into the local store, so a fresh device
// converges on first read; any remote failure falls back to local data.
func (s *Service) GetAll(ctx context.Context) []model.Repo {
	if s.mirror.Enabled(ctx) {
		if repos, meta := s.mirror.Pull(ctx); meta != nil {
			for i := range repos {
				repos[i].Normalize()
			}
			if !s.store.ReplaceAll(ctx, repos) {
				s.log.Warn(ctx, "mirroring remote collection to local store failed")
			}
			return repos
		}
	}
	return s.store.GetAll(ctx)
}

// StagePending stores the record a save gesture captured, to be confirmed
// or discarded by a follow-up command. At most one record is pending.
func (s *Service) StagePending(ctx context.Context, repo model.Repo) error {
	repo.Normalize()
	raw, err := json.Marshal(repo)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, store.PendingKey, raw)
}

// Pending returns the staged record, if any.
func (s *Service) Pending(ctx context.Context) (*model.Repo, error) {
	raw, ok, err := s.kv.Get(ctx, store.PendingKey)
	if err != nil || !ok {
		return nil, err
	}
	var repo model.Repo
	if err := json.Unmarshal(raw, &repo); err != nil {
		// a corrupt pending blob is discarded, not surfaced
		s.log.Warn(ctx, "discarding corrupt pending record", "err", err)
		return nil, s.kv.Delete(ctx, store.PendingKey)
	}
	return &repo, nil
}

// ClearPending discards the staged record.
func (s *Service) ClearPending(ctx context.Context) error {
	return s.kv.Delete(ctx, store.PendingKey)
}

// ConfirmSave turns a staged record into a stored one. The identity is
// derived from owner and name; saving an already-stored repository fails
// with ErrDuplicate and leaves the collection unchanged.
func (s *Service) ConfirmSave(ctx context.Context, repo model.Repo) (*model.Repo, error) {
	now := s.now()
	repo.ID = model.DeriveID(repo.Owner, repo.Name)
	if repo.Status == "" {
		repo.Status = model.StatusUnviewed
	}
	repo.SavedAt = now
	repo.UpdatedAt = now

	// the duplicate check runs against the sync-aware collection, and the
	// indexed tier upserts, so it has to happen here rather than in the store
	for _, existing := range s.GetAll(ctx) {
		if existing.ID == repo.ID {
			return nil, fmt.Errorf("%w: %s", common.ErrDuplicate, repo.ID)
		}
	}
	if !s.store.Add(ctx, repo) {
		return nil, fmt.Errorf("%w: %s", common.ErrDuplicate, repo.ID)
	}
	if err := s.ClearPending(ctx); err != nil {
		s.log.Warn(ctx, "clearing pending record failed", "err", err)
	}

	s.queuePush(ctx)
	return &repo, nil
}

// Update applies a partial update to one record and stamps updatedAt.
func (s *Service) Update(ctx context.Context, id string, updates map[string]any) error {
	stamped := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		stamped[k] = v
	}
	stamped["updatedAt"] = s.now()

	if err := s.store.Update(ctx, id, stamped); err != nil {
		return err
	}
	s.queuePush(ctx)
	return nil
}

// Remove deletes one record. Removing an absent id succeeds.
func (s *Service) Remove(ctx context.Context, id string) bool {
	ok := s.store.Remove(ctx, id)
	if ok {
		s.queuePush(ctx)
	}
	return ok
}

// Restore puts a previously removed record back, replacing any record that
// reused its id in the meantime.
func (s *Service) Restore(ctx context.Context, repo model.Repo) bool {
	repo.Normalize()
	ok := s.store.Upsert(ctx, repo)
	if ok {
		s.queuePush(ctx)
	}
	return ok
}

// RecordOpened stamps lastOpenedAt and promotes an unviewed record to
// viewed.
func (s *Service) RecordOpened(ctx context.Context, id string) error {
	updates := map[string]any{"lastOpenedAt": s.now()}

	for _, r := range s.store.GetAll(ctx) {
		if r.ID == id && r.Status == model.StatusUnviewed {
			updates["status"] = model.StatusViewed
			break
		}
	}

	if err := s.store.Update(ctx, id, updates); err != nil {
		return err
	}
	s.queuePush(ctx)
	return nil
}

// BulkUpdate applies the same partial update to every listed record.
// Missing ids are skipped; the count of updated records is returned.
func (s *Service) BulkUpdate(ctx context.Context, ids []string, updates map[string]any) int {
	stamped := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		stamped[k] = v
	}
	stamped["updatedAt"] = s.now()

	updated := 0
	for _, id := range ids {
		if err := s.store.Update(ctx, id, stamped); err != nil {
			s.log.Debug(ctx, "bulk update skipped record", "id", id, "err", err)
			continue
		}
		updated++
	}
	if updated > 0 {
		s.queuePush(ctx)
	}
	return updated
}

// BulkRemove deletes every listed record and returns how many removals
// were attempted successfully.
func (s *Service) BulkRemove(ctx context.Context, ids []string) int {
	removed := 0
	for _, id := range ids {
		if s.store.Remove(ctx, id) {
			removed++
		}
	}
	if removed > 0 {
		s.queuePush(ctx)
	}
	return removed
}

// BulkAddTags appends tags to each listed record, deduplicating against
// tags the record already carries.
func (s *Service) BulkAddTags(ctx context.Context, ids []string, tags []string) int {
	byID := make(map[string]model.Repo)
	for _, r := range s.store.GetAll(ctx) {
		byID[r.ID] = r
	}

	updated := 0
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			continue
		}
		merged := mergeTags(r.CustomTags, tags)
		if len(merged) == len(r.CustomTags) {
			continue
		}
		err := s.store.Update(ctx, id, map[string]any{
			"customTags": merged,
			"updatedAt":  s.now(),
		})
		if err != nil {
			s.log.Debug(ctx, "bulk tag skipped record", "id", id, "err", err)
			continue
		}
		updated++
	}
	if updated > 0 {
		s.queuePush(ctx)
	}
	return updated
}

func mergeTags(existing, extra []string) []string {
	seen := make(map[string]bool, len(existing))
	merged := append([]string(nil), existing...)
	for _, t := range existing {
		seen[t] = true
	}
	for _, t := range extra {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		merged = append(merged, t)
	}
	return merged
}
