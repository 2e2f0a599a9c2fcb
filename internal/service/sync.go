package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/repostash/repostash/internal/model"
	"github.com/repostash/repostash/internal/remote"
	"github.com/repostash/repostash/internal/store"
)

// maxBackups bounds the snapshot ring kept before destructive sync
// transitions.
const maxBackups = 5

const pushTimeout = 30 * time.Second

// SyncStatus is the sync health surface reported to clients.
type SyncStatus struct {
	Enabled bool         `json:"enabled"`
	Meta    *remote.Meta `json:"meta,omitempty"`
}

// backup is one local snapshot taken before enabling sync.
type backup struct {
	ID        string       `json:"id"`
	CreatedAt int64        `json:"createdAt"`
	Count     int          `json:"count"`
	Repos     []model.Repo `json:"repos"`
}

// SyncStatus reports whether sync is enabled and the last push metadata.
func (s *Service) SyncStatus(ctx context.Context) SyncStatus {
	status := SyncStatus{Enabled: s.mirror.Enabled(ctx)}
	if status.Enabled {
		status.Meta = s.mirror.Meta(ctx)
	}
	return status
}

// SetSyncEnabled flips the sync flag. Enabling snapshots the local
// collection first, then pushes it and pulls the merged remote state back,
// so both sides converge immediately. Disabling only clears the flag; the
// remote copy stays for other devices.
func (s *Service) SetSyncEnabled(ctx context.Context, enabled bool) (SyncStatus, error) {
	if !enabled {
		if err := s.mirror.SetEnabled(ctx, false); err != nil {
			return SyncStatus{}, err
		}
		return SyncStatus{Enabled: false}, nil
	}

	if err := s.snapshotLocal(ctx); err != nil {
		s.log.Warn(ctx, "snapshot before sync enable failed", "err", err)
	}
	if err := s.mirror.SetEnabled(ctx, true); err != nil {
		return SyncStatus{}, err
	}

	local := s.store.GetAll(ctx)
	if _, err := s.mirror.Push(ctx, local); err != nil {
		s.log.Warn(ctx, "initial push failed", "err", err)
	}
	s.ApplyRemote(ctx)

	return s.SyncStatus(ctx), nil
}

// SyncNow pushes the local collection immediately, regardless of pending
// debounce windows, and reports the resulting status. Like enabling sync,
// it snapshots the local collection first.
func (s *Service) SyncNow(ctx context.Context) (SyncStatus, error) {
	if !s.mirror.Enabled(ctx) {
		return SyncStatus{Enabled: false}, nil
	}
	if err := s.snapshotLocal(ctx); err != nil {
		s.log.Warn(ctx, "snapshot before sync failed", "err", err)
	}
	if _, err := s.mirror.Push(ctx, s.store.GetAll(ctx)); err != nil {
		return s.SyncStatus(ctx), err
	}
	return s.SyncStatus(ctx), nil
}

// ApplyRemote pulls the remote collection and replaces the local one with
// it. No usable remote data is a no-op. This is the reaction wired to
// remote change notifications.
func (s *Service) ApplyRemote(ctx context.Context) {
	if !s.mirror.Enabled(ctx) {
		return
	}
	repos, meta := s.mirror.Pull(ctx)
	if meta == nil {
		return
	}
	for i := range repos {
		repos[i].Normalize()
	}
	if !s.store.ReplaceAll(ctx, repos) {
		s.log.Warn(ctx, "applying remote collection failed")
		return
	}
	s.log.Info(ctx, "applied remote collection", "count", len(repos), "revision", meta.Revision)
}

// queuePush schedules a background push of the current local collection.
// Pushes are best effort: failures are logged and swallowed, the local
// write that triggered them has already succeeded.
func (s *Service) queuePush(ctx context.Context) {
	if !s.mirror.Enabled(ctx) {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		pushCtx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()

		repos := s.store.GetAll(pushCtx)
		if _, err := s.mirror.Push(pushCtx, repos); err != nil {
			s.log.Warn(pushCtx, "background push failed", "err", err)
		}
	}()
}

// snapshotLocal appends the current local collection to the backup ring,
// dropping the oldest snapshots beyond maxBackups.
func (s *Service) snapshotLocal(ctx context.Context) error {
	backups, err := s.Backups(ctx)
	if err != nil {
		return err
	}

	repos := s.store.GetAll(ctx)
	backups = append(backups, backup{
		ID:        uuid.NewString(),
		CreatedAt: s.now(),
		Count:     len(repos),
		Repos:     repos,
	})
	if len(backups) > maxBackups {
		backups = backups[len(backups)-maxBackups:]
	}

	raw, err := json.Marshal(backups)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, store.BackupsKey, raw)
}

// Backups returns the stored snapshot ring, oldest first. A corrupt blob
// reads as empty.
func (s *Service) Backups(ctx context.Context) ([]backup, error) {
	raw, ok, err := s.kv.Get(ctx, store.BackupsKey)
	if err != nil || !ok {
		return nil, err
	}
	var backups []backup
	if err := json.Unmarshal(raw, &backups); err != nil {
		s.log.Warn(ctx, "corrupt backup blob", "err", err)
		return nil, nil
	}
	return backups, nil
}
