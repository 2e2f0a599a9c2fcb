package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/repostash/repostash/internal/common"
	"github.com/repostash/repostash/internal/model"
)

const exportVersion = 1

// Export is the portable dump format.
type Export struct {
	Version    int          `json:"version"`
	ExportedAt int64        `json:"exportedAt"`
	Repos      []model.Repo `json:"repos"`
}

// ImportResult reports what an import changed.
type ImportResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

// Stats summarizes the collection.
type Stats struct {
	Total        int            `json:"total"`
	ByStatus     map[string]int `json:"byStatus"`
	ByRole       map[string]int `json:"byRole"`
	ByCollection map[string]int `json:"byCollection"`
	Pinned       int            `json:"pinned"`
}

// LicenseInfo mirrors the free-tier licensing surface: everything is
// unlimited, the fields exist so clients have a stable shape to render.
type LicenseInfo struct {
	License   string `json:"license"`
	IsPro     bool   `json:"isPro"`
	RepoCount int    `json:"repoCount"`
	Limit     *int   `json:"limit"`
	Remaining *int   `json:"remaining"`
}

// ExportAll dumps the whole collection.
func (s *Service) ExportAll(ctx context.Context) Export {
	return Export{
		Version:    exportVersion,
		ExportedAt: s.now(),
		Repos:      s.GetAll(ctx),
	}
}

// Import merges records into the collection. It accepts a bare record
// array, an export envelope with a repos field, or a JSON string holding
// either. Records whose id is already stored are skipped; imports never
// overwrite. An empty or unparseable payload fails without changes.
func (s *Service) Import(ctx context.Context, data any) (ImportResult, error) {
	repos, err := parseImport(data)
	if err != nil {
		return ImportResult{}, err
	}
	if len(repos) == 0 {
		return ImportResult{}, common.ErrEmptyImport
	}

	existing := make(map[string]bool)
	for _, r := range s.store.GetAll(ctx) {
		existing[r.ID] = true
	}

	res := ImportResult{}
	for _, r := range repos {
		r.Normalize()
		if r.ID == "" || existing[r.ID] {
			res.Skipped++
			continue
		}
		if r.SavedAt == 0 {
			r.SavedAt = s.now()
		}
		if !s.store.Add(ctx, r) {
			res.Skipped++
			continue
		}
		existing[r.ID] = true
		res.Added++
	}

	if res.Added > 0 {
		s.queuePush(ctx)
	}
	return res, nil
}

// CollectionStats computes the stats surface.
func (s *Service) CollectionStats(ctx context.Context) Stats {
	stats := Stats{
		ByStatus:     map[string]int{},
		ByRole:       map[string]int{},
		ByCollection: map[string]int{},
	}
	for _, r := range s.GetAll(ctx) {
		stats.Total++
		if r.Status != "" {
			stats.ByStatus[r.Status]++
		}
		if r.Role != "" {
			stats.ByRole[r.Role]++
		}
		if r.Collection != "" {
			stats.ByCollection[r.Collection]++
		}
		if r.Pinned {
			stats.Pinned++
		}
	}
	return stats
}

// License reports the licensing surface for the current collection.
func (s *Service) License(ctx context.Context) LicenseInfo {
	return LicenseInfo{
		License:   "free",
		IsPro:     false,
		RepoCount: len(s.store.GetAll(ctx)),
	}
}

func parseImport(data any) ([]model.Repo, error) {
	var raw []byte
	switch v := data.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrMalformedImport, err)
		}
		raw = b
	}

	var repos []model.Repo
	if err := json.Unmarshal(raw, &repos); err == nil {
		return repos, nil
	}

	var envelope struct {
		Repos []model.Repo `json:"repos"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Repos == nil {
		return nil, common.ErrMalformedImport
	}
	return envelope.Repos, nil
}
