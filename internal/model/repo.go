// Package model defines the repository record stored by Repostash and the
// pure helpers that derive and normalize it.
package model

import (
	"encoding/json"
	"strings"
)

// Workflow states. Values outside this set are tolerated on read and
// rendered as-is; new writes should use one of these.
const (
	StatusUnviewed = "unviewed"
	StatusViewed   = "viewed"
	StatusInUse    = "in-use"
)

// Roles a saved repository can be filed under. An empty role means
// "uncategorized".
var KnownRoles = []string{
	"ui-frontend",
	"backend-api",
	"auth",
	"payments",
	"ai-ml",
	"infra-tooling",
	"other",
}

// Repo is the unit of storage: one bookmarked source-code repository.
//
// Timestamps are Unix milliseconds. SavedAt is set once at creation and
// never mutated; UpdatedAt advances on every mutation, not just explicit
// field edits.
type Repo struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Owner        string   `json:"owner"`
	Description  string   `json:"description,omitempty"`
	URL          string   `json:"url,omitempty"`
	Topics       []string `json:"topics,omitempty"`
	CustomTags   []string `json:"customTags,omitempty"`
	Role         string   `json:"role,omitempty"`
	Status       string   `json:"status,omitempty"`
	Collection   string   `json:"collection,omitempty"`
	Note         string   `json:"note,omitempty"`
	CustomName   string   `json:"customName,omitempty"`
	Pinned       bool     `json:"pinned,omitempty"`
	Stars        int64    `json:"stars,omitempty"`
	Forks        int64    `json:"forks,omitempty"`
	SavedAt      int64    `json:"savedAt"`
	UpdatedAt    int64    `json:"updatedAt"`
	LastOpenedAt int64    `json:"lastOpenedAt,omitempty"`
}

// DeriveID returns the stable record key for a repository: owner/name
// lowercased. It is a pure function used both at save time and at
// duplicate-check time, so two logically identical repositories can never
// end up with different derivation results.
func DeriveID(owner, name string) string {
	return strings.ToLower(owner + "/" + name)
}

// Normalize fills derivable and defaulted fields in place: a missing ID is
// derived from owner/name, a missing status becomes StatusUnviewed, and a
// missing UpdatedAt falls back to SavedAt.
func (r *Repo) Normalize() {
	if r.ID == "" {
		r.ID = DeriveID(r.Owner, r.Name)
	}
	if r.Status == "" {
		r.Status = StatusUnviewed
	}
	if r.UpdatedAt == 0 {
		r.UpdatedAt = r.SavedAt
	}
}

// ApplyUpdates merges a partial update payload (JSON field names) into the
// record and returns the result. Unknown keys are dropped by the JSON
// round-trip; the receiver is not modified.
func (r Repo) ApplyUpdates(updates map[string]any) (Repo, error) {
	base, err := json.Marshal(r)
	if err != nil {
		return Repo{}, err
	}
	var doc map[string]any
	if err := json.Unmarshal(base, &doc); err != nil {
		return Repo{}, err
	}
	for k, v := range updates {
		if v == nil {
			delete(doc, k)
			continue
		}
		doc[k] = v
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return Repo{}, err
	}
	var out Repo
	if err := json.Unmarshal(merged, &out); err != nil {
		return Repo{}, err
	}
	return out, nil
}

// Clone returns a deep copy of the record.
func (r Repo) Clone() Repo {
	out := r
	if r.Topics != nil {
		out.Topics = append([]string(nil), r.Topics...)
	}
	if r.CustomTags != nil {
		out.CustomTags = append([]string(nil), r.CustomTags...)
	}
	return out
}
