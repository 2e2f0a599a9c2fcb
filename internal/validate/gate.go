// Package validate gates every inbound command against a JSON schema
// before it reaches the service layer. Unknown kinds and out-of-bounds
// payloads are rejected uniformly.
package validate

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/repostash/repostash/internal/common"
)

//go:embed schema.json
var schemaJSON string

// Known message kinds, in the order clients tend to use them.
const (
	KindSaveRepo        = "SAVE_REPO"
	KindConfirmSaveRepo = "CONFIRM_SAVE_REPO"
	KindGetPendingRepo  = "GET_PENDING_REPO"
	KindClearPending    = "CLEAR_PENDING_REPO"
	KindGetAllRepos     = "GET_ALL_REPOS"
	KindUpdateRepo      = "UPDATE_REPO"
	KindRemoveRepo      = "REMOVE_REPO"
	KindRestoreRepo     = "RESTORE_REPO"
	KindGetSyncStatus   = "GET_SYNC_STATUS"
	KindSetSyncEnabled  = "SET_SYNC_ENABLED"
	KindSyncNow         = "SYNC_NOW"
	KindGetLicenseInfo  = "GET_LICENSE_INFO"
	KindExportRepos     = "EXPORT_REPOS"
	KindImportRepos     = "IMPORT_REPOS"
	KindBulkUpdateRepos = "BULK_UPDATE_REPOS"
	KindBulkRemoveRepos = "BULK_REMOVE_REPOS"
	KindBulkAddTags     = "BULK_ADD_TAGS"
	KindGetStats        = "GET_STATS"
	KindRecordOpened    = "RECORD_OPENED"
)

var kinds = []string{
	KindSaveRepo, KindConfirmSaveRepo, KindGetPendingRepo, KindClearPending,
	KindGetAllRepos, KindUpdateRepo, KindRemoveRepo, KindRestoreRepo,
	KindGetSyncStatus, KindSetSyncEnabled, KindSyncNow, KindGetLicenseInfo,
	KindExportRepos, KindImportRepos, KindBulkUpdateRepos, KindBulkRemoveRepos,
	KindBulkAddTags, KindGetStats, KindRecordOpened,
}

// Gate validates command payloads against per-kind schemas. It is built
// once at startup and safe for concurrent use.
type Gate struct {
	schemas map[string]*jsonschema.Schema
}

// NewGate compiles the embedded schema document. Compilation failure is a
// programming error, not an input error.
func NewGate() (*Gate, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parsing message schema: %w", err)
	}

	const url = "https://repostash.dev/schemas/messages.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("registering message schema: %w", err)
	}

	schemas := make(map[string]*jsonschema.Schema, len(kinds))
	for _, kind := range kinds {
		s, err := compiler.Compile(url + "#/$defs/" + kind)
		if err != nil {
			return nil, fmt.Errorf("compiling schema for %s: %w", kind, err)
		}
		schemas[kind] = s
	}
	return &Gate{schemas: schemas}, nil
}

// Check validates payload (a json-decoded value) against the schema for
// kind. Unknown kinds fail. The returned error wraps common.ErrValidation
// and carries the offending kind.
func (g *Gate) Check(kind string, payload any) error {
	s, ok := g.schemas[kind]
	if !ok {
		return fmt.Errorf("%w: %s", common.ErrValidation, kind)
	}
	if payload == nil {
		payload = map[string]any{}
	}
	if err := s.Validate(payload); err != nil {
		return fmt.Errorf("%w: %s", common.ErrValidation, kind)
	}
	return nil
}

// Known reports whether kind is an accepted message kind.
func (g *Gate) Known(kind string) bool {
	_, ok := g.schemas[kind]
	return ok
}
