// Package server exposes the command surface over a local websocket: one
// JSON message in, one JSON reply out, every message gated by schema
// validation before it reaches the service layer.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/repostash/repostash/internal/common"
	"github.com/repostash/repostash/internal/logging"
	"github.com/repostash/repostash/internal/model"
	"github.com/repostash/repostash/internal/service"
	"github.com/repostash/repostash/internal/validate"
)

// Handler turns one decoded message into one reply.
type Handler struct {
	svc  *service.Service
	gate *validate.Gate
	log  logging.Logger
}

func NewHandler(svc *service.Service, gate *validate.Gate, log logging.Logger) *Handler {
	if log == nil {
		log = logging.NopLogger{}
	}
	return &Handler{svc: svc, gate: gate, log: log.With("component", "server")}
}

type envelope struct {
	Type string `json:"type"`
}

type repoRequest struct {
	Repo model.Repo `json:"repo"`
}

type idRequest struct {
	ID string `json:"id"`
}

type updateRequest struct {
	ID      string         `json:"id"`
	Updates map[string]any `json:"updates"`
}

type bulkUpdateRequest struct {
	IDs     []string       `json:"ids"`
	Updates map[string]any `json:"updates"`
}

type bulkIDsRequest struct {
	IDs []string `json:"ids"`
}

type bulkTagsRequest struct {
	IDs  []string `json:"ids"`
	Tags []string `json:"tags"`
}

type enabledRequest struct {
	Enabled bool `json:"enabled"`
}

type importRequest struct {
	Data any `json:"data"`
}

// Dispatch validates and executes one message. It always returns a reply
// value; protocol-level errors are expressed in the reply, never as a
// dropped message.
func (h *Handler) Dispatch(ctx context.Context, raw json.RawMessage) any {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
		return invalidPayload("UNKNOWN")
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return invalidPayload(env.Type)
	}
	if err := h.gate.Check(env.Type, payload); err != nil {
		h.log.Warn(ctx, "message rejected", "kind", env.Type)
		return invalidPayload(env.Type)
	}

	reply, err := h.execute(ctx, env.Type, raw)
	if err != nil {
		// decode errors past the gate mean the schema and the request
		// structs disagree
		h.log.Error(ctx, "dispatch failed", "kind", env.Type, "err", err)
		return map[string]any{"success": false, "error": err.Error()}
	}
	return reply
}

func (h *Handler) execute(ctx context.Context, kind string, raw json.RawMessage) (any, error) {
	switch kind {
	case validate.KindSaveRepo:
		var req repoRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, err
		}
		if err := h.svc.StagePending(ctx, req.Repo); err != nil {
			return nil, err
		}
		return map[string]any{"success": true}, nil

	case validate.KindConfirmSaveRepo:
		var req repoRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, err
		}
		saved, err := h.svc.ConfirmSave(ctx, req.Repo)
		if errors.Is(err, common.ErrDuplicate) {
			return map[string]any{
				"success":   false,
				"error":     "Repository already saved",
				"duplicate": true,
			}, nil
		}
		if err != nil {
			return nil, err
		}
		return map[string]any{"success": true, "repo": saved}, nil

	case validate.KindGetPendingRepo:
		pending, err := h.svc.Pending(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"repo": pending}, nil

	case validate.KindClearPending:
		if err := h.svc.ClearPending(ctx); err != nil {
			return nil, err
		}
		return map[string]any{"success": true}, nil

	case validate.KindGetAllRepos:
		repos := h.svc.GetAll(ctx)
		return map[string]any{"repos": repos, "repoCount": len(repos)}, nil

	case validate.KindUpdateRepo:
		var req updateRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, err
		}
		if err := h.svc.Update(ctx, req.ID, req.Updates); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return map[string]any{"success": false, "error": "Repository not found"}, nil
			}
			return nil, err
		}
		return map[string]any{"success": true}, nil

	case validate.KindRemoveRepo:
		var req idRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, err
		}
		return map[string]any{"success": h.svc.Remove(ctx, req.ID)}, nil

	case validate.KindRestoreRepo:
		var req repoRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, err
		}
		return map[string]any{"success": h.svc.Restore(ctx, req.Repo)}, nil

	case validate.KindGetSyncStatus:
		return h.svc.SyncStatus(ctx), nil

	case validate.KindSetSyncEnabled:
		var req enabledRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, err
		}
		status, err := h.svc.SetSyncEnabled(ctx, req.Enabled)
		if err != nil {
			return nil, err
		}
		return map[string]any{"success": true, "enabled": status.Enabled, "meta": status.Meta}, nil

	case validate.KindSyncNow:
		status, err := h.svc.SyncNow(ctx)
		if err != nil {
			return map[string]any{"success": false, "error": err.Error(), "enabled": status.Enabled}, nil
		}
		return map[string]any{"success": true, "enabled": status.Enabled, "meta": status.Meta}, nil

	case validate.KindGetLicenseInfo:
		return h.svc.License(ctx), nil

	case validate.KindExportRepos:
		return h.svc.ExportAll(ctx), nil

	case validate.KindImportRepos:
		var req importRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, err
		}
		res, err := h.svc.Import(ctx, req.Data)
		if err != nil {
			return map[string]any{"success": false, "error": importError(err)}, nil
		}
		return map[string]any{"success": true, "added": res.Added, "skipped": res.Skipped}, nil

	case validate.KindBulkUpdateRepos:
		var req bulkUpdateRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, err
		}
		return map[string]any{"updated": h.svc.BulkUpdate(ctx, req.IDs, req.Updates)}, nil

	case validate.KindBulkRemoveRepos:
		var req bulkIDsRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, err
		}
		return map[string]any{"removed": h.svc.BulkRemove(ctx, req.IDs)}, nil

	case validate.KindBulkAddTags:
		var req bulkTagsRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, err
		}
		return map[string]any{"updated": h.svc.BulkAddTags(ctx, req.IDs, req.Tags)}, nil

	case validate.KindGetStats:
		return h.svc.CollectionStats(ctx), nil

	case validate.KindRecordOpened:
		var req idRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, err
		}
		if err := h.svc.RecordOpened(ctx, req.ID); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return map[string]any{"success": false, "error": "Repository not found"}, nil
			}
			return nil, err
		}
		return map[string]any{"success": true}, nil
	}

	return invalidPayload(kind), nil
}

func invalidPayload(kind string) map[string]any {
	return map[string]any{"error": fmt.Sprintf("Invalid message payload: %s", kind)}
}

func importError(err error) string {
	switch {
	case errors.Is(err, common.ErrEmptyImport):
		return "Import contains no records"
	case errors.Is(err, common.ErrMalformedImport):
		return "Import data is not a valid export"
	default:
		return err.Error()
	}
}
