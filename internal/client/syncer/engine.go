// Package syncer is the single choke point for draft writes. Every save,
// whether user-triggered, debounced or replayed, goes through Engine.Save so
// the server-side version check is never bypassed.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/admitflow/admitflow/internal/client/api"
	"github.com/admitflow/admitflow/internal/client/models"
	"github.com/admitflow/admitflow/internal/client/repositories/offline"
	"github.com/admitflow/admitflow/internal/common"
	"github.com/admitflow/admitflow/internal/logging"
)

// Outcome is the tri-state result of a save. Server rejections other than a
// version conflict come back as ordinary errors instead.
type Outcome int

const (
	OutcomeUnknown Outcome = iota

	// OutcomeSaved means the server accepted the write.
	OutcomeSaved

	// OutcomeSavedOffline means the server was unreachable and the payload
	// was queued locally for replay.
	OutcomeSavedOffline

	// OutcomeConflict means the server holds a newer version. The payload
	// was not applied and the conflict handler has been invoked.
	OutcomeConflict
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSaved:
		return "saved"
	case OutcomeSavedOffline:
		return "saved offline"
	case OutcomeConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// ConflictFunc is invoked when the server rejects a stale write. The engine
// never resolves conflicts itself.
type ConflictFunc func(serverVersion, localVersion int64)

// Status is the observable sync state shown in the wizard UI.
type Status struct {
	IsSaving       bool
	LastSaved      time.Time
	PendingChanges bool
}

// Engine tracks the last server-acknowledged draft version and routes writes
// either to the server or to the offline queue.
type Engine struct {
	client     api.Client
	queue      offline.Repository
	logger     logging.Logger
	onConflict ConflictFunc

	// saveMu serializes the write path. Without it two concurrent saves
	// (say a wizard step racing the autosave ticker) would both read the
	// same last-known version and one would conflict against the server.
	saveMu sync.Mutex

	mu               sync.Mutex
	lastKnownVersion int64
	isSaving         bool
	lastSaved        time.Time
	pendingChanges   bool
}

func NewEngine(client api.Client, queue offline.Repository, logger logging.Logger) *Engine {
	return &Engine{
		client: client,
		queue:  queue,
		logger: logger.With("component", "syncer"),
	}
}

// SetConflictHandler registers the conflict callback. Must be set before the
// first Save; a conflict with no handler is only logged.
func (e *Engine) SetConflictHandler(fn ConflictFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onConflict = fn
}

// Version returns the last server-acknowledged draft version.
func (e *Engine) Version() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastKnownVersion
}

// Status returns the current observable sync state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		IsSaving:       e.isSaving,
		LastSaved:      e.lastSaved,
		PendingChanges: e.pendingChanges,
	}
}

// MarkPending records that there are local edits not yet acknowledged by the
// server. The autosave scheduler calls it on every field change.
func (e *Engine) MarkPending() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pendingChanges = true
}

// Load fetches the authoritative draft and seeds the last-known version.
// A draft that does not exist yet yields an empty snapshot at version 0.
// When the server is unreachable, a queued offline payload (if any) is
// rehydrated instead so the user resumes from their latest local state.
func (e *Engine) Load(ctx context.Context, draftType string) (*models.DraftSnapshot, error) {
	snap, err := e.client.GetDraft(ctx, draftType)
	switch {
	case err == nil:
		e.setVersion(snap.Version)
		return snap, nil
	case errors.Is(err, common.ErrNotFound):
		e.setVersion(0)
		return &models.DraftSnapshot{DraftType: draftType}, nil
	case errors.Is(err, common.ErrUnavailable):
		return e.loadFromQueue(ctx, draftType)
	default:
		return nil, err
	}
}

func (e *Engine) loadFromQueue(ctx context.Context, draftType string) (*models.DraftSnapshot, error) {
	items, err := e.queue.GetAllPending(ctx, e.client.UserID())
	if err != nil {
		return nil, fmt.Errorf("load fallback: %w", err)
	}

	for _, item := range items {
		if item.Type != models.QueueItemDraftUpdate {
			continue
		}
		p, derr := item.DecodePayload()
		if derr != nil {
			continue
		}
		du := p.(*models.DraftUpdatePayload)
		if du.DraftType != draftType {
			continue
		}

		e.setVersion(du.Version)
		e.MarkPending()
		e.logger.Info(ctx, "resumed from offline fallback", "draft_type", draftType)
		return &models.DraftSnapshot{
			DraftType:     du.DraftType,
			FormData:      du.FormData,
			UploadedFiles: du.UploadedFiles,
			CurrentStep:   du.CurrentStep,
			ApplicationID: du.ApplicationID,
			Version:       du.Version,
		}, nil
	}

	return nil, common.ErrUnavailable
}

func (e *Engine) setVersion(v int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastKnownVersion = v
}

// Save writes the snapshot. Outcomes:
//   - OutcomeSaved: accepted; the last-known version advances and any queued
//     offline copy is dropped.
//   - OutcomeSavedOffline: server unreachable; the payload is queued locally
//     and PendingChanges stays set. Not an error.
//   - OutcomeConflict: stale version; the conflict handler receives
//     (serverVersion, localVersion) and nothing is overwritten.
//
// Any other server rejection is returned as an error.
//
// Saves are serialized: a Save entered while another is in flight waits its
// turn and reads the version the earlier write established.
func (e *Engine) Save(ctx context.Context, snap *models.DraftSnapshot) (Outcome, error) {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	e.mu.Lock()
	localVersion := e.lastKnownVersion
	e.isSaving = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.isSaving = false
		e.mu.Unlock()
	}()

	newVersion, err := e.client.WriteDraft(ctx, snap, localVersion)

	switch {
	case err == nil:
		e.mu.Lock()
		e.lastKnownVersion = newVersion
		e.lastSaved = time.Now()
		e.pendingChanges = false
		e.mu.Unlock()

		if rerr := e.queue.Remove(ctx, offline.DraftItemID(e.client.UserID(), snap.DraftType)); rerr != nil {
			e.logger.Warn(ctx, "failed to drop offline copy", "error", rerr)
		}
		e.logger.Debug(ctx, "draft saved", "version", newVersion)
		return OutcomeSaved, nil

	case errors.Is(err, common.ErrUnavailable):
		if qerr := e.enqueue(ctx, snap, localVersion); qerr != nil {
			return OutcomeUnknown, qerr
		}
		e.MarkPending()
		e.logger.Info(ctx, "server unreachable, draft saved offline", "version", localVersion)
		return OutcomeSavedOffline, nil

	case errors.Is(err, common.ErrVersionConflict):
		serverVersion := newVersion
		e.logger.Warn(ctx, "draft version conflict", "server", serverVersion, "local", localVersion)

		e.mu.Lock()
		fn := e.onConflict
		e.mu.Unlock()
		if fn != nil {
			fn(serverVersion, localVersion)
		}
		return OutcomeConflict, nil

	default:
		return OutcomeUnknown, fmt.Errorf("draft save: %w", err)
	}
}

// ReplayDraft pushes a queued offline payload through the normal write path,
// using the version recorded at enqueue time so a draft superseded from
// another session surfaces as a conflict instead of overwriting it.
func (e *Engine) ReplayDraft(ctx context.Context, p *models.DraftUpdatePayload) (Outcome, error) {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	snap := &models.DraftSnapshot{
		DraftType:     p.DraftType,
		FormData:      p.FormData,
		UploadedFiles: p.UploadedFiles,
		CurrentStep:   p.CurrentStep,
		ApplicationID: p.ApplicationID,
	}

	newVersion, err := e.client.WriteDraft(ctx, snap, p.Version)

	switch {
	case err == nil:
		e.mu.Lock()
		if newVersion > e.lastKnownVersion {
			e.lastKnownVersion = newVersion
		}
		e.lastSaved = time.Now()
		e.pendingChanges = false
		e.mu.Unlock()
		e.logger.Info(ctx, "offline draft replayed", "version", newVersion)
		return OutcomeSaved, nil

	case errors.Is(err, common.ErrUnavailable):
		return OutcomeSavedOffline, nil

	case errors.Is(err, common.ErrVersionConflict):
		serverVersion := newVersion
		e.logger.Warn(ctx, "replayed draft superseded", "server", serverVersion, "local", p.Version)

		e.mu.Lock()
		fn := e.onConflict
		e.mu.Unlock()
		if fn != nil {
			fn(serverVersion, p.Version)
		}
		return OutcomeConflict, nil

	default:
		return OutcomeUnknown, fmt.Errorf("draft replay: %w", err)
	}
}

func (e *Engine) enqueue(ctx context.Context, snap *models.DraftSnapshot, version int64) error {
	payload, err := json.Marshal(models.DraftUpdatePayload{
		DraftType:     snap.DraftType,
		FormData:      snap.FormData,
		UploadedFiles: snap.UploadedFiles,
		CurrentStep:   snap.CurrentStep,
		ApplicationID: snap.ApplicationID,
		Version:       version,
	})
	if err != nil {
		return fmt.Errorf("marshal offline payload: %w", err)
	}

	ownerID := e.client.UserID()
	return e.queue.Store(ctx, &models.QueueItem{
		ID:      offline.DraftItemID(ownerID, snap.DraftType),
		OwnerID: ownerID,
		Type:    models.QueueItemDraftUpdate,
		Payload: payload,
	})
}
