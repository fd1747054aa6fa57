package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// QueueItemType tags the payload variant of a queued offline write.
type QueueItemType string

const (
	// QueueItemDraftUpdate replays through the draft write path, so the
	// server-side version check still applies.
	QueueItemDraftUpdate QueueItemType = "draft_update"

	// QueueItemApplicationSubmit replays through the application finalize
	// path.
	QueueItemApplicationSubmit QueueItemType = "application_submit"
)

// QueueItem is one pending offline write. Items are replayed in EnqueuedAt
// order; Attempts counts failed replays and is persisted across restarts.
type QueueItem struct {
	ID         string
	OwnerID    string
	Type       QueueItemType
	Payload    []byte
	Attempts   int
	EnqueuedAt time.Time
}

// DraftUpdatePayload is the fixed schema of a draft_update queue item.
type DraftUpdatePayload struct {
	DraftType     string           `json:"draft_type" validate:"required"`
	FormData      FormData         `json:"form_data"`
	UploadedFiles []FileDescriptor `json:"uploaded_files"`
	CurrentStep   int              `json:"current_step" validate:"gte=0"`
	ApplicationID string           `json:"application_id,omitempty"`
	Version       int64            `json:"version" validate:"gte=0"`
}

// ApplicationSubmitPayload is the fixed schema of an application_submit
// queue item.
type ApplicationSubmitPayload struct {
	ApplicationID string `json:"application_id" validate:"required"`
}

// DecodePayload unmarshals the item payload into the schema matching its
// type tag. An unknown tag or a malformed payload is an error; such items
// must never reach the replay dispatch.
func (i *QueueItem) DecodePayload() (any, error) {
	switch i.Type {
	case QueueItemDraftUpdate:
		var p DraftUpdatePayload
		if err := json.Unmarshal(i.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode draft_update payload: %w", err)
		}
		return &p, nil
	case QueueItemApplicationSubmit:
		var p ApplicationSubmitPayload
		if err := json.Unmarshal(i.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode application_submit payload: %w", err)
		}
		return &p, nil
	default:
		return nil, fmt.Errorf("unknown queue item type: %q", i.Type)
	}
}
