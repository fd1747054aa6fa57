// Package models defines the server-side persistence models.
package models

import "time"

// Draft is the authoritative in-progress application state: one row per
// (owner, draft type). FormData and UploadedFiles are stored as opaque JSON;
// the server only guards their versioning, the client owns their shape.
//
// Version starts at 1 and advances by exactly 1 on every accepted write.
// A write is accepted only when the caller's expected version matches the
// stored one.
type Draft struct {
	OwnerID       string
	DraftType     string
	FormData      []byte
	UploadedFiles []byte
	CurrentStep   int
	ApplicationID string
	Version       int64
	UpdatedAt     time.Time
}
