package models

import "time"

// ApplicationStatus tracks the application lifecycle.
type ApplicationStatus string

const (
	ApplicationStatusDraft     ApplicationStatus = "draft"
	ApplicationStatusSubmitted ApplicationStatus = "submitted"
)

// PaymentStatus tracks the application fee.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// Application is the finalized record derived from a Draft. At most one row
// exists per (owner, program, intake). ApplicationNumber and TrackingCode are
// assigned at creation and never regenerated.
type Application struct {
	ID                string
	OwnerID           string
	ProgramCode       string
	IntakeCode        string
	ApplicationNumber string
	TrackingCode      string
	FormData          []byte
	UploadedFiles     []byte
	Status            ApplicationStatus
	PaymentStatus     PaymentStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
	SubmittedAt       *time.Time
}
