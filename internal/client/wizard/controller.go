// Package wizard drives the multi-step admission flow as a state machine:
// no draft, draft in progress, submitted. It owns the application identity
// and guarantees the server is asked to create it exactly once.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/admitflow/admitflow/internal/client/api"
	"github.com/admitflow/admitflow/internal/client/models"
	"github.com/admitflow/admitflow/internal/client/syncer"
	"github.com/admitflow/admitflow/internal/common"
	"github.com/admitflow/admitflow/internal/logging"
)

// State is the wizard lifecycle state.
type State int

const (
	StateNoDraft State = iota
	StateDraftInProgress
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateDraftInProgress:
		return "draft in progress"
	case StateSubmitted:
		return "submitted"
	default:
		return "no draft"
	}
}

// Step is a zero-based wizard step index.
type Step int

const (
	StepKYC Step = iota
	StepDocuments
	StepPayment
	StepReview

	stepCount
)

func (s Step) String() string {
	switch s {
	case StepKYC:
		return "kyc"
	case StepDocuments:
		return "education and documents"
	case StepPayment:
		return "payment"
	case StepReview:
		return "review"
	default:
		return fmt.Sprintf("step %d", int(s))
	}
}

// Identity is the server-assigned application identity. Immutable once set.
type Identity struct {
	ApplicationID     string
	ApplicationNumber string
	TrackingCode      string
}

// SyncEngine is the slice of the sync engine the controller needs.
type SyncEngine interface {
	Load(ctx context.Context, draftType string) (*models.DraftSnapshot, error)
	Save(ctx context.Context, snap *models.DraftSnapshot) (syncer.Outcome, error)
}

// ApplicationClient covers the application operations the controller uses.
type ApplicationClient interface {
	CreateApplication(ctx context.Context, programCode, intakeCode string, form models.FormData, files []models.FileDescriptor) (*api.Application, error)
	GetApplication(ctx context.Context, id string) (*api.Application, error)
	UpdateApplication(ctx context.Context, id string, form models.FormData, files []models.FileDescriptor) (*api.Application, error)
	SubmitApplication(ctx context.Context, id string) (*api.Application, error)
}

// Controller is safe for use from the UI goroutine plus the autosave
// scheduler reading snapshots concurrently.
type Controller struct {
	engine SyncEngine
	client ApplicationClient
	logger logging.Logger

	mu       sync.Mutex
	state    State
	step     Step
	snapshot *models.DraftSnapshot
	identity Identity
}

func NewController(engine SyncEngine, client ApplicationClient, logger logging.Logger) *Controller {
	return &Controller{
		engine: engine,
		client: client,
		logger: logger.With("component", "wizard"),
		snapshot: &models.DraftSnapshot{
			DraftType: common.DraftTypeAdmission,
		},
	}
}

// Resume loads the stored draft and re-hydrates the wizard position and the
// application identity. A user with no saved draft starts fresh.
func (c *Controller) Resume(ctx context.Context) error {
	snap, err := c.engine.Load(ctx, common.DraftTypeAdmission)
	if err != nil {
		return fmt.Errorf("resume: %w", err)
	}

	c.mu.Lock()
	c.snapshot = snap
	c.step = Step(snap.CurrentStep)
	if c.step >= stepCount {
		c.step = StepReview
	}
	if snap.Version == 0 && len(snap.FormData) == 0 && snap.ApplicationID == "" {
		c.state = StateNoDraft
	} else {
		c.state = StateDraftInProgress
	}
	c.identity = Identity{ApplicationID: snap.ApplicationID}
	c.mu.Unlock()

	if snap.ApplicationID == "" {
		return nil
	}

	// The draft row only carries the application id; the number and tracking
	// code live on the application record.
	app, err := c.client.GetApplication(ctx, snap.ApplicationID)
	if err != nil {
		if errors.Is(err, common.ErrUnavailable) {
			c.logger.Warn(ctx, "identity re-hydration deferred, server unreachable")
			return nil
		}
		return fmt.Errorf("resume application: %w", err)
	}

	c.mu.Lock()
	c.identity = Identity{
		ApplicationID:     app.ID,
		ApplicationNumber: app.ApplicationNumber,
		TrackingCode:      app.TrackingCode,
	}
	if app.Status == "submitted" {
		c.state = StateSubmitted
	}
	c.mu.Unlock()
	return nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentStep returns the current step index.
func (c *Controller) CurrentStep() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// Identity returns the application identity; zero-valued before creation.
func (c *Controller) Identity() Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// SetField records a form field edit in the working draft.
func (c *Controller) SetField(name, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot.FormData.Set(name, value)
	if c.state == StateNoDraft {
		c.state = StateDraftInProgress
	}
}

// Field returns a form field value.
func (c *Controller) Field(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot.FormData.Get(name)
}

// AttachFile records an uploaded document on the working draft.
func (c *Controller) AttachFile(fd models.FileDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot.UploadedFiles = append(c.snapshot.UploadedFiles, fd)
	if c.state == StateNoDraft {
		c.state = StateDraftInProgress
	}
}

// Snapshot returns an independent copy of the working draft, stamped with
// the current step. The autosave scheduler uses it as its SnapshotFunc.
func (c *Controller) Snapshot() *models.DraftSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := c.snapshot.Clone()
	snap.CurrentStep = int(c.step)
	snap.ApplicationID = c.identity.ApplicationID
	return snap
}

// Next advances to the following step. Completing the first step creates the
// application exactly once; every later forward step updates it. On any
// create or update failure the controller keeps its state and step.
func (c *Controller) Next(ctx context.Context) (syncer.Outcome, error) {
	c.mu.Lock()
	state := c.state
	step := c.step
	appID := c.identity.ApplicationID
	form := c.snapshot.FormData.Clone()
	files := append([]models.FileDescriptor(nil), c.snapshot.UploadedFiles...)
	c.mu.Unlock()

	if state == StateSubmitted {
		return syncer.OutcomeUnknown, fmt.Errorf("%w: application already submitted", common.ErrValidation)
	}
	if step >= StepReview {
		return syncer.OutcomeUnknown, fmt.Errorf("%w: already at the review step", common.ErrValidation)
	}

	if appID == "" {
		app, err := c.createApplication(ctx, form, files)
		if err != nil {
			return syncer.OutcomeUnknown, err
		}
		appID = app.ID
	} else {
		if _, err := c.client.UpdateApplication(ctx, appID, form, files); err != nil {
			return syncer.OutcomeUnknown, fmt.Errorf("update application: %w", err)
		}
	}

	return c.advance(ctx, step+1)
}

func (c *Controller) createApplication(ctx context.Context, form models.FormData, files []models.FileDescriptor) (*api.Application, error) {
	programCode, _ := form.Get("program_code")
	intakeCode, _ := form.Get("intake_code")
	if programCode == "" || intakeCode == "" {
		return nil, fmt.Errorf("%w: program_code and intake_code are required", common.ErrValidation)
	}

	app, err := c.client.CreateApplication(ctx, programCode, intakeCode, form, files)
	if err != nil {
		return nil, fmt.Errorf("create application: %w", err)
	}

	c.mu.Lock()
	c.identity = Identity{
		ApplicationID:     app.ID,
		ApplicationNumber: app.ApplicationNumber,
		TrackingCode:      app.TrackingCode,
	}
	c.state = StateDraftInProgress
	c.snapshot.ApplicationID = app.ID
	c.mu.Unlock()

	c.logger.Info(ctx, "application created",
		"application_number", app.ApplicationNumber, "tracking_code", app.TrackingCode)
	return app, nil
}

// advance saves the draft at the new step and moves there. A conflict leaves
// the step unchanged; the conflict handler owns resolution.
func (c *Controller) advance(ctx context.Context, next Step) (syncer.Outcome, error) {
	snap := c.Snapshot()
	snap.CurrentStep = int(next)

	outcome, err := c.engine.Save(ctx, snap)
	if err != nil {
		return outcome, err
	}
	if outcome == syncer.OutcomeConflict {
		return outcome, nil
	}

	c.mu.Lock()
	c.step = next
	c.mu.Unlock()
	return outcome, nil
}

// Previous steps back without any server write. Identity and entered data
// are kept.
func (c *Controller) Previous() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step > 0 {
		c.step--
	}
	return c.step
}

// SubmitResult reports a finalized or queued submission.
type SubmitResult struct {
	// Application is set when the server confirmed the submission. Its
	// identity fields match the ones assigned at creation.
	Application *api.Application

	// Queued is true when the server was unreachable and the submission was
	// recorded for replay.
	Queued bool
}

// SubmitQueuer enqueues a submission for offline replay.
type SubmitQueuer func(ctx context.Context, applicationID string) error

// Submit finalizes the application from the review step. The transition to
// the submitted state happens exactly once; a repeated submit of an already
// submitted application returns the stored record unchanged. When offline,
// queueFn records the submission for replay and the state is kept until the
// server confirms.
func (c *Controller) Submit(ctx context.Context, queueFn SubmitQueuer) (*SubmitResult, error) {
	c.mu.Lock()
	state := c.state
	step := c.step
	identity := c.identity
	form := c.snapshot.FormData.Clone()
	files := append([]models.FileDescriptor(nil), c.snapshot.UploadedFiles...)
	c.mu.Unlock()

	if state == StateSubmitted {
		return nil, fmt.Errorf("%w: application already submitted", common.ErrValidation)
	}
	if step != StepReview {
		return nil, fmt.Errorf("%w: submit is only allowed from the review step", common.ErrValidation)
	}
	if identity.ApplicationID == "" {
		return nil, fmt.Errorf("%w: no application to submit", common.ErrValidation)
	}

	// Push the latest form state first so the server validates what the user
	// actually sees on the review screen.
	if _, err := c.client.UpdateApplication(ctx, identity.ApplicationID, form, files); err != nil {
		if errors.Is(err, common.ErrUnavailable) && queueFn != nil {
			return c.queueSubmit(ctx, identity.ApplicationID, queueFn)
		}
		return nil, fmt.Errorf("update before submit: %w", err)
	}

	app, err := c.client.SubmitApplication(ctx, identity.ApplicationID)
	if err != nil {
		if errors.Is(err, common.ErrUnavailable) && queueFn != nil {
			return c.queueSubmit(ctx, identity.ApplicationID, queueFn)
		}
		return nil, fmt.Errorf("submit application: %w", err)
	}

	if app.ApplicationNumber != identity.ApplicationNumber && identity.ApplicationNumber != "" {
		c.logger.Error(ctx, "identity mismatch on submit confirmation",
			"expected", identity.ApplicationNumber, "got", app.ApplicationNumber)
	}

	c.mu.Lock()
	c.state = StateSubmitted
	c.mu.Unlock()

	c.logger.Info(ctx, "application submitted",
		"application_number", app.ApplicationNumber, "tracking_code", app.TrackingCode)
	return &SubmitResult{Application: app}, nil
}

func (c *Controller) queueSubmit(ctx context.Context, applicationID string, queueFn SubmitQueuer) (*SubmitResult, error) {
	if err := queueFn(ctx, applicationID); err != nil {
		return nil, fmt.Errorf("queue submit: %w", err)
	}
	c.logger.Info(ctx, "submission queued for replay", "application_id", applicationID)
	return &SubmitResult{Queued: true}, nil
}
