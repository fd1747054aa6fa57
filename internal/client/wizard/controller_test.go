package wizard

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admitflow/admitflow/internal/client/api"
	"github.com/admitflow/admitflow/internal/client/models"
	"github.com/admitflow/admitflow/internal/client/syncer"
	"github.com/admitflow/admitflow/internal/common"
	"github.com/admitflow/admitflow/internal/logging"
)

type fakeEngine struct {
	loadSnap    *models.DraftSnapshot
	loadErr     error
	saveOutcome syncer.Outcome
	saveErr     error
	saves       []*models.DraftSnapshot
}

func (f *fakeEngine) Load(ctx context.Context, draftType string) (*models.DraftSnapshot, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.loadSnap != nil {
		return f.loadSnap, nil
	}
	return &models.DraftSnapshot{DraftType: draftType}, nil
}

func (f *fakeEngine) Save(ctx context.Context, snap *models.DraftSnapshot) (syncer.Outcome, error) {
	f.saves = append(f.saves, snap)
	if f.saveErr != nil {
		return syncer.OutcomeUnknown, f.saveErr
	}
	if f.saveOutcome == syncer.OutcomeUnknown {
		return syncer.OutcomeSaved, nil
	}
	return f.saveOutcome, nil
}

type fakeAppClient struct {
	app         *api.Application
	createErr   error
	updateErr   error
	submitErr   error
	getErr      error
	createCalls int
	updateCalls int
	submitCalls int
}

func newFakeAppClient() *fakeAppClient {
	return &fakeAppClient{
		app: &api.Application{
			ID:                "app-1",
			ApplicationNumber: "APP007",
			TrackingCode:      "TRKABC234",
			Status:            "draft",
		},
	}
}

func (f *fakeAppClient) CreateApplication(ctx context.Context, programCode, intakeCode string, form models.FormData, files []models.FileDescriptor) (*api.Application, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.app, nil
}

func (f *fakeAppClient) GetApplication(ctx context.Context, id string) (*api.Application, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.app, nil
}

func (f *fakeAppClient) UpdateApplication(ctx context.Context, id string, form models.FormData, files []models.FileDescriptor) (*api.Application, error) {
	f.updateCalls++
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.app, nil
}

func (f *fakeAppClient) SubmitApplication(ctx context.Context, id string) (*api.Application, error) {
	f.submitCalls++
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	submitted := *f.app
	submitted.Status = "submitted"
	return &submitted, nil
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

func newController(engine *fakeEngine, client *fakeAppClient) *Controller {
	return NewController(engine, client, testLogger())
}

func fillKYC(c *Controller) {
	c.SetField("program_code", "CS")
	c.SetField("intake_code", "2026F")
	c.SetField("first_name", "Ada")
	c.SetField("last_name", "Lovelace")
	c.SetField("email", "ada@example.com")
}

func TestNext_FirstStepCreatesApplicationOnce(t *testing.T) {
	engine := &fakeEngine{}
	client := newFakeAppClient()
	c := newController(engine, client)

	fillKYC(c)
	out, err := c.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, syncer.OutcomeSaved, out)

	assert.Equal(t, 1, client.createCalls)
	assert.Equal(t, StateDraftInProgress, c.State())
	assert.Equal(t, StepDocuments, c.CurrentStep())

	id := c.Identity()
	assert.Equal(t, "app-1", id.ApplicationID)
	assert.Equal(t, "APP007", id.ApplicationNumber)
	assert.Equal(t, "TRKABC234", id.TrackingCode)

	// Later forward steps update, never re-create.
	_, err = c.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, client.createCalls)
	assert.Equal(t, 1, client.updateCalls)
}

func TestNext_RequiresProgramAndIntake(t *testing.T) {
	c := newController(&fakeEngine{}, newFakeAppClient())
	c.SetField("first_name", "Ada")

	_, err := c.Next(context.Background())
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Equal(t, StepKYC, c.CurrentStep())
}

func TestNext_CreateFailureKeepsStateAndStep(t *testing.T) {
	engine := &fakeEngine{}
	client := newFakeAppClient()
	client.createErr = common.ErrUnavailable
	c := newController(engine, client)

	fillKYC(c)
	_, err := c.Next(context.Background())
	assert.ErrorIs(t, err, common.ErrUnavailable)

	assert.Equal(t, StepKYC, c.CurrentStep())
	assert.Empty(t, c.Identity().ApplicationID)
	assert.Empty(t, engine.saves, "no draft write when the forward step failed")
}

func TestNext_ConflictDoesNotAdvance(t *testing.T) {
	engine := &fakeEngine{saveOutcome: syncer.OutcomeConflict}
	client := newFakeAppClient()
	c := newController(engine, client)

	fillKYC(c)
	out, err := c.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, syncer.OutcomeConflict, out)
	assert.Equal(t, StepKYC, c.CurrentStep())
}

func TestNext_OfflineSaveStillAdvances(t *testing.T) {
	engine := &fakeEngine{saveOutcome: syncer.OutcomeSavedOffline}
	client := newFakeAppClient()
	c := newController(engine, client)

	fillKYC(c)
	out, err := c.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, syncer.OutcomeSavedOffline, out)
	assert.Equal(t, StepDocuments, c.CurrentStep())
}

func TestPrevious_NoServerWriteKeepsIdentity(t *testing.T) {
	engine := &fakeEngine{}
	client := newFakeAppClient()
	c := newController(engine, client)

	fillKYC(c)
	_, err := c.Next(context.Background())
	require.NoError(t, err)

	savesBefore := len(engine.saves)
	updatesBefore := client.updateCalls

	step := c.Previous()
	assert.Equal(t, StepKYC, step)
	assert.Equal(t, savesBefore, len(engine.saves))
	assert.Equal(t, updatesBefore, client.updateCalls)
	assert.Equal(t, "app-1", c.Identity().ApplicationID)

	// Forward again: still an update, not a second create.
	_, err = c.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, client.createCalls)
}

func TestPrevious_StopsAtFirstStep(t *testing.T) {
	c := newController(&fakeEngine{}, newFakeAppClient())
	assert.Equal(t, StepKYC, c.Previous())
}

func TestSubmit_EchoesIdentityAndHappensOnce(t *testing.T) {
	engine := &fakeEngine{}
	client := newFakeAppClient()
	c := newController(engine, client)

	fillKYC(c)
	for c.CurrentStep() != StepReview {
		_, err := c.Next(context.Background())
		require.NoError(t, err)
	}

	res, err := c.Submit(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, res.Application)
	assert.False(t, res.Queued)
	assert.Equal(t, "APP007", res.Application.ApplicationNumber)
	assert.Equal(t, "TRKABC234", res.Application.TrackingCode)
	assert.Equal(t, "submitted", res.Application.Status)
	assert.Equal(t, StateSubmitted, c.State())

	_, err = c.Submit(context.Background(), nil)
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Equal(t, 1, client.submitCalls)
}

func TestSubmit_OnlyFromReviewStep(t *testing.T) {
	c := newController(&fakeEngine{}, newFakeAppClient())
	fillKYC(c)
	_, err := c.Next(context.Background())
	require.NoError(t, err)

	_, err = c.Submit(context.Background(), nil)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestSubmit_OfflineQueuesForReplay(t *testing.T) {
	engine := &fakeEngine{}
	client := newFakeAppClient()
	c := newController(engine, client)

	fillKYC(c)
	for c.CurrentStep() != StepReview {
		_, err := c.Next(context.Background())
		require.NoError(t, err)
	}

	client.updateErr = common.ErrUnavailable
	client.submitErr = common.ErrUnavailable

	var queuedID string
	res, err := c.Submit(context.Background(), func(ctx context.Context, applicationID string) error {
		queuedID = applicationID
		return nil
	})
	require.NoError(t, err)
	assert.True(t, res.Queued)
	assert.Equal(t, "app-1", queuedID)
	assert.Equal(t, StateDraftInProgress, c.State(), "state transitions only on server confirmation")
}

func TestResume_FreshUserStartsAtNoDraft(t *testing.T) {
	c := newController(&fakeEngine{}, newFakeAppClient())

	require.NoError(t, c.Resume(context.Background()))
	assert.Equal(t, StateNoDraft, c.State())
	assert.Equal(t, StepKYC, c.CurrentStep())
}

func TestResume_RehydratesStepAndIdentity(t *testing.T) {
	engine := &fakeEngine{loadSnap: &models.DraftSnapshot{
		DraftType:     common.DraftTypeAdmission,
		FormData:      models.FormData{{Name: "first_name", Value: "Ada"}},
		CurrentStep:   2,
		ApplicationID: "app-1",
		Version:       4,
	}}
	c := newController(engine, newFakeAppClient())

	require.NoError(t, c.Resume(context.Background()))
	assert.Equal(t, StateDraftInProgress, c.State())
	assert.Equal(t, StepPayment, c.CurrentStep())

	id := c.Identity()
	assert.Equal(t, "APP007", id.ApplicationNumber)
	assert.Equal(t, "TRKABC234", id.TrackingCode)
}

func TestResume_SubmittedApplication(t *testing.T) {
	engine := &fakeEngine{loadSnap: &models.DraftSnapshot{
		DraftType:     common.DraftTypeAdmission,
		ApplicationID: "app-1",
		Version:       9,
	}}
	client := newFakeAppClient()
	client.app.Status = "submitted"
	c := newController(engine, client)

	require.NoError(t, c.Resume(context.Background()))
	assert.Equal(t, StateSubmitted, c.State())
}

func TestResume_OfflineKeepsApplicationID(t *testing.T) {
	engine := &fakeEngine{loadSnap: &models.DraftSnapshot{
		DraftType:     common.DraftTypeAdmission,
		ApplicationID: "app-1",
		Version:       2,
	}}
	client := newFakeAppClient()
	client.getErr = common.ErrUnavailable
	c := newController(engine, client)

	require.NoError(t, c.Resume(context.Background()))
	assert.Equal(t, "app-1", c.Identity().ApplicationID)
	assert.Empty(t, c.Identity().ApplicationNumber)
}

func TestSnapshot_CarriesStepAndApplicationID(t *testing.T) {
	engine := &fakeEngine{}
	c := newController(engine, newFakeAppClient())

	fillKYC(c)
	_, err := c.Next(context.Background())
	require.NoError(t, err)

	snap := c.Snapshot()
	assert.Equal(t, int(StepDocuments), snap.CurrentStep)
	assert.Equal(t, "app-1", snap.ApplicationID)

	// The snapshot is a copy; editing it must not touch the controller.
	snap.FormData.Set("first_name", "Grace")
	v, _ := c.Field("first_name")
	assert.Equal(t, "Ada", v)
}

func TestNext_AfterSubmitRejected(t *testing.T) {
	engine := &fakeEngine{}
	client := newFakeAppClient()
	c := newController(engine, client)

	fillKYC(c)
	for c.CurrentStep() != StepReview {
		_, err := c.Next(context.Background())
		require.NoError(t, err)
	}
	_, err := c.Submit(context.Background(), nil)
	require.NoError(t, err)

	_, err = c.Next(context.Background())
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestNext_UpdateErrorPropagates(t *testing.T) {
	engine := &fakeEngine{}
	client := newFakeAppClient()
	c := newController(engine, client)

	fillKYC(c)
	_, err := c.Next(context.Background())
	require.NoError(t, err)

	client.updateErr = errors.New("boom")
	_, err = c.Next(context.Background())
	assert.Error(t, err)
	assert.Equal(t, StepDocuments, c.CurrentStep())
}
