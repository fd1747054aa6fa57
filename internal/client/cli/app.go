// Package cli implements the interactive AdmitFlow wizard REPL.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/admitflow/admitflow/internal/client/api"
	"github.com/admitflow/admitflow/internal/client/autosave"
	"github.com/admitflow/admitflow/internal/client/config"
	"github.com/admitflow/admitflow/internal/client/localdb"
	"github.com/admitflow/admitflow/internal/client/models"
	"github.com/admitflow/admitflow/internal/client/netwatch"
	"github.com/admitflow/admitflow/internal/client/replay"
	"github.com/admitflow/admitflow/internal/client/repositories/metadata"
	"github.com/admitflow/admitflow/internal/client/syncer"
	"github.com/admitflow/admitflow/internal/client/wizard"
	"github.com/admitflow/admitflow/internal/logging"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	client  *api.HTTPClient
	repos   *localdb.Repositories
	watcher *netwatch.Watcher

	mu         sync.Mutex
	engine     *syncer.Engine
	scheduler  *autosave.Scheduler
	replaySvc  *replay.Service
	controller *wizard.Controller

	reader *bufio.Reader
	out    io.Writer
}

func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	repos, err := localdb.InitDatabase(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	client := api.NewHTTPClient(c.ServerEndpointAddr, c.RequestTimeout)

	// Restore a previous session so tokens survive restarts.
	access, _ := repos.Metadata.Get(ctx, metadata.KeyAccessToken)
	refresh, _ := repos.Metadata.Get(ctx, metadata.KeyRefreshToken)
	if len(access) > 0 {
		client.SetTokens(string(access), string(refresh))
	}
	client.SetTokenListener(func(accessToken, refreshToken string) {
		_ = repos.Metadata.Set(ctx, metadata.KeyAccessToken, []byte(accessToken))
		_ = repos.Metadata.Set(ctx, metadata.KeyRefreshToken, []byte(refreshToken))
	})

	return &App{
		config:  c,
		logger:  logger,
		client:  client,
		repos:   repos,
		watcher: netwatch.NewWatcher(client, c.OnlineCheckInterval, logger),
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	defer func() { _ = a.repos.DB.Close() }()

	a.watcher.Start(ctx)
	defer a.watcher.Stop()
	defer a.teardownSession()

	fmt.Fprintln(a.out, "Welcome to AdmitFlow CLI (type 'help' for commands)")

	if a.client.UserID() != "" {
		if err := a.initSession(ctx); err != nil {
			a.logger.Warn(ctx, "could not resume session", "error", err)
		}
	}

	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.getStatus, scanner, a.out)
	return nil
}

func (a *App) isLoggedIn() bool {
	return a.client.UserID() != ""
}

func (a *App) getStatus() string {
	s := ""
	if a.isLoggedIn() {
		s = a.client.UserID()[:8] + " "
	}
	if a.watcher.Online() {
		s += "online"
	} else {
		s += "offline"
	}
	return "(" + s + ")"
}

// initSession builds the per-user sync stack: engine, wizard, autosave,
// replay. Called after login or when stored tokens are still valid.
func (a *App) initSession(ctx context.Context) error {
	a.teardownSession()

	engine := syncer.NewEngine(a.client, a.repos.Offline, a.logger)
	engine.SetConflictHandler(func(serverVersion, localVersion int64) {
		fmt.Fprintf(a.out, "\nYour draft was changed elsewhere (server version %d, local %d).\n", serverVersion, localVersion)
		fmt.Fprintln(a.out, "Type 'resume' to load the server copy; your unsaved local edits will be shown for re-entry.")
	})

	controller := wizard.NewController(engine, a.client, a.logger)

	scheduler := autosave.NewScheduler(engine, controller.Snapshot,
		a.config.DebounceInterval, a.config.AutosaveInterval, a.logger)
	scheduler.SetResultFunc(func(outcome syncer.Outcome, err error) {
		if outcome == syncer.OutcomeSavedOffline {
			fmt.Fprintln(a.out, "(saved offline, will sync when the server is back)")
		}
	})

	replaySvc := replay.NewService(a.repos.Offline, engine, a.client, a.logger)
	replaySvc.SetDropHandler(func(item *models.QueueItem, reason error) {
		fmt.Fprintf(a.out, "\nA queued %s could not be synced and was dropped: %v\n", item.Type, reason)
	})
	replaySvc.Start(ctx, a.watcher.Subscribe(), a.client.UserID)

	// A restored connection with pending edits triggers an immediate save.
	forceEvents := a.watcher.Subscribe()
	go func() {
		for e := range forceEvents {
			if e == netwatch.WentOnline {
				scheduler.ForceSave()
			}
		}
	}()

	scheduler.Start(ctx)

	a.mu.Lock()
	a.engine = engine
	a.controller = controller
	a.scheduler = scheduler
	a.replaySvc = replaySvc
	a.mu.Unlock()

	if err := controller.Resume(ctx); err != nil {
		return err
	}
	a.printPosition()
	return nil
}

func (a *App) teardownSession() {
	a.mu.Lock()
	scheduler := a.scheduler
	replaySvc := a.replaySvc
	a.scheduler = nil
	a.replaySvc = nil
	a.engine = nil
	a.controller = nil
	a.mu.Unlock()

	if scheduler != nil {
		scheduler.Stop()
	}
	if replaySvc != nil {
		replaySvc.Stop()
	}
}

func (a *App) session() (*wizard.Controller, *autosave.Scheduler, *syncer.Engine, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.controller == nil {
		return nil, nil, nil, false
	}
	return a.controller, a.scheduler, a.engine, true
}

// queueSubmit records an offline submission for replay.
func (a *App) queueSubmit(ctx context.Context, applicationID string) error {
	payload, err := json.Marshal(models.ApplicationSubmitPayload{ApplicationID: applicationID})
	if err != nil {
		return err
	}
	return a.repos.Offline.Store(ctx, &models.QueueItem{
		OwnerID: a.client.UserID(),
		Type:    models.QueueItemApplicationSubmit,
		Payload: payload,
	})
}

func (a *App) printPosition() {
	ctrl, _, _, ok := a.session()
	if !ok {
		return
	}
	fmt.Fprintf(a.out, "State: %s, step: %s\n", ctrl.State(), ctrl.CurrentStep())
	if id := ctrl.Identity(); id.ApplicationNumber != "" {
		fmt.Fprintf(a.out, "Application %s, tracking code %s\n", id.ApplicationNumber, id.TrackingCode)
	}
}
