// Package autosave drives periodic and debounced draft saves through the
// sync engine.
package autosave

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/admitflow/admitflow/internal/client/models"
	"github.com/admitflow/admitflow/internal/client/syncer"
	"github.com/admitflow/admitflow/internal/logging"
)

// Saver is the slice of the sync engine the scheduler needs.
type Saver interface {
	Save(ctx context.Context, snap *models.DraftSnapshot) (syncer.Outcome, error)
	Status() syncer.Status
	MarkPending()
}

// SnapshotFunc returns the current draft state to persist. It is called at
// save time so a save always captures the latest edits.
type SnapshotFunc func() *models.DraftSnapshot

// ResultFunc observes the outcome of each save the scheduler performs.
type ResultFunc func(outcome syncer.Outcome, err error)

// Scheduler coalesces save triggers: a debounce timer restarted on every
// field change, an independent periodic ticker, and forced saves on
// connectivity restore. Saves never queue up; a trigger arriving while a
// save is in flight is dropped.
type Scheduler struct {
	saver    Saver
	snapshot SnapshotFunc
	onResult ResultFunc
	logger   logging.Logger

	debounce time.Duration
	interval time.Duration

	changes  chan struct{}
	forced   chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	inFlight atomic.Bool
}

func NewScheduler(saver Saver, snapshot SnapshotFunc, debounce, interval time.Duration, logger logging.Logger) *Scheduler {
	return &Scheduler{
		saver:    saver,
		snapshot: snapshot,
		logger:   logger.With("component", "autosave"),
		debounce: debounce,
		interval: interval,
		changes:  make(chan struct{}, 1),
		forced:   make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

// SetResultFunc registers an observer for save outcomes. Must be called
// before Start.
func (s *Scheduler) SetResultFunc(fn ResultFunc) {
	s.onResult = fn
}

// Start launches the scheduler loop. Stop (or ctx cancellation) tears it
// down; Start must not be called twice.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

// FieldChanged restarts the debounce window. Safe to call from any
// goroutine; triggers are coalesced.
func (s *Scheduler) FieldChanged() {
	s.saver.MarkPending()
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// ForceSave requests an immediate save if there are pending changes, e.g.
// when connectivity returns.
func (s *Scheduler) ForceSave() {
	if !s.saver.Status().PendingChanges {
		return
	}
	select {
	case s.forced <- struct{}{}:
	default:
	}
}

// Stop cancels both timers and waits for an in-flight save to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	debounce := time.NewTimer(s.debounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return

		case <-s.changes:
			if !debounce.Stop() {
				select {
				case <-debounce.C:
				default:
				}
			}
			debounce.Reset(s.debounce)

		case <-debounce.C:
			s.trigger(ctx)

		case <-ticker.C:
			// The periodic save is a safety net; skip when nothing changed.
			if s.saver.Status().PendingChanges {
				s.trigger(ctx)
			}

		case <-s.forced:
			s.trigger(ctx)
		}
	}
}

// trigger runs one save in the background. The CAS guard drops triggers that
// arrive while a save is still in flight.
func (s *Scheduler) trigger(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return
	}

	snap := s.snapshot()
	if snap == nil {
		s.inFlight.Store(false)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Store(false)

		outcome, err := s.saver.Save(ctx, snap)
		if err != nil {
			s.logger.Error(ctx, "autosave failed", "error", err)
		}
		if s.onResult != nil {
			s.onResult(outcome, err)
		}
	}()
}
