// Package replay drains the offline queue when connectivity returns.
package replay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/admitflow/admitflow/internal/client/api"
	"github.com/admitflow/admitflow/internal/client/models"
	"github.com/admitflow/admitflow/internal/client/netwatch"
	"github.com/admitflow/admitflow/internal/client/repositories/offline"
	"github.com/admitflow/admitflow/internal/client/syncer"
	"github.com/admitflow/admitflow/internal/common"
	"github.com/admitflow/admitflow/internal/logging"
)

// DraftReplayer is the slice of the sync engine used for queued draft
// updates. Replaying through the engine keeps the server-side version check
// on the replay path.
type DraftReplayer interface {
	ReplayDraft(ctx context.Context, p *models.DraftUpdatePayload) (syncer.Outcome, error)
}

// Submitter finalizes queued application submits.
type Submitter interface {
	SubmitApplication(ctx context.Context, id string) (*api.Application, error)
}

// DropFunc is notified when an item exhausted its retry limit or carried an
// invalid payload and was discarded.
type DropFunc func(item *models.QueueItem, reason error)

// Service drains queued offline writes in enqueue order. Items failing
// common.MaxReplayAttempts times are dropped and reported, never retried
// forever.
type Service struct {
	queue     offline.Repository
	replayer  DraftReplayer
	submitter Submitter
	logger    logging.Logger
	validate  *validator.Validate

	mu     sync.Mutex
	onDrop DropFunc

	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

func NewService(queue offline.Repository, replayer DraftReplayer, submitter Submitter, logger logging.Logger) *Service {
	return &Service{
		queue:     queue,
		replayer:  replayer,
		submitter: submitter,
		logger:    logger.With("component", "replay"),
		validate:  validator.New(),
		stop:      make(chan struct{}),
	}
}

// SetDropHandler registers the discard callback.
func (s *Service) SetDropHandler(fn DropFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDrop = fn
}

// Start listens for connectivity events and drains the owner's queue on
// every offline-to-online transition.
func (s *Service) Start(ctx context.Context, events <-chan netwatch.Event, ownerID func() string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				if e != netwatch.WentOnline {
					continue
				}
				owner := ownerID()
				if owner == "" {
					continue
				}
				if err := s.Drain(ctx, owner); err != nil {
					s.logger.Error(ctx, "replay drain failed", "error", err)
				}
			}
		}
	}()
}

func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

// Drain replays the owner's queued items in enqueued_at order. It stops
// early when the server turns out to be unreachable again; remaining items
// stay queued for the next transition.
func (s *Service) Drain(ctx context.Context, ownerID string) error {
	items, err := s.queue.GetAllPending(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}
	if len(items) == 0 {
		return nil
	}

	s.logger.Info(ctx, "draining offline queue", "items", len(items))

	for _, item := range items {
		stillOffline, err := s.replayItem(ctx, item)
		if err != nil {
			s.recordFailure(ctx, item, err)
			continue
		}
		if stillOffline {
			s.logger.Info(ctx, "server unreachable again, drain paused")
			return nil
		}
	}
	return nil
}

// replayItem dispatches one item. A true return means the server was
// unreachable and the drain should pause with the item left in place.
func (s *Service) replayItem(ctx context.Context, item *models.QueueItem) (bool, error) {
	payload, err := item.DecodePayload()
	if err != nil {
		s.discard(ctx, item, err)
		return false, nil
	}
	if err := s.validate.Struct(payload); err != nil {
		s.discard(ctx, item, fmt.Errorf("invalid payload: %w", err))
		return false, nil
	}

	switch p := payload.(type) {
	case *models.DraftUpdatePayload:
		outcome, err := s.replayer.ReplayDraft(ctx, p)
		if err != nil {
			return false, err
		}
		switch outcome {
		case syncer.OutcomeSavedOffline:
			return true, nil
		case syncer.OutcomeConflict:
			// The conflict handler has already seen both versions; the
			// stale payload is spent either way.
			return false, s.remove(ctx, item)
		default:
			return false, s.remove(ctx, item)
		}

	case *models.ApplicationSubmitPayload:
		if _, err := s.submitter.SubmitApplication(ctx, p.ApplicationID); err != nil {
			if errors.Is(err, common.ErrUnavailable) {
				return true, nil
			}
			return false, err
		}
		return false, s.remove(ctx, item)

	default:
		s.discard(ctx, item, fmt.Errorf("unhandled payload type %T", p))
		return false, nil
	}
}

func (s *Service) recordFailure(ctx context.Context, item *models.QueueItem, cause error) {
	attempts, err := s.queue.IncrementAttempts(ctx, item.ID)
	if err != nil {
		s.logger.Error(ctx, "failed to record replay attempt", "error", err)
		return
	}

	if attempts >= common.MaxReplayAttempts {
		item.Attempts = attempts
		s.discard(ctx, item, fmt.Errorf("gave up after %d attempts: %w", attempts, cause))
		return
	}

	s.logger.Warn(ctx, "replay attempt failed",
		"item", item.ID, "attempts", attempts, "error", cause)
}

func (s *Service) discard(ctx context.Context, item *models.QueueItem, reason error) {
	if err := s.remove(ctx, item); err != nil {
		s.logger.Error(ctx, "failed to remove queue item", "error", err)
		return
	}

	s.logger.Warn(ctx, "queue item discarded", "item", item.ID, "reason", reason)

	s.mu.Lock()
	fn := s.onDrop
	s.mu.Unlock()
	if fn != nil {
		fn(item, reason)
	}
}

func (s *Service) remove(ctx context.Context, item *models.QueueItem) error {
	if err := s.queue.Remove(ctx, item.ID); err != nil {
		return fmt.Errorf("remove queue item: %w", err)
	}
	return nil
}
