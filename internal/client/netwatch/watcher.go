// Package netwatch probes server reachability and publishes online/offline
// transitions to subscribers.
package netwatch

import (
	"context"
	"sync"
	"time"

	"github.com/admitflow/admitflow/internal/logging"
)

// Event is a connectivity transition.
type Event int

const (
	WentOffline Event = iota
	WentOnline
)

func (e Event) String() string {
	if e == WentOnline {
		return "online"
	}
	return "offline"
}

// Pinger is the reachability probe, usually the API client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Watcher polls the server and notifies subscribers on state transitions
// only, not on every probe.
type Watcher struct {
	pinger   Pinger
	interval time.Duration
	logger   logging.Logger

	mu     sync.Mutex
	online bool
	seeded bool
	subs   []chan Event

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewWatcher(pinger Pinger, interval time.Duration, logger logging.Logger) *Watcher {
	return &Watcher{
		pinger:   pinger,
		interval: interval,
		logger:   logger.With("component", "netwatch"),
		stop:     make(chan struct{}),
	}
}

// Subscribe returns a channel receiving transitions. A slow subscriber
// misses intermediate events rather than blocking the watcher.
func (w *Watcher) Subscribe() <-chan Event {
	ch := make(chan Event, 1)
	w.mu.Lock()
	w.subs = append(w.subs, ch)
	w.mu.Unlock()
	return ch
}

// Online reports the last observed state.
func (w *Watcher) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.online
}

func (w *Watcher) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	w.wg.Wait()
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			w.probe(ctx)
		}
	}
}

func (w *Watcher) probe(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	err := w.pinger.Ping(pingCtx)
	cancel()

	w.setOnline(ctx, err == nil)
}

func (w *Watcher) setOnline(ctx context.Context, online bool) {
	w.mu.Lock()
	changed := !w.seeded || w.online != online
	w.seeded = true
	w.online = online
	subs := w.subs
	w.mu.Unlock()

	if !changed {
		return
	}

	event := WentOffline
	if online {
		event = WentOnline
	}
	w.logger.Info(ctx, "connectivity changed", "state", event.String())

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}
