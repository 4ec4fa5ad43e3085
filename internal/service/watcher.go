package service

import (
	"context"

	"github.com/mmynk/teamtab/internal/metrics"
	"github.com/mmynk/teamtab/internal/notify"
)

// Watcher turns hub notifications for one team into snapshot calls.
//
// Notifications arriving while a snapshot is being produced collapse into
// one pending signal, so a burst of writes costs at most one extra read.
type Watcher struct {
	hub     *notify.Hub
	metrics *metrics.Metrics
}

// NewWatcher creates a watcher over hub. m may be nil.
func NewWatcher(hub *notify.Hub, m *metrics.Metrics) *Watcher {
	return &Watcher{hub: hub, metrics: m}
}

// Watch calls snapshot once immediately and again after every coalesced
// change of teamID, until ctx is done or snapshot fails.
func (w *Watcher) Watch(ctx context.Context, teamID string, snapshot func(context.Context) error) error {
	signal := make(chan struct{}, 1)
	unsubscribe := w.hub.Subscribe(teamID, func(notify.Event) {
		select {
		case signal <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	if w.metrics != nil {
		w.metrics.Watchers.Inc()
		defer w.metrics.Watchers.Dec()
	}

	if err := snapshot(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-signal:
			if err := snapshot(ctx); err != nil {
				return err
			}
		}
	}
}
