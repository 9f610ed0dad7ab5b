package realtime

import (
	"context"

	"go.uber.org/zap"

	"aperture-backend/internal/cache"
	"aperture-backend/pkg/observability"
)

// ViewerFunc reports the current viewer identity, if any
type ViewerFunc func() (string, bool)

// Listener consumes the change feed and invalidates dependent cache keys.
// It never patches cached values from event payloads; invalidation forces a
// re-read of current state, which makes stale or duplicate events harmless.
type Listener struct {
	feed    Feed
	cache   *cache.Cache
	viewer  ViewerFunc
	logger  *zap.Logger
	metrics *observability.Collector
}

// NewListener creates a change listener
func NewListener(feed Feed, c *cache.Cache, viewer ViewerFunc, logger *zap.Logger, metrics *observability.Collector) *Listener {
	return &Listener{
		feed:    feed,
		cache:   c,
		viewer:  viewer,
		logger:  logger,
		metrics: metrics,
	}
}

// Run pumps the feed until the context is cancelled. The feed's own Run is
// expected to be started by the caller.
func (l *Listener) Run(ctx context.Context) error {
	events := l.feed.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			l.Handle(ev)
		}
	}
}

// Handle applies one change event to the cache
func (l *Listener) Handle(ev ChangeEvent) {
	if ev.Type == EventReconnect {
		// Connection gap: events may have been missed, so nothing cached
		// can be trusted until re-read.
		l.metrics.RealtimeReconnects.Inc()
		l.cache.MarkAllStale()
		return
	}

	l.metrics.RealtimeEvents.WithLabelValues(ev.Relation).Inc()

	viewerID, _ := l.viewer()
	inv := DependentKeys(viewerID, ev)

	l.logger.Debug("Change event received",
		zap.String("relation", ev.Relation),
		zap.String("type", string(ev.Type)),
		zap.Int("keys", len(inv.Keys)),
		zap.Int("prefixes", len(inv.Prefixes)),
	)

	if len(inv.Keys) > 0 {
		l.cache.Invalidate(inv.Keys...)
	}
	for _, prefix := range inv.Prefixes {
		l.cache.InvalidatePrefix(prefix)
	}
}
