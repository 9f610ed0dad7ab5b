// Package cache implements the process-wide read-model cache: a mapping from
// query identity to its last computed result plus a staleness flag. A key maps
// to either a settled value or a pending computation, so coalescing of
// concurrent invalidations is a structural guarantee rather than an accident
// of scheduling.
package cache

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"aperture-backend/pkg/errors"
	"aperture-backend/pkg/observability"
)

// Key identifies one cached query: a name plus its parameter tuple
type Key string

// ComputeFunc produces a fresh value for a key
type ComputeFunc func(ctx context.Context) (any, error)

// flight represents one in-progress recomputation. Concurrent readers of the
// same key wait on done and share the result.
type flight struct {
	done  chan struct{}
	value any
	err   error
}

type entry struct {
	value  any
	valid  bool // a value has been computed at least once
	stale  bool // value must be recomputed before being trusted
	dirty  bool // an invalidation arrived while a recomputation was running
	flight *flight
}

// Cache is the process-wide keyed result store
type Cache struct {
	mu      sync.Mutex
	entries map[Key]*entry
	subs    map[Key]map[chan Key]struct{}
	logger  *zap.Logger
	metrics *observability.Collector
}

// New creates an empty cache
func New(logger *zap.Logger, metrics *observability.Collector) *Cache {
	return &Cache{
		entries: make(map[Key]*entry),
		subs:    make(map[Key]map[chan Key]struct{}),
		logger:  logger,
		metrics: metrics,
	}
}

// Get returns the cached value for key, recomputing it with compute when the
// entry is absent or stale. At most one recomputation per key runs at a time;
// invalidations arriving mid-flight coalesce into a single follow-up run.
// On compute failure the previous value is kept (stale) and the error is
// returned, so callers can fall back to last-known-good data elsewhere.
func (c *Cache) Get(ctx context.Context, key Key, compute ComputeFunc) (any, error) {
	for {
		c.mu.Lock()
		e := c.ensure(key)

		// Someone else is already recomputing: share their result.
		if f := e.flight; f != nil {
			c.mu.Unlock()
			select {
			case <-ctx.Done():
				return nil, errors.NewTransport("cache read cancelled", ctx.Err())
			case <-f.done:
			}
			if f.err != nil {
				return nil, f.err
			}
			return f.value, nil
		}

		if e.valid && !e.stale {
			value := e.value
			c.mu.Unlock()
			c.metrics.CacheHits.Inc()
			return value, nil
		}

		// Become the leader for this recomputation.
		f := &flight{done: make(chan struct{})}
		e.flight = f
		e.dirty = false
		wasValid := e.valid
		c.mu.Unlock()

		if wasValid {
			c.metrics.CacheRecomputes.Inc()
		} else {
			c.metrics.CacheMisses.Inc()
		}

		value, err := compute(ctx)

		c.mu.Lock()
		rerun := false
		if err != nil {
			// Keep the previous value so consumers can show last-known-good
			// data; the entry stays stale and retries on the next read.
			e.stale = true
		} else {
			e.value = value
			e.valid = true
			if e.dirty {
				e.stale = true
				rerun = true
			} else {
				e.stale = false
			}
		}
		e.dirty = false
		e.flight = nil
		f.value = value
		f.err = err
		close(f.done)
		c.mu.Unlock()

		if err != nil {
			return nil, err
		}
		if !rerun {
			return value, nil
		}
		// One coalesced follow-up run; loop and recompute.
	}
}

// Peek returns the last computed value for key, if any, regardless of
// staleness. Used to keep showing last-known-good data on transport failure.
func (c *Cache) Peek(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !e.valid {
		return nil, false
	}
	return e.value, true
}

// Invalidate marks the given keys stale and notifies their subscribers.
// A key whose recomputation is in flight is flagged dirty instead, which the
// leader turns into exactly one follow-up recomputation.
func (c *Cache) Invalidate(keys ...Key) {
	var notify []Key
	c.mu.Lock()
	for _, key := range keys {
		e, ok := c.entries[key]
		if ok {
			if e.flight != nil {
				if !e.dirty {
					e.dirty = true
				}
				c.metrics.CacheCoalesced.Inc()
			} else {
				e.stale = true
			}
		}
		if len(c.subs[key]) > 0 {
			notify = append(notify, key)
		}
	}
	channels := c.collectSubscribers(notify)
	c.mu.Unlock()

	for key, chans := range channels {
		for _, ch := range chans {
			select {
			case ch <- key:
			default:
				// Subscriber is behind; it will re-read on its next turn.
			}
		}
	}
}

// InvalidatePrefix marks every key sharing the prefix stale. Used for keys
// parameterized by an identifier the event does not carry, e.g. userPosts/*.
func (c *Cache) InvalidatePrefix(prefix Key) {
	var keys []Key
	c.mu.Lock()
	for key := range c.entries {
		if strings.HasPrefix(string(key), string(prefix)) {
			keys = append(keys, key)
		}
	}
	for key := range c.subs {
		if strings.HasPrefix(string(key), string(prefix)) {
			keys = append(keys, key)
		}
	}
	c.mu.Unlock()

	c.Invalidate(dedupe(keys)...)
}

// MarkAllStale flags every entry stale and notifies all subscribers.
// Called after a change feed connection gap, when no cached value can be
// trusted until it is re-read.
func (c *Cache) MarkAllStale() {
	var keys []Key
	c.mu.Lock()
	for key := range c.entries {
		keys = append(keys, key)
	}
	for key := range c.subs {
		keys = append(keys, key)
	}
	c.mu.Unlock()

	c.logger.Info("Marking all cache entries stale", zap.Int("keys", len(keys)))
	c.Invalidate(dedupe(keys)...)
}

// Subscribe registers interest in invalidations of key. The returned channel
// receives the key after each invalidation; the cancel function unregisters.
func (c *Cache) Subscribe(key Key) (<-chan Key, func()) {
	ch := make(chan Key, 1)
	c.mu.Lock()
	if c.subs[key] == nil {
		c.subs[key] = make(map[chan Key]struct{})
	}
	c.subs[key][ch] = struct{}{}
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		if set, ok := c.subs[key]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(c.subs, key)
			}
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

func (c *Cache) ensure(key Key) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{stale: true}
		c.entries[key] = e
	}
	return e
}

func (c *Cache) collectSubscribers(keys []Key) map[Key][]chan Key {
	out := make(map[Key][]chan Key, len(keys))
	for _, key := range keys {
		for ch := range c.subs[key] {
			out[key] = append(out[key], ch)
		}
	}
	return out
}

func dedupe(keys []Key) []Key {
	seen := make(map[Key]struct{}, len(keys))
	out := keys[:0]
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

// GetTyped is a typed wrapper over Cache.Get
func GetTyped[T any](ctx context.Context, c *Cache, key Key, compute func(ctx context.Context) (T, error)) (T, error) {
	value, err := c.Get(ctx, key, func(ctx context.Context) (any, error) {
		return compute(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		var zero T
		return zero, errors.NewInternal("cached value has unexpected type", nil)
	}
	return typed, nil
}
