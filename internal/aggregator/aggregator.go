// Package aggregator composes raw relation rows into the denormalized read
// models the UI renders: posts enriched with author, counts and viewer state,
// and activities enriched with actor and post projections. Results are cached
// by query identity and recomputed on invalidation.
package aggregator

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"aperture-backend/internal/cache"
	"aperture-backend/internal/config"
	"aperture-backend/internal/domain"
	"aperture-backend/internal/store"
	appErrors "aperture-backend/pkg/errors"
)

// Aggregator produces enriched read-model collections
type Aggregator struct {
	store  store.DataService
	cache  *cache.Cache
	logger *zap.Logger

	mu       sync.RWMutex
	tunables config.Tunables
}

// New creates an aggregator
func New(s store.DataService, c *cache.Cache, tunables config.Tunables, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		store:    s,
		cache:    c,
		logger:   logger,
		tunables: tunables,
	}
}

// SetTunables swaps the runtime tunables; used by config hot reload
func (a *Aggregator) SetTunables(t config.Tunables) {
	a.mu.Lock()
	a.tunables = t
	a.mu.Unlock()
}

func (a *Aggregator) snapshot() config.Tunables {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tunables
}

// joinContext bounds one item's join fan-out so a single wedged sub-query
// degrades its fields instead of stalling the whole read
func (a *Aggregator) joinContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := a.snapshot().EnrichTimeout; d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return ctx, func() {}
}

// cachedRead computes a cached read model, serving the last computed value
// when a recompute fails because the data service is unreachable. The entry
// stays stale, so the next read retries the recompute. Non-transport failures
// propagate unchanged.
func cachedRead[T any](ctx context.Context, a *Aggregator, key cache.Key, compute func(ctx context.Context) (T, error)) (T, error) {
	value, err := cache.GetTyped(ctx, a.cache, key, compute)
	if err == nil || !appErrors.IsTransport(err) {
		return value, err
	}
	previous, ok := a.cache.Peek(key)
	if !ok {
		return value, err
	}
	typed, ok := previous.(T)
	if !ok {
		return value, err
	}
	a.logger.Warn("Serving stale read model after transport failure",
		zap.String("key", string(key)),
		zap.Error(err),
	)
	return typed, nil
}

// FeedPosts returns the enriched home feed: the most recent posts across all
// profiles, newest first, capped at the feed page size.
func (a *Aggregator) FeedPosts(ctx context.Context, viewerID string) ([]domain.EnrichedPost, error) {
	return cachedRead(ctx, a, cache.FeedKey(), func(ctx context.Context) ([]domain.EnrichedPost, error) {
		var posts []domain.Post
		err := a.store.Query(ctx, domain.RelationPosts, store.Query{
			OrderBy: "created_at",
			Limit:   a.snapshot().FeedPageSize,
		}, &posts)
		if err != nil {
			return nil, err
		}
		sortPostsNewestFirst(posts)
		return a.enrichPosts(ctx, posts, viewerID), nil
	})
}

// UserPosts returns all of one profile's posts, enriched, newest first
func (a *Aggregator) UserPosts(ctx context.Context, viewerID, userID string) ([]domain.EnrichedPost, error) {
	return cachedRead(ctx, a, cache.UserPostsKey(userID), func(ctx context.Context) ([]domain.EnrichedPost, error) {
		var posts []domain.Post
		err := a.store.Query(ctx, domain.RelationPosts, store.Query{
			Filters: []store.Filter{store.Eq("user_id", userID)},
			OrderBy: "created_at",
		}, &posts)
		if err != nil {
			return nil, err
		}
		sortPostsNewestFirst(posts)
		return a.enrichPosts(ctx, posts, viewerID), nil
	})
}

// sortPostsNewestFirst orders by creation time descending, breaking ties by
// id so repeated reads with no intervening writes are stable.
func sortPostsNewestFirst(posts []domain.Post) {
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID < posts[j].ID
	})
}
