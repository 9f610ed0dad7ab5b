package aggregator

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"aperture-backend/internal/cache"
	"aperture-backend/internal/domain"
	"aperture-backend/internal/store"
)

// ProfileByUsername fetches one profile by its handle
func (a *Aggregator) ProfileByUsername(ctx context.Context, username string) (*domain.Profile, error) {
	var profile domain.Profile
	found, err := a.store.QueryOne(ctx, domain.RelationProfiles, []store.Filter{
		store.Eq("username", username),
	}, &profile)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &profile, nil
}

// ProfileByUserID fetches one profile by its owner's identity
func (a *Aggregator) ProfileByUserID(ctx context.Context, userID string) (*domain.Profile, error) {
	var profile domain.Profile
	found, err := a.store.QueryOne(ctx, domain.RelationProfiles, []store.Filter{
		store.Eq("user_id", userID),
	}, &profile)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &profile, nil
}

// FollowStats returns follower and following counts for one profile.
// A failed count degrades to zero rather than failing the pair.
func (a *Aggregator) FollowStats(ctx context.Context, userID string) (domain.FollowStats, error) {
	return cachedRead(ctx, a, cache.FollowStatsKey(userID), func(ctx context.Context) (domain.FollowStats, error) {
		var stats domain.FollowStats
		var g errgroup.Group

		g.Go(func() error {
			count, err := a.store.Count(ctx, domain.RelationFollows, []store.Filter{
				store.Eq("following_id", userID),
			})
			if err != nil {
				a.logger.Debug("Follower count failed", zap.String("userID", userID), zap.Error(err))
				return nil
			}
			stats.Followers = count
			return nil
		})

		g.Go(func() error {
			count, err := a.store.Count(ctx, domain.RelationFollows, []store.Filter{
				store.Eq("follower_id", userID),
			})
			if err != nil {
				a.logger.Debug("Following count failed", zap.String("userID", userID), zap.Error(err))
				return nil
			}
			stats.Following = count
			return nil
		})

		_ = g.Wait()
		return stats, nil
	})
}

// IsFollowing reports whether the viewer follows the target profile
func (a *Aggregator) IsFollowing(ctx context.Context, viewerID, targetID string) (bool, error) {
	return cachedRead(ctx, a, cache.IsFollowingKey(viewerID, targetID), func(ctx context.Context) (bool, error) {
		return a.store.QueryOne(ctx, domain.RelationFollows, []store.Filter{
			store.Eq("follower_id", viewerID),
			store.Eq("following_id", targetID),
		}, nil)
	})
}

// SearchProfiles returns profiles other than the viewer's, optionally
// filtered by a case-insensitive match on handle or display name
func (a *Aggregator) SearchProfiles(ctx context.Context, viewerID, query string) ([]domain.Profile, error) {
	return cachedRead(ctx, a, cache.DiscoverKey(query), func(ctx context.Context) ([]domain.Profile, error) {
		filters := []store.Filter{store.Neq("user_id", viewerID)}
		if query != "" {
			pattern := "%" + query + "%"
			filters = append(filters, store.Or(
				fmt.Sprintf("username.ilike.%s,full_name.ilike.%s", pattern, pattern),
			))
		}

		var profiles []domain.Profile
		err := a.store.Query(ctx, domain.RelationProfiles, store.Query{
			Filters: filters,
			OrderBy: "created_at",
			Limit:   a.snapshot().SearchPageSize,
		}, &profiles)
		if err != nil {
			return nil, err
		}
		return profiles, nil
	})
}
