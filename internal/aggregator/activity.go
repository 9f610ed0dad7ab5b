package aggregator

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"aperture-backend/internal/cache"
	"aperture-backend/internal/domain"
	"aperture-backend/internal/store"
)

// Activities returns the viewer's most recent notifications, newest first,
// each joined with the actor's projection and the referenced post's image.
func (a *Aggregator) Activities(ctx context.Context, viewerID string) ([]domain.EnrichedActivity, error) {
	return cachedRead(ctx, a, cache.ActivitiesKey(viewerID), func(ctx context.Context) ([]domain.EnrichedActivity, error) {
		var activities []domain.Activity
		err := a.store.Query(ctx, domain.RelationActivities, store.Query{
			Filters: []store.Filter{store.Eq("user_id", viewerID)},
			OrderBy: "created_at",
			Limit:   a.snapshot().ActivityPageSize,
		}, &activities)
		if err != nil {
			return nil, err
		}

		out := make([]domain.EnrichedActivity, len(activities))
		var g errgroup.Group
		for i, activity := range activities {
			g.Go(func() error {
				out[i] = a.enrichActivity(ctx, activity)
				return nil
			})
		}
		_ = g.Wait()
		return out, nil
	})
}

// enrichActivity joins one activity with the actor projection and, when a
// post is referenced, that post's image. Failed joins degrade to nil fields.
func (a *Aggregator) enrichActivity(ctx context.Context, activity domain.Activity) domain.EnrichedActivity {
	enriched := domain.EnrichedActivity{Activity: activity}

	ctx, cancel := a.joinContext(ctx)
	defer cancel()

	var g errgroup.Group

	g.Go(func() error {
		summary := a.profileSummary(ctx, activity.ActorID)
		if summary != nil {
			enriched.ActorProfile = &domain.ProfileSummary{
				Username:  summary.Username,
				AvatarURL: summary.AvatarURL,
			}
		}
		return nil
	})

	if activity.PostID != nil {
		g.Go(func() error {
			var post domain.Post
			found, err := a.store.QueryOne(ctx, domain.RelationPosts, []store.Filter{
				store.Eq("id", *activity.PostID),
			}, &post)
			if err != nil {
				a.logger.Debug("Activity post join failed",
					zap.String("activityID", activity.ID),
					zap.Error(err),
				)
				return nil
			}
			if found {
				enriched.PostImageURL = &post.ImageURL
			}
			return nil
		})
	}

	_ = g.Wait()
	return enriched
}

// UnreadActivityCount returns the number of unread notifications for the viewer
func (a *Aggregator) UnreadActivityCount(ctx context.Context, viewerID string) (int64, error) {
	return cachedRead(ctx, a, cache.UnreadActivityCountKey(viewerID), func(ctx context.Context) (int64, error) {
		return a.store.Count(ctx, domain.RelationActivities, []store.Filter{
			store.Eq("user_id", viewerID),
			store.Eq("read", "false"),
		})
	})
}
