package aggregator

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"aperture-backend/internal/domain"
	"aperture-backend/internal/store"
)

// enrichPosts runs the per-item join fan-out concurrently across all
// candidates, preserving candidate order in the output. One item's slow or
// failed joins never affect sibling items.
func (a *Aggregator) enrichPosts(ctx context.Context, posts []domain.Post, viewerID string) []domain.EnrichedPost {
	out := make([]domain.EnrichedPost, len(posts))
	var g errgroup.Group
	for i, post := range posts {
		g.Go(func() error {
			out[i] = a.enrichPost(ctx, post, viewerID)
			return nil
		})
	}
	// Items only return nil; Wait is a join point, not an error check.
	_ = g.Wait()
	return out
}

// enrichPost joins one post with its author projection, live counts and the
// viewer's like state. Sub-queries run concurrently; a missing or failed join
// degrades its field to the zero value rather than dropping the post.
func (a *Aggregator) enrichPost(ctx context.Context, post domain.Post, viewerID string) domain.EnrichedPost {
	enriched := domain.EnrichedPost{Post: post}

	ctx, cancel := a.joinContext(ctx)
	defer cancel()

	var g errgroup.Group

	g.Go(func() error {
		enriched.Profile = a.profileSummary(ctx, post.UserID)
		return nil
	})

	g.Go(func() error {
		count, err := a.store.Count(ctx, domain.RelationLikes, []store.Filter{
			store.Eq("post_id", post.ID),
		})
		if err != nil {
			a.logger.Debug("Like count join failed", zap.String("postID", post.ID), zap.Error(err))
			return nil
		}
		enriched.LikesCount = count
		return nil
	})

	g.Go(func() error {
		count, err := a.store.Count(ctx, domain.RelationComments, []store.Filter{
			store.Eq("post_id", post.ID),
		})
		if err != nil {
			a.logger.Debug("Comment count join failed", zap.String("postID", post.ID), zap.Error(err))
			return nil
		}
		enriched.CommentsCount = count
		return nil
	})

	if viewerID != "" {
		g.Go(func() error {
			found, err := a.store.QueryOne(ctx, domain.RelationLikes, []store.Filter{
				store.Eq("post_id", post.ID),
				store.Eq("user_id", viewerID),
			}, nil)
			if err != nil {
				a.logger.Debug("Like state join failed", zap.String("postID", post.ID), zap.Error(err))
				return nil
			}
			enriched.IsLiked = found
			return nil
		})
	}

	_ = g.Wait()
	return enriched
}

// profileSummary fetches the projection of one profile, returning nil when
// the profile is absent or the read fails
func (a *Aggregator) profileSummary(ctx context.Context, userID string) *domain.ProfileSummary {
	var profile domain.Profile
	found, err := a.store.QueryOne(ctx, domain.RelationProfiles, []store.Filter{
		store.Eq("user_id", userID),
	}, &profile)
	if err != nil {
		a.logger.Debug("Profile join failed", zap.String("userID", userID), zap.Error(err))
		return nil
	}
	if !found {
		return nil
	}
	return &domain.ProfileSummary{
		Username:  profile.Username,
		AvatarURL: profile.AvatarURL,
		FullName:  profile.FullName,
	}
}
