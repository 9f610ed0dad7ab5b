package aggregator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"aperture-backend/internal/cache"
	"aperture-backend/internal/domain"
	"aperture-backend/internal/store"
)

// PostComments returns a post's comment thread oldest first, each comment
// joined with its author's projection
func (a *Aggregator) PostComments(ctx context.Context, postID string) ([]domain.EnrichedComment, error) {
	return cachedRead(ctx, a, cache.CommentsKey(postID), func(ctx context.Context) ([]domain.EnrichedComment, error) {
		var comments []domain.Comment
		err := a.store.Query(ctx, domain.RelationComments, store.Query{
			Filters:   []store.Filter{store.Eq("post_id", postID)},
			OrderBy:   "created_at",
			Ascending: true,
		}, &comments)
		if err != nil {
			return nil, err
		}

		out := make([]domain.EnrichedComment, len(comments))
		var g errgroup.Group
		for i, comment := range comments {
			g.Go(func() error {
				joinCtx, cancel := a.joinContext(ctx)
				defer cancel()
				summary := a.profileSummary(joinCtx, comment.UserID)
				out[i] = domain.EnrichedComment{Comment: comment}
				if summary != nil {
					out[i].Profile = &domain.ProfileSummary{
						Username:  summary.Username,
						AvatarURL: summary.AvatarURL,
					}
				}
				return nil
			})
		}
		_ = g.Wait()
		return out, nil
	})
}
