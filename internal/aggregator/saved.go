package aggregator

import (
	"context"
	"sort"

	"aperture-backend/internal/cache"
	"aperture-backend/internal/domain"
	"aperture-backend/internal/store"
)

// SavedPosts returns the viewer's bookmarked posts, enriched, ordered by when
// they were saved (not by the posts' own creation time), newest save first.
func (a *Aggregator) SavedPosts(ctx context.Context, viewerID string) ([]domain.EnrichedPost, error) {
	return cachedRead(ctx, a, cache.SavedPostsKey(viewerID), func(ctx context.Context) ([]domain.EnrichedPost, error) {
		var saved []domain.SavedPost
		err := a.store.Query(ctx, domain.RelationSavedPosts, store.Query{
			Filters: []store.Filter{store.Eq("user_id", viewerID)},
			OrderBy: "created_at",
		}, &saved)
		if err != nil {
			return nil, err
		}
		if len(saved) == 0 {
			return []domain.EnrichedPost{}, nil
		}
		sortSavedNewestFirst(saved)

		postIDs := make([]string, len(saved))
		for i, sp := range saved {
			postIDs[i] = sp.PostID
		}

		var posts []domain.Post
		err = a.store.Query(ctx, domain.RelationPosts, store.Query{
			Filters: []store.Filter{store.In("id", postIDs)},
		}, &posts)
		if err != nil {
			return nil, err
		}

		byID := make(map[string]domain.Post, len(posts))
		for _, post := range posts {
			byID[post.ID] = post
		}

		// Reassemble in save order; a bookmark whose post has been deleted
		// has no row to render and is skipped.
		ordered := make([]domain.Post, 0, len(saved))
		for _, sp := range saved {
			if post, ok := byID[sp.PostID]; ok {
				ordered = append(ordered, post)
			}
		}

		return a.enrichPosts(ctx, ordered, viewerID), nil
	})
}

// IsPostSaved reports whether the viewer has bookmarked the post
func (a *Aggregator) IsPostSaved(ctx context.Context, viewerID, postID string) (bool, error) {
	return cachedRead(ctx, a, cache.IsPostSavedKey(viewerID, postID), func(ctx context.Context) (bool, error) {
		return a.store.QueryOne(ctx, domain.RelationSavedPosts, []store.Filter{
			store.Eq("user_id", viewerID),
			store.Eq("post_id", postID),
		}, nil)
	})
}

func sortSavedNewestFirst(saved []domain.SavedPost) {
	sort.Slice(saved, func(i, j int) bool {
		if !saved[i].CreatedAt.Equal(saved[j].CreatedAt) {
			return saved[i].CreatedAt.After(saved[j].CreatedAt)
		}
		return saved[i].ID < saved[j].ID
	})
}
