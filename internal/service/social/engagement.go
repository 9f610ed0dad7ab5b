package social

import (
	"context"

	"go.uber.org/zap"

	"aperture-backend/internal/cache"
	"aperture-backend/internal/domain"
	"aperture-backend/internal/store"
	appErrors "aperture-backend/pkg/errors"
)

// ToggleLike adds or removes the viewer's like on a post and returns the
// resulting state. Creating a like notifies the post owner; a duplicate
// insert racing another client counts as already liked.
func (s *Service) ToggleLike(ctx context.Context, postID, postOwnerID string) (bool, error) {
	viewer, err := s.viewer()
	if err != nil {
		return false, err
	}

	filters := []store.Filter{
		store.Eq("post_id", postID),
		store.Eq("user_id", viewer.ID),
	}
	liked, err := s.store.QueryOne(ctx, domain.RelationLikes, filters, nil)
	if err != nil {
		return false, err
	}

	if liked {
		if err := s.store.Delete(ctx, domain.RelationLikes, filters); err != nil {
			return true, err
		}
		s.invalidateLikes(postOwnerID, viewer.ID)
		return false, nil
	}

	err = s.store.Insert(ctx, domain.RelationLikes, map[string]any{
		"post_id": postID,
		"user_id": viewer.ID,
	}, nil)
	if err != nil {
		if appErrors.IsConflict(err) {
			s.invalidateLikes(postOwnerID, viewer.ID)
			return true, nil
		}
		return false, err
	}

	s.notifier.Notify(ctx, viewer.ID, postOwnerID, domain.ActivityLike, &postID, nil, nil)
	s.invalidateLikes(postOwnerID, viewer.ID)
	return true, nil
}

func (s *Service) invalidateLikes(postOwnerID, viewerID string) {
	s.cache.Invalidate(cache.FeedKey())
	s.cache.Invalidate(cache.UserPostsKey(postOwnerID))
	s.cache.Invalidate(cache.SavedPostsKey(viewerID))
}

// AddComment inserts a comment and notifies the post owner with its text
func (s *Service) AddComment(ctx context.Context, postID, postOwnerID string, input domain.NewComment) (domain.Comment, error) {
	viewer, err := s.viewer()
	if err != nil {
		return domain.Comment{}, err
	}
	if err := domain.ValidateInput(s.validate, input); err != nil {
		return domain.Comment{}, err
	}

	var comment domain.Comment
	err = s.store.Insert(ctx, domain.RelationComments, map[string]any{
		"post_id": postID,
		"user_id": viewer.ID,
		"content": input.Content,
	}, &comment)
	if err != nil {
		return domain.Comment{}, err
	}

	s.notifier.Notify(ctx, viewer.ID, postOwnerID, domain.ActivityComment, &postID, &comment.ID, &comment.Content)

	s.cache.Invalidate(cache.CommentsKey(postID))
	s.cache.Invalidate(cache.FeedKey())
	s.cache.Invalidate(cache.UserPostsKey(postOwnerID))

	s.logger.Debug("Comment added",
		zap.String("postID", postID),
		zap.String("userID", viewer.ID),
	)
	return comment, nil
}

// ToggleFollow adds or removes the viewer's follow edge to the target and
// returns the resulting state. Creating the edge notifies the target.
func (s *Service) ToggleFollow(ctx context.Context, targetID string) (bool, error) {
	viewer, err := s.viewer()
	if err != nil {
		return false, err
	}

	filters := []store.Filter{
		store.Eq("follower_id", viewer.ID),
		store.Eq("following_id", targetID),
	}
	following, err := s.store.QueryOne(ctx, domain.RelationFollows, filters, nil)
	if err != nil {
		return false, err
	}

	if following {
		if err := s.store.Delete(ctx, domain.RelationFollows, filters); err != nil {
			return true, err
		}
		s.invalidateFollows(viewer.ID, targetID)
		return false, nil
	}

	err = s.store.Insert(ctx, domain.RelationFollows, map[string]any{
		"follower_id":  viewer.ID,
		"following_id": targetID,
	}, nil)
	if err != nil {
		if appErrors.IsConflict(err) {
			s.invalidateFollows(viewer.ID, targetID)
			return true, nil
		}
		return false, err
	}

	s.notifier.Notify(ctx, viewer.ID, targetID, domain.ActivityFollow, nil, nil, nil)
	s.invalidateFollows(viewer.ID, targetID)
	return true, nil
}

func (s *Service) invalidateFollows(viewerID, targetID string) {
	s.cache.Invalidate(cache.IsFollowingKey(viewerID, targetID))
	s.cache.Invalidate(cache.FollowStatsKey(viewerID))
	s.cache.Invalidate(cache.FollowStatsKey(targetID))
}

// ToggleSave adds or removes the viewer's bookmark on a post and returns the
// resulting state. Bookmarks are private and never fan out.
func (s *Service) ToggleSave(ctx context.Context, postID string) (bool, error) {
	viewer, err := s.viewer()
	if err != nil {
		return false, err
	}

	filters := []store.Filter{
		store.Eq("user_id", viewer.ID),
		store.Eq("post_id", postID),
	}
	saved, err := s.store.QueryOne(ctx, domain.RelationSavedPosts, filters, nil)
	if err != nil {
		return false, err
	}

	if saved {
		if err := s.store.Delete(ctx, domain.RelationSavedPosts, filters); err != nil {
			return true, err
		}
		s.invalidateSaves(viewer.ID, postID)
		return false, nil
	}

	err = s.store.Insert(ctx, domain.RelationSavedPosts, map[string]any{
		"user_id": viewer.ID,
		"post_id": postID,
	}, nil)
	if err != nil {
		if appErrors.IsConflict(err) {
			s.invalidateSaves(viewer.ID, postID)
			return true, nil
		}
		return false, err
	}

	s.invalidateSaves(viewer.ID, postID)
	return true, nil
}

func (s *Service) invalidateSaves(viewerID, postID string) {
	s.cache.Invalidate(cache.SavedPostsKey(viewerID))
	s.cache.Invalidate(cache.IsPostSavedKey(viewerID, postID))
}
