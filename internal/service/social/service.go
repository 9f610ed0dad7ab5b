// Package social implements the write side: posts, likes, comments, follows,
// bookmarks and profile edits, with activity fan-out after qualifying writes.
package social

import (
	"context"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"aperture-backend/internal/cache"
	"aperture-backend/internal/domain"
	"aperture-backend/internal/session"
	"aperture-backend/internal/store"
	appErrors "aperture-backend/pkg/errors"
	"aperture-backend/pkg/observability"
)

// Service performs writes on behalf of the signed-in viewer. Every write
// invalidates the read-model keys it affects; the realtime listener covers
// writes made by other clients.
type Service struct {
	store    store.DataService
	cache    *cache.Cache
	session  *session.Manager
	notifier *Notifier
	validate *validator.Validate
	logger   *zap.Logger
	bucket   string
}

// NewService creates the write service
func NewService(s store.DataService, c *cache.Cache, sess *session.Manager, logger *zap.Logger, metrics *observability.Collector, bucket string) *Service {
	return &Service{
		store:    s,
		cache:    c,
		session:  sess,
		notifier: NewNotifier(s, logger, metrics),
		validate: domain.NewValidator(),
		logger:   logger,
		bucket:   bucket,
	}
}

func (s *Service) viewer() (session.Viewer, error) {
	viewer, ok := s.session.Current()
	if !ok {
		return session.Viewer{}, appErrors.NewNotAuthenticated("no signed-in viewer")
	}
	return viewer, nil
}

// CreatePost uploads the image and inserts the post row
func (s *Service) CreatePost(ctx context.Context, input domain.NewPost, image io.Reader) (domain.Post, error) {
	viewer, err := s.viewer()
	if err != nil {
		return domain.Post{}, err
	}
	if err := domain.ValidateInput(s.validate, input); err != nil {
		return domain.Post{}, err
	}

	key := viewer.ID + "/" + uuid.New().String() + "." + input.ImageExt
	imageURL, err := s.store.Upload(ctx, s.bucket, key, image)
	if err != nil {
		return domain.Post{}, err
	}

	row := map[string]any{
		"user_id":   viewer.ID,
		"image_url": imageURL,
	}
	if input.Caption != nil {
		row["caption"] = *input.Caption
	}
	if input.Location != nil {
		row["location"] = *input.Location
	}

	var post domain.Post
	if err := s.store.Insert(ctx, domain.RelationPosts, row, &post); err != nil {
		return domain.Post{}, err
	}

	s.cache.Invalidate(cache.FeedKey())
	s.cache.Invalidate(cache.UserPostsKey(viewer.ID))

	s.logger.Info("Post created",
		zap.String("postID", post.ID),
		zap.String("userID", viewer.ID),
	)
	return post, nil
}

// DeletePost removes the viewer's own post. The ownership filter makes
// deleting someone else's post a no-op.
func (s *Service) DeletePost(ctx context.Context, postID string) error {
	viewer, err := s.viewer()
	if err != nil {
		return err
	}

	err = s.store.Delete(ctx, domain.RelationPosts, []store.Filter{
		store.Eq("id", postID),
		store.Eq("user_id", viewer.ID),
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(cache.FeedKey())
	s.cache.Invalidate(cache.UserPostsKey(viewer.ID))
	s.cache.InvalidatePrefix(cache.PrefixSavedPosts)
	s.cache.Invalidate(cache.CommentsKey(postID))

	s.logger.Info("Post deleted",
		zap.String("postID", postID),
		zap.String("userID", viewer.ID),
	)
	return nil
}

// UpdateProfile applies a partial update to the viewer's profile
func (s *Service) UpdateProfile(ctx context.Context, patch domain.ProfilePatch) (domain.Profile, error) {
	viewer, err := s.viewer()
	if err != nil {
		return domain.Profile{}, err
	}
	if err := domain.ValidateInput(s.validate, patch); err != nil {
		return domain.Profile{}, err
	}

	var profile domain.Profile
	err = s.store.Update(ctx, domain.RelationProfiles, []store.Filter{
		store.Eq("user_id", viewer.ID),
	}, patch, &profile)
	if err != nil {
		return domain.Profile{}, err
	}

	// Profile projections appear in feed enrichment and discover results.
	s.cache.Invalidate(cache.FeedKey())
	s.cache.InvalidatePrefix(cache.PrefixDiscover)

	s.logger.Info("Profile updated", zap.String("userID", viewer.ID))
	return profile, nil
}

// MarkActivityRead flips one of the viewer's notifications to read
func (s *Service) MarkActivityRead(ctx context.Context, activityID string) error {
	viewer, err := s.viewer()
	if err != nil {
		return err
	}

	err = s.store.Update(ctx, domain.RelationActivities, []store.Filter{
		store.Eq("id", activityID),
		store.Eq("user_id", viewer.ID),
	}, map[string]any{"read": true}, nil)
	if err != nil {
		return err
	}

	s.cache.Invalidate(cache.ActivitiesKey(viewer.ID))
	s.cache.Invalidate(cache.UnreadActivityCountKey(viewer.ID))
	return nil
}
