package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"aperture-backend/internal/aggregator"
	"aperture-backend/internal/config"
	"aperture-backend/internal/middleware"
	"aperture-backend/internal/service/social"
	"aperture-backend/internal/session"
	"aperture-backend/pkg/api"
	"aperture-backend/pkg/observability"
)

const requestTimeout = 30 * time.Second

// NewRouter wires the full HTTP surface
func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	metrics *observability.Collector,
	agg *aggregator.Aggregator,
	svc *social.Service,
	sess *session.Manager,
) http.Handler {
	feed := NewFeedHandler(agg, svc, sess, logger)
	socialH := NewSocialHandler(svc, logger)
	profile := NewProfileHandler(agg, svc, sess, logger)
	activity := NewActivityHandler(agg, svc, sess, logger)
	auth := NewAuthHandler(sess, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger, metrics))
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.EnableMetrics {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signin", auth.SignIn)
		r.Post("/auth/signout", auth.SignOut)
		r.Get("/auth/session", auth.Session)

		r.Get("/feed", feed.Feed)
		r.Get("/saved", feed.Saved)
		r.Post("/posts", feed.CreatePost)
		r.Delete("/posts/{postID}", feed.DeletePost)
		r.Get("/posts/{postID}/comments", feed.Comments)
		r.Post("/posts/{postID}/comments", socialH.AddComment)
		r.Post("/posts/{postID}/like", socialH.ToggleLike)
		r.Post("/posts/{postID}/save", socialH.ToggleSave)
		r.Get("/posts/{postID}/saved", feed.IsSaved)

		r.Get("/profiles/{username}", profile.ByUsername)
		r.Patch("/profile", profile.Update)
		r.Get("/discover", profile.Discover)
		r.Get("/users/{userID}/posts", feed.UserPosts)
		r.Get("/users/{userID}/stats", profile.Stats)
		r.Get("/users/{userID}/following", profile.IsFollowing)
		r.Post("/users/{userID}/follow", socialH.ToggleFollow)

		r.Get("/activity", activity.List)
		r.Get("/activity/unread", activity.UnreadCount)
		r.Post("/activity/{activityID}/read", activity.MarkRead)
	})

	return r
}
