package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"aperture-backend/internal/aggregator"
	"aperture-backend/internal/domain"
	"aperture-backend/internal/service/social"
	"aperture-backend/internal/session"
	"aperture-backend/pkg/api"
)

const maxUploadBytes = 32 << 20

// FeedHandler serves the post read models and the post write endpoints
type FeedHandler struct {
	aggregator *aggregator.Aggregator
	social     *social.Service
	session    *session.Manager
	logger     *zap.Logger
}

// NewFeedHandler creates a feed handler
func NewFeedHandler(agg *aggregator.Aggregator, svc *social.Service, sess *session.Manager, logger *zap.Logger) *FeedHandler {
	return &FeedHandler{
		aggregator: agg,
		social:     svc,
		session:    sess,
		logger:     logger,
	}
}

// Feed handles GET /api/feed
func (h *FeedHandler) Feed(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, h.session)
	if !ok {
		return
	}

	posts, err := h.aggregator.FeedPosts(r.Context(), viewer.ID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, posts)
}

// UserPosts handles GET /api/users/{userID}/posts
func (h *FeedHandler) UserPosts(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, h.session)
	if !ok {
		return
	}
	userID := chi.URLParam(r, "userID")

	posts, err := h.aggregator.UserPosts(r.Context(), viewer.ID, userID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, posts)
}

// Saved handles GET /api/saved
func (h *FeedHandler) Saved(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, h.session)
	if !ok {
		return
	}

	posts, err := h.aggregator.SavedPosts(r.Context(), viewer.ID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, posts)
}

// Comments handles GET /api/posts/{postID}/comments
func (h *FeedHandler) Comments(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")

	comments, err := h.aggregator.PostComments(r.Context(), postID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, comments)
}

// IsSaved handles GET /api/posts/{postID}/saved
func (h *FeedHandler) IsSaved(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, h.session)
	if !ok {
		return
	}
	postID := chi.URLParam(r, "postID")

	saved, err := h.aggregator.IsPostSaved(r.Context(), viewer.ID, postID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, api.ToggleResponse{Active: saved})
}

// CreatePost handles POST /api/posts with a multipart body: an "image" file
// plus optional "caption" and "location" fields
func (h *FeedHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "Image file required")
		return
	}
	defer file.Close()

	input := domain.NewPost{
		ImageExt: strings.TrimPrefix(filepath.Ext(header.Filename), "."),
	}
	if caption := r.FormValue("caption"); caption != "" {
		input.Caption = &caption
	}
	if location := r.FormValue("location"); location != "" {
		input.Location = &location
	}

	post, err := h.social.CreatePost(r.Context(), input, file)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusCreated, post)
}

// DeletePost handles DELETE /api/posts/{postID}
func (h *FeedHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")

	if err := h.social.DeletePost(r.Context(), postID); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusNoContent, nil)
}
