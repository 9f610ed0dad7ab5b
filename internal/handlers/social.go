package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"aperture-backend/internal/domain"
	"aperture-backend/internal/service/social"
	"aperture-backend/pkg/api"
)

// SocialHandler serves the engagement write endpoints
type SocialHandler struct {
	social *social.Service
	logger *zap.Logger
}

// NewSocialHandler creates a social handler
func NewSocialHandler(svc *social.Service, logger *zap.Logger) *SocialHandler {
	return &SocialHandler{
		social: svc,
		logger: logger,
	}
}

// ToggleLike handles POST /api/posts/{postID}/like
func (h *SocialHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")

	var req api.LikeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.PostOwnerID == "" {
		api.Error(w, http.StatusBadRequest, "Post owner required")
		return
	}

	liked, err := h.social.ToggleLike(r.Context(), postID, req.PostOwnerID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, api.ToggleResponse{Active: liked})
}

// AddComment handles POST /api/posts/{postID}/comments
func (h *SocialHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")

	var req api.CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.PostOwnerID == "" {
		api.Error(w, http.StatusBadRequest, "Post owner required")
		return
	}

	comment, err := h.social.AddComment(r.Context(), postID, req.PostOwnerID, domain.NewComment{
		Content: req.Content,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusCreated, comment)
}

// ToggleFollow handles POST /api/users/{userID}/follow
func (h *SocialHandler) ToggleFollow(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "userID")

	following, err := h.social.ToggleFollow(r.Context(), targetID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, api.ToggleResponse{Active: following})
}

// ToggleSave handles POST /api/posts/{postID}/save
func (h *SocialHandler) ToggleSave(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")

	saved, err := h.social.ToggleSave(r.Context(), postID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, api.ToggleResponse{Active: saved})
}
