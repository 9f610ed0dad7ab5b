package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"aperture-backend/internal/aggregator"
	"aperture-backend/internal/domain"
	"aperture-backend/internal/service/social"
	"aperture-backend/internal/session"
	"aperture-backend/pkg/api"
)

// ProfileHandler serves profile reads, profile updates and discovery
type ProfileHandler struct {
	aggregator *aggregator.Aggregator
	social     *social.Service
	session    *session.Manager
	logger     *zap.Logger
}

// NewProfileHandler creates a profile handler
func NewProfileHandler(agg *aggregator.Aggregator, svc *social.Service, sess *session.Manager, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{
		aggregator: agg,
		social:     svc,
		session:    sess,
		logger:     logger,
	}
}

// ByUsername handles GET /api/profiles/{username}
func (h *ProfileHandler) ByUsername(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	profile, err := h.aggregator.ProfileByUsername(r.Context(), username)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	if profile == nil {
		api.Error(w, http.StatusNotFound, "Profile not found")
		return
	}
	api.Success(w, http.StatusOK, profile)
}

// Stats handles GET /api/users/{userID}/stats
func (h *ProfileHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	stats, err := h.aggregator.FollowStats(r.Context(), userID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, stats)
}

// IsFollowing handles GET /api/users/{userID}/following
func (h *ProfileHandler) IsFollowing(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, h.session)
	if !ok {
		return
	}
	targetID := chi.URLParam(r, "userID")

	following, err := h.aggregator.IsFollowing(r.Context(), viewer.ID, targetID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, api.ToggleResponse{Active: following})
}

// Discover handles GET /api/discover?q=
func (h *ProfileHandler) Discover(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, h.session)
	if !ok {
		return
	}
	query := r.URL.Query().Get("q")

	profiles, err := h.aggregator.SearchProfiles(r.Context(), viewer.ID, query)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, profiles)
}

// Update handles PATCH /api/profile
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch domain.ProfilePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	profile, err := h.social.UpdateProfile(r.Context(), patch)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, profile)
}
