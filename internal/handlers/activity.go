package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"aperture-backend/internal/aggregator"
	"aperture-backend/internal/service/social"
	"aperture-backend/internal/session"
	"aperture-backend/pkg/api"
)

// ActivityHandler serves the notification endpoints
type ActivityHandler struct {
	aggregator *aggregator.Aggregator
	social     *social.Service
	session    *session.Manager
	logger     *zap.Logger
}

// NewActivityHandler creates an activity handler
func NewActivityHandler(agg *aggregator.Aggregator, svc *social.Service, sess *session.Manager, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{
		aggregator: agg,
		social:     svc,
		session:    sess,
		logger:     logger,
	}
}

// List handles GET /api/activity
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, h.session)
	if !ok {
		return
	}

	activities, err := h.aggregator.Activities(r.Context(), viewer.ID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, activities)
}

// UnreadCount handles GET /api/activity/unread
func (h *ActivityHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, h.session)
	if !ok {
		return
	}

	count, err := h.aggregator.UnreadActivityCount(r.Context(), viewer.ID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, api.UnreadCountResponse{Count: count})
}

// MarkRead handles POST /api/activity/{activityID}/read
func (h *ActivityHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	activityID := chi.URLParam(r, "activityID")

	if err := h.social.MarkActivityRead(r.Context(), activityID); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusNoContent, nil)
}
