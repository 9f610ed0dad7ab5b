// Package handlers provides common functionality for HTTP handlers.
package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"aperture-backend/internal/session"
	"aperture-backend/pkg/api"
	appErrors "aperture-backend/pkg/errors"
)

// requireViewer extracts the signed-in viewer or writes a 401
func requireViewer(w http.ResponseWriter, sess *session.Manager) (session.Viewer, bool) {
	viewer, ok := sess.Current()
	if !ok {
		api.Error(w, http.StatusUnauthorized, "Authentication required")
		return session.Viewer{}, false
	}
	return viewer, true
}

// handleServiceError converts service errors to appropriate HTTP responses
func handleServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case appErrors.IsValidation(err):
		api.Error(w, http.StatusBadRequest, err.Error())
	case appErrors.IsNotAuthenticated(err):
		api.Error(w, http.StatusUnauthorized, "Authentication required")
	case appErrors.IsNotFound(err):
		api.Error(w, http.StatusNotFound, err.Error())
	case appErrors.IsConflict(err):
		api.Error(w, http.StatusConflict, err.Error())
	case appErrors.IsTransport(err):
		logger.Warn("Data service unavailable", zap.Error(err))
		api.Error(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
	default:
		logger.Error("Internal error", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, "An internal error occurred")
	}
}
