package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"aperture-backend/internal/session"
	"aperture-backend/pkg/api"
)

// AuthHandler serves the sign-in lifecycle
type AuthHandler struct {
	session *session.Manager
	logger  *zap.Logger
}

// NewAuthHandler creates an auth handler
func NewAuthHandler(sess *session.Manager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		session: sess,
		logger:  logger,
	}
}

// SignIn handles POST /api/auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req api.SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		api.Error(w, http.StatusBadRequest, "Email and password required")
		return
	}

	viewer, err := h.session.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, api.SessionResponse{
		UserID: viewer.ID,
		Email:  viewer.Email,
	})
}

// SignOut handles POST /api/auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.session.SignOut()
	api.Success(w, http.StatusNoContent, nil)
}

// Session handles GET /api/auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.session.Current()
	if !ok {
		api.Error(w, http.StatusUnauthorized, "No active session")
		return
	}
	api.Success(w, http.StatusOK, api.SessionResponse{
		UserID: viewer.ID,
		Email:  viewer.Email,
	})
}
