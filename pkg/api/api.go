// Package api defines the contracts for API requests and responses.
// It decouples the API structure from the internal domain models.
package api

// SignInRequest is the expected body for a POST /api/auth/signin request.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse describes the signed-in viewer.
type SessionResponse struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// CommentRequest is the expected body for a POST /api/posts/{postId}/comments request.
type CommentRequest struct {
	PostOwnerID string `json:"postOwnerId"`
	Content     string `json:"content"`
}

// LikeRequest is the expected body for a POST /api/posts/{postId}/like request.
type LikeRequest struct {
	PostOwnerID string `json:"postOwnerId"`
}

// ToggleResponse reports the state after a like, follow or save toggle.
type ToggleResponse struct {
	Active bool `json:"active"`
}

// UnreadCountResponse carries the unread notification count.
type UnreadCountResponse struct {
	Count int64 `json:"count"`
}
