package domain

import "time"

// Relation names as stored in the data service
const (
	RelationProfiles   = "profiles"
	RelationPosts      = "posts"
	RelationLikes      = "likes"
	RelationComments   = "comments"
	RelationFollows    = "follows"
	RelationSavedPosts = "saved_posts"
	RelationActivities = "activities"
)

// ActivityType classifies a notification
type ActivityType string

const (
	ActivityLike    ActivityType = "like"
	ActivityComment ActivityType = "comment"
	ActivityFollow  ActivityType = "follow"
)

// Profile is a user's public identity
type Profile struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"user_id"`
	Username            string    `json:"username"`
	FullName            *string   `json:"full_name"`
	Bio                 *string   `json:"bio"`
	AvatarURL           *string   `json:"avatar_url"`
	Website             *string   `json:"website"`
	OnboardingCompleted bool      `json:"onboarding_completed"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Post is a single photo post. Immutable after creation except for deletion;
// deletion cascades likes, comments and saved entries in the data service.
type Post struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ImageURL  string    `json:"image_url"`
	Caption   *string   `json:"caption"`
	Location  *string   `json:"location"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Like joins a post and a user. At most one row per (post, user) pair.
type Like struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is free text attached to a post, displayed oldest first
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Follow is a directed edge from follower to followee.
// At most one row per ordered pair.
type Follow struct {
	ID          string    `json:"id"`
	FollowerID  string    `json:"follower_id"`
	FollowingID string    `json:"following_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// SavedPost records a bookmark. At most one row per (user, post) pair.
type SavedPost struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	PostID    string    `json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Activity is a notification for a recipient, produced by an actor.
// Created by fan-out after a qualifying write; only the read flag is
// ever mutated afterwards.
type Activity struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"` // recipient
	ActorID   string       `json:"actor_id"`
	Type      ActivityType `json:"type"`
	PostID    *string      `json:"post_id"`
	CommentID *string      `json:"comment_id"`
	Content   *string      `json:"content"`
	Read      bool         `json:"read"`
	CreatedAt time.Time    `json:"created_at"`
}
