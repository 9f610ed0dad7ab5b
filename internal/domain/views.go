package domain

// ProfileSummary is the projection of a profile joined into read models
type ProfileSummary struct {
	Username  string  `json:"username"`
	AvatarURL *string `json:"avatar_url"`
	FullName  *string `json:"full_name"`
}

// EnrichedPost is a post joined with its author, live counts and the
// viewer's own like state. Profile is nil when the join found nothing;
// the post itself is never dropped for a missing join.
type EnrichedPost struct {
	Post
	Profile       *ProfileSummary `json:"profile"`
	LikesCount    int64           `json:"likes_count"`
	CommentsCount int64           `json:"comments_count"`
	IsLiked       bool            `json:"is_liked"`
}

// EnrichedComment is a comment joined with its author's projection
type EnrichedComment struct {
	Comment
	Profile *ProfileSummary `json:"profile"`
}

// EnrichedActivity is an activity joined with the actor's projection and,
// when the activity references a post, that post's image
type EnrichedActivity struct {
	Activity
	ActorProfile *ProfileSummary `json:"actor_profile"`
	PostImageURL *string         `json:"post_image_url"`
}

// FollowStats holds follower and following counts for one profile
type FollowStats struct {
	Followers int64 `json:"followers"`
	Following int64 `json:"following"`
}
