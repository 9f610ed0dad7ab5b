package cache

// Key prefixes for identities parameterized by an id. Invalidation by prefix
// covers events that do not identify which parameter is affected.
const (
	PrefixUserPosts   = "userPosts/"
	PrefixSavedPosts  = "savedPosts/"
	PrefixComments    = "comments/"
	PrefixActivities  = "activities/"
	PrefixUnreadCount = "unreadActivityCount/"
	PrefixFollowStats = "followStats/"
	PrefixIsFollowing = "isFollowing/"
	PrefixIsPostSaved = "isPostSaved/"
	PrefixDiscover    = "discover/"
)

// FeedKey identifies the global home feed
func FeedKey() Key { return "feed" }

// UserPostsKey identifies one profile's posts
func UserPostsKey(userID string) Key { return Key(PrefixUserPosts + userID) }

// SavedPostsKey identifies one viewer's bookmarks
func SavedPostsKey(viewerID string) Key { return Key(PrefixSavedPosts + viewerID) }

// CommentsKey identifies one post's comment thread
func CommentsKey(postID string) Key { return Key(PrefixComments + postID) }

// ActivitiesKey identifies one viewer's activity feed
func ActivitiesKey(viewerID string) Key { return Key(PrefixActivities + viewerID) }

// UnreadActivityCountKey identifies one viewer's unread notification count
func UnreadActivityCountKey(viewerID string) Key { return Key(PrefixUnreadCount + viewerID) }

// FollowStatsKey identifies one profile's follower/following counts
func FollowStatsKey(userID string) Key { return Key(PrefixFollowStats + userID) }

// IsFollowingKey identifies whether viewer follows target
func IsFollowingKey(viewerID, targetID string) Key {
	return Key(PrefixIsFollowing + viewerID + "/" + targetID)
}

// IsPostSavedKey identifies whether viewer bookmarked the post
func IsPostSavedKey(viewerID, postID string) Key {
	return Key(PrefixIsPostSaved + viewerID + "/" + postID)
}

// DiscoverKey identifies one profile search
func DiscoverKey(query string) Key { return Key(PrefixDiscover + query) }
