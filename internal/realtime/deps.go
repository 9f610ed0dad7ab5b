package realtime

import (
	"aperture-backend/internal/cache"
	"aperture-backend/internal/domain"
)

// WatchedRelations lists every relation the dependency table covers. The
// socket feed subscribes to exactly this set, so a change in any relation an
// aggregator query reads is guaranteed to reach the listener.
func WatchedRelations() []string {
	return []string{
		domain.RelationPosts,
		domain.RelationLikes,
		domain.RelationComments,
		domain.RelationFollows,
		domain.RelationSavedPosts,
		domain.RelationActivities,
	}
}

// Invalidation names the cache identities affected by one relation change:
// exact keys plus key prefixes for identities parameterized by ids the event
// does not carry.
type Invalidation struct {
	Keys     []cache.Key
	Prefixes []cache.Key
}

// DependentKeys is the static mapping from a changed relation to the cache
// identities whose computation reads it. Declared once; every aggregator
// query must be reachable from here for the relations it reads.
func DependentKeys(viewerID string, ev ChangeEvent) Invalidation {
	switch ev.Relation {
	case domain.RelationPosts:
		return Invalidation{
			Keys:     []cache.Key{cache.FeedKey()},
			Prefixes: []cache.Key{cache.PrefixUserPosts, cache.PrefixSavedPosts},
		}
	case domain.RelationLikes:
		return Invalidation{
			Keys:     []cache.Key{cache.FeedKey()},
			Prefixes: []cache.Key{cache.PrefixUserPosts, cache.PrefixSavedPosts},
		}
	case domain.RelationComments:
		return Invalidation{
			Keys:     []cache.Key{cache.FeedKey()},
			Prefixes: []cache.Key{cache.PrefixUserPosts, cache.PrefixComments},
		}
	case domain.RelationFollows:
		return Invalidation{
			Prefixes: []cache.Key{cache.PrefixFollowStats, cache.PrefixIsFollowing},
		}
	case domain.RelationSavedPosts:
		return Invalidation{
			Prefixes: []cache.Key{cache.PrefixSavedPosts, cache.PrefixIsPostSaved},
		}
	case domain.RelationActivities:
		// The activities subscription is scoped to the viewer, so only the
		// viewer's own identities depend on it.
		if viewerID == "" {
			return Invalidation{}
		}
		return Invalidation{
			Keys: []cache.Key{
				cache.ActivitiesKey(viewerID),
				cache.UnreadActivityCountKey(viewerID),
			},
		}
	}
	return Invalidation{}
}
