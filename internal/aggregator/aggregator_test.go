package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"aperture-backend/internal/cache"
	"aperture-backend/internal/config"
	"aperture-backend/internal/store"
	"aperture-backend/internal/store/storetest"
	appErrors "aperture-backend/pkg/errors"
	"aperture-backend/pkg/observability"
)

func newTestAggregator(fake *storetest.Fake) *Aggregator {
	c := cache.New(zap.NewNop(), observability.NewCollector("test"))
	return New(fake, c, config.Tunables{
		FeedPageSize:     50,
		ActivityPageSize: 50,
		SearchPageSize:   50,
	}, zap.NewNop())
}

func seedProfile(fake *storetest.Fake, userID, username string) {
	fake.Seed("profiles", map[string]any{
		"user_id":  userID,
		"username": username,
	})
}

func TestFeedPosts(t *testing.T) {
	t.Run("orders newest first with id tiebreak", func(t *testing.T) {
		fake := storetest.NewFake()
		seedProfile(fake, "u1", "alice")
		at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		fake.Seed("posts",
			map[string]any{"id": "p-old", "user_id": "u1", "image_url": "a.jpg", "created_at": at.Add(-time.Hour)},
			map[string]any{"id": "p-b", "user_id": "u1", "image_url": "b.jpg", "created_at": at},
			map[string]any{"id": "p-a", "user_id": "u1", "image_url": "c.jpg", "created_at": at},
		)

		agg := newTestAggregator(fake)
		posts, err := agg.FeedPosts(context.Background(), "viewer")
		require.NoError(t, err)
		require.Len(t, posts, 3)
		assert.Equal(t, "p-a", posts[0].ID)
		assert.Equal(t, "p-b", posts[1].ID)
		assert.Equal(t, "p-old", posts[2].ID)
	})

	t.Run("enriches with author, counts and like state", func(t *testing.T) {
		fake := storetest.NewFake()
		seedProfile(fake, "u1", "alice")
		fake.Seed("posts", map[string]any{"id": "p1", "user_id": "u1", "image_url": "a.jpg"})
		fake.Seed("likes",
			map[string]any{"post_id": "p1", "user_id": "viewer"},
			map[string]any{"post_id": "p1", "user_id": "u2"},
		)
		fake.Seed("comments", map[string]any{"post_id": "p1", "user_id": "u2", "content": "nice"})

		agg := newTestAggregator(fake)
		posts, err := agg.FeedPosts(context.Background(), "viewer")
		require.NoError(t, err)
		require.Len(t, posts, 1)

		post := posts[0]
		require.NotNil(t, post.Profile)
		assert.Equal(t, "alice", post.Profile.Username)
		assert.Equal(t, int64(2), post.LikesCount)
		assert.Equal(t, int64(1), post.CommentsCount)
		assert.True(t, post.IsLiked)
	})

	t.Run("keeps post when author profile is missing", func(t *testing.T) {
		fake := storetest.NewFake()
		fake.Seed("posts", map[string]any{"id": "p1", "user_id": "ghost", "image_url": "a.jpg"})

		agg := newTestAggregator(fake)
		posts, err := agg.FeedPosts(context.Background(), "viewer")
		require.NoError(t, err)
		require.Len(t, posts, 1)
		assert.Nil(t, posts[0].Profile)
	})

	t.Run("degrades counts when a join fails", func(t *testing.T) {
		fake := storetest.NewFake()
		seedProfile(fake, "u1", "alice")
		fake.Seed("posts", map[string]any{"id": "p1", "user_id": "u1", "image_url": "a.jpg"})
		fake.Seed("likes", map[string]any{"post_id": "p1", "user_id": "u2"})
		fake.SetError(storetest.OpCount, "likes", errors.New("unavailable"))

		agg := newTestAggregator(fake)
		posts, err := agg.FeedPosts(context.Background(), "viewer")
		require.NoError(t, err)
		require.Len(t, posts, 1)
		assert.Equal(t, int64(0), posts[0].LikesCount)
	})

	t.Run("empty feed", func(t *testing.T) {
		fake := storetest.NewFake()
		agg := newTestAggregator(fake)

		posts, err := agg.FeedPosts(context.Background(), "viewer")
		require.NoError(t, err)
		assert.Empty(t, posts)
	})

	t.Run("caps at the feed page size", func(t *testing.T) {
		fake := storetest.NewFake()
		seedProfile(fake, "u1", "alice")
		for i := 0; i < 5; i++ {
			fake.Seed("posts", map[string]any{"user_id": "u1", "image_url": "a.jpg"})
		}

		c := cache.New(zap.NewNop(), observability.NewCollector("test"))
		agg := New(fake, c, config.Tunables{FeedPageSize: 3, ActivityPageSize: 50, SearchPageSize: 50}, zap.NewNop())

		posts, err := agg.FeedPosts(context.Background(), "viewer")
		require.NoError(t, err)
		assert.Len(t, posts, 3)
	})
}

func TestUserPosts(t *testing.T) {
	fake := storetest.NewFake()
	seedProfile(fake, "u1", "alice")
	seedProfile(fake, "u2", "bob")
	fake.Seed("posts",
		map[string]any{"id": "p1", "user_id": "u1", "image_url": "a.jpg"},
		map[string]any{"id": "p2", "user_id": "u2", "image_url": "b.jpg"},
		map[string]any{"id": "p3", "user_id": "u1", "image_url": "c.jpg"},
	)

	agg := newTestAggregator(fake)
	posts, err := agg.UserPosts(context.Background(), "viewer", "u1")
	require.NoError(t, err)
	require.Len(t, posts, 2)
	for _, post := range posts {
		assert.Equal(t, "u1", post.UserID)
	}
}

func TestSavedPosts(t *testing.T) {
	t.Run("ordered by save time not post age", func(t *testing.T) {
		fake := storetest.NewFake()
		seedProfile(fake, "u1", "alice")
		at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		// p-new is the newer post but was saved first.
		fake.Seed("posts",
			map[string]any{"id": "p-new", "user_id": "u1", "image_url": "a.jpg", "created_at": at},
			map[string]any{"id": "p-old", "user_id": "u1", "image_url": "b.jpg", "created_at": at.Add(-time.Hour)},
		)
		fake.Seed("saved_posts",
			map[string]any{"user_id": "viewer", "post_id": "p-new", "created_at": at.Add(time.Minute)},
			map[string]any{"user_id": "viewer", "post_id": "p-old", "created_at": at.Add(2 * time.Minute)},
		)

		agg := newTestAggregator(fake)
		posts, err := agg.SavedPosts(context.Background(), "viewer")
		require.NoError(t, err)
		require.Len(t, posts, 2)
		assert.Equal(t, "p-old", posts[0].ID)
		assert.Equal(t, "p-new", posts[1].ID)
	})

	t.Run("skips bookmarks of deleted posts", func(t *testing.T) {
		fake := storetest.NewFake()
		seedProfile(fake, "u1", "alice")
		fake.Seed("posts", map[string]any{"id": "p1", "user_id": "u1", "image_url": "a.jpg"})
		fake.Seed("saved_posts",
			map[string]any{"user_id": "viewer", "post_id": "p1"},
			map[string]any{"user_id": "viewer", "post_id": "p-gone"},
		)

		agg := newTestAggregator(fake)
		posts, err := agg.SavedPosts(context.Background(), "viewer")
		require.NoError(t, err)
		require.Len(t, posts, 1)
		assert.Equal(t, "p1", posts[0].ID)
	})

	t.Run("only the viewer's bookmarks", func(t *testing.T) {
		fake := storetest.NewFake()
		seedProfile(fake, "u1", "alice")
		fake.Seed("posts", map[string]any{"id": "p1", "user_id": "u1", "image_url": "a.jpg"})
		fake.Seed("saved_posts", map[string]any{"user_id": "other", "post_id": "p1"})

		agg := newTestAggregator(fake)
		posts, err := agg.SavedPosts(context.Background(), "viewer")
		require.NoError(t, err)
		assert.Empty(t, posts)
	})
}

func TestPostComments(t *testing.T) {
	fake := storetest.NewFake()
	seedProfile(fake, "u1", "alice")
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	fake.Seed("comments",
		map[string]any{"id": "c2", "post_id": "p1", "user_id": "u1", "content": "second", "created_at": at.Add(time.Minute)},
		map[string]any{"id": "c1", "post_id": "p1", "user_id": "ghost", "content": "first", "created_at": at},
		map[string]any{"id": "c3", "post_id": "other", "user_id": "u1", "content": "elsewhere", "created_at": at},
	)

	agg := newTestAggregator(fake)
	comments, err := agg.PostComments(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, comments, 2)

	// Oldest first; a missing author degrades to a nil projection.
	assert.Equal(t, "first", comments[0].Content)
	assert.Nil(t, comments[0].Profile)
	assert.Equal(t, "second", comments[1].Content)
	require.NotNil(t, comments[1].Profile)
	assert.Equal(t, "alice", comments[1].Profile.Username)
}

func TestActivities(t *testing.T) {
	fake := storetest.NewFake()
	seedProfile(fake, "actor", "bob")
	fake.Seed("posts", map[string]any{"id": "p1", "user_id": "viewer", "image_url": "a.jpg"})
	fake.Seed("activities",
		map[string]any{"id": "a1", "user_id": "viewer", "actor_id": "actor", "type": "like", "post_id": "p1", "read": false},
		map[string]any{"id": "a2", "user_id": "viewer", "actor_id": "actor", "type": "follow", "read": true},
		map[string]any{"id": "a3", "user_id": "other", "actor_id": "actor", "type": "follow", "read": false},
	)

	agg := newTestAggregator(fake)
	activities, err := agg.Activities(context.Background(), "viewer")
	require.NoError(t, err)
	require.Len(t, activities, 2)

	for _, activity := range activities {
		assert.Equal(t, "viewer", activity.UserID)
		require.NotNil(t, activity.ActorProfile)
		assert.Equal(t, "bob", activity.ActorProfile.Username)
	}

	var withPost, withoutPost int
	for _, activity := range activities {
		if activity.PostID != nil {
			require.NotNil(t, activity.PostImageURL)
			assert.Equal(t, "a.jpg", *activity.PostImageURL)
			withPost++
		} else {
			assert.Nil(t, activity.PostImageURL)
			withoutPost++
		}
	}
	assert.Equal(t, 1, withPost)
	assert.Equal(t, 1, withoutPost)
}

func TestUnreadActivityCount(t *testing.T) {
	fake := storetest.NewFake()
	fake.Seed("activities",
		map[string]any{"user_id": "viewer", "actor_id": "a", "type": "like", "read": false},
		map[string]any{"user_id": "viewer", "actor_id": "a", "type": "follow", "read": true},
		map[string]any{"user_id": "other", "actor_id": "a", "type": "like", "read": false},
	)

	agg := newTestAggregator(fake)
	count, err := agg.UnreadActivityCount(context.Background(), "viewer")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestFollowStats(t *testing.T) {
	t.Run("counts both directions", func(t *testing.T) {
		fake := storetest.NewFake()
		fake.Seed("follows",
			map[string]any{"follower_id": "a", "following_id": "u1"},
			map[string]any{"follower_id": "b", "following_id": "u1"},
			map[string]any{"follower_id": "u1", "following_id": "c"},
		)

		agg := newTestAggregator(fake)
		stats, err := agg.FollowStats(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.Followers)
		assert.Equal(t, int64(1), stats.Following)
	})

	t.Run("degrades to zero on count failure", func(t *testing.T) {
		fake := storetest.NewFake()
		fake.Seed("follows", map[string]any{"follower_id": "a", "following_id": "u1"})
		fake.SetError(storetest.OpCount, "follows", errors.New("unavailable"))

		agg := newTestAggregator(fake)
		stats, err := agg.FollowStats(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(0), stats.Followers)
		assert.Equal(t, int64(0), stats.Following)
	})
}

func TestSearchProfiles(t *testing.T) {
	fake := storetest.NewFake()
	full := "Alice Smith"
	fake.Seed("profiles",
		map[string]any{"user_id": "viewer", "username": "me"},
		map[string]any{"user_id": "u1", "username": "alice", "full_name": full},
		map[string]any{"user_id": "u2", "username": "bob", "full_name": "Bob Jones"},
		map[string]any{"user_id": "u3", "username": "carol", "full_name": "Alicia Keys"},
	)

	agg := newTestAggregator(fake)

	t.Run("empty query lists everyone but the viewer", func(t *testing.T) {
		profiles, err := agg.SearchProfiles(context.Background(), "viewer", "")
		require.NoError(t, err)
		assert.Len(t, profiles, 3)
		for _, profile := range profiles {
			assert.NotEqual(t, "viewer", profile.UserID)
		}
	})

	t.Run("matches handle or display name case-insensitively", func(t *testing.T) {
		profiles, err := agg.SearchProfiles(context.Background(), "viewer", "ali")
		require.NoError(t, err)
		require.Len(t, profiles, 2)
		usernames := []string{profiles[0].Username, profiles[1].Username}
		assert.Contains(t, usernames, "alice")
		assert.Contains(t, usernames, "carol")
	})
}

// stalledCountStore wedges every count until its context expires
type stalledCountStore struct {
	*storetest.Fake
}

func (s *stalledCountStore) Count(ctx context.Context, relation string, filters []store.Filter) (int64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestEnrichTimeoutBoundsJoinFanout(t *testing.T) {
	fake := storetest.NewFake()
	seedProfile(fake, "u1", "alice")
	fake.Seed("posts", map[string]any{"id": "p1", "user_id": "u1", "image_url": "a.jpg"})

	c := cache.New(zap.NewNop(), observability.NewCollector("test"))
	agg := New(&stalledCountStore{Fake: fake}, c, config.Tunables{
		FeedPageSize:  50,
		EnrichTimeout: 25 * time.Millisecond,
	}, zap.NewNop())

	start := time.Now()
	posts, err := agg.FeedPosts(context.Background(), "viewer")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	// Counts degrade to zero; the remaining joins still land.
	require.Len(t, posts, 1)
	require.NotNil(t, posts[0].Profile)
	assert.Equal(t, "alice", posts[0].Profile.Username)
	assert.Zero(t, posts[0].LikesCount)
	assert.Zero(t, posts[0].CommentsCount)
}

func TestFeedPostsServesStaleOnTransportFailure(t *testing.T) {
	fake := storetest.NewFake()
	seedProfile(fake, "u1", "alice")
	fake.Seed("posts", map[string]any{"id": "p1", "user_id": "u1", "image_url": "a.jpg"})

	c := cache.New(zap.NewNop(), observability.NewCollector("test"))
	agg := New(fake, c, config.Tunables{FeedPageSize: 50, ActivityPageSize: 50}, zap.NewNop())

	posts, err := agg.FeedPosts(context.Background(), "viewer")
	require.NoError(t, err)
	require.Len(t, posts, 1)

	t.Run("transport failure falls back to the last computed feed", func(t *testing.T) {
		c.Invalidate(cache.FeedKey())
		fake.SetError(storetest.OpQuery, "posts", appErrors.NewTransport("data service unreachable", nil))

		posts, err := agg.FeedPosts(context.Background(), "viewer")
		require.NoError(t, err)
		require.Len(t, posts, 1)
		assert.Equal(t, "p1", posts[0].ID)
	})

	t.Run("recovery serves fresh rows again", func(t *testing.T) {
		fake.SetError(storetest.OpQuery, "posts", nil)
		fake.Seed("posts", map[string]any{"id": "p2", "user_id": "u1", "image_url": "b.jpg"})

		posts, err := agg.FeedPosts(context.Background(), "viewer")
		require.NoError(t, err)
		assert.Len(t, posts, 2)
	})

	t.Run("non-transport failure still propagates", func(t *testing.T) {
		c.Invalidate(cache.FeedKey())
		fake.SetError(storetest.OpQuery, "posts", appErrors.NewInternal("bad rows", nil))

		_, err := agg.FeedPosts(context.Background(), "viewer")
		require.Error(t, err)
		assert.True(t, appErrors.IsInternal(err))
	})

	t.Run("transport failure with no previous value surfaces the error", func(t *testing.T) {
		fake.SetError(storetest.OpQuery, "activities", appErrors.NewTransport("data service unreachable", nil))

		_, err := agg.Activities(context.Background(), "viewer")
		require.Error(t, err)
		assert.True(t, appErrors.IsTransport(err))
	})
}
