package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"aperture-backend/internal/aggregator"
	"aperture-backend/internal/cache"
	"aperture-backend/internal/config"
	"aperture-backend/internal/domain"
	"aperture-backend/internal/service/social"
	"aperture-backend/internal/session"
	"aperture-backend/internal/store/storetest"
	"aperture-backend/pkg/observability"
)

func newTestServer(t *testing.T, fake *storetest.Fake) (http.Handler, *session.Manager) {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewCollector("test")
	c := cache.New(logger, metrics)
	agg := aggregator.New(fake, c, config.Tunables{
		FeedPageSize:     50,
		ActivityPageSize: 50,
		SearchPageSize:   50,
	}, logger)
	sess := session.NewManager(nil, fake, logger)
	sess.SetCurrent(&session.Viewer{ID: "viewer", Email: "viewer@example.com"})
	svc := social.NewService(fake, c, sess, logger, metrics, "posts")

	cfg := &config.Config{Environment: "development"}
	return NewRouter(cfg, logger, metrics, agg, svc, sess), sess
}

func doRequest(handler http.Handler, method, path string, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestFeedEndpoint(t *testing.T) {
	t.Run("returns enriched posts", func(t *testing.T) {
		fake := storetest.NewFake()
		fake.Seed("profiles", map[string]any{"user_id": "u1", "username": "alice"})
		fake.Seed("posts", map[string]any{"id": "p1", "user_id": "u1", "image_url": "a.jpg"})
		handler, _ := newTestServer(t, fake)

		rec := doRequest(handler, http.MethodGet, "/api/feed", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var posts []domain.EnrichedPost
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &posts))
		require.Len(t, posts, 1)
		assert.Equal(t, "p1", posts[0].ID)
		require.NotNil(t, posts[0].Profile)
		assert.Equal(t, "alice", posts[0].Profile.Username)
	})

	t.Run("requires authentication", func(t *testing.T) {
		fake := storetest.NewFake()
		handler, sess := newTestServer(t, fake)
		sess.SetCurrent(nil)

		rec := doRequest(handler, http.MethodGet, "/api/feed", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLikeEndpoint(t *testing.T) {
	fake := storetest.NewFake()
	handler, _ := newTestServer(t, fake)

	rec := doRequest(handler, http.MethodPost, "/api/posts/p1/like", `{"postOwnerId":"owner"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"active":true}`, rec.Body.String())
	assert.Len(t, fake.Rows("likes"), 1)

	rec = doRequest(handler, http.MethodPost, "/api/posts/p1/like", `{"postOwnerId":"owner"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"active":false}`, rec.Body.String())
	assert.Empty(t, fake.Rows("likes"))
}

func TestCommentEndpoints(t *testing.T) {
	fake := storetest.NewFake()
	handler, _ := newTestServer(t, fake)

	rec := doRequest(handler, http.MethodPost, "/api/posts/p1/comments", `{"postOwnerId":"owner","content":"hello"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(handler, http.MethodGet, "/api/posts/p1/comments", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var comments []domain.EnrichedComment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &comments))
	require.Len(t, comments, 1)
	assert.Equal(t, "hello", comments[0].Content)
}

func TestCommentValidation(t *testing.T) {
	fake := storetest.NewFake()
	handler, _ := newTestServer(t, fake)

	rec := doRequest(handler, http.MethodPost, "/api/posts/p1/comments", `{"postOwnerId":"owner","content":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfileEndpoints(t *testing.T) {
	fake := storetest.NewFake()
	fake.Seed("profiles", map[string]any{"user_id": "u1", "username": "alice"})
	handler, _ := newTestServer(t, fake)

	t.Run("found", func(t *testing.T) {
		rec := doRequest(handler, http.MethodGet, "/api/profiles/alice", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var profile domain.Profile
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
		assert.Equal(t, "u1", profile.UserID)
	})

	t.Run("missing", func(t *testing.T) {
		rec := doRequest(handler, http.MethodGet, "/api/profiles/nobody", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid patch", func(t *testing.T) {
		rec := doRequest(handler, http.MethodPatch, "/api/profile", `{"username":"Bad Handle!"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestActivityEndpoints(t *testing.T) {
	fake := storetest.NewFake()
	fake.Seed("activities",
		map[string]any{"id": "a1", "user_id": "viewer", "actor_id": "u1", "type": "like", "read": false},
		map[string]any{"id": "a2", "user_id": "viewer", "actor_id": "u1", "type": "follow", "read": false},
	)
	handler, _ := newTestServer(t, fake)

	rec := doRequest(handler, http.MethodGet, "/api/activity/unread", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":2}`, rec.Body.String())

	rec = doRequest(handler, http.MethodPost, "/api/activity/a1/read", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	// The write invalidated the count; the next read recomputes it.
	rec = doRequest(handler, http.MethodGet, "/api/activity/unread", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":1}`, rec.Body.String())
}

func TestHealthEndpoint(t *testing.T) {
	fake := storetest.NewFake()
	handler, _ := newTestServer(t, fake)

	rec := doRequest(handler, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
