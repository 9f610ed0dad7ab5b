package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"aperture-backend/pkg/errors"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var _ net.Error = timeoutError{}

func TestMapError(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.NoError(t, mapError("posts", nil))
	})

	t.Run("unique violation becomes conflict", func(t *testing.T) {
		err := mapError("likes", fmt.Errorf(`(23505) duplicate key value violates unique constraint "likes_post_id_user_id_key"`))
		assert.True(t, errors.IsConflict(err))
	})

	t.Run("foreign key violation becomes not found", func(t *testing.T) {
		err := mapError("comments", fmt.Errorf(`(23503) insert or update on table "comments" violates foreign key constraint`))
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("empty result code becomes not found", func(t *testing.T) {
		err := mapError("profiles", fmt.Errorf("(PGRST116) JSON object requested, multiple (or no) rows returned"))
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("context deadline becomes transport", func(t *testing.T) {
		err := mapError("posts", context.DeadlineExceeded)
		assert.True(t, errors.IsTransport(err))
	})

	t.Run("net errors become transport", func(t *testing.T) {
		err := mapError("posts", timeoutError{})
		assert.True(t, errors.IsTransport(err))
	})

	t.Run("url errors become transport", func(t *testing.T) {
		err := mapError("posts", &url.Error{Op: "Get", URL: "https://example.test", Err: stderrors.New("refused")})
		assert.True(t, errors.IsTransport(err))
	})

	t.Run("connection refused string becomes transport", func(t *testing.T) {
		err := mapError("posts", stderrors.New("dial tcp: connection refused"))
		assert.True(t, errors.IsTransport(err))
	})

	t.Run("anything else becomes internal", func(t *testing.T) {
		err := mapError("posts", stderrors.New("unexpected response"))
		assert.True(t, errors.IsInternal(err))
	})
}

func TestDefaultBreakerConfig(t *testing.T) {
	cfg := DefaultBreakerConfig("data-service")
	assert.Equal(t, "data-service", cfg.Name)
	assert.Equal(t, uint32(5), cfg.MaxRequests)
	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
}
