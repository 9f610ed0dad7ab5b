package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"aperture-backend/pkg/errors"
)

type scriptedStore struct {
	DataService
	err error
}

func (s *scriptedStore) Query(ctx context.Context, relation string, q Query, dest any) error {
	return s.err
}

func testBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "test",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 0.5,
		MinRequests:      3,
	}
}

func TestBreakerStore(t *testing.T) {
	t.Run("passes successful calls through", func(t *testing.T) {
		b := NewBreakerStore(&scriptedStore{}, testBreakerConfig(), zap.NewNop())
		assert.NoError(t, b.Query(context.Background(), "posts", Query{}, nil))
	})

	t.Run("opens after repeated transport failures", func(t *testing.T) {
		inner := &scriptedStore{err: errors.NewTransport("down", nil)}
		b := NewBreakerStore(inner, testBreakerConfig(), zap.NewNop())

		for i := 0; i < 3; i++ {
			err := b.Query(context.Background(), "posts", Query{}, nil)
			require.Error(t, err)
		}

		// The breaker is open now; the inner store is no longer reached.
		inner.err = nil
		err := b.Query(context.Background(), "posts", Query{}, nil)
		require.Error(t, err)
		assert.True(t, errors.IsTransport(err))
	})

	t.Run("business outcomes never trip the breaker", func(t *testing.T) {
		inner := &scriptedStore{err: errors.NewConflict("duplicate")}
		b := NewBreakerStore(inner, testBreakerConfig(), zap.NewNop())

		for i := 0; i < 10; i++ {
			err := b.Query(context.Background(), "posts", Query{}, nil)
			require.True(t, errors.IsConflict(err))
		}

		inner.err = nil
		assert.NoError(t, b.Query(context.Background(), "posts", Query{}, nil))
	})
}
