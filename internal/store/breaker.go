package store

import (
	"context"
	"io"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"aperture-backend/pkg/errors"
)

// BreakerConfig holds configuration for the data service circuit breaker
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns a default configuration for the circuit breaker
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// BreakerStore decorates a DataService with a circuit breaker so a flapping
// data service fails fast instead of piling up blocked calls. Business
// outcomes (conflicts, missing rows, validation) do not count as failures.
type BreakerStore struct {
	inner  DataService
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// NewBreakerStore wraps a DataService with a circuit breaker
func NewBreakerStore(inner DataService, config BreakerConfig, logger *zap.Logger) *BreakerStore {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return errors.IsConflict(err) || errors.IsNotFound(err) || errors.IsValidation(err)
		},
	})

	return &BreakerStore{inner: inner, cb: cb, logger: logger}
}

func (b *BreakerStore) execute(fn func() error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	switch err {
	case gobreaker.ErrOpenState, gobreaker.ErrTooManyRequests:
		return errors.NewTransport("data service circuit open", err)
	}
	return err
}

// Query reads rows matching q into dest
func (b *BreakerStore) Query(ctx context.Context, relation string, q Query, dest any) error {
	return b.execute(func() error {
		return b.inner.Query(ctx, relation, q, dest)
	})
}

// QueryOne reads at most one row matching the filters into dest
func (b *BreakerStore) QueryOne(ctx context.Context, relation string, filters []Filter, dest any) (bool, error) {
	var found bool
	err := b.execute(func() error {
		var innerErr error
		found, innerErr = b.inner.QueryOne(ctx, relation, filters, dest)
		return innerErr
	})
	return found, err
}

// Insert writes a row
func (b *BreakerStore) Insert(ctx context.Context, relation string, row, dest any) error {
	return b.execute(func() error {
		return b.inner.Insert(ctx, relation, row, dest)
	})
}

// Update patches rows matching the filters
func (b *BreakerStore) Update(ctx context.Context, relation string, filters []Filter, patch, dest any) error {
	return b.execute(func() error {
		return b.inner.Update(ctx, relation, filters, patch, dest)
	})
}

// Delete removes rows matching the filters
func (b *BreakerStore) Delete(ctx context.Context, relation string, filters []Filter) error {
	return b.execute(func() error {
		return b.inner.Delete(ctx, relation, filters)
	})
}

// Count returns the number of rows matching the filters
func (b *BreakerStore) Count(ctx context.Context, relation string, filters []Filter) (int64, error) {
	var count int64
	err := b.execute(func() error {
		var innerErr error
		count, innerErr = b.inner.Count(ctx, relation, filters)
		return innerErr
	})
	return count, err
}

// Upload stores a blob and returns its public URL
func (b *BreakerStore) Upload(ctx context.Context, bucket, key string, data io.Reader) (string, error) {
	var publicURL string
	err := b.execute(func() error {
		var innerErr error
		publicURL, innerErr = b.inner.Upload(ctx, bucket, key, data)
		return innerErr
	})
	return publicURL, err
}
