package store

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"

	"aperture-backend/pkg/errors"
	"aperture-backend/pkg/observability"
)

// Supabase implements DataService on top of the Supabase client:
// PostgREST for relation CRUD and the storage API for blobs.
type Supabase struct {
	client  *supabase.Client
	logger  *zap.Logger
	metrics *observability.Collector
}

// NewSupabase creates the data service implementation
func NewSupabase(client *supabase.Client, logger *zap.Logger, metrics *observability.Collector) *Supabase {
	return &Supabase{
		client:  client,
		logger:  logger,
		metrics: metrics,
	}
}

// Query reads rows matching q into dest
func (s *Supabase) Query(ctx context.Context, relation string, q Query, dest any) error {
	start := time.Now()
	err := s.query(ctx, relation, q, dest)
	s.metrics.ObserveQuery("query", relation, start, err)
	return err
}

func (s *Supabase) query(ctx context.Context, relation string, q Query, dest any) error {
	if err := ctx.Err(); err != nil {
		return errors.NewTransport("query cancelled", err)
	}

	fb := s.client.From(relation).Select("*", "", false)
	fb = applyFilters(fb, q.Filters)
	if q.OrderBy != "" {
		fb = fb.Order(q.OrderBy, &postgrest.OrderOpts{Ascending: q.Ascending})
	}
	if q.Limit > 0 {
		fb = fb.Limit(q.Limit, "")
	}
	if q.Offset > 0 {
		fb = fb.Range(q.Offset, q.Offset+q.Limit-1, "")
	}

	data, _, err := fb.Execute()
	if err != nil {
		return mapError(relation, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return errors.NewInternal("failed to decode rows", err)
	}
	return nil
}

// QueryOne reads at most one row matching the filters into dest
func (s *Supabase) QueryOne(ctx context.Context, relation string, filters []Filter, dest any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, errors.NewTransport("query cancelled", err)
	}

	start := time.Now()
	fb := applyFilters(s.client.From(relation).Select("*", "", false), filters).Limit(1, "")
	data, _, err := fb.Execute()
	s.metrics.ObserveQuery("queryOne", relation, start, err)
	if err != nil {
		return false, mapError(relation, err)
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return false, errors.NewInternal("failed to decode rows", err)
	}
	if len(rows) == 0 {
		return false, nil
	}
	if dest != nil {
		if err := json.Unmarshal(rows[0], dest); err != nil {
			return false, errors.NewInternal("failed to decode row", err)
		}
	}
	return true, nil
}

// Insert writes a row and decodes the committed row into dest when non-nil
func (s *Supabase) Insert(ctx context.Context, relation string, row, dest any) error {
	if err := ctx.Err(); err != nil {
		return errors.NewTransport("insert cancelled", err)
	}

	start := time.Now()
	data, _, err := s.client.From(relation).Insert(row, false, "", "representation", "").Execute()
	s.metrics.ObserveQuery("insert", relation, start, err)
	if err != nil {
		return mapError(relation, err)
	}
	return decodeFirst(data, dest)
}

// Update patches rows matching the filters
func (s *Supabase) Update(ctx context.Context, relation string, filters []Filter, patch, dest any) error {
	if err := ctx.Err(); err != nil {
		return errors.NewTransport("update cancelled", err)
	}

	start := time.Now()
	fb := applyFilters(s.client.From(relation).Update(patch, "representation", ""), filters)
	data, _, err := fb.Execute()
	s.metrics.ObserveQuery("update", relation, start, err)
	if err != nil {
		return mapError(relation, err)
	}
	return decodeFirst(data, dest)
}

// Delete removes rows matching the filters
func (s *Supabase) Delete(ctx context.Context, relation string, filters []Filter) error {
	if err := ctx.Err(); err != nil {
		return errors.NewTransport("delete cancelled", err)
	}

	start := time.Now()
	fb := applyFilters(s.client.From(relation).Delete("", ""), filters)
	_, _, err := fb.Execute()
	s.metrics.ObserveQuery("delete", relation, start, err)
	if err != nil {
		return mapError(relation, err)
	}
	return nil
}

// Count returns the number of rows matching the filters
func (s *Supabase) Count(ctx context.Context, relation string, filters []Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, errors.NewTransport("count cancelled", err)
	}

	start := time.Now()
	fb := applyFilters(s.client.From(relation).Select("id", "exact", true), filters)
	_, count, err := fb.Execute()
	s.metrics.ObserveQuery("count", relation, start, err)
	if err != nil {
		return 0, mapError(relation, err)
	}
	return count, nil
}

// Upload stores a blob in the given bucket and returns its public URL
func (s *Supabase) Upload(ctx context.Context, bucket, key string, data io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.NewTransport("upload cancelled", err)
	}

	start := time.Now()
	_, err := s.client.Storage.UploadFile(bucket, key, data)
	s.metrics.ObserveQuery("upload", bucket, start, err)
	if err != nil {
		return "", errors.NewTransport("blob upload failed", err)
	}

	resp := s.client.Storage.GetPublicUrl(bucket, key)
	s.logger.Debug("Blob uploaded",
		zap.String("bucket", bucket),
		zap.String("key", key),
	)
	return resp.SignedURL, nil
}

// applyFilters translates typed filters onto the PostgREST builder
func applyFilters(fb *postgrest.FilterBuilder, filters []Filter) *postgrest.FilterBuilder {
	for _, f := range filters {
		switch f.Op {
		case OpEq:
			fb = fb.Eq(f.Column, f.Value)
		case OpNeq:
			fb = fb.Neq(f.Column, f.Value)
		case OpIlike:
			fb = fb.Ilike(f.Column, f.Value)
		case OpIn:
			fb = fb.In(f.Column, f.Values)
		case OpOr:
			fb = fb.Or(f.Raw, "")
		}
	}
	return fb
}

// decodeFirst unwraps PostgREST's returned representation array
func decodeFirst(data []byte, dest any) error {
	if dest == nil {
		return nil
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return errors.NewInternal("failed to decode committed row", err)
	}
	if len(rows) == 0 {
		return errors.NewNotFound("write returned no row")
	}
	if err := json.Unmarshal(rows[0], dest); err != nil {
		return errors.NewInternal("failed to decode committed row", err)
	}
	return nil
}
