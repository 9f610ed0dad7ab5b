// Package store implements the query layer over the external data service.
// All reads and writes against the named relations go through the DataService
// interface so the aggregation and service layers never touch the wire client
// directly.
package store

import (
	"context"
	"io"
)

// FilterOp enumerates the supported filter operators
type FilterOp string

const (
	OpEq    FilterOp = "eq"
	OpNeq   FilterOp = "neq"
	OpIlike FilterOp = "ilike"
	OpIn    FilterOp = "in"
	// OpOr carries a raw PostgREST or-expression in Raw
	OpOr FilterOp = "or"
)

// Filter is one predicate on a relation column
type Filter struct {
	Column string
	Op     FilterOp
	Value  string
	Values []string // for OpIn
	Raw    string   // for OpOr
}

// Eq filters rows where column equals value
func Eq(column, value string) Filter {
	return Filter{Column: column, Op: OpEq, Value: value}
}

// Neq filters rows where column does not equal value
func Neq(column, value string) Filter {
	return Filter{Column: column, Op: OpNeq, Value: value}
}

// Ilike filters rows where column matches the pattern case-insensitively
func Ilike(column, pattern string) Filter {
	return Filter{Column: column, Op: OpIlike, Value: pattern}
}

// In filters rows where column is one of values
func In(column string, values []string) Filter {
	return Filter{Column: column, Op: OpIn, Values: values}
}

// Or filters rows matching a raw or-expression,
// e.g. "username.ilike.%jo%,full_name.ilike.%jo%"
func Or(raw string) Filter {
	return Filter{Op: OpOr, Raw: raw}
}

// Query holds the shape of a list read
type Query struct {
	Filters   []Filter
	OrderBy   string // empty means server default order
	Ascending bool
	Limit     int // 0 means unbounded
	Offset    int
}

// DataService is the contract consumed by the aggregator and the social
// service. Implementations must return typed errors from pkg/errors and
// must not retry automatically.
type DataService interface {
	// Query reads rows matching q into dest, which must be a pointer to a slice
	Query(ctx context.Context, relation string, q Query, dest any) error

	// QueryOne reads at most one row matching the filters into dest and
	// reports whether a row was found. A missing row is not an error.
	QueryOne(ctx context.Context, relation string, filters []Filter, dest any) (bool, error)

	// Insert writes a row and, when dest is non-nil, decodes the committed
	// row back into it so callers can update views optimistically
	Insert(ctx context.Context, relation string, row, dest any) error

	// Update patches rows matching the filters and, when dest is non-nil,
	// decodes the first committed row back into it
	Update(ctx context.Context, relation string, filters []Filter, patch, dest any) error

	// Delete removes rows matching the filters
	Delete(ctx context.Context, relation string, filters []Filter) error

	// Count returns the number of rows matching the filters
	Count(ctx context.Context, relation string, filters []Filter) (int64, error)

	// Upload stores a blob and returns its public URL
	Upload(ctx context.Context, bucket, key string, data io.Reader) (string, error)
}
