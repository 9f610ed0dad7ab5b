// Package storetest provides an in-memory DataService for tests.
package storetest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"aperture-backend/internal/store"
	appErrors "aperture-backend/pkg/errors"
)

// Operation names accepted by SetError
const (
	OpQuery    = "query"
	OpQueryOne = "queryOne"
	OpInsert   = "insert"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpCount    = "count"
	OpUpload   = "upload"
)

// uniqueColumns lists the column sets enforced as unique per relation,
// mirroring the data service's constraints
var uniqueColumns = map[string][][]string{
	"likes":       {{"post_id", "user_id"}},
	"follows":     {{"follower_id", "following_id"}},
	"saved_posts": {{"user_id", "post_id"}},
	"profiles":    {{"user_id"}, {"username"}},
}

// Fake is an in-memory DataService. Rows are stored as generic maps and
// decoded through JSON, so any row or dest shape the real store accepts
// works here too.
type Fake struct {
	mu      sync.Mutex
	rows    map[string][]map[string]any
	errs    map[string]error
	nextID  int
	base    time.Time
	Uploads []string
}

// NewFake creates an empty fake store
func NewFake() *Fake {
	return &Fake{
		rows: make(map[string][]map[string]any),
		errs: make(map[string]error),
		base: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// SetError makes the given operation fail. An empty relation applies to the
// operation on every relation. A nil error clears it.
func (f *Fake) SetError(op, relation string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := op + ":" + relation
	if err == nil {
		delete(f.errs, key)
		return
	}
	f.errs[key] = err
}

func (f *Fake) errorFor(op, relation string) error {
	if err, ok := f.errs[op+":"+relation]; ok {
		return err
	}
	return f.errs[op+":"]
}

// Seed inserts rows directly, assigning ids and timestamps to rows that
// lack them. Uniqueness is not enforced for seeded rows.
func (f *Fake) Seed(relation string, rows ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range rows {
		f.rows[relation] = append(f.rows[relation], f.fill(copyRow(row)))
	}
}

// Rows returns a copy of the relation's current rows for assertions
func (f *Fake) Rows(relation string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, len(f.rows[relation]))
	for i, row := range f.rows[relation] {
		out[i] = copyRow(row)
	}
	return out
}

func (f *Fake) fill(row map[string]any) map[string]any {
	f.nextID++
	if _, ok := row["id"]; !ok {
		row["id"] = fmt.Sprintf("%08d", f.nextID)
	}
	if _, ok := row["created_at"]; !ok {
		row["created_at"] = f.base.Add(time.Duration(f.nextID) * time.Second)
	}
	return row
}

// Query implements store.DataService
func (f *Fake) Query(ctx context.Context, relation string, q store.Query, dest any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errorFor(OpQuery, relation); err != nil {
		return err
	}

	matched := f.match(relation, q.Filters)
	if q.OrderBy != "" {
		sortRows(matched, q.OrderBy, q.Ascending)
	}
	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[q.Offset:]
		}
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return decode(matched, dest)
}

// QueryOne implements store.DataService
func (f *Fake) QueryOne(ctx context.Context, relation string, filters []store.Filter, dest any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errorFor(OpQueryOne, relation); err != nil {
		return false, err
	}

	matched := f.match(relation, filters)
	if len(matched) == 0 {
		return false, nil
	}
	if dest == nil {
		return true, nil
	}
	return true, decode(matched[0], dest)
}

// Insert implements store.DataService
func (f *Fake) Insert(ctx context.Context, relation string, row, dest any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errorFor(OpInsert, relation); err != nil {
		return err
	}

	normalized, err := toMap(row)
	if err != nil {
		return appErrors.NewInternal("encode row", err)
	}
	for _, columns := range uniqueColumns[relation] {
		for _, existing := range f.rows[relation] {
			if sameColumns(existing, normalized, columns) {
				return appErrors.NewConflict("duplicate key value violates unique constraint")
			}
		}
	}

	stored := f.fill(normalized)
	f.rows[relation] = append(f.rows[relation], stored)
	if dest == nil {
		return nil
	}
	return decode(stored, dest)
}

// Update implements store.DataService
func (f *Fake) Update(ctx context.Context, relation string, filters []store.Filter, patch, dest any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errorFor(OpUpdate, relation); err != nil {
		return err
	}

	fields, err := toMap(patch)
	if err != nil {
		return appErrors.NewInternal("encode patch", err)
	}

	var first map[string]any
	for _, row := range f.rows[relation] {
		if !matchesAll(row, filters) {
			continue
		}
		for k, v := range fields {
			row[k] = v
		}
		if first == nil {
			first = row
		}
	}
	if dest == nil || first == nil {
		return nil
	}
	return decode(first, dest)
}

// Delete implements store.DataService
func (f *Fake) Delete(ctx context.Context, relation string, filters []store.Filter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errorFor(OpDelete, relation); err != nil {
		return err
	}

	kept := f.rows[relation][:0]
	for _, row := range f.rows[relation] {
		if !matchesAll(row, filters) {
			kept = append(kept, row)
		}
	}
	f.rows[relation] = kept
	return nil
}

// Count implements store.DataService
func (f *Fake) Count(ctx context.Context, relation string, filters []store.Filter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errorFor(OpCount, relation); err != nil {
		return 0, err
	}
	return int64(len(f.match(relation, filters))), nil
}

// Upload implements store.DataService
func (f *Fake) Upload(ctx context.Context, bucket, key string, data io.Reader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errorFor(OpUpload, ""); err != nil {
		return "", err
	}
	f.Uploads = append(f.Uploads, bucket+"/"+key)
	return "https://storage.test/" + bucket + "/" + key, nil
}

func (f *Fake) match(relation string, filters []store.Filter) []map[string]any {
	var out []map[string]any
	for _, row := range f.rows[relation] {
		if matchesAll(row, filters) {
			out = append(out, row)
		}
	}
	return out
}

func matchesAll(row map[string]any, filters []store.Filter) bool {
	for _, filter := range filters {
		if !matches(row, filter) {
			return false
		}
	}
	return true
}

func matches(row map[string]any, filter store.Filter) bool {
	switch filter.Op {
	case store.OpEq:
		return stringify(row[filter.Column]) == filter.Value
	case store.OpNeq:
		return stringify(row[filter.Column]) != filter.Value
	case store.OpIlike:
		return ilike(stringify(row[filter.Column]), filter.Value)
	case store.OpIn:
		value := stringify(row[filter.Column])
		for _, candidate := range filter.Values {
			if value == candidate {
				return true
			}
		}
		return false
	case store.OpOr:
		for _, clause := range strings.Split(filter.Raw, ",") {
			parts := strings.SplitN(clause, ".", 3)
			if len(parts) != 3 {
				continue
			}
			if matches(row, store.Filter{Column: parts[0], Op: store.FilterOp(parts[1]), Value: parts[2]}) {
				return true
			}
		}
		return false
	}
	return false
}

func ilike(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(strings.Trim(pattern, "%")))
}

func sameColumns(a, b map[string]any, columns []string) bool {
	for _, column := range columns {
		if stringify(a[column]) != stringify(b[column]) {
			return false
		}
	}
	return true
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}

func sortRows(rows []map[string]any, column string, ascending bool) {
	sort.SliceStable(rows, func(i, j int) bool {
		less := compare(rows[i][column], rows[j][column]) < 0
		if ascending {
			return less
		}
		return compare(rows[i][column], rows[j][column]) > 0
	})
}

func compare(a, b any) int {
	ta, aok := a.(time.Time)
	tb, bok := b.(time.Time)
	if aok && bok {
		return ta.Compare(tb)
	}
	return strings.Compare(stringify(a), stringify(b))
}

func toMap(value any) (map[string]any, error) {
	if m, ok := value.(map[string]any); ok {
		return copyRow(m), nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decode(value, dest any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return appErrors.NewInternal("encode rows", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return appErrors.NewInternal("decode rows", err)
	}
	return nil
}

func copyRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
