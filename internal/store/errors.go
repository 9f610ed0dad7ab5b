package store

import (
	"context"
	stderrors "errors"
	"net"
	"net/url"
	"strings"

	"aperture-backend/pkg/errors"
)

// mapError converts wire-level failures into the application's typed errors.
// PostgREST surfaces constraint violations as error strings carrying the
// Postgres SQLSTATE code, so classification is by inspection.
func mapError(relation string, err error) error {
	if err == nil {
		return nil
	}

	var netErr net.Error
	var urlErr *url.Error
	switch {
	case stderrors.Is(err, context.DeadlineExceeded),
		stderrors.Is(err, context.Canceled),
		stderrors.As(err, &netErr),
		stderrors.As(err, &urlErr):
		return errors.NewTransport("data service unreachable: "+relation, err)
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "23505"), strings.Contains(msg, "duplicate key"):
		// Unique constraint violation: duplicate like, follow or saved post
		return errors.NewConflict("duplicate row in " + relation)
	case strings.Contains(msg, "23503"):
		// Foreign key violation: referenced row is gone
		return errors.NewNotFound("referenced row missing in " + relation)
	case strings.Contains(msg, "PGRST116"):
		return errors.NewNotFound("no rows in " + relation)
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "timeout"):
		return errors.NewTransport("data service unreachable: "+relation, err)
	}

	return errors.NewInternal("data service operation failed on "+relation, err)
}
