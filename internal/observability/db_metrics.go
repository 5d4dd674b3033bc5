package observability

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ObserveDB times fn under the logical operation name op, e.g.
// "purchases.create". A nil Prom just runs fn.
func (p *Prom) ObserveDB(op string, fn func() error) error {
	if p == nil {
		return fn()
	}

	start := newTimer()
	err := fn()

	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, pgx.ErrNoRows):
		// a miss is an answer, not a failure
		status = "no_rows"
	default:
		status = "error"
		p.DbErrorsTotal.WithLabelValues(op, classifyDBErr(err)).Inc()
	}

	p.DbQueryDuration.WithLabelValues(op, status).Observe(start.seconds())
	return err
}

// classifyDBErr buckets errors by SQLSTATE class. Uniqueness hits are
// expected traffic here (duplicate signup, repeat purchase) and are labelled
// with the constraint so they can be told apart from real failures.
func classifyDBErr(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505" && pgErr.ConstraintName != "":
			return "unique:" + pgErr.ConstraintName
		case pgErr.Code == "23505":
			return "unique_violation"
		case pgErr.Code == "23503":
			return "foreign_key_violation"
		case pgErr.Code == "57014":
			return "query_canceled"
		case len(pgErr.Code) == 5:
			return "pg_class_" + pgErr.Code[:2]
		default:
			return "pg_unknown"
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case pgconn.SafeToRetry(err):
		return "connection"
	default:
		return "unknown"
	}
}
