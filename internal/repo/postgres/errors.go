package postgres

import (
	"errors"

	"github.com/geocoder89/coursehub/internal/observability"
	"github.com/jackc/pgx/v5/pgconn"
)

// violates reports a unique violation on the named constraint or index.
func violates(err error, constraint string) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

// metered times every statement under a logical op name when metrics are on.
type metered struct {
	prom *observability.Prom
}

func (m metered) observe(op string, fn func() error) error {
	if m.prom != nil {
		return m.prom.ObserveDB(op, fn)
	}
	return fn()
}
