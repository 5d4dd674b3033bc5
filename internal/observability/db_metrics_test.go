package observability

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestClassifyDBErr(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&pgconn.PgError{Code: "23505", ConstraintName: "purchases_user_course_uniq"}, "unique:purchases_user_course_uniq"},
		{fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), "unique_violation"},
		{&pgconn.PgError{Code: "23503"}, "foreign_key_violation"},
		{&pgconn.PgError{Code: "42P01"}, "pg_class_42"},
		{context.DeadlineExceeded, "timeout"},
		{errors.New("boom"), "unknown"},
	}

	for _, tc := range cases {
		if got := classifyDBErr(tc.err); got != tc.want {
			t.Fatalf("classifyDBErr(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestObserveDB(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewProm(reg)

	_ = p.ObserveDB("courses.get", func() error { return pgx.ErrNoRows })
	_ = p.ObserveDB("purchases.create", func() error {
		return &pgconn.PgError{Code: "23505", ConstraintName: "purchases_user_course_uniq"}
	})

	const errorsTotal = "coursehub_db_errors_total"

	if n := counterValue(t, reg, errorsTotal, map[string]string{"op": "courses.get", "class": "unknown"}); n != 0 {
		t.Fatalf("no-rows counted as an error")
	}
	if n := counterValue(t, reg, errorsTotal, map[string]string{"op": "purchases.create", "class": "unique:purchases_user_course_uniq"}); n != 1 {
		t.Fatalf("expected one unique error, got %v", n)
	}

	var nilProm *Prom
	if err := nilProm.ObserveDB("x", func() error { return nil }); err != nil {
		t.Fatalf("nil prom: %v", err)
	}
}
