package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ledger_entries_sale_suborder_uniq"}

	cases := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "pg code", err: fmt.Errorf("insert: %w", pgErr), want: true},
		{name: "pg constraint match", err: pgErr, constraint: "ledger_entries_sale_suborder_uniq", want: true},
		{name: "pg constraint mismatch", err: pgErr, constraint: "other_uniq", want: false},
		{name: "pg other code", err: &pgconn.PgError{Code: "23503"}, want: false},
		{name: "sqlite", err: errors.New("UNIQUE constraint failed: ledger_entries.vendor_id, ledger_entries.suborder_id"), want: true},
		{name: "plain", err: errors.New("connection refused"), want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsUniqueViolation(tc.err, tc.constraint); got != tc.want {
				t.Fatalf("expected %v got %v", tc.want, got)
			}
		})
	}
}
