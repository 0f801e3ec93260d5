package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribeNil(t *testing.T) {
	assert.Equal(t, Diagnostics{}, Describe(nil))
}

func TestDescribeCollectsCodeAndChain(t *testing.T) {
	err := fmt.Errorf("record sale: %w", Wrap(CodeTransactionAborted, stdErrors.New("conn reset"), "insert entry"))

	d := Describe(err)
	assert.Equal(t, CodeTransactionAborted, d.Code)
	assert.Len(t, d.Chain, 3)
	assert.Nil(t, d.PG)

	fields := d.Fields()
	assert.Equal(t, "TRANSACTION_ABORTED", fields["error_code"])
	assert.NotContains(t, fields, "pg_code")
}

func TestDescribePgxError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "uq_ledger_entries_reference", TableName: "ledger_entries"}
	d := Describe(fmt.Errorf("insert: %w", pgErr))

	require.NotNil(t, d.PG)
	assert.Equal(t, "23505", d.PG.Code)
	assert.Equal(t, "uq_ledger_entries_reference", d.Fields()["pg_constraint"])
}

func TestDescribePqError(t *testing.T) {
	d := Describe(&pq.Error{Code: "40001", Table: "ledger_entries"})

	require.NotNil(t, d.PG)
	assert.Equal(t, "40001", d.PG.Code)
	assert.Equal(t, "ledger_entries", d.Fields()["pg_table"])
}
