package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// PGDetails is the subset of a Postgres error worth logging.
type PGDetails struct {
	Code       string `json:"code,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Diagnostics flattens an error chain for structured logs.
type Diagnostics struct {
	Message string     `json:"message"`
	Code    Code       `json:"code,omitempty"`
	Chain   []string   `json:"chain,omitempty"`
	PG      *PGDetails `json:"pg,omitempty"`
}

// Describe walks err and collects its typed code, wrap chain and any driver
// error from either Postgres driver.
func Describe(err error) Diagnostics {
	if err == nil {
		return Diagnostics{}
	}
	d := Diagnostics{Message: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for cur := err; cur != nil; cur = stdErrors.Unwrap(cur) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", cur, cur))
	}
	d.PG = postgresDetails(err)
	return d
}

// Fields renders the diagnostics as logger fields.
func (d Diagnostics) Fields() map[string]any {
	fields := map[string]any{"error_chain": d.Chain}
	if d.Code != "" {
		fields["error_code"] = string(d.Code)
	}
	if d.PG != nil {
		fields["pg_code"] = d.PG.Code
		if d.PG.Constraint != "" {
			fields["pg_constraint"] = d.PG.Constraint
		}
		if d.PG.Table != "" {
			fields["pg_table"] = d.PG.Table
		}
	}
	return fields
}

func postgresDetails(err error) *PGDetails {
	var pgxErr *pgconn.PgError
	if stdErrors.As(err, &pgxErr) {
		return &PGDetails{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}
	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		return &PGDetails{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return nil
}
