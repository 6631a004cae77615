package errors

import (
	"errors"
	"fmt"

	pgconnv1 "github.com/jackc/pgconn"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// SQLSTATE classes that a finalize or counter increment may simply retry.
var retryableSQLStates = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
}

// ErrorDump is the diagnostic view of an error chain attached to 5xx logs.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
	Retryable    bool   `json:"retryable,omitempty"`
}

type pgFields struct {
	code, constraint, table, column, detail, message string
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	if pg, ok := postgresFields(err); ok {
		d.PGCode = pg.code
		d.PGConstraint = pg.constraint
		d.PGTable = pg.table
		d.PGColumn = pg.column
		d.PGDetail = pg.detail
		d.PGMessage = pg.message
		d.Retryable = retryableSQLStates[pg.code]
	}
	return d
}

// IsRetryableSQL reports whether err carries a transient Postgres SQLSTATE.
func IsRetryableSQL(err error) bool {
	pg, ok := postgresFields(err)
	return ok && retryableSQLStates[pg.code]
}

// postgresFields extracts the server error from any of the drivers in use:
// pgx v5 behind gorm, pgconn v1 from older pgx pools, and lib/pq.
func postgresFields(err error) (pgFields, bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgFields{pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.ColumnName, pgxErr.Detail, pgxErr.Message}, true
	}

	var legacyErr *pgconnv1.PgError
	if errors.As(err, &legacyErr) {
		return pgFields{legacyErr.Code, legacyErr.ConstraintName, legacyErr.TableName, legacyErr.ColumnName, legacyErr.Detail, legacyErr.Message}, true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pgFields{string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Column, pqErr.Detail, pqErr.Message}, true
	}
	return pgFields{}, false
}
