package apperrors

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes relevant to write classification.
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
)

// ClassifyDB converts a native database error into a taxonomic *Error.
// Unique violations become conflicts; other constraint and data errors are
// the caller's fault; everything else is internal.
func ClassifyDB(err error) *Error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return Wrap(KindInternal, err, "database error")
	}

	e := &Error{
		Detail:     pgErr.Detail,
		Constraint: pgErr.ConstraintName,
		cause:      err,
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		e.Kind = KindConflict
		e.Message = "duplicate value violates a unique constraint"
	case pgForeignKeyViolation:
		e.Kind = KindForeignKeyViolation
		e.Message = "value violates a foreign key constraint"
	case pgNotNullViolation:
		e.Kind = KindNullViolation
		e.Message = "required column cannot be null"
	default:
		if isDataException(pgErr.Code) || pgErr.Code == pgCheckViolation {
			e.Kind = KindInvalidValue
			e.Message = "invalid value: " + pgErr.Message
		} else {
			e.Kind = KindInternal
			e.Message = "database error"
		}
	}
	return e
}

// isDataException reports whether the SQLSTATE belongs to class 22
// (invalid input syntax, out-of-range values, bad datetime formats).
func isDataException(code string) bool {
	return len(code) == 5 && code[:2] == "22"
}
