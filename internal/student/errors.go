package student

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors for the two row-level outcomes the frontends
// distinguish from generic backend failure.
var (
	// ErrNotFound is returned when a mutation matched zero rows.
	ErrNotFound = errors.New("student not found")

	// ErrDuplicateEmail is returned when the UNIQUE(email) constraint
	// rejected an insert or update.
	ErrDuplicateEmail = errors.New("duplicate email")
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// isUniqueViolation reports whether err is the database rejecting a
// duplicate value on a unique constraint. Classification goes through
// the driver's typed error, never through message text.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
