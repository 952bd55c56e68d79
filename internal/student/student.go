// Package student provides the validation and persistence layer for
// student records. This package has no UI dependencies and is shared by
// the web and console frontends.
package student

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DB is the connection seam the store runs on.
// Satisfied by *pgxpool.Pool; tests substitute a scripted fake.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Student is a single row of the students table. The ID is assigned by
// the database and never reused, even after deletion.
type Student struct {
	ID             int64
	FirstName      string
	LastName       string
	Email          string
	EnrollmentDate pgtype.Date
}

// EnrollmentDateString renders the enrollment date as YYYY-MM-DD, or ""
// when the date is NULL.
func (s Student) EnrollmentDateString() string {
	if !s.EnrollmentDate.Valid {
		return ""
	}
	return s.EnrollmentDate.Time.Format(DateLayout)
}

// NewStudent carries validated, normalized input for an insert.
// Build one with ValidateNewStudent rather than by hand.
type NewStudent struct {
	FirstName      string
	LastName       string
	Email          string
	EnrollmentDate pgtype.Date
}
