package student

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// All statements are parameterized; user input never reaches the SQL
// text itself.
const (
	listStudentsSQL = `
		SELECT student_id, first_name, last_name, email, enrollment_date
		FROM students
		ORDER BY student_id`

	insertStudentSQL = `
		INSERT INTO students (first_name, last_name, email, enrollment_date)
		VALUES ($1, $2, $3, $4)
		RETURNING student_id, first_name, last_name, email, enrollment_date`

	updateEmailSQL = `
		UPDATE students
		SET email = $1
		WHERE student_id = $2`

	deleteStudentSQL = `
		DELETE FROM students
		WHERE student_id = $1`
)

// schemaStatements bootstrap the backing tables on startup. Each runs as
// its own statement because the extended query protocol rejects
// multi-statement strings. CREATE TABLE IF NOT EXISTS keeps the
// bootstrap idempotent against an existing database.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS students (
		student_id      serial PRIMARY KEY,
		first_name      text NOT NULL,
		last_name       text NOT NULL,
		email           text NOT NULL UNIQUE,
		enrollment_date date
	)`,
	`CREATE TABLE IF NOT EXISTS student_changes (
		change_id   uuid PRIMARY KEY,
		action      text NOT NULL,
		student_id  bigint NOT NULL,
		detail      text NOT NULL DEFAULT '',
		ip_address  text NOT NULL DEFAULT '',
		user_agent  text NOT NULL DEFAULT '',
		changed_at  timestamptz NOT NULL DEFAULT now()
	)`,
}

// Store persists student records. Every mutation runs inside its own
// scoped transaction via pgx.BeginFunc, which commits when the callback
// returns nil and rolls back otherwise, so no connection or transaction
// state outlives a single call.
type Store struct {
	db DB
}

// NewStore creates a Store on the given connection source.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the backing tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// List returns every student ordered by ascending id. The single
// read-only statement queries the pool directly; there is nothing to
// commit or roll back.
func (s *Store) List(ctx context.Context) ([]Student, error) {
	rows, err := s.db.Query(ctx, listStudentsSQL)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.ID, &st.FirstName, &st.LastName, &st.Email, &st.EnrollmentDate); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// Insert stores a validated student and returns the row as stored,
// including the generated id. A duplicate email yields ErrDuplicateEmail.
func (s *Store) Insert(ctx context.Context, ns NewStudent) (Student, error) {
	var st Student
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, insertStudentSQL,
			ns.FirstName, ns.LastName, ns.Email, ns.EnrollmentDate)
		return row.Scan(&st.ID, &st.FirstName, &st.LastName, &st.Email, &st.EnrollmentDate)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return Student{}, ErrDuplicateEmail
		}
		return Student{}, fmt.Errorf("insert student: %w", err)
	}

	s.recordChange(ctx, ChangeAdd, st.ID, st.Email)
	return st, nil
}

// UpdateEmail sets a new email on the student with the given id.
// Returns ErrNotFound when no row matched and ErrDuplicateEmail when the
// new address is already taken by another student.
func (s *Store) UpdateEmail(ctx context.Context, id int64, email string) error {
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, updateEmailSQL, email, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
	switch {
	case err == nil:
		s.recordChange(ctx, ChangeUpdateEmail, id, email)
		return nil
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	case isUniqueViolation(err):
		return ErrDuplicateEmail
	default:
		return fmt.Errorf("update email: %w", err)
	}
}

// Delete removes the student with the given id. Returns ErrNotFound when
// no row matched; deleting the same id twice succeeds once.
func (s *Store) Delete(ctx context.Context, id int64) error {
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, deleteStudentSQL, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
	switch {
	case err == nil:
		s.recordChange(ctx, ChangeDelete, id, "")
		return nil
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	default:
		return fmt.Errorf("delete student: %w", err)
	}
}
