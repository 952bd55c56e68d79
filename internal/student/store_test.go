package student

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// ============================================================================
// Fakes
// ============================================================================

type execCall struct {
	sql  string
	args []any
}

// fakeRow satisfies pgx.Row with a scripted Scan.
type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

// fakeTx covers the methods the store reaches inside pgx.BeginFunc.
// The embedded interface panics on anything unscripted.
type fakeTx struct {
	pgx.Tx
	exec       func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	queryRow   func(ctx context.Context, sql string, args ...any) pgx.Row
	committed  bool
	rolledBack bool
}

var _ pgx.Tx = (*fakeTx)(nil)

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.exec(ctx, sql, args...)
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.queryRow(ctx, sql, args...)
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	// BeginFunc always issues a deferred Rollback; only count it when
	// nothing was committed.
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

// fakeDB satisfies the DB seam with function fields.
type fakeDB struct {
	exec     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	query    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	queryRow func(ctx context.Context, sql string, args ...any) pgx.Row
	begin    func(ctx context.Context) (pgx.Tx, error)
}

var _ DB = (*fakeDB)(nil)

func (db *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return db.exec(ctx, sql, args...)
}

func (db *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return db.query(ctx, sql, args...)
}

func (db *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return db.queryRow(ctx, sql, args...)
}

func (db *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	return db.begin(ctx)
}

// fakeRows streams scripted students through pgx.Rows.
type fakeRows struct {
	pgx.Rows
	students []Student
	idx      int
	err      error
}

var _ pgx.Rows = (*fakeRows)(nil)

func (r *fakeRows) Close()     {}
func (r *fakeRows) Err() error { return r.err }

func (r *fakeRows) Next() bool {
	if r.idx < len(r.students) {
		r.idx++
		return true
	}
	return false
}

func (r *fakeRows) Scan(dest ...any) error {
	st := r.students[r.idx-1]
	*(dest[0].(*int64)) = st.ID
	*(dest[1].(*string)) = st.FirstName
	*(dest[2].(*string)) = st.LastName
	*(dest[3].(*string)) = st.Email
	*(dest[4].(*pgtype.Date)) = st.EnrollmentDate
	return nil
}

// fakeChangeRows streams scripted change-log entries.
type fakeChangeRows struct {
	pgx.Rows
	entries []ChangeEntry
	idx     int
}

func (r *fakeChangeRows) Close()     {}
func (r *fakeChangeRows) Err() error { return nil }

func (r *fakeChangeRows) Next() bool {
	if r.idx < len(r.entries) {
		r.idx++
		return true
	}
	return false
}

func (r *fakeChangeRows) Scan(dest ...any) error {
	e := r.entries[r.idx-1]

	id := pgtype.UUID{}
	if e.ID != "" {
		parsed, err := uuid.Parse(e.ID)
		if err != nil {
			return err
		}
		id = pgtype.UUID{Bytes: parsed, Valid: true}
	}

	*(dest[0].(*pgtype.UUID)) = id
	*(dest[1].(*ChangeAction)) = e.Action
	*(dest[2].(*int64)) = e.StudentID
	*(dest[3].(*string)) = e.Detail
	*(dest[4].(*string)) = e.IPAddress
	*(dest[5].(*string)) = e.UserAgent
	*(dest[6].(*pgtype.Timestamptz)) = pgtype.Timestamptz{Time: e.ChangedAt, Valid: true}
	return nil
}

// discardChanges is an Exec stub for tests that don't inspect the
// change log.
func discardChanges(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

// ============================================================================
// List
// ============================================================================

func TestList_MapsRows(t *testing.T) {
	enrolled := pgtype.Date{Time: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC), Valid: true}
	scripted := []Student{
		{ID: 1, FirstName: "Ada", LastName: "Lovelace", Email: "ada@ex.io", EnrollmentDate: enrolled},
		{ID: 2, FirstName: "Grace", LastName: "Hopper", Email: "grace@ex.io"},
	}

	var gotSQL string
	db := &fakeDB{
		query: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			gotSQL = sql
			return &fakeRows{students: scripted}, nil
		},
	}

	students, err := NewStore(db).List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if !strings.Contains(gotSQL, "ORDER BY student_id") {
		t.Errorf("List() SQL missing ORDER BY student_id: %s", gotSQL)
	}
	if len(students) != 2 {
		t.Fatalf("List() returned %d students, want 2", len(students))
	}
	if students[0].ID != 1 || students[0].Email != "ada@ex.io" {
		t.Errorf("students[0] = %+v, want Ada's row", students[0])
	}
	if !students[0].EnrollmentDate.Valid {
		t.Error("students[0].EnrollmentDate.Valid = false, want true")
	}
	if students[1].EnrollmentDate.Valid {
		t.Error("students[1].EnrollmentDate.Valid = true, want false for NULL date")
	}
}

func TestList_QueryErrorWrapped(t *testing.T) {
	db := &fakeDB{
		query: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			return nil, errors.New("connection refused")
		},
	}

	students, err := NewStore(db).List(context.Background())
	if err == nil {
		t.Fatal("List() expected error")
	}
	if students != nil {
		t.Errorf("List() = %v, want nil on failure", students)
	}
	if !strings.Contains(err.Error(), "list students") {
		t.Errorf("error %q missing operation context", err)
	}
}

// ============================================================================
// Insert
// ============================================================================

func TestInsert_ReturnsStoredRow(t *testing.T) {
	tx := &fakeTx{}
	var insertSQL string
	var insertArgs []any
	tx.queryRow = func(ctx context.Context, sql string, args ...any) pgx.Row {
		insertSQL = sql
		insertArgs = args
		return fakeRow{scan: func(dest ...any) error {
			*(dest[0].(*int64)) = 7
			*(dest[1].(*string)) = "Ada"
			*(dest[2].(*string)) = "Lovelace"
			*(dest[3].(*string)) = "ada@ex.io"
			*(dest[4].(*pgtype.Date)) = pgtype.Date{}
			return nil
		}}
	}

	var changes []execCall
	db := &fakeDB{
		begin: func(ctx context.Context) (pgx.Tx, error) { return tx, nil },
		exec: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			changes = append(changes, execCall{sql: sql, args: args})
			return pgconn.CommandTag{}, nil
		},
	}

	ns := NewStudent{FirstName: "Ada", LastName: "Lovelace", Email: "ada@ex.io"}
	got, err := NewStore(db).Insert(context.Background(), ns)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	if got.ID != 7 {
		t.Errorf("Insert() ID = %d, want the generated id 7", got.ID)
	}
	if !tx.committed {
		t.Error("Insert() did not commit the transaction")
	}
	if !strings.Contains(insertSQL, "RETURNING") {
		t.Errorf("Insert() SQL missing RETURNING: %s", insertSQL)
	}
	if len(insertArgs) != 4 {
		t.Fatalf("Insert() bound %d args, want 4", len(insertArgs))
	}
	if insertArgs[0] != "Ada" || insertArgs[1] != "Lovelace" || insertArgs[2] != "ada@ex.io" {
		t.Errorf("Insert() args = %v, want normalized fields in order", insertArgs)
	}
	if date := insertArgs[3].(pgtype.Date); date.Valid {
		t.Error("Insert() bound a non-NULL date for blank input")
	}

	// One change-log entry for the add.
	if len(changes) != 1 {
		t.Fatalf("recorded %d change entries, want 1", len(changes))
	}
	if !strings.Contains(changes[0].sql, "student_changes") {
		t.Errorf("change entry SQL = %s, want insert into student_changes", changes[0].sql)
	}
	if changes[0].args[1] != "add" || changes[0].args[2] != int64(7) {
		t.Errorf("change entry args = %v, want action add for student 7", changes[0].args)
	}
}

func TestInsert_DuplicateEmail(t *testing.T) {
	tx := &fakeTx{}
	tx.queryRow = func(ctx context.Context, sql string, args ...any) pgx.Row {
		return fakeRow{scan: func(dest ...any) error {
			return &pgconn.PgError{Code: "23505", ConstraintName: "students_email_key"}
		}}
	}

	var changes []execCall
	db := &fakeDB{
		begin: func(ctx context.Context) (pgx.Tx, error) { return tx, nil },
		exec: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			changes = append(changes, execCall{sql: sql, args: args})
			return pgconn.CommandTag{}, nil
		},
	}

	_, err := NewStore(db).Insert(context.Background(), NewStudent{Email: "dup@ex.io"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("Insert() error = %v, want ErrDuplicateEmail", err)
	}
	if !tx.rolledBack {
		t.Error("Insert() did not roll back on constraint violation")
	}
	if len(changes) != 0 {
		t.Errorf("recorded %d change entries for a failed insert, want 0", len(changes))
	}
}

func TestInsert_BackendErrorWrapped(t *testing.T) {
	tx := &fakeTx{}
	tx.queryRow = func(ctx context.Context, sql string, args ...any) pgx.Row {
		return fakeRow{scan: func(dest ...any) error {
			return errors.New("connection reset by peer")
		}}
	}
	db := &fakeDB{
		begin: func(ctx context.Context) (pgx.Tx, error) { return tx, nil },
		exec:  discardChanges,
	}

	_, err := NewStore(db).Insert(context.Background(), NewStudent{})
	if err == nil {
		t.Fatal("Insert() expected error")
	}
	if errors.Is(err, ErrDuplicateEmail) || errors.Is(err, ErrNotFound) {
		t.Errorf("Insert() error = %v misclassified as a sentinel", err)
	}
	if !strings.Contains(err.Error(), "insert student") {
		t.Errorf("error %q missing operation context", err)
	}
}

func TestInsert_BeginErrorWrapped(t *testing.T) {
	db := &fakeDB{
		begin: func(ctx context.Context) (pgx.Tx, error) {
			return nil, errors.New("pool exhausted")
		},
		exec: discardChanges,
	}

	_, err := NewStore(db).Insert(context.Background(), NewStudent{})
	if err == nil || !strings.Contains(err.Error(), "insert student") {
		t.Errorf("Insert() error = %v, want wrapped begin failure", err)
	}
}

func TestInsert_ChangeLogFailureDoesNotFailInsert(t *testing.T) {
	tx := &fakeTx{}
	tx.queryRow = func(ctx context.Context, sql string, args ...any) pgx.Row {
		return fakeRow{scan: func(dest ...any) error {
			*(dest[0].(*int64)) = 3
			*(dest[1].(*string)) = "Grace"
			*(dest[2].(*string)) = "Hopper"
			*(dest[3].(*string)) = "grace@ex.io"
			*(dest[4].(*pgtype.Date)) = pgtype.Date{}
			return nil
		}}
	}
	db := &fakeDB{
		begin: func(ctx context.Context) (pgx.Tx, error) { return tx, nil },
		exec: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			return pgconn.CommandTag{}, errors.New("student_changes does not exist")
		},
	}

	got, err := NewStore(db).Insert(context.Background(), NewStudent{Email: "grace@ex.io"})
	if err != nil {
		t.Fatalf("Insert() error = %v, change log failures must not surface", err)
	}
	if got.ID != 3 {
		t.Errorf("Insert() ID = %d, want 3", got.ID)
	}
}

// ============================================================================
// UpdateEmail
// ============================================================================

func TestUpdateEmail_Success(t *testing.T) {
	tx := &fakeTx{}
	var updateArgs []any
	tx.exec = func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
		if !strings.Contains(sql, "UPDATE students") {
			t.Errorf("UpdateEmail() SQL = %s, want UPDATE students", sql)
		}
		updateArgs = args
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}

	var changes []execCall
	db := &fakeDB{
		begin: func(ctx context.Context) (pgx.Tx, error) { return tx, nil },
		exec: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			changes = append(changes, execCall{sql: sql, args: args})
			return pgconn.CommandTag{}, nil
		},
	}

	if err := NewStore(db).UpdateEmail(context.Background(), 7, "new@ex.io"); err != nil {
		t.Fatalf("UpdateEmail() error = %v", err)
	}

	if !tx.committed {
		t.Error("UpdateEmail() did not commit")
	}
	if len(updateArgs) != 2 || updateArgs[0] != "new@ex.io" || updateArgs[1] != int64(7) {
		t.Errorf("UpdateEmail() args = %v, want [new@ex.io 7]", updateArgs)
	}
	if len(changes) != 1 || changes[0].args[1] != "update_email" {
		t.Errorf("change entries = %v, want one update_email entry", changes)
	}
}

func TestUpdateEmail_NotFound(t *testing.T) {
	tx := &fakeTx{}
	tx.exec = func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}
	db := &fakeDB{
		begin: func(ctx context.Context) (pgx.Tx, error) { return tx, nil },
		exec:  discardChanges,
	}

	err := NewStore(db).UpdateEmail(context.Background(), 999, "new@ex.io")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateEmail() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateEmail_DuplicateEmail(t *testing.T) {
	tx := &fakeTx{}
	tx.exec = func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
		return pgconn.CommandTag{}, &pgconn.PgError{Code: "23505"}
	}
	db := &fakeDB{
		begin: func(ctx context.Context) (pgx.Tx, error) { return tx, nil },
		exec:  discardChanges,
	}

	err := NewStore(db).UpdateEmail(context.Background(), 7, "taken@ex.io")
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("UpdateEmail() error = %v, want ErrDuplicateEmail", err)
	}
	if !tx.rolledBack {
		t.Error("UpdateEmail() did not roll back on constraint violation")
	}
}

func TestUpdateEmail_BackendErrorWrapped(t *testing.T) {
	tx := &fakeTx{}
	tx.exec = func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
		return pgconn.CommandTag{}, errors.New("deadlock detected")
	}
	db := &fakeDB{
		begin: func(ctx context.Context) (pgx.Tx, error) { return tx, nil },
		exec:  discardChanges,
	}

	err := NewStore(db).UpdateEmail(context.Background(), 7, "new@ex.io")
	if err == nil || !strings.Contains(err.Error(), "update email") {
		t.Errorf("UpdateEmail() error = %v, want wrapped backend failure", err)
	}
}

// ============================================================================
// Delete
// ============================================================================

func TestDelete_TwiceReportsNotFound(t *testing.T) {
	// First delete removes the row, the second matches nothing.
	tags := []string{"DELETE 1", "DELETE 0"}
	call := 0
	db := &fakeDB{
		begin: func(ctx context.Context) (pgx.Tx, error) {
			tx := &fakeTx{}
			tx.exec = func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
				if len(args) != 1 || args[0] != int64(7) {
					t.Errorf("Delete() args = %v, want [7]", args)
				}
				tag := pgconn.NewCommandTag(tags[call])
				call++
				return tag, nil
			}
			return tx, nil
		},
		exec: discardChanges,
	}
	store := NewStore(db)

	if err := store.Delete(context.Background(), 7); err != nil {
		t.Fatalf("first Delete() error = %v", err)
	}
	if err := store.Delete(context.Background(), 7); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestDelete_RecordsChange(t *testing.T) {
	tx := &fakeTx{}
	tx.exec = func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
		return pgconn.NewCommandTag("DELETE 1"), nil
	}

	var changes []execCall
	db := &fakeDB{
		begin: func(ctx context.Context) (pgx.Tx, error) { return tx, nil },
		exec: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			changes = append(changes, execCall{sql: sql, args: args})
			return pgconn.CommandTag{}, nil
		},
	}

	if err := NewStore(db).Delete(context.Background(), 12); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(changes) != 1 || changes[0].args[1] != "delete" || changes[0].args[2] != int64(12) {
		t.Errorf("change entries = %v, want one delete entry for student 12", changes)
	}
}

// ============================================================================
// Change log
// ============================================================================

func TestChangeLog_CarriesClientInfoFromContext(t *testing.T) {
	tx := &fakeTx{}
	tx.exec = func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}

	var changes []execCall
	db := &fakeDB{
		begin: func(ctx context.Context) (pgx.Tx, error) { return tx, nil },
		exec: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			changes = append(changes, execCall{sql: sql, args: args})
			return pgconn.CommandTag{}, nil
		},
	}

	ctx := ContextWithClientInfo(context.Background(), "10.1.2.3", "curl/8.4.0")
	if err := NewStore(db).UpdateEmail(ctx, 5, "new@ex.io"); err != nil {
		t.Fatalf("UpdateEmail() error = %v", err)
	}

	if len(changes) != 1 {
		t.Fatalf("recorded %d change entries, want 1", len(changes))
	}
	if changes[0].args[4] != "10.1.2.3" || changes[0].args[5] != "curl/8.4.0" {
		t.Errorf("change entry args = %v, want client IP and user agent", changes[0].args)
	}
}

func TestRecentChanges_DefaultsLimit(t *testing.T) {
	when := time.Date(2024, 9, 1, 10, 30, 0, 0, time.UTC)
	scripted := []ChangeEntry{{
		ID:        uuid.NewString(),
		Action:    ChangeAdd,
		StudentID: 7,
		Detail:    "ada@ex.io",
		IPAddress: "10.0.0.1",
		UserAgent: "Mozilla/5.0",
		ChangedAt: when,
	}}

	var gotArgs []any
	db := &fakeDB{
		query: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			gotArgs = args
			return &fakeChangeRows{entries: scripted}, nil
		},
	}

	entries, err := NewStore(db).RecentChanges(context.Background(), 0)
	if err != nil {
		t.Fatalf("RecentChanges() error = %v", err)
	}

	if len(gotArgs) != 1 || gotArgs[0] != DefaultChangeLimit {
		t.Errorf("RecentChanges() limit arg = %v, want %d", gotArgs, DefaultChangeLimit)
	}
	if len(entries) != 1 {
		t.Fatalf("RecentChanges() returned %d entries, want 1", len(entries))
	}
	got := entries[0]
	if got.Action != ChangeAdd || got.StudentID != 7 || got.Detail != "ada@ex.io" {
		t.Errorf("entry = %+v, want the scripted add entry", got)
	}
	if !got.ChangedAt.Equal(when) {
		t.Errorf("ChangedAt = %v, want %v", got.ChangedAt, when)
	}
}

// ============================================================================
// Schema bootstrap
// ============================================================================

func TestEnsureSchema_CreatesBothTables(t *testing.T) {
	var stmts []string
	db := &fakeDB{
		exec: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			stmts = append(stmts, sql)
			return pgconn.CommandTag{}, nil
		},
	}

	if err := NewStore(db).EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}

	if len(stmts) != 2 {
		t.Fatalf("EnsureSchema() ran %d statements, want 2", len(stmts))
	}
	if !strings.Contains(stmts[0], "CREATE TABLE IF NOT EXISTS students") {
		t.Errorf("first statement = %s, want students DDL", stmts[0])
	}
	if !strings.Contains(stmts[0], "email") || !strings.Contains(stmts[0], "UNIQUE") {
		t.Errorf("students DDL missing the unique email constraint: %s", stmts[0])
	}
	if !strings.Contains(stmts[1], "student_changes") {
		t.Errorf("second statement = %s, want student_changes DDL", stmts[1])
	}
}

func TestEnsureSchema_StopsOnError(t *testing.T) {
	calls := 0
	db := &fakeDB{
		exec: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			calls++
			return pgconn.CommandTag{}, errors.New("permission denied")
		},
	}

	err := NewStore(db).EnsureSchema(context.Background())
	if err == nil || !strings.Contains(err.Error(), "ensure schema") {
		t.Errorf("EnsureSchema() error = %v, want wrapped failure", err)
	}
	if calls != 1 {
		t.Errorf("EnsureSchema() kept going after failure: %d calls", calls)
	}
}

// ============================================================================
// Error classification
// ============================================================================

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("unique constraint"), false},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"pg other code", &pgconn.PgError{Code: "23503"}, false},
		{"wrapped pg error", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505"}), true},
	}

	for _, tt := range tests {
		if got := isUniqueViolation(tt.err); got != tt.want {
			t.Errorf("%s: isUniqueViolation() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
