package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"student-registry/internal/student"
)

// studentHeaders is the column order of every listing.
var studentHeaders = []string{"id", "first_name", "last_name", "email", "enrollment_date"}

// Store is the persistence surface the menu depends on. *student.Store
// satisfies it; tests substitute scripted fakes.
type Store interface {
	List(ctx context.Context) ([]student.Student, error)
	Insert(ctx context.Context, ns student.NewStudent) (student.Student, error)
	UpdateEmail(ctx context.Context, id int64, email string) error
	Delete(ctx context.Context, id int64) error
}

var _ Store = (*student.Store)(nil)

// Menu drives the interactive loop. Input is line-oriented; output is
// plain text with the framed banners and tables from render.go.
type Menu struct {
	store Store
	in    *bufio.Scanner
	out   io.Writer
	eof   bool
}

// New builds a menu reading from in and writing to out.
func New(store Store, in io.Reader, out io.Writer) *Menu {
	return &Menu{
		store: store,
		in:    bufio.NewScanner(in),
		out:   out,
	}
}

// Run loops until the user picks exit or input ends. A closed stdin is
// a normal way to leave, not an error.
func (m *Menu) Run(ctx context.Context) error {
	for {
		fmt.Fprintln(m.out)
		fmt.Fprintln(m.out, FrameTitle("student database menu"))
		fmt.Fprintln(m.out, `\ 1. view all students /`)
		fmt.Fprintln(m.out, `\ 2. add student /`)
		fmt.Fprintln(m.out, `\ 3. update student email /`)
		fmt.Fprintln(m.out, `\ 4. delete student /`)
		fmt.Fprintln(m.out, `\ 5. exit /`)
		fmt.Fprintln(m.out)

		choice, ok := m.prompt(`\ select option: `)
		if !ok {
			return m.in.Err()
		}

		switch choice {
		case "1":
			m.listStudents(ctx)
		case "2":
			m.addStudent(ctx)
			m.relist(ctx)
		case "3":
			m.updateEmail(ctx)
			m.relist(ctx)
		case "4":
			m.deleteStudent(ctx)
			m.relist(ctx)
		case "5":
			fmt.Fprintln(m.out)
			fmt.Fprintln(m.out, FrameTitle("goodbye"))
			return nil
		default:
			m.err("invalid choice.")
		}

		if m.eof {
			return m.in.Err()
		}
	}
}

// relist re-renders the table after a mutation attempt, unless input
// ran dry mid-prompt.
func (m *Menu) relist(ctx context.Context) {
	if !m.eof {
		m.listStudents(ctx)
	}
}

// listStudents prints the full table, or the framed error when the
// database does not answer.
func (m *Menu) listStudents(ctx context.Context) {
	students, err := m.store.List(ctx)
	if err != nil {
		fmt.Fprintln(m.out, FrameTitle("database error"))
		fmt.Fprintln(m.out, err)
		return
	}

	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, FrameTitle("all students"))
	fmt.Fprintln(m.out)

	if len(students) == 0 {
		fmt.Fprintln(m.out, `\ no rows \`)
		fmt.Fprintln(m.out)
		return
	}

	rows := make([][]string, len(students))
	for i, st := range students {
		rows[i] = []string{
			strconv.FormatInt(st.ID, 10),
			st.FirstName,
			st.LastName,
			st.Email,
			st.EnrollmentDateString(),
		}
	}
	fmt.Fprintln(m.out, DrawTable(rows, studentHeaders))
	fmt.Fprintln(m.out)
}

func (m *Menu) addStudent(ctx context.Context) {
	fmt.Fprintln(m.out, FrameTitle("add student"))

	first, ok := m.prompt(`\ first name: `)
	if !ok {
		return
	}
	last, ok := m.prompt(`\ last name: `)
	if !ok {
		return
	}
	email, ok := m.prompt(`\ email: `)
	if !ok {
		return
	}
	date, ok := m.prompt(`\ enrollment date (YYYY-MM-DD or blank): `)
	if !ok {
		return
	}

	ns, err := student.ValidateNewStudent(first, last, email, date)
	if err != nil {
		m.err(validationText(err))
		return
	}

	if _, err := m.store.Insert(ctx, ns); err != nil {
		if errors.Is(err, student.ErrDuplicateEmail) {
			m.err("email already exists (must be unique).")
		} else {
			m.err(fmt.Sprintf("database error (add): %v", err))
		}
		return
	}
	m.ok("student added.")
}

func (m *Menu) updateEmail(ctx context.Context) {
	fmt.Fprintln(m.out, FrameTitle("update student email"))

	idRaw, ok := m.prompt(`\ student id: `)
	if !ok {
		return
	}
	emailRaw, ok := m.prompt(`\ new email: `)
	if !ok {
		return
	}

	id, email, err := student.ValidateEmailUpdate(idRaw, emailRaw)
	if err != nil {
		m.err(validationText(err))
		return
	}

	err = m.store.UpdateEmail(ctx, id, email)
	switch {
	case err == nil:
		m.ok("email updated.")
	case errors.Is(err, student.ErrNotFound):
		m.err("no student with that id.")
	case errors.Is(err, student.ErrDuplicateEmail):
		m.err("that email is already in use.")
	default:
		m.err(fmt.Sprintf("database error (update): %v", err))
	}
}

// deleteStudent asks for the id twice; anything but an exact re-type
// cancels.
func (m *Menu) deleteStudent(ctx context.Context) {
	fmt.Fprintln(m.out, FrameTitle("delete student"))

	idRaw, ok := m.prompt(`\ student id to delete: `)
	if !ok {
		return
	}
	confirm, ok := m.prompt(fmt.Sprintf(`\ type %s again to confirm: `, idRaw))
	if !ok {
		return
	}
	if confirm != idRaw {
		fmt.Fprintln(m.out, "{<} delete cancelled.")
		return
	}

	id, err := student.ValidateID(idRaw)
	if err != nil {
		m.err(validationText(err))
		return
	}

	err = m.store.Delete(ctx, id)
	switch {
	case err == nil:
		m.ok("student deleted.")
	case errors.Is(err, student.ErrNotFound):
		m.err("no student with that id.")
	default:
		m.err(fmt.Sprintf("database error (delete): %v", err))
	}
}

// prompt prints the label without a newline and reads one trimmed line.
// ok is false once input is exhausted.
func (m *Menu) prompt(label string) (string, bool) {
	fmt.Fprint(m.out, label)
	if !m.in.Scan() {
		m.eof = true
		return "", false
	}
	return strings.TrimSpace(m.in.Text()), true
}

func (m *Menu) ok(text string) {
	fmt.Fprintln(m.out, "{*} "+text)
}

func (m *Menu) err(text string) {
	fmt.Fprintln(m.out, "{:/} "+text)
}

// validationText renders a validation failure in the menu's wording.
func validationText(err error) string {
	var ve student.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	switch ve.Code {
	case student.CodeMissingField:
		return "first, last, and email are required."
	case student.CodeInvalidEmail:
		return "invalid email format."
	case student.CodeInvalidDate:
		return "enrollment_date must be YYYY-MM-DD (or leave blank)."
	case student.CodeInvalidID:
		return "student id must be a positive integer."
	}
	return ve.Error()
}
