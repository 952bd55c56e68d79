package student

// validate.go holds the input checks both frontends share. These are
// UI-level checks for obvious mistakes; the authoritative enforcement of
// email uniqueness is the database's UNIQUE constraint, surfaced by the
// store as ErrDuplicateEmail.

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// DateLayout is the only accepted enrollment date format.
const DateLayout = "2006-01-02"

// emailPattern: one @ with no whitespace and a dot somewhere after the @.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// digitsPattern matches unsigned decimal literals. Signs, decimal points
// and separators are all rejected.
var digitsPattern = regexp.MustCompile(`^[0-9]+$`)

// FailCode identifies which validation rule rejected the input.
type FailCode string

const (
	CodeMissingField FailCode = "missing_field"
	CodeInvalidEmail FailCode = "invalid_email"
	CodeInvalidDate  FailCode = "invalid_date"
	CodeInvalidID    FailCode = "invalid_id"
)

// ValidationError reports a single rejected input field. Frontends
// branch on Code and render their own message text; Field and Value let
// them name the offending input.
type ValidationError struct {
	Code    FailCode
	Field   string // form/prompt field name
	Value   string // the rejected value, after normalization
	Message string // short description, not shown verbatim to users
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidEmailSyntax reports whether s passes the syntactic email check
// after trimming. It deliberately stops at "looks like an email":
// deliverability and uniqueness are out of scope here.
func ValidEmailSyntax(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// ParseEnrollmentDate parses an optional YYYY-MM-DD date. Blank input is
// valid and maps to a NULL date.
func ParseEnrollmentDate(raw string) (pgtype.Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return pgtype.Date{}, nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return pgtype.Date{}, ValidationError{
			Code:    CodeInvalidDate,
			Field:   "enrollment_date",
			Value:   raw,
			Message: "must be YYYY-MM-DD or blank",
		}
	}
	return pgtype.Date{Time: t, Valid: true}, nil
}

// ValidateID parses a student id typed by a user. Only unsigned decimal
// literals are accepted; "7.5", "+7" and "-7" all fail. The literal "0"
// passes here and surfaces as not-found downstream, since generated ids
// start at 1.
func ValidateID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if !digitsPattern.MatchString(raw) {
		return 0, ValidationError{
			Code:    CodeInvalidID,
			Field:   "student_id",
			Value:   raw,
			Message: "must be a positive integer",
		}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// All-digit literals can still overflow int64.
		return 0, ValidationError{
			Code:    CodeInvalidID,
			Field:   "student_id",
			Value:   raw,
			Message: "must be a positive integer",
		}
	}
	return id, nil
}

// ValidateNewStudent normalizes and checks the raw add-student fields.
// Names are trimmed, the email is trimmed and lower-cased, and a blank
// enrollment date becomes NULL. The first failing check wins, in the
// same order the forms present the fields.
func ValidateNewStudent(first, last, email, date string) (NewStudent, error) {
	first = strings.TrimSpace(first)
	last = strings.TrimSpace(last)
	email = strings.ToLower(strings.TrimSpace(email))

	switch {
	case first == "":
		return NewStudent{}, ValidationError{Code: CodeMissingField, Field: "first_name", Message: "required"}
	case last == "":
		return NewStudent{}, ValidationError{Code: CodeMissingField, Field: "last_name", Message: "required"}
	case email == "":
		return NewStudent{}, ValidationError{Code: CodeMissingField, Field: "email", Message: "required"}
	}

	if !ValidEmailSyntax(email) {
		return NewStudent{}, ValidationError{
			Code:    CodeInvalidEmail,
			Field:   "email",
			Value:   email,
			Message: "invalid email format",
		}
	}

	enrolled, err := ParseEnrollmentDate(date)
	if err != nil {
		return NewStudent{}, err
	}

	return NewStudent{
		FirstName:      first,
		LastName:       last,
		Email:          email,
		EnrollmentDate: enrolled,
	}, nil
}

// ValidateEmailUpdate checks the id and replacement email for the
// update-email operation. The id check runs first, matching the order
// the forms present the fields.
func ValidateEmailUpdate(idRaw, emailRaw string) (int64, string, error) {
	id, err := ValidateID(idRaw)
	if err != nil {
		return 0, "", err
	}

	email := strings.ToLower(strings.TrimSpace(emailRaw))
	if !ValidEmailSyntax(email) {
		return 0, "", ValidationError{
			Code:    CodeInvalidEmail,
			Field:   "new_email",
			Value:   email,
			Message: "invalid email format",
		}
	}

	return id, email, nil
}
