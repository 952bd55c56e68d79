package web

// handlers.go implements the form-driven UI flow: every POST validates,
// hits the store, leaves a flash describing the outcome and redirects
// back to the index so a refresh never resubmits the form.

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"student-registry/internal/logging"
	"student-registry/internal/student"
)

// handleIndex renders the full student table with the add, update and
// delete forms. A failing database degrades to an empty table plus a
// danger notice; the failure is never shown as an ordinary empty
// listing.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	flashes := s.flash.pop(w, r)

	students, err := s.store.List(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Warn("list students failed", "error", err)
		students = nil
		flashes = append(flashes, flashMessage{
			Text:     fmt.Sprintf("(!) db error (list): %v", err),
			Category: "danger",
		})
	}

	s.render(w, "index.html", indexData{Students: students, Flashes: flashes})
}

// handleAdd creates a student from the add form.
func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	ns, err := student.ValidateNewStudent(
		r.FormValue("first_name"),
		r.FormValue("last_name"),
		r.FormValue("email"),
		r.FormValue("enrollment_date"),
	)
	if err != nil {
		s.fail(w, validationMessage(err))
		redirectHome(w, r)
		return
	}

	_, err = s.store.Insert(mutationContext(r), ns)
	switch {
	case err == nil:
		s.ok(w, "student added")
	case errors.Is(err, student.ErrDuplicateEmail):
		s.fail(w, fmt.Sprintf("email already exists — “%s” → choose a unique email", ns.Email))
	default:
		logging.FromContext(r.Context()).Error("add student failed", "error", err)
		s.fail(w, fmt.Sprintf("db error (add): %v", err))
	}
	redirectHome(w, r)
}

// handleUpdateEmail changes a student's email from the update form.
func (s *Server) handleUpdateEmail(w http.ResponseWriter, r *http.Request) {
	id, email, err := student.ValidateEmailUpdate(r.FormValue("student_id"), r.FormValue("new_email"))
	if err != nil {
		s.fail(w, validationMessage(err))
		redirectHome(w, r)
		return
	}

	err = s.store.UpdateEmail(mutationContext(r), id, email)
	switch {
	case err == nil:
		s.ok(w, "email updated")
	case errors.Is(err, student.ErrNotFound):
		s.fail(w, notFoundMessage(id))
	case errors.Is(err, student.ErrDuplicateEmail):
		s.fail(w, fmt.Sprintf("that email is already in use — “%s”", email))
	default:
		logging.FromContext(r.Context()).Error("update email failed", "student_id", id, "error", err)
		s.fail(w, fmt.Sprintf("db error (update): %v", err))
	}
	redirectHome(w, r)
}

// handleDelete removes a student from the delete form.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := student.ValidateID(r.FormValue("student_id"))
	if err != nil {
		s.fail(w, validationMessage(err))
		redirectHome(w, r)
		return
	}

	err = s.store.Delete(mutationContext(r), id)
	switch {
	case err == nil:
		s.ok(w, "student deleted")
	case errors.Is(err, student.ErrNotFound):
		s.fail(w, notFoundMessage(id))
	default:
		logging.FromContext(r.Context()).Error("delete student failed", "student_id", id, "error", err)
		s.fail(w, fmt.Sprintf("db error (delete): %v", err))
	}
	redirectHome(w, r)
}

// handleHistory renders the recent change-log entries.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", student.DefaultChangeLimit)

	entries, err := s.store.RecentChanges(r.Context(), limit)
	if err != nil {
		logging.FromContext(r.Context()).Warn("recent changes failed", "error", err)
		entries = nil
	}

	s.render(w, "history.html", historyData{Entries: entries})
}

// handleHealthz answers 200 while the database is reachable.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			logging.FromContext(r.Context()).Error("health check failed", "error", err)
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// ok flashes a success notice for the next index render.
func (s *Server) ok(w http.ResponseWriter, msg string) {
	s.flash.set(w, []flashMessage{{Text: "(+) " + msg, Category: "success"}})
}

// fail flashes an error notice for the next index render.
func (s *Server) fail(w http.ResponseWriter, msg string) {
	s.flash.set(w, []flashMessage{{Text: "(!) " + msg, Category: "danger"}})
}

// redirectHome sends the browser back to the index after a POST.
func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// mutationContext tags the request context with client info for the
// change log.
func mutationContext(r *http.Request) context.Context {
	return student.ContextWithClientInfo(r.Context(), clientIP(r), r.UserAgent())
}

// clientIP returns the request address without the port. TrustedRealIP
// has already replaced RemoteAddr for requests from trusted proxies.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// validationMessage renders a validation failure in the catalog the UI
// has always shown.
func validationMessage(err error) string {
	var ve student.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	switch ve.Code {
	case student.CodeMissingField:
		return ve.Field + " required"
	case student.CodeInvalidEmail:
		return fmt.Sprintf("email invalid — got “%s” → use name@domain.tld", ve.Value)
	case student.CodeInvalidDate:
		return fmt.Sprintf("enrollment_date invalid — got “%s” → use YYYY-MM-DD or leave blank", ve.Value)
	case student.CodeInvalidID:
		return fmt.Sprintf("student_id must be a positive integer — got “%s”", ve.Value)
	}
	return ve.Error()
}

// notFoundMessage names the id the mutation could not find.
func notFoundMessage(id int64) string {
	return fmt.Sprintf("no student with id %d → pick an id from the table", id)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
