package student

// changelog.go records who changed what. Entries are written after the
// owning mutation commits and are strictly best-effort: a failed write
// is logged and swallowed, never surfaced to the caller. The log table
// keeps no foreign key to students so entries outlive deletion.

import (
	"context"
	"fmt"
	"time"

	"student-registry/internal/logging"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// DefaultChangeLimit caps history queries that pass no explicit limit.
const DefaultChangeLimit = 50

// ChangeAction labels a change-log entry.
type ChangeAction string

const (
	ChangeAdd         ChangeAction = "add"
	ChangeUpdateEmail ChangeAction = "update_email"
	ChangeDelete      ChangeAction = "delete"
)

// ChangeEntry is one row of the student_changes log.
type ChangeEntry struct {
	ID        string
	Action    ChangeAction
	StudentID int64
	Detail    string
	IPAddress string
	UserAgent string
	ChangedAt time.Time
}

const insertChangeSQL = `
	INSERT INTO student_changes (change_id, action, student_id, detail, ip_address, user_agent)
	VALUES ($1, $2, $3, $4, $5, $6)`

const recentChangesSQL = `
	SELECT change_id, action, student_id, detail, ip_address, user_agent, changed_at
	FROM student_changes
	ORDER BY changed_at DESC, change_id
	LIMIT $1`

// recordChange writes one change-log entry outside the mutation's
// transaction. Client IP and user agent ride in on the context when the
// web middleware put them there; console calls leave them empty.
func (s *Store) recordChange(ctx context.Context, action ChangeAction, studentID int64, detail string) {
	id := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	_, err := s.db.Exec(ctx, insertChangeSQL,
		id, string(action), studentID, detail,
		IPAddressFromContext(ctx), UserAgentFromContext(ctx))
	if err != nil {
		logging.FromContext(ctx).Warn("change log write failed",
			"action", string(action),
			"student_id", studentID,
			"error", err)
	}
}

// RecentChanges returns the latest change-log entries, newest first.
// A non-positive limit falls back to DefaultChangeLimit.
func (s *Store) RecentChanges(ctx context.Context, limit int) ([]ChangeEntry, error) {
	if limit <= 0 {
		limit = DefaultChangeLimit
	}

	rows, err := s.db.Query(ctx, recentChangesSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("recent changes: %w", err)
	}
	defer rows.Close()

	var entries []ChangeEntry
	for rows.Next() {
		var (
			e  ChangeEntry
			id pgtype.UUID
			ts pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &e.Action, &e.StudentID, &e.Detail, &e.IPAddress, &e.UserAgent, &ts); err != nil {
			return nil, fmt.Errorf("scan change entry: %w", err)
		}
		if id.Valid {
			e.ID = uuid.UUID(id.Bytes).String()
		}
		if ts.Valid {
			e.ChangedAt = ts.Time
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent changes: %w", err)
	}
	return entries, nil
}
