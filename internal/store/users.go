package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	botErrors "github.com/focuslabs/focusbot/internal/errors"
	"github.com/focuslabs/focusbot/internal/state"
)

// User lifecycle statuses.
const (
	UserActive = "active"
	UserBanned = "banned"
)

// Default session settings for new users.
const (
	DefaultFocusLength   = 25 * time.Minute
	DefaultRestLength    = 5 * time.Minute
	DefaultBigRestLength = 15 * time.Minute
	DefaultSessionCount  = 4
)

// User is a bot user together with its dialogue state.
type User struct {
	ID               string
	FirstName        string
	LastName         string
	Username         string
	FocusLength      time.Duration
	RestLength       time.Duration
	BigRestLength    time.Duration
	SessionCount     int
	CurrentProjectID string
	Status           string
	Stack            state.Stack
	CurrentFocusID   string
	CurrentRestID    string
	FirstFocusDone   bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Name returns the user's display name.
func (u *User) Name() string {
	parts := make([]string, 0, 2)
	if u.FirstName != "" {
		parts = append(parts, u.FirstName)
	}
	if u.LastName != "" {
		parts = append(parts, u.LastName)
	}
	return strings.Join(parts, " ")
}

const userColumns = `id, first_name, last_name, username,
	focus_length_secs, rest_length_secs, big_rest_length_secs, session_count,
	current_project_id, status, state_stack, current_focus_id, current_rest_id,
	first_focus_done, created_at, updated_at`

// CreateUser inserts a new user with default settings.
func (s *Store) CreateUser(u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	if u.Status == "" {
		u.Status = UserActive
	}
	if u.FocusLength == 0 {
		u.FocusLength = DefaultFocusLength
	}
	if u.RestLength == 0 {
		u.RestLength = DefaultRestLength
	}
	if u.BigRestLength == 0 {
		u.BigRestLength = DefaultBigRestLength
	}
	if u.SessionCount == 0 {
		u.SessionCount = DefaultSessionCount
	}
	u.CreatedAt = time.UnixMilli(now)
	u.UpdatedAt = time.UnixMilli(now)

	stack, err := marshalStack(u.Stack)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO users (` + userColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.Exec(query,
		u.ID, u.FirstName, u.LastName, u.Username,
		int64(u.FocusLength.Seconds()), int64(u.RestLength.Seconds()),
		int64(u.BigRestLength.Seconds()), u.SessionCount,
		u.CurrentProjectID, u.Status, stack, u.CurrentFocusID, u.CurrentRestID,
		boolToInt(u.FirstFocusDone), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID. Returns ErrNotFound if absent.
func (s *Store) GetUser(id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// ListUsers returns users ordered by creation time, optionally filtered by status.
func (s *Store) ListUsers(status string, limit int) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + userColumns + ` FROM users`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := s.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CountUsers returns the total number of users.
func (s *Store) CountUsers() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// SetUserStack persists the dialogue state stack immediately, so a
// concurrent menu render observes the latest value.
func (s *Store) SetUserStack(userID string, st state.Stack) error {
	stack, err := marshalStack(st)
	if err != nil {
		return err
	}
	return s.updateUserField(userID, `state_stack = ?`, stack)
}

// SetUserStatus updates the user lifecycle status (active/banned).
func (s *Store) SetUserStatus(userID, status string) error {
	return s.updateUserField(userID, `status = ?`, status)
}

// SetUserSettings updates the configurable durations and session count.
func (s *Store) SetUserSettings(userID string, focus, rest, bigRest time.Duration, sessions int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `UPDATE users SET focus_length_secs = ?, rest_length_secs = ?,
		big_rest_length_secs = ?, session_count = ?, updated_at = ? WHERE id = ?`
	res, err := s.db.Exec(query,
		int64(focus.Seconds()), int64(rest.Seconds()), int64(bigRest.Seconds()),
		sessions, time.Now().UnixMilli(), userID)
	if err != nil {
		return fmt.Errorf("failed to update user settings: %w", err)
	}
	return requireRow(res)
}

// SetCurrentProject updates the user's current project pointer.
func (s *Store) SetCurrentProject(userID, projectID string) error {
	return s.updateUserField(userID, `current_project_id = ?`, projectID)
}

// SetFirstFocusDone durably records that the user completed a first
// focus activity. Independent of the dialogue stack, so it survives Clear.
func (s *Store) SetFirstFocusDone(userID string) error {
	return s.updateUserField(userID, `first_focus_done = 1`)
}

// SetCurrentActivity sets the current pointer for a kind. Empty id clears it.
func (s *Store) SetCurrentActivity(userID, kind, activityID string) error {
	return s.updateUserField(userID, currentPointerColumn(kind)+` = ?`, activityID)
}

// ClearCurrentActivityIf clears the current pointer for a kind only if it
// still references activityID. Returns true if the pointer was cleared.
// This is the optimistic check that keeps a stale auto-finish callback
// from clobbering a newer activity's pointer.
func (s *Store) ClearCurrentActivityIf(userID, kind, activityID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := currentPointerColumn(kind)
	query := `UPDATE users SET ` + col + ` = '', updated_at = ? WHERE id = ? AND ` + col + ` = ?`
	res, err := s.db.Exec(query, time.Now().UnixMilli(), userID, activityID)
	if err != nil {
		return false, fmt.Errorf("failed to clear current pointer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func currentPointerColumn(kind string) string {
	if kind == ActivityRest {
		return "current_rest_id"
	}
	return "current_focus_id"
}

func (s *Store) updateUserField(userID, setClause string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `UPDATE users SET ` + setClause + `, updated_at = ? WHERE id = ?`
	args = append(args, time.Now().UnixMilli(), userID)
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return botErrors.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanUser(row rowScanner) (*User, error) {
	u := &User{}
	var focusSecs, restSecs, bigRestSecs, createdAt, updatedAt int64
	var firstFocus int
	var stack string

	err := row.Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Username,
		&focusSecs, &restSecs, &bigRestSecs, &u.SessionCount,
		&u.CurrentProjectID, &u.Status, &stack, &u.CurrentFocusID, &u.CurrentRestID,
		&firstFocus, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, botErrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u.FocusLength = time.Duration(focusSecs) * time.Second
	u.RestLength = time.Duration(restSecs) * time.Second
	u.BigRestLength = time.Duration(bigRestSecs) * time.Second
	u.FirstFocusDone = firstFocus != 0
	u.CreatedAt = time.UnixMilli(createdAt)
	u.UpdatedAt = time.UnixMilli(updatedAt)

	if err := json.Unmarshal([]byte(stack), &u.Stack); err != nil {
		return nil, fmt.Errorf("failed to decode state stack: %w", err)
	}
	return u, nil
}

func marshalStack(st state.Stack) (string, error) {
	if st == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("failed to encode state stack: %w", err)
	}
	return string(raw), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
