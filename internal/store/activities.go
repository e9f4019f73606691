package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	botErrors "github.com/focuslabs/focusbot/internal/errors"
)

// Activity kinds.
const (
	ActivityFocus = "focus"
	ActivityRest  = "rest"
)

// Activity statuses. An activity reaches exactly one terminal status:
// finished (auto-finish fired) or unfinished (stopped by the user).
const (
	ActivityStarted    = "started"
	ActivityFinished   = "finished"
	ActivityUnfinished = "unfinished"
)

// Activity is a timed focus or rest interval.
type Activity struct {
	ID        string
	UserID    string
	Kind      string
	ProjectID string
	Status    string
	StartedAt time.Time
	EndedAt   *time.Time
	Duration  time.Duration
	JobID     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RealDuration returns the elapsed wall time, second precision, or zero
// if the activity has not ended.
func (a *Activity) RealDuration() time.Duration {
	if a.EndedAt == nil {
		return 0
	}
	return a.EndedAt.Sub(a.StartedAt).Truncate(time.Second)
}

// ActivityFilter narrows activity queries.
type ActivityFilter struct {
	UserID string
	Kind   string
	Status string
	From   time.Time
	To     time.Time
	Limit  int
}

const activityColumns = `id, user_id, kind, project_id, status, started_at,
	ended_at, duration_secs, job_id, created_at, updated_at`

// CreateActivity inserts a new activity and increments the owning
// project's running total in the same transaction.
func (s *Store) CreateActivity(a *Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	a.CreatedAt = time.UnixMilli(now)
	a.UpdatedAt = time.UnixMilli(now)
	if a.Status == "" {
		a.Status = ActivityStarted
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	var endedAt sql.NullInt64
	if a.EndedAt != nil {
		endedAt = sql.NullInt64{Int64: a.EndedAt.UnixMilli(), Valid: true}
	}

	_, err = tx.Exec(`
	INSERT INTO activities (`+activityColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Kind,
		sql.NullString{String: a.ProjectID, Valid: a.ProjectID != ""},
		a.Status, a.StartedAt.UnixMilli(), endedAt,
		int64(a.Duration.Seconds()),
		sql.NullString{String: a.JobID, Valid: a.JobID != ""},
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}

	if err := adjustProjectTotal(tx, a.ProjectID, a.Kind, +1); err != nil {
		return err
	}

	return tx.Commit()
}

// GetActivity retrieves an activity by ID.
func (s *Store) GetActivity(id string) (*Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanActivity(s.db.QueryRow(`SELECT `+activityColumns+` FROM activities WHERE id = ?`, id))
}

// SetActivityJob records the scheduler handle on the activity.
func (s *Store) SetActivityJob(id, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE activities SET job_id = ?, updated_at = ? WHERE id = ?`,
		jobID, time.Now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set activity job: %w", err)
	}
	return requireRow(res)
}

// FinishActivityIfStarted transitions a started activity to the given
// terminal status. Returns false if the activity was missing or already
// terminal, so exactly one of a racing stop and auto-finish wins.
func (s *Store) FinishActivityIfStarted(id, status string, endedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE activities SET status = ?, ended_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		status, endedAt.UnixMilli(), time.Now().UnixMilli(), id, ActivityStarted,
	)
	if err != nil {
		return false, fmt.Errorf("failed to finish activity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ReassignActivityProject moves an activity to another project,
// decrementing the old total and incrementing the new one atomically.
func (s *Store) ReassignActivityProject(id, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	var kind string
	var oldProject sql.NullString
	err = tx.QueryRow(`SELECT kind, project_id FROM activities WHERE id = ?`, id).Scan(&kind, &oldProject)
	if errors.Is(err, sql.ErrNoRows) {
		return botErrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read activity: %w", err)
	}

	if oldProject.String == projectID {
		return nil
	}

	if err := adjustProjectTotal(tx, oldProject.String, kind, -1); err != nil {
		return err
	}
	if err := adjustProjectTotal(tx, projectID, kind, +1); err != nil {
		return err
	}

	_, err = tx.Exec(
		`UPDATE activities SET project_id = ?, updated_at = ? WHERE id = ?`,
		sql.NullString{String: projectID, Valid: projectID != ""},
		time.Now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to reassign activity: %w", err)
	}

	return tx.Commit()
}

// DeleteActivity removes an activity and decrements the project total
// in the same transaction. Only the admin surface deletes activities.
func (s *Store) DeleteActivity(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	var kind string
	var projectID sql.NullString
	err = tx.QueryRow(`SELECT kind, project_id FROM activities WHERE id = ?`, id).Scan(&kind, &projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return botErrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read activity: %w", err)
	}

	if err := adjustProjectTotal(tx, projectID.String, kind, -1); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM activities WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete activity: %w", err)
	}

	return tx.Commit()
}

// ListActivities returns activities matching the filter, newest first.
func (s *Store) ListActivities(f ActivityFilter) ([]*Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + activityColumns + ` FROM activities WHERE 1=1`
	args := []any{}
	if f.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, f.UserID)
	}
	if f.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, f.Kind)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if !f.From.IsZero() {
		query += ` AND started_at >= ?`
		args = append(args, f.From.UnixMilli())
	}
	if !f.To.IsZero() {
		query += ` AND started_at < ?`
		args = append(args, f.To.UnixMilli())
	}
	query += ` ORDER BY started_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var activities []*Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

// CountActivities counts activities by kind and/or status.
func (s *Store) CountActivities(kind, status string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT COUNT(*) FROM activities WHERE 1=1`
	args := []any{}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, kind)
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}

	var n int
	if err := s.db.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count activities: %w", err)
	}
	return n, nil
}

func scanActivity(row rowScanner) (*Activity, error) {
	a := &Activity{}
	var projectID, jobID sql.NullString
	var startedAt, durationSecs, createdAt, updatedAt int64
	var endedAt sql.NullInt64

	err := row.Scan(
		&a.ID, &a.UserID, &a.Kind, &projectID, &a.Status,
		&startedAt, &endedAt, &durationSecs, &jobID, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, botErrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}

	a.ProjectID = projectID.String
	a.JobID = jobID.String
	a.StartedAt = time.UnixMilli(startedAt)
	if endedAt.Valid {
		t := time.UnixMilli(endedAt.Int64)
		a.EndedAt = &t
	}
	a.Duration = time.Duration(durationSecs) * time.Second
	a.CreatedAt = time.UnixMilli(createdAt)
	a.UpdatedAt = time.UnixMilli(updatedAt)
	return a, nil
}
