package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	botErrors "github.com/focuslabs/focusbot/internal/errors"
)

// Job statuses.
const (
	JobPending   = "pending"
	JobFired     = "fired"
	JobCancelled = "cancelled"
)

// Job is a persisted scheduler entry. Its ID doubles as the durable
// cancellation handle stored on the activity, so handles survive restart.
type Job struct {
	ID         string
	FireAt     time.Time
	UserID     string
	ActivityID string
	Kind       string
	Status     string
	CreatedAt  time.Time
}

const jobColumns = `id, fire_at, user_id, activity_id, kind, status, created_at`

// CreateJob persists a pending scheduler job.
func (s *Store) CreateJob(j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j.Status == "" {
		j.Status = JobPending
	}
	j.CreatedAt = time.Now()

	_, err := s.db.Exec(`
	INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.FireAt.UnixMilli(), j.UserID, j.ActivityID, j.Kind, j.Status, j.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by handle.
func (s *Store) GetJob(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanJob(s.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
}

// MarkJobFired transitions a pending job to fired. Returns false if the
// job was already fired or cancelled, giving at-most-once execution.
func (s *Store) MarkJobFired(id string) (bool, error) {
	return s.transitionJob(id, JobFired)
}

// CancelJob transitions a pending job to cancelled. Returns false if
// the job already fired (or was cancelled); callers treat that as a
// defined no-op.
func (s *Store) CancelJob(id string) (bool, error) {
	return s.transitionJob(id, JobCancelled)
}

func (s *Store) transitionJob(id, status string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE jobs SET status = ? WHERE id = ? AND status = ?`,
		status, id, JobPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListPendingJobs returns pending jobs ordered by fire time, for rearm
// on startup.
func (s *Store) ListPendingJobs() ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT ` + jobColumns + ` FROM jobs WHERE status = '` + JobPending + `' ORDER BY fire_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// CountPendingJobs returns the number of pending jobs, for metrics.
func (s *Store) CountPendingJobs() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM jobs WHERE status = ?`, JobPending).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending jobs: %w", err)
	}
	return n, nil
}

func scanJob(row rowScanner) (*Job, error) {
	j := &Job{}
	var fireAt, createdAt int64

	err := row.Scan(&j.ID, &fireAt, &j.UserID, &j.ActivityID, &j.Kind, &j.Status, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, botErrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	j.FireAt = time.UnixMilli(fireAt)
	j.CreatedAt = time.UnixMilli(createdAt)
	return j, nil
}
