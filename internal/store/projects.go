package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	botErrors "github.com/focuslabs/focusbot/internal/errors"
)

// DefaultProjectName is assigned to a user's lazily created first project.
const DefaultProjectName = "default"

// Project groups a user's activities under a name and keeps running totals.
type Project struct {
	ID         string
	UserID     string
	Name       string
	TotalFocus int
	TotalRest  int
	CreatedAt  time.Time
}

const projectColumns = `id, user_id, name, total_focus, total_rest, created_at`

// GetOrCreateProject returns the user's project with the given name,
// creating it if missing.
func (s *Store) GetOrCreateProject(userID, name string) (*Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.getProjectByName(s.db, userID, name)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, botErrors.ErrNotFound) {
		return nil, err
	}

	p = &Project{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		CreatedAt: time.Now(),
	}
	_, err = s.db.Exec(
		`INSERT INTO projects (id, user_id, name, total_focus, total_rest, created_at) VALUES (?, ?, ?, 0, 0, ?)`,
		p.ID, p.UserID, p.Name, p.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return p, nil
}

// GetProject retrieves a project by ID.
func (s *Store) GetProject(id string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanProject(s.db.QueryRow(`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
}

// ListProjects returns the user's projects ordered by focus totals,
// most used first.
func (s *Store) ListProjects(userID string) ([]*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT `+projectColumns+` FROM projects WHERE user_id = ? ORDER BY total_focus DESC, name`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

type queryer interface {
	QueryRow(query string, args ...any) *sql.Row
}

func (s *Store) getProjectByName(q queryer, userID, name string) (*Project, error) {
	return scanProject(q.QueryRow(
		`SELECT `+projectColumns+` FROM projects WHERE user_id = ? AND name = ?`,
		userID, name,
	))
}

func scanProject(row rowScanner) (*Project, error) {
	p := &Project{}
	var createdAt int64
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.TotalFocus, &p.TotalRest, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, botErrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	p.CreatedAt = time.UnixMilli(createdAt)
	return p, nil
}

func totalColumn(kind string) string {
	if kind == ActivityRest {
		return "total_rest"
	}
	return "total_focus"
}

func adjustProjectTotal(tx *sql.Tx, projectID, kind string, delta int) error {
	if projectID == "" {
		return nil
	}
	col := totalColumn(kind)
	_, err := tx.Exec(`UPDATE projects SET `+col+` = `+col+` + ? WHERE id = ?`, delta, projectID)
	if err != nil {
		return fmt.Errorf("failed to adjust project total: %w", err)
	}
	return nil
}
