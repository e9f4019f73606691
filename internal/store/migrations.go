package store

import (
	"fmt"
)

func (s *Store) migrate() error {
	return s.migrateV1()
}

func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		username TEXT NOT NULL DEFAULT '',
		focus_length_secs INTEGER NOT NULL DEFAULT 1500,
		rest_length_secs INTEGER NOT NULL DEFAULT 300,
		big_rest_length_secs INTEGER NOT NULL DEFAULT 900,
		session_count INTEGER NOT NULL DEFAULT 4,
		current_project_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		state_stack TEXT NOT NULL DEFAULT '[]',
		current_focus_id TEXT NOT NULL DEFAULT '',
		current_rest_id TEXT NOT NULL DEFAULT '',
		first_focus_done INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_status ON users(status);

	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		total_focus INTEGER NOT NULL DEFAULT 0,
		total_rest INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		UNIQUE (user_id, name)
	);

	CREATE INDEX IF NOT EXISTS idx_projects_user ON projects(user_id);

	CREATE TABLE IF NOT EXISTS activities (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		project_id TEXT,
		status TEXT NOT NULL DEFAULT 'started',
		started_at INTEGER NOT NULL,
		ended_at INTEGER,
		duration_secs INTEGER NOT NULL,
		job_id TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_activities_user ON activities(user_id, kind, started_at);
	CREATE INDEX IF NOT EXISTS idx_activities_status ON activities(status);

	CREATE TABLE IF NOT EXISTS contacts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		message TEXT NOT NULL,
		answer TEXT,
		status TEXT NOT NULL DEFAULT 'new',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_contacts_status ON contacts(status);

	CREATE TABLE IF NOT EXISTS broadcasts (
		id TEXT PRIMARY KEY,
		category TEXT NOT NULL DEFAULT 'all',
		status TEXT NOT NULL DEFAULT 'sending',
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_broadcasts_status ON broadcasts(status);

	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		fire_at INTEGER NOT NULL,
		user_id TEXT NOT NULL,
		activity_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status, fire_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate v1: %w", err)
	}
	return nil
}
