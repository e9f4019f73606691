package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	botErrors "github.com/focuslabs/focusbot/internal/errors"
)

// Contact statuses.
const (
	ContactNew       = "new"
	ContactAnswered  = "answered"
	ContactRejected  = "rejected"
	ContactDuplicate = "duplicate"
)

// Contact is a free-text feedback message from a user.
type Contact struct {
	ID        string
	UserID    string
	Message   string
	Answer    string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

const contactColumns = `id, user_id, message, answer, status, created_at, updated_at`

// CreateContact inserts a new contact message with status new.
func (s *Store) CreateContact(c *Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = ContactNew
	}
	c.CreatedAt = time.UnixMilli(now)
	c.UpdatedAt = time.UnixMilli(now)

	_, err := s.db.Exec(`
	INSERT INTO contacts (`+contactColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Message,
		sql.NullString{String: c.Answer, Valid: c.Answer != ""},
		c.Status, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}
	return nil
}

// GetContact retrieves a contact by ID.
func (s *Store) GetContact(id string) (*Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanContact(s.db.QueryRow(`SELECT `+contactColumns+` FROM contacts WHERE id = ?`, id))
}

// ListContacts returns contacts newest first, optionally filtered by status.
func (s *Store) ListContacts(status string, limit int) ([]*Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + contactColumns + ` FROM contacts`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// AnswerContact stores the admin answer and flips the status to answered.
func (s *Store) AnswerContact(id, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE contacts SET answer = ?, status = ?, updated_at = ? WHERE id = ?`,
		answer, ContactAnswered, time.Now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to answer contact: %w", err)
	}
	return requireRow(res)
}

// SetContactStatus updates a contact's status (rejected, duplicate).
func (s *Store) SetContactStatus(id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE contacts SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set contact status: %w", err)
	}
	return requireRow(res)
}

func scanContact(row rowScanner) (*Contact, error) {
	c := &Contact{}
	var answer sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(&c.ID, &c.UserID, &c.Message, &answer, &c.Status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, botErrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}

	c.Answer = answer.String
	c.CreatedAt = time.UnixMilli(createdAt)
	c.UpdatedAt = time.UnixMilli(updatedAt)
	return c, nil
}
