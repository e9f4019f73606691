package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	botErrors "github.com/focuslabs/focusbot/internal/errors"
)

// Broadcast categories and statuses.
const (
	BroadcastAll = "all"

	BroadcastSending = "sending"
	BroadcastSent    = "sent"
	BroadcastError   = "error"
)

// Broadcast is a bulk announcement delivered to users.
type Broadcast struct {
	ID        string
	Category  string
	Status    string
	Title     string
	Message   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

const broadcastColumns = `id, category, status, title, message, created_at, updated_at`

// CreateBroadcast inserts a new broadcast in sending state.
func (s *Store) CreateBroadcast(b *Broadcast) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.Category == "" {
		b.Category = BroadcastAll
	}
	if b.Status == "" {
		b.Status = BroadcastSending
	}
	b.CreatedAt = time.UnixMilli(now)
	b.UpdatedAt = time.UnixMilli(now)

	_, err := s.db.Exec(`
	INSERT INTO broadcasts (`+broadcastColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Category, b.Status, b.Title, b.Message, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create broadcast: %w", err)
	}
	return nil
}

// GetBroadcast retrieves a broadcast by ID.
func (s *Store) GetBroadcast(id string) (*Broadcast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanBroadcast(s.db.QueryRow(`SELECT `+broadcastColumns+` FROM broadcasts WHERE id = ?`, id))
}

// ListBroadcasts returns broadcasts with the given status, oldest first
// so a delivery worker drains them in submission order.
func (s *Store) ListBroadcasts(status string, limit int) ([]*Broadcast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + broadcastColumns + ` FROM broadcasts`
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
		return nil, fmt.Errorf("failed to list broadcasts: %w", err)
	}
	defer rows.Close()

	var broadcasts []*Broadcast
	for rows.Next() {
		b, err := scanBroadcast(rows)
		if err != nil {
			return nil, err
		}
		broadcasts = append(broadcasts, b)
	}
	return broadcasts, rows.Err()
}

// SetBroadcastStatus updates a broadcast's delivery status.
func (s *Store) SetBroadcastStatus(id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE broadcasts SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set broadcast status: %w", err)
	}
	return requireRow(res)
}

func scanBroadcast(row rowScanner) (*Broadcast, error) {
	b := &Broadcast{}
	var createdAt, updatedAt int64

	err := row.Scan(&b.ID, &b.Category, &b.Status, &b.Title, &b.Message, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, botErrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get broadcast: %w", err)
	}

	b.CreatedAt = time.UnixMilli(createdAt)
	b.UpdatedAt = time.UnixMilli(updatedAt)
	return b, nil
}
