// Package history persists per-user conversation messages and the
// processed-message ids used to drop duplicate platform deliveries.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed conversation history.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the history database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores one conversation message for a user.
func (s *Store) Append(userID, role, content string) error {
	_, err := s.db.Exec(
		`INSERT INTO messages (user_id, role, content, timestamp) VALUES (?, ?, ?, ?)`,
		userID, role, content, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// Recent returns the most recent limit messages for a user in
// chronological order.
func (s *Store) Recent(userID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, user_id, role, content, timestamp FROM (
			SELECT id, user_id, role, content, timestamp FROM messages
			WHERE user_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.UserID, &r.Role, &r.Content, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ClearUser removes all stored history for a user.
func (s *Store) ClearUser(userID string) error {
	_, err := s.db.Exec(`DELETE FROM messages WHERE user_id = ?`, userID)
	return err
}

// MarkProcessed records a platform message id. Returns true if the id was
// new, false if it was already seen (a platform redelivery).
func (s *Store) MarkProcessed(msgID string) (bool, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO processed_messages (msg_id) VALUES (?)`, msgID,
	)
	if err != nil {
		return false, fmt.Errorf("mark processed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PruneProcessed drops dedup entries older than maxAge. The platform only
// redelivers within a short window, so old ids are dead weight.
func (s *Store) PruneProcessed(maxAge time.Duration) error {
	_, err := s.db.Exec(
		`DELETE FROM processed_messages WHERE seen_at <= datetime('now', ?)`,
		fmt.Sprintf("-%d seconds", int64(maxAge.Seconds())),
	)
	return err
}
