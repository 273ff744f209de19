// Package audit keeps a local operational record of reservation
// attempts. It is a log, not the slot store: the remote store stays the
// source of truth for slot state.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kevcor13/client-interface1/internal/events"
)

// Attempt is one recorded commit attempt.
type Attempt struct {
	ID              int64
	SlotID          string
	SlotDate        string
	SlotTime        string
	ClientName      string
	ClientEmail     string
	RemoteInterview bool
	Outcome         string
	Reason          string
	CreatedAt       time.Time
}

// Store persists attempts to sqlite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the audit database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS booking_attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slot_id TEXT NOT NULL,
		slot_date TEXT NOT NULL,
		slot_time TEXT NOT NULL,
		client_name TEXT NOT NULL,
		client_email TEXT NOT NULL,
		remote_interview INTEGER NOT NULL DEFAULT 0,
		outcome TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_attempts_created ON booking_attempts(created_at);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Record inserts one attempt.
func (s *Store) Record(ctx context.Context, a Attempt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO booking_attempts
			(slot_id, slot_date, slot_time, client_name, client_email, remote_interview, outcome, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.SlotID, a.SlotDate, a.SlotTime, a.ClientName, a.ClientEmail,
		a.RemoteInterview, a.Outcome, a.Reason,
	)
	return err
}

// List returns attempts newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, slot_id, slot_date, slot_time, client_name, client_email,
		       remote_interview, outcome, reason, created_at
		FROM booking_attempts ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.ID, &a.SlotID, &a.SlotDate, &a.SlotTime,
			&a.ClientName, &a.ClientEmail, &a.RemoteInterview,
			&a.Outcome, &a.Reason, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// HandleEvent records booking.confirmed and booking.failed events. It
// satisfies the event bus handler signature so the store can subscribe
// directly.
func (s *Store) HandleEvent(e events.Event) error {
	var payload events.BookingAttempt
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Record(ctx, Attempt{
		SlotID:          payload.SlotID,
		SlotDate:        payload.SlotDate,
		SlotTime:        payload.SlotTime,
		ClientName:      payload.ClientName,
		ClientEmail:     payload.ClientEmail,
		RemoteInterview: payload.RemoteInterview,
		Outcome:         payload.Outcome,
		Reason:          payload.Reason,
	})
}
