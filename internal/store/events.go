package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Event is a persisted pickup or putdown.
type Event struct {
	ID          string
	Kind        string
	PickupCount int
	Confidence  float64
	Line        string
	Personality string
	CreatedAt   time.Time
}

// EventRepository stores the event log.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Create inserts e. A missing ID is generated and a zero CreatedAt is set
// to now. Timestamps are stored as unix milliseconds.
func (r *EventRepository) Create(e *Event) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO events (id, kind, pickup_count, confidence, line, personality, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Kind, e.PickupCount, e.Confidence, e.Line, e.Personality, e.CreatedAt.UnixMilli(),
	)
	return err
}

// List returns up to limit events, newest first. limit <= 0 returns all.
func (r *EventRepository) List(limit int) ([]*Event, error) {
	q := `SELECT id, kind, pickup_count, confidence, line, personality, created_at
		  FROM events ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		e := &Event{}
		var ms int64
		if err := rows.Scan(&e.ID, &e.Kind, &e.PickupCount, &e.Confidence, &e.Line, &e.Personality, &ms); err != nil {
			return nil, err
		}
		e.CreatedAt = time.UnixMilli(ms)
		out = append(out, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// CountSince counts events of kind created at or after since.
func (r *EventRepository) CountSince(kind string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM events WHERE kind = ? AND created_at >= ?`,
		kind, since.UnixMilli(),
	).Scan(&n)
	return n, err
}

// DeleteAll removes every event.
func (r *EventRepository) DeleteAll() error {
	_, err := r.db.Exec(`DELETE FROM events`)
	return err
}
