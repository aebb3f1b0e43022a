package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// DailyCount holds the counters for one local day (YYYY-MM-DD).
type DailyCount struct {
	Day      string `json:"day"`
	Pickups  int    `json:"pickups"`
	Putdowns int    `json:"putdowns"`
}

// DailyRepository keeps per-day pickup and putdown totals.
type DailyRepository struct {
	db *sql.DB
}

// Daily returns the daily counts repository for this store.
func (s *Store) Daily() *DailyRepository {
	return &DailyRepository{db: s.db}
}

// Increment adds one to the counter for kind on day.
func (r *DailyRepository) Increment(day, kind string) error {
	var pickups, putdowns int
	switch kind {
	case "picked_up":
		pickups = 1
	case "put_down":
		putdowns = 1
	default:
		return fmt.Errorf("unknown event kind %q", kind)
	}

	_, err := r.db.Exec(
		`INSERT INTO daily_counts (day, pickups, putdowns) VALUES (?, ?, ?)
		 ON CONFLICT(day) DO UPDATE SET
			pickups = pickups + excluded.pickups,
			putdowns = putdowns + excluded.putdowns`,
		day, pickups, putdowns,
	)
	return err
}

// Get returns the counts for day. A day with no events has zero counts.
func (r *DailyRepository) Get(day string) (DailyCount, error) {
	c := DailyCount{Day: day}
	err := r.db.QueryRow(
		`SELECT pickups, putdowns FROM daily_counts WHERE day = ?`, day,
	).Scan(&c.Pickups, &c.Putdowns)
	if errors.Is(err, sql.ErrNoRows) {
		return c, nil
	}
	return c, err
}

// Recent returns the last n days that have counts, newest first.
func (r *DailyRepository) Recent(n int) ([]DailyCount, error) {
	rows, err := r.db.Query(
		`SELECT day, pickups, putdowns FROM daily_counts ORDER BY day DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailyCount
	for rows.Next() {
		var c DailyCount
		if err := rows.Scan(&c.Day, &c.Pickups, &c.Putdowns); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteAll clears every day.
func (r *DailyRepository) DeleteAll() error {
	_, err := r.db.Exec(`DELETE FROM daily_counts`)
	return err
}
