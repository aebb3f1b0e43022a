package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Events table - one row per confirmed pickup or putdown
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL CHECK(kind IN ('picked_up', 'put_down')),
			pickup_count INTEGER NOT NULL DEFAULT 0,
			confidence REAL NOT NULL DEFAULT 0,
			line TEXT NOT NULL DEFAULT '',
			personality TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,

		// Actions table - plugin actions to run when an event kind fires
		`CREATE TABLE IF NOT EXISTS actions (
			id TEXT PRIMARY KEY,
			event_kind TEXT NOT NULL CHECK(event_kind IN ('picked_up', 'put_down')),
			plugin_name TEXT NOT NULL,
			action_name TEXT NOT NULL,
			config TEXT NOT NULL DEFAULT '{}',
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Daily counts table - pickups and putdowns per local day
		`CREATE TABLE IF NOT EXISTS daily_counts (
			day TEXT PRIMARY KEY,
			pickups INTEGER NOT NULL DEFAULT 0,
			putdowns INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_event_kind ON actions(event_kind)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
