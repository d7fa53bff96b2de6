package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "items: recommendable catalog entries with aggregate weight",
		SQL: `
CREATE TABLE items (
    id             INTEGER PRIMARY KEY,
    title          TEXT NOT NULL,
    description    TEXT,
    category       TEXT NOT NULL,
    image_urls     TEXT NOT NULL DEFAULT '[]',
    is_public      INTEGER NOT NULL DEFAULT 1,
    owner_id       TEXT NOT NULL,

    -- Running sum of every user's weight delta
    overall_weight REAL NOT NULL DEFAULT 0,

    created_at     INTEGER NOT NULL,
    updated_at     INTEGER NOT NULL
);

CREATE INDEX idx_items_category ON items(category, is_public);
CREATE INDEX idx_items_weight   ON items(overall_weight DESC);
`,
	},
	{
		Version:     2,
		Description: "feedback: per-(user, item) preference score and reminder countdown",
		SQL: `
CREATE TABLE feedback (
    id                       INTEGER PRIMARY KEY,
    user_id                  TEXT NOT NULL,
    item_id                  INTEGER NOT NULL,
    interaction_weight       REAL NOT NULL DEFAULT 0 CHECK (interaction_weight BETWEEN -100 AND 100),
    reminder_countdown_hours REAL NOT NULL DEFAULT 0 CHECK (reminder_countdown_hours >= 0),
    last_interaction_type    TEXT CHECK (last_interaction_type IN ('favorite', 'like', 'indifferent', 'dislike', 'report')),
    last_recalculated_at     INTEGER NOT NULL,
    comment                  TEXT,
    created_at               INTEGER NOT NULL,
    updated_at               INTEGER NOT NULL,

    UNIQUE (user_id, item_id),
    FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE
);

CREATE INDEX idx_feedback_user ON feedback(user_id);
CREATE INDEX idx_feedback_type ON feedback(user_id, last_interaction_type);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
