package repository

import (
	"context"
	"fmt"
)

// Timestamps are unix milliseconds so both dialects compare them the same way.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS scan_events (
		id        TEXT PRIMARY KEY,
		user_id   TEXT NOT NULL,
		ts_ms     BIGINT NOT NULL,
		mode      TEXT NOT NULL,
		outcome   TEXT NOT NULL,
		raw_text  TEXT,
		items     TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS scan_events_user_ts ON scan_events (user_id, ts_ms)`,
	`CREATE TABLE IF NOT EXISTS reward_events (
		id       TEXT PRIMARY KEY,
		user_id  TEXT NOT NULL,
		kind     TEXT NOT NULL,
		ts_ms    BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS reward_events_user_ts ON reward_events (user_id, ts_ms)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		user_id        TEXT PRIMARY KEY,
		active         BOOLEAN NOT NULL,
		expires_at_ms  BIGINT,
		updated_at_ms  BIGINT NOT NULL
	)`,
}

// Migrate creates the tables if they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if err := db.exec(ctx, stmt, []any{}); err != nil {
			db.logger.Error("repository.migrate.failed", "step", i, "error", err)
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	db.logger.Info("repository.migrate.ok", "steps", len(schema))
	return nil
}
