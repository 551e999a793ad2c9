package correlation

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// migration represents one schema step, applied in order and tracked through
// PRAGMA user_version.
type migration struct {
	up          func(*sql.Tx) error
	description string
	version     int
}

var migrations = []migration{
	{
		version:     1,
		description: "Initial correlations schema",
		up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS correlations (
					id TEXT PRIMARY KEY,
					sender TEXT NOT NULL,
					body TEXT NOT NULL,
					received_at DATETIME NOT NULL,
					amount_minor INTEGER,
					direction TEXT,
					ending_hint TEXT NOT NULL DEFAULT '',
					transaction_id TEXT NOT NULL DEFAULT '',
					account_id TEXT NOT NULL DEFAULT '',
					idempotency_key TEXT NOT NULL DEFAULT '',
					is_primary INTEGER NOT NULL DEFAULT 0,
					matched_id TEXT NOT NULL DEFAULT '',
					fee_applied INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_correlations_sender ON correlations(sender, is_primary, fee_applied)`,
				`CREATE INDEX idx_correlations_received_at ON correlations(received_at)`,
			}
			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

// migrate brings the database schema up to the latest version.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration transaction: %w", err)
		}

		if err := m.up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.description, err)
		}

		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to set schema version %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}

		slog.Info("applied correlation store migration",
			"version", m.version,
			"description", m.description)
	}

	return nil
}
