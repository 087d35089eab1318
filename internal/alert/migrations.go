package alert

import (
	"database/sql"

	"github.com/HerbHall/driftwatch/pkg/plugin"
)

// migrations returns the Alert module's database migrations.
func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create alert tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS alerts (
						id         TEXT PRIMARY KEY,
						name       TEXT NOT NULL,
						label      TEXT NOT NULL DEFAULT '',
						enabled    INTEGER NOT NULL DEFAULT 1,
						config     TEXT NOT NULL,
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,

					`CREATE TABLE IF NOT EXISTS alert_breaches (
						id          TEXT PRIMARY KEY,
						alert_id    TEXT NOT NULL REFERENCES alerts(id) ON DELETE CASCADE,
						value       REAL,
						message     TEXT NOT NULL DEFAULT '',
						indices     TEXT NOT NULL DEFAULT '[]',
						detected_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						resolved_at DATETIME
					)`,
					`CREATE INDEX IF NOT EXISTS idx_alert_breaches_alert ON alert_breaches(alert_id)`,
					`CREATE INDEX IF NOT EXISTS idx_alert_breaches_detected ON alert_breaches(detected_at)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
