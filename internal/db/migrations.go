package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS analysis_audits (
		id              BIGSERIAL PRIMARY KEY,
		request_id      TEXT NOT NULL,
		provider        TEXT NOT NULL,
		filename        TEXT,
		detection_count INT NOT NULL DEFAULT 0,
		counts          JSONB,
		outcome         TEXT NOT NULL,
		error_kind      TEXT,
		duration_ms     BIGINT NOT NULL DEFAULT 0,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_analysis_audits_request_id ON analysis_audits(request_id);`,
	`CREATE INDEX IF NOT EXISTS idx_analysis_audits_created_at ON analysis_audits(created_at);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
