package postgres

import (
	"context"
	"fmt"
)

// Migrate creates the collection tables and their indexes if missing.
func Migrate(ctx context.Context, db DBTX) error {
	for _, table := range []string{ContentTable, ContentVersionTable, PublishedContentTable} {
		statements := []string{
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					id TEXT PRIMARY KEY,
					content_id TEXT NOT NULL,
					parent_path TEXT,
					is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
					doc JSONB NOT NULL
				)`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_content_id ON %s (content_id)`, table, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_parent_path ON %s (parent_path text_pattern_ops)`, table, table),
		}
		for _, stmt := range statements {
			if _, err := db.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migrate %s: %w", table, err)
			}
		}
	}
	return nil
}
