package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Migrate creates the raw-layer tables if they do not exist. Production
// schemas are managed outside this program; this is for local runs and tests.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	name := fmt.Sprintf("schema/%s.sql", d)
	b, err := schemaFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}

	if _, err := db.ExecContext(ctx, string(b)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
