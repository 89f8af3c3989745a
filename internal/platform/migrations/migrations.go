// Package migrations applies the embedded Postgres schema.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed sql/*.sql
var files embed.FS

// Apply executes every embedded migration in file name order. Statements are
// idempotent so Apply runs on every start.
func Apply(ctx context.Context, db *sql.DB) error {
	for _, name := range Names() {
		body, err := files.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		stmt := strings.TrimSpace(string(body))
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

// Names returns the embedded migration names in apply order.
func Names() []string {
	names, _ := fs.Glob(files, "sql/*.sql")
	sort.Strings(names)
	return names
}
