package database

import "embed"

// MigrationFS embeds the SQL migrations applied by the migrate runner (cmd/migrate and tests).
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
