package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is the ordered schema history; each file registers itself by name.
var Migrations = migrate.NewMigrations()
