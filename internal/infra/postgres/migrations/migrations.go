package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds every schema and seed migration, applied in file name order.
var Migrations = migrate.NewMigrations()
