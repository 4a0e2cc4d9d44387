// Package migrations contains the ordered schema migrations for the
// whitelist database.
package migrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations() //nolint:gochecknoglobals // -
