package migration

import "embed"

// Migrations ship inside the binary so a deploy cannot outrun its schema.
const migrationsDir = "migrations"

//go:embed migrations/*.up.sql
var embeddedMigrations embed.FS
