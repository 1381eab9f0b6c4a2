package database

import "errors"

// Domain-specific errors for database operations.
var (
	// ErrEmptyPath is returned by Open when no database path is configured.
	ErrEmptyPath = errors.New("database: path is empty")

	// ErrNoDownMigration is returned by MigrateDown when the latest
	// migration has no .down.sql counterpart.
	ErrNoDownMigration = errors.New("database: migration has no down SQL")
)
