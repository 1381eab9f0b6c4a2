// Package migrations embeds the command log schema into the binary.
package migrations

import "embed"

// FS holds every *.sql migration at its root, for database.DB.Migrate.
//
//go:embed *.sql
var FS embed.FS
