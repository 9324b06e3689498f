package database

import "embed"

// EmbeddedMigrations holds the SQLite schema. Use fs.Sub(EmbeddedMigrations,
// "migrations") to get a directory-rooted FS for New.
//
//go:embed migrations/*.sql
var EmbeddedMigrations embed.FS
