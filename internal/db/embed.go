package db

import "embed"

// EmbedMigrations holds the catalog's SQL migrations.
//
//go:embed migrations/*.sql
var EmbedMigrations embed.FS
