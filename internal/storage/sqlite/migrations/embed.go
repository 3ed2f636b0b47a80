package migrations

import "embed"

// FS contains embedded SQLite migrations for deck and session storage.
//
//go:embed *.sql
var FS embed.FS
