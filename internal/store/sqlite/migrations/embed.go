package migrations

import "embed"

// FS contains the embedded SQLite migrations for the document store.
//
//go:embed *.sql
var FS embed.FS
