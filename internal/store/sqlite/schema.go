package sqlite

const (
	ledgerExistsQuery = `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_migrations'`

	countDocumentsQuery = `SELECT COUNT(*) FROM documents`

	// Only one document is surfaced at a time: the oldest row wins.
	firstDocumentQuery = `SELECT doc FROM documents ORDER BY id LIMIT 1`
)
