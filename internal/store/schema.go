package store

// Names shared by the database/sql store and the blob importer.
const (
	DocumentsTable = "documents"
	DocumentColumn = "doc"
)
