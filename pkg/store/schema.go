package store

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// CreateSchema creates the database schema if it doesn't exist.
func CreateSchema(db *sql.DB) error {
	if err := createSchemaVersionTable(db); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	if err := createDocumentsTable(db); err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}

	if err := createContentsTable(db); err != nil {
		return fmt.Errorf("creating contents table: %w", err)
	}

	if err := createAccessDocumentsTable(db); err != nil {
		return fmt.Errorf("creating access_documents table: %w", err)
	}

	return nil
}

func createSchemaVersionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count)
	if err != nil {
		return err
	}

	if count == 0 {
		_, err = db.Exec("INSERT INTO schema_version (version) VALUES (?)", SchemaVersion)
		return err
	}

	return nil
}

func createDocumentsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY NOT NULL,
			timestamp TEXT NOT NULL,
			path TEXT NOT NULL,
			title TEXT NOT NULL,
			type TEXT NOT NULL,
			size INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			modified_at TEXT NOT NULL,
			fields_json TEXT,
			access_control_json TEXT
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_documents_path ON documents(path)
	`)
	return err
}

func createContentsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS contents (
			id TEXT PRIMARY KEY NOT NULL REFERENCES documents(id),
			timestamp TEXT NOT NULL,
			attachment TEXT,
			body TEXT
		)
	`)
	return err
}

func createAccessDocumentsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS access_documents (
			id TEXT PRIMARY KEY NOT NULL,
			username TEXT NOT NULL,
			document_json TEXT NOT NULL
		)
	`)
	return err
}
