package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

// driverName is the database/sql name registered by modernc.org/sqlite.
const driverName = "sqlite"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a SQLite-based store.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Content is written by parallel download workers.
	db.SetMaxOpenConns(1)

	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// PutDocument inserts or replaces a document.
func (s *SQLiteStore) PutDocument(doc types.Document) error {
	fieldsJSON, err := marshalOptional(doc.Fields, len(doc.Fields) > 0)
	if err != nil {
		return fmt.Errorf("marshaling fields: %w", err)
	}
	aclJSON, err := marshalOptional(doc.AccessControl, doc.AccessControl != nil)
	if err != nil {
		return fmt.Errorf("marshaling access control: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO documents
		(id, timestamp, path, title, type, size, created_at, modified_at, fields_json, access_control_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		doc.ID,
		doc.Timestamp,
		doc.Path,
		doc.Title,
		string(doc.Type),
		doc.Size,
		doc.CreatedAt,
		doc.ModifiedAt,
		fieldsJSON,
		aclJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

// PutContent inserts or replaces the content of a document.
func (s *SQLiteStore) PutContent(c *types.Content) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO contents (id, timestamp, attachment, body)
		VALUES (?, ?, ?, ?)
	`, c.ID, c.Timestamp, c.Attachment, c.Body)
	if err != nil {
		return fmt.Errorf("inserting content: %w", err)
	}
	return nil
}

// PutAccessDocument inserts or replaces an access-control document.
func (s *SQLiteStore) PutAccessDocument(doc types.AccessDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling access document: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO access_documents (id, username, document_json)
		VALUES (?, ?, ?)
	`, doc.ID, doc.Identity.Username, string(data))
	if err != nil {
		return fmt.Errorf("inserting access document: %w", err)
	}
	return nil
}

const documentColumns = `id, timestamp, path, title, type, size, created_at, modified_at, fields_json, access_control_json`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (types.Document, error) {
	var doc types.Document
	var kind string
	var fieldsJSON, aclJSON sql.NullString

	err := row.Scan(
		&doc.ID,
		&doc.Timestamp,
		&doc.Path,
		&doc.Title,
		&kind,
		&doc.Size,
		&doc.CreatedAt,
		&doc.ModifiedAt,
		&fieldsJSON,
		&aclJSON,
	)
	if err != nil {
		return types.Document{}, err
	}
	doc.Type = types.ItemKind(kind)

	if fieldsJSON.Valid {
		if err := json.Unmarshal([]byte(fieldsJSON.String), &doc.Fields); err != nil {
			return types.Document{}, fmt.Errorf("unmarshaling fields: %w", err)
		}
	}
	if aclJSON.Valid {
		if err := json.Unmarshal([]byte(aclJSON.String), &doc.AccessControl); err != nil {
			return types.Document{}, fmt.Errorf("unmarshaling access control: %w", err)
		}
	}
	return doc, nil
}

// GetDocument retrieves a document by ID.
func (s *SQLiteStore) GetDocument(id string) (types.Document, bool, error) {
	row := s.db.QueryRow(`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Document{}, false, nil
	}
	if err != nil {
		return types.Document{}, false, fmt.Errorf("scanning document: %w", err)
	}
	return doc, true, nil
}

// GetDocuments retrieves all documents ordered by path.
func (s *SQLiteStore) GetDocuments() ([]types.Document, error) {
	rows, err := s.db.Query(`SELECT ` + documentColumns + ` FROM documents ORDER BY path, id`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []types.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// GetContent retrieves the content of a document, or nil.
func (s *SQLiteStore) GetContent(id string) (*types.Content, error) {
	var c types.Content
	var attachment, body sql.NullString
	err := s.db.QueryRow(`SELECT id, timestamp, attachment, body FROM contents WHERE id = ?`, id).
		Scan(&c.ID, &c.Timestamp, &attachment, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning content: %w", err)
	}
	c.Attachment = attachment.String
	c.Body = body.String
	return &c, nil
}

// GetAccessDocuments retrieves all access-control documents ordered by ID.
func (s *SQLiteStore) GetAccessDocuments() ([]types.AccessDocument, error) {
	rows, err := s.db.Query(`SELECT document_json FROM access_documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying access documents: %w", err)
	}
	defer rows.Close()

	var docs []types.AccessDocument
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning access document: %w", err)
		}
		var doc types.AccessDocument
		if err := json.Unmarshal([]byte(data), &doc); err != nil {
			return nil, fmt.Errorf("unmarshaling access document: %w", err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating access documents: %w", err)
	}

	return docs, nil
}

// DocumentIDs lists the IDs of every stored document.
func (s *SQLiteStore) DocumentIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying document ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning document id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteDocument removes a document and its content.
func (s *SQLiteStore) DeleteDocument(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM contents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting content: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// marshalOptional encodes v as JSON, or returns NULL when present is false.
func marshalOptional(v any, present bool) (sql.NullString, error) {
	if !present {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
