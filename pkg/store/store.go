// Package store persists the documents, contents and access-control
// documents produced by a sync.
package store

import (
	"fmt"

	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

// Store is the sink of a sync pass.
type Store interface {
	// PutDocument inserts or replaces a document.
	PutDocument(doc types.Document) error

	// PutContent inserts or replaces the content of a document.
	PutContent(c *types.Content) error

	// PutAccessDocument inserts or replaces an access-control document.
	PutAccessDocument(doc types.AccessDocument) error

	// GetDocument retrieves a document by ID. ok is false when absent.
	GetDocument(id string) (doc types.Document, ok bool, err error)

	// GetDocuments retrieves all documents ordered by path.
	GetDocuments() ([]types.Document, error)

	// GetContent retrieves the content of a document, or nil.
	GetContent(id string) (*types.Content, error)

	// GetAccessDocuments retrieves all access-control documents ordered by
	// ID.
	GetAccessDocuments() ([]types.AccessDocument, error)

	// DocumentIDs lists the IDs of every stored document.
	DocumentIDs() ([]string, error)

	// DeleteDocument removes a document and its content.
	DeleteDocument(id string) error

	// Close closes the underlying storage.
	Close() error
}

// MemoryPath selects the in-memory store.
const MemoryPath = ":memory:"

// Config for store initialization.
type Config struct {
	// Path is the database file path, or MemoryPath.
	Path string
}

// New creates a Store: a MemoryStore for MemoryPath, SQLite otherwise.
func New(cfg Config) (Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if cfg.Path == MemoryPath {
		return NewMemory(), nil
	}
	return NewSQLite(cfg.Path)
}

// Prune deletes every stored document whose ID is not in seen and returns
// how many were removed. It implements the deletion step of a full sync.
func Prune(s Store, seen map[string]bool) (int, error) {
	ids, err := s.DocumentIDs()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, id := range ids {
		if seen[id] {
			continue
		}
		if err := s.DeleteDocument(id); err != nil {
			return removed, fmt.Errorf("deleting document %s: %w", id, err)
		}
		removed++
	}
	return removed, nil
}
