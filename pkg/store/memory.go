package store

import (
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

// MemoryStore implements Store using in-memory data structures. It is used
// for dry runs and tests.
type MemoryStore struct {
	mu         sync.RWMutex
	documents  map[string]types.Document       // keyed by document ID
	contents   map[string]types.Content        // keyed by document ID
	accessDocs map[string]types.AccessDocument // keyed by access document ID
}

// NewMemory creates a new in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		documents:  make(map[string]types.Document),
		contents:   make(map[string]types.Content),
		accessDocs: make(map[string]types.AccessDocument),
	}
}

// PutDocument inserts or replaces a document.
func (m *MemoryStore) PutDocument(doc types.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc.Fields = maps.Clone(doc.Fields)
	doc.AccessControl = slices.Clone(doc.AccessControl)
	m.documents[doc.ID] = doc
	return nil
}

// PutContent inserts or replaces the content of a document.
func (m *MemoryStore) PutContent(c *types.Content) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.contents[c.ID] = *c
	return nil
}

// PutAccessDocument inserts or replaces an access-control document.
func (m *MemoryStore) PutAccessDocument(doc types.AccessDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.accessDocs[doc.ID] = doc
	return nil
}

// GetDocument retrieves a document by ID.
func (m *MemoryStore) GetDocument(id string) (types.Document, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.documents[id]
	return doc, ok, nil
}

// GetDocuments retrieves all documents ordered by path.
func (m *MemoryStore) GetDocuments() ([]types.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := slices.Collect(maps.Values(m.documents))
	slices.SortFunc(result, func(a, b types.Document) int {
		if c := strings.Compare(a.Path, b.Path); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return result, nil
}

// GetContent retrieves the content of a document, or nil.
func (m *MemoryStore) GetContent(id string) (*types.Content, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.contents[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// GetAccessDocuments retrieves all access-control documents ordered by ID.
func (m *MemoryStore) GetAccessDocuments() ([]types.AccessDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]types.AccessDocument, 0, len(m.accessDocs))
	for _, id := range slices.Sorted(maps.Keys(m.accessDocs)) {
		result = append(result, m.accessDocs[id])
	}
	return result, nil
}

// DocumentIDs lists the IDs of every stored document.
func (m *MemoryStore) DocumentIDs() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Sorted(maps.Keys(m.documents)), nil
}

// DeleteDocument removes a document and its content.
func (m *MemoryStore) DeleteDocument(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.documents, id)
	delete(m.contents, id)
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}
