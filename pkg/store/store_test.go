package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

func sampleDocument(id, path string) types.Document {
	return types.Document{
		ID:         id,
		Timestamp:  "2024-01-02T03:04:05Z",
		Path:       path,
		Title:      filepath.Base(path),
		Type:       types.KindFile,
		Size:       30,
		CreatedAt:  "2024-01-01T00:00:00.123456789Z",
		ModifiedAt: "2024-01-02T03:04:05Z",
		Fields:     map[string]any{"url": "http://sp.corp.example" + path},
	}
}

// backends returns a fresh instance of every Store implementation.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLite(filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func TestNew_MemoryStore(t *testing.T) {
	// Act
	store, err := New(Config{Path: MemoryPath})

	// Assert
	require.NoError(t, err)
	require.IsType(t, &MemoryStore{}, store)
	defer store.Close()
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestStore_Interface(t *testing.T) {
	var _ Store = (*SQLiteStore)(nil)
	var _ Store = (*MemoryStore)(nil)
}

func TestStore_Documents(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			// Arrange
			doc := sampleDocument("b", "/share/b.txt")
			doc.AccessControl = []string{"rid:1001", "user:alice"}

			// Act
			require.NoError(t, store.PutDocument(sampleDocument("a", "/share/z.txt")))
			require.NoError(t, store.PutDocument(doc))
			require.NoError(t, store.PutDocument(doc))

			// Assert
			got, ok, err := store.GetDocument("b")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, doc.CreatedAt, got.CreatedAt)
			assert.Equal(t, doc.AccessControl, got.AccessControl)
			assert.Equal(t, doc.Fields, got.Fields)
			assert.Equal(t, types.KindFile, got.Type)

			all, err := store.GetDocuments()
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, "/share/b.txt", all[0].Path)
			assert.Nil(t, all[1].AccessControl)

			_, ok, err = store.GetDocument("missing")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStore_Content(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			// Arrange
			require.NoError(t, store.PutDocument(sampleDocument("a", "/share/a.txt")))

			// Act
			err := store.PutContent(&types.Content{ID: "a", Timestamp: "2024-01-02T03:04:05Z", Body: "quarterly numbers"})

			// Assert
			require.NoError(t, err)
			c, err := store.GetContent("a")
			require.NoError(t, err)
			require.NotNil(t, c)
			assert.Equal(t, "quarterly numbers", c.Body)
			assert.Empty(t, c.Attachment)

			none, err := store.GetContent("missing")
			require.NoError(t, err)
			assert.Nil(t, none)
		})
	}
}

func TestStore_AccessDocuments(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			// Arrange
			bob := types.NewAccessDocument("1002", types.Identity{Username: "user:bob"}, []string{"rid:1002"}, now)
			alice := types.NewAccessDocument("1001", types.Identity{Username: "user:alice"}, []string{"rid:1001", "rid:513"}, now)

			// Act
			require.NoError(t, store.PutAccessDocument(bob))
			require.NoError(t, store.PutAccessDocument(alice))

			// Assert
			docs, err := store.GetAccessDocuments()
			require.NoError(t, err)
			assert.Equal(t, []types.AccessDocument{alice, bob}, docs)
		})
	}
}

func TestPrune(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			// Arrange
			for _, id := range []string{"a", "b", "c"} {
				require.NoError(t, store.PutDocument(sampleDocument(id, "/share/"+id)))
			}
			require.NoError(t, store.PutContent(&types.Content{ID: "b", Attachment: "Yg=="}))

			// Act
			removed, err := Prune(store, map[string]bool{"a": true})

			// Assert
			require.NoError(t, err)
			assert.Equal(t, 2, removed)
			ids, err := store.DocumentIDs()
			require.NoError(t, err)
			assert.Equal(t, []string{"a"}, ids)
			c, err := store.GetContent("b")
			require.NoError(t, err)
			assert.Nil(t, c)
		})
	}
}
