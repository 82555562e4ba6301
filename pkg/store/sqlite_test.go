package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	// Arrange
	dbPath := filepath.Join(t.TempDir(), "sync.db")
	store, err := NewSQLite(dbPath)
	require.NoError(t, err)
	doc := sampleDocument("a", `\\files01\finance\a.txt`)
	doc.Type = types.KindDriveItem
	require.NoError(t, store.PutDocument(doc))
	require.NoError(t, store.Close())

	// Act
	reopened, err := NewSQLite(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	// Assert
	got, ok, err := reopened.GetDocument("a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, doc.Path, got.Path)
	assert.Equal(t, types.KindDriveItem, got.Type)
	assert.Equal(t, int64(30), got.Size)
}

func TestSQLite_EmptyAccessControlKept(t *testing.T) {
	// Arrange
	store, err := NewSQLite(filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	defer store.Close()
	doc := sampleDocument("a", "/a")
	doc.Fields = nil
	doc.AccessControl = []string{}

	// Act
	require.NoError(t, store.PutDocument(doc))

	// Assert
	got, _, err := store.GetDocument("a")
	require.NoError(t, err)
	assert.NotNil(t, got.AccessControl)
	assert.Empty(t, got.AccessControl)
	assert.Nil(t, got.Fields)
}
