package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/sharecrawl/pkg/store"
	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

// newMergeCmd creates a fresh merge command for testing
func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:  "merge <source1.db> <source2.db> [source3.db...]",
		Args: cobra.MinimumNArgs(2),
		RunE: runMerge,
	}
	cmd.Flags().StringVarP(&mergeOutput, "output", "o", "merged.db", "Output database path")
	return cmd
}

func seedDatabase(t *testing.T, path string, ids ...string) {
	t.Helper()
	s, err := store.NewSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	for _, id := range ids {
		doc := types.Document{ID: id, Path: `\\files01\finance\` + id, Title: id, Type: types.KindFile}
		require.NoError(t, s.PutDocument(doc))
		require.NoError(t, s.PutContent(&types.Content{ID: id, Body: "body of " + id}))
		acc := types.NewAccessDocument(id, types.Identity{Username: id}, []string{"user:" + id}, time.Unix(0, 0))
		require.NoError(t, s.PutAccessDocument(acc))
	}
}

func TestMergeCmd_RequiresMinimumArgs(t *testing.T) {
	cmd := newMergeCmd()
	cmd.SetArgs([]string{"source1.db"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 2 arg")
}

func TestMergeCmd_MergesDatabases(t *testing.T) {
	tmpDir := t.TempDir()
	finance := filepath.Join(tmpDir, "finance.db")
	hr := filepath.Join(tmpDir, "hr.db")
	seedDatabase(t, finance, "budget.xlsx", "shared.docx")
	seedDatabase(t, hr, "shared.docx", "payroll.csv")

	destPath := filepath.Join(tmpDir, "merged.db")
	var buf bytes.Buffer
	cmd := newMergeCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{finance, hr, "--output", destPath})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "Merge complete")
	assert.Contains(t, output, "Sources processed: 2")
	assert.Contains(t, output, "Documents merged: 3")
	assert.Contains(t, output, "Access documents merged: 3")

	dest, err := store.NewSQLite(destPath)
	require.NoError(t, err)
	defer dest.Close()
	_, ok, err := dest.GetDocument("payroll.csv")
	require.NoError(t, err)
	assert.True(t, ok)
}
