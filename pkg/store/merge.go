package store

import (
	"database/sql"
	"fmt"
)

// MergeConfig configures the merge operation.
type MergeConfig struct {
	// SourcePaths are the database files to merge from.
	SourcePaths []string
	// DestPath is the destination database file.
	DestPath string
}

// MergeStats tracks merge operation statistics.
type MergeStats struct {
	DocumentsMerged       int
	ContentsMerged        int
	AccessDocumentsMerged int
	SourcesProcessed      int
}

// Merge combines the databases of several syncs (e.g. one per share) into
// one. Rows already present in the destination are kept.
func Merge(cfg MergeConfig) (*MergeStats, error) {
	if len(cfg.SourcePaths) == 0 {
		return nil, fmt.Errorf("no source databases specified")
	}
	if cfg.DestPath == "" {
		return nil, fmt.Errorf("destination path is required")
	}

	destDB, err := sql.Open(driverName, cfg.DestPath)
	if err != nil {
		return nil, fmt.Errorf("opening destination database: %w", err)
	}
	defer destDB.Close()

	if err := CreateSchema(destDB); err != nil {
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	stats := &MergeStats{}

	for _, sourcePath := range cfg.SourcePaths {
		sourceStats, err := mergeFrom(destDB, sourcePath)
		if err != nil {
			return stats, fmt.Errorf("merging from %s: %w", sourcePath, err)
		}
		stats.DocumentsMerged += sourceStats.DocumentsMerged
		stats.ContentsMerged += sourceStats.ContentsMerged
		stats.AccessDocumentsMerged += sourceStats.AccessDocumentsMerged
		stats.SourcesProcessed++
	}

	return stats, nil
}

// mergeFrom copies data from a source database to the destination.
func mergeFrom(destDB *sql.DB, sourcePath string) (*MergeStats, error) {
	sourceDB, err := sql.Open(driverName, sourcePath)
	if err != nil {
		return nil, fmt.Errorf("opening source database: %w", err)
	}
	defer sourceDB.Close()

	stats := &MergeStats{}

	tx, err := destDB.Begin()
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stats.DocumentsMerged, err = copyRows(tx, sourceDB, "documents", documentColumns, 10)
	if err != nil {
		return nil, fmt.Errorf("merging documents: %w", err)
	}

	stats.ContentsMerged, err = copyRows(tx, sourceDB, "contents", "id, timestamp, attachment, body", 4)
	if err != nil {
		return nil, fmt.Errorf("merging contents: %w", err)
	}

	stats.AccessDocumentsMerged, err = copyRows(tx, sourceDB, "access_documents", "id, username, document_json", 3)
	if err != nil {
		return nil, fmt.Errorf("merging access documents: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return stats, nil
}

// copyRows copies every row of table, inserting with INSERT OR IGNORE, and
// returns how many rows were new.
func copyRows(tx *sql.Tx, sourceDB *sql.DB, table, columns string, n int) (int, error) {
	rows, err := sourceDB.Query("SELECT " + columns + " FROM " + table)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	placeholders := "?"
	for i := 1; i < n; i++ {
		placeholders += ", ?"
	}
	stmt, err := tx.Prepare("INSERT OR IGNORE INTO " + table + " (" + columns + ") VALUES (" + placeholders + ")")
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	count := 0
	values := make([]any, n)
	ptrs := make([]any, n)
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return count, err
		}
		result, err := stmt.Exec(values...)
		if err != nil {
			return count, err
		}
		affected, _ := result.RowsAffected()
		if affected > 0 {
			count++
		}
	}
	return count, rows.Err()
}
