package main

import (
	"context"
	"database/sql"
	"fmt"
)

// SourceDB abstracts source database operations so the extractor can read
// from multiple relational engines (SQLite, MySQL, PostgreSQL).
type SourceDB interface {
	// Name returns a human-readable name for the source ("SQLite", "MySQL").
	Name() string

	// CheckDSN rejects DSNs that can never be opened before any connection attempt.
	CheckDSN(dsn string) error

	// OpenDB opens a read connection with driver-specific options.
	OpenDB(dsn string) (*sql.DB, error)

	// ExtractDBName extracts a logical database name from the DSN.
	// It is the default target namespace.
	ExtractDBName(dsn string) (string, error)

	// ListTables returns all user tables ordered by name.
	ListTables(ctx context.Context, db *sql.DB) ([]string, error)

	// ListObjects discovers views and triggers that are not migrated.
	ListObjects(ctx context.Context, db *sql.DB) (*SourceObjects, error)

	// SelectQuery returns the statement reading every row of table with
	// values in their stored form.
	SelectQuery(ctx context.Context, db *sql.DB, table string) (string, error)

	// QuoteIdentifier quotes a source identifier for use in queries.
	QuoteIdentifier(name string) string

	// NormalizeValue converts a scanned driver value to its native scalar.
	// dbType is the driver's DatabaseTypeName for the column.
	NormalizeValue(val any, dbType string) (any, error)
}

// newSourceDB returns a SourceDB implementation for the given source type.
func newSourceDB(sourceType string) (SourceDB, error) {
	switch sourceType {
	case "", "sqlite":
		return &sqliteSourceDB{}, nil
	case "mysql":
		return &mysqlSourceDB{}, nil
	case "postgres":
		return &postgresSourceDB{}, nil
	default:
		return nil, fmt.Errorf("unsupported source type %q (must be sqlite, mysql or postgres)", sourceType)
	}
}
