package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

type sqliteSourceDB struct{}

func (s *sqliteSourceDB) Name() string { return "SQLite" }

func (s *sqliteSourceDB) CheckDSN(dsn string) error {
	if isSQLiteMemoryDSN(dsn) {
		return fmt.Errorf("in-memory SQLite databases are not supported")
	}
	path := sqlitePath(dsn)
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("invalid file: %s does not exist", path)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("invalid file: %s is not a regular file", path)
	}
	// SQLite treats an empty file as an empty database.
	if fi.Size() == 0 {
		return nil
	}
	return checkSQLiteHeader(path)
}

const sqliteHeader = "SQLite format 3\x00"

func checkSQLiteHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, len(sqliteHeader))
	if _, err := io.ReadFull(f, buf); err != nil || string(buf) != sqliteHeader {
		return fmt.Errorf("invalid file: %s is not a SQLite database", path)
	}
	return nil
}

func (s *sqliteSourceDB) OpenDB(dsn string) (*sql.DB, error) {
	uri, err := sqliteReadOnlyURI(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", uri)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func (s *sqliteSourceDB) ExtractDBName(dsn string) (string, error) {
	base := filepath.Base(sqlitePath(dsn))
	ext := filepath.Ext(base)
	if ext != "" {
		base = base[:len(base)-len(ext)]
	}
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "", fmt.Errorf("cannot derive database name from %q", dsn)
	}
	return base, nil
}

func (s *sqliteSourceDB) ListTables(ctx context.Context, db *sql.DB) ([]string, error) {
	return collectStringRows(ctx, db,
		"SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
}

func (s *sqliteSourceDB) ListObjects(ctx context.Context, db *sql.DB) (*SourceObjects, error) {
	views, err := collectStringRows(ctx, db, "SELECT name FROM sqlite_master WHERE type='view' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list views: %w", err)
	}
	triggers, err := collectStringRows(ctx, db, "SELECT name FROM sqlite_master WHERE type='trigger' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}
	return &SourceObjects{Views: views, Triggers: triggers}, nil
}

func (s *sqliteSourceDB) QuoteIdentifier(name string) string {
	return fmt.Sprintf("\"%s\"", strings.ReplaceAll(name, "\"", "\"\""))
}

// SelectQuery lists the table's columns explicitly. Columns declared as a
// date or time type are selected through a no-op unary plus: the driver parses
// TEXT values of such columns into time.Time, and an expression carries no
// declared type.
func (s *sqliteSourceDB) SelectQuery(ctx context.Context, db *sql.DB, table string) (string, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT name, type FROM pragma_table_xinfo(?) WHERE hidden <> 1 ORDER BY cid", table)
	if err != nil {
		return "", fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name, declType string
		if err := rows.Scan(&name, &declType); err != nil {
			return "", fmt.Errorf("table info %s: %w", table, err)
		}
		quoted := s.QuoteIdentifier(name)
		if sqliteTimeDeclType(declType) {
			quoted = "+" + quoted + " AS " + quoted
		}
		cols = append(cols, quoted)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("table info %s: %w", table, err)
	}
	if len(cols) == 0 {
		return "", fmt.Errorf("table %s has no columns", table)
	}
	return "SELECT " + strings.Join(cols, ", ") + " FROM " + s.QuoteIdentifier(table), nil
}

// sqliteTimeDeclType reports whether the driver would convert values of a
// column with this declared type (DATE, DATETIME, TIMESTAMP).
func sqliteTimeDeclType(declType string) bool {
	t := strings.ToUpper(declType)
	return strings.Contains(t, "DATE") || strings.Contains(t, "TIME")
}

// NormalizeValue passes values through. SelectQuery keeps them in their
// storage class: int64, float64, string, []byte or nil.
func (s *sqliteSourceDB) NormalizeValue(val any, _ string) (any, error) {
	return val, nil
}

// --- DSN handling ---

func isSQLiteMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || dsn == "file::memory:" || strings.Contains(dsn, "mode=memory")
}

// sqlitePath returns the filesystem path of a plain path or file: URI DSN.
func sqlitePath(dsn string) string {
	if !strings.HasPrefix(dsn, "file:") {
		return dsn
	}
	u, err := url.Parse(dsn)
	if err == nil {
		if u.Path != "" {
			return u.Path
		}
		return u.Opaque
	}
	path := strings.TrimPrefix(dsn, "file:")
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		path = path[:idx]
	}
	return path
}

func sqliteReadOnlyURI(dsn string) (string, error) {
	if isSQLiteMemoryDSN(dsn) {
		return "", fmt.Errorf("in-memory SQLite databases are not supported (each sql.Open gets a separate DB)")
	}

	if !strings.HasPrefix(dsn, "file:") {
		// plain path: wrap as a read-only file URI
		return "file:" + dsn + "?mode=ro", nil
	}

	// file URI: add or override mode=ro
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse sqlite URI: %w", err)
	}
	q := u.Query()
	q.Set("mode", "ro")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
