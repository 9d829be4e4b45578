package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

type mysqlSourceDB struct{}

func (m *mysqlSourceDB) Name() string { return "MySQL" }

func (m *mysqlSourceDB) CheckDSN(dsn string) error {
	_, err := m.ExtractDBName(dsn)
	return err
}

func (m *mysqlSourceDB) OpenDB(dsn string) (*sql.DB, error) {
	readDSN, err := mysqlReadDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", readDSN)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// Limits for the source connection. A table is read with a single query, so
// the read timeout bounds the wait for each packet, not the whole table.
const (
	mysqlDialTimeout = 10 * time.Second
	mysqlReadTimeout = 5 * time.Minute
)

// mysqlReadDSN prepares a DSN for extraction: DATETIME values scan as UTC
// time.Time, and timeouts are set unless the DSN already carries them.
func mysqlReadDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.InterpolateParams = true
	cfg.Loc = time.UTC
	if cfg.Timeout == 0 {
		cfg.Timeout = mysqlDialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = mysqlReadTimeout
	}
	return cfg.FormatDSN(), nil
}

func (m *mysqlSourceDB) ExtractDBName(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	if cfg.DBName == "" {
		return "", fmt.Errorf("cannot extract database name from DSN: empty name")
	}
	return cfg.DBName, nil
}

func (m *mysqlSourceDB) ListTables(ctx context.Context, db *sql.DB) ([]string, error) {
	return collectStringRows(ctx, db,
		`SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		 WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE'
		 ORDER BY TABLE_NAME`)
}

func (m *mysqlSourceDB) ListObjects(ctx context.Context, db *sql.DB) (*SourceObjects, error) {
	views, err := collectStringRows(ctx, db,
		`SELECT TABLE_NAME FROM INFORMATION_SCHEMA.VIEWS
		 WHERE TABLE_SCHEMA = DATABASE() ORDER BY TABLE_NAME`)
	if err != nil {
		return nil, fmt.Errorf("list views: %w", err)
	}
	triggers, err := collectStringRows(ctx, db,
		`SELECT TRIGGER_NAME FROM INFORMATION_SCHEMA.TRIGGERS
		 WHERE TRIGGER_SCHEMA = DATABASE() ORDER BY TRIGGER_NAME`)
	if err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}
	return &SourceObjects{Views: views, Triggers: triggers}, nil
}

func (m *mysqlSourceDB) SelectQuery(_ context.Context, _ *sql.DB, table string) (string, error) {
	return "SELECT * FROM " + m.QuoteIdentifier(table), nil
}

func (m *mysqlSourceDB) QuoteIdentifier(name string) string {
	return fmt.Sprintf("`%s`", strings.ReplaceAll(name, "`", "``"))
}

func (m *mysqlSourceDB) NormalizeValue(val any, dbType string) (any, error) {
	return mysqlNormalizeValue(val, dbType), nil
}

// mysqlBinaryTypes are column types whose bytes are kept as binary data.
var mysqlBinaryTypes = map[string]bool{
	"BINARY": true, "VARBINARY": true, "BIT": true, "GEOMETRY": true,
	"TINYBLOB": true, "BLOB": true, "MEDIUMBLOB": true, "LONGBLOB": true,
}

// mysqlNormalizeValue turns text-protocol []byte payloads of character columns
// into strings. Numbers already arrive as int64/float64, DECIMAL stays textual.
// SET values become arrays and zero dates become null.
func mysqlNormalizeValue(val any, dbType string) any {
	switch v := val.(type) {
	case time.Time:
		if v.IsZero() {
			return nil
		}
		return v
	case []byte:
		typ := strings.ToUpper(dbType)
		if mysqlBinaryTypes[typ] {
			return v
		}
		if typ == "SET" {
			return splitMySQLSet(string(v))
		}
		return string(v)
	default:
		return val
	}
}
