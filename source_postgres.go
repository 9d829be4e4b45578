package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

type postgresSourceDB struct{}

func (p *postgresSourceDB) Name() string { return "PostgreSQL" }

func (p *postgresSourceDB) CheckDSN(dsn string) error {
	_, err := p.ExtractDBName(dsn)
	return err
}

func (p *postgresSourceDB) OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func (p *postgresSourceDB) ExtractDBName(dsn string) (string, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return "", fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.Database == "" {
		return "", fmt.Errorf("cannot extract database name from DSN: empty name")
	}
	return cfg.Database, nil
}

// ListTables lists base tables of the connection's current schema.
func (p *postgresSourceDB) ListTables(ctx context.Context, db *sql.DB) ([]string, error) {
	return collectStringRows(ctx, db,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		 ORDER BY table_name`)
}

func (p *postgresSourceDB) ListObjects(ctx context.Context, db *sql.DB) (*SourceObjects, error) {
	views, err := collectStringRows(ctx, db,
		`SELECT table_name FROM information_schema.views
		 WHERE table_schema = current_schema() ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("list views: %w", err)
	}
	triggers, err := collectStringRows(ctx, db,
		`SELECT DISTINCT trigger_name FROM information_schema.triggers
		 WHERE trigger_schema = current_schema() ORDER BY trigger_name`)
	if err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}
	return &SourceObjects{Views: views, Triggers: triggers}, nil
}

func (p *postgresSourceDB) SelectQuery(_ context.Context, _ *sql.DB, table string) (string, error) {
	return "SELECT * FROM " + p.QuoteIdentifier(table), nil
}

func (p *postgresSourceDB) QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// NormalizeValue passes values through as pgx decoded them. Values pgx has
// no Go scalar for arrive as strings already.
func (p *postgresSourceDB) NormalizeValue(val any, dbType string) (any, error) {
	if b, ok := val.([]byte); ok && !strings.EqualFold(dbType, "BYTEA") {
		return string(b), nil
	}
	return val, nil
}
