package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// ExtractOptions selects the source and how rows become documents.
type ExtractOptions struct {
	SourceType     string
	DSN            string
	Namespace      string   // explicit namespace; derived from the DSN when empty
	ExcludeColumns []string // column names dropped from every document; nil means ["id"]
}

var defaultExcludeColumns = []string{"id"}

// Extractor reads a relational source into a MigrationPayload.
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Extractor{logger: logger}
}

// Extract reads every user table of the source. It returns no payload on failure.
func (e *Extractor) Extract(ctx context.Context, opts ExtractOptions) (*MigrationPayload, error) {
	src, err := newSourceDB(opts.SourceType)
	if err != nil {
		return nil, wrapError(KindInvalidConfig, err, "source type")
	}
	if err := src.CheckDSN(opts.DSN); err != nil {
		return nil, wrapError(KindSourceUnavailable, err, "check %s source", src.Name())
	}

	namespace := strings.TrimSpace(opts.Namespace)
	if namespace == "" {
		namespace, err = src.ExtractDBName(opts.DSN)
		if err != nil {
			return nil, wrapError(KindSourceUnavailable, err, "derive database name")
		}
	}

	db, err := src.OpenDB(opts.DSN)
	if err != nil {
		return nil, wrapError(KindSourceUnavailable, err, "open %s source", src.Name())
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, wrapError(KindSourceUnavailable, err, "connect %s source", src.Name())
	}

	e.logger.Info("reading source", slog.String("engine", src.Name()), slog.String("namespace", namespace))

	tables, err := src.ListTables(ctx, db)
	if err != nil {
		return nil, wrapError(KindQueryFailure, err, "list tables")
	}
	e.logger.Info("found tables", slog.Int("count", len(tables)))

	if objs, err := src.ListObjects(ctx, db); err != nil {
		e.logger.Warn("could not list non-table objects", slog.Any("error", err))
	} else {
		for _, w := range sourceObjectWarnings(objs) {
			e.logger.Warn(w)
		}
	}

	payload := &MigrationPayload{
		Namespace:   namespace,
		Collections: make(map[string][]Document, len(tables)),
	}
	exclude := opts.ExcludeColumns
	if exclude == nil {
		exclude = defaultExcludeColumns
	}
	for _, table := range tables {
		docs, err := readTable(ctx, db, src, table, exclude)
		if err != nil {
			return nil, wrapError(KindQueryFailure, err, "read table %s", table)
		}
		payload.Collections[table] = docs
		e.logger.Debug("read table", slog.String("table", table), slog.Int("rows", len(docs)))
	}
	return payload, nil
}

// readTable converts every row of a table into a document. A table without
// rows yields an empty, non-nil slice.
func readTable(ctx context.Context, db *sql.DB, src SourceDB, table string, exclude []string) ([]Document, error) {
	query, err := src.SelectQuery(ctx, db, table)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("column types: %w", err)
	}

	// Document shape is fixed once per table.
	var keep []int
	for i, ct := range colTypes {
		if !slices.Contains(exclude, ct.Name()) {
			keep = append(keep, i)
		}
	}

	values := make([]any, len(colTypes))
	ptrs := make([]any, len(colTypes))
	for i := range values {
		ptrs[i] = &values[i]
	}

	docs := []Document{}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		doc := make(Document, 0, len(keep))
		for _, i := range keep {
			v, err := src.NormalizeValue(values[i], colTypes[i].DatabaseTypeName())
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", colTypes[i].Name(), err)
			}
			doc = append(doc, Field{Name: colTypes[i].Name(), Value: v})
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}
