//go:build integration

package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func mongoURI(t *testing.T) string {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI env var required")
	}
	return uri
}

// inspectMongo opens a separate client for assertions and drops the
// namespace when the test ends.
func inspectMongo(t *testing.T, uri, namespace string) *mongo.Database {
	t.Helper()
	ctx := context.Background()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect mongo: %v", err)
	}
	db := client.Database(namespace)
	_ = db.Drop(ctx)
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return db
}

func assertDocCount(t *testing.T, db *mongo.Database, coll string, want int64) {
	t.Helper()
	n, err := db.Collection(coll).CountDocuments(context.Background(), bson.D{})
	if err != nil {
		t.Fatalf("count %s: %v", coll, err)
	}
	if n != want {
		t.Errorf("%s.%s has %d documents, want %d", db.Name(), coll, n, want)
	}
}

func integrationConfig(t *testing.T, sourceType, dsn, uri, namespace string, mode WriteMode) *MigrationConfig {
	t.Helper()
	cfg := defaultConfig()
	cfg.Source.Type = sourceType
	cfg.Source.DSN = dsn
	cfg.Target.URI = uri
	cfg.Target.Database = namespace
	cfg.Target.Timeout = 5 * time.Second
	cfg.Mode = mode
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	return cfg
}

func TestIntegration_SQLite(t *testing.T) {
	uri := mongoURI(t)
	const namespace = "sqlite2mongo_inttest_sqlite"
	db := inspectMongo(t, uri, namespace)
	dbPath := peopleOrdersDB(t)
	ctx := context.Background()

	// Replace twice, then append once.
	for i := 0; i < 2; i++ {
		report := runPipeline(ctx, integrationConfig(t, "sqlite", dbPath, uri, namespace, ModeReplace), openTarget, nil)
		if !report.Succeeded() {
			t.Fatalf("replace run %d failed: %v", i+1, report.Err)
		}
		assertDocCount(t, db, "people", 3)
		assertDocCount(t, db, "orders", 0)
	}

	report := runPipeline(ctx, integrationConfig(t, "sqlite", dbPath, uri, namespace, ModeAppend), openTarget, nil)
	if !report.Succeeded() {
		t.Fatalf("append run failed: %v", report.Err)
	}
	assertDocCount(t, db, "people", 6)

	var doc bson.D
	if err := db.Collection("people").FindOne(ctx, bson.D{{Key: "name", Value: "Jimmy"}}).Decode(&doc); err != nil {
		t.Fatalf("find Jimmy: %v", err)
	}
	var keys []string
	for _, e := range doc {
		keys = append(keys, e.Key)
	}
	want := []string{"_id", "name", "age", "score", "avatar", "nickname"}
	if fmt.Sprint(keys) != fmt.Sprint(want) {
		t.Errorf("stored keys = %v, want %v", keys, want)
	}
}

func TestIntegration_MySQL(t *testing.T) {
	uri := mongoURI(t)
	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		t.Skip("MYSQL_DSN env var required")
	}
	const namespace = "sqlite2mongo_inttest_mysql"
	mdb := inspectMongo(t, uri, namespace)

	seed, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		t.Fatalf("open mysql: %v", err)
	}
	t.Cleanup(func() { seed.Close() })
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS widgets",
		"CREATE TABLE widgets (id INT AUTO_INCREMENT PRIMARY KEY, label VARCHAR(50), weight DECIMAL(8,2), blob_data VARBINARY(4), made_at DATETIME)",
		"INSERT INTO widgets (label, weight, blob_data, made_at) VALUES ('gear', 1.25, 0x0102, '2024-01-02 03:04:05'), ('cog', 3.50, NULL, NULL)",
	} {
		if _, err := seed.Exec(stmt); err != nil {
			t.Fatalf("seed %q: %v", stmt, err)
		}
	}
	t.Cleanup(func() { seed.Exec("DROP TABLE IF EXISTS widgets") })

	report := runPipeline(context.Background(), integrationConfig(t, "mysql", mysqlDSN, uri, namespace, ModeReplace), openTarget, nil)
	if !report.Succeeded() {
		t.Fatalf("run failed: %v", report.Err)
	}
	assertDocCount(t, mdb, "widgets", 2)

	var got bson.M
	if err := mdb.Collection("widgets").FindOne(context.Background(), bson.D{{Key: "label", Value: "gear"}}).Decode(&got); err != nil {
		t.Fatalf("find gear: %v", err)
	}
	if _, ok := got["id"]; ok {
		t.Error("id column was copied")
	}
	if _, ok := got["made_at"].(primitive.DateTime); !ok {
		t.Errorf("made_at = %T, want a BSON datetime", got["made_at"])
	}
	if _, ok := got["blob_data"].(primitive.Binary); !ok {
		t.Errorf("blob_data = %T, want BSON binary", got["blob_data"])
	}
}

func TestIntegration_Postgres(t *testing.T) {
	uri := mongoURI(t)
	pgDSN := os.Getenv("POSTGRES_DSN")
	if pgDSN == "" {
		t.Skip("POSTGRES_DSN env var required")
	}
	const namespace = "sqlite2mongo_inttest_pg"
	mdb := inspectMongo(t, uri, namespace)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, pgDSN)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	t.Cleanup(pool.Close)
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS gadgets",
		"CREATE TABLE gadgets (id SERIAL PRIMARY KEY, label TEXT, payload BYTEA)",
		"INSERT INTO gadgets (label, payload) VALUES ('lamp', '\\x0a0b'), ('desk', NULL), ('chair', NULL)",
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("seed %q: %v", stmt, err)
		}
	}
	t.Cleanup(func() { pool.Exec(context.Background(), "DROP TABLE IF EXISTS gadgets") })

	report := runPipeline(ctx, integrationConfig(t, "postgres", pgDSN, uri, namespace, ModeReplace), openTarget, nil)
	if !report.Succeeded() {
		t.Fatalf("run failed: %v", report.Err)
	}
	assertDocCount(t, mdb, "gadgets", 3)
}

func TestIntegration_UnreachableTarget(t *testing.T) {
	dbPath := peopleOrdersDB(t)
	cfg := integrationConfig(t, "sqlite", dbPath, "mongodb://127.0.0.1:1", "", ModeReplace)
	cfg.Target.Timeout = 300 * time.Millisecond

	report := runPipeline(context.Background(), cfg, openTarget, nil)
	if KindOf(report.Err) != KindTargetUnavailable {
		t.Fatalf("kind = %q, want %q (%v)", KindOf(report.Err), KindTargetUnavailable, report.Err)
	}
	if len(report.Results) != 0 {
		t.Errorf("results = %d, want none", len(report.Results))
	}
}
