package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/tendant/content-tree/pkg/contenttree/repo/postgres"
)

const testSchema = "contenttree_test"

// TestDB represents a test database connection
type TestDB struct {
	Pool *pgxpool.Pool
}

// NewTestDB connects to TEST_DATABASE_URL with search_path set to the test schema
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres store tests")
	}

	ctx := context.Background()
	bootstrap, err := pgx.Connect(ctx, connString)
	require.NoError(t, err, "Failed to connect to test database")
	_, err = bootstrap.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+testSchema)
	require.NoError(t, err, "Failed to create test schema")
	require.NoError(t, bootstrap.Close(ctx))

	cfg, err := pgxpool.ParseConfig(connString)
	require.NoError(t, err)
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET search_path TO "+testSchema)
		return err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err, "Failed to create pool")
	require.NoError(t, pool.Ping(ctx), "Failed to ping test database")

	return &TestDB{Pool: pool}
}

// Setup creates the collection tables
func (db *TestDB) Setup(t *testing.T) {
	t.Helper()
	require.NoError(t, postgres.Migrate(context.Background(), db.Pool), "Failed to migrate")
}

// Cleanup removes all test data from the database
func (db *TestDB) Cleanup(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for _, table := range []string{postgres.ContentTable, postgres.ContentVersionTable, postgres.PublishedContentTable} {
		_, err := db.Pool.Exec(ctx, "TRUNCATE "+table)
		require.NoError(t, err, "Failed to truncate %s", table)
	}
}

// Close closes the database connection
func (db *TestDB) Close(t *testing.T) {
	t.Helper()
	db.Pool.Close()
}

// RunTest runs a test with database setup and cleanup
func RunTest(t *testing.T, testFunc func(t *testing.T, db *TestDB)) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping database test in short mode")
	}

	db := NewTestDB(t)
	defer db.Close(t)

	db.Setup(t)

	t.Run("", func(t *testing.T) {
		db.Cleanup(t)
		testFunc(t, db)
	})
}
