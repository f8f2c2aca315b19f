// Package dbtest starts a disposable postgres for repository integration tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/georgemunganga/printa-pos/internal/platform/database"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Start returns a migrated database. Tests are skipped under -short or
// unless POS_INTEGRATION=1 is set.
func Start(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() || os.Getenv("POS_INTEGRATION") != "1" {
		t.Skip("integration test: set POS_INTEGRATION=1 to run against a postgres container")
	}

	ctx := context.Background()
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(db, "file://"+migrationsDir()))
	return db
}

func migrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "..", "migrations")
}

// SeedProduct inserts an uncategorised product.
func SeedProduct(t *testing.T, db *sql.DB, id, name, barcode, price string, stock int) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO products (id, name, description, price, stock, barcode)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		id, name, fmt.Sprintf("%s description", name), price, stock, barcode)
	require.NoError(t, err)
}

// SeedApprovedIntent inserts an approved payment intent.
func SeedApprovedIntent(t *testing.T, db *sql.DB, id, amount, method string) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO payment_intents (id, amount, method, status)
		VALUES ($1,$2,$3,'APPROVED')`, id, amount, method)
	require.NoError(t, err)
}
