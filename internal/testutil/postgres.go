package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Okay2121/vine-ledger/internal/database"
	"github.com/Okay2121/vine-ledger/internal/models"
)

// TestDB wraps a migrated test database with cleanup. It lives outside the
// database package so the settlement, ledger, and performance suites can
// share one harness.
type TestDB struct {
	*database.DB
	Raw       *sql.DB
	container testcontainers.Container
	connStr   string
}

// SetupTestDB creates a new PostgreSQL container and returns a connected,
// migrated DB
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := database.New(connStr)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	if err := db.RunMigrations(migrationsPath()); err != nil {
		db.Close()
		_ = pgContainer.Terminate(ctx)
		t.Fatalf("failed to run migrations: %v", err)
	}

	raw, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("failed to open raw connection: %v", err)
	}

	return &TestDB{
		DB:        db,
		Raw:       raw,
		container: pgContainer,
		connStr:   connStr,
	}
}

func migrationsPath() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "db", "migrations")
}

// Cleanup closes connections and terminates the container
func (tdb *TestDB) Cleanup(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	if tdb.Raw != nil {
		tdb.Raw.Close()
	}
	if tdb.DB != nil {
		tdb.DB.Close()
	}
	if tdb.container != nil {
		if err := tdb.container.Terminate(ctx); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	}
}

// TruncateAll truncates all tables for test isolation
func (tdb *TestDB) TruncateAll(t *testing.T) {
	t.Helper()

	tables := []string{
		"deposits",
		"generation_schedules",
		"settlement_entries",
		"settlements",
		"positions",
		"accounts",
	}

	for _, table := range tables {
		_, err := tdb.Raw.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		if err != nil {
			t.Fatalf("failed to truncate table %s: %v", table, err)
		}
	}
}

// ConnectionString returns the database connection string
func (tdb *TestDB) ConnectionString() string {
	return tdb.connStr
}

// MakeAccount inserts an account with the given balance, failing the test
// on error.
func (tdb *TestDB) MakeAccount(t *testing.T, externalID, balance string, active bool) *models.Account {
	t.Helper()

	account := &models.Account{
		ExternalID: externalID,
		Balance:    decimal.RequireFromString(balance),
		Active:     active,
	}
	if err := tdb.CreateAccount(context.Background(), account); err != nil {
		t.Fatalf("failed to create account %s: %v", externalID, err)
	}
	return account
}

// AccountBalance reads an account's current balance directly.
func (tdb *TestDB) AccountBalance(t *testing.T, accountID int) decimal.Decimal {
	t.Helper()

	var s string
	if err := tdb.Raw.QueryRow(`SELECT balance FROM accounts WHERE id = $1`, accountID).Scan(&s); err != nil {
		t.Fatalf("failed to read balance for account %d: %v", accountID, err)
	}
	return decimal.RequireFromString(s)
}
