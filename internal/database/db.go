package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"

	"github.com/Okay2121/vine-ledger/internal/models"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	conn *sql.DB
}

// New creates a database connection from a connection string
func New(connStr string) (*DB, error) {
	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the connection is alive
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// BeginTx starts a transaction. Settlement spans multiple balance writes
// plus the settlement insert, so callers own commit/rollback.
func (db *DB) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// RunMigrations applies all migrations from the given directory
func (db *DB) RunMigrations(migrationsPath string) error {
	driver, err := postgres.WithInstance(db.conn, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://"+migrationsPath,
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// mapError translates driver errors into the ledger's typed outcomes.
// Unique-index violations are the authoritative duplicate signal; the
// constraint name tells us which invariant fired.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			switch pqErr.Constraint {
			case "settlements_position_id_key":
				return models.ErrSettlementAlreadyRecorded
			default:
				return models.ErrDuplicateReference
			}
		case "23514": // check_violation
			if pqErr.Constraint == "positions_sell_after_buy" {
				return models.ErrSellBeforeBuy
			}
		case "40001", "40P01", "55P03": // serialization, deadlock, lock timeout
			return fmt.Errorf("%w: %s", models.ErrStorageContention, pqErr.Message)
		}
	}

	return err
}
