package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Okay2121/vine-ledger/internal/models"
)

// CreateAccount inserts an account record. Account lifecycle belongs to the
// user-management collaborator; this exists for that integration and tests.
func (db *DB) CreateAccount(ctx context.Context, a *models.Account) error {
	query := `
		INSERT INTO accounts (external_id, balance, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id, created_at, updated_at
	`
	now := time.Now().UTC()
	err := db.conn.QueryRowContext(ctx, query,
		a.ExternalID, a.Balance, a.Active, now,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if mapped := mapError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetAccount retrieves an account by ID
func (db *DB) GetAccount(ctx context.Context, id int) (*models.Account, error) {
	query := `
		SELECT id, external_id, balance, active, created_at, updated_at
		FROM accounts WHERE id = $1
	`
	var a models.Account
	err := db.conn.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.ExternalID, &a.Balance, &a.Active, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account not found: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &a, nil
}

// ListActiveAccountIDs returns the ids of all active accounts with positive
// balance. The generator manager uses this to decide which loops to run.
func (db *DB) ListActiveAccountIDs(ctx context.Context) ([]int, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id FROM accounts WHERE active AND balance > 0 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active accounts: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecordDeposit applies a non-trading balance credit. Deposits flow through
// their own table so performance aggregation can exclude them; the balance
// update is a relative delta like every other balance write.
func (db *DB) RecordDeposit(ctx context.Context, d *models.Deposit) error {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO deposits (account_id, amount, tx_hash, detected_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, d.AccountID, d.Amount, d.TxHash, now).Scan(&d.ID)
	if err != nil {
		if mapped := mapError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to record deposit: %w", err)
	}
	d.DetectedAt = now

	if _, err := AdjustBalanceTx(ctx, tx, d.AccountID, d.Amount); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit deposit: %w", err)
	}
	return nil
}

// ListEligibleAccountsTx returns the accounts eligible for distribution
// (active, balance > 0) inside the settlement transaction, so the capital
// weights and the balance writes see one consistent snapshot. A non-nil
// onlyAccount restricts the pool to that single account; the generator's
// settlements use this degenerate case.
func ListEligibleAccountsTx(ctx context.Context, tx *sql.Tx, onlyAccount *int) ([]*models.Account, error) {
	query := `
		SELECT id, external_id, balance, active, created_at, updated_at
		FROM accounts
		WHERE active AND balance > 0
		  AND ($1::int IS NULL OR id = $1)
		ORDER BY id
	`
	rows, err := tx.QueryContext(ctx, query, onlyAccount)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible accounts: %w", mapError(err))
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.ExternalID, &a.Balance, &a.Active, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &a)
	}
	return accounts, rows.Err()
}

// AdjustBalanceTx applies a relative delta to an account balance and returns
// the new balance. Relative updates compose with concurrent settlements and
// deposits without read-modify-write races.
func AdjustBalanceTx(ctx context.Context, tx *sql.Tx, accountID int, delta decimal.Decimal) (decimal.Decimal, error) {
	var newBalance decimal.Decimal
	err := tx.QueryRowContext(ctx, `
		UPDATE accounts
		SET balance = balance + $2, updated_at = $3
		WHERE id = $1
		RETURNING balance
	`, accountID, delta, time.Now().UTC()).Scan(&newBalance)
	if err == sql.ErrNoRows {
		return decimal.Zero, fmt.Errorf("%w: account %d missing", models.ErrPartialDistribution, accountID)
	}
	if err != nil {
		if mapped := mapError(err); mapped != err {
			return decimal.Zero, mapped
		}
		return decimal.Zero, fmt.Errorf("%w: adjust account %d: %v", models.ErrPartialDistribution, accountID, err)
	}
	return newBalance, nil
}
