package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Okay2121/vine-ledger/internal/models"
)

const positionColumns = `
	id, account_id, token_name, entry_price, exit_price,
	buy_tx_hash, sell_tx_hash, buy_timestamp, sell_timestamp,
	status, roi_percentage, created_at`

// OpenPosition inserts a new open position for a token. The unique index on
// buy_tx_hash makes reuse of a buy reference fail as
// models.ErrDuplicateReference with no row written.
func (db *DB) OpenPosition(ctx context.Context, p *models.Position) error {
	query := `
		INSERT INTO positions (
			account_id, token_name, entry_price, buy_tx_hash,
			buy_timestamp, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	now := time.Now().UTC()
	buyTimestamp := p.BuyTimestamp
	if buyTimestamp.IsZero() {
		buyTimestamp = now
	}

	err := db.conn.QueryRowContext(ctx, query,
		p.AccountID, p.TokenName, p.EntryPrice, p.BuyTxHash,
		buyTimestamp, models.PositionStatusOpen, now,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if mapped := mapError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to open position: %w", err)
	}

	p.BuyTimestamp = buyTimestamp
	p.Status = models.PositionStatusOpen
	return nil
}

// CloseOldestOpen claims the oldest open position for a token and closes it
// with the given exit price and sell reference, computing ROI in NUMERIC
// arithmetic. The claim is a single statement: the subquery locks the FIFO
// head with FOR UPDATE SKIP LOCKED, so two concurrent sells can never close
// the same position, and the loser simply finds the next head or nothing.
// Ties on buy_timestamp break by ascending id to keep the order total.
//
// Each account owns its own FIFO queue per token. A nil onlyAccount matches
// only pool-level positions (NULL account_id); a non-nil one matches only
// that account's positions, so generated round trips never claim another
// account's holdings even when token names collide.
func (db *DB) CloseOldestOpen(ctx context.Context, tokenName string, exitPrice decimal.Decimal, sellTxHash string, sellTimestamp time.Time, onlyAccount *int) (*models.Position, error) {
	query := `
		UPDATE positions SET
			exit_price = $2,
			sell_tx_hash = $3,
			sell_timestamp = $4,
			status = $5,
			roi_percentage = ($2::numeric - entry_price) / entry_price * 100
		WHERE id = (
			SELECT id FROM positions
			WHERE token_name = $1 AND status = $6
			  AND account_id IS NOT DISTINCT FROM $7::int
			ORDER BY buy_timestamp ASC, id ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING ` + positionColumns

	if sellTimestamp.IsZero() {
		sellTimestamp = time.Now().UTC()
	}

	row := db.conn.QueryRowContext(ctx, query,
		tokenName, exitPrice, sellTxHash, sellTimestamp,
		models.PositionStatusClosed, models.PositionStatusOpen, onlyAccount,
	)

	p, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrNoOpenPosition
	}
	if err != nil {
		if mapped := mapError(err); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to close position: %w", err)
	}

	return p, nil
}

// GetPositionByID retrieves a single position
func (db *DB) GetPositionByID(ctx context.Context, id int) (*models.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE id = $1`

	p, err := scanPosition(db.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("position not found: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	return p, nil
}

// ListPositions returns positions filtered by token and/or status, newest
// first. Empty filters match everything.
func (db *DB) ListPositions(ctx context.Context, tokenName, status string, limit int) ([]*models.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE ($1 = '' OR token_name = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY buy_timestamp DESC, id DESC
		LIMIT $3
	`
	rows, err := db.conn.QueryContext(ctx, query, tokenName, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// ListUnsettledClosed returns closed positions with no settlement record,
// oldest close first. A crash between the close and its settlement strands
// a position here; the settlement sweep re-drives them.
func (db *DB) ListUnsettledClosed(ctx context.Context, limit int) ([]*models.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE status = $1
		  AND NOT EXISTS (
			SELECT 1 FROM settlements s WHERE s.position_id = positions.id
		  )
		ORDER BY sell_timestamp ASC, id ASC
		LIMIT $2
	`
	rows, err := db.conn.QueryContext(ctx, query, models.PositionStatusClosed, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unsettled positions: %w", err)
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// CountOpenPositions returns the number of open positions for a token
func (db *DB) CountOpenPositions(ctx context.Context, tokenName string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM positions WHERE token_name = $1 AND status = $2`,
		tokenName, models.PositionStatusOpen,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count open positions: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPosition(row rowScanner) (*models.Position, error) {
	var p models.Position
	var accountID sql.NullInt64
	var exitPrice, roi, sellTxHash sql.NullString
	var sellTimestamp sql.NullTime

	err := row.Scan(
		&p.ID, &accountID, &p.TokenName, &p.EntryPrice, &exitPrice,
		&p.BuyTxHash, &sellTxHash, &p.BuyTimestamp, &sellTimestamp,
		&p.Status, &roi, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if accountID.Valid {
		id := int(accountID.Int64)
		p.AccountID = &id
	}
	if exitPrice.Valid {
		d, err := decimal.NewFromString(exitPrice.String)
		if err != nil {
			return nil, fmt.Errorf("invalid exit price %q: %w", exitPrice.String, err)
		}
		p.ExitPrice = &d
	}
	if roi.Valid {
		d, err := decimal.NewFromString(roi.String)
		if err != nil {
			return nil, fmt.Errorf("invalid roi %q: %w", roi.String, err)
		}
		p.ROIPercentage = &d
	}
	if sellTxHash.Valid {
		p.SellTxHash = &sellTxHash.String
	}
	if sellTimestamp.Valid {
		p.SellTimestamp = &sellTimestamp.Time
	}

	return &p, nil
}
