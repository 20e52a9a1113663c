package settlement_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Okay2121/vine-ledger/internal/models"
	"github.com/Okay2121/vine-ledger/internal/observability"
	"github.com/Okay2121/vine-ledger/internal/settlement"
	"github.com/Okay2121/vine-ledger/internal/testutil"
)

type recordingNotifier struct {
	events []models.SettlementEvent
}

func (n *recordingNotifier) PublishSettlement(_ context.Context, event models.SettlementEvent) error {
	n.events = append(n.events, event)
	return nil
}

func closedPosition(t *testing.T, testDB *testutil.TestDB, token, buyRef, sellRef string, entry, exit string) *models.Position {
	t.Helper()
	ctx := context.Background()

	position := &models.Position{
		TokenName:  token,
		EntryPrice: decimal.RequireFromString(entry),
		BuyTxHash:  buyRef,
	}
	require.NoError(t, testDB.OpenPosition(ctx, position))

	closed, err := testDB.CloseOldestOpen(ctx, token,
		decimal.RequireFromString(exit), sellRef, time.Time{}, nil)
	require.NoError(t, err)
	return closed
}

func TestSettlementEngine(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := testutil.SetupTestDB(t)
	defer testDB.Cleanup(t)
	ctx := context.Background()

	factor := decimal.RequireFromString("0.2")
	newEngine := func(notifier settlement.Notifier) *settlement.Engine {
		metrics := observability.NewMetrics(prometheus.NewRegistry())
		return settlement.NewEngine(testDB.DB, notifier, factor, metrics)
	}

	t.Run("distributes roi proportionally across the pool", func(t *testing.T) {
		testDB.TruncateAll(t)

		small := testDB.MakeAccount(t, "user-small", "100", true)
		large := testDB.MakeAccount(t, "user-large", "300", true)
		testDB.MakeAccount(t, "user-idle", "500", false)

		// entry 0.01, exit 0.011 => +10% ROI
		position := closedPosition(t, testDB, "BONK", "se-buy-1", "se-sell-1", "0.01", "0.011")

		notifier := &recordingNotifier{}
		record, err := newEngine(notifier).Settle(ctx, position, nil)
		require.NoError(t, err)

		require.Len(t, record.Entries, 2)
		assert.True(t, record.PoolCapital.Equal(decimal.RequireFromString("400")))

		// 100 * 10/100 * 0.2 = 2; 300 * 10/100 * 0.2 = 6
		assert.True(t, testDB.AccountBalance(t, small.ID).Equal(decimal.RequireFromString("102")))
		assert.True(t, testDB.AccountBalance(t, large.ID).Equal(decimal.RequireFromString("306")))

		require.Len(t, notifier.events, 2)
		assert.Equal(t, "SETTLEMENT_APPLIED", notifier.events[0].EventType)
	})

	t.Run("second settle of same position is rejected without mutation", func(t *testing.T) {
		testDB.TruncateAll(t)

		account := testDB.MakeAccount(t, "user-1", "100", true)
		position := closedPosition(t, testDB, "SAMO", "se-buy-2", "se-sell-2", "0.01", "0.011")

		engine := newEngine(nil)
		_, err := engine.Settle(ctx, position, nil)
		require.NoError(t, err)
		balanceAfterFirst := testDB.AccountBalance(t, account.ID)

		_, err = engine.Settle(ctx, position, nil)
		assert.ErrorIs(t, err, models.ErrSettlementAlreadyRecorded)

		count, err := testDB.CountSettlements(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assert.True(t, testDB.AccountBalance(t, account.ID).Equal(balanceAfterFirst))
	})

	t.Run("empty pool records settlement with no entries", func(t *testing.T) {
		testDB.TruncateAll(t)

		position := closedPosition(t, testDB, "MOON", "se-buy-3", "se-sell-3", "0.01", "0.012")

		record, err := newEngine(nil).Settle(ctx, position, nil)
		require.NoError(t, err)

		assert.True(t, record.PoolCapital.IsZero())
		assert.Empty(t, record.Entries)

		stored, err := testDB.GetSettlementByPosition(ctx, position.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Empty(t, stored.Entries)
	})

	t.Run("onlyAccount restricts distribution to one account", func(t *testing.T) {
		testDB.TruncateAll(t)

		target := testDB.MakeAccount(t, "user-target", "100", true)
		bystander := testDB.MakeAccount(t, "user-bystander", "100", true)

		position := closedPosition(t, testDB, "WIF", "se-buy-4", "se-sell-4", "0.01", "0.011")

		record, err := newEngine(nil).Settle(ctx, position, &target.ID)
		require.NoError(t, err)

		require.Len(t, record.Entries, 1)
		assert.Equal(t, target.ID, record.Entries[0].AccountID)
		assert.True(t, testDB.AccountBalance(t, target.ID).Equal(decimal.RequireFromString("102")))
		assert.True(t, testDB.AccountBalance(t, bystander.ID).Equal(decimal.RequireFromString("100")))
	})

	t.Run("negative roi debits the pool", func(t *testing.T) {
		testDB.TruncateAll(t)

		account := testDB.MakeAccount(t, "user-1", "100", true)

		// entry 0.01, exit 0.009 => -10% ROI
		position := closedPosition(t, testDB, "RATS", "se-buy-5", "se-sell-5", "0.01", "0.009")

		record, err := newEngine(nil).Settle(ctx, position, nil)
		require.NoError(t, err)

		require.Len(t, record.Entries, 1)
		assert.True(t, record.Entries[0].Delta.IsNegative())
		// 100 * -10/100 * 0.2 = -2
		assert.True(t, testDB.AccountBalance(t, account.ID).Equal(decimal.RequireFromString("98")))
	})

	t.Run("sweep re-drives stranded settlements", func(t *testing.T) {
		testDB.TruncateAll(t)

		account := testDB.MakeAccount(t, "user-1", "100", true)

		// A pool position and an account-scoped one, both closed without a
		// settlement record, as a crash mid-ingestion would leave them.
		closedPosition(t, testDB, "BONK", "sw-buy-1", "sw-sell-1", "0.01", "0.011")

		scoped := &models.Position{
			AccountID:  &account.ID,
			TokenName:  "SAMO",
			EntryPrice: decimal.RequireFromString("0.01"),
			BuyTxHash:  "sw-buy-2",
		}
		require.NoError(t, testDB.OpenPosition(ctx, scoped))
		_, err := testDB.CloseOldestOpen(ctx, "SAMO",
			decimal.RequireFromString("0.011"), "sw-sell-2", time.Time{}, &account.ID)
		require.NoError(t, err)

		engine := newEngine(nil)
		settled, err := engine.SweepUnsettled(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, settled)

		count, err := testDB.CountSettlements(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		// Pool settle first (+2 on 100), then the scoped one (+2.04 on 102).
		assert.True(t, testDB.AccountBalance(t, account.ID).Equal(decimal.RequireFromString("104.04")))

		// A second sweep finds nothing to do.
		settled, err = engine.SweepUnsettled(ctx)
		require.NoError(t, err)
		assert.Zero(t, settled)
	})

	t.Run("refuses to settle an open position", func(t *testing.T) {
		testDB.TruncateAll(t)

		position := &models.Position{
			TokenName:  "WOOF",
			EntryPrice: decimal.RequireFromString("0.01"),
			BuyTxHash:  "se-buy-6",
		}
		require.NoError(t, testDB.OpenPosition(ctx, position))

		_, err := newEngine(nil).Settle(ctx, position, nil)
		assert.Error(t, err)
	})
}
