package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Okay2121/vine-ledger/internal/models"
	"github.com/Okay2121/vine-ledger/internal/testutil"
)

func TestGenerationSchedules(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := testutil.SetupTestDB(t)
	defer testDB.Cleanup(t)
	ctx := context.Background()

	t.Run("GetSchedule returns nil when absent", func(t *testing.T) {
		testDB.TruncateAll(t)

		account := testDB.MakeAccount(t, "user-1", "100", true)
		schedule, err := testDB.GetSchedule(ctx, account.ID)
		require.NoError(t, err)
		assert.Nil(t, schedule)
	})

	t.Run("UpsertSchedule creates then replaces for new day", func(t *testing.T) {
		testDB.TruncateAll(t)

		account := testDB.MakeAccount(t, "user-1", "100", true)
		dayStart := time.Now().UTC().Truncate(24 * time.Hour)

		schedule := &models.GenerationSchedule{
			AccountID:     account.ID,
			DayStart:      dayStart,
			CumulativeROI: decimal.RequireFromString("3.2"),
			DayTarget:     decimal.RequireFromString("5"),
			NextFireAt:    dayStart.Add(10 * time.Minute),
			Active:        true,
		}
		require.NoError(t, testDB.UpsertSchedule(ctx, schedule))

		// New day: same account, cumulative ROI resets to zero.
		nextDay := dayStart.Add(24 * time.Hour)
		schedule.DayStart = nextDay
		schedule.CumulativeROI = decimal.Zero
		schedule.NextFireAt = nextDay.Add(20 * time.Minute)
		require.NoError(t, testDB.UpsertSchedule(ctx, schedule))

		got, err := testDB.GetSchedule(ctx, account.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.DayStart.Equal(nextDay))
		assert.True(t, got.CumulativeROI.IsZero())
		assert.True(t, got.Active)
	})

	t.Run("AdvanceSchedule accumulates realized roi", func(t *testing.T) {
		testDB.TruncateAll(t)

		account := testDB.MakeAccount(t, "user-1", "100", true)
		dayStart := time.Now().UTC().Truncate(24 * time.Hour)
		require.NoError(t, testDB.UpsertSchedule(ctx, &models.GenerationSchedule{
			AccountID:  account.ID,
			DayStart:   dayStart,
			DayTarget:  decimal.RequireFromString("5"),
			NextFireAt: dayStart,
			Active:     true,
		}))

		nextFire := time.Now().UTC().Add(30 * time.Minute)
		require.NoError(t, testDB.AdvanceSchedule(ctx, account.ID,
			decimal.RequireFromString("1.5"), nextFire))
		require.NoError(t, testDB.AdvanceSchedule(ctx, account.ID,
			decimal.RequireFromString("-0.4"), nextFire))

		got, err := testDB.GetSchedule(ctx, account.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.CumulativeROI.Equal(decimal.RequireFromString("1.1")),
			"got cumulative roi %s", got.CumulativeROI)
	})

	t.Run("AdvanceSchedule errors for unknown account", func(t *testing.T) {
		testDB.TruncateAll(t)

		err := testDB.AdvanceSchedule(ctx, 9999, decimal.Zero, time.Now().UTC())
		assert.Error(t, err)
	})

	t.Run("DeactivateSchedule flips active off", func(t *testing.T) {
		testDB.TruncateAll(t)

		account := testDB.MakeAccount(t, "user-1", "100", true)
		dayStart := time.Now().UTC().Truncate(24 * time.Hour)
		require.NoError(t, testDB.UpsertSchedule(ctx, &models.GenerationSchedule{
			AccountID:  account.ID,
			DayStart:   dayStart,
			DayTarget:  decimal.RequireFromString("5"),
			NextFireAt: dayStart,
			Active:     true,
		}))

		require.NoError(t, testDB.DeactivateSchedule(ctx, account.ID))

		got, err := testDB.GetSchedule(ctx, account.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.False(t, got.Active)
	})
}
