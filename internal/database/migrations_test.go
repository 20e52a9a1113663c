package database_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Okay2121/vine-ledger/internal/testutil"
)

func TestMigrations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := testutil.SetupTestDB(t)
	defer testDB.Cleanup(t)

	t.Run("creates all tables", func(t *testing.T) {
		tables := []string{
			"accounts", "positions", "settlements",
			"settlement_entries", "generation_schedules", "deposits",
		}
		for _, table := range tables {
			var exists bool
			err := testDB.Raw.QueryRow(`
				SELECT EXISTS (
					SELECT 1 FROM information_schema.tables
					WHERE table_schema = 'public' AND table_name = $1
				)
			`, table).Scan(&exists)
			require.NoError(t, err)
			assert.True(t, exists, "table %s should exist", table)
		}
	})

	t.Run("enforces unique transaction references", func(t *testing.T) {
		indexes := map[string]string{
			"positions":   "buy_tx_hash",
			"settlements": "position_id",
			"deposits":    "tx_hash",
		}
		for table, column := range indexes {
			var count int
			err := testDB.Raw.QueryRow(`
				SELECT COUNT(*)
				FROM pg_indexes
				WHERE tablename = $1 AND indexdef LIKE '%UNIQUE%' AND indexdef LIKE '%' || $2 || '%'
			`, table, column).Scan(&count)
			require.NoError(t, err)
			assert.Positive(t, count, "%s.%s should carry a unique index", table, column)
		}
	})

	t.Run("has partial index on open positions", func(t *testing.T) {
		var indexDef string
		err := testDB.Raw.QueryRow(`
			SELECT indexdef FROM pg_indexes
			WHERE tablename = 'positions' AND indexname = 'idx_positions_fifo'
		`).Scan(&indexDef)
		require.NoError(t, err)
		assert.Contains(t, indexDef, "WHERE")
	})
}
