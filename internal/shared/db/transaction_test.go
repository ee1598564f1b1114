package db_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payops/payops/internal/infrastructure/database"
	"github.com/payops/payops/internal/shared/db"
)

func newManager(t *testing.T) *db.TransactionManager {
	t.Helper()
	gdb, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	return db.NewTransactionManager(gdb)
}

func TestAfterCommit(t *testing.T) {
	ctx := context.Background()

	t.Run("runs after commit outside the transaction", func(t *testing.T) {
		tm := newManager(t)
		var ran, inTx bool
		err := tm.RunInTransaction(ctx, func(ctx context.Context) error {
			db.AfterCommit(ctx, func(ctx context.Context) {
				ran = true
				inTx = db.InTransaction(ctx)
			})
			assert.False(t, ran, "deferred until commit")
			return nil
		})
		require.NoError(t, err)
		assert.True(t, ran)
		assert.False(t, inTx)
	})

	t.Run("dropped on rollback", func(t *testing.T) {
		tm := newManager(t)
		ran := false
		err := tm.RunInTransaction(ctx, func(ctx context.Context) error {
			db.AfterCommit(ctx, func(context.Context) { ran = true })
			return errors.New("boom")
		})
		require.Error(t, err)
		assert.False(t, ran)
	})

	t.Run("joined transaction defers to the outer commit", func(t *testing.T) {
		tm := newManager(t)
		var order []string
		err := tm.RunInTransaction(ctx, func(ctx context.Context) error {
			require.NoError(t, tm.RunInTransaction(ctx, func(ctx context.Context) error {
				db.AfterCommit(ctx, func(context.Context) { order = append(order, "hook") })
				return nil
			}))
			order = append(order, "outer")
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"outer", "hook"}, order)
	})

	t.Run("immediate without a transaction", func(t *testing.T) {
		ran := false
		db.AfterCommit(ctx, func(context.Context) { ran = true })
		assert.True(t, ran)
	})
}
