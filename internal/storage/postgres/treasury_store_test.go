package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-fee-engine/internal/domain"
	"solana-fee-engine/internal/storage"
)

func TestTreasuryAssignmentStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTreasuryAssignmentStore(pool)
	ctx := context.Background()

	t.Run("put and get", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, &domain.TreasuryAssignment{
			ProjectID:     "p1",
			WalletAddress: "wallet1",
			AssignedAt:    1000,
		}))

		a, err := store.Get(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "wallet1", a.WalletAddress)
		assert.Equal(t, int64(1000), a.AssignedAt)
	})

	t.Run("first write wins", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, &domain.TreasuryAssignment{
			ProjectID:     "p1",
			WalletAddress: "wallet2",
			AssignedAt:    2000,
		}))

		a, err := store.Get(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "wallet1", a.WalletAddress, "repeated assignment must not overwrite")
	})

	t.Run("not found", func(t *testing.T) {
		_, err := store.Get(ctx, "unknown")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("invalid input", func(t *testing.T) {
		assert.ErrorIs(t, store.Put(ctx, nil), storage.ErrInvalidInput)
		assert.ErrorIs(t, store.Put(ctx, &domain.TreasuryAssignment{ProjectID: "p2"}), storage.ErrInvalidInput)
	})
}
