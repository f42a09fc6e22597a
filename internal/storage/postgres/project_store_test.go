package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-fee-engine/internal/domain"
	"solana-fee-engine/internal/storage"
)

func seedProject(t *testing.T, pool *Pool, p *domain.Project) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO projects (project_id, creator_id, token_mint, pool_address, pool_kind, migrated, network, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ProjectID, p.CreatorID, p.TokenMint, p.PoolAddress, string(p.PoolKind), p.Migrated, p.Network, p.CreatedAt)
	require.NoError(t, err)
}

func TestProjectStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewProjectStore(pool)
	ctx := context.Background()

	seedProject(t, pool, &domain.Project{
		ProjectID: "p1", CreatorID: "c1", TokenMint: "mintA", PoolAddress: "poolA",
		PoolKind: domain.PoolKindBondingCurve, Network: "mainnet", CreatedAt: 1,
	})
	seedProject(t, pool, &domain.Project{
		ProjectID: "p2", CreatorID: "c2", TokenMint: "mintB", PoolAddress: "poolB",
		PoolKind: domain.PoolKindAMM, Migrated: true, Network: "mainnet", CreatedAt: 3,
	})
	seedProject(t, pool, &domain.Project{
		ProjectID: "p3", CreatorID: "c3", TokenMint: "mintC", PoolAddress: "poolC",
		PoolKind: domain.PoolKindBondingCurve, Network: "devnet", CreatedAt: 2,
	})
	seedProject(t, pool, &domain.Project{
		ProjectID: "p4", CreatorID: "c4", TokenMint: "mintD",
		PoolKind: domain.PoolKindBondingCurve, Network: "mainnet", CreatedAt: 4,
	})

	t.Run("list claimable filters network and empty pools", func(t *testing.T) {
		projects, err := store.ListClaimable(ctx, "mainnet", 0)
		require.NoError(t, err)
		require.Len(t, projects, 2)
		assert.Equal(t, "p2", projects[0].ProjectID, "newest first")
		assert.Equal(t, "p1", projects[1].ProjectID)
	})

	t.Run("list claimable honors limit", func(t *testing.T) {
		projects, err := store.ListClaimable(ctx, "mainnet", 1)
		require.NoError(t, err)
		require.Len(t, projects, 1)
		assert.Equal(t, "p2", projects[0].ProjectID)
	})

	t.Run("get by pool", func(t *testing.T) {
		p, err := store.GetByPool(ctx, "poolB")
		require.NoError(t, err)
		assert.Equal(t, "p2", p.ProjectID)
		assert.Equal(t, domain.PoolKindAMM, p.PoolKind)
		assert.True(t, p.Migrated)

		_, err = store.GetByPool(ctx, "unknown")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("get by id", func(t *testing.T) {
		p, err := store.GetByID(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "c1", p.CreatorID)
		assert.Equal(t, domain.PoolKindBondingCurve, p.PoolKind)

		_, err = store.GetByID(ctx, "unknown")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}
