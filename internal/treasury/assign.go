// Package treasury maps projects to treasury wallets. The mapping is a
// pure function of the project identifier so every caller computes the
// same wallet; persistence only pins the result against later changes to
// the configured pool.
package treasury

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solana-fee-engine/internal/domain"
	"solana-fee-engine/internal/storage"
)

// ErrNoWallets is returned when both the treasury pool and the admin
// fallback list are empty.
var ErrNoWallets = errors.New("no treasury wallets configured")

// WalletFor deterministically picks a wallet for a project: a rolling
// hash over the identifier (h = h*31 + byte, 32-bit wraparound, absolute
// value) indexes into the treasury pool. An empty pool falls back to the
// admin list.
func WalletFor(projectID string, treasuryPool, adminPool []string) (string, error) {
	pool := treasuryPool
	if len(pool) == 0 {
		pool = adminPool
	}
	if len(pool) == 0 {
		return "", ErrNoWallets
	}

	var h int32
	for _, b := range []byte(projectID) {
		h = h*31 + int32(b)
	}
	idx := int(h)
	if idx < 0 {
		idx = -idx
	}
	return pool[idx%len(pool)], nil
}

// Assigner persists treasury assignments exactly once per project.
type Assigner struct {
	store        storage.TreasuryAssignmentStore
	treasuryPool []string
	adminPool    []string
}

// NewAssigner creates an Assigner over the configured wallet pools.
func NewAssigner(store storage.TreasuryAssignmentStore, treasuryPool, adminPool []string) *Assigner {
	return &Assigner{
		store:        store,
		treasuryPool: treasuryPool,
		adminPool:    adminPool,
	}
}

// Assign returns the project's treasury wallet, computing and persisting
// it on first call. Subsequent calls return the stored wallet and perform
// no write, even if the configured pools have changed since.
func (a *Assigner) Assign(ctx context.Context, projectID string) (string, error) {
	if projectID == "" {
		return "", storage.ErrInvalidInput
	}

	existing, err := a.store.Get(ctx, projectID)
	if err == nil {
		return existing.WalletAddress, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("read treasury assignment: %w", err)
	}

	wallet, err := WalletFor(projectID, a.treasuryPool, a.adminPool)
	if err != nil {
		return "", err
	}

	assignment := &domain.TreasuryAssignment{
		ProjectID:     projectID,
		WalletAddress: wallet,
		AssignedAt:    time.Now().UnixMilli(),
	}
	if err := a.store.Put(ctx, assignment); err != nil {
		return "", fmt.Errorf("write treasury assignment: %w", err)
	}

	// Re-read to honor a concurrent writer that won the race.
	stored, err := a.store.Get(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("read back treasury assignment: %w", err)
	}
	return stored.WalletAddress, nil
}
