package postgres

import (
	"context"
	"fmt"

	"solana-fee-engine/internal/domain"
	"solana-fee-engine/internal/storage"
)

// FeeLedgerStore implements storage.FeeLedgerStore using PostgreSQL.
type FeeLedgerStore struct {
	pool *Pool
}

// NewFeeLedgerStore creates a new FeeLedgerStore.
func NewFeeLedgerStore(pool *Pool) *FeeLedgerStore {
	return &FeeLedgerStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FeeLedgerStore = (*FeeLedgerStore)(nil)

// IncreaseEarned adds amount to total_earned, creating the row if absent.
// The increment is commutative so concurrent partial runs accumulate.
func (s *FeeLedgerStore) IncreaseEarned(ctx context.Context, creatorID, tokenMint string, amount uint64) error {
	if creatorID == "" || tokenMint == "" {
		return storage.ErrInvalidInput
	}
	if amount == 0 {
		return nil
	}

	query := `
		INSERT INTO fee_ledger (creator_id, token_mint, total_earned, total_claimed)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (creator_id, token_mint)
		DO UPDATE SET
			total_earned = fee_ledger.total_earned + EXCLUDED.total_earned,
			updated_at = now()
	`

	_, err := s.pool.Exec(ctx, query, creatorID, tokenMint, int64(amount))
	if err != nil {
		return fmt.Errorf("increase earned: %w", err)
	}
	return nil
}

// IncreaseClaimed adds amount to total_claimed. The guard is in the WHERE
// clause: zero rows affected means the requested amount exceeds what is
// available and nothing was mutated.
func (s *FeeLedgerStore) IncreaseClaimed(ctx context.Context, creatorID, tokenMint string, amount uint64) error {
	if creatorID == "" || tokenMint == "" {
		return storage.ErrInvalidInput
	}
	if amount == 0 {
		return nil
	}

	query := `
		UPDATE fee_ledger
		SET total_claimed = total_claimed + $3, updated_at = now()
		WHERE creator_id = $1 AND token_mint = $2
		  AND total_claimed + $3 <= total_earned
	`

	tag, err := s.pool.Exec(ctx, query, creatorID, tokenMint, int64(amount))
	if err != nil {
		return fmt.Errorf("increase claimed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrLedgerOverdraw
	}
	return nil
}

// GetEntry retrieves one creator+token entry.
func (s *FeeLedgerStore) GetEntry(ctx context.Context, creatorID, tokenMint string) (*domain.FeeLedgerEntry, error) {
	query := `
		SELECT creator_id, token_mint, total_earned, total_claimed
		FROM fee_ledger
		WHERE creator_id = $1 AND token_mint = $2
	`

	var e domain.FeeLedgerEntry
	var earned, claimed int64
	err := s.pool.QueryRow(ctx, query, creatorID, tokenMint).
		Scan(&e.CreatorID, &e.TokenMint, &earned, &claimed)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	e.TotalEarned = uint64(earned)
	e.TotalClaimed = uint64(claimed)
	return &e, nil
}

// GetCreatorSummary aggregates across all of a creator's tokens. A creator
// with no ledger rows gets a zeroed summary, not an error.
func (s *FeeLedgerStore) GetCreatorSummary(ctx context.Context, creatorID string) (*domain.CreatorFeeSummary, error) {
	query := `
		SELECT creator_id, token_mint, total_earned, total_claimed
		FROM fee_ledger
		WHERE creator_id = $1
		ORDER BY token_mint ASC
	`

	rows, err := s.pool.Query(ctx, query, creatorID)
	if err != nil {
		return nil, fmt.Errorf("get creator summary: %w", err)
	}
	defer rows.Close()

	summary := &domain.CreatorFeeSummary{CreatorID: creatorID}
	for rows.Next() {
		var e domain.FeeLedgerEntry
		var earned, claimed int64
		if err := rows.Scan(&e.CreatorID, &e.TokenMint, &earned, &claimed); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.TotalEarned = uint64(earned)
		e.TotalClaimed = uint64(claimed)
		summary.PerToken = append(summary.PerToken, e)
		summary.TotalEarned += e.TotalEarned
		summary.TotalClaimed += e.TotalClaimed
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}

	summary.Available = summary.TotalEarned - summary.TotalClaimed
	return summary, nil
}
