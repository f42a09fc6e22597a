package memory

import (
	"context"
	"sort"
	"sync"

	"solana-fee-engine/internal/domain"
	"solana-fee-engine/internal/storage"
)

// ledgerKey identifies one creator+token entry.
type ledgerKey struct {
	creatorID string
	tokenMint string
}

// FeeLedgerStore is an in-memory implementation of storage.FeeLedgerStore.
type FeeLedgerStore struct {
	mu   sync.RWMutex
	data map[ledgerKey]*domain.FeeLedgerEntry
}

// NewFeeLedgerStore creates a new in-memory fee ledger store.
func NewFeeLedgerStore() *FeeLedgerStore {
	return &FeeLedgerStore{
		data: make(map[ledgerKey]*domain.FeeLedgerEntry),
	}
}

// Compile-time interface check.
var _ storage.FeeLedgerStore = (*FeeLedgerStore)(nil)

// IncreaseEarned adds amount to total_earned, creating the entry if absent.
func (s *FeeLedgerStore) IncreaseEarned(_ context.Context, creatorID, tokenMint string, amount uint64) error {
	if creatorID == "" || tokenMint == "" {
		return storage.ErrInvalidInput
	}
	if amount == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := ledgerKey{creatorID, tokenMint}
	e, exists := s.data[key]
	if !exists {
		e = &domain.FeeLedgerEntry{CreatorID: creatorID, TokenMint: tokenMint}
		s.data[key] = e
	}
	e.TotalEarned += amount
	return nil
}

// IncreaseClaimed adds amount to total_claimed, rejecting overdraws.
func (s *FeeLedgerStore) IncreaseClaimed(_ context.Context, creatorID, tokenMint string, amount uint64) error {
	if creatorID == "" || tokenMint == "" {
		return storage.ErrInvalidInput
	}
	if amount == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := ledgerKey{creatorID, tokenMint}
	e, exists := s.data[key]
	if !exists || e.TotalClaimed+amount > e.TotalEarned {
		return storage.ErrLedgerOverdraw
	}
	e.TotalClaimed += amount
	return nil
}

// GetEntry retrieves one creator+token entry.
func (s *FeeLedgerStore) GetEntry(_ context.Context, creatorID, tokenMint string) (*domain.FeeLedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[ledgerKey{creatorID, tokenMint}]
	if !exists {
		return nil, storage.ErrNotFound
	}

	entryCopy := *e
	return &entryCopy, nil
}

// GetCreatorSummary aggregates across all of a creator's tokens.
func (s *FeeLedgerStore) GetCreatorSummary(_ context.Context, creatorID string) (*domain.CreatorFeeSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := &domain.CreatorFeeSummary{CreatorID: creatorID}
	for key, e := range s.data {
		if key.creatorID != creatorID {
			continue
		}
		summary.PerToken = append(summary.PerToken, *e)
		summary.TotalEarned += e.TotalEarned
		summary.TotalClaimed += e.TotalClaimed
	}

	sort.Slice(summary.PerToken, func(i, j int) bool {
		return summary.PerToken[i].TokenMint < summary.PerToken[j].TokenMint
	})

	summary.Available = summary.TotalEarned - summary.TotalClaimed
	return summary, nil
}
