package postgres

import (
	"context"
	"fmt"

	"solana-fee-engine/internal/domain"
	"solana-fee-engine/internal/storage"
)

// TreasuryAssignmentStore implements storage.TreasuryAssignmentStore using
// PostgreSQL.
type TreasuryAssignmentStore struct {
	pool *Pool
}

// NewTreasuryAssignmentStore creates a new TreasuryAssignmentStore.
func NewTreasuryAssignmentStore(pool *Pool) *TreasuryAssignmentStore {
	return &TreasuryAssignmentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TreasuryAssignmentStore = (*TreasuryAssignmentStore)(nil)

// Get returns the assignment for a project.
func (s *TreasuryAssignmentStore) Get(ctx context.Context, projectID string) (*domain.TreasuryAssignment, error) {
	query := `
		SELECT project_id, wallet_address, assigned_at
		FROM treasury_assignments
		WHERE project_id = $1
	`

	var a domain.TreasuryAssignment
	err := s.pool.QueryRow(ctx, query, projectID).
		Scan(&a.ProjectID, &a.WalletAddress, &a.AssignedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get treasury assignment: %w", err)
	}
	return &a, nil
}

// Put records an assignment. ON CONFLICT DO NOTHING makes repeated writes
// for the same project a no-op; the first stored assignment wins.
func (s *TreasuryAssignmentStore) Put(ctx context.Context, a *domain.TreasuryAssignment) error {
	if a == nil || a.ProjectID == "" || a.WalletAddress == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO treasury_assignments (project_id, wallet_address, assigned_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id) DO NOTHING
	`

	_, err := s.pool.Exec(ctx, query, a.ProjectID, a.WalletAddress, a.AssignedAt)
	if err != nil {
		return fmt.Errorf("put treasury assignment: %w", err)
	}
	return nil
}
