package memory

import (
	"context"
	"sync"

	"solana-fee-engine/internal/domain"
	"solana-fee-engine/internal/storage"
)

// TreasuryAssignmentStore is an in-memory implementation of
// storage.TreasuryAssignmentStore.
type TreasuryAssignmentStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TreasuryAssignment // keyed by project_id
}

// NewTreasuryAssignmentStore creates a new in-memory assignment store.
func NewTreasuryAssignmentStore() *TreasuryAssignmentStore {
	return &TreasuryAssignmentStore{
		data: make(map[string]*domain.TreasuryAssignment),
	}
}

// Compile-time interface check.
var _ storage.TreasuryAssignmentStore = (*TreasuryAssignmentStore)(nil)

// Get returns the assignment for a project.
func (s *TreasuryAssignmentStore) Get(_ context.Context, projectID string) (*domain.TreasuryAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.data[projectID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	assignmentCopy := *a
	return &assignmentCopy, nil
}

// Put records an assignment; the first write for a project wins.
func (s *TreasuryAssignmentStore) Put(_ context.Context, a *domain.TreasuryAssignment) error {
	if a == nil || a.ProjectID == "" || a.WalletAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.ProjectID]; exists {
		return nil
	}

	assignmentCopy := *a
	s.data[a.ProjectID] = &assignmentCopy
	return nil
}
