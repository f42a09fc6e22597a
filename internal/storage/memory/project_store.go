package memory

import (
	"context"
	"sort"
	"sync"

	"solana-fee-engine/internal/domain"
	"solana-fee-engine/internal/storage"
)

// ProjectStore is an in-memory implementation of storage.ProjectStore.
type ProjectStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Project // keyed by project_id
}

// NewProjectStore creates a new in-memory project store.
func NewProjectStore() *ProjectStore {
	return &ProjectStore{
		data: make(map[string]*domain.Project),
	}
}

// Compile-time interface check.
var _ storage.ProjectStore = (*ProjectStore)(nil)

// Add seeds a project. Used by tests and dev mode.
func (s *ProjectStore) Add(p *domain.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()

	projectCopy := *p
	s.data[p.ProjectID] = &projectCopy
}

// ListClaimable returns projects with a pool on the given network.
func (s *ProjectStore) ListClaimable(_ context.Context, network string, limit int) ([]*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Project
	for _, p := range s.data {
		if p.Network == network && p.PoolAddress != "" {
			projectCopy := *p
			result = append(result, &projectCopy)
		}
	}

	// Newest first, matching the postgres implementation.
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt > result[j].CreatedAt
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetByPool returns the project owning a pool address.
func (s *ProjectStore) GetByPool(_ context.Context, poolAddress string) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.data {
		if p.PoolAddress == poolAddress {
			projectCopy := *p
			return &projectCopy, nil
		}
	}
	return nil, storage.ErrNotFound
}

// GetByID returns a project by ID.
func (s *ProjectStore) GetByID(_ context.Context, projectID string) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[projectID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	projectCopy := *p
	return &projectCopy, nil
}
