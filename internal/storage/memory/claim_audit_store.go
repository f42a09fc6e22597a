package memory

import (
	"context"
	"sync"

	"solana-fee-engine/internal/domain"
	"solana-fee-engine/internal/storage"
)

// ClaimAuditStore is an in-memory implementation of storage.ClaimAuditStore.
type ClaimAuditStore struct {
	mu     sync.RWMutex
	events []*domain.ClaimAuditEvent
}

// NewClaimAuditStore creates a new in-memory audit store.
func NewClaimAuditStore() *ClaimAuditStore {
	return &ClaimAuditStore{}
}

// Compile-time interface check.
var _ storage.ClaimAuditStore = (*ClaimAuditStore)(nil)

// Insert appends one audit event.
func (s *ClaimAuditStore) Insert(_ context.Context, e *domain.ClaimAuditEvent) error {
	if e == nil || e.TxSignature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	eventCopy := *e
	s.events = append(s.events, &eventCopy)
	return nil
}

// GetBySignature retrieves all audit events for a transaction.
func (s *ClaimAuditStore) GetBySignature(_ context.Context, txSignature string) ([]*domain.ClaimAuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ClaimAuditEvent
	for _, e := range s.events {
		if e.TxSignature == txSignature {
			eventCopy := *e
			result = append(result, &eventCopy)
		}
	}
	return result, nil
}

// GetByCreator retrieves audit events for a creator, newest first.
func (s *ClaimAuditStore) GetByCreator(_ context.Context, creatorID string, limit int) ([]*domain.ClaimAuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ClaimAuditEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].CreatorID != creatorID {
			continue
		}
		eventCopy := *s.events[i]
		result = append(result, &eventCopy)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}
