package storage

import (
	"context"

	"solana-fee-engine/internal/domain"
)

// FeeLedgerStore holds the durable earned/claimed counters per
// creator+token. Updates are commutative increments, never absolute
// overwrites, so repeated partial runs accumulate instead of clobbering
// concurrent writers.
type FeeLedgerStore interface {
	// IncreaseEarned adds amount to total_earned for creator+token,
	// creating the entry if absent.
	IncreaseEarned(ctx context.Context, creatorID, tokenMint string, amount uint64) error

	// IncreaseClaimed adds amount to total_claimed for creator+token.
	// Returns ErrLedgerOverdraw without mutating when amount exceeds the
	// entry's available balance at call time.
	IncreaseClaimed(ctx context.Context, creatorID, tokenMint string, amount uint64) error

	// GetEntry retrieves one creator+token entry. Returns ErrNotFound if
	// it does not exist.
	GetEntry(ctx context.Context, creatorID, tokenMint string) (*domain.FeeLedgerEntry, error)

	// GetCreatorSummary aggregates earned/claimed/available across all of
	// a creator's tokens, with a per-token breakdown.
	GetCreatorSummary(ctx context.Context, creatorID string) (*domain.CreatorFeeSummary, error)
}

// TreasuryAssignmentStore persists the project→treasury-wallet mapping.
// Assignments are written once and never reassigned.
type TreasuryAssignmentStore interface {
	// Get returns the assignment for a project. Returns ErrNotFound if
	// the project has no assignment yet.
	Get(ctx context.Context, projectID string) (*domain.TreasuryAssignment, error)

	// Put records an assignment. A concurrent or repeated write for the
	// same project is a no-op; the stored assignment wins.
	Put(ctx context.Context, a *domain.TreasuryAssignment) error
}

// ProjectStore is the read side of the platform's project registry: the
// listing of launched tokens and their pools that a sweep enumerates.
type ProjectStore interface {
	// ListClaimable returns projects with a pool on the given network,
	// newest first, up to limit (0 = no limit).
	ListClaimable(ctx context.Context, network string, limit int) ([]*domain.Project, error)

	// GetByPool returns the project owning a pool address. Returns
	// ErrNotFound if unknown.
	GetByPool(ctx context.Context, poolAddress string) (*domain.Project, error)

	// GetByID returns a project by ID. Returns ErrNotFound if unknown.
	GetByID(ctx context.Context, projectID string) (*domain.Project, error)
}

// ClaimAuditStore is the append-only audit log of resolved claims.
type ClaimAuditStore interface {
	// Insert appends one audit event.
	Insert(ctx context.Context, e *domain.ClaimAuditEvent) error

	// GetBySignature retrieves all audit events for a transaction.
	GetBySignature(ctx context.Context, txSignature string) ([]*domain.ClaimAuditEvent, error)

	// GetByCreator retrieves audit events for a creator, newest first,
	// up to limit (0 = no limit).
	GetByCreator(ctx context.Context, creatorID string, limit int) ([]*domain.ClaimAuditEvent, error)
}
