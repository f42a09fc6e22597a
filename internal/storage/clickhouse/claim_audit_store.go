package clickhouse

import (
	"context"
	"fmt"

	"solana-fee-engine/internal/domain"
	"solana-fee-engine/internal/storage"
)

// ClaimAuditStore implements storage.ClaimAuditStore using ClickHouse.
// Audit events are append-only and read back rarely, which suits the
// MergeTree engine.
type ClaimAuditStore struct {
	conn *Conn
}

// NewClaimAuditStore creates a new ClaimAuditStore.
func NewClaimAuditStore(conn *Conn) *ClaimAuditStore {
	return &ClaimAuditStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ClaimAuditStore = (*ClaimAuditStore)(nil)

// Insert appends one audit event.
func (s *ClaimAuditStore) Insert(ctx context.Context, e *domain.ClaimAuditEvent) error {
	if e == nil || e.TxSignature == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO claim_audit_events (
			tx_signature, project_id, creator_id, token_mint, pool_address,
			action, resolve_method, amount, slot, observed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := s.conn.Exec(ctx, query,
		e.TxSignature,
		e.ProjectID,
		e.CreatorID,
		e.TokenMint,
		e.PoolAddress,
		string(e.Action),
		e.ResolveMethod,
		e.Amount,
		e.Slot,
		e.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("insert claim audit event: %w", err)
	}
	return nil
}

const auditColumns = `tx_signature, project_id, creator_id, token_mint, pool_address,
		action, resolve_method, amount, slot, observed_at`

// GetBySignature retrieves all audit events for a transaction.
func (s *ClaimAuditStore) GetBySignature(ctx context.Context, txSignature string) ([]*domain.ClaimAuditEvent, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM claim_audit_events
		WHERE tx_signature = ?
		ORDER BY observed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, txSignature)
	if err != nil {
		return nil, fmt.Errorf("get audit events by signature: %w", err)
	}
	defer rows.Close()

	return scanAuditEvents(rows)
}

// GetByCreator retrieves audit events for a creator, newest first.
func (s *ClaimAuditStore) GetByCreator(ctx context.Context, creatorID string, limit int) ([]*domain.ClaimAuditEvent, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM claim_audit_events
		WHERE creator_id = ?
		ORDER BY observed_at DESC
	`
	args := []interface{}{creatorID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get audit events by creator: %w", err)
	}
	defer rows.Close()

	return scanAuditEvents(rows)
}

// rowScanner abstracts clickhouse rows for scanning.
type rowScanner interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanAuditEvents(rows rowScanner) ([]*domain.ClaimAuditEvent, error) {
	var events []*domain.ClaimAuditEvent
	for rows.Next() {
		var e domain.ClaimAuditEvent
		var action string
		err := rows.Scan(&e.TxSignature, &e.ProjectID, &e.CreatorID, &e.TokenMint,
			&e.PoolAddress, &action, &e.ResolveMethod, &e.Amount, &e.Slot, &e.ObservedAt)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Action = domain.ClaimAction(action)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
