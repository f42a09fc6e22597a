package domain

// ClaimAuditEvent is the append-only audit record written for every
// resolved claim: which strategy produced the amount, and what it was.
type ClaimAuditEvent struct {
	TxSignature   string
	ProjectID     string
	CreatorID     string
	TokenMint     string
	PoolAddress   string
	Action        ClaimAction
	ResolveMethod string
	Amount        uint64
	Slot          int64
	ObservedAt    int64 // unix ms
}
