package domain

// FeeLedgerEntry holds the durable cumulative counters for one
// creator+token pair. Invariant: 0 <= TotalClaimed <= TotalEarned.
type FeeLedgerEntry struct {
	CreatorID    string
	TokenMint    string
	TotalEarned  uint64 // base units accrued from verified claims
	TotalClaimed uint64 // base units already paid out to the creator
}

// Available returns the amount the creator can still withdraw.
func (e FeeLedgerEntry) Available() uint64 {
	if e.TotalClaimed > e.TotalEarned {
		return 0
	}
	return e.TotalEarned - e.TotalClaimed
}

// CreatorFeeSummary aggregates a creator's ledger across all tokens.
type CreatorFeeSummary struct {
	CreatorID    string
	TotalEarned  uint64
	TotalClaimed uint64
	Available    uint64
	PerToken     []FeeLedgerEntry
}
