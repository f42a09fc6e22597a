package domain

// Project is one launched token as recorded in the platform registry.
// The registry is maintained by the launch platform; this subsystem only
// reads it to enumerate claimable pools.
type Project struct {
	ProjectID   string
	CreatorID   string
	TokenMint   string
	PoolAddress string
	PoolKind    PoolKind
	Migrated    bool
	Network     string // "mainnet" or "devnet"
	CreatedAt   int64  // unix ms
}

// TreasuryAssignment maps a project to its treasury wallet. Written once,
// never reassigned.
type TreasuryAssignment struct {
	ProjectID     string
	WalletAddress string
	AssignedAt    int64 // unix ms
}
