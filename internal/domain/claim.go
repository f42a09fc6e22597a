package domain

// PoolKind identifies the on-chain liquidity primitive fees are claimed from.
type PoolKind string

const (
	PoolKindAMM          PoolKind = "AMM"
	PoolKindBondingCurve PoolKind = "BONDING_CURVE"
)

// ClaimAction is one claimable fee type on a pool.
type ClaimAction string

const (
	ActionCreatorFee   ClaimAction = "CREATOR_FEE"
	ActionPartnerFee   ClaimAction = "PARTNER_FEE"
	ActionPositionFee  ClaimAction = "POSITION_FEE"
	ActionSurplus      ClaimAction = "SURPLUS"
	ActionMigrationFee ClaimAction = "MIGRATION_FEE"
)

// ClaimStatus is the terminal status of one attempted claim action.
type ClaimStatus string

const (
	// ClaimSuccess means the transaction confirmed on-chain. The resolved
	// amount may still be zero if no strategy produced a plausible value.
	ClaimSuccess ClaimStatus = "SUCCESS"

	// ClaimFailed means the transaction did not confirm or was rejected.
	ClaimFailed ClaimStatus = "FAILED"

	// ClaimSkipped means no transaction was built (e.g. not authorized).
	ClaimSkipped ClaimStatus = "SKIPPED"
)

// ClaimTarget describes one pool eligible for claiming in the current run.
// Targets are built from the project registry at the start of a sweep and
// are not persisted.
type ClaimTarget struct {
	ProjectID   string
	CreatorID   string
	TokenMint   string
	PoolAddress string
	PoolKind    PoolKind
	Migrated    bool          // migration fee only claimable after migration
	Actions     []ClaimAction // attempted in order
}

// ClaimResult is the outcome of one attempted claim action.
type ClaimResult struct {
	Action         ClaimAction
	Status         ClaimStatus
	TxSignature    string // empty for skipped actions
	ResolvedAmount uint64 // base units (lamports)
	ResolveMethod  string // how the amount was determined, for audit
	ErrorDetail    string // populated for Failed and Skipped
}

// TargetResult aggregates all action results for one target.
type TargetResult struct {
	Target        ClaimTarget
	Results       []ClaimResult
	TotalClaimed  uint64 // sum of resolved amounts over successful actions
	Distributions []Distribution
}

// SweepTotals summarizes a full sweep run.
type SweepTotals struct {
	Successful   int
	Failed       int
	Skipped      int
	TotalClaimed uint64
}

// SweepResult is returned by RunClaimSweep. Partial results are included
// even when the run aborts early.
type SweepResult struct {
	PerTarget []TargetResult
	Totals    SweepTotals
}
