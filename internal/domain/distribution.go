package domain

// BpsDenominator is the basis-point scale: 10000 bps = 100%.
const BpsDenominator = 10000

// DistributionStatus is the terminal status of one distribution leg.
type DistributionStatus string

const (
	DistributionSent    DistributionStatus = "SENT"
	DistributionFailed  DistributionStatus = "FAILED"
	DistributionSkipped DistributionStatus = "SKIPPED" // computed amount was zero
)

// Stakeholder is one fixed recipient in the distribution table.
// The six configured stakeholders must have PercentageBps summing to 10000.
type Stakeholder struct {
	ID            string
	Address       string
	PercentageBps uint64

	// Treasury marks the remainder leg: its amount is total minus the sum
	// of the other legs so flooring never leaks dust.
	Treasury bool
}

// Distribution is one transfer leg of a claimed total.
type Distribution struct {
	StakeholderID string
	Address       string
	PercentageBps uint64
	Amount        uint64 // base units; excludes any rent-exempt top-up
	RentTopUp     uint64 // extra lamports sent to fund a missing account
	TxSignature   string
	Status        DistributionStatus
	ErrorDetail   string
}
