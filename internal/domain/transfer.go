package domain

// TransferDirection is the expected direction of an externally supplied
// transfer from the signer's point of view.
type TransferDirection string

const (
	// DirectionDeposit expects the signer's token balance to decrease.
	DirectionDeposit TransferDirection = "deposit"

	// DirectionWithdraw expects the signer's token balance to increase.
	DirectionWithdraw TransferDirection = "withdraw"
)

// VerifiedTransfer is the ephemeral result of verifying an external
// transaction. It gates a ledger or raised-amount mutation and is never
// persisted itself.
type VerifiedTransfer struct {
	Signature  string
	Signer     string
	TokenDelta float64 // signed UI-amount delta for the expected mint
	Succeeded  bool
	Reason     string // populated when Succeeded is false
}
