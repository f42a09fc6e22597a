package solana

// Transaction represents a confirmed Solana transaction with the metadata
// the claim pipeline needs: logs, lamport balances, and token balances.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err               interface{}
	Fee               uint64
	LogMessages       []string
	PreBalances       []uint64
	PostBalances      []uint64
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
}

// Failed reports whether the transaction recorded an on-chain error.
func (m *TransactionMeta) Failed() bool {
	return m != nil && m.Err != nil
}

// TokenBalance is one entry of pre/postTokenBalances.
type TokenBalance struct {
	AccountIndex int
	Mint         string
	Owner        string
	Amount       string // raw base-unit amount as decimal string
	Decimals     int
	UIAmount     float64
}

// TransactionMessage contains the parsed transaction message.
type TransactionMessage struct {
	AccountKeys []string

	// NumRequiredSignatures from the message header: the first N account
	// keys are the transaction's signers.
	NumRequiredSignatures int
}

// Signers returns the account keys that signed the transaction.
func (m *TransactionMessage) Signers() []string {
	if m == nil || m.NumRequiredSignatures <= 0 {
		return nil
	}
	n := m.NumRequiredSignatures
	if n > len(m.AccountKeys) {
		n = len(m.AccountKeys)
	}
	return m.AccountKeys[:n]
}

// SignatureStatus is one entry of getSignatureStatuses.
type SignatureStatus struct {
	Slot               int64
	Confirmations      *int
	Err                interface{}
	ConfirmationStatus string // "processed", "confirmed", "finalized"
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64
	Owner      string
	Data       string // base64 encoded
	Executable bool
	RentEpoch  uint64
}

// Blockhash is a recent blockhash with its expiry height.
type Blockhash struct {
	Blockhash            string
	LastValidBlockHeight uint64
}
