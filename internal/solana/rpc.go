package solana

import "context"

// RPCClient defines the Solana RPC surface the fee engine uses. All
// implementations must honor context deadlines on every call.
type RPCClient interface {
	// GetTransaction retrieves a confirmed transaction by signature.
	// Returns nil (no error) when the transaction is not yet visible.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// SendTransaction submits a base64-encoded signed transaction and
	// returns its signature.
	SendTransaction(ctx context.Context, txBase64 string) (string, error)

	// GetSignatureStatuses returns the status of each signature, nil for
	// signatures the cluster does not know about.
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)

	// GetAccountInfo retrieves account info by public key.
	// Returns nil if the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetBalance returns the lamport balance of an account.
	GetBalance(ctx context.Context, pubkey string) (uint64, error)

	// GetMinimumBalanceForRentExemption returns the rent-exempt minimum
	// for an account of the given data length.
	GetMinimumBalanceForRentExemption(ctx context.Context, dataLen int) (uint64, error)

	// GetLatestBlockhash returns a recent blockhash for transaction building.
	GetLatestBlockhash(ctx context.Context) (*Blockhash, error)
}
