// Package verifier validates externally supplied transaction signatures
// (investor deposits and withdrawals) against chain state before any
// ledger or raised-amount mutation depends on them.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"solana-fee-engine/internal/cache"
	"solana-fee-engine/internal/domain"
	"solana-fee-engine/internal/solana"
)

// ErrVerificationFailed wraps every rejection reason so callers can gate
// with a single errors.Is check.
var ErrVerificationFailed = errors.New("transfer verification failed")

// AmountTolerance allows 1% slack between the expected amount and the
// observed balance delta, covering rounding in UI-amount reporting.
const AmountTolerance = 0.99

// DefaultRetryDelay is the wait before the single re-fetch when a
// transaction is not yet visible (propagation lag).
const DefaultRetryDelay = 2 * time.Second

// DefaultCacheTTL bounds how long a verification result is reused without
// re-fetching the transaction.
const DefaultCacheTTL = 5 * time.Minute

// TransactionFetcher is the chain read surface the verifier needs.
type TransactionFetcher interface {
	GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error)
}

// Verifier checks external transfers.
type Verifier struct {
	chain      TransactionFetcher
	retryDelay time.Duration
	cacheTTL   time.Duration
	results    *cache.Cache[string, domain.VerifiedTransfer]
}

// Option configures Verifier.
type Option func(*Verifier)

// WithRetryDelay sets the not-yet-visible re-fetch delay.
func WithRetryDelay(d time.Duration) Option {
	return func(v *Verifier) {
		v.retryDelay = d
	}
}

// WithCacheTTL sets how long verification results are reused.
func WithCacheTTL(d time.Duration) Option {
	return func(v *Verifier) {
		v.cacheTTL = d
	}
}

// New creates a Verifier.
func New(chain TransactionFetcher, opts ...Option) *Verifier {
	v := &Verifier{
		chain:      chain,
		retryDelay: DefaultRetryDelay,
		cacheTTL:   DefaultCacheTTL,
		results:    cache.New[string, domain.VerifiedTransfer](),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks that the transaction exists, succeeded, was signed by
// expectedSigner, and moved at least expectedAmount (within tolerance) of
// expectedMint in the given direction. The returned VerifiedTransfer
// carries the rejection reason when invalid; the error is non-nil only
// for rejections, so callers can gate mutations on err == nil.
func (v *Verifier) Verify(ctx context.Context, signature, expectedSigner, expectedMint string, expectedAmount float64, direction domain.TransferDirection) (domain.VerifiedTransfer, error) {
	cacheKey := signature + "|" + expectedSigner
	if cached, ok := v.results.Get(cacheKey, v.cacheTTL); ok {
		return cached, v.resultErr(cached)
	}

	result := v.verify(ctx, signature, expectedSigner, expectedMint, expectedAmount, direction)
	v.results.Set(cacheKey, result)
	return result, v.resultErr(result)
}

func (v *Verifier) resultErr(r domain.VerifiedTransfer) error {
	if r.Succeeded {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrVerificationFailed, r.Reason)
}

func (v *Verifier) verify(ctx context.Context, signature, expectedSigner, expectedMint string, expectedAmount float64, direction domain.TransferDirection) domain.VerifiedTransfer {
	result := domain.VerifiedTransfer{
		Signature: signature,
		Signer:    expectedSigner,
	}

	tx, err := v.fetchWithRetry(ctx, signature)
	if err != nil {
		result.Reason = fmt.Sprintf("fetch transaction: %v", err)
		return result
	}
	if tx == nil {
		result.Reason = "transaction not found"
		return result
	}

	if tx.Meta.Failed() {
		result.Reason = fmt.Sprintf("transaction failed on chain: %v", tx.Meta.Err)
		return result
	}

	if !containsSigner(tx, expectedSigner) {
		result.Reason = fmt.Sprintf("expected signer %s not among transaction signers", expectedSigner)
		return result
	}

	// Without token balances there is nothing to compare amounts against;
	// signer and status checks still hold.
	if tx.Meta == nil || (len(tx.Meta.PreTokenBalances) == 0 && len(tx.Meta.PostTokenBalances) == 0) {
		result.Succeeded = true
		return result
	}

	delta := signerTokenDelta(tx, expectedSigner, expectedMint)
	result.TokenDelta = delta

	switch direction {
	case domain.DirectionDeposit:
		if delta >= 0 {
			result.Reason = fmt.Sprintf("expected balance decrease for deposit, got delta %g", delta)
			return result
		}
	case domain.DirectionWithdraw:
		if delta <= 0 {
			result.Reason = fmt.Sprintf("expected balance increase for withdraw, got delta %g", delta)
			return result
		}
	default:
		result.Reason = fmt.Sprintf("unknown direction %q", direction)
		return result
	}

	if math.Abs(delta) < expectedAmount*AmountTolerance {
		result.Reason = fmt.Sprintf("balance delta %g below expected %g (1%% tolerance)", math.Abs(delta), expectedAmount)
		return result
	}

	result.Succeeded = true
	return result
}

// fetchWithRetry retries once after a fixed delay when the transaction is
// not yet visible, tolerating propagation lag.
func (v *Verifier) fetchWithRetry(ctx context.Context, signature string) (*solana.Transaction, error) {
	tx, err := v.chain.GetTransaction(ctx, signature)
	if err != nil {
		return nil, err
	}
	if tx != nil {
		return tx, nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(v.retryDelay):
	}

	return v.chain.GetTransaction(ctx, signature)
}

func containsSigner(tx *solana.Transaction, signer string) bool {
	for _, s := range tx.Message.Signers() {
		if s == signer {
			return true
		}
	}
	return false
}

// signerTokenDelta computes the signer's UI-amount balance change for the
// expected mint across all of the signer's token accounts.
func signerTokenDelta(tx *solana.Transaction, signer, mint string) float64 {
	var pre, post float64
	for _, b := range tx.Meta.PreTokenBalances {
		if b.Owner == signer && (mint == "" || b.Mint == mint) {
			pre += b.UIAmount
		}
	}
	for _, b := range tx.Meta.PostTokenBalances {
		if b.Owner == signer && (mint == "" || b.Mint == mint) {
			post += b.UIAmount
		}
	}
	return post - pre
}
