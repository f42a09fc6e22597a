// Package payout pays creators their accrued fees and records the payout
// against the ledger. The ledger increment happens only after the on-chain
// transfer confirms, and never exceeds what is available.
package payout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"solana-fee-engine/internal/domain"
	"solana-fee-engine/internal/solana"
	"solana-fee-engine/internal/storage"
)

var (
	// ErrNothingAvailable means the creator has no withdrawable balance.
	ErrNothingAvailable = errors.New("nothing available to pay")
)

// Chain is the gateway surface payouts need.
type Chain interface {
	Submit(ctx context.Context, txBase64 string) (string, error)
	Confirm(ctx context.Context, signature string, timeout time.Duration) (*solana.Transaction, error)
	GetLatestBlockhash(ctx context.Context) (*solana.Blockhash, error)
}

// Signer builds and signs transfer transactions.
type Signer interface {
	Address() string
	BuildTransaction(blockhash string, instructions ...solana.Instruction) (string, error)
}

// DefaultConfirmTimeout bounds the wait for the payout transfer.
const DefaultConfirmTimeout = 60 * time.Second

// Receipt is the result of a completed payout.
type Receipt struct {
	TxSignature string
	AmountPaid  uint64
}

// Payer executes creator payouts.
type Payer struct {
	chain          Chain
	signer         Signer
	ledger         storage.FeeLedgerStore
	confirmTimeout time.Duration
	logger         *log.Logger
}

// New creates a Payer.
func New(chain Chain, signer Signer, ledger storage.FeeLedgerStore, logger *log.Logger) *Payer {
	return &Payer{
		chain:          chain,
		signer:         signer,
		ledger:         ledger,
		confirmTimeout: DefaultConfirmTimeout,
		logger:         logger,
	}
}

// Pay transfers amount lamports of a creator's available balance to
// destination. An amount of 0 pays out everything available. The request is
// rejected before any transfer when amount exceeds availability; the ledger
// is incremented by exactly the transferred amount, and only after the
// transfer confirms.
func (p *Payer) Pay(ctx context.Context, creatorID, destination string, amount uint64) (*Receipt, error) {
	if err := solana.ValidateAddress(destination); err != nil {
		return nil, fmt.Errorf("destination wallet: %w", err)
	}

	summary, err := p.ledger.GetCreatorSummary(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("read ledger for %s: %w", creatorID, err)
	}
	if summary.Available == 0 {
		return nil, ErrNothingAvailable
	}
	if amount == 0 {
		amount = summary.Available
	}
	if amount > summary.Available {
		return nil, fmt.Errorf("%w: requested %d, available %d", storage.ErrLedgerOverdraw, amount, summary.Available)
	}

	bh, err := p.chain.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("get blockhash: %w", err)
	}
	tx, err := p.signer.BuildTransaction(bh.Blockhash,
		solana.NewTransferInstruction(p.signer.Address(), destination, amount))
	if err != nil {
		return nil, fmt.Errorf("build payout transfer: %w", err)
	}

	sig, err := p.chain.Submit(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("submit payout transfer: %w", err)
	}
	if _, err := p.chain.Confirm(ctx, sig, p.confirmTimeout); err != nil {
		return nil, fmt.Errorf("confirm payout transfer %s: %w", sig, err)
	}

	if err := p.recordClaimed(ctx, creatorID, summary, amount); err != nil {
		// The transfer already happened; surface the bookkeeping failure
		// with the signature so an operator can reconcile by hand.
		return &Receipt{TxSignature: sig, AmountPaid: amount},
			fmt.Errorf("transfer %s confirmed but ledger update failed: %w", sig, err)
	}

	p.logf("paid %d lamports to creator %s (%s)", amount, creatorID, sig)
	return &Receipt{TxSignature: sig, AmountPaid: amount}, nil
}

// recordClaimed spreads the paid amount across the creator's per-token
// entries, consuming each token's availability in turn.
func (p *Payer) recordClaimed(ctx context.Context, creatorID string, summary *domain.CreatorFeeSummary, amount uint64) error {
	remaining := amount
	for _, entry := range summary.PerToken {
		if remaining == 0 {
			break
		}
		avail := entry.Available()
		if avail == 0 {
			continue
		}
		take := avail
		if take > remaining {
			take = remaining
		}
		if err := p.ledger.IncreaseClaimed(ctx, creatorID, entry.TokenMint, take); err != nil {
			return fmt.Errorf("increase claimed for %s/%s by %d: %w", creatorID, entry.TokenMint, take, err)
		}
		remaining -= take
	}
	if remaining > 0 {
		return fmt.Errorf("%w: %d of %d unaccounted", storage.ErrLedgerOverdraw, remaining, amount)
	}
	return nil
}

func (p *Payer) logf(format string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Printf(format, args...)
	}
}
