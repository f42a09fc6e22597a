// Package distribution splits a claimed total across the fixed stakeholder
// table and executes one transfer per leg. Legs are independent: a failed
// transfer is recorded on its own leg and never blocks the others.
package distribution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"solana-fee-engine/internal/cache"
	"solana-fee-engine/internal/domain"
	"solana-fee-engine/internal/solana"
)

// Chain is the gateway surface the allocator needs.
type Chain interface {
	Submit(ctx context.Context, txBase64 string) (string, error)
	Confirm(ctx context.Context, signature string, timeout time.Duration) (*solana.Transaction, error)
	GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error)
	GetMinimumBalanceForRentExemption(ctx context.Context, dataLen int) (uint64, error)
	GetLatestBlockhash(ctx context.Context) (*solana.Blockhash, error)
}

// Signer builds and signs transfer transactions.
type Signer interface {
	Address() string
	BuildTransaction(blockhash string, instructions ...solana.Instruction) (string, error)
}

// Default behavior.
const (
	DefaultDustFloor      = 10_000 // lamports; below this nothing is transferred
	DefaultConfirmTimeout = 60 * time.Second

	// rentMinTTL bounds how long the rent-exempt minimum is cached; it
	// changes only with cluster config.
	rentMinTTL = 10 * time.Minute
)

// Config holds the stakeholder table and tuning.
type Config struct {
	// Stakeholders is the fixed table. Exactly one entry must be marked
	// Treasury; basis points must sum to 10000.
	Stakeholders   []domain.Stakeholder
	DustFloor      uint64
	ConfirmTimeout time.Duration
}

// Validate checks the stakeholder table.
func (c Config) Validate() error {
	if len(c.Stakeholders) == 0 {
		return errors.New("no stakeholders configured")
	}

	var sum uint64
	treasuries := 0
	for _, s := range c.Stakeholders {
		sum += s.PercentageBps
		if s.Treasury {
			treasuries++
			continue
		}
		// The treasury address comes from assignment at distribution
		// time; all other addresses are static configuration.
		if err := solana.ValidateAddress(s.Address); err != nil {
			return fmt.Errorf("stakeholder %s: %w", s.ID, err)
		}
		if !solana.IsOnCurve(s.Address) {
			return fmt.Errorf("stakeholder %s: address %s is not on-curve", s.ID, s.Address)
		}
	}
	if sum != domain.BpsDenominator {
		return fmt.Errorf("stakeholder basis points sum to %d, want %d", sum, domain.BpsDenominator)
	}
	if treasuries != 1 {
		return fmt.Errorf("exactly one treasury stakeholder required, got %d", treasuries)
	}
	return nil
}

// Allocator executes distributions.
type Allocator struct {
	cfg     Config
	chain   Chain
	signer  Signer
	rentMin *cache.Cache[int, uint64]
	logger  *log.Logger
}

// New creates an Allocator. Config must already be validated.
func New(cfg Config, chain Chain, signer Signer, logger *log.Logger) *Allocator {
	if cfg.DustFloor == 0 {
		cfg.DustFloor = DefaultDustFloor
	}
	if cfg.ConfirmTimeout == 0 {
		cfg.ConfirmTimeout = DefaultConfirmTimeout
	}
	return &Allocator{
		cfg:     cfg,
		chain:   chain,
		signer:  signer,
		rentMin: cache.New[int, uint64](),
		logger:  logger,
	}
}

// Split computes the distribution legs for a total without executing
// anything. The treasury leg takes the remainder after flooring the other
// legs, so the amounts always sum to exactly total. Zero-amount non-treasury
// legs are marked skipped.
func Split(total uint64, stakeholders []domain.Stakeholder, treasuryWallet string) []domain.Distribution {
	legs := make([]domain.Distribution, 0, len(stakeholders))

	var allocated uint64
	treasuryIdx := -1
	for _, s := range stakeholders {
		leg := domain.Distribution{
			StakeholderID: s.ID,
			Address:       s.Address,
			PercentageBps: s.PercentageBps,
		}
		if s.Treasury {
			leg.Address = treasuryWallet
			treasuryIdx = len(legs)
			legs = append(legs, leg)
			continue
		}
		leg.Amount = bpsShare(total, s.PercentageBps)
		allocated += leg.Amount
		if leg.Amount == 0 {
			leg.Status = domain.DistributionSkipped
		}
		legs = append(legs, leg)
	}

	if treasuryIdx >= 0 {
		legs[treasuryIdx].Amount = total - allocated
		if legs[treasuryIdx].Amount == 0 {
			legs[treasuryIdx].Status = domain.DistributionSkipped
		}
	}

	return legs
}

// bpsShare computes floor(total*bps/BpsDenominator) without overflowing
// uint64 for large totals. The quotient term cannot overflow because
// bps <= BpsDenominator, and the remainder product stays below 10^8.
func bpsShare(total, bps uint64) uint64 {
	return total/domain.BpsDenominator*bps + total%domain.BpsDenominator*bps/domain.BpsDenominator
}

// Distribute splits total across the stakeholder table and sends one
// transfer per leg. A total below the dust floor produces an empty list
// and no transfers; this is not an error.
func (a *Allocator) Distribute(ctx context.Context, total uint64, treasuryWallet string) ([]domain.Distribution, error) {
	if total < a.cfg.DustFloor {
		a.logf("total %d below dust floor %d, skipping distribution", total, a.cfg.DustFloor)
		return nil, nil
	}
	if err := solana.ValidateAddress(treasuryWallet); err != nil {
		return nil, fmt.Errorf("treasury wallet: %w", err)
	}

	legs := Split(total, a.cfg.Stakeholders, treasuryWallet)

	for i := range legs {
		if legs[i].Status == domain.DistributionSkipped {
			continue
		}

		if legs[i].Address == treasuryWallet {
			topUp, err := a.treasuryTopUp(ctx, treasuryWallet)
			if err != nil {
				// Funding state is advisory; send the base amount anyway.
				a.logf("rent top-up check for %s: %v", treasuryWallet, err)
			} else {
				legs[i].RentTopUp = topUp
			}
		}

		a.sendLeg(ctx, &legs[i])
	}

	return legs, nil
}

// sendLeg submits and confirms one transfer, recording the outcome on the
// leg itself.
func (a *Allocator) sendLeg(ctx context.Context, leg *domain.Distribution) {
	bh, err := a.chain.GetLatestBlockhash(ctx)
	if err != nil {
		leg.Status = domain.DistributionFailed
		leg.ErrorDetail = fmt.Sprintf("get blockhash: %v", err)
		return
	}

	tx, err := a.signer.BuildTransaction(bh.Blockhash,
		solana.NewTransferInstruction(a.signer.Address(), leg.Address, leg.Amount+leg.RentTopUp))
	if err != nil {
		leg.Status = domain.DistributionFailed
		leg.ErrorDetail = fmt.Sprintf("build transfer: %v", err)
		return
	}

	sig, err := a.chain.Submit(ctx, tx)
	if err != nil {
		leg.Status = domain.DistributionFailed
		leg.ErrorDetail = fmt.Sprintf("submit transfer: %v", err)
		return
	}
	leg.TxSignature = sig

	if _, err := a.chain.Confirm(ctx, sig, a.cfg.ConfirmTimeout); err != nil {
		leg.Status = domain.DistributionFailed
		leg.ErrorDetail = fmt.Sprintf("confirm transfer: %v", err)
		return
	}

	leg.Status = domain.DistributionSent
	a.logf("sent %d lamports to %s (%s)", leg.Amount+leg.RentTopUp, leg.Address, leg.StakeholderID)
}

// treasuryTopUp returns the rent-exempt minimum when the destination
// account is missing or underfunded, so the recipient ends up usable. The
// top-up is not charged against the ledger.
func (a *Allocator) treasuryTopUp(ctx context.Context, wallet string) (uint64, error) {
	rentMin, ok := a.rentMin.Get(0, rentMinTTL)
	if !ok {
		min, err := a.chain.GetMinimumBalanceForRentExemption(ctx, 0)
		if err != nil {
			return 0, fmt.Errorf("get rent-exempt minimum: %w", err)
		}
		a.rentMin.Set(0, min)
		rentMin = min
	}

	info, err := a.chain.GetAccountInfo(ctx, wallet)
	if err != nil {
		return 0, fmt.Errorf("get account info: %w", err)
	}
	if info == nil || info.Lamports < rentMin {
		return rentMin, nil
	}
	return 0, nil
}

func (a *Allocator) logf(format string, args ...interface{}) {
	if a.logger != nil {
		a.logger.Printf(format, args...)
	}
}
