package distribution

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/mr-tron/base58"

	"solana-fee-engine/internal/domain"
	"solana-fee-engine/internal/solana"
)

// testAddr derives a deterministic on-curve address from a seed byte.
func testAddr(seed byte) string {
	s := make([]byte, ed25519.SeedSize)
	for i := range s {
		s[i] = seed
	}
	priv := ed25519.NewKeyFromSeed(s)
	return base58.Encode(priv.Public().(ed25519.PublicKey))
}

var (
	addrPlatform  = testAddr(1)
	addrPartner   = testAddr(2)
	addrOps       = testAddr(3)
	addrMarketing = testAddr(4)
	addrReserve   = testAddr(5)
	addrTreasury  = testAddr(6)
)

func sixStakeholders() []domain.Stakeholder {
	return []domain.Stakeholder{
		{ID: "platform", Address: addrPlatform, PercentageBps: 500},
		{ID: "partner", Address: addrPartner, PercentageBps: 500},
		{ID: "ops", Address: addrOps, PercentageBps: 500},
		{ID: "marketing", Address: addrMarketing, PercentageBps: 3500},
		{ID: "reserve", Address: addrReserve, PercentageBps: 500},
		{ID: "treasury", PercentageBps: 4500, Treasury: true},
	}
}

func TestSplitScenario(t *testing.T) {
	legs := Split(1_000_000, sixStakeholders(), addrTreasury)
	if len(legs) != 6 {
		t.Fatalf("got %d legs, want 6", len(legs))
	}

	want := []uint64{50_000, 50_000, 50_000, 350_000, 50_000, 450_000}
	for i, leg := range legs {
		if leg.Amount != want[i] {
			t.Fatalf("leg %s amount = %d, want %d", leg.StakeholderID, leg.Amount, want[i])
		}
	}
	if legs[5].Address != addrTreasury {
		t.Fatalf("treasury leg address = %s, want %s", legs[5].Address, addrTreasury)
	}
}

func TestSplitProportionality(t *testing.T) {
	// Flooring must never leak: the legs always sum to exactly the total,
	// including totals large enough to overflow a naive total*bps product.
	totals := []uint64{1, 7, 99, 10_001, 123_457, 999_999_999, 1<<40 + 3, 1<<62 + 11, math.MaxUint64}
	for _, total := range totals {
		legs := Split(total, sixStakeholders(), addrTreasury)
		var sum uint64
		for _, leg := range legs {
			sum += leg.Amount
		}
		if sum != total {
			t.Fatalf("total %d: legs sum to %d", total, sum)
		}
	}
}

func TestSplitZeroLegsSkipped(t *testing.T) {
	// A tiny total floors the 5% legs to zero; they must be marked
	// skipped and the treasury leg takes the remainder after the
	// marketing leg's floored share.
	legs := Split(19, sixStakeholders(), addrTreasury)
	for _, leg := range legs {
		if leg.StakeholderID == "treasury" {
			if leg.Amount != 13 {
				t.Fatalf("treasury amount = %d, want 13", leg.Amount)
			}
			continue
		}
		if leg.StakeholderID == "marketing" {
			if leg.Amount != 6 { // 19*3500/10000
				t.Fatalf("marketing amount = %d, want 6", leg.Amount)
			}
			continue
		}
		if leg.Status != domain.DistributionSkipped {
			t.Fatalf("leg %s (amount %d) not marked skipped", leg.StakeholderID, leg.Amount)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Stakeholders: sixStakeholders()}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	bad := sixStakeholders()
	bad[0].PercentageBps = 600 // sum 10100
	if err := (Config{Stakeholders: bad}).Validate(); err == nil {
		t.Fatal("expected error for bps sum != 10000")
	}

	noTreasury := sixStakeholders()
	noTreasury[5].Treasury = false
	noTreasury[5].Address = addrTreasury
	if err := (Config{Stakeholders: noTreasury}).Validate(); err == nil {
		t.Fatal("expected error for missing treasury stakeholder")
	}

	badAddr := sixStakeholders()
	badAddr[1].Address = "not-base58-!!"
	if err := (Config{Stakeholders: badAddr}).Validate(); err == nil {
		t.Fatal("expected error for malformed stakeholder address")
	}
}

// fakeChain scripts gateway behavior for allocator tests.
type fakeChain struct {
	submits     int
	confirms    int
	failSubmit  map[string]error // keyed by destination address substring
	accounts    map[string]*solana.AccountInfo
	rentMin     uint64
	rentCalls   int
	lastSubmits []string
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		failSubmit: make(map[string]error),
		accounts:   make(map[string]*solana.AccountInfo),
		rentMin:    890_880,
	}
}

func (f *fakeChain) Submit(_ context.Context, tx string) (string, error) {
	for needle, err := range f.failSubmit {
		if strings.Contains(tx, needle) {
			return "", err
		}
	}
	f.submits++
	f.lastSubmits = append(f.lastSubmits, tx)
	return fmt.Sprintf("sig-%d", f.submits), nil
}

func (f *fakeChain) Confirm(_ context.Context, sig string, _ time.Duration) (*solana.Transaction, error) {
	f.confirms++
	return &solana.Transaction{Signature: sig, Meta: &solana.TransactionMeta{}}, nil
}

func (f *fakeChain) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	return f.accounts[pubkey], nil
}

func (f *fakeChain) GetMinimumBalanceForRentExemption(_ context.Context, _ int) (uint64, error) {
	f.rentCalls++
	return f.rentMin, nil
}

func (f *fakeChain) GetLatestBlockhash(_ context.Context) (*solana.Blockhash, error) {
	return &solana.Blockhash{Blockhash: "9sHcv6xwn9YkB8nxTUGKDwPwNnmqVp5oAXxU8Fdkm4J6"}, nil
}

// fakeSigner records transfers instead of serializing real transactions,
// encoding destination and amount into the fake wire form so failures can
// be targeted per leg.
type fakeSigner struct{}

func (fakeSigner) Address() string { return addrPlatform }

func (fakeSigner) BuildTransaction(_ string, instructions ...solana.Instruction) (string, error) {
	ix := instructions[0]
	return fmt.Sprintf("transfer:%s", ix.Accounts[1].PubKey), nil
}

func newTestAllocator(chain Chain) *Allocator {
	return New(Config{Stakeholders: sixStakeholders(), DustFloor: 10_000}, chain, fakeSigner{}, nil)
}

func TestDistributeBelowDustFloor(t *testing.T) {
	chain := newFakeChain()
	a := newTestAllocator(chain)

	legs, err := a.Distribute(context.Background(), 9_999, addrTreasury)
	if err != nil {
		t.Fatalf("Distribute: %v", err)
	}
	if legs != nil {
		t.Fatalf("got %d legs, want none below the dust floor", len(legs))
	}
	if chain.submits != 0 {
		t.Fatalf("%d transfers sent below the dust floor", chain.submits)
	}
}

func TestDistributeSendsEveryLeg(t *testing.T) {
	chain := newFakeChain()
	chain.accounts[addrTreasury] = &solana.AccountInfo{Lamports: 5_000_000}
	a := newTestAllocator(chain)

	legs, err := a.Distribute(context.Background(), 1_000_000, addrTreasury)
	if err != nil {
		t.Fatalf("Distribute: %v", err)
	}
	if len(legs) != 6 {
		t.Fatalf("got %d legs, want 6", len(legs))
	}
	for _, leg := range legs {
		if leg.Status != domain.DistributionSent {
			t.Fatalf("leg %s status = %s, want %s (%s)", leg.StakeholderID, leg.Status, domain.DistributionSent, leg.ErrorDetail)
		}
		if leg.TxSignature == "" {
			t.Fatalf("leg %s has no signature", leg.StakeholderID)
		}
	}
	if chain.submits != 6 || chain.confirms != 6 {
		t.Fatalf("submits=%d confirms=%d, want 6/6", chain.submits, chain.confirms)
	}
}

func TestDistributeLegFailureIsolated(t *testing.T) {
	chain := newFakeChain()
	chain.accounts[addrTreasury] = &solana.AccountInfo{Lamports: 5_000_000}
	chain.failSubmit[addrPartner] = errors.New("blockhash expired")
	a := newTestAllocator(chain)

	legs, err := a.Distribute(context.Background(), 1_000_000, addrTreasury)
	if err != nil {
		t.Fatalf("Distribute: %v", err)
	}

	var failed, sent int
	for _, leg := range legs {
		switch leg.Status {
		case domain.DistributionFailed:
			failed++
			if leg.StakeholderID != "partner" {
				t.Fatalf("unexpected failed leg %s", leg.StakeholderID)
			}
			if leg.ErrorDetail == "" {
				t.Fatal("failed leg has no error detail")
			}
		case domain.DistributionSent:
			sent++
		}
	}
	if failed != 1 || sent != 5 {
		t.Fatalf("failed=%d sent=%d, want 1/5", failed, sent)
	}
}

func TestDistributeTreasuryRentTopUp(t *testing.T) {
	tests := []struct {
		name      string
		account   *solana.AccountInfo
		wantTopUp uint64
	}{
		{"missing account", nil, 890_880},
		{"underfunded account", &solana.AccountInfo{Lamports: 100}, 890_880},
		{"funded account", &solana.AccountInfo{Lamports: 5_000_000}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := newFakeChain()
			if tt.account != nil {
				chain.accounts[addrTreasury] = tt.account
			}
			a := newTestAllocator(chain)

			legs, err := a.Distribute(context.Background(), 1_000_000, addrTreasury)
			if err != nil {
				t.Fatalf("Distribute: %v", err)
			}

			var treasuryLeg *domain.Distribution
			for i := range legs {
				if legs[i].StakeholderID == "treasury" {
					treasuryLeg = &legs[i]
				}
			}
			if treasuryLeg == nil {
				t.Fatal("no treasury leg")
			}
			if treasuryLeg.RentTopUp != tt.wantTopUp {
				t.Fatalf("rent top-up = %d, want %d", treasuryLeg.RentTopUp, tt.wantTopUp)
			}
			// The top-up rides on top of the computed share.
			if treasuryLeg.Amount != 450_000 {
				t.Fatalf("treasury amount = %d, want 450000 regardless of top-up", treasuryLeg.Amount)
			}
		})
	}
}

func TestDistributeRentMinimumCached(t *testing.T) {
	chain := newFakeChain()
	a := newTestAllocator(chain)

	for i := 0; i < 3; i++ {
		if _, err := a.Distribute(context.Background(), 1_000_000, addrTreasury); err != nil {
			t.Fatalf("Distribute %d: %v", i, err)
		}
	}
	if chain.rentCalls != 1 {
		t.Fatalf("rent-exempt minimum fetched %d times, want 1 (cached)", chain.rentCalls)
	}
}

func TestDistributeInvalidTreasuryWallet(t *testing.T) {
	a := newTestAllocator(newFakeChain())
	if _, err := a.Distribute(context.Background(), 1_000_000, "!!!"); err == nil {
		t.Fatal("expected error for malformed treasury wallet")
	}
}
