package claims

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"

	"solana-fee-engine/internal/domain"
	"solana-fee-engine/internal/resolver"
	"solana-fee-engine/internal/solana"
)

// Launch-platform program IDs.
const (
	AMMProgramID   = "cpamdpZCGKUy5JxQXB4dcpGPiikHawvSWAd6mEn1sGG"
	CurveProgramID = "dbcij3LWUppWqq96dh6gJWwBifmcGfLSB5D4DuSMaqN"
)

// Byte offsets of the creator/fee-claimant pubkey inside the pool account
// data, per pool kind. Account layout: 8-byte discriminator followed by
// borsh-encoded fields.
const (
	ammPoolClaimantOffset   = 168
	curvePoolClaimantOffset = 332
)

// anchorDiscriminator derives the 8-byte instruction discriminator for a
// named program method.
func anchorDiscriminator(method string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + method))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

// anchorEventDiscriminator derives the 8-byte discriminator emitted in
// front of a named program event payload.
func anchorEventDiscriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("event:" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

var (
	discClaimCreatorFee   = anchorDiscriminator("claim_creator_trading_fee")
	discClaimPartnerFee   = anchorDiscriminator("claim_partner_trading_fee")
	discClaimPositionFee  = anchorDiscriminator("claim_position_fee")
	discWithdrawSurplus   = anchorDiscriminator("creator_withdraw_surplus")
	discClaimMigrationFee = anchorDiscriminator("claim_creator_migration_fee")
)

// DefaultEventLayouts returns the claim-event shapes the launch programs
// emit: discriminator, then the pool pubkey, then the claimed amount as a
// little-endian u64.
func DefaultEventLayouts() []resolver.EventLayout {
	const amountAfterPool = 8 + 32
	return []resolver.EventLayout{
		{Discriminator: anchorEventDiscriminator("EvtClaimCreatorTradingFee"), AmountOffset: amountAfterPool},
		{Discriminator: anchorEventDiscriminator("EvtClaimPartnerTradingFee"), AmountOffset: amountAfterPool},
		{Discriminator: anchorEventDiscriminator("EvtClaimPositionFee"), AmountOffset: amountAfterPool},
		{Discriminator: anchorEventDiscriminator("EvtCreatorWithdrawSurplus"), AmountOffset: amountAfterPool},
	}
}

// Builder constructs claim instructions for a signing wallet. Max amounts
// bound how much a single fee claim may withdraw; zero means unbounded.
type Builder struct {
	wallet   *solana.Wallet
	maxBase  uint64
	maxQuote uint64
}

// NewBuilder creates a Builder for the given signing wallet.
func NewBuilder(wallet *solana.Wallet, maxBase, maxQuote uint64) *Builder {
	return &Builder{wallet: wallet, maxBase: maxBase, maxQuote: maxQuote}
}

// WalletAddress returns the claimant address the builder signs with.
func (b *Builder) WalletAddress() string {
	return b.wallet.Address()
}

// Build constructs the instruction for one claim action against a pool.
func (b *Builder) Build(target domain.ClaimTarget, action domain.ClaimAction) (solana.Instruction, error) {
	var (
		disc    [8]byte
		program string
		bounded bool
	)

	switch action {
	case domain.ActionCreatorFee:
		disc, bounded = discClaimCreatorFee, true
		program = b.programFor(target.PoolKind)
	case domain.ActionPartnerFee:
		disc, bounded = discClaimPartnerFee, true
		program = b.programFor(target.PoolKind)
	case domain.ActionPositionFee:
		if target.PoolKind != domain.PoolKindAMM {
			return solana.Instruction{}, fmt.Errorf("position fee requires an AMM pool, got %s", target.PoolKind)
		}
		disc, program = discClaimPositionFee, AMMProgramID
	case domain.ActionSurplus:
		if target.PoolKind != domain.PoolKindBondingCurve {
			return solana.Instruction{}, fmt.Errorf("surplus requires a bonding curve, got %s", target.PoolKind)
		}
		disc, program = discWithdrawSurplus, CurveProgramID
	case domain.ActionMigrationFee:
		if !target.Migrated {
			return solana.Instruction{}, fmt.Errorf("pool %s has not migrated", target.PoolAddress)
		}
		disc, program = discClaimMigrationFee, CurveProgramID
	default:
		return solana.Instruction{}, fmt.Errorf("unknown claim action %q", action)
	}

	data := disc[:]
	if bounded {
		// Fee claims carry (max_base_amount, max_quote_amount) u64 args.
		args := make([]byte, 16)
		binary.LittleEndian.PutUint64(args[0:8], b.maxBase)
		binary.LittleEndian.PutUint64(args[8:16], b.maxQuote)
		data = append(data, args...)
	}

	return solana.Instruction{
		ProgramID: program,
		Accounts: []solana.AccountMeta{
			{PubKey: target.PoolAddress, Writable: true},
			{PubKey: b.wallet.Address(), Signer: true, Writable: true},
			{PubKey: target.TokenMint},
		},
		Data: data,
	}, nil
}

func (b *Builder) programFor(kind domain.PoolKind) string {
	if kind == domain.PoolKindAMM {
		return AMMProgramID
	}
	return CurveProgramID
}

// ClaimantFromPoolData extracts the on-chain fee claimant recorded inside a
// pool account. data is the base64 account data returned by the gateway.
func ClaimantFromPoolData(data string, kind domain.PoolKind) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("decode pool account data: %w", err)
	}

	offset := curvePoolClaimantOffset
	if kind == domain.PoolKindAMM {
		offset = ammPoolClaimantOffset
	}
	if len(raw) < offset+32 {
		return "", fmt.Errorf("pool account data too short: %d bytes, need %d", len(raw), offset+32)
	}
	return base58.Encode(raw[offset : offset+32]), nil
}
