// Package resolver determines how much a confirmed fee-claim transaction
// actually transferred. Three strategies are tried in priority order, each
// gated by a per-fee-type plausibility window; the first plausible result
// wins. Failing all three is not an error: the claim confirmed, it just
// contributes nothing to distribution.
package resolver

import (
	"encoding/base64"
	"encoding/binary"
	"regexp"
	"strconv"
	"strings"

	"solana-fee-engine/internal/domain"
	"solana-fee-engine/internal/solana"
)

// Method identifies which strategy produced the amount.
type Method string

const (
	MethodEvent        Method = "EVENT"
	MethodLogMatch     Method = "LOG_MATCH"
	MethodBalanceDelta Method = "BALANCE_DELTA"
	MethodUnresolved   Method = "UNRESOLVED"
)

// ResolvedAmount is the outcome of amount resolution.
type ResolvedAmount struct {
	Method Method
	Amount uint64 // base units; zero when unresolved
}

// Unresolved reports whether no strategy produced a plausible amount.
func (r ResolvedAmount) Unresolved() bool {
	return r.Method == MethodUnresolved
}

// Window bounds plausible amounts for one fee type. A zero-valued Max
// means unbounded above.
type Window struct {
	Min uint64
	Max uint64
}

// plausible checks amount against the window. Zero amounts are never
// plausible: a zero claim carries no information over unresolved.
func (w Window) plausible(amount uint64) bool {
	if amount == 0 || amount < w.Min {
		return false
	}
	if w.Max > 0 && amount > w.Max {
		return false
	}
	return true
}

// EventLayout describes one known fee-claim event emitted via
// "Program data:" logs: an 8-byte discriminator followed by borsh fields,
// with the claimed amount as a little-endian u64 at a fixed offset.
type EventLayout struct {
	Discriminator [8]byte
	AmountOffset  int // offset from start of event payload
}

// Context carries what the resolver knows about the claim being interpreted.
type Context struct {
	Action    domain.ClaimAction
	TokenMint string
	Claimant  string
	// OwnerAddress is the instruction-owner account (the pool); the
	// balance-delta heuristic anchors on its position in the key list.
	OwnerAddress string
}

// Config holds resolution tuning.
type Config struct {
	// Windows maps fee type to its plausibility window. Actions without
	// an entry use Default.
	Windows map[domain.ClaimAction]Window
	Default Window

	// EventLayouts are the known claim-event shapes, checked in order.
	EventLayouts []EventLayout
}

// Resolver applies the three-tier fallback chain.
type Resolver struct {
	cfg Config
}

// New creates a Resolver.
func New(cfg Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve runs the fallback chain against a confirmed transaction.
func (r *Resolver) Resolve(tx *solana.Transaction, rc Context) ResolvedAmount {
	window := r.window(rc.Action)

	if amount, ok := r.fromEvents(tx); ok && window.plausible(amount) {
		return ResolvedAmount{Method: MethodEvent, Amount: amount}
	}

	if amount, ok := r.fromLogs(tx); ok && window.plausible(amount) {
		return ResolvedAmount{Method: MethodLogMatch, Amount: amount}
	}

	if amount, ok := r.fromBalanceDeltas(tx, rc.OwnerAddress); ok && window.plausible(amount) {
		return ResolvedAmount{Method: MethodBalanceDelta, Amount: amount}
	}

	return ResolvedAmount{Method: MethodUnresolved}
}

func (r *Resolver) window(action domain.ClaimAction) Window {
	if w, ok := r.cfg.Windows[action]; ok {
		return w
	}
	return r.cfg.Default
}

// programDataPrefix marks base64 event payloads in transaction logs.
const programDataPrefix = "Program data: "

// fromEvents scans emitted program events for a known fee-claim layout and
// reads the claimed amount field directly.
func (r *Resolver) fromEvents(tx *solana.Transaction) (uint64, bool) {
	if tx == nil || tx.Meta == nil {
		return 0, false
	}

	for _, line := range tx.Meta.LogMessages {
		if !strings.HasPrefix(line, programDataPrefix) {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(line, programDataPrefix))
		if err != nil || len(data) < 8 {
			continue
		}

		for _, layout := range r.cfg.EventLayouts {
			if [8]byte(data[:8]) != layout.Discriminator {
				continue
			}
			end := layout.AmountOffset + 8
			if end > len(data) {
				continue
			}
			return binary.LittleEndian.Uint64(data[layout.AmountOffset:end]), true
		}
	}

	return 0, false
}

// logPatterns match human-readable claimed-amount key/value pairs, most
// specific first.
var logPatterns = []*regexp.Regexp{
	regexp.MustCompile(`claim(?:ed)?_?amount[:=]\s*(\d+)`),
	regexp.MustCompile(`total_claimed[:=]\s*(\d+)`),
	regexp.MustCompile(`fee_?amount[:=]\s*(\d+)`),
	regexp.MustCompile(`\bclaimed[:=]\s*(\d+)`),
	regexp.MustCompile(`\bfee[:=]\s*(\d+)`),
}

// fromLogs falls back to pattern matching over log text when structured
// events are absent or malformed.
func (r *Resolver) fromLogs(tx *solana.Transaction) (uint64, bool) {
	if tx == nil || tx.Meta == nil {
		return 0, false
	}

	for _, line := range tx.Meta.LogMessages {
		lower := strings.ToLower(line)
		for _, pattern := range logPatterns {
			m := pattern.FindStringSubmatch(lower)
			if m == nil {
				continue
			}
			amount, err := strconv.ParseUint(m[1], 10, 64)
			if err != nil {
				continue
			}
			return amount, true
		}
	}

	return 0, false
}

// fromBalanceDeltas computes lamport deltas across all touched accounts.
// The claim amount is the magnitude of the first negative delta after the
// instruction-owner account: the pool-side outflow that becomes the
// claimant's inflow.
func (r *Resolver) fromBalanceDeltas(tx *solana.Transaction, ownerAddress string) (uint64, bool) {
	if tx == nil || tx.Meta == nil || tx.Message == nil {
		return 0, false
	}
	pre, post := tx.Meta.PreBalances, tx.Meta.PostBalances
	if len(pre) == 0 || len(pre) != len(post) {
		return 0, false
	}

	ownerIdx := -1
	for i, key := range tx.Message.AccountKeys {
		if key == ownerAddress {
			ownerIdx = i
			break
		}
	}
	if ownerIdx < 0 {
		return 0, false
	}

	for i := ownerIdx + 1; i < len(pre) && i < len(tx.Message.AccountKeys); i++ {
		if post[i] < pre[i] {
			return pre[i] - post[i], true
		}
	}

	return 0, false
}
