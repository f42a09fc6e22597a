// Package claims runs fee-claim sweeps: it enumerates claimable pools,
// submits one transaction per claim action, resolves the amount actually
// received, hands the total to distribution, and records earnings in the
// ledger.
package claims

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"solana-fee-engine/internal/domain"
	"solana-fee-engine/internal/resolver"
	"solana-fee-engine/internal/solana"
	"solana-fee-engine/internal/storage"
)

// Chain is the gateway surface the orchestrator needs.
type Chain interface {
	Submit(ctx context.Context, txBase64 string) (string, error)
	Confirm(ctx context.Context, signature string, timeout time.Duration) (*solana.Transaction, error)
	GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error)
	GetLatestBlockhash(ctx context.Context) (*solana.Blockhash, error)
}

// Distributor spends a claimed total across the stakeholder table.
type Distributor interface {
	Distribute(ctx context.Context, total uint64, treasuryWallet string) ([]domain.Distribution, error)
}

// TreasuryAssigner resolves the treasury wallet for a project.
type TreasuryAssigner interface {
	Assign(ctx context.Context, projectID string) (string, error)
}

// Defaults for sweep pacing. Solana RPC throttles aggressively, so actions
// within a target run sequentially with a delay, and target batches are
// separated by a longer one.
const (
	DefaultBatchSize        = 5
	DefaultInterActionDelay = 500 * time.Millisecond
	DefaultInterBatchDelay  = 2 * time.Second
	DefaultConfirmTimeout   = 60 * time.Second
)

// Config holds sweep tuning.
type Config struct {
	BatchSize        int
	InterActionDelay time.Duration
	InterBatchDelay  time.Duration
	ConfirmTimeout   time.Duration
}

func (c *Config) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.InterActionDelay <= 0 {
		c.InterActionDelay = DefaultInterActionDelay
	}
	if c.InterBatchDelay <= 0 {
		c.InterBatchDelay = DefaultInterBatchDelay
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = DefaultConfirmTimeout
	}
}

// Orchestrator drives the claim-resolve-distribute-ledger pipeline.
type Orchestrator struct {
	cfg         Config
	chain       Chain
	builder     *Builder
	resolver    *resolver.Resolver
	distributor Distributor
	treasury    TreasuryAssigner
	ledger      storage.FeeLedgerStore
	projects    storage.ProjectStore
	audit       storage.ClaimAuditStore
	logger      *log.Logger
}

// New creates an Orchestrator.
func New(
	cfg Config,
	chain Chain,
	builder *Builder,
	res *resolver.Resolver,
	distributor Distributor,
	treasury TreasuryAssigner,
	ledger storage.FeeLedgerStore,
	projects storage.ProjectStore,
	audit storage.ClaimAuditStore,
	logger *log.Logger,
) *Orchestrator {
	cfg.applyDefaults()
	return &Orchestrator{
		cfg:         cfg,
		chain:       chain,
		builder:     builder,
		resolver:    res,
		distributor: distributor,
		treasury:    treasury,
		ledger:      ledger,
		projects:    projects,
		audit:       audit,
		logger:      logger,
	}
}

// actionsFor derives the claimable action order for a project's pool.
func actionsFor(p *domain.Project) []domain.ClaimAction {
	if p.PoolKind == domain.PoolKindAMM {
		return []domain.ClaimAction{domain.ActionCreatorFee, domain.ActionPartnerFee, domain.ActionPositionFee}
	}
	actions := []domain.ClaimAction{domain.ActionCreatorFee, domain.ActionPartnerFee, domain.ActionSurplus}
	if p.Migrated {
		actions = append(actions, domain.ActionMigrationFee)
	}
	return actions
}

func targetFor(p *domain.Project) domain.ClaimTarget {
	return domain.ClaimTarget{
		ProjectID:   p.ProjectID,
		CreatorID:   p.CreatorID,
		TokenMint:   p.TokenMint,
		PoolAddress: p.PoolAddress,
		PoolKind:    p.PoolKind,
		Migrated:    p.Migrated,
		Actions:     actionsFor(p),
	}
}

// RunClaimSweep claims fees for every claimable pool on a network. Targets
// run in fixed-size concurrent batches; per-target failures never abort the
// sweep, only a registry failure does, and then partial results are still
// returned.
func (o *Orchestrator) RunClaimSweep(ctx context.Context, network string, batchSize, maxTargets int) (*domain.SweepResult, error) {
	if batchSize <= 0 {
		batchSize = o.cfg.BatchSize
	}

	projects, err := o.projects.ListClaimable(ctx, network, maxTargets)
	if err != nil {
		return &domain.SweepResult{}, fmt.Errorf("list claimable projects: %w", err)
	}
	o.logf("sweep start: %d targets on %s, batch size %d", len(projects), network, batchSize)

	result := &domain.SweepResult{PerTarget: make([]domain.TargetResult, len(projects))}

	for start := 0; start < len(projects); start += batchSize {
		end := start + batchSize
		if end > len(projects) {
			end = len(projects)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				result.PerTarget[idx] = o.claimTarget(ctx, targetFor(projects[idx]))
			}(i)
		}
		wg.Wait()

		if end < len(projects) {
			sleep(ctx, o.cfg.InterBatchDelay)
		}
	}

	for _, tr := range result.PerTarget {
		result.Totals.TotalClaimed += tr.TotalClaimed
		for _, r := range tr.Results {
			switch r.Status {
			case domain.ClaimSuccess:
				result.Totals.Successful++
			case domain.ClaimFailed:
				result.Totals.Failed++
			case domain.ClaimSkipped:
				result.Totals.Skipped++
			}
		}
	}

	o.logf("sweep done: %d successful, %d failed, %d skipped, %d lamports claimed",
		result.Totals.Successful, result.Totals.Failed, result.Totals.Skipped, result.Totals.TotalClaimed)
	return result, nil
}

// ClaimSinglePool claims fees for one pool. Max amounts override the
// builder's configured bounds when non-zero.
func (o *Orchestrator) ClaimSinglePool(ctx context.Context, poolAddress string, maxBase, maxQuote uint64) (*domain.TargetResult, error) {
	project, err := o.projects.GetByPool(ctx, poolAddress)
	if err != nil {
		return nil, fmt.Errorf("look up pool %s: %w", poolAddress, err)
	}

	builder := o.builder
	if maxBase > 0 || maxQuote > 0 {
		builder = NewBuilder(o.builder.wallet, maxBase, maxQuote)
	}

	tr := o.claimTargetWith(ctx, targetFor(project), builder)
	return &tr, nil
}

func (o *Orchestrator) claimTarget(ctx context.Context, target domain.ClaimTarget) domain.TargetResult {
	return o.claimTargetWith(ctx, target, o.builder)
}

// claimTargetWith runs every action for one target sequentially, then
// distributes and ledgers the total. One action's failure never blocks the
// next.
func (o *Orchestrator) claimTargetWith(ctx context.Context, target domain.ClaimTarget, builder *Builder) domain.TargetResult {
	tr := domain.TargetResult{Target: target}

	claimant, authErr := o.poolClaimant(ctx, target)

	for i, action := range target.Actions {
		if i > 0 {
			sleep(ctx, o.cfg.InterActionDelay)
		}
		res := o.claimAction(ctx, target, action, builder, claimant, authErr)
		tr.Results = append(tr.Results, res)
		if res.Status == domain.ClaimSuccess {
			tr.TotalClaimed += res.ResolvedAmount
		}
	}

	if tr.TotalClaimed > 0 {
		o.settleTarget(ctx, &tr)
	}
	return tr
}

// claimAction walks one action through its state machine.
func (o *Orchestrator) claimAction(ctx context.Context, target domain.ClaimTarget, action domain.ClaimAction, builder *Builder, claimant string, authErr error) domain.ClaimResult {
	res := domain.ClaimResult{Action: action}
	at := newAttempt()

	if authErr != nil {
		at.to(StateFailed)
		res.Status = domain.ClaimFailed
		res.ErrorDetail = fmt.Sprintf("claimant check: %v", authErr)
		return res
	}
	if claimant != builder.WalletAddress() {
		at.to(StateSkipped)
		res.Status = domain.ClaimSkipped
		res.ErrorDetail = fmt.Sprintf("not authorized: pool claimant is %s", claimant)
		return res
	}

	ix, err := builder.Build(target, action)
	if err != nil {
		at.to(StateSkipped)
		res.Status = domain.ClaimSkipped
		res.ErrorDetail = err.Error()
		return res
	}

	bh, err := o.chain.GetLatestBlockhash(ctx)
	if err != nil {
		at.to(StateFailed)
		res.Status = domain.ClaimFailed
		res.ErrorDetail = fmt.Sprintf("get blockhash: %v", err)
		return res
	}

	tx, err := builder.wallet.BuildTransaction(bh.Blockhash, ix)
	if err != nil {
		at.to(StateFailed)
		res.Status = domain.ClaimFailed
		res.ErrorDetail = fmt.Sprintf("build transaction: %v", err)
		return res
	}

	sig, err := o.chain.Submit(ctx, tx)
	if err != nil {
		at.to(StateFailed)
		res.Status = domain.ClaimFailed
		res.ErrorDetail = fmt.Sprintf("submit: %v", err)
		return res
	}
	at.to(StateSubmitted)
	res.TxSignature = sig

	at.to(StateConfirming)
	confirmed, err := o.chain.Confirm(ctx, sig, o.cfg.ConfirmTimeout)
	if err != nil {
		at.to(StateFailed)
		res.Status = domain.ClaimFailed
		res.ErrorDetail = fmt.Sprintf("confirm: %v", err)
		return res
	}

	resolved := o.resolver.Resolve(confirmed, resolver.Context{
		Action:       action,
		TokenMint:    target.TokenMint,
		Claimant:     builder.WalletAddress(),
		OwnerAddress: target.PoolAddress,
	})
	at.to(StateResolved)
	res.Status = domain.ClaimSuccess
	res.ResolvedAmount = resolved.Amount
	res.ResolveMethod = string(resolved.Method)

	if resolved.Unresolved() {
		o.logf("claim %s on %s confirmed but amount unresolved (tx %s)", action, target.PoolAddress, sig)
	}
	o.recordAudit(ctx, target, res, confirmed.Slot)
	return res
}

// poolClaimant reads the fee claimant recorded in the pool account. The
// authorization pre-check compares it against the signing wallet before any
// transaction is built.
func (o *Orchestrator) poolClaimant(ctx context.Context, target domain.ClaimTarget) (string, error) {
	info, err := o.chain.GetAccountInfo(ctx, target.PoolAddress)
	if err != nil {
		return "", fmt.Errorf("fetch pool account %s: %w", target.PoolAddress, err)
	}
	if info == nil {
		return "", fmt.Errorf("pool account %s does not exist", target.PoolAddress)
	}
	return ClaimantFromPoolData(info.Data, target.PoolKind)
}

// settleTarget distributes the claimed total and records it as earned. The
// earned increment happens regardless of leg outcomes: the fees left the
// pool on confirmation, and failed legs are re-driven from their recorded
// status, not by re-claiming.
func (o *Orchestrator) settleTarget(ctx context.Context, tr *domain.TargetResult) {
	wallet, err := o.treasury.Assign(ctx, tr.Target.ProjectID)
	if err != nil {
		o.logf("treasury assignment for %s: %v", tr.Target.ProjectID, err)
		return
	}

	dists, err := o.distributor.Distribute(ctx, tr.TotalClaimed, wallet)
	if err != nil {
		o.logf("distribution for %s: %v", tr.Target.TokenMint, err)
	}
	tr.Distributions = dists

	if err := o.ledger.IncreaseEarned(ctx, tr.Target.CreatorID, tr.Target.TokenMint, tr.TotalClaimed); err != nil {
		o.logf("ledger increase earned for %s/%s: %v", tr.Target.CreatorID, tr.Target.TokenMint, err)
	}
}

func (o *Orchestrator) recordAudit(ctx context.Context, target domain.ClaimTarget, res domain.ClaimResult, slot int64) {
	if o.audit == nil {
		return
	}
	e := &domain.ClaimAuditEvent{
		TxSignature:   res.TxSignature,
		ProjectID:     target.ProjectID,
		CreatorID:     target.CreatorID,
		TokenMint:     target.TokenMint,
		PoolAddress:   target.PoolAddress,
		Action:        res.Action,
		ResolveMethod: res.ResolveMethod,
		Amount:        res.ResolvedAmount,
		Slot:          slot,
		ObservedAt:    time.Now().UnixMilli(),
	}
	if err := o.audit.Insert(ctx, e); err != nil {
		o.logf("audit insert for %s: %v", res.TxSignature, err)
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (o *Orchestrator) logf(format string, args ...interface{}) {
	if o.logger != nil {
		o.logger.Printf(format, args...)
	}
}
