// Package main runs the fee engine service: claim sweeps on a schedule
// plus an HTTP surface for on-demand claims, creator fee summaries,
// payouts, treasury assignment, and external transfer verification.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"solana-fee-engine/internal/claims"
	"solana-fee-engine/internal/distribution"
	"solana-fee-engine/internal/domain"
	"solana-fee-engine/internal/observability"
	"solana-fee-engine/internal/payout"
	"solana-fee-engine/internal/resolver"
	"solana-fee-engine/internal/solana"
	"solana-fee-engine/internal/storage"
	chstore "solana-fee-engine/internal/storage/clickhouse"
	"solana-fee-engine/internal/storage/memory"
	"solana-fee-engine/internal/storage/migrations"
	pgstore "solana-fee-engine/internal/storage/postgres"
	"solana-fee-engine/internal/treasury"
	"solana-fee-engine/internal/verifier"
)

// Server wires every component behind the HTTP surface.
type Server struct {
	orchestrator *claims.Orchestrator
	payer        *payout.Payer
	verifier     *verifier.Verifier
	assigner     *treasury.Assigner
	ledger       storage.FeeLedgerStore
	audit        storage.ClaimAuditStore
	network      string
	logger       *log.Logger

	mu           sync.Mutex
	started      time.Time
	lastSweepRun time.Time
	sweepRunning bool
	sweepRuns    int
}

// engineStores holds all storage implementations.
type engineStores struct {
	ledger   storage.FeeLedgerStore
	treasury storage.TreasuryAssignmentStore
	projects storage.ProjectStore
	audit    storage.ClaimAuditStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	rpcEndpoints := flag.String("rpc-endpoints", os.Getenv("SOLANA_RPC_ENDPOINTS"), "Comma-separated Solana RPC HTTP endpoints")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("SOLANA_WS_ENDPOINT"), "Solana WebSocket endpoint for fast confirmation (optional)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for the claim audit log")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	walletSecret := flag.String("claim-wallet", os.Getenv("CLAIM_WALLET_SECRET"), "Base58 secret key of the claiming wallet")
	treasuryWallets := flag.String("treasury-wallets", os.Getenv("TREASURY_WALLETS"), "Comma-separated treasury wallet pool")
	adminWallets := flag.String("admin-wallets", os.Getenv("ADMIN_WALLETS"), "Comma-separated admin wallet fallback pool")
	stakeholders := flag.String("stakeholders", os.Getenv("STAKEHOLDER_TABLE"), "Stakeholder table as id:address:bps entries, comma-separated; use 'treasury' as the address for the treasury leg")
	network := flag.String("network", envOr("SOLANA_NETWORK", "mainnet"), "Network label for registry queries")
	dustFloor := flag.Uint64("dust-floor", distribution.DefaultDustFloor, "Minimum lamport total worth distributing")
	batchSize := flag.Int("sweep-batch-size", claims.DefaultBatchSize, "Concurrent targets per sweep batch")
	sweepInterval := flag.Duration("sweep-interval", 6*time.Hour, "Scheduled sweep interval (0 disables scheduled sweeps)")
	addr := flag.String("addr", ":8080", "HTTP listen address")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if *rpcEndpoints == "" {
		logger.Fatal("--rpc-endpoints is required")
	}
	if *walletSecret == "" {
		logger.Fatal("--claim-wallet is required")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	stakeholderTable, err := parseStakeholders(*stakeholders)
	if err != nil {
		logger.Fatalf("Invalid stakeholder table: %v", err)
	}

	wallet, err := solana.NewWalletFromBase58(*walletSecret)
	if err != nil {
		logger.Fatalf("Invalid claim wallet: %v", err)
	}
	logger.Printf("Claiming as %s on %s", wallet.Address(), *network)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Chain gateway, with the WS confirmer as an optional fast path.
	var gwOpts []solana.GatewayOption
	if *wsEndpoint != "" {
		confirmer, err := solana.NewWSConfirmer(ctx, *wsEndpoint, nil)
		if err != nil {
			logger.Printf("WebSocket confirmer unavailable, falling back to polling: %v", err)
		} else {
			defer confirmer.Close()
			gwOpts = append(gwOpts, solana.WithWSConfirmer(confirmer))
		}
	}
	gateway, err := solana.NewGatewayFromEndpoints(splitList(*rpcEndpoints), nil, gwOpts...)
	if err != nil {
		logger.Fatalf("Failed to create chain gateway: %v", err)
	}

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	allocCfg := distribution.Config{Stakeholders: stakeholderTable, DustFloor: *dustFloor}
	if err := allocCfg.Validate(); err != nil {
		logger.Fatalf("Invalid stakeholder configuration: %v", err)
	}
	allocator := distribution.New(allocCfg, gateway, wallet,
		log.New(os.Stdout, "[distribution] ", log.LstdFlags|log.Lshortfile))

	assigner := treasury.NewAssigner(stores.treasury, splitList(*treasuryWallets), splitList(*adminWallets))

	res := resolver.New(resolver.Config{
		Default:      resolver.Window{Min: 1},
		EventLayouts: claims.DefaultEventLayouts(),
	})

	orch := claims.New(
		claims.Config{BatchSize: *batchSize},
		gateway,
		claims.NewBuilder(wallet, 0, 0),
		res,
		allocator,
		assigner,
		stores.ledger,
		stores.projects,
		stores.audit,
		log.New(os.Stdout, "[claims] ", log.LstdFlags|log.Lshortfile),
	)

	server := &Server{
		orchestrator: orch,
		payer:        payout.New(gateway, wallet, stores.ledger, log.New(os.Stdout, "[payout] ", log.LstdFlags|log.Lshortfile)),
		verifier:     verifier.New(gateway),
		assigner:     assigner,
		ledger:       stores.ledger,
		audit:        stores.audit,
		network:      *network,
		logger:       logger,
		started:      time.Now(),
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	if *sweepInterval > 0 {
		go server.runSweepScheduler(ctx, *sweepInterval, *batchSize)
	}

	httpServer := &http.Server{Addr: *addr, Handler: server.routes()}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	logger.Printf("Starting HTTP server on %s", *addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("HTTP server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// createStores creates all required stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*engineStores, func(), error) {
	if useMemory {
		stores := &engineStores{
			ledger:   memory.NewFeeLedgerStore(),
			treasury: memory.NewTreasuryAssignmentStore(),
			projects: memory.NewProjectStore(),
			audit:    memory.NewClaimAuditStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	chConn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if err := migrations.RunClickhouseMigrations(ctx, chConn); err != nil {
		chConn.Close()
		pool.Close()
		return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
	}

	stores := &engineStores{
		ledger:   pgstore.NewFeeLedgerStore(pool),
		treasury: pgstore.NewTreasuryAssignmentStore(pool),
		projects: pgstore.NewProjectStore(pool),
		audit:    chstore.NewClaimAuditStore(chConn),
	}
	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

// parseStakeholders parses "id:address:bps" entries. The entry whose
// address is the literal "treasury" becomes the treasury leg; its wallet
// is assigned per project at distribution time.
func parseStakeholders(s string) ([]domain.Stakeholder, error) {
	if s == "" {
		return nil, errors.New("stakeholder table is empty (set --stakeholders or STAKEHOLDER_TABLE)")
	}

	var table []domain.Stakeholder
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("malformed entry %q, want id:address:bps", entry)
		}
		bps, err := strconv.ParseUint(strings.TrimSpace(parts[2]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("entry %q: bad bps: %w", entry, err)
		}
		sh := domain.Stakeholder{
			ID:            strings.TrimSpace(parts[0]),
			Address:       strings.TrimSpace(parts[1]),
			PercentageBps: bps,
		}
		if sh.Address == "treasury" {
			sh.Treasury = true
			sh.Address = ""
		}
		table = append(table, sh)
	}
	return table, nil
}

// runSweepScheduler runs claim sweeps on a fixed interval.
func (s *Server) runSweepScheduler(ctx context.Context, interval time.Duration, batchSize int) {
	s.logger.Printf("Starting sweep scheduler (interval: %v)...", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runSweep(ctx, s.network, batchSize, 0)
		}
	}
}

// runSweep executes one sweep, skipping if one is already in flight.
func (s *Server) runSweep(ctx context.Context, network string, batchSize, maxTargets int) (*domain.SweepResult, error) {
	s.mu.Lock()
	if s.sweepRunning {
		s.mu.Unlock()
		s.logger.Println("Sweep already running, skipping...")
		return nil, errors.New("sweep already running")
	}
	s.sweepRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.sweepRunning = false
		s.lastSweepRun = time.Now()
		s.sweepRuns++
		s.mu.Unlock()
	}()

	start := time.Now()
	result, err := s.orchestrator.RunClaimSweep(ctx, network, batchSize, maxTargets)
	if err != nil {
		s.logger.Printf("Sweep error: %v", err)
		return result, err
	}

	observability.RecordSweep(result.Totals.Successful, result.Totals.Failed, result.Totals.Skipped, time.Since(start).Seconds())
	observability.DefaultMetrics.LastSuccessfulSweep.SetToCurrentTime()
	return result, nil
}

// routes builds the HTTP mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)

	mux.HandleFunc("/v1/claims/sweep", s.handleSweep)
	mux.HandleFunc("/v1/claims/pool", s.handleClaimPool)
	mux.HandleFunc("/v1/creators/fees", s.handleFeeSummary)
	mux.HandleFunc("/v1/creators/pay", s.handlePayCreator)
	mux.HandleFunc("/v1/treasury/assign", s.handleAssignTreasury)
	mux.HandleFunc("/v1/transfers/verify", s.handleVerifyTransfer)

	return mux
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Network    string `json:"network"`
		BatchSize  int    `json:"batch_size"`
		MaxTargets int    `json:"max_targets"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Network == "" {
		req.Network = s.network
	}

	result, err := s.runSweep(r.Context(), req.Network, req.BatchSize, req.MaxTargets)
	if err != nil {
		// Partial results still go back to the caller.
		writeJSONStatus(w, http.StatusInternalServerError, map[string]interface{}{
			"error":  err.Error(),
			"result": result,
		})
		return
	}
	writeJSON(w, result)
}

func (s *Server) handleClaimPool(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		PoolAddress    string `json:"pool_address"`
		MaxBaseAmount  uint64 `json:"max_base_amount"`
		MaxQuoteAmount uint64 `json:"max_quote_amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PoolAddress == "" {
		http.Error(w, "pool_address is required", http.StatusBadRequest)
		return
	}

	result, err := s.orchestrator.ClaimSinglePool(r.Context(), req.PoolAddress, req.MaxBaseAmount, req.MaxQuoteAmount)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	for _, res := range result.Results {
		observability.RecordClaimAction(string(res.Action), string(res.Status), res.ResolvedAmount)
	}
	writeJSON(w, result)
}

func (s *Server) handleFeeSummary(w http.ResponseWriter, r *http.Request) {
	creatorID := r.URL.Query().Get("creator_id")
	if creatorID == "" {
		http.Error(w, "creator_id is required", http.StatusBadRequest)
		return
	}

	summary, err := s.ledger.GetCreatorSummary(r.Context(), creatorID)
	if err != nil {
		s.logger.Printf("Fee summary for %s: %v", creatorID, err)
		http.Error(w, "failed to read ledger", http.StatusInternalServerError)
		return
	}
	writeJSON(w, summary)
}

func (s *Server) handlePayCreator(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		CreatorID         string `json:"creator_id"`
		DestinationWallet string `json:"destination_wallet"`
		Amount            uint64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CreatorID == "" || req.DestinationWallet == "" {
		http.Error(w, "creator_id and destination_wallet are required", http.StatusBadRequest)
		return
	}

	receipt, err := s.payer.Pay(r.Context(), req.CreatorID, req.DestinationWallet, req.Amount)
	if err != nil {
		observability.RecordPayout("error", 0)
		if errors.Is(err, storage.ErrLedgerOverdraw) {
			observability.DefaultMetrics.LedgerOverdrawsTotal.Inc()
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		if errors.Is(err, payout.ErrNothingAvailable) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		s.logger.Printf("Payout for %s: %v", req.CreatorID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	observability.RecordPayout("success", receipt.AmountPaid)
	writeJSON(w, map[string]interface{}{
		"tx_signature": receipt.TxSignature,
		"amount_paid":  receipt.AmountPaid,
	})
}

func (s *Server) handleAssignTreasury(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProjectID == "" {
		http.Error(w, "project_id is required", http.StatusBadRequest)
		return
	}

	wallet, err := s.assigner.Assign(r.Context(), req.ProjectID)
	if err != nil {
		s.logger.Printf("Treasury assignment for %s: %v", req.ProjectID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{
		"project_id":     req.ProjectID,
		"wallet_address": wallet,
	})
}

func (s *Server) handleVerifyTransfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Signature string  `json:"signature"`
		Signer    string  `json:"signer"`
		Mint      string  `json:"mint"`
		Amount    float64 `json:"amount"`
		Direction string  `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Signature == "" || req.Signer == "" {
		http.Error(w, "signature and signer are required", http.StatusBadRequest)
		return
	}
	direction := domain.TransferDirection(req.Direction)
	if direction != domain.DirectionDeposit && direction != domain.DirectionWithdraw {
		http.Error(w, "direction must be deposit or withdraw", http.StatusBadRequest)
		return
	}

	result, err := s.verifier.Verify(r.Context(), req.Signature, req.Signer, req.Mint, req.Amount, direction)
	observability.RecordVerification(req.Direction, err == nil)
	writeJSON(w, map[string]interface{}{
		"valid":       err == nil,
		"reason":      result.Reason,
		"token_delta": result.TokenDelta,
	})
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status       string    `json:"status"`
	Uptime       string    `json:"uptime"`
	Network      string    `json:"network"`
	LastSweepRun time.Time `json:"last_sweep_run,omitempty"`
	SweepRuns    int       `json:"sweep_runs"`
	SweepRunning bool      `json:"sweep_running"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, StatusResponse{
		Status:       "running",
		Uptime:       time.Since(s.started).String(),
		Network:      s.network,
		LastSweepRun: s.lastSweepRun,
		SweepRuns:    s.sweepRuns,
		SweepRunning: s.sweepRunning,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func splitList(s string) []string {
	var list []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			list = append(list, item)
		}
	}
	return list
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
