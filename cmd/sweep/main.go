// Package main runs a single claim sweep and prints the per-target
// results, for cron jobs and manual reconciliation runs.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"solana-fee-engine/internal/claims"
	"solana-fee-engine/internal/distribution"
	"solana-fee-engine/internal/domain"
	"solana-fee-engine/internal/resolver"
	"solana-fee-engine/internal/solana"
	chstore "solana-fee-engine/internal/storage/clickhouse"
	"solana-fee-engine/internal/storage/migrations"
	pgstore "solana-fee-engine/internal/storage/postgres"
	"solana-fee-engine/internal/treasury"
)

func main() {
	rpcEndpoints := flag.String("rpc-endpoints", os.Getenv("SOLANA_RPC_ENDPOINTS"), "Comma-separated Solana RPC HTTP endpoints")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for the claim audit log")
	walletSecret := flag.String("claim-wallet", os.Getenv("CLAIM_WALLET_SECRET"), "Base58 secret key of the claiming wallet")
	treasuryWallets := flag.String("treasury-wallets", os.Getenv("TREASURY_WALLETS"), "Comma-separated treasury wallet pool")
	adminWallets := flag.String("admin-wallets", os.Getenv("ADMIN_WALLETS"), "Comma-separated admin wallet fallback pool")
	stakeholders := flag.String("stakeholders", os.Getenv("STAKEHOLDER_TABLE"), "Stakeholder table as id:address:bps entries, comma-separated")
	network := flag.String("network", "mainnet", "Network label for registry queries")
	batchSize := flag.Int("batch-size", claims.DefaultBatchSize, "Concurrent targets per batch")
	maxTargets := flag.Int("max-targets", 0, "Maximum targets to process (0 = all)")
	dustFloor := flag.Uint64("dust-floor", distribution.DefaultDustFloor, "Minimum lamport total worth distributing")
	timeout := flag.Duration("timeout", 30*time.Minute, "Overall run deadline")

	flag.Parse()

	logger := log.New(os.Stdout, "[sweep] ", log.LstdFlags)

	if *rpcEndpoints == "" || *walletSecret == "" {
		logger.Fatal("--rpc-endpoints and --claim-wallet are required")
	}
	if *postgresDSN == "" || *clickhouseDSN == "" {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required")
	}

	wallet, err := solana.NewWalletFromBase58(*walletSecret)
	if err != nil {
		logger.Fatalf("Invalid claim wallet: %v", err)
	}

	stakeholderTable, err := parseStakeholders(*stakeholders)
	if err != nil {
		logger.Fatalf("Invalid stakeholder table: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	gateway, err := solana.NewGatewayFromEndpoints(splitList(*rpcEndpoints), nil)
	if err != nil {
		logger.Fatalf("Failed to create chain gateway: %v", err)
	}

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("Failed to run postgres migrations: %v", err)
	}

	chConn, err := chstore.NewConn(ctx, *clickhouseDSN)
	if err != nil {
		logger.Fatalf("Failed to connect to clickhouse: %v", err)
	}
	defer chConn.Close()
	if err := migrations.RunClickhouseMigrations(ctx, chConn); err != nil {
		logger.Fatalf("Failed to run clickhouse migrations: %v", err)
	}

	allocCfg := distribution.Config{Stakeholders: stakeholderTable, DustFloor: *dustFloor}
	if err := allocCfg.Validate(); err != nil {
		logger.Fatalf("Invalid stakeholder configuration: %v", err)
	}

	ledger := pgstore.NewFeeLedgerStore(pool)
	assigner := treasury.NewAssigner(pgstore.NewTreasuryAssignmentStore(pool), splitList(*treasuryWallets), splitList(*adminWallets))
	allocator := distribution.New(allocCfg, gateway, wallet, logger)

	orch := claims.New(
		claims.Config{BatchSize: *batchSize},
		gateway,
		claims.NewBuilder(wallet, 0, 0),
		resolver.New(resolver.Config{Default: resolver.Window{Min: 1}, EventLayouts: claims.DefaultEventLayouts()}),
		allocator,
		assigner,
		ledger,
		pgstore.NewProjectStore(pool),
		chstore.NewClaimAuditStore(chConn),
		logger,
	)

	start := time.Now()
	result, err := orch.RunClaimSweep(ctx, *network, *batchSize, *maxTargets)
	if err != nil {
		logger.Printf("Sweep failed after %v: %v", time.Since(start), err)
		printResult(result)
		os.Exit(1)
	}

	logger.Printf("Sweep finished in %v", time.Since(start))
	printResult(result)
}

func printResult(result *domain.SweepResult) {
	if result == nil {
		return
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(result)
}

// parseStakeholders parses "id:address:bps" entries, with the literal
// address "treasury" marking the treasury leg.
func parseStakeholders(s string) ([]domain.Stakeholder, error) {
	if s == "" {
		return nil, fmt.Errorf("stakeholder table is empty (set --stakeholders or STAKEHOLDER_TABLE)")
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
