package treasury

import (
	"context"
	"errors"
	"testing"

	"solana-fee-engine/internal/domain"
	"solana-fee-engine/internal/storage"
	"solana-fee-engine/internal/storage/memory"
)

func TestWalletForDeterministic(t *testing.T) {
	pool := []string{"walletA", "walletB", "walletC"}

	first, err := WalletFor("proj-42", pool, nil)
	if err != nil {
		t.Fatalf("WalletFor: %v", err)
	}
	for i := 0; i < 10; i++ {
		w, err := WalletFor("proj-42", pool, nil)
		if err != nil {
			t.Fatalf("WalletFor: %v", err)
		}
		if w != first {
			t.Fatalf("call %d returned %s, first call returned %s", i, w, first)
		}
	}

	found := false
	for _, w := range pool {
		if w == first {
			found = true
		}
	}
	if !found {
		t.Fatalf("returned wallet %s is not in the pool", first)
	}
}

func TestWalletForAdminFallback(t *testing.T) {
	admin := []string{"adminA", "adminB"}

	w, err := WalletFor("proj-42", nil, admin)
	if err != nil {
		t.Fatalf("WalletFor: %v", err)
	}
	if w != "adminA" && w != "adminB" {
		t.Fatalf("expected an admin wallet, got %s", w)
	}

	if _, err := WalletFor("proj-42", nil, nil); !errors.Is(err, ErrNoWallets) {
		t.Fatalf("expected ErrNoWallets with no pools, got %v", err)
	}
}

func TestWalletForDifferentProjectsSpread(t *testing.T) {
	pool := []string{"walletA", "walletB", "walletC", "walletD", "walletE"}

	seen := make(map[string]bool)
	for _, id := range []string{"proj-1", "proj-2", "proj-3", "idea-77", "idea-78", "idea-x9"} {
		w, err := WalletFor(id, pool, nil)
		if err != nil {
			t.Fatalf("WalletFor(%s): %v", id, err)
		}
		seen[w] = true
	}
	if len(seen) < 2 {
		t.Fatalf("six distinct projects mapped to %d wallet(s), expected some spread", len(seen))
	}
}

// countingStore counts writes so idempotence can be asserted.
type countingStore struct {
	storage.TreasuryAssignmentStore
	puts int
}

func (s *countingStore) Put(ctx context.Context, a *domain.TreasuryAssignment) error {
	s.puts++
	return s.TreasuryAssignmentStore.Put(ctx, a)
}

func TestAssignIdempotent(t *testing.T) {
	store := &countingStore{TreasuryAssignmentStore: memory.NewTreasuryAssignmentStore()}
	assigner := NewAssigner(store, []string{"walletA", "walletB", "walletC"}, nil)
	ctx := context.Background()

	first, err := assigner.Assign(ctx, "proj-42")
	if err != nil {
		t.Fatalf("first Assign: %v", err)
	}
	second, err := assigner.Assign(ctx, "proj-42")
	if err != nil {
		t.Fatalf("second Assign: %v", err)
	}

	if first != second {
		t.Fatalf("assignments differ: %s vs %s", first, second)
	}
	if store.puts != 1 {
		t.Fatalf("expected exactly one write, got %d", store.puts)
	}
}

func TestAssignSurvivesPoolChange(t *testing.T) {
	store := memory.NewTreasuryAssignmentStore()
	ctx := context.Background()

	first, err := NewAssigner(store, []string{"walletA", "walletB"}, nil).Assign(ctx, "proj-7")
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}

	// A reconfigured pool must not move an existing assignment.
	second, err := NewAssigner(store, []string{"walletX", "walletY", "walletZ"}, nil).Assign(ctx, "proj-7")
	if err != nil {
		t.Fatalf("Assign after pool change: %v", err)
	}
	if first != second {
		t.Fatalf("assignment moved after pool change: %s vs %s", first, second)
	}
}

func TestAssignEmptyProjectID(t *testing.T) {
	assigner := NewAssigner(memory.NewTreasuryAssignmentStore(), []string{"walletA"}, nil)
	if _, err := assigner.Assign(context.Background(), ""); !errors.Is(err, storage.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
