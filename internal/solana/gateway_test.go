package solana

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestGatewayRoundRobin(t *testing.T) {
	srvA, callsA := rpcServer(t, func(string, int64) (int, string) {
		return http.StatusOK, resultBody(`{"value":1}`)
	})
	srvB, callsB := rpcServer(t, func(string, int64) (int, string) {
		return http.StatusOK, resultBody(`{"value":2}`)
	})

	g, err := NewGateway([]*HTTPClient{fastClient(srvA.URL), fastClient(srvB.URL)})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		if _, err := g.GetBalance(ctx, "pubkey1"); err != nil {
			t.Fatalf("GetBalance %d: %v", i, err)
		}
	}
	if callsA.Load() != 2 || callsB.Load() != 2 {
		t.Fatalf("calls split %d/%d, want 2/2", callsA.Load(), callsB.Load())
	}
}

func TestGatewayFailsOverOnRateLimit(t *testing.T) {
	srvA, callsA := rpcServer(t, func(string, int64) (int, string) {
		return http.StatusTooManyRequests, ""
	})
	srvB, _ := rpcServer(t, func(string, int64) (int, string) {
		return http.StatusOK, resultBody(`{"value":7}`)
	})

	g, err := NewGateway([]*HTTPClient{fastClient(srvA.URL), fastClient(srvB.URL)})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}

	balance, err := g.GetBalance(context.Background(), "pubkey1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance != 7 {
		t.Fatalf("balance = %d, want 7", balance)
	}
	if callsA.Load() != 1 {
		t.Fatalf("rate-limited endpoint hit %d times, want 1", callsA.Load())
	}
}

func TestGatewayAllEndpointsRateLimited(t *testing.T) {
	srvA, _ := rpcServer(t, func(string, int64) (int, string) {
		return http.StatusTooManyRequests, ""
	})
	srvB, _ := rpcServer(t, func(string, int64) (int, string) {
		return http.StatusTooManyRequests, ""
	})

	g, err := NewGateway([]*HTTPClient{fastClient(srvA.URL), fastClient(srvB.URL)})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}

	_, err = g.GetBalance(context.Background(), "pubkey1")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestGatewayNonRateLimitErrorNoFailover(t *testing.T) {
	srvA, _ := rpcServer(t, func(string, int64) (int, string) {
		return http.StatusOK, `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"invalid params"}}`
	})
	srvB, callsB := rpcServer(t, func(string, int64) (int, string) {
		return http.StatusOK, resultBody(`{"value":7}`)
	})

	g, err := NewGateway([]*HTTPClient{fastClient(srvA.URL), fastClient(srvB.URL)})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}

	if _, err := g.GetBalance(context.Background(), "pubkey1"); err == nil {
		t.Fatal("expected error")
	}
	if callsB.Load() != 0 {
		t.Fatal("non-rate-limit errors must not fail over")
	}
}

func TestGatewayNoEndpoints(t *testing.T) {
	if _, err := NewGateway(nil); !errors.Is(err, ErrNoEndpoints) {
		t.Fatalf("expected ErrNoEndpoints, got %v", err)
	}
	if _, err := NewGatewayFromEndpoints([]string{"", ""}, nil); !errors.Is(err, ErrNoEndpoints) {
		t.Fatalf("expected ErrNoEndpoints for blank endpoints, got %v", err)
	}
}

func TestConfirmPollsToSuccess(t *testing.T) {
	txBody := resultBody(`{
		"slot": 99,
		"blockTime": 1700000000,
		"meta": {"err": null, "fee": 5000},
		"transaction": {"message": {"accountKeys": ["signer1"], "header": {"numRequiredSignatures": 1}}}
	}`)
	srv, _ := rpcServer(t, func(method string, n int64) (int, string) {
		switch method {
		case "getSignatureStatuses":
			if n == 1 {
				// Not yet visible on the first poll.
				return http.StatusOK, resultBody(`{"value":[null]}`)
			}
			return http.StatusOK, resultBody(`{"value":[{"slot":99,"confirmationStatus":"confirmed"}]}`)
		case "getTransaction":
			return http.StatusOK, txBody
		default:
			t.Errorf("unexpected method %s", method)
			return http.StatusInternalServerError, ""
		}
	})

	g, err := NewGateway([]*HTTPClient{fastClient(srv.URL)}, WithConfirmPoll(5*time.Millisecond))
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}

	tx, err := g.Confirm(context.Background(), "sig1", time.Second)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if tx.Slot != 99 {
		t.Fatalf("slot = %d, want 99", tx.Slot)
	}
}

func TestConfirmTimeout(t *testing.T) {
	srv, _ := rpcServer(t, func(string, int64) (int, string) {
		return http.StatusOK, resultBody(`{"value":[null]}`)
	})

	g, err := NewGateway([]*HTTPClient{fastClient(srv.URL)}, WithConfirmPoll(5*time.Millisecond))
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}

	_, err = g.Confirm(context.Background(), "sig1", 30*time.Millisecond)
	if !errors.Is(err, ErrConfirmTimeout) {
		t.Fatalf("expected ErrConfirmTimeout, got %v", err)
	}
	if !strings.Contains(err.Error(), "sig1") {
		t.Fatalf("timeout error must name the signature: %v", err)
	}
}

func TestConfirmChainRejected(t *testing.T) {
	srv, _ := rpcServer(t, func(method string, _ int64) (int, string) {
		return http.StatusOK, resultBody(`{"value":[{"slot":99,"err":{"InstructionError":[0,"Custom"]},"confirmationStatus":"confirmed"}]}`)
	})

	g, err := NewGateway([]*HTTPClient{fastClient(srv.URL)}, WithConfirmPoll(5*time.Millisecond))
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}

	_, err = g.Confirm(context.Background(), "sig1", time.Second)
	if !errors.Is(err, ErrChainRejected) {
		t.Fatalf("expected ErrChainRejected, got %v", err)
	}
}
