package solana

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// Gateway-level errors. ErrConfirmTimeout is distinct from an on-chain
// failure: the transaction may still land after the deadline.
var (
	ErrConfirmTimeout = errors.New("confirmation timed out")
	ErrChainRejected  = errors.New("transaction failed on chain")
	ErrNoEndpoints    = errors.New("no RPC endpoints configured")
)

// Default gateway behavior.
const (
	DefaultConfirmPoll    = 2 * time.Second
	DefaultConfirmTimeout = 60 * time.Second
)

// Gateway fans calls out over a pool of interchangeable RPC endpoints in
// round-robin order. A rate-limited call fails over to the next endpoint
// immediately; all other transient errors are handled inside HTTPClient
// with per-endpoint backoff.
//
// The round-robin counter is the only shared state and is safe to race:
// fairness is approximate, not correctness-critical.
type Gateway struct {
	clients     []*HTTPClient
	next        atomic.Uint64
	confirmPoll time.Duration
	confirmer   *WSConfirmer // optional fast path
}

// GatewayOption configures Gateway.
type GatewayOption func(*Gateway)

// WithConfirmPoll sets the polling interval used by Confirm.
func WithConfirmPoll(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		g.confirmPoll = d
	}
}

// WithWSConfirmer attaches a WebSocket confirmer used by Confirm before
// falling back to status polling.
func WithWSConfirmer(c *WSConfirmer) GatewayOption {
	return func(g *Gateway) {
		g.confirmer = c
	}
}

// NewGateway creates a Gateway over the given endpoint clients.
func NewGateway(clients []*HTTPClient, opts ...GatewayOption) (*Gateway, error) {
	if len(clients) == 0 {
		return nil, ErrNoEndpoints
	}
	g := &Gateway{
		clients:     clients,
		confirmPoll: DefaultConfirmPoll,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// NewGatewayFromEndpoints creates a Gateway with one default client per
// endpoint URL.
func NewGatewayFromEndpoints(endpoints []string, clientOpts []ClientOption, opts ...GatewayOption) (*Gateway, error) {
	clients := make([]*HTTPClient, 0, len(endpoints))
	for _, ep := range endpoints {
		if ep == "" {
			continue
		}
		clients = append(clients, NewHTTPClient(ep, clientOpts...))
	}
	return NewGateway(clients, opts...)
}

// pick returns the next client in round-robin order.
func (g *Gateway) pick() *HTTPClient {
	n := g.next.Add(1)
	return g.clients[int(n-1)%len(g.clients)]
}

// do runs fn against the next endpoint, failing over on rate limits until
// every endpoint has been tried once.
func (g *Gateway) do(fn func(c *HTTPClient) error) error {
	var lastErr error
	for i := 0; i < len(g.clients); i++ {
		err := fn(g.pick())
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrRateLimited) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("all endpoints rate limited: %w", lastErr)
}

// Submit sends a signed transaction and returns its signature.
func (g *Gateway) Submit(ctx context.Context, txBase64 string) (string, error) {
	var signature string
	err := g.do(func(c *HTTPClient) error {
		sig, err := c.SendTransaction(ctx, txBase64)
		if err != nil {
			return err
		}
		signature = sig
		return nil
	})
	return signature, err
}

// Confirm waits for a submitted signature to reach confirmed commitment,
// up to timeout, then returns the full transaction. A deadline expiry
// surfaces as ErrConfirmTimeout; an on-chain error as ErrChainRejected.
func (g *Gateway) Confirm(ctx context.Context, signature string, timeout time.Duration) (*Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if g.confirmer != nil {
		if err := g.confirmer.WaitForSignature(ctx, signature); err == nil {
			return g.fetchConfirmed(ctx, signature)
		}
		// WS errors fall back to polling below.
	}

	ticker := time.NewTicker(g.confirmPoll)
	defer ticker.Stop()

	for {
		statuses, err := g.signatureStatuses(ctx, []string{signature})
		if err != nil && ctx.Err() == nil {
			return nil, err
		}
		if err == nil && len(statuses) > 0 && statuses[0] != nil {
			st := statuses[0]
			if st.Err != nil {
				return nil, fmt.Errorf("%w: %v", ErrChainRejected, st.Err)
			}
			if st.ConfirmationStatus == "confirmed" || st.ConfirmationStatus == "finalized" {
				return g.fetchConfirmed(ctx, signature)
			}
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrConfirmTimeout, signature)
		case <-ticker.C:
		}
	}
}

// fetchConfirmed retrieves the full transaction after confirmation and
// checks the recorded meta error.
func (g *Gateway) fetchConfirmed(ctx context.Context, signature string) (*Transaction, error) {
	tx, err := g.GetTransaction(ctx, signature)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, fmt.Errorf("%w: %s", ErrConfirmTimeout, signature)
	}
	if tx.Meta.Failed() {
		return tx, fmt.Errorf("%w: %v", ErrChainRejected, tx.Meta.Err)
	}
	return tx, nil
}

func (g *Gateway) signatureStatuses(ctx context.Context, sigs []string) ([]*SignatureStatus, error) {
	var statuses []*SignatureStatus
	err := g.do(func(c *HTTPClient) error {
		s, err := c.GetSignatureStatuses(ctx, sigs)
		if err != nil {
			return err
		}
		statuses = s
		return nil
	})
	return statuses, err
}

// GetTransaction retrieves a transaction by signature.
func (g *Gateway) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	var tx *Transaction
	err := g.do(func(c *HTTPClient) error {
		t, err := c.GetTransaction(ctx, signature)
		if err != nil {
			return err
		}
		tx = t
		return nil
	})
	return tx, err
}

// GetAccountInfo retrieves account info by public key.
func (g *Gateway) GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error) {
	var info *AccountInfo
	err := g.do(func(c *HTTPClient) error {
		i, err := c.GetAccountInfo(ctx, pubkey)
		if err != nil {
			return err
		}
		info = i
		return nil
	})
	return info, err
}

// GetBalance returns the lamport balance of an account.
func (g *Gateway) GetBalance(ctx context.Context, pubkey string) (uint64, error) {
	var balance uint64
	err := g.do(func(c *HTTPClient) error {
		b, err := c.GetBalance(ctx, pubkey)
		if err != nil {
			return err
		}
		balance = b
		return nil
	})
	return balance, err
}

// GetMinimumBalanceForRentExemption returns the rent-exempt minimum.
func (g *Gateway) GetMinimumBalanceForRentExemption(ctx context.Context, dataLen int) (uint64, error) {
	var min uint64
	err := g.do(func(c *HTTPClient) error {
		m, err := c.GetMinimumBalanceForRentExemption(ctx, dataLen)
		if err != nil {
			return err
		}
		min = m
		return nil
	})
	return min, err
}

// GetLatestBlockhash returns a recent blockhash.
func (g *Gateway) GetLatestBlockhash(ctx context.Context) (*Blockhash, error) {
	var bh *Blockhash
	err := g.do(func(c *HTTPClient) error {
		b, err := c.GetLatestBlockhash(ctx)
		if err != nil {
			return err
		}
		bh = b
		return nil
	})
	return bh, err
}
