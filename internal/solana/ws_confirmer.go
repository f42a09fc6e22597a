package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSConfirmerConfig configures WebSocket confirmation behavior.
type WSConfirmerConfig struct {
	// HandshakeTimeout is the dial handshake timeout.
	HandshakeTimeout time.Duration
	// WriteTimeout is timeout for writing subscription requests.
	WriteTimeout time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
}

// DefaultWSConfirmerConfig returns default confirmation configuration.
func DefaultWSConfirmerConfig() WSConfirmerConfig {
	return WSConfirmerConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		PingInterval:     30 * time.Second,
	}
}

// WSConfirmer waits for signature confirmation over a WebSocket
// signatureSubscribe, which is cheaper than polling when many claims are
// in flight. It is an optional fast path: callers fall back to polling on
// any error.
type WSConfirmer struct {
	endpoint string
	config   WSConfirmerConfig

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// pendingSubs maps request ID to channel waiting for subscription ID
	pendingSubs   map[uint64]chan int64
	pendingSubsMu sync.Mutex

	// waiters maps subscription ID to channel receiving the notification
	// error. A notification that lands before its waiter registers is
	// held in early; signatureSubscribe auto-cancels after one
	// notification, so an abandoned wait leaves at most one entry.
	waiters   map[int64]chan interface{}
	early     map[int64]interface{}
	waitersMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWSConfirmer connects to the WebSocket endpoint and starts the read loop.
func NewWSConfirmer(ctx context.Context, endpoint string, config *WSConfirmerConfig) (*WSConfirmer, error) {
	cfg := DefaultWSConfirmerConfig()
	if config != nil {
		cfg = *config
	}

	c := &WSConfirmer{
		endpoint:    endpoint,
		config:      cfg,
		pendingSubs: make(map[uint64]chan int64),
		waiters:     make(map[int64]chan interface{}),
		early:       make(map[int64]interface{}),
		done:        make(chan struct{}),
	}

	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	c.conn = conn

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

// wsRequest is a JSON-RPC 2.0 request over the socket.
type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// wsMessage is either a subscription confirmation or a notification.
type wsMessage struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Method string          `json:"method"`
	Params *wsNotifyParams `json:"params"`
}

type wsNotifyParams struct {
	Subscription int64 `json:"subscription"`
	Result       struct {
		Value struct {
			Err interface{} `json:"err"`
		} `json:"value"`
	} `json:"result"`
}

// WaitForSignature blocks until the signature reaches confirmed commitment
// or ctx expires. A non-nil on-chain error surfaces as ErrChainRejected.
// signatureSubscribe auto-cancels server-side after one notification.
func (c *WSConfirmer) WaitForSignature(ctx context.Context, signature string) error {
	if c.closed.Load() {
		return fmt.Errorf("confirmer closed")
	}

	reqID := c.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "signatureSubscribe",
		Params: []interface{}{
			signature,
			map[string]string{"commitment": "confirmed"},
		},
	}

	confirmCh := make(chan int64, 1)
	c.pendingSubsMu.Lock()
	c.pendingSubs[reqID] = confirmCh
	c.pendingSubsMu.Unlock()

	c.connMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.connMu.Unlock()
	if err != nil {
		c.dropPending(reqID)
		return fmt.Errorf("write subscribe: %w", err)
	}

	var subID int64
	select {
	case subID = <-confirmCh:
	case <-ctx.Done():
		c.dropPending(reqID)
		return ctx.Err()
	case <-c.done:
		return fmt.Errorf("confirmer closed")
	}

	c.waitersMu.Lock()
	if txErr, ok := c.early[subID]; ok {
		delete(c.early, subID)
		c.waitersMu.Unlock()
		if txErr != nil {
			return fmt.Errorf("%w: %v", ErrChainRejected, txErr)
		}
		return nil
	}
	notifyCh := make(chan interface{}, 1)
	c.waiters[subID] = notifyCh
	c.waitersMu.Unlock()
	defer func() {
		c.waitersMu.Lock()
		delete(c.waiters, subID)
		c.waitersMu.Unlock()
	}()

	select {
	case txErr := <-notifyCh:
		if txErr != nil {
			return fmt.Errorf("%w: %v", ErrChainRejected, txErr)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return fmt.Errorf("confirmer closed")
	}
}

func (c *WSConfirmer) dropPending(reqID uint64) {
	c.pendingSubsMu.Lock()
	delete(c.pendingSubs, reqID)
	c.pendingSubsMu.Unlock()
}

// readLoop dispatches subscription confirmations and notifications.
func (c *WSConfirmer) readLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			// Connection broken: wake all waiters so they fall back to polling.
			c.failAll()
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		if msg.ID != 0 && msg.Result != nil {
			var subID int64
			if err := json.Unmarshal(msg.Result, &subID); err != nil {
				continue
			}
			c.pendingSubsMu.Lock()
			if ch, ok := c.pendingSubs[msg.ID]; ok {
				ch <- subID
				delete(c.pendingSubs, msg.ID)
			}
			c.pendingSubsMu.Unlock()
			continue
		}

		if msg.Method == "signatureNotification" && msg.Params != nil {
			c.waitersMu.Lock()
			if ch, ok := c.waiters[msg.Params.Subscription]; ok {
				ch <- msg.Params.Result.Value.Err
			} else {
				c.early[msg.Params.Subscription] = msg.Params.Result.Value.Err
			}
			c.waitersMu.Unlock()
		}
	}
}

// failAll closes the confirmer so in-flight and future waits error out.
func (c *WSConfirmer) failAll() {
	if !c.closed.Swap(true) {
		close(c.done)
	}
}

func (c *WSConfirmer) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			c.conn.WriteMessage(websocket.PingMessage, nil)
			c.connMu.Unlock()
		}
	}
}

// Close closes the WebSocket connection.
func (c *WSConfirmer) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}
	close(c.done)

	c.connMu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := c.conn.Close()
	c.connMu.Unlock()

	c.wg.Wait()
	return err
}
