package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// wsServer runs a signatureSubscribe endpoint. For each subscribe request
// it calls respond with the request ID and a fresh subscription ID.
func wsServer(t *testing.T, respond func(conn *websocket.Conn, reqID uint64, subID int64)) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	var subID int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var req wsRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			if req.Method != "signatureSubscribe" {
				continue
			}
			subID++
			respond(conn, req.ID, subID)
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func writeSubConfirmation(t *testing.T, conn *websocket.Conn, reqID uint64, subID int64) {
	t.Helper()
	msg := fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":%d}`, reqID, subID)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Errorf("write confirmation: %v", err)
	}
}

func writeNotification(t *testing.T, conn *websocket.Conn, subID int64, txErr interface{}) {
	t.Helper()
	errJSON, _ := json.Marshal(txErr)
	msg := fmt.Sprintf(
		`{"jsonrpc":"2.0","method":"signatureNotification","params":{"subscription":%d,"result":{"value":{"err":%s}}}}`,
		subID, errJSON)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Errorf("write notification: %v", err)
	}
}

func TestWaitForSignatureConfirmed(t *testing.T) {
	endpoint := wsServer(t, func(conn *websocket.Conn, reqID uint64, subID int64) {
		writeSubConfirmation(t, conn, reqID, subID)
		writeNotification(t, conn, subID, nil)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := NewWSConfirmer(ctx, endpoint, nil)
	if err != nil {
		t.Fatalf("NewWSConfirmer: %v", err)
	}
	defer c.Close()

	if err := c.WaitForSignature(ctx, "sig1"); err != nil {
		t.Fatalf("WaitForSignature: %v", err)
	}
}

func TestWaitForSignatureChainRejected(t *testing.T) {
	endpoint := wsServer(t, func(conn *websocket.Conn, reqID uint64, subID int64) {
		writeSubConfirmation(t, conn, reqID, subID)
		writeNotification(t, conn, subID, map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := NewWSConfirmer(ctx, endpoint, nil)
	if err != nil {
		t.Fatalf("NewWSConfirmer: %v", err)
	}
	defer c.Close()

	err = c.WaitForSignature(ctx, "sig1")
	if !errors.Is(err, ErrChainRejected) {
		t.Fatalf("got %v, want ErrChainRejected", err)
	}
}

func TestWaitForSignatureNotificationBeforeWaiter(t *testing.T) {
	// The notification is written before the subscription confirmation,
	// so it reaches the read loop before the caller has learned its
	// subscription ID. The wait must still complete instead of hanging
	// until the deadline.
	endpoint := wsServer(t, func(conn *websocket.Conn, reqID uint64, subID int64) {
		writeNotification(t, conn, subID, nil)
		writeSubConfirmation(t, conn, reqID, subID)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := NewWSConfirmer(ctx, endpoint, nil)
	if err != nil {
		t.Fatalf("NewWSConfirmer: %v", err)
	}
	defer c.Close()

	done := make(chan error, 1)
	go func() { done <- c.WaitForSignature(ctx, "sig1") }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WaitForSignature: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("wait did not complete on an early notification")
	}
}

func TestWaitForSignatureEarlyRejection(t *testing.T) {
	endpoint := wsServer(t, func(conn *websocket.Conn, reqID uint64, subID int64) {
		writeNotification(t, conn, subID, "AccountInUse")
		writeSubConfirmation(t, conn, reqID, subID)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := NewWSConfirmer(ctx, endpoint, nil)
	if err != nil {
		t.Fatalf("NewWSConfirmer: %v", err)
	}
	defer c.Close()

	err = c.WaitForSignature(ctx, "sig1")
	if !errors.Is(err, ErrChainRejected) {
		t.Fatalf("got %v, want ErrChainRejected", err)
	}
}
