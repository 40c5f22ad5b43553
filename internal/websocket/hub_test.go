package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"bankledger/internal/models"
)

func TestHubBroadcastOnlyReachesAccount(t *testing.T) {
	hub := NewHub()
	mine := &Client{send: make(chan []byte, 1)}
	other := &Client{send: make(chan []byte, 1)}
	hub.Register(1, mine)
	hub.Register(2, other)

	hub.BroadcastBalance(1, BalanceUpdate{AccountID: 1, Balance: "10.00", BalanceMinor: 1000, TransactionType: models.TypeDeposit})

	select {
	case payload := <-mine.send:
		var update BalanceUpdate
		if err := json.Unmarshal(payload, &update); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if update.AccountID != 1 || update.Balance != "10.00" {
			t.Fatalf("unexpected update: %#v", update)
		}
	default:
		t.Fatal("expected update for subscribed account")
	}
	if len(other.send) != 0 {
		t.Fatal("update leaked to another account")
	}
}

func TestHubBroadcastDoesNotBlockOnSlowClient(t *testing.T) {
	hub := NewHub()
	slow := &Client{send: make(chan []byte)}
	hub.Register(1, slow)

	done := make(chan struct{})
	go func() {
		hub.BroadcastBalance(1, BalanceUpdate{AccountID: 1})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full client buffer")
	}
	if hub.Dropped() != 1 {
		t.Fatalf("expected one dropped update, got %d", hub.Dropped())
	}
}

func TestHubFullBufferDropsOnlyForThatClient(t *testing.T) {
	hub := NewHub()
	full := &Client{send: make(chan []byte, 1)}
	fresh := &Client{send: make(chan []byte, 2)}
	hub.Register(3, full)
	hub.Register(3, fresh)

	hub.BroadcastBalance(3, BalanceUpdate{AccountID: 3, BalanceMinor: 100})
	hub.BroadcastBalance(3, BalanceUpdate{AccountID: 3, BalanceMinor: 200})

	if len(full.send) != 1 || len(fresh.send) != 2 {
		t.Fatalf("unexpected buffer depths: full=%d fresh=%d", len(full.send), len(fresh.send))
	}
	var first BalanceUpdate
	if err := json.Unmarshal(<-full.send, &first); err != nil || first.BalanceMinor != 100 {
		t.Fatalf("full client should keep its oldest update: %#v %v", first, err)
	}
	if hub.Dropped() != 1 {
		t.Fatalf("expected one dropped update, got %d", hub.Dropped())
	}
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub()
	client := &Client{send: make(chan []byte, 1)}
	hub.Register(5, client)
	if hub.Subscribers(5) != 1 {
		t.Fatalf("expected one subscriber")
	}
	hub.Unregister(5, client)
	hub.Unregister(5, client)
	if hub.Subscribers(5) != 0 {
		t.Fatalf("expected no subscribers")
	}
}

func TestServeWSStreamsUpdates(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(w, r, hub, 7)
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers(7) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.BroadcastBalance(7, BalanceUpdate{AccountID: 7, Balance: "1.50", BalanceMinor: 150, TransactionType: models.TypeTransferIn})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var update BalanceUpdate
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("read: %v", err)
	}
	if update.AccountID != 7 || update.BalanceMinor != 150 || update.TransactionType != models.TypeTransferIn {
		t.Fatalf("unexpected update: %#v", update)
	}
}
