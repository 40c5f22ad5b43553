package websocket

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"bankledger/internal/models"
)

// BalanceUpdate is pushed to a customer after each committed change to their balance.
type BalanceUpdate struct {
	AccountID       int64                  `json:"account_id"`
	Balance         string                 `json:"balance"`
	BalanceMinor    int64                  `json:"balance_minor"`
	TransactionType models.TransactionType `json:"transaction_type"`
}

// Hub fans balance updates out to every connection a customer has open.
// Each client owns a send buffer of sendBuffer messages. When it is full the
// update is dropped for that client and counted; the next committed change
// carries the current balance again, so a lagging client only sees gaps.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}
	dropped atomic.Int64
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[int64]map[*Client]struct{}),
	}
}

func (h *Hub) Register(accountID int64, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[accountID] == nil {
		h.clients[accountID] = make(map[*Client]struct{})
	}
	h.clients[accountID][client] = struct{}{}
}

func (h *Hub) Unregister(accountID int64, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[accountID] == nil {
		return
	}
	delete(h.clients[accountID], client)
	if len(h.clients[accountID]) == 0 {
		delete(h.clients, accountID)
	}
}

// BroadcastBalance never blocks; a subscriber with a full buffer misses the update.
func (h *Hub) BroadcastBalance(accountID int64, update BalanceUpdate) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	subscribers := h.clients[accountID]
	if len(subscribers) == 0 {
		return
	}
	payload, err := json.Marshal(update)
	if err != nil {
		return
	}
	for client := range subscribers {
		select {
		case client.send <- payload:
		default:
			h.dropped.Add(1)
		}
	}
}

// Dropped reports how many updates were discarded on full client buffers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

func (h *Hub) Subscribers(accountID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[accountID])
}
