package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"bankledger/internal/events"
	"bankledger/internal/ledger"
	"bankledger/internal/models"
	"bankledger/internal/session"
	"bankledger/internal/websocket"
)

type stubHub struct {
	mu      sync.Mutex
	updates []websocket.BalanceUpdate
}

func (h *stubHub) BroadcastBalance(accountID int64, update websocket.BalanceUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, update)
}

type stubPublisher struct {
	publishFn func(ctx context.Context, batch ...events.TransactionRecorded) error
	published []events.TransactionRecorded
}

func (p *stubPublisher) Publish(ctx context.Context, batch ...events.TransactionRecorded) error {
	p.published = append(p.published, batch...)
	if p.publishFn != nil {
		return p.publishFn(ctx, batch...)
	}
	return nil
}

func (p *stubPublisher) Close() error { return nil }

func openCustomer(t *testing.T, l ledger.Ledger, email string, balance int64) session.Principal {
	t.Helper()
	account, err := l.OpenAccount(context.Background(), ledger.OpenAccountRequest{
		Kind:           models.KindCustomer,
		Name:           "Customer",
		Identity:       email,
		InitialBalance: balance,
	})
	if err != nil {
		t.Fatalf("open account: %v", err)
	}
	return session.Principal{ID: account.ID, Role: models.KindCustomer}
}

func TestBankServiceDepositBroadcastsAndPublishes(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemory(ledger.Options{})
	hub := &stubHub{}
	publisher := &stubPublisher{}
	service := NewBankService(l, hub, publisher)
	alice := openCustomer(t, l, "alice@example.com", 1000)

	balance, err := service.Deposit(ctx, alice, 250)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 1250 {
		t.Fatalf("expected 1250, got %d", balance)
	}
	if len(hub.updates) != 1 || hub.updates[0].Balance != "12.50" || hub.updates[0].TransactionType != models.TypeDeposit {
		t.Fatalf("unexpected broadcasts: %#v", hub.updates)
	}
	if len(publisher.published) != 1 || publisher.published[0].Amount != "2.50" || publisher.published[0].AccountID != alice.ID {
		t.Fatalf("unexpected events: %#v", publisher.published)
	}
}

func TestBankServiceTransferNotifiesBothSides(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemory(ledger.Options{})
	hub := &stubHub{}
	publisher := &stubPublisher{}
	service := NewBankService(l, hub, publisher)
	alice := openCustomer(t, l, "alice@example.com", 1000)
	bob := openCustomer(t, l, "bob@example.com", 0)

	balance, err := service.Transfer(ctx, alice, bob.ID, 400)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 600 {
		t.Fatalf("expected 600, got %d", balance)
	}
	if len(hub.updates) != 2 {
		t.Fatalf("expected two broadcasts, got %#v", hub.updates)
	}
	if hub.updates[0].AccountID != alice.ID || hub.updates[0].BalanceMinor != 600 {
		t.Fatalf("unexpected sender update: %#v", hub.updates[0])
	}
	if hub.updates[1].AccountID != bob.ID || hub.updates[1].BalanceMinor != 400 || hub.updates[1].TransactionType != models.TypeTransferIn {
		t.Fatalf("unexpected recipient update: %#v", hub.updates[1])
	}
	if len(publisher.published) != 2 || publisher.published[0].Type != models.TypeTransferOut {
		t.Fatalf("unexpected events: %#v", publisher.published)
	}
}

func TestBankServicePublishFailureDoesNotFailOperation(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemory(ledger.Options{})
	publisher := &stubPublisher{publishFn: func(context.Context, ...events.TransactionRecorded) error {
		return errors.New("broker down")
	}}
	service := NewBankService(l, nil, publisher)
	alice := openCustomer(t, l, "alice@example.com", 100)

	balance, err := service.Withdraw(ctx, alice, 40)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 60 {
		t.Fatalf("expected 60, got %d", balance)
	}
}

func TestBankServiceFailedOperationNotifiesNobody(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemory(ledger.Options{})
	hub := &stubHub{}
	publisher := &stubPublisher{}
	service := NewBankService(l, hub, publisher)
	alice := openCustomer(t, l, "alice@example.com", 100)

	if _, err := service.Withdraw(ctx, alice, 101); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if len(hub.updates) != 0 || len(publisher.published) != 0 {
		t.Fatalf("failed operation must not notify")
	}
}

func TestBankServiceRejectsManagers(t *testing.T) {
	ctx := context.Background()
	service := NewBankService(ledger.NewMemory(ledger.Options{}), nil, nil)
	manager := session.Principal{ID: 1, Role: models.KindManager}

	if _, err := service.Balance(ctx, manager); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := service.Deposit(ctx, manager, 1); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := service.History(ctx, manager, ledger.HistoryFilter{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
