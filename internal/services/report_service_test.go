package services

import (
	"context"
	"errors"
	"testing"

	"bankledger/internal/ledger"
	"bankledger/internal/models"
	"bankledger/internal/session"
)

func TestReportServiceManagerViews(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemory(ledger.Options{})
	manager, err := l.OpenAccount(ctx, ledger.OpenAccountRequest{Kind: models.KindManager, Name: "boss", Identity: "boss"})
	if err != nil {
		t.Fatal(err)
	}
	alice := openCustomer(t, l, "alice@example.com", 300)
	bob := openCustomer(t, l, "bob@example.com", 200)
	if _, err := l.Transfer(ctx, alice.ID, bob.ID, 100); err != nil {
		t.Fatal(err)
	}

	service := NewReportService(l)
	p := session.Principal{ID: manager.ID, Role: models.KindManager}

	stats, err := service.Stats(ctx, p)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Customers != 2 || stats.Transactions != 4 || stats.TotalBalance != 500 {
		t.Fatalf("unexpected stats: %#v", stats)
	}

	customers, err := service.Customers(ctx, p, ledger.CustomerFilter{Name: "customer"})
	if err != nil || len(customers) != 2 || customers[0].ID != alice.ID {
		t.Fatalf("unexpected customers: %#v %v", customers, err)
	}

	records, err := service.CustomerTransactions(ctx, p, alice.ID)
	if err != nil || len(records) != 2 || records[1].Type != models.TypeTransferOut {
		t.Fatalf("unexpected customer records: %#v %v", records, err)
	}
	if _, err := service.CustomerTransactions(ctx, p, manager.ID); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("expected not found for manager id, got %v", err)
	}

	all, err := service.Transactions(ctx, p)
	if err != nil || len(all) != 4 {
		t.Fatalf("unexpected transactions: %#v %v", all, err)
	}
}

func TestReportServiceRejectsCustomers(t *testing.T) {
	ctx := context.Background()
	service := NewReportService(ledger.NewMemory(ledger.Options{}))
	customer := session.Principal{ID: 2, Role: models.KindCustomer}

	if _, err := service.Stats(ctx, customer); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := service.Transactions(ctx, customer); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
