package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"bankledger/internal/models"
)

func TestSaveAndLoadFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.json")

	original := NewMemory(Options{})
	if _, err := original.OpenAccount(ctx, OpenAccountRequest{Kind: models.KindManager, Name: "Mgr", Identity: "mgr", Credentials: "mgr-hash"}); err != nil {
		t.Fatal(err)
	}
	a := openCustomer(t, original, "a@example.com", 100)
	b := openCustomer(t, original, "b@example.com", 0)
	if _, err := original.Transfer(ctx, a.ID, b.ID, 40); err != nil {
		t.Fatal(err)
	}
	if err := original.SaveFile(ctx, path); err != nil {
		t.Fatalf("save: %v", err)
	}

	restored := NewMemory(Options{})
	found, err := restored.LoadFile(path)
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}

	if balanceOf(t, restored, a.ID) != 60 || balanceOf(t, restored, b.ID) != 40 {
		t.Fatalf("balances not restored")
	}
	mgr, err := restored.FindByIdentity(ctx, models.KindManager, "mgr")
	if err != nil || mgr.Credentials != "mgr-hash" {
		t.Fatalf("manager credentials not restored: %#v %v", mgr, err)
	}
	history, _ := restored.History(ctx, b.ID, HistoryFilter{})
	if len(history) != 1 || history[0].Type != models.TypeTransferIn {
		t.Fatalf("unexpected restored history: %#v", history)
	}

	// counters continue where the saved ledger stopped
	c := openCustomer(t, restored, "c@example.com", 5)
	if c.ID != b.ID+1 {
		t.Fatalf("expected next account id %d, got %d", b.ID+1, c.ID)
	}
	all, _ := restored.Transactions(ctx)
	if all[len(all)-1].ID != all[len(all)-2].ID+1 {
		t.Fatalf("transaction ids not continued: %#v", all)
	}

	files, err := os.ReadDir(dir)
	if err != nil || len(files) != 1 {
		t.Fatalf("expected only the snapshot in %s, got %d entries (%v)", dir, len(files), err)
	}
}

func TestLoadFileMissing(t *testing.T) {
	m := NewMemory(Options{})
	found, err := m.LoadFile(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil || found {
		t.Fatalf("expected clean miss, got found=%v err=%v", found, err)
	}
}

func TestRestoreRejectsInconsistentSnapshot(t *testing.T) {
	// base holds a manager (index 0), a customer with a 100 deposit (index 1)
	// and an empty customer (index 2).
	base := func(t *testing.T) Snapshot {
		t.Helper()
		m := NewMemory(Options{})
		if _, err := m.OpenAccount(context.Background(), OpenAccountRequest{Kind: models.KindManager, Name: "Mgr", Identity: "mgr", Credentials: "hash"}); err != nil {
			t.Fatal(err)
		}
		openCustomer(t, m, "a@example.com", 100)
		openCustomer(t, m, "b@example.com", 0)
		snap, err := m.Snapshot(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if len(snap.Accounts) != 3 || len(snap.Transactions) != 1 {
			t.Fatalf("unexpected base snapshot: %#v", snap)
		}
		return snap
	}
	record := func(snap *Snapshot, account int, typ models.TransactionType, amount int64) {
		tx := snap.Transactions[0]
		tx.ID = snap.NextTransactionID
		tx.AccountID = snap.Accounts[account].ID
		tx.Type = typ
		tx.Amount = amount
		snap.Transactions = append(snap.Transactions, tx)
		snap.NextTransactionID++
	}

	tests := []struct {
		name   string
		mutate func(*Snapshot)
	}{
		{"balance off history", func(s *Snapshot) { s.Accounts[1].Balance = 1000 }},
		{"unknown version", func(s *Snapshot) { s.Version = 99 }},
		{"zero next account id", func(s *Snapshot) { s.NextAccountID = 0 }},
		{"negative next transaction id", func(s *Snapshot) { s.NextTransactionID = -5 }},
		{"non-positive account id", func(s *Snapshot) { s.Accounts[0].ID = 0 }},
		{"negative balance backed by history", func(s *Snapshot) {
			record(s, 2, models.TypeWithdrawal, 100)
			s.Accounts[2].Balance = -100
		}},
		{"manager with balance", func(s *Snapshot) { s.Accounts[0].Balance = 50 }},
		{"overdraft mid-history", func(s *Snapshot) {
			record(s, 1, models.TypeWithdrawal, 150)
			record(s, 1, models.TypeDeposit, 50)
			s.Accounts[1].Balance = 0
		}},
		{"unknown kind", func(s *Snapshot) { s.Accounts[2].Kind = "auditor" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := base(t)
			tt.mutate(&snap)
			m := NewMemory(Options{})
			if err := m.Restore(snap); !errors.Is(err, ErrStorage) {
				t.Fatalf("expected storage error, got %v", err)
			}
			if all, _ := m.Transactions(context.Background()); len(all) != 0 {
				t.Fatalf("rejected snapshot leaked state: %#v", all)
			}
		})
	}

	// a balance may dip to exactly zero mid-history
	snap := base(t)
	record(&snap, 1, models.TypeWithdrawal, 100)
	record(&snap, 1, models.TypeDeposit, 30)
	snap.Accounts[1].Balance = 30
	m := NewMemory(Options{})
	if err := m.Restore(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := balanceOf(t, m, snap.Accounts[1].ID); got != 30 {
		t.Fatalf("expected 30, got %d", got)
	}
}
