package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"bankledger/internal/models"
)

const snapshotVersion = 1

// Snapshot is the on-disk form of a Memory ledger. Accounts carry their
// credential hashes, so the file must be treated like a database dump.
type Snapshot struct {
	Version           int                  `json:"version"`
	SavedAt           time.Time            `json:"saved_at"`
	NextAccountID     int64                `json:"next_account_id"`
	NextTransactionID int64                `json:"next_transaction_id"`
	Accounts          []SnapshotAccount    `json:"accounts"`
	Transactions      []models.Transaction `json:"transactions"`
}

type SnapshotAccount struct {
	ID          int64       `json:"account_id"`
	Kind        models.Kind `json:"kind"`
	Name        string      `json:"name"`
	Identity    string      `json:"identity"`
	Balance     int64       `json:"balance"`
	Credentials string      `json:"credentials"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Snapshot captures a consistent view of the ledger. Every account lock is
// taken in ascending id order, so in-flight mutations finish first.
func (m *Memory) Snapshot(ctx context.Context) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ordered := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		ordered = append(ordered, e)
	}
	sortEntries(ordered)

	locks := make([]accountLock, len(ordered))
	for i, e := range ordered {
		locks[i] = e.lock
	}
	unlock, err := lockAll(ctx, m.lockTimeout, locks...)
	if err != nil {
		return Snapshot{}, err
	}
	defer unlock()

	snap := Snapshot{
		Version:       snapshotVersion,
		SavedAt:       m.now(),
		NextAccountID: m.nextAccountID,
		Accounts:      make([]SnapshotAccount, 0, len(ordered)),
	}
	for _, e := range ordered {
		a := e.account
		snap.Accounts = append(snap.Accounts, SnapshotAccount{
			ID:          a.ID,
			Kind:        a.Kind,
			Name:        a.Name,
			Identity:    a.Identity,
			Balance:     a.Balance,
			Credentials: a.Credentials,
			CreatedAt:   a.CreatedAt,
		})
	}

	m.logMu.Lock()
	snap.NextTransactionID = m.nextTxID
	snap.Transactions = make([]models.Transaction, len(m.log))
	copy(snap.Transactions, m.log)
	m.logMu.Unlock()

	return snap, nil
}

// Restore replaces the ledger state with snap after checking that every
// customer balance equals the net of its records and that replaying those
// records in id order never takes a balance below zero.
func (m *Memory) Restore(snap Snapshot) error {
	if snap.Version != snapshotVersion {
		return fmt.Errorf("%w: unsupported snapshot version %d", ErrStorage, snap.Version)
	}
	if snap.NextAccountID < 1 || snap.NextTransactionID < 1 {
		return fmt.Errorf("%w: invalid id counters %d/%d", ErrStorage, snap.NextAccountID, snap.NextTransactionID)
	}

	entries := make(map[int64]*entry, len(snap.Accounts))
	identities := make(map[identityKey]int64, len(snap.Accounts))
	var total int64
	for _, a := range snap.Accounts {
		if _, dup := entries[a.ID]; dup {
			return fmt.Errorf("%w: duplicate account id %d in snapshot", ErrStorage, a.ID)
		}
		key := identityKey{kind: a.Kind, identity: a.Identity}
		if _, dup := identities[key]; dup {
			return fmt.Errorf("%w: duplicate %s identity %q in snapshot", ErrStorage, a.Kind, a.Identity)
		}
		if a.ID < 1 || a.ID >= snap.NextAccountID {
			return fmt.Errorf("%w: account id %d outside [1, %d)", ErrStorage, a.ID, snap.NextAccountID)
		}
		switch {
		case a.Kind != models.KindCustomer && a.Kind != models.KindManager:
			return fmt.Errorf("%w: account %d has unknown kind %q", ErrStorage, a.ID, a.Kind)
		case a.Balance < 0:
			return fmt.Errorf("%w: account %d has negative balance %d", ErrStorage, a.ID, a.Balance)
		case a.Kind == models.KindManager && a.Balance != 0:
			return fmt.Errorf("%w: manager %d carries a balance", ErrStorage, a.ID)
		}
		entries[a.ID] = &entry{
			lock: newAccountLock(),
			account: models.Account{
				ID:          a.ID,
				Kind:        a.Kind,
				Name:        a.Name,
				Identity:    a.Identity,
				Balance:     a.Balance,
				Credentials: a.Credentials,
				CreatedAt:   a.CreatedAt,
			},
		}
		identities[key] = a.ID
		total += a.Balance
	}

	net := make(map[int64]int64, len(entries))
	var lastID int64
	for _, tx := range snap.Transactions {
		e, ok := entries[tx.AccountID]
		if !ok || e.account.Kind != models.KindCustomer {
			return fmt.Errorf("%w: transaction %d references unknown account %d", ErrStorage, tx.ID, tx.AccountID)
		}
		if tx.ID <= lastID || tx.ID >= snap.NextTransactionID {
			return fmt.Errorf("%w: transaction id %d out of sequence", ErrStorage, tx.ID)
		}
		if tx.Amount <= 0 || !tx.Type.Valid() {
			return fmt.Errorf("%w: malformed transaction %d", ErrStorage, tx.ID)
		}
		lastID = tx.ID
		switch tx.Type {
		case models.TypeDeposit, models.TypeTransferIn:
			if net[tx.AccountID] > math.MaxInt64-tx.Amount {
				return fmt.Errorf("%w: account %d history overflows", ErrStorage, tx.AccountID)
			}
			net[tx.AccountID] += tx.Amount
		default:
			if net[tx.AccountID] < tx.Amount {
				return fmt.Errorf("%w: transaction %d overdraws account %d", ErrStorage, tx.ID, tx.AccountID)
			}
			net[tx.AccountID] -= tx.Amount
		}
		e.history = append(e.history, tx)
	}
	for id, e := range entries {
		if e.account.Balance != net[id] {
			return fmt.Errorf("%w: account %d balance %d does not match its history (%d)", ErrStorage, id, e.account.Balance, net[id])
		}
	}

	log := make([]models.Transaction, len(snap.Transactions))
	copy(log, snap.Transactions)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.logMu.Lock()
	defer m.logMu.Unlock()

	m.entries = entries
	m.identities = identities
	m.nextAccountID = snap.NextAccountID
	m.log = log
	m.nextTxID = snap.NextTransactionID
	m.totalBalance = total
	return nil
}

// SaveFile writes the snapshot next to path and renames it into place.
func (m *Memory) SaveFile(ctx context.Context, path string) error {
	snap, err := m.Snapshot(ctx)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: encode snapshot: %w", ErrStorage, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

// LoadFile restores the ledger from path. A missing file leaves the ledger
// empty and reports false.
func (m *Memory) LoadFile(path string) (bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	defer f.Close()

	var snap Snapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return false, fmt.Errorf("%w: decode snapshot: %w", ErrStorage, err)
	}
	if err := m.Restore(snap); err != nil {
		return false, err
	}
	return true, nil
}
