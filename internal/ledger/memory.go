package ledger

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"bankledger/internal/models"
)

const DefaultLockTimeout = 2 * time.Second

type Options struct {
	LockTimeout time.Duration
	Clock       func() time.Time
}

type identityKey struct {
	kind     models.Kind
	identity string
}

type entry struct {
	lock    accountLock
	account models.Account
	history []models.Transaction
}

// Memory keeps the whole ledger in process.
//
// Lock order: mu before logMu, and account locks are only ever awaited
// while mu is free (Snapshot holds the read side, which mutations never need
// once they hold an account lock). logMu is a leaf.
type Memory struct {
	mu            sync.RWMutex
	entries       map[int64]*entry
	identities    map[identityKey]int64
	nextAccountID int64

	logMu        sync.Mutex
	log          []models.Transaction
	nextTxID     int64
	totalBalance int64

	lockTimeout time.Duration
	now         func() time.Time
}

func NewMemory(opts Options) *Memory {
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &Memory{
		entries:       make(map[int64]*entry),
		identities:    make(map[identityKey]int64),
		nextAccountID: 1,
		nextTxID:      1,
		lockTimeout:   opts.LockTimeout,
		now:           opts.Clock,
	}
}

func (m *Memory) OpenAccount(ctx context.Context, req OpenAccountRequest) (models.Account, error) {
	if req.InitialBalance < 0 {
		return models.Account{}, ErrInvalidAmount
	}
	if req.Kind != models.KindCustomer && req.Kind != models.KindManager {
		return models.Account{}, fmt.Errorf("unknown account kind %q", req.Kind)
	}
	if req.Kind == models.KindManager && req.InitialBalance != 0 {
		return models.Account{}, fmt.Errorf("%w: managers hold no balance", ErrInvalidAmount)
	}
	if err := ctx.Err(); err != nil {
		return models.Account{}, err
	}

	key := identityKey{kind: req.Kind, identity: req.Identity}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.identities[key]; exists {
		return models.Account{}, ErrDuplicateIdentity
	}

	now := m.now()
	e := &entry{
		lock: newAccountLock(),
		account: models.Account{
			ID:          m.nextAccountID,
			Kind:        req.Kind,
			Name:        req.Name,
			Identity:    req.Identity,
			Balance:     req.InitialBalance,
			Credentials: req.Credentials,
			CreatedAt:   now,
		},
	}
	m.nextAccountID++

	if req.InitialBalance > 0 {
		e.history = m.appendRecords(now, req.InitialBalance, models.Transaction{
			AccountID:   e.account.ID,
			Type:        models.TypeDeposit,
			Amount:      req.InitialBalance,
			Description: DescriptionInitialDeposit,
		})
	}

	m.entries[e.account.ID] = e
	m.identities[key] = e.account.ID
	return e.account, nil
}

func (m *Memory) Credit(ctx context.Context, accountID, amount int64, description string) (Receipt, error) {
	if amount <= 0 {
		return Receipt{}, ErrInvalidAmount
	}
	e, err := m.customer(accountID)
	if err != nil {
		return Receipt{}, err
	}
	if err := e.lock.acquire(ctx, m.lockTimeout); err != nil {
		return Receipt{}, err
	}
	defer e.lock.release()

	if e.account.Balance > math.MaxInt64-amount {
		return Receipt{}, fmt.Errorf("%w: balance would overflow", ErrInvalidAmount)
	}
	if description == "" {
		description = DescriptionDeposit
	}

	e.account.Balance += amount
	records := m.appendRecords(m.now(), amount, models.Transaction{
		AccountID:   accountID,
		Type:        models.TypeDeposit,
		Amount:      amount,
		Description: description,
	})
	e.history = append(e.history, records...)
	return Receipt{Balance: e.account.Balance, Records: records}, nil
}

func (m *Memory) Debit(ctx context.Context, accountID, amount int64, description string) (Receipt, error) {
	if amount <= 0 {
		return Receipt{}, ErrInvalidAmount
	}
	e, err := m.customer(accountID)
	if err != nil {
		return Receipt{}, err
	}
	if err := e.lock.acquire(ctx, m.lockTimeout); err != nil {
		return Receipt{}, err
	}
	defer e.lock.release()

	if e.account.Balance < amount {
		return Receipt{}, ErrInsufficientFunds
	}
	if description == "" {
		description = DescriptionWithdrawal
	}

	e.account.Balance -= amount
	records := m.appendRecords(m.now(), -amount, models.Transaction{
		AccountID:   accountID,
		Type:        models.TypeWithdrawal,
		Amount:      amount,
		Description: description,
	})
	e.history = append(e.history, records...)
	return Receipt{Balance: e.account.Balance, Records: records}, nil
}

func (m *Memory) Transfer(ctx context.Context, fromID, toID, amount int64) (Receipt, error) {
	if fromID == toID {
		return Receipt{}, ErrSelfTransfer
	}
	if amount <= 0 {
		return Receipt{}, ErrInvalidAmount
	}
	from, err := m.customer(fromID)
	if err != nil {
		return Receipt{}, fmt.Errorf("sender: %w", err)
	}
	to, err := m.customer(toID)
	if err != nil {
		return Receipt{}, fmt.Errorf("recipient: %w", err)
	}

	first, second := from, to
	if toID < fromID {
		first, second = to, from
	}
	unlock, err := lockAll(ctx, m.lockTimeout, first.lock, second.lock)
	if err != nil {
		return Receipt{}, err
	}
	defer unlock()

	if from.account.Balance < amount {
		return Receipt{}, ErrInsufficientFunds
	}
	if to.account.Balance > math.MaxInt64-amount {
		return Receipt{}, fmt.Errorf("%w: recipient balance would overflow", ErrInvalidAmount)
	}

	from.account.Balance -= amount
	to.account.Balance += amount
	records := m.appendRecords(m.now(), 0,
		models.Transaction{
			AccountID:   fromID,
			Type:        models.TypeTransferOut,
			Amount:      amount,
			Description: TransferOutDescription(toID),
		},
		models.Transaction{
			AccountID:   toID,
			Type:        models.TypeTransferIn,
			Amount:      amount,
			Description: TransferInDescription(fromID),
		},
	)
	from.history = append(from.history, records[0])
	to.history = append(to.history, records[1])
	return Receipt{Balance: from.account.Balance, Records: records}, nil
}

func (m *Memory) GetBalance(ctx context.Context, accountID int64) (int64, error) {
	account, err := m.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if account.Kind != models.KindCustomer {
		return 0, ErrAccountNotFound
	}
	return account.Balance, nil
}

func (m *Memory) GetAccount(ctx context.Context, accountID int64) (models.Account, error) {
	e, ok := m.lookup(accountID)
	if !ok {
		return models.Account{}, ErrAccountNotFound
	}
	if err := e.lock.acquire(ctx, m.lockTimeout); err != nil {
		return models.Account{}, err
	}
	defer e.lock.release()
	return e.account, nil
}

func (m *Memory) FindByIdentity(ctx context.Context, kind models.Kind, identity string) (models.Account, error) {
	m.mu.RLock()
	id, ok := m.identities[identityKey{kind: kind, identity: identity}]
	m.mu.RUnlock()
	if !ok {
		return models.Account{}, ErrAccountNotFound
	}
	return m.GetAccount(ctx, id)
}

func (m *Memory) History(ctx context.Context, accountID int64, filter HistoryFilter) ([]models.Transaction, error) {
	e, err := m.customer(accountID)
	if err != nil {
		return nil, err
	}
	if err := e.lock.acquire(ctx, m.lockTimeout); err != nil {
		return nil, err
	}
	records := make([]models.Transaction, len(e.history))
	copy(records, e.history)
	e.lock.release()

	return filter.Apply(records), nil
}

func (m *Memory) Customers(ctx context.Context, filter CustomerFilter) ([]models.Account, error) {
	candidates := m.sortedEntries(func(e *entry) bool { return e.account.Kind == models.KindCustomer })

	out := make([]models.Account, 0, len(candidates))
	for _, e := range candidates {
		if err := e.lock.acquire(ctx, m.lockTimeout); err != nil {
			return nil, err
		}
		account := e.account
		e.lock.release()
		if filter.Match(account) {
			out = append(out, account)
		}
	}
	return out, nil
}

func (m *Memory) Transactions(ctx context.Context) ([]models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.logMu.Lock()
	defer m.logMu.Unlock()
	out := make([]models.Transaction, len(m.log))
	copy(out, m.log)
	return out, nil
}

func (m *Memory) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	var stats Stats
	m.mu.RLock()
	for _, e := range m.entries {
		if e.account.Kind == models.KindCustomer {
			stats.Customers++
		}
	}
	m.logMu.Lock()
	stats.Transactions = int64(len(m.log))
	stats.TotalBalance = m.totalBalance
	m.logMu.Unlock()
	m.mu.RUnlock()
	return stats, nil
}

// appendRecords stamps the records with one timestamp and consecutive ids,
// then adds them to the global log together with their net balance effect.
func (m *Memory) appendRecords(at time.Time, delta int64, records ...models.Transaction) []models.Transaction {
	m.logMu.Lock()
	defer m.logMu.Unlock()
	for i := range records {
		records[i].ID = m.nextTxID
		records[i].Timestamp = at
		m.nextTxID++
	}
	m.log = append(m.log, records...)
	m.totalBalance += delta
	return records
}

func (m *Memory) lookup(accountID int64) (*entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[accountID]
	return e, ok
}

// customer resolves an account that can hold a balance. Kind is immutable so
// it is safe to read without the account lock.
func (m *Memory) customer(accountID int64) (*entry, error) {
	e, ok := m.lookup(accountID)
	if !ok || e.account.Kind != models.KindCustomer {
		return nil, ErrAccountNotFound
	}
	return e, nil
}

func (m *Memory) sortedEntries(keep func(*entry) bool) []*entry {
	m.mu.RLock()
	out := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	m.mu.RUnlock()
	sortEntries(out)
	return out
}

func sortEntries(entries []*entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].account.ID < entries[j].account.ID })
}
