package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"

	"bankledger/internal/db"
	"bankledger/internal/ledger"
	"bankledger/internal/models"
	"bankledger/internal/store"
)

type AccountStore interface {
	Create(ctx context.Context, tx store.Getter, input store.AccountInput) (models.Account, error)
	GetByID(ctx context.Context, accountID int64) (models.Account, error)
	GetByIdentity(ctx context.Context, kind models.Kind, identity string) (models.Account, error)
	GetForUpdate(ctx context.Context, tx store.Getter, accountID int64) (models.Account, error)
	UpdateBalance(ctx context.Context, tx store.Execer, accountID, balance int64) error
	ListCustomers(ctx context.Context, filter ledger.CustomerFilter) ([]models.Account, error)
	Stats(ctx context.Context) (ledger.Stats, error)
}

type TransactionStore interface {
	Insert(ctx context.Context, tx store.Getter, input store.TransactionInput) (models.Transaction, error)
	ListByAccount(ctx context.Context, accountID int64, filter ledger.HistoryFilter) ([]models.Transaction, error)
	ListAll(ctx context.Context) ([]models.Transaction, error)
}

// LedgerService is the Postgres implementation of ledger.Ledger. Each
// mutation is one serializable transaction that locks the affected rows in
// ascending account id order.
type LedgerService struct {
	txRunner     db.TxRunner
	accountStore AccountStore
	txStore      TransactionStore
	now          func() time.Time
}

var _ ledger.Ledger = (*LedgerService)(nil)

func NewLedgerService(txRunner db.TxRunner, accountStore AccountStore, txStore TransactionStore) *LedgerService {
	return &LedgerService{
		txRunner:     txRunner,
		accountStore: accountStore,
		txStore:      txStore,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *LedgerService) OpenAccount(ctx context.Context, req ledger.OpenAccountRequest) (models.Account, error) {
	if req.InitialBalance < 0 {
		return models.Account{}, ledger.ErrInvalidAmount
	}
	if req.Kind != models.KindCustomer && req.Kind != models.KindManager {
		return models.Account{}, fmt.Errorf("unknown account kind %q", req.Kind)
	}
	if req.Kind == models.KindManager && req.InitialBalance != 0 {
		return models.Account{}, fmt.Errorf("%w: managers hold no balance", ledger.ErrInvalidAmount)
	}

	var account models.Account
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		created, err := s.accountStore.Create(ctx, tx, store.AccountInput{
			Kind:        req.Kind,
			Name:        req.Name,
			Identity:    req.Identity,
			Credentials: req.Credentials,
			Balance:     req.InitialBalance,
		})
		if err != nil {
			return err
		}
		account = created
		if req.InitialBalance == 0 {
			return nil
		}
		_, err = s.txStore.Insert(ctx, tx, store.TransactionInput{
			AccountID:   created.ID,
			Type:        models.TypeDeposit,
			Amount:      req.InitialBalance,
			Timestamp:   created.CreatedAt,
			Description: ledger.DescriptionInitialDeposit,
		})
		return err
	})
	if err != nil {
		return models.Account{}, storageError(err)
	}
	return account, nil
}

func (s *LedgerService) Credit(ctx context.Context, accountID, amount int64, description string) (ledger.Receipt, error) {
	if amount <= 0 {
		return ledger.Receipt{}, ledger.ErrInvalidAmount
	}
	if description == "" {
		description = ledger.DescriptionDeposit
	}
	var receipt ledger.Receipt
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		account, err := lockCustomer(ctx, tx, s.accountStore, accountID)
		if err != nil {
			return err
		}
		if account.Balance > math.MaxInt64-amount {
			return fmt.Errorf("%w: balance would overflow", ledger.ErrInvalidAmount)
		}
		balance := account.Balance + amount
		if err := s.accountStore.UpdateBalance(ctx, tx, accountID, balance); err != nil {
			return err
		}
		record, err := s.txStore.Insert(ctx, tx, store.TransactionInput{
			AccountID:   accountID,
			Type:        models.TypeDeposit,
			Amount:      amount,
			Timestamp:   s.now(),
			Description: description,
		})
		if err != nil {
			return err
		}
		receipt = ledger.Receipt{Balance: balance, Records: []models.Transaction{record}}
		return nil
	})
	if err != nil {
		return ledger.Receipt{}, storageError(err)
	}
	return receipt, nil
}

func (s *LedgerService) Debit(ctx context.Context, accountID, amount int64, description string) (ledger.Receipt, error) {
	if amount <= 0 {
		return ledger.Receipt{}, ledger.ErrInvalidAmount
	}
	if description == "" {
		description = ledger.DescriptionWithdrawal
	}
	var receipt ledger.Receipt
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		account, err := lockCustomer(ctx, tx, s.accountStore, accountID)
		if err != nil {
			return err
		}
		if account.Balance < amount {
			return ledger.ErrInsufficientFunds
		}
		balance := account.Balance - amount
		if err := s.accountStore.UpdateBalance(ctx, tx, accountID, balance); err != nil {
			return err
		}
		record, err := s.txStore.Insert(ctx, tx, store.TransactionInput{
			AccountID:   accountID,
			Type:        models.TypeWithdrawal,
			Amount:      amount,
			Timestamp:   s.now(),
			Description: description,
		})
		if err != nil {
			return err
		}
		receipt = ledger.Receipt{Balance: balance, Records: []models.Transaction{record}}
		return nil
	})
	if err != nil {
		return ledger.Receipt{}, storageError(err)
	}
	return receipt, nil
}

func (s *LedgerService) Transfer(ctx context.Context, fromID, toID, amount int64) (ledger.Receipt, error) {
	if fromID == toID {
		return ledger.Receipt{}, ledger.ErrSelfTransfer
	}
	if amount <= 0 {
		return ledger.Receipt{}, ledger.ErrInvalidAmount
	}
	var receipt ledger.Receipt
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		from, to, err := lockTwoAccounts(ctx, tx, s.accountStore, fromID, toID)
		if err != nil {
			return err
		}
		if from.Balance < amount {
			return ledger.ErrInsufficientFunds
		}
		if to.Balance > math.MaxInt64-amount {
			return fmt.Errorf("%w: recipient balance would overflow", ledger.ErrInvalidAmount)
		}
		newFrom := from.Balance - amount
		newTo := to.Balance + amount
		if err := s.accountStore.UpdateBalance(ctx, tx, fromID, newFrom); err != nil {
			return err
		}
		if err := s.accountStore.UpdateBalance(ctx, tx, toID, newTo); err != nil {
			return err
		}

		at := s.now()
		out, err := s.txStore.Insert(ctx, tx, store.TransactionInput{
			AccountID:   fromID,
			Type:        models.TypeTransferOut,
			Amount:      amount,
			Timestamp:   at,
			Description: ledger.TransferOutDescription(toID),
		})
		if err != nil {
			return err
		}
		in, err := s.txStore.Insert(ctx, tx, store.TransactionInput{
			AccountID:   toID,
			Type:        models.TypeTransferIn,
			Amount:      amount,
			Timestamp:   at,
			Description: ledger.TransferInDescription(fromID),
		})
		if err != nil {
			return err
		}
		receipt = ledger.Receipt{Balance: newFrom, Records: []models.Transaction{out, in}}
		return nil
	})
	if err != nil {
		return ledger.Receipt{}, storageError(err)
	}
	return receipt, nil
}

func (s *LedgerService) GetBalance(ctx context.Context, accountID int64) (int64, error) {
	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if account.Kind != models.KindCustomer {
		return 0, ledger.ErrAccountNotFound
	}
	return account.Balance, nil
}

func (s *LedgerService) GetAccount(ctx context.Context, accountID int64) (models.Account, error) {
	account, err := s.accountStore.GetByID(ctx, accountID)
	if err != nil {
		return models.Account{}, storageError(err)
	}
	return account, nil
}

func (s *LedgerService) FindByIdentity(ctx context.Context, kind models.Kind, identity string) (models.Account, error) {
	account, err := s.accountStore.GetByIdentity(ctx, kind, identity)
	if err != nil {
		return models.Account{}, storageError(err)
	}
	return account, nil
}

func (s *LedgerService) History(ctx context.Context, accountID int64, filter ledger.HistoryFilter) ([]models.Transaction, error) {
	if _, err := s.GetBalance(ctx, accountID); err != nil {
		return nil, err
	}
	records, err := s.txStore.ListByAccount(ctx, accountID, filter)
	if err != nil {
		return nil, storageError(err)
	}
	return records, nil
}

func (s *LedgerService) Customers(ctx context.Context, filter ledger.CustomerFilter) ([]models.Account, error) {
	accounts, err := s.accountStore.ListCustomers(ctx, filter)
	if err != nil {
		return nil, storageError(err)
	}
	return accounts, nil
}

func (s *LedgerService) Transactions(ctx context.Context) ([]models.Transaction, error) {
	records, err := s.txStore.ListAll(ctx)
	if err != nil {
		return nil, storageError(err)
	}
	return records, nil
}

func (s *LedgerService) Stats(ctx context.Context) (ledger.Stats, error) {
	stats, err := s.accountStore.Stats(ctx)
	if err != nil {
		return ledger.Stats{}, storageError(err)
	}
	return stats, nil
}

func lockCustomer(ctx context.Context, tx store.Getter, accountStore AccountStore, accountID int64) (models.Account, error) {
	account, err := accountStore.GetForUpdate(ctx, tx, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, ledger.ErrAccountNotFound
	}
	if err != nil {
		return models.Account{}, err
	}
	if account.Kind != models.KindCustomer {
		return models.Account{}, ledger.ErrAccountNotFound
	}
	return account, nil
}

// lockTwoAccounts locks both rows lowest id first. A missing sender is
// reported before a missing recipient regardless of lock order.
func lockTwoAccounts(ctx context.Context, tx store.Getter, accountStore AccountStore, fromID, toID int64) (models.Account, models.Account, error) {
	leftID, rightID := orderedIDs(fromID, toID)
	leftAccount, leftErr := lockCustomer(ctx, tx, accountStore, leftID)
	if leftErr != nil && !errors.Is(leftErr, ledger.ErrAccountNotFound) {
		return models.Account{}, models.Account{}, leftErr
	}
	rightAccount, rightErr := lockCustomer(ctx, tx, accountStore, rightID)
	if rightErr != nil && !errors.Is(rightErr, ledger.ErrAccountNotFound) {
		return models.Account{}, models.Account{}, rightErr
	}

	from, fromErr := leftAccount, leftErr
	to, toErr := rightAccount, rightErr
	if fromID != leftID {
		from, fromErr = rightAccount, rightErr
		to, toErr = leftAccount, leftErr
	}
	if fromErr != nil {
		return models.Account{}, models.Account{}, fmt.Errorf("sender: %w", fromErr)
	}
	if toErr != nil {
		return models.Account{}, models.Account{}, fmt.Errorf("recipient: %w", toErr)
	}
	return from, to, nil
}

func orderedIDs(firstID, secondID int64) (int64, int64) {
	if firstID <= secondID {
		return firstID, secondID
	}
	return secondID, firstID
}

// storageError keeps ledger and context errors as they are and folds
// everything else into the ledger's error kinds.
func storageError(err error) error {
	switch {
	case err == nil:
		return nil
	case isLedgerError(err), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, sql.ErrNoRows):
		return ledger.ErrAccountNotFound
	case db.IsUniqueViolation(err):
		return ledger.ErrDuplicateIdentity
	default:
		return fmt.Errorf("%w: %w", ledger.ErrStorage, err)
	}
}

func isLedgerError(err error) bool {
	for _, target := range []error{
		ledger.ErrInvalidAmount,
		ledger.ErrAccountNotFound,
		ledger.ErrDuplicateIdentity,
		ledger.ErrInsufficientFunds,
		ledger.ErrSelfTransfer,
		ledger.ErrContention,
		ledger.ErrStorage,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
