// Package ledger owns account balances and their append-only transaction history.
package ledger

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"bankledger/internal/models"
)

var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrAccountNotFound   = errors.New("account not found")
	ErrDuplicateIdentity = errors.New("identity already registered")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSelfTransfer      = errors.New("cannot transfer to the same account")
	ErrContention        = errors.New("account busy, retry later")
	ErrStorage           = errors.New("ledger storage failure")
)

const (
	DescriptionInitialDeposit = "Initial deposit"
	DescriptionDeposit        = "Deposit"
	DescriptionWithdrawal     = "Withdrawal"
)

// Ledger is implemented by the in-memory engine and by the SQL-backed service.
type Ledger interface {
	OpenAccount(ctx context.Context, req OpenAccountRequest) (models.Account, error)
	Credit(ctx context.Context, accountID, amount int64, description string) (Receipt, error)
	Debit(ctx context.Context, accountID, amount int64, description string) (Receipt, error)
	Transfer(ctx context.Context, fromID, toID, amount int64) (Receipt, error)

	GetBalance(ctx context.Context, accountID int64) (int64, error)
	GetAccount(ctx context.Context, accountID int64) (models.Account, error)
	FindByIdentity(ctx context.Context, kind models.Kind, identity string) (models.Account, error)
	History(ctx context.Context, accountID int64, filter HistoryFilter) ([]models.Transaction, error)

	Customers(ctx context.Context, filter CustomerFilter) ([]models.Account, error)
	Transactions(ctx context.Context) ([]models.Transaction, error)
	Stats(ctx context.Context) (Stats, error)
}

type OpenAccountRequest struct {
	Kind           models.Kind
	Name           string
	Identity       string
	Credentials    string
	InitialBalance int64
}

// Receipt is returned by every balance mutation. Balance is the acting
// account's balance after commit; Records holds the appended records in order.
type Receipt struct {
	Balance int64
	Records []models.Transaction
}

type SortOrder string

const (
	SortInsertion SortOrder = ""
	SortRecent    SortOrder = "recent"
)

// HistoryFilter narrows a history read. Zero fields match everything.
type HistoryFilter struct {
	From        *time.Time
	To          *time.Time
	Type        models.TransactionType
	Description string
	Sort        SortOrder
}

func (f HistoryFilter) Match(tx models.Transaction) bool {
	if f.From != nil && tx.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && tx.Timestamp.After(*f.To) {
		return false
	}
	if f.Type != "" && tx.Type != f.Type {
		return false
	}
	if f.Description != "" && !containsFold(tx.Description, f.Description) {
		return false
	}
	return true
}

// Apply filters records that are already in insertion order and then sorts them.
func (f HistoryFilter) Apply(records []models.Transaction) []models.Transaction {
	out := make([]models.Transaction, 0, len(records))
	for _, tx := range records {
		if f.Match(tx) {
			out = append(out, tx)
		}
	}
	if f.Sort == SortRecent {
		SortRecentFirst(out)
	}
	return out
}

// SortRecentFirst orders by timestamp desc, breaking ties by transaction id desc.
func SortRecentFirst(records []models.Transaction) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Timestamp.After(records[j].Timestamp)
		}
		return records[i].ID > records[j].ID
	})
}

// CustomerFilter criteria are AND-combined; zero values are ignored.
type CustomerFilter struct {
	Name      string
	Email     string
	AccountID int64
}

func (f CustomerFilter) Match(account models.Account) bool {
	if account.Kind != models.KindCustomer {
		return false
	}
	if f.Name != "" && !containsFold(account.Name, f.Name) {
		return false
	}
	if f.Email != "" && account.Identity != f.Email {
		return false
	}
	if f.AccountID != 0 && account.ID != f.AccountID {
		return false
	}
	return true
}

type Stats struct {
	Customers    int64 `json:"total_customers"`
	Transactions int64 `json:"total_transactions"`
	TotalBalance int64 `json:"total_balance"`
}

func TransferOutDescription(toID int64) string {
	return "Transfer to account " + strconv.FormatInt(toID, 10)
}

func TransferInDescription(fromID int64) string {
	return "Transfer from account " + strconv.FormatInt(fromID, 10)
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
