package models

import "time"

type Kind string

const (
	KindManager  Kind = "manager"
	KindCustomer Kind = "customer"
)

type TransactionType string

const (
	TypeDeposit     TransactionType = "deposit"
	TypeWithdrawal  TransactionType = "withdrawal"
	TypeTransferIn  TransactionType = "transfer_in"
	TypeTransferOut TransactionType = "transfer_out"
)

// TransactionTypes lists every record type in display order.
var TransactionTypes = []TransactionType{TypeDeposit, TypeWithdrawal, TypeTransferIn, TypeTransferOut}

func (t TransactionType) Valid() bool {
	for _, known := range TransactionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Account is either a customer holding a balance or a manager principal.
// Identity is the email for customers and the username for managers.
type Account struct {
	ID          int64     `db:"account_id" json:"account_id"`
	Kind        Kind      `db:"kind" json:"kind"`
	Name        string    `db:"name" json:"name"`
	Identity    string    `db:"identity" json:"identity"`
	Balance     int64     `db:"balance" json:"balance"`
	Credentials string    `db:"credentials" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type Transaction struct {
	ID          int64           `db:"transaction_id" json:"transaction_id"`
	AccountID   int64           `db:"account_id" json:"account_id"`
	Type        TransactionType `db:"transaction_type" json:"transaction_type"`
	Amount      int64           `db:"amount" json:"amount"`
	Timestamp   time.Time       `db:"timestamp" json:"timestamp"`
	Description string          `db:"description" json:"description"`
}
