package store

import (
	"context"
	"strconv"
	"strings"
	"time"

	"bankledger/internal/ledger"
	"bankledger/internal/models"
)

const transactionColumns = `transaction_id, account_id, transaction_type, amount, timestamp, description`

type TransactionStore struct {
	db DB
}

type TransactionInput struct {
	AccountID   int64
	Type        models.TransactionType
	Amount      int64
	Timestamp   time.Time
	Description string
}

func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

func (s *TransactionStore) Insert(ctx context.Context, tx Getter, input TransactionInput) (models.Transaction, error) {
	var row models.Transaction
	err := tx.GetContext(ctx, &row, `
		INSERT INTO transactions (account_id, transaction_type, amount, timestamp, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+transactionColumns,
		input.AccountID, input.Type, input.Amount, input.Timestamp, input.Description,
	)
	if err != nil {
		return models.Transaction{}, err
	}
	return row, nil
}

// ListByAccount applies the filter in SQL. Insertion order is transaction_id
// order; the recent sort breaks timestamp ties by id.
func (s *TransactionStore) ListByAccount(ctx context.Context, accountID int64, filter ledger.HistoryFilter) ([]models.Transaction, error) {
	clauses := []string{"account_id = $1"}
	args := []any{accountID}
	if filter.From != nil {
		args = append(args, *filter.From)
		clauses = append(clauses, "timestamp >= $"+itoa(len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clauses = append(clauses, "timestamp <= $"+itoa(len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		clauses = append(clauses, "transaction_type = $"+itoa(len(args)))
	}
	if filter.Description != "" {
		args = append(args, "%"+escapeLike(filter.Description)+"%")
		clauses = append(clauses, "description ILIKE $"+itoa(len(args)))
	}

	order := "transaction_id"
	if filter.Sort == ledger.SortRecent {
		order = "timestamp DESC, transaction_id DESC"
	}

	rows := []models.Transaction{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE `+strings.Join(clauses, " AND ")+`
		ORDER BY `+order, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *TransactionStore) ListAll(ctx context.Context) ([]models.Transaction, error) {
	rows := []models.Transaction{}
	err := s.db.SelectContext(ctx, &rows, `SELECT `+transactionColumns+` FROM transactions ORDER BY transaction_id`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func itoa(value int) string {
	return strconv.Itoa(value)
}
