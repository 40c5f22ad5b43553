package store

import (
	"context"
	"strings"

	"bankledger/internal/ledger"
	"bankledger/internal/models"
)

const accountColumns = `account_id, kind, name, identity, balance, credentials, created_at`

type AccountStore struct {
	db DB
}

type AccountInput struct {
	Kind        models.Kind
	Name        string
	Identity    string
	Credentials string
	Balance     int64
}

type statsRow struct {
	Customers    int64 `db:"total_customers"`
	Transactions int64 `db:"total_transactions"`
	TotalBalance int64 `db:"total_balance"`
}

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) Create(ctx context.Context, tx Getter, input AccountInput) (models.Account, error) {
	var row models.Account
	err := tx.GetContext(ctx, &row, `
		INSERT INTO accounts (kind, name, identity, balance, credentials)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+accountColumns,
		input.Kind, input.Name, input.Identity, input.Balance, input.Credentials,
	)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) GetByID(ctx context.Context, accountID int64) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `SELECT `+accountColumns+` FROM accounts WHERE account_id = $1`, accountID)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) GetByIdentity(ctx context.Context, kind models.Kind, identity string) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE kind = $1 AND identity = $2
	`, kind, identity)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) GetForUpdate(ctx context.Context, tx Getter, accountID int64) (models.Account, error) {
	var row models.Account
	err := tx.GetContext(ctx, &row, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE account_id = $1
		FOR UPDATE
	`, accountID)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) UpdateBalance(ctx context.Context, tx Execer, accountID, balance int64) error {
	_, err := tx.ExecContext(ctx, `UPDATE accounts SET balance = $1 WHERE account_id = $2`, balance, accountID)
	return err
}

// ListCustomers returns customers matching every non-zero criterion, by ascending id.
func (s *AccountStore) ListCustomers(ctx context.Context, filter ledger.CustomerFilter) ([]models.Account, error) {
	clauses := []string{"kind = 'customer'"}
	var args []any
	if filter.Name != "" {
		args = append(args, "%"+escapeLike(filter.Name)+"%")
		clauses = append(clauses, "name ILIKE $"+itoa(len(args)))
	}
	if filter.Email != "" {
		args = append(args, filter.Email)
		clauses = append(clauses, "identity = $"+itoa(len(args)))
	}
	if filter.AccountID != 0 {
		args = append(args, filter.AccountID)
		clauses = append(clauses, "account_id = $"+itoa(len(args)))
	}

	rows := []models.Account{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE `+strings.Join(clauses, " AND ")+`
		ORDER BY account_id
	`, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *AccountStore) Stats(ctx context.Context) (ledger.Stats, error) {
	var row statsRow
	err := s.db.GetContext(ctx, &row, `
		SELECT (SELECT COUNT(*) FROM accounts WHERE kind = 'customer') AS total_customers,
		       (SELECT COUNT(*) FROM transactions) AS total_transactions,
		       (SELECT COALESCE(SUM(balance), 0) FROM accounts WHERE kind = 'customer') AS total_balance
	`)
	if err != nil {
		return ledger.Stats{}, err
	}
	return ledger.Stats{Customers: row.Customers, Transactions: row.Transactions, TotalBalance: row.TotalBalance}, nil
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}
