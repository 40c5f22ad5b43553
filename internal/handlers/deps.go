package handlers

import (
	"context"

	"bankledger/internal/ledger"
	"bankledger/internal/models"
	"bankledger/internal/services"
	"bankledger/internal/session"
)

type AuthService interface {
	RegisterManager(ctx context.Context, username, password string) (models.Account, error)
	RegisterCustomer(ctx context.Context, reg services.CustomerRegistration) (models.Account, error)
	LoginManager(ctx context.Context, username, password string) (services.LoginResult, error)
	LoginCustomer(ctx context.Context, email, password string) (services.LoginResult, error)
	Logout(ctx context.Context, token string) error
	Resolve(ctx context.Context, token string) (session.Principal, error)
}

type BankService interface {
	Balance(ctx context.Context, p session.Principal) (int64, error)
	Deposit(ctx context.Context, p session.Principal, amount int64) (int64, error)
	Withdraw(ctx context.Context, p session.Principal, amount int64) (int64, error)
	Transfer(ctx context.Context, p session.Principal, recipientID, amount int64) (int64, error)
	History(ctx context.Context, p session.Principal, filter ledger.HistoryFilter) ([]models.Transaction, error)
}

type ReportService interface {
	Stats(ctx context.Context, p session.Principal) (ledger.Stats, error)
	Customers(ctx context.Context, p session.Principal, filter ledger.CustomerFilter) ([]models.Account, error)
	CustomerTransactions(ctx context.Context, p session.Principal, customerID int64) ([]models.Transaction, error)
	Transactions(ctx context.Context, p session.Principal) ([]models.Transaction, error)
}
