package services

import (
	"context"

	"bankledger/internal/ledger"
	"bankledger/internal/models"
	"bankledger/internal/session"
)

// ReportService holds the manager's read-only views over the ledger.
type ReportService struct {
	ledger ledger.Ledger
}

func NewReportService(l ledger.Ledger) *ReportService {
	return &ReportService{ledger: l}
}

func (s *ReportService) Stats(ctx context.Context, p session.Principal) (ledger.Stats, error) {
	if err := requireRole(p, models.KindManager); err != nil {
		return ledger.Stats{}, err
	}
	return s.ledger.Stats(ctx)
}

func (s *ReportService) Customers(ctx context.Context, p session.Principal, filter ledger.CustomerFilter) ([]models.Account, error) {
	if err := requireRole(p, models.KindManager); err != nil {
		return nil, err
	}
	return s.ledger.Customers(ctx, filter)
}

func (s *ReportService) CustomerTransactions(ctx context.Context, p session.Principal, customerID int64) ([]models.Transaction, error) {
	if err := requireRole(p, models.KindManager); err != nil {
		return nil, err
	}
	return s.ledger.History(ctx, customerID, ledger.HistoryFilter{})
}

func (s *ReportService) Transactions(ctx context.Context, p session.Principal) ([]models.Transaction, error) {
	if err := requireRole(p, models.KindManager); err != nil {
		return nil, err
	}
	return s.ledger.Transactions(ctx)
}
