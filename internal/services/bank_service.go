package services

import (
	"context"
	"log"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"bankledger/internal/events"
	"bankledger/internal/ledger"
	"bankledger/internal/models"
	"bankledger/internal/money"
	"bankledger/internal/session"
	"bankledger/internal/websocket"
)

type BalanceHub interface {
	BroadcastBalance(accountID int64, update websocket.BalanceUpdate)
}

// BankService runs customer operations against the caller's own account and
// fans committed records out to websocket subscribers and the event stream.
type BankService struct {
	ledger    ledger.Ledger
	hub       BalanceHub
	publisher events.Publisher
}

func NewBankService(l ledger.Ledger, hub BalanceHub, publisher events.Publisher) *BankService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &BankService{ledger: l, hub: hub, publisher: publisher}
}

func (s *BankService) Balance(ctx context.Context, p session.Principal) (int64, error) {
	if err := requireRole(p, models.KindCustomer); err != nil {
		return 0, err
	}
	return s.ledger.GetBalance(ctx, p.ID)
}

func (s *BankService) Deposit(ctx context.Context, p session.Principal, amount int64) (int64, error) {
	if err := requireRole(p, models.KindCustomer); err != nil {
		return 0, err
	}
	receipt, err := s.ledger.Credit(ctx, p.ID, amount, "")
	if err != nil {
		return 0, err
	}
	s.committed(ctx, receipt)
	return receipt.Balance, nil
}

func (s *BankService) Withdraw(ctx context.Context, p session.Principal, amount int64) (int64, error) {
	if err := requireRole(p, models.KindCustomer); err != nil {
		return 0, err
	}
	receipt, err := s.ledger.Debit(ctx, p.ID, amount, "")
	if err != nil {
		return 0, err
	}
	s.committed(ctx, receipt)
	return receipt.Balance, nil
}

func (s *BankService) Transfer(ctx context.Context, p session.Principal, recipientID, amount int64) (int64, error) {
	if err := requireRole(p, models.KindCustomer); err != nil {
		return 0, err
	}
	receipt, err := s.ledger.Transfer(ctx, p.ID, recipientID, amount)
	if err != nil {
		return 0, err
	}
	s.committed(ctx, receipt)
	return receipt.Balance, nil
}

func (s *BankService) History(ctx context.Context, p session.Principal, filter ledger.HistoryFilter) ([]models.Transaction, error) {
	if err := requireRole(p, models.KindCustomer); err != nil {
		return nil, err
	}
	return s.ledger.History(ctx, p.ID, filter)
}

// committed runs after the ledger has made the change durable. Failures here
// are logged and never reported to the caller.
func (s *BankService) committed(ctx context.Context, receipt ledger.Receipt) {
	if len(receipt.Records) == 0 {
		return
	}
	acting := receipt.Records[0]
	s.broadcast(acting.AccountID, receipt.Balance, acting.Type)
	for _, record := range receipt.Records[1:] {
		balance, err := s.ledger.GetBalance(ctx, record.AccountID)
		if err != nil {
			log.Printf("balance refresh for account %d failed: %v", record.AccountID, err)
			continue
		}
		s.broadcast(record.AccountID, balance, record.Type)
	}

	requestID := chimiddleware.GetReqID(ctx)
	batch := make([]events.TransactionRecorded, 0, len(receipt.Records))
	for _, record := range receipt.Records {
		batch = append(batch, events.NewTransactionRecorded(record, money.FormatMinor(record.Amount), requestID))
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), batch...); err != nil {
		log.Printf("publish %d transaction events failed: %v", len(batch), err)
	}
}

func (s *BankService) broadcast(accountID, balance int64, txType models.TransactionType) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastBalance(accountID, websocket.BalanceUpdate{
		AccountID:       accountID,
		Balance:         money.FormatMinor(balance),
		BalanceMinor:    balance,
		TransactionType: txType,
	})
}
