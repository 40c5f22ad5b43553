// Package events publishes committed ledger records to downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bankledger/internal/models"
)

const TypeTransactionRecorded = "transaction.recorded"

type TransactionRecorded struct {
	EventID       string                 `json:"event_id"`
	EventType     string                 `json:"event_type"`
	TransactionID int64                  `json:"transaction_id"`
	AccountID     int64                  `json:"account_id"`
	Type          models.TransactionType `json:"transaction_type"`
	Amount        string                 `json:"amount"`
	AmountMinor   int64                  `json:"amount_minor"`
	Description   string                 `json:"description"`
	OccurredAt    time.Time              `json:"occurred_at"`
	RequestID     string                 `json:"request_id,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, events ...TransactionRecorded) error
	Close() error
}

func NewTransactionRecorded(tx models.Transaction, amount, requestID string) TransactionRecorded {
	return TransactionRecorded{
		EventID:       uuid.NewString(),
		EventType:     TypeTransactionRecorded,
		TransactionID: tx.ID,
		AccountID:     tx.AccountID,
		Type:          tx.Type,
		Amount:        amount,
		AmountMinor:   tx.Amount,
		Description:   tx.Description,
		OccurredAt:    tx.Timestamp,
		RequestID:     requestID,
	}
}

// NopPublisher drops events. It is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ...TransactionRecorded) error { return nil }

func (NopPublisher) Close() error { return nil }
