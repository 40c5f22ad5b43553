package db

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"bankledger/internal/ledger"
)

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
)

//go:embed schema.sql
var schema string

type TxRunner interface {
	WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error
}

type SQLXTxRunner struct {
	db          *sqlx.DB
	lockTimeout time.Duration
}

// NewTxRunner returns a runner whose transactions give up on row locks after
// lockTimeout. Zero leaves the server default in place.
func NewTxRunner(db *sqlx.DB, lockTimeout time.Duration) SQLXTxRunner {
	return SQLXTxRunner{db: db, lockTimeout: lockTimeout}
}

func (r SQLXTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if r.lockTimeout <= 0 {
		return WithTx(ctx, r.db, fn)
	}
	stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
	return WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
		return fn(tx)
	})
}

func Connect(databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// EnsureSchema creates the ledger tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// WithTx runs fn in a serializable transaction, retrying serialization
// failures and deadlocks. Lock timeouts and exhausted retries surface as
// ledger.ErrContention.
func WithTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	const maxAttempts = 5
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			if isRetryablePGError(err) {
				lastErr = err
				if err := pause(ctx, attempt, maxAttempts); err != nil {
					return err
				}
				continue
			}
			return classify(err)
		}
		if err := tx.Commit(); err != nil {
			if isRetryablePGError(err) {
				lastErr = err
				if err := pause(ctx, attempt, maxAttempts); err != nil {
					return err
				}
				continue
			}
			return classify(err)
		}
		return nil
	}
	return fmt.Errorf("%w: transaction retry limit exceeded: %w", ledger.ErrContention, lastErr)
}

func classify(err error) error {
	if IsLockTimeout(err) {
		return fmt.Errorf("%w: %w", ledger.ErrContention, err)
	}
	return err
}

func IsUniqueViolation(err error) bool {
	return hasCode(err, codeUniqueViolation)
}

func IsLockTimeout(err error) bool {
	return hasCode(err, codeLockNotAvailable)
}

func isRetryablePGError(err error) bool {
	return hasCode(err, codeSerializationFailure) || hasCode(err, codeDeadlockDetected)
}

func hasCode(err error, code string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return string(pqErr.Code) == code
}

func pause(ctx context.Context, attempt, maxAttempts int) error {
	if attempt >= maxAttempts {
		return nil
	}
	return sleepWithBackoff(ctx, attempt)
}

func sleepWithBackoff(ctx context.Context, attempt int) error {
	base := 20 * time.Millisecond
	backoff := time.Duration(attempt*attempt) * base
	jitter := time.Duration(rand.Int63n(int64(10 * time.Millisecond)))
	timer := time.NewTimer(backoff + jitter)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
