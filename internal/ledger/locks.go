package ledger

import (
	"context"
	"time"
)

// accountLock is a one-slot semaphore so acquisition can give up after a timeout.
type accountLock chan struct{}

func newAccountLock() accountLock {
	return make(accountLock, 1)
}

func (l accountLock) acquire(ctx context.Context, timeout time.Duration) error {
	select {
	case l <- struct{}{}:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case l <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrContention
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l accountLock) release() {
	<-l
}

// lockAll acquires the given locks in slice order. On failure every lock
// already taken is released before returning.
func lockAll(ctx context.Context, timeout time.Duration, locks ...accountLock) (func(), error) {
	held := make([]accountLock, 0, len(locks))
	unlock := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].release()
		}
	}
	for _, l := range locks {
		if err := l.acquire(ctx, timeout); err != nil {
			unlock()
			return nil, err
		}
		held = append(held, l)
	}
	return unlock, nil
}
