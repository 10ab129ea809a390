package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"chatpay/internal/repository"

	"go.uber.org/zap"
)

const releaseTimeout = 10 * time.Second

type Kind string

const (
	KindTransfer Kind = "transfer"
	KindSwap     Kind = "swap"
)

// Manager serializes monetary operations per user. Transfer and swap share
// one exclusion domain: a held lock of either kind blocks both.
type Manager struct {
	logs  *zap.SugaredLogger
	store Store
}

func NewManager(logger *zap.SugaredLogger, store Store) *Manager {
	return &Manager{
		logs:  logger,
		store: store,
	}
}

// TryAcquire attempts to open the lock for userKey. It returns ok=false when
// another operation is already in flight, without error. On success the
// returned guard must be released on every exit path.
func (m *Manager) TryAcquire(ctx context.Context, userKey string, kind Kind) (*Guard, bool, error) {
	err := m.store.CreateOperationLock(ctx, userKey, string(kind))
	if err != nil {
		if errors.Is(err, repository.ErrLockHeld) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("acquire operation lock: %w", err)
	}

	return &Guard{
		userKey: userKey,
		store:   m.store,
		logs:    m.logs,
	}, true, nil
}

// Guard owns one acquired lock. Release is idempotent so it can be both
// deferred and called explicitly on early exits.
type Guard struct {
	userKey string
	store   Store
	logs    *zap.SugaredLogger
	once    sync.Once
}

// Release removes the lock. It runs on its own deadline: a leaked lock blocks
// the user permanently, so release must not be skipped because the caller's
// context is already cancelled.
func (g *Guard) Release() {
	g.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()

		if err := g.store.DeleteOperationLock(ctx, g.userKey); err != nil {
			g.logs.Errorw("failed to release operation lock",
				"error", err,
				"user_key", g.userKey)
		}
	})
}
