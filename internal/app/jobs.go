package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/transfa/fundtransfer-service/internal/domain"
	"github.com/transfa/fundtransfer-service/internal/store"
	"go.uber.org/zap"
)

const jobTimeout = time.Minute

// JobLocker grants a cluster-wide lease so one replica runs each scheduled tick.
type JobLocker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (unlock func(), acquired bool, err error)
}

// RedsyncLocker implements JobLocker on a Redis mutex.
type RedsyncLocker struct {
	rs     *redsync.Redsync
	prefix string
}

func NewRedsyncLocker(rs *redsync.Redsync, prefix string) *RedsyncLocker {
	return &RedsyncLocker{rs: rs, prefix: prefix}
}

func (l *RedsyncLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	mutex := l.rs.NewMutex(l.prefix+":"+name, redsync.WithExpiry(ttl), redsync.WithTries(1))
	if err := mutex.TryLockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.As(err, &taken) || errors.Is(err, redsync.ErrFailed) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return func() {
		_, _ = mutex.UnlockContext(context.Background())
	}, true, nil
}

// Jobs holds the scheduled maintenance jobs.
type Jobs struct {
	users           store.UserRepository
	outbox          store.OutboxRepository
	locker          JobLocker
	logger          *zap.Logger
	outboxRetention time.Duration

	mu        sync.Mutex
	lastTotal *domain.Money
}

func NewJobs(users store.UserRepository, outbox store.OutboxRepository, locker JobLocker, logger *zap.Logger, outboxRetention time.Duration) *Jobs {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Jobs{
		users:           users,
		outbox:          outbox,
		locker:          locker,
		logger:          logger,
		outboxRetention: outboxRetention,
	}
}

// PurgePublishedOutbox removes published outbox rows older than the retention window.
func (j *Jobs) PurgePublishedOutbox() {
	j.runExclusive("outbox_purge", func(ctx context.Context) {
		removed, err := j.outbox.PurgePublishedOutbox(ctx, j.outboxRetention)
		if err != nil {
			j.logger.Error("outbox purge failed", zap.String("component", "jobs"), zap.Error(err))
			return
		}
		j.logger.Info("outbox purge finished", zap.String("component", "jobs"), zap.Int64("removed", removed))
	})
}

// SnapshotBalances logs the account count and total balance. Transfers conserve
// the total, so a change between two snapshots means balances were written
// outside the transfer path (for example by seeding).
func (j *Jobs) SnapshotBalances() {
	j.runExclusive("balance_snapshot", func(ctx context.Context) {
		snapshot, err := j.users.BalanceSnapshot(ctx)
		if err != nil {
			j.logger.Error("balance snapshot failed", zap.String("component", "jobs"), zap.Error(err))
			return
		}

		j.mu.Lock()
		previous := j.lastTotal
		total := snapshot.Total
		j.lastTotal = &total
		j.mu.Unlock()

		fields := []zap.Field{
			zap.String("component", "jobs"),
			zap.Int64("accounts", snapshot.Accounts),
			zap.Stringer("total_balance", snapshot.Total),
		}
		if previous != nil && *previous != snapshot.Total {
			j.logger.Warn("total balance changed since last snapshot", append(fields, zap.Stringer("previous_total_balance", *previous))...)
			return
		}
		j.logger.Info("balance snapshot", fields...)
	})
}

func (j *Jobs) runExclusive(name string, job func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if j.locker != nil {
		unlock, acquired, err := j.locker.TryLock(ctx, name, jobTimeout)
		if err != nil {
			j.logger.Warn("job lock unavailable; skipping run", zap.String("component", "jobs"), zap.String("job", name), zap.Error(err))
			return
		}
		if !acquired {
			j.logger.Debug("job running on another replica", zap.String("component", "jobs"), zap.String("job", name))
			return
		}
		defer unlock()
	}
	job(ctx)
}
