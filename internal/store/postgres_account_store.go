package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/transfa/fundtransfer-service/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const pgLockNotAvailable = "55P03"

var tracer = otel.Tracer("github.com/transfa/fundtransfer-service/internal/store")

// PostgresAccountStore implements AccountStore on the users table. Each unit of
// work is one database transaction whose lock waits are bounded by lockTimeout.
type PostgresAccountStore struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
}

func NewPostgresAccountStore(db *pgxpool.Pool, lockTimeout time.Duration) *PostgresAccountStore {
	return &PostgresAccountStore{db: db, lockTimeout: lockTimeout}
}

// Begin opens a unit of work.
func (s *PostgresAccountStore) Begin(ctx context.Context) (UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin unit of work: %w", err)
	}
	if s.lockTimeout > 0 {
		// set_config with is_local=true scopes the timeout to this transaction.
		timeout := fmt.Sprintf("%dms", s.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, timeout); err != nil {
			_ = tx.Rollback(ctx)
			return nil, fmt.Errorf("set lock timeout: %w", err)
		}
	}
	return &pgUnitOfWork{tx: tx, locked: make(map[int64]struct{}, 2)}, nil
}

type pgUnitOfWork struct {
	tx       pgx.Tx
	locked   map[int64]struct{}
	finished bool
}

func (u *pgUnitOfWork) LockForUpdate(ctx context.Context, ids []int64) (map[int64]domain.Money, error) {
	if u.finished {
		return nil, ErrUnitFinished
	}

	ordered := slices.Clone(ids)
	slices.Sort(ordered)
	ordered = slices.Compact(ordered)

	ctx, span := tracer.Start(ctx, "store.lock_accounts")
	span.SetAttributes(attribute.Int64Slice("account.ids", ordered))
	defer span.End()

	balances := make(map[int64]domain.Money, len(ordered))
	for _, id := range ordered {
		var balance int64
		err := u.tx.QueryRow(ctx, `SELECT balance FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&balance)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("account %d: %w", id, domain.ErrAccountNotFound)
			}
			span.RecordError(err)
			return nil, mapLockError(id, err)
		}
		balances[id] = domain.Money(balance)
		u.locked[id] = struct{}{}
	}
	return balances, nil
}

func (u *pgUnitOfWork) WriteBalance(ctx context.Context, id int64, balance domain.Money) error {
	if u.finished {
		return ErrUnitFinished
	}
	if _, ok := u.locked[id]; !ok {
		return fmt.Errorf("account %d: %w", id, ErrNotLocked)
	}
	if balance < 0 {
		return fmt.Errorf("account %d: %w", id, ErrNegativeBalance)
	}

	result, err := u.tx.Exec(ctx, `UPDATE users SET balance = $1, updated_at = NOW() WHERE id = $2`, int64(balance), id)
	if err != nil {
		return fmt.Errorf("write balance for account %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("account %d: %w", id, domain.ErrAccountNotFound)
	}
	return nil
}

func (u *pgUnitOfWork) Commit(ctx context.Context) error {
	if u.finished {
		return ErrUnitFinished
	}
	u.finished = true
	if err := u.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit unit of work: %w", err)
	}
	return nil
}

func (u *pgUnitOfWork) Abort(ctx context.Context) error {
	if u.finished {
		return nil
	}
	u.finished = true
	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("abort unit of work: %w", err)
	}
	return nil
}

func mapLockError(id int64, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
		return fmt.Errorf("account %d: %w", id, domain.ErrTimeout)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("account %d: %w", id, domain.ErrTimeout)
	}
	return fmt.Errorf("lock account %d: %w", id, err)
}
