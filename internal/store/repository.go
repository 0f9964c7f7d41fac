/**
 * @description
 * This file defines the storage contracts consumed by the fund-transfer service.
 * By depending on interfaces, the transfer coordinator and the HTTP layer stay
 * decoupled from PostgreSQL and can be exercised with in-memory stubs in tests.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/transfa/fundtransfer-service/internal/domain"
)

// AccountStore owns balance state. Every balance mutation happens inside a
// UnitOfWork obtained from Begin.
type AccountStore interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// UnitOfWork is a scoped, all-or-nothing sequence of balance reads and writes.
// It must be finished with Commit or Abort on every exit path.
type UnitOfWork interface {
	// LockForUpdate takes exclusive locks on all ids in ascending order and
	// returns their current balances.
	LockForUpdate(ctx context.Context, ids []int64) (map[int64]domain.Money, error)
	// WriteBalance stores a new balance for an account locked by this unit.
	WriteBalance(ctx context.Context, id int64, balance domain.Money) error
	Commit(ctx context.Context) error
	// Abort discards pending writes. It is a no-op after Commit.
	Abort(ctx context.Context) error
}

// AuditLog is the append-only trail of transfer attempts.
type AuditLog interface {
	Append(ctx context.Context, record domain.AuditRecord) error
	ByAccount(ctx context.Context, accountID int64, page domain.HistoryPage) ([]domain.AuditRecord, error)
}

// UserRepository serves account-holder reads, login lookups and seeding.
type UserRepository interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	FindUserByID(ctx context.Context, id int64) (*domain.User, error)
	FindUserByUsername(ctx context.Context, username string) (*domain.User, error)
	UpsertUser(ctx context.Context, user domain.User) (int64, error)
	BalanceSnapshot(ctx context.Context) (domain.BalanceSnapshot, error)
}

// OutboxRepository is the relay side of the transactional outbox.
type OutboxRepository interface {
	ClaimOutboxMessages(ctx context.Context, limit int, staleAfterSeconds int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, id int64) error
	MarkOutboxFailed(ctx context.Context, id int64, retryAfterSeconds int, reason string) error
	PurgePublishedOutbox(ctx context.Context, olderThan time.Duration) (int64, error)
}

// OutboxMessage is one pending event claimed for publishing.
type OutboxMessage struct {
	ID         int64
	Exchange   string
	RoutingKey string
	Payload    []byte
	Attempts   int
}
