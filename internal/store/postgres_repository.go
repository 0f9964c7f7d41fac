/**
 * @description
 * This file provides the PostgreSQL implementation of the UserRepository and
 * OutboxRepository interfaces: account-holder reads, seeding upserts, balance
 * snapshots and the relay side of the transactional event outbox.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/transfa/fundtransfer-service/internal/domain"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrNegativeBalance = errors.New("balance would become negative")
	ErrNotLocked       = errors.New("account is not locked by this unit of work")
	ErrUnitFinished    = errors.New("unit of work already finished")
)

// PostgresRepository is a concrete implementation of UserRepository and
// OutboxRepository for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ListUsers returns every account holder ordered by id.
func (r *PostgresRepository) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, username, balance, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		var (
			user    domain.User
			balance int64
		)
		if err := rows.Scan(&user.ID, &user.Name, &user.Username, &balance, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.Balance = domain.Money(balance)
		users = append(users, user)
	}
	return users, rows.Err()
}

// FindUserByID retrieves a user by id.
func (r *PostgresRepository) FindUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.findUser(ctx, `SELECT id, name, username, balance, password_hash, created_at FROM users WHERE id = $1`, id)
}

// FindUserByUsername retrieves a user, including the password hash, by username.
func (r *PostgresRepository) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findUser(ctx, `SELECT id, name, username, balance, password_hash, created_at FROM users WHERE username = $1`, strings.TrimSpace(username))
}

func (r *PostgresRepository) findUser(ctx context.Context, query string, arg interface{}) (*domain.User, error) {
	var (
		user    domain.User
		balance int64
	)
	err := r.db.QueryRow(ctx, query, arg).Scan(&user.ID, &user.Name, &user.Username, &balance, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	user.Balance = domain.Money(balance)
	return &user, nil
}

// UpsertUser inserts a user or resets name, balance and password of an existing
// username. Used by seeding only.
func (r *PostgresRepository) UpsertUser(ctx context.Context, user domain.User) (int64, error) {
	query := `
		INSERT INTO users (name, username, balance, password_hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username)
		DO UPDATE SET name = EXCLUDED.name,
			balance = EXCLUDED.balance,
			password_hash = EXCLUDED.password_hash,
			updated_at = NOW()
		RETURNING id
	`
	var id int64
	if err := r.db.QueryRow(ctx, query, user.Name, user.Username, int64(user.Balance), user.PasswordHash).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert user %s: %w", user.Username, err)
	}
	return id, nil
}

// BalanceSnapshot returns the number of accounts and the sum of all balances.
func (r *PostgresRepository) BalanceSnapshot(ctx context.Context) (domain.BalanceSnapshot, error) {
	var (
		count int64
		total int64
	)
	err := r.db.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(balance), 0)::BIGINT FROM users`).Scan(&count, &total)
	if err != nil {
		return domain.BalanceSnapshot{}, err
	}
	return domain.BalanceSnapshot{Accounts: count, Total: domain.Money(total)}, nil
}

// ClaimOutboxMessages moves up to limit due messages to processing and returns them.
// Messages stuck in processing for longer than staleAfterSeconds are reclaimed.
func (r *PostgresRepository) ClaimOutboxMessages(ctx context.Context, limit int, staleAfterSeconds int) ([]OutboxMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	if staleAfterSeconds <= 0 {
		staleAfterSeconds = 120
	}

	query := `
		WITH candidates AS (
			SELECT id
			FROM event_outbox
			WHERE (
				(status = 'pending' AND next_attempt_at <= NOW())
				OR (status = 'processing' AND processing_started_at < NOW() - ($2 * INTERVAL '1 second'))
			)
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE event_outbox AS o
		SET status = 'processing',
			processing_started_at = NOW(),
			attempts = o.attempts + 1
		FROM candidates
		WHERE o.id = candidates.id
		RETURNING o.id, o.exchange, o.routing_key, o.payload::text, o.attempts
	`

	rows, err := r.db.Query(ctx, query, limit, staleAfterSeconds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]OutboxMessage, 0, limit)
	for rows.Next() {
		var (
			message OutboxMessage
			payload string
		)
		if err := rows.Scan(&message.ID, &message.Exchange, &message.RoutingKey, &payload, &message.Attempts); err != nil {
			return nil, err
		}
		message.Payload = []byte(payload)
		messages = append(messages, message)
	}
	return messages, rows.Err()
}

func (r *PostgresRepository) MarkOutboxPublished(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE event_outbox
		SET status = 'published',
			published_at = NOW(),
			processing_started_at = NULL,
			last_error = NULL
		WHERE id = $1
	`, id)
	return err
}

func (r *PostgresRepository) MarkOutboxFailed(ctx context.Context, id int64, retryAfterSeconds int, reason string) error {
	if retryAfterSeconds < 1 {
		retryAfterSeconds = 1
	}
	if len(reason) > 2000 {
		reason = reason[:2000]
	}
	_, err := r.db.Exec(ctx, `
		UPDATE event_outbox
		SET status = 'pending',
			next_attempt_at = NOW() + ($2 * INTERVAL '1 second'),
			processing_started_at = NULL,
			last_error = $3
		WHERE id = $1
	`, id, retryAfterSeconds, reason)
	return err
}

// PurgePublishedOutbox deletes published messages older than the retention window.
func (r *PostgresRepository) PurgePublishedOutbox(ctx context.Context, olderThan time.Duration) (int64, error) {
	seconds := int64(olderThan.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	result, err := r.db.Exec(ctx, `
		DELETE FROM event_outbox
		WHERE status = 'published' AND published_at < NOW() - ($1 * INTERVAL '1 second')
	`, seconds)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

func enqueueEventTx(ctx context.Context, tx pgx.Tx, exchange, routingKey string, payload interface{}) error {
	blob, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO event_outbox (exchange, routing_key, payload)
		VALUES ($1, $2, $3::jsonb)
	`, strings.TrimSpace(exchange), strings.TrimSpace(routingKey), string(blob))
	if err != nil {
		return fmt.Errorf("failed to enqueue outbox event: %w", err)
	}
	return nil
}
