package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/transfa/fundtransfer-service/internal/domain"
	"go.opentelemetry.io/otel/attribute"
)

// PostgresAuditLog implements AuditLog on the append-only audit_logs table.
// Appends run on their own transaction, never on a balance unit of work, so a
// rolled back transfer still leaves its FAILED record behind.
type PostgresAuditLog struct {
	db       *pgxpool.Pool
	exchange string
}

func NewPostgresAuditLog(db *pgxpool.Pool, exchange string) *PostgresAuditLog {
	return &PostgresAuditLog{db: db, exchange: exchange}
}

// Append persists the record and enqueues its outcome event atomically.
func (a *PostgresAuditLog) Append(ctx context.Context, record domain.AuditRecord) error {
	ctx, span := tracer.Start(ctx, "store.audit_append")
	span.SetAttributes(
		attribute.String("transaction.id", record.TransactionID),
		attribute.String("transaction.status", string(record.Status)),
	)
	defer span.End()

	tx, err := a.db.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("begin audit append: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO audit_logs (
			transaction_id, sender_id, receiver_id, amount, status,
			error_message, sender_balance_after, receiver_balance_after
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	err = tx.QueryRow(ctx, query,
		record.TransactionID,
		record.SenderID,
		record.ReceiverID,
		moneyToNullable(record.Amount),
		string(record.Status),
		record.ErrorMessage,
		moneyToNullable(record.SenderBalanceAfter),
		moneyToNullable(record.ReceiverBalanceAfter),
	).Scan(&record.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("insert audit record %s: %w", record.TransactionID, err)
	}

	event := domain.TransferEvent{
		EventID:       uuid.NewString(),
		TransactionID: record.TransactionID,
		Status:        record.Status,
		SenderID:      record.SenderID,
		ReceiverID:    record.ReceiverID,
		Amount:        record.Amount,
		ErrorMessage:  record.ErrorMessage,
		OccurredAt:    record.CreatedAt,
	}
	if err := enqueueEventTx(ctx, tx, a.exchange, event.RoutingKey(), event); err != nil {
		span.RecordError(err)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("commit audit record %s: %w", record.TransactionID, err)
	}
	return nil
}

// ByAccount returns the records where accountID is sender or receiver, most recent first.
func (a *PostgresAuditLog) ByAccount(ctx context.Context, accountID int64, page domain.HistoryPage) ([]domain.AuditRecord, error) {
	var limit interface{}
	if page.Limit > 0 {
		limit = page.Limit
	}
	offset := page.Offset
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT transaction_id, sender_id, receiver_id, amount, status, error_message,
		       sender_balance_after, receiver_balance_after, created_at
		FROM audit_logs
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := a.db.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.AuditRecord, 0)
	for rows.Next() {
		record, err := scanAuditRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanAuditRecord(row pgx.Row) (domain.AuditRecord, error) {
	var (
		record        domain.AuditRecord
		status        string
		amount        *int64
		senderAfter   *int64
		receiverAfter *int64
	)
	err := row.Scan(
		&record.TransactionID, &record.SenderID, &record.ReceiverID, &amount, &status,
		&record.ErrorMessage, &senderAfter, &receiverAfter, &record.CreatedAt,
	)
	if err != nil {
		return domain.AuditRecord{}, err
	}
	record.Status = domain.AuditStatus(status)
	record.Amount = nullableToMoney(amount)
	record.SenderBalanceAfter = nullableToMoney(senderAfter)
	record.ReceiverBalanceAfter = nullableToMoney(receiverAfter)
	return record, nil
}

func moneyToNullable(m *domain.Money) *int64 {
	if m == nil {
		return nil
	}
	v := int64(*m)
	return &v
}

func nullableToMoney(v *int64) *domain.Money {
	if v == nil {
		return nil
	}
	m := domain.Money(*v)
	return &m
}
