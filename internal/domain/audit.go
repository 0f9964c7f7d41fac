package domain

import "time"

// AuditStatus is the outcome recorded for one transfer attempt.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "SUCCESS"
	AuditStatusFailed  AuditStatus = "FAILED"
)

// AuditRecord is the immutable trail entry for one transfer attempt.
// Sender, receiver and amount are nil when the attempt was rejected before
// those fields could be read. After-balances are set only on success.
type AuditRecord struct {
	TransactionID        string      `json:"transaction_id"`
	SenderID             *int64      `json:"sender_id"`
	ReceiverID           *int64      `json:"receiver_id"`
	Amount               *Money      `json:"amount"`
	Status               AuditStatus `json:"status"`
	ErrorMessage         *string     `json:"error_message"`
	SenderBalanceAfter   *Money      `json:"sender_balance_after"`
	ReceiverBalanceAfter *Money      `json:"receiver_balance_after"`
	CreatedAt            time.Time   `json:"created_at"`
}

// HistoryPage bounds a history query. A zero Limit returns every record.
type HistoryPage struct {
	Limit  int
	Offset int
}
