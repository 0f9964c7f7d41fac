package domain

import "time"

const (
	RoutingKeyTransferSucceeded = "transfer.succeeded"
	RoutingKeyTransferFailed    = "transfer.failed"
)

// TransferEvent is published for every audited attempt through the outbox.
type TransferEvent struct {
	EventID       string      `json:"event_id"`
	TransactionID string      `json:"transaction_id"`
	Status        AuditStatus `json:"status"`
	SenderID      *int64      `json:"sender_id,omitempty"`
	ReceiverID    *int64      `json:"receiver_id,omitempty"`
	Amount        *Money      `json:"amount,omitempty"`
	ErrorMessage  *string     `json:"error_message,omitempty"`
	OccurredAt    time.Time   `json:"occurred_at"`
}

// RoutingKey selects the topic routing key for the event outcome.
func (e TransferEvent) RoutingKey() string {
	if e.Status == AuditStatusSuccess {
		return RoutingKeyTransferSucceeded
	}
	return RoutingKeyTransferFailed
}
