package domain

import "github.com/shopspring/decimal"

// TransferRequest is one inbound transfer instruction. RequesterID is the
// authenticated caller. Account identifiers start at 1, so a zero SenderID or
// ReceiverID means the field was absent; a nil Amount likewise.
// AmountMalformed marks an amount that was supplied but is not a finite number,
// such as "abc", "NaN" or a boolean.
type TransferRequest struct {
	RequesterID     int64
	SenderID        int64
	ReceiverID      int64
	Amount          *decimal.Decimal
	AmountMalformed bool
}

// TransferResult is returned for a committed transfer.
type TransferResult struct {
	TransactionID      string
	Amount             Money
	NewSenderBalance   Money
	NewReceiverBalance Money
}
