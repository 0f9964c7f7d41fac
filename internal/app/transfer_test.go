package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transfa/fundtransfer-service/internal/domain"
)

func amountOf(value string) *decimal.Decimal {
	d := decimal.RequireFromString(value)
	return &d
}

func newTransferService(accounts *memoryAccountStore, audit *recordingAuditLog) *Service {
	return NewService(accounts, audit, nil, &sequenceIDs{}, nil)
}

func TestExecuteTransferMovesFundsAndAuditsSuccess(t *testing.T) {
	accounts := newMemoryAccountStore(map[int64]domain.Money{1: 10000, 2: 5000})
	audit := &recordingAuditLog{}
	svc := newTransferService(accounts, audit)

	result, err := svc.ExecuteTransfer(context.Background(), domain.TransferRequest{
		RequesterID: 1, SenderID: 1, ReceiverID: 2, Amount: amountOf("30"),
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "tx-1", result.TransactionID)
	assert.Equal(t, domain.Money(7000), result.NewSenderBalance)
	assert.Equal(t, domain.Money(8000), result.NewReceiverBalance)
	assert.Equal(t, domain.Money(7000), accounts.balance(1))
	assert.Equal(t, domain.Money(8000), accounts.balance(2))

	records := audit.byTransactionID("tx-1")
	require.Len(t, records, 1)
	record := records[0]
	assert.Equal(t, domain.AuditStatusSuccess, record.Status)
	assert.Nil(t, record.ErrorMessage)
	require.NotNil(t, record.Amount)
	assert.Equal(t, domain.Money(3000), *record.Amount)
	require.NotNil(t, record.SenderBalanceAfter)
	require.NotNil(t, record.ReceiverBalanceAfter)
	assert.Equal(t, domain.Money(7000), *record.SenderBalanceAfter)
	assert.Equal(t, domain.Money(8000), *record.ReceiverBalanceAfter)
}

func TestExecuteTransferValidation(t *testing.T) {
	tests := []struct {
		name        string
		req         domain.TransferRequest
		wantKind    error
		wantMessage string
	}{
		{
			name:        "requester is not the sender",
			req:         domain.TransferRequest{RequesterID: 2, SenderID: 1, ReceiverID: 2, Amount: amountOf("10")},
			wantKind:    domain.ErrForbidden,
			wantMessage: "Cannot transfer on behalf of another account",
		},
		{
			name:        "forbidden wins over missing fields",
			req:         domain.TransferRequest{RequesterID: 2, SenderID: 1},
			wantKind:    domain.ErrForbidden,
			wantMessage: "Cannot transfer on behalf of another account",
		},
		{
			name:        "missing receiver",
			req:         domain.TransferRequest{RequesterID: 1, SenderID: 1, Amount: amountOf("10")},
			wantKind:    domain.ErrInvalidRequest,
			wantMessage: "senderId, receiverId, and amount required",
		},
		{
			name:        "missing amount",
			req:         domain.TransferRequest{RequesterID: 1, SenderID: 1, ReceiverID: 2},
			wantKind:    domain.ErrInvalidRequest,
			wantMessage: "senderId, receiverId, and amount required",
		},
		{
			name:        "zero amount",
			req:         domain.TransferRequest{RequesterID: 1, SenderID: 1, ReceiverID: 2, Amount: amountOf("0")},
			wantKind:    domain.ErrInvalidRequest,
			wantMessage: "Amount must be a positive number",
		},
		{
			name:        "negative amount",
			req:         domain.TransferRequest{RequesterID: 1, SenderID: 1, ReceiverID: 2, Amount: amountOf("-5")},
			wantKind:    domain.ErrInvalidRequest,
			wantMessage: "Amount must be a positive number",
		},
		{
			name:        "sub-cent amount",
			req:         domain.TransferRequest{RequesterID: 1, SenderID: 1, ReceiverID: 2, Amount: amountOf("0.001")},
			wantKind:    domain.ErrInvalidRequest,
			wantMessage: "Amount must have at most two decimal places",
		},
		{
			name:        "amount beyond minor unit range",
			req:         domain.TransferRequest{RequesterID: 1, SenderID: 1, ReceiverID: 2, Amount: amountOf("1e20")},
			wantKind:    domain.ErrInvalidRequest,
			wantMessage: "Amount is out of range",
		},
		{
			name:        "non-numeric amount",
			req:         domain.TransferRequest{RequesterID: 1, SenderID: 1, ReceiverID: 2, AmountMalformed: true},
			wantKind:    domain.ErrInvalidRequest,
			wantMessage: "Amount must be a positive number",
		},
		{
			name:        "forbidden wins over non-numeric amount",
			req:         domain.TransferRequest{RequesterID: 2, SenderID: 1, ReceiverID: 2, AmountMalformed: true},
			wantKind:    domain.ErrForbidden,
			wantMessage: "Cannot transfer on behalf of another account",
		},
		{
			name:        "missing receiver wins over non-numeric amount",
			req:         domain.TransferRequest{RequesterID: 1, SenderID: 1, AmountMalformed: true},
			wantKind:    domain.ErrInvalidRequest,
			wantMessage: "senderId, receiverId, and amount required",
		},
		{
			name:        "amount with extreme negative exponent",
			req:         domain.TransferRequest{RequesterID: 1, SenderID: 1, ReceiverID: 2, Amount: amountOf("1e-50000000")},
			wantKind:    domain.ErrInvalidRequest,
			wantMessage: "Amount must have at most two decimal places",
		},
		{
			name:        "self transfer",
			req:         domain.TransferRequest{RequesterID: 1, SenderID: 1, ReceiverID: 1, Amount: amountOf("10")},
			wantKind:    domain.ErrInvalidRequest,
			wantMessage: "Cannot send money to yourself",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			accounts := newMemoryAccountStore(map[int64]domain.Money{1: 10000, 2: 5000})
			audit := &recordingAuditLog{}
			svc := newTransferService(accounts, audit)

			result, err := svc.ExecuteTransfer(context.Background(), tc.req)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, tc.wantKind)
			assert.Equal(t, tc.wantMessage, err.Error())

			assert.Zero(t, accounts.beginCount(), "validation failures must not touch the account store")
			assert.Equal(t, domain.Money(10000), accounts.balance(1))
			assert.Equal(t, domain.Money(5000), accounts.balance(2))

			records := audit.all()
			require.Len(t, records, 1)
			assert.Equal(t, "tx-1", records[0].TransactionID)
			assert.Equal(t, domain.AuditStatusFailed, records[0].Status)
			require.NotNil(t, records[0].ErrorMessage)
			assert.Contains(t, *records[0].ErrorMessage, tc.wantMessage)
			assert.Nil(t, records[0].SenderBalanceAfter)
			assert.Nil(t, records[0].ReceiverBalanceAfter)
		})
	}
}

func TestExecuteTransferMissingFieldsAuditedAsNull(t *testing.T) {
	accounts := newMemoryAccountStore(map[int64]domain.Money{1: 10000})
	audit := &recordingAuditLog{}
	svc := newTransferService(accounts, audit)

	_, err := svc.ExecuteTransfer(context.Background(), domain.TransferRequest{RequesterID: 1, SenderID: 1})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)

	records := audit.all()
	require.Len(t, records, 1)
	require.NotNil(t, records[0].SenderID)
	assert.Equal(t, int64(1), *records[0].SenderID)
	assert.Nil(t, records[0].ReceiverID)
	assert.Nil(t, records[0].Amount)
}

func TestExecuteTransferMalformedAmountAuditedAsNull(t *testing.T) {
	accounts := newMemoryAccountStore(map[int64]domain.Money{1: 10000, 2: 5000})
	audit := &recordingAuditLog{}
	svc := newTransferService(accounts, audit)

	_, err := svc.ExecuteTransfer(context.Background(), domain.TransferRequest{
		RequesterID:     1,
		SenderID:        1,
		ReceiverID:      2,
		AmountMalformed: true,
	})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)

	records := audit.all()
	require.Len(t, records, 1)
	assert.Equal(t, "tx-1", records[0].TransactionID)
	assert.Equal(t, domain.AuditStatusFailed, records[0].Status)
	assert.Nil(t, records[0].Amount)
	require.NotNil(t, records[0].ReceiverID)
	assert.Equal(t, int64(2), *records[0].ReceiverID)
}

func TestExecuteTransferInsufficientFundsLeavesBalances(t *testing.T) {
	accounts := newMemoryAccountStore(map[int64]domain.Money{1: 1000, 2: 5000})
	audit := &recordingAuditLog{}
	svc := newTransferService(accounts, audit)

	result, err := svc.ExecuteTransfer(context.Background(), domain.TransferRequest{
		RequesterID: 1, SenderID: 1, ReceiverID: 2, Amount: amountOf("50"),
	})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, "Insufficient balance", err.Error())

	assert.Equal(t, domain.Money(1000), accounts.balance(1))
	assert.Equal(t, domain.Money(5000), accounts.balance(2))

	records := audit.all()
	require.Len(t, records, 1)
	assert.Equal(t, domain.AuditStatusFailed, records[0].Status)
	require.NotNil(t, records[0].Amount)
	assert.Equal(t, domain.Money(5000), *records[0].Amount)
	assert.Nil(t, records[0].SenderBalanceAfter)
}

func TestExecuteTransferExactBalanceDrainsSender(t *testing.T) {
	accounts := newMemoryAccountStore(map[int64]domain.Money{1: 2500, 2: 0})
	svc := newTransferService(accounts, &recordingAuditLog{})

	result, err := svc.ExecuteTransfer(context.Background(), domain.TransferRequest{
		RequesterID: 1, SenderID: 1, ReceiverID: 2, Amount: amountOf("25.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Money(0), result.NewSenderBalance)
	assert.Equal(t, domain.Money(2500), accounts.balance(2))
}

func TestExecuteTransferUnknownAccount(t *testing.T) {
	accounts := newMemoryAccountStore(map[int64]domain.Money{1: 10000})
	audit := &recordingAuditLog{}
	svc := newTransferService(accounts, audit)

	_, err := svc.ExecuteTransfer(context.Background(), domain.TransferRequest{
		RequesterID: 1, SenderID: 1, ReceiverID: 99, Amount: amountOf("10"),
	})
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.Equal(t, "Invalid sender or receiver", err.Error())
	assert.Equal(t, domain.Money(10000), accounts.balance(1))

	records := audit.all()
	require.Len(t, records, 1)
	assert.Equal(t, domain.AuditStatusFailed, records[0].Status)
}

func TestExecuteTransferLocksInAscendingOrder(t *testing.T) {
	accounts := newMemoryAccountStore(map[int64]domain.Money{2: 10000, 5: 10000})
	svc := newTransferService(accounts, &recordingAuditLog{})

	_, err := svc.ExecuteTransfer(context.Background(), domain.TransferRequest{
		RequesterID: 5, SenderID: 5, ReceiverID: 2, Amount: amountOf("1"),
	})
	require.NoError(t, err)
	require.Len(t, accounts.lockOrder, 1)
	assert.Equal(t, []int64{2, 5}, accounts.lockOrder[0])
}

func TestExecuteTransferStorageFailure(t *testing.T) {
	accounts := newMemoryAccountStore(map[int64]domain.Money{1: 10000, 2: 5000})
	accounts.commitErr = errors.New("connection reset")
	audit := &recordingAuditLog{}
	svc := newTransferService(accounts, audit)

	result, err := svc.ExecuteTransfer(context.Background(), domain.TransferRequest{
		RequesterID: 1, SenderID: 1, ReceiverID: 2, Amount: amountOf("10"),
	})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrStorageFailure)
	assert.Equal(t, domain.Money(10000), accounts.balance(1))
	assert.Equal(t, domain.Money(5000), accounts.balance(2))

	records := audit.all()
	require.Len(t, records, 1)
	require.NotNil(t, records[0].ErrorMessage)
	assert.Contains(t, *records[0].ErrorMessage, "connection reset")
}

func TestExecuteTransferBeginFailure(t *testing.T) {
	accounts := newMemoryAccountStore(map[int64]domain.Money{1: 10000, 2: 5000})
	accounts.beginErr = errors.New("pool exhausted")
	audit := &recordingAuditLog{}
	svc := newTransferService(accounts, audit)

	_, err := svc.ExecuteTransfer(context.Background(), domain.TransferRequest{
		RequesterID: 1, SenderID: 1, ReceiverID: 2, Amount: amountOf("10"),
	})
	require.ErrorIs(t, err, domain.ErrStorageFailure)
	assert.Len(t, audit.all(), 1)
}

func TestExecuteTransferLockTimeout(t *testing.T) {
	accounts := newMemoryAccountStore(map[int64]domain.Money{1: 10000, 2: 5000})
	accounts.lockTimeout = 20 * time.Millisecond
	audit := &recordingAuditLog{}
	svc := newTransferService(accounts, audit)

	// Hold account 2 from another unit of work.
	holder, err := accounts.Begin(context.Background())
	require.NoError(t, err)
	_, err = holder.LockForUpdate(context.Background(), []int64{2})
	require.NoError(t, err)
	defer holder.Abort(context.Background())

	_, err = svc.ExecuteTransfer(context.Background(), domain.TransferRequest{
		RequesterID: 1, SenderID: 1, ReceiverID: 2, Amount: amountOf("10"),
	})
	require.ErrorIs(t, err, domain.ErrTimeout)
	assert.Equal(t, domain.Money(10000), accounts.balance(1))

	records := audit.all()
	require.Len(t, records, 1)
	assert.Equal(t, domain.AuditStatusFailed, records[0].Status)

	// The failed attempt released account 1.
	other, err := accounts.Begin(context.Background())
	require.NoError(t, err)
	_, err = other.LockForUpdate(context.Background(), []int64{1})
	require.NoError(t, err)
	require.NoError(t, other.Abort(context.Background()))
}

func TestExecuteTransferAuditFailureAfterCommit(t *testing.T) {
	accounts := newMemoryAccountStore(map[int64]domain.Money{1: 10000, 2: 5000})
	audit := &recordingAuditLog{appendErr: errors.New("disk full")}
	svc := newTransferService(accounts, audit)

	result, err := svc.ExecuteTransfer(context.Background(), domain.TransferRequest{
		RequesterID: 1, SenderID: 1, ReceiverID: 2, Amount: amountOf("30"),
	})
	require.Error(t, err)
	require.NotNil(t, result, "a committed transfer is still reported")
	assert.Equal(t, domain.Money(7000), result.NewSenderBalance)
	assert.Equal(t, domain.Money(7000), accounts.balance(1))

	var auditErr *domain.AuditWriteError
	require.ErrorAs(t, err, &auditErr)
	assert.True(t, auditErr.Committed())
	assert.Equal(t, result.TransactionID, auditErr.TransactionID)
	assert.ErrorIs(t, err, domain.ErrAuditWriteFailed)
	assert.NotErrorIs(t, err, domain.ErrStorageFailure)
}

func TestExecuteTransferAuditFailureAfterRejection(t *testing.T) {
	accounts := newMemoryAccountStore(map[int64]domain.Money{1: 1000, 2: 5000})
	audit := &recordingAuditLog{appendErr: errors.New("disk full")}
	svc := newTransferService(accounts, audit)

	result, err := svc.ExecuteTransfer(context.Background(), domain.TransferRequest{
		RequesterID: 1, SenderID: 1, ReceiverID: 2, Amount: amountOf("50"),
	})
	require.Error(t, err)
	assert.Nil(t, result)

	var auditErr *domain.AuditWriteError
	require.ErrorAs(t, err, &auditErr)
	assert.False(t, auditErr.Committed())
	assert.ErrorIs(t, err, domain.ErrAuditWriteFailed)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, domain.Money(1000), accounts.balance(1))
}

func TestExecuteTransferDoesNotDeduplicate(t *testing.T) {
	accounts := newMemoryAccountStore(map[int64]domain.Money{1: 10000, 2: 5000})
	audit := &recordingAuditLog{}
	svc := newTransferService(accounts, audit)
	req := domain.TransferRequest{RequesterID: 1, SenderID: 1, ReceiverID: 2, Amount: amountOf("10")}

	first, err := svc.ExecuteTransfer(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.ExecuteTransfer(context.Background(), req)
	require.NoError(t, err)

	assert.NotEqual(t, first.TransactionID, second.TransactionID)
	assert.Equal(t, domain.Money(8000), accounts.balance(1))
	assert.Len(t, audit.all(), 2)
}

func TestExecuteTransferIgnoresCallerCancellation(t *testing.T) {
	accounts := newMemoryAccountStore(map[int64]domain.Money{1: 10000, 2: 5000})
	audit := &recordingAuditLog{}
	svc := newTransferService(accounts, audit)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := svc.ExecuteTransfer(ctx, domain.TransferRequest{
		RequesterID: 1, SenderID: 1, ReceiverID: 2, Amount: amountOf("10"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Money(9000), result.NewSenderBalance)
	assert.Len(t, audit.all(), 1)
}

func TestUUIDGeneratorIssuesDistinctIDs(t *testing.T) {
	gen := UUIDGenerator{}
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := gen.New()
		assert.Len(t, id, 36)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}
