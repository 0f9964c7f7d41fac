package app

import (
	"context"
	"errors"

	"github.com/transfa/fundtransfer-service/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/transfa/fundtransfer-service/internal/app")

// ExecuteTransfer runs one transfer attempt end to end. Every call produces one
// transaction id and one audit record, whatever the outcome.
//
// On failure the returned error is a *domain.TransferError. When the audit
// record itself cannot be written the error is a *domain.AuditWriteError that
// still carries the true outcome: the result is returned alongside it if the
// balances were committed.
func (s *Service) ExecuteTransfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error) {
	// Once submitted, an attempt runs to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	transactionID := s.ids.New()

	ctx, span := tracer.Start(ctx, "transfer.execute", trace.WithAttributes(
		attribute.String("transaction.id", transactionID),
		attribute.Int64("transfer.sender_id", req.SenderID),
		attribute.Int64("transfer.receiver_id", req.ReceiverID),
	))
	defer span.End()

	amount, err := validateTransfer(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, s.recordFailure(ctx, transactionID, req, err)
	}

	result, err := s.applyTransfer(ctx, transactionID, req.SenderID, req.ReceiverID, amount)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, s.recordFailure(ctx, transactionID, req, err)
	}

	if err := s.audit.Append(ctx, successRecord(req, result)); err != nil {
		span.RecordError(err)
		s.logger.Error("audit write failed after committed transfer",
			zap.String("component", "coordinator"),
			zap.String("transaction_id", transactionID),
			zap.Int64("sender_id", req.SenderID),
			zap.Int64("receiver_id", req.ReceiverID),
			zap.Error(err),
		)
		return result, &domain.AuditWriteError{TransactionID: transactionID, Result: result, Cause: err}
	}

	s.logger.Info("transfer completed",
		zap.String("component", "coordinator"),
		zap.String("transaction_id", transactionID),
		zap.Int64("sender_id", req.SenderID),
		zap.Int64("receiver_id", req.ReceiverID),
		zap.Stringer("amount", amount),
		zap.Stringer("new_sender_balance", result.NewSenderBalance),
	)
	return result, nil
}

// validateTransfer checks the request in a fixed order and returns the amount
// in minor units.
func validateTransfer(req domain.TransferRequest) (domain.Money, error) {
	if req.RequesterID != req.SenderID {
		return 0, domain.NewTransferError(domain.ErrForbidden, "Cannot transfer on behalf of another account")
	}
	if req.SenderID == 0 || req.ReceiverID == 0 || (req.Amount == nil && !req.AmountMalformed) {
		return 0, domain.NewTransferError(domain.ErrInvalidRequest, "senderId, receiverId, and amount required")
	}
	if req.AmountMalformed || req.Amount == nil || !req.Amount.IsPositive() {
		return 0, domain.NewTransferError(domain.ErrInvalidRequest, "Amount must be a positive number")
	}
	amount, err := domain.MoneyFromDecimal(*req.Amount)
	if err != nil {
		message := "Amount is out of range"
		if errors.Is(err, domain.ErrAmountPrecision) {
			message = "Amount must have at most two decimal places"
		}
		return 0, &domain.TransferError{Kind: domain.ErrInvalidRequest, Message: message, Cause: err}
	}
	if req.SenderID == req.ReceiverID {
		return 0, domain.NewTransferError(domain.ErrInvalidRequest, "Cannot send money to yourself")
	}
	return amount, nil
}

// applyTransfer moves amount inside one unit of work. The unit is aborted on
// every path that does not commit.
func (s *Service) applyTransfer(ctx context.Context, transactionID string, senderID, receiverID int64, amount domain.Money) (*domain.TransferResult, error) {
	uow, err := s.accounts.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if abortErr := uow.Abort(ctx); abortErr != nil {
			s.logger.Warn("unit of work abort failed",
				zap.String("component", "coordinator"),
				zap.String("transaction_id", transactionID),
				zap.Error(abortErr),
			)
		}
	}()

	balances, err := uow.LockForUpdate(ctx, []int64{senderID, receiverID})
	if err != nil {
		return nil, err
	}

	senderBalance, receiverBalance := balances[senderID], balances[receiverID]
	if senderBalance < amount {
		return nil, domain.NewTransferError(domain.ErrInsufficientFunds, "Insufficient balance")
	}

	newSenderBalance := senderBalance - amount
	newReceiverBalance := receiverBalance + amount
	if newReceiverBalance < receiverBalance {
		return nil, domain.NewTransferError(domain.ErrInvalidRequest, "Amount is out of range")
	}

	if err := uow.WriteBalance(ctx, senderID, newSenderBalance); err != nil {
		return nil, err
	}
	if err := uow.WriteBalance(ctx, receiverID, newReceiverBalance); err != nil {
		return nil, err
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}

	return &domain.TransferResult{
		TransactionID:      transactionID,
		Amount:             amount,
		NewSenderBalance:   newSenderBalance,
		NewReceiverBalance: newReceiverBalance,
	}, nil
}

// recordFailure writes the FAILED record for an attempt and returns the error
// to surface to the caller.
func (s *Service) recordFailure(ctx context.Context, transactionID string, req domain.TransferRequest, cause error) error {
	transferErr := classifyTransferError(cause)
	record := failedRecord(transactionID, req, transferErr)

	fields := []zap.Field{
		zap.String("component", "coordinator"),
		zap.String("transaction_id", transactionID),
		zap.Int64("requester_id", req.RequesterID),
		zap.Int64("sender_id", req.SenderID),
		zap.Int64("receiver_id", req.ReceiverID),
		zap.String("reason", transferErr.Detail()),
	}
	if errors.Is(transferErr, domain.ErrStorageFailure) || errors.Is(transferErr, domain.ErrTimeout) {
		s.logger.Error("transfer failed", fields...)
	} else {
		s.logger.Info("transfer rejected", fields...)
	}

	if err := s.audit.Append(ctx, record); err != nil {
		s.logger.Error("audit write failed after rejected transfer",
			zap.String("component", "coordinator"),
			zap.String("transaction_id", transactionID),
			zap.Error(err),
		)
		return &domain.AuditWriteError{TransactionID: transactionID, TransferErr: transferErr, Cause: err}
	}
	return transferErr
}

// classifyTransferError maps store and validation errors onto the transfer
// error taxonomy. Anything unrecognised is a storage failure.
func classifyTransferError(err error) *domain.TransferError {
	var transferErr *domain.TransferError
	if errors.As(err, &transferErr) {
		return transferErr
	}

	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return &domain.TransferError{Kind: domain.ErrAccountNotFound, Message: "Invalid sender or receiver", Cause: err}
	case errors.Is(err, domain.ErrTimeout):
		return &domain.TransferError{Kind: domain.ErrTimeout, Message: "Timed out waiting for account locks", Cause: err}
	default:
		return &domain.TransferError{Kind: domain.ErrStorageFailure, Message: "Transfer could not be completed", Cause: err}
	}
}

func successRecord(req domain.TransferRequest, result *domain.TransferResult) domain.AuditRecord {
	amount := result.Amount
	senderAfter := result.NewSenderBalance
	receiverAfter := result.NewReceiverBalance
	return domain.AuditRecord{
		TransactionID:        result.TransactionID,
		SenderID:             optionalID(req.SenderID),
		ReceiverID:           optionalID(req.ReceiverID),
		Amount:               &amount,
		Status:               domain.AuditStatusSuccess,
		SenderBalanceAfter:   &senderAfter,
		ReceiverBalanceAfter: &receiverAfter,
	}
}

func failedRecord(transactionID string, req domain.TransferRequest, transferErr *domain.TransferError) domain.AuditRecord {
	message := transferErr.Detail()
	record := domain.AuditRecord{
		TransactionID: transactionID,
		SenderID:      optionalID(req.SenderID),
		ReceiverID:    optionalID(req.ReceiverID),
		Status:        domain.AuditStatusFailed,
		ErrorMessage:  &message,
	}
	if req.Amount != nil && !req.AmountMalformed {
		if amount, err := domain.MoneyFromDecimal(*req.Amount); err == nil {
			record.Amount = &amount
		}
	}
	return record
}

func optionalID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}
