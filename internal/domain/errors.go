package domain

import (
	"errors"
	"fmt"
)

// Transfer failure kinds. Callers classify with errors.Is.
var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrForbidden         = errors.New("forbidden")
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrStorageFailure    = errors.New("storage failure")
	ErrTimeout           = errors.New("lock wait timed out")
	ErrAuditWriteFailed  = errors.New("audit log write failed")
)

// TransferError is a classified transfer failure. Message is safe to return to
// the caller; Cause keeps the underlying error for logs and the audit trail.
type TransferError struct {
	Kind    error
	Message string
	Cause   error
}

func NewTransferError(kind error, message string) *TransferError {
	return &TransferError{Kind: kind, Message: message}
}

func (e *TransferError) Error() string {
	return e.Message
}

func (e *TransferError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// Detail is the message plus the underlying cause, if any.
func (e *TransferError) Detail() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

// AuditWriteError reports that an attempt finished but its audit record could
// not be persisted. Result is set when the balance mutation committed;
// TransferErr is set when the attempt itself failed.
type AuditWriteError struct {
	TransactionID string
	Result        *TransferResult
	TransferErr   error
	Cause         error
}

func (e *AuditWriteError) Error() string {
	outcome := "committed"
	if e.TransferErr != nil {
		outcome = "failed: " + e.TransferErr.Error()
	}
	return fmt.Sprintf("audit write for transaction %s failed (transfer %s): %v", e.TransactionID, outcome, e.Cause)
}

func (e *AuditWriteError) Unwrap() []error {
	errs := []error{ErrAuditWriteFailed, e.Cause}
	if e.TransferErr != nil {
		errs = append(errs, e.TransferErr)
	}
	return errs
}

// Committed reports whether the balance mutation of the attempt was durable.
func (e *AuditWriteError) Committed() bool {
	return e.Result != nil
}
