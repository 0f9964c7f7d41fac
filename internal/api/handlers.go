/**
 * @description
 * This file contains the HTTP handlers for the fund-transfer service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, net/http: Standard Go libraries.
 * - internal/app, internal/domain: For service logic, models, and custom errors.
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/transfa/fundtransfer-service/internal/app"
	"github.com/transfa/fundtransfer-service/internal/domain"
	"go.uber.org/zap"
)

// Service is the application behaviour the handlers depend on.
type Service interface {
	AllowTransfer(ctx context.Context, requesterID int64) error
	ExecuteTransfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error)
	TransferHistory(ctx context.Context, accountID int64, page domain.HistoryPage) ([]domain.AuditRecord, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
}

// Handlers holds the application service that handlers will use.
type Handlers struct {
	service Service
	tokens  *TokenManager
	logger  *zap.Logger
}

// NewHandlers creates a new instance of Handlers.
func NewHandlers(service Service, tokens *TokenManager, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{service: service, tokens: tokens, logger: logger}
}

type transferRequestBody struct {
	SenderID   int64           `json:"senderId"`
	ReceiverID int64           `json:"receiverId"`
	Amount     json.RawMessage `json:"amount"`
}

// parseAmount reads the raw amount field. An absent or null amount returns
// (nil, false). A value that is not a finite number, whether a non-numeric
// string, a boolean or an object, is reported as malformed so the coordinator
// can reject and audit it.
func parseAmount(raw json.RawMessage) (*decimal.Decimal, bool) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return nil, false
	}
	if strings.HasPrefix(text, `"`) {
		var quoted string
		if err := json.Unmarshal(raw, &quoted); err != nil {
			return nil, true
		}
		text = strings.TrimSpace(quoted)
	}
	amount, err := decimal.NewFromString(text)
	if err != nil {
		return nil, true
	}
	return &amount, false
}

type transferResponse struct {
	Message       string       `json:"message"`
	TransactionID string       `json:"transactionId"`
	NewBalance    domain.Money `json:"newBalance"`
}

// auditFailureResponse reports an attempt whose audit record was lost. The
// outcome fields tell the client what actually happened to the balances.
type auditFailureResponse struct {
	Error         string        `json:"error"`
	TransactionID string        `json:"transactionId"`
	Committed     bool          `json:"committed"`
	NewBalance    *domain.Money `json:"newBalance,omitempty"`
	TransferError string        `json:"transferError,omitempty"`
}

// TransferHandler handles fund transfers from the authenticated account.
func (h *Handlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := GetAccountID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing or invalid Authorization header")
		return
	}

	var body transferRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.Info("transfer rejected",
			zap.String("component", "api"),
			zap.String("endpoint", "transfer"),
			zap.String("outcome", "reject"),
			zap.String("reason", "invalid_json"),
			zap.Error(err),
		)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.AllowTransfer(r.Context(), requesterID); err != nil {
		h.writeRateLimited(w, err, "transfer", "Too many transfer attempts. Please wait and try again.")
		return
	}

	amount, malformed := parseAmount(body.Amount)
	result, err := h.service.ExecuteTransfer(r.Context(), domain.TransferRequest{
		RequesterID:     requesterID,
		SenderID:        body.SenderID,
		ReceiverID:      body.ReceiverID,
		Amount:          amount,
		AmountMalformed: malformed,
	})
	if err != nil {
		var auditErr *domain.AuditWriteError
		if errors.As(err, &auditErr) {
			h.writeAuditFailure(w, auditErr)
			return
		}
		writeError(w, transferErrorStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, transferResponse{
		Message:       "Transfer successful",
		TransactionID: result.TransactionID,
		NewBalance:    result.NewSenderBalance,
	})
}

func (h *Handlers) writeAuditFailure(w http.ResponseWriter, auditErr *domain.AuditWriteError) {
	h.logger.Error("transfer audit record lost",
		zap.String("component", "api"),
		zap.String("endpoint", "transfer"),
		zap.String("outcome", "audit_failed"),
		zap.String("transaction_id", auditErr.TransactionID),
		zap.Bool("committed", auditErr.Committed()),
		zap.Error(auditErr.Cause),
	)

	response := auditFailureResponse{
		Error:         "Audit record could not be written",
		TransactionID: auditErr.TransactionID,
		Committed:     auditErr.Committed(),
	}
	if auditErr.Result != nil {
		balance := auditErr.Result.NewSenderBalance
		response.NewBalance = &balance
	}
	if auditErr.TransferErr != nil {
		response.TransferError = auditErr.TransferErr.Error()
	}
	writeJSON(w, http.StatusInternalServerError, response)
}

// transferErrorStatus maps the transfer error taxonomy onto HTTP status codes.
func transferErrorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) writeRateLimited(w http.ResponseWriter, err error, endpoint, message string) {
	var limitErr *app.RateLimitError
	if !errors.As(err, &limitErr) {
		h.logger.Error("rate limit check failed", zap.String("component", "api"), zap.String("endpoint", endpoint), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.logger.Info("request throttled",
		zap.String("component", "api"),
		zap.String("endpoint", endpoint),
		zap.String("outcome", "rate_limited"),
		zap.Int("retry_after_seconds", limitErr.RetryAfterSeconds),
	)
	w.Header().Set("Retry-After", strconv.Itoa(limitErr.RetryAfterSeconds))
	writeError(w, http.StatusTooManyRequests, message)
}

// writeJSON is a helper for writing JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
