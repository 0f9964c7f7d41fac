/**
 * @description
 * This file contains the core application service for the fund-transfer service.
 * The `Service` struct wires the account store, the audit log and the user
 * repository together and exposes the use cases consumed by the HTTP layer:
 * executing transfers, reading audit history, listing account holders,
 * authenticating and seeding demo users.
 *
 * @dependencies
 * - go.uber.org/zap: Structured logging.
 * - internal/domain, internal/store: For domain models and data access.
 */

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/transfa/fundtransfer-service/internal/domain"
	"github.com/transfa/fundtransfer-service/internal/store"
	"go.uber.org/zap"
)

const (
	// UnlimitedHistory as a HistoryPage limit returns every matching record.
	UnlimitedHistory = 0
	MaxHistoryLimit  = 500

	transferRateLimitScope = "transfer"
	loginRateLimitScope    = "login"
	rateLimitWindow        = time.Minute
)

// Service provides the business logic of the fund-transfer service.
type Service struct {
	accounts store.AccountStore
	audit    store.AuditLog
	users    store.UserRepository
	ids      IDGenerator
	logger   *zap.Logger

	rateLimiter                RateLimiter
	transferRateLimitPerMinute int
	loginRateLimitPerMinute    int
}

// NewService creates a new service instance.
func NewService(accounts store.AccountStore, audit store.AuditLog, users store.UserRepository, ids IDGenerator, logger *zap.Logger) *Service {
	if ids == nil {
		ids = UUIDGenerator{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		accounts: accounts,
		audit:    audit,
		users:    users,
		ids:      ids,
		logger:   logger,
	}
}

// SetRateLimiter enables per-requester transfer limits and per-username login
// limits. A non-positive limit disables that scope.
func (s *Service) SetRateLimiter(limiter RateLimiter, transferPerMinute, loginPerMinute int) {
	s.rateLimiter = limiter
	s.transferRateLimitPerMinute = transferPerMinute
	s.loginRateLimitPerMinute = loginPerMinute
}

// TransferHistory returns the audit records in which accountID took part, newest first.
func (s *Service) TransferHistory(ctx context.Context, accountID int64, page domain.HistoryPage) ([]domain.AuditRecord, error) {
	if page.Limit < 0 {
		page.Limit = UnlimitedHistory
	}
	if page.Limit > MaxHistoryLimit {
		page.Limit = MaxHistoryLimit
	}
	if page.Offset < 0 {
		page.Offset = 0
	}

	records, err := s.audit.ByAccount(ctx, accountID, page)
	if err != nil {
		return nil, fmt.Errorf("load audit history for account %d: %w", accountID, err)
	}
	return records, nil
}

// ListUsers returns every account holder.
func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.users.ListUsers(ctx)
}

// GetUser returns one account holder or store.ErrUserNotFound.
func (s *Service) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return s.users.FindUserByID(ctx, id)
}
