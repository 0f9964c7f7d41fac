package app

import (
	"context"
	"errors"
	"strings"

	"github.com/transfa/fundtransfer-service/internal/domain"
	"github.com/transfa/fundtransfer-service/internal/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrCredentialsRequired = errors.New("username and password required")
	ErrInvalidCredentials  = errors.New("invalid credentials")
)

// Authenticate verifies a username and password pair and returns the user.
// Unknown usernames and wrong passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrCredentialsRequired
	}

	if err := s.consumeRateLimit(ctx, loginRateLimitScope, username, s.loginRateLimitPerMinute); err != nil {
		return nil, err
	}

	user, err := s.users.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("login rejected",
			zap.String("component", "auth"),
			zap.String("username", username),
			zap.String("reason", "password_mismatch"),
		)
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
