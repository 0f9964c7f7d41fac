package app

import (
	"context"
	"fmt"

	"github.com/transfa/fundtransfer-service/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// DemoPassword is the password shared by every seeded demo user.
const DemoPassword = "password"

// DemoUsers are the account holders created by SeedDemoUsers.
var DemoUsers = []domain.User{
	{Name: "Alice Smith", Username: "alice", Balance: 500000},
	{Name: "Bob Johnson", Username: "bob", Balance: 300000},
	{Name: "Charlie Brown", Username: "charlie", Balance: 200000},
}

// SeedDemoUsers creates or resets the demo users with DemoPassword.
func (s *Service) SeedDemoUsers(ctx context.Context) ([]domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash demo password: %w", err)
	}

	seeded := make([]domain.User, 0, len(DemoUsers))
	for _, user := range DemoUsers {
		user.PasswordHash = string(hash)
		id, err := s.users.UpsertUser(ctx, user)
		if err != nil {
			return nil, err
		}
		user.ID = id
		seeded = append(seeded, user)
		s.logger.Info("demo user seeded",
			zap.String("component", "seed"),
			zap.Int64("user_id", id),
			zap.String("username", user.Username),
			zap.Stringer("balance", user.Balance),
		)
	}
	return seeded, nil
}
