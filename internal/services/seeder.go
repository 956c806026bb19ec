package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/yukikurage/busybee/internal/models"
	"github.com/yukikurage/busybee/internal/repository"
	"github.com/yukikurage/busybee/internal/safety"
	"github.com/yukikurage/busybee/internal/utils"
)

const seedPasswordLength = 8

type seedAccount struct {
	username string
	roles    []models.Role
}

var seedAccounts = []seedAccount{
	{"Yariv", []models.Role{models.RoleCreator}},
	{"Or", []models.Role{models.RoleTrial}},
	{"Dor", []models.Role{models.RoleAdmin}},
}

// Seeder creates the bootstrap accounts on startup.
type Seeder struct {
	users  *repository.UserStore
	auth   *AuthService
	out    io.Writer
	logger *slog.Logger
}

// NewSeeder returns a Seeder that prints generated credentials to out.
func NewSeeder(users *repository.UserStore, auth *AuthService, out io.Writer, logger *slog.Logger) *Seeder {
	return &Seeder{users: users, auth: auth, out: out, logger: logger}
}

// Seed creates each bootstrap account that does not exist yet with a fresh
// random password. Passwords are written to out once and never logged.
func (s *Seeder) Seed(ctx context.Context) error {
	for _, acct := range seedAccounts {
		if s.users.Exists(acct.username) {
			s.logger.InfoContext(ctx, "seed account exists, skipping", "user", acct.username)
			continue
		}
		name, err := safety.NewUsername(acct.username)
		if err != nil {
			return err
		}
		password, err := utils.GeneratePassword(seedPasswordLength)
		if err != nil {
			return err
		}
		hashed, err := s.auth.HashPassword(password)
		if err != nil {
			return err
		}
		if _, err := s.users.CreateUser(ctx, name, hashed, acct.roles); err != nil {
			return fmt.Errorf("failed to seed %s: %w", acct.username, err)
		}
		fmt.Fprintf(s.out, "User created: %s\nPassword: %s\n", acct.username, password)
	}
	return nil
}
