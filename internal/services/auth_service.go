package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yukikurage/busybee/internal/models"
	"github.com/yukikurage/busybee/internal/repository"
	"github.com/yukikurage/busybee/internal/safety"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrFailedToHashPassword = errors.New("failed to hash password")
)

// AuthService handles registration and credential checks.
type AuthService struct {
	users *repository.UserStore
	cost  int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewAuthService creates a new AuthService. cost is the bcrypt work factor.
func NewAuthService(users *repository.UserStore, cost int) *AuthService {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &AuthService{users: users, cost: cost}
}

// HashPassword returns the bcrypt hash of password.
func (s *AuthService) HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFailedToHashPassword, err)
	}
	return string(hashed), nil
}

// Register creates an enabled TRIAL account.
func (s *AuthService) Register(ctx context.Context, username safety.Username, password safety.Password) (models.User, error) {
	if s.users.Exists(username.String()) {
		return models.User{}, repository.ErrUserExists
	}
	hashed, err := s.HashPassword(password.String())
	if err != nil {
		return models.User{}, err
	}
	return s.users.CreateUser(ctx, username, hashed, []models.Role{models.RoleTrial})
}

// Login verifies credentials and returns the authenticated account. Unknown
// users still pay for one bcrypt comparison.
func (s *AuthService) Login(username, password string) (models.User, error) {
	name, err := safety.NewUsername(username)
	if err != nil {
		s.burnComparison(password)
		return models.User{}, ErrInvalidCredentials
	}

	user, ok := s.users.FindByUsername(name.String())
	if !ok {
		s.burnComparison(password)
		return models.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	if !user.Enabled {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// CurrentUser loads the enabled account behind a session.
func (s *AuthService) CurrentUser(username string) (models.User, bool) {
	user, ok := s.users.FindByUsername(username)
	if !ok || !user.Enabled {
		return models.User{}, false
	}
	return user, true
}

func (s *AuthService) burnComparison(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("busybee-placeholder"), s.cost)
	})
	_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
}
