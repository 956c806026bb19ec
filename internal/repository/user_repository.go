package repository

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/yukikurage/busybee/internal/models"
	"github.com/yukikurage/busybee/internal/safety"
)

var ErrUserExists = errors.New("repository: user already exists")

// UserStore maps usernames to accounts.
type UserStore struct {
	mu      sync.RWMutex
	users   map[string]models.User
	version uint64

	flusher flusher[models.User]
}

type UserStoreOption func(*UserStore)

func WithUserPersister(p UserPersister) UserStoreOption {
	return func(s *UserStore) { s.flusher.save = p.SaveUsers }
}

func NewUserStore(opts ...UserStoreOption) *UserStore {
	s := &UserStore{users: make(map[string]models.User)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the store contents with accounts read from persistence.
func (s *UserStore) Load(users []models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[string]models.User, len(users))
	for _, u := range users {
		s.users[u.Username] = u.Clone()
	}
	s.version++
	s.flusher.markSaved(s.version)
}

func (s *UserStore) FindByUsername(username string) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return models.User{}, false
	}
	return u.Clone(), true
}

func (s *UserStore) Exists(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[username]
	return ok
}

// CreateUser inserts an enabled account unless the username is taken.
func (s *UserStore) CreateUser(ctx context.Context, username safety.Username, hashedPassword string, roles []models.Role) (models.User, error) {
	user := models.User{
		Username:       username.String(),
		HashedPassword: hashedPassword,
		Roles:          slices.Clone(roles),
		Enabled:        true,
	}

	s.mu.Lock()
	if _, ok := s.users[user.Username]; ok {
		s.mu.Unlock()
		return models.User{}, ErrUserExists
	}
	s.users[user.Username] = user
	s.version++
	s.mu.Unlock()

	return user.Clone(), s.Flush(ctx)
}

// All returns every account ordered by username.
func (s *UserStore) All() []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allLocked()
}

func (s *UserStore) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flusher.dirty(s.version)
}

func (s *UserStore) Flush(ctx context.Context) error {
	return s.flusher.flush(ctx, func() ([]models.User, uint64) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.allLocked(), s.version
	})
}

func (s *UserStore) allLocked() []models.User {
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.Clone())
	}
	slices.SortFunc(out, func(a, b models.User) int { return strings.Compare(a.Username, b.Username) })
	return out
}
