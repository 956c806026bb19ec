package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/yukikurage/busybee/internal/models"
)

// ErrPersist wraps failures of the persistence collaborator. The in-memory
// mutation that triggered the write has already been applied.
var ErrPersist = errors.New("repository: persist failed")

// TaskPersister stores a snapshot of every task, in store order.
type TaskPersister interface {
	SaveTasks(ctx context.Context, tasks []models.Task) error
}

// UserPersister stores a snapshot of every account.
type UserPersister interface {
	SaveUsers(ctx context.Context, users []models.User) error
}

// flusher writes store snapshots outside the store lock. Writes are
// serialized so a slower, older snapshot can never overwrite a newer one.
type flusher[T any] struct {
	mu    sync.Mutex
	saved atomic.Uint64
	save  func(context.Context, []T) error
}

// flush saves the snapshot returned by take unless its version has already
// been written. The request context's cancellation does not abort the write.
func (f *flusher[T]) flush(ctx context.Context, take func() ([]T, uint64)) error {
	if f.save == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	items, version := take()
	if version == f.saved.Load() {
		return nil
	}
	if err := f.save(context.WithoutCancel(ctx), items); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	f.saved.Store(version)
	return nil
}

func (f *flusher[T]) dirty(version uint64) bool {
	return f.save != nil && version != f.saved.Load()
}

// markSaved records that version is already durable, e.g. after a load.
func (f *flusher[T]) markSaved(version uint64) {
	f.saved.Store(version)
}
