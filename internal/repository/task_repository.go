package repository

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yukikurage/busybee/internal/models"
	"github.com/yukikurage/busybee/internal/safety"
)

var (
	ErrTaskNotFound       = errors.New("repository: task not found")
	ErrTaskNameTaken      = errors.New("repository: task name already exists")
	ErrTaskDone           = errors.New("repository: task already done")
	ErrCommentNotFound    = errors.New("repository: comment not found")
	ErrCommentMedia       = errors.New("repository: comment has both image and attachment")
	ErrDueTimeWithoutDate = errors.New("repository: due time set without due date")
	ErrOpenTaskExists     = errors.New("repository: creator already has an open task")
)

// NewTask carries the validated fields of a task about to be created.
type NewTask struct {
	Name             safety.TaskName
	Description      safety.TaskDescription
	CreatedBy        safety.Username
	ResponsibilityOf []safety.Username
	DueDate          *safety.DueDate
	DueTime          *safety.DueTime

	// SingleOpenTask makes Add fail with ErrOpenTaskExists while the
	// creator has a task that is not done.
	SingleOpenTask bool
}

// NewComment carries the validated fields of a comment. Image and
// Attachment are stored file handles; at most one may be set.
type NewComment struct {
	Text       safety.CommentText
	Image      string
	Attachment string
	CreatedBy  safety.Username
}

// TaskStore is the process-wide ordered task list. Mutators run under one
// exclusive lock; readers receive deep copies. Persistence runs after the
// lock is released.
type TaskStore struct {
	mu      sync.RWMutex
	tasks   []models.Task
	version uint64

	flusher flusher[models.Task]
	now     func() time.Time
	newID   func() uuid.UUID
}

type TaskStoreOption func(*TaskStore)

func WithTaskPersister(p TaskPersister) TaskStoreOption {
	return func(s *TaskStore) { s.flusher.save = p.SaveTasks }
}

func WithClock(now func() time.Time) TaskStoreOption {
	return func(s *TaskStore) { s.now = now }
}

func NewTaskStore(opts ...TaskStoreOption) *TaskStore {
	s := &TaskStore{now: time.Now, newID: uuid.New}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the store contents with tasks read from persistence.
func (s *TaskStore) Load(tasks []models.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = cloneTasks(tasks)
	s.version++
	s.flusher.markSaved(s.version)
}

// All returns every task in insertion order.
func (s *TaskStore) All() []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTasks(s.tasks)
}

func (s *TaskStore) Find(id uuid.UUID) (models.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.tasks[i].Clone(), true
	}
	return models.Task{}, false
}

// NameExists compares trimmed names case-insensitively.
func (s *TaskStore) NameExists(name safety.TaskName) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nameExistsLocked(name.String())
}

// Add appends a task. The uniqueness check, the open-task check and the
// append happen under the same lock.
func (s *TaskStore) Add(ctx context.Context, in NewTask) (models.Task, error) {
	if in.DueTime != nil && in.DueDate == nil {
		return models.Task{}, ErrDueTimeWithoutDate
	}

	task := models.Task{
		ID:               s.newID(),
		Name:             in.Name.String(),
		Description:      in.Description.String(),
		CreatedBy:        in.CreatedBy.String(),
		ResponsibilityOf: make([]string, 0, len(in.ResponsibilityOf)),
		CreatedAt:        s.now().UTC(),
	}
	for _, u := range in.ResponsibilityOf {
		task.ResponsibilityOf = append(task.ResponsibilityOf, u.String())
	}
	if in.DueDate != nil {
		d := in.DueDate.Time()
		task.DueDate = &d
	}
	if in.DueTime != nil {
		t := in.DueTime.Time()
		task.DueTime = &t
	}

	s.mu.Lock()
	if s.nameExistsLocked(task.Name) {
		s.mu.Unlock()
		return models.Task{}, ErrTaskNameTaken
	}
	if in.SingleOpenTask && s.hasOpenTaskLocked(task.CreatedBy) {
		s.mu.Unlock()
		return models.Task{}, ErrOpenTaskExists
	}
	s.tasks = append(s.tasks, task)
	s.version++
	s.mu.Unlock()

	return task.Clone(), s.Flush(ctx)
}

// MarkDone sets Done on the task. alreadyDone reports whether it was set
// before the call, in which case nothing changes.
func (s *TaskStore) MarkDone(ctx context.Context, id uuid.UUID) (alreadyDone bool, err error) {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return false, ErrTaskNotFound
	}
	if s.tasks[i].Done {
		s.mu.Unlock()
		return true, nil
	}
	updated := s.tasks[i].Clone()
	updated.Done = true
	s.tasks[i] = updated
	s.version++
	s.mu.Unlock()

	return false, s.Flush(ctx)
}

// AddComment appends a comment to the task, or inserts it directly after
// the comment with id after when one is given.
func (s *TaskStore) AddComment(ctx context.Context, taskID uuid.UUID, in NewComment, after *uuid.UUID) (models.Comment, error) {
	if in.Image != "" && in.Attachment != "" {
		return models.Comment{}, ErrCommentMedia
	}
	comment := models.Comment{
		ID:         s.newID(),
		Text:       in.Text.String(),
		Image:      in.Image,
		Attachment: in.Attachment,
		CreatedBy:  in.CreatedBy.String(),
		CreatedAt:  s.now().UTC(),
	}

	s.mu.Lock()
	i := s.indexLocked(taskID)
	if i < 0 {
		s.mu.Unlock()
		return models.Comment{}, ErrTaskNotFound
	}
	if s.tasks[i].Done {
		s.mu.Unlock()
		return models.Comment{}, ErrTaskDone
	}
	updated := s.tasks[i].Clone()
	if after == nil {
		updated.Comments = append(updated.Comments, comment)
	} else {
		at := updated.CommentIndex(*after)
		if at < 0 {
			s.mu.Unlock()
			return models.Comment{}, ErrCommentNotFound
		}
		updated.Comments = slices.Insert(updated.Comments, at+1, comment)
	}
	s.tasks[i] = updated
	s.version++
	s.mu.Unlock()

	return comment, s.Flush(ctx)
}

// Dirty reports whether a mutation has not yet reached the persister.
func (s *TaskStore) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flusher.dirty(s.version)
}

// Flush writes the current snapshot if it has not been written yet.
func (s *TaskStore) Flush(ctx context.Context) error {
	return s.flusher.flush(ctx, func() ([]models.Task, uint64) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return cloneTasks(s.tasks), s.version
	})
}

func (s *TaskStore) indexLocked(id uuid.UUID) int {
	return slices.IndexFunc(s.tasks, func(t models.Task) bool { return t.ID == id })
}

func (s *TaskStore) nameExistsLocked(name string) bool {
	name = strings.TrimSpace(name)
	return slices.ContainsFunc(s.tasks, func(t models.Task) bool {
		return strings.EqualFold(strings.TrimSpace(t.Name), name)
	})
}

func (s *TaskStore) hasOpenTaskLocked(creator string) bool {
	return slices.ContainsFunc(s.tasks, func(t models.Task) bool {
		return t.CreatedBy == creator && !t.Done
	})
}

func cloneTasks(tasks []models.Task) []models.Task {
	out := make([]models.Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}
