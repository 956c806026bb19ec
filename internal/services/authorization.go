package services

import (
	"errors"

	"github.com/google/uuid"
	"github.com/yukikurage/busybee/internal/models"
	"github.com/yukikurage/busybee/internal/repository"
)

var ErrAccessDenied = errors.New("access denied")

// TasksAuthorization answers ownership and visibility questions against the
// current task list. Every predicate reads a fresh snapshot of the store.
type TasksAuthorization struct {
	tasks *repository.TaskStore
}

func NewTasksAuthorization(tasks *repository.TaskStore) *TasksAuthorization {
	return &TasksAuthorization{tasks: tasks}
}

// TrialUserCanCreate reports whether username has no task that is still open.
func (a *TasksAuthorization) TrialUserCanCreate(username string) bool {
	for _, t := range a.tasks.All() {
		if t.CreatedBy == username && !t.Done {
			return false
		}
	}
	return true
}

func (a *TasksAuthorization) IsOwner(taskID uuid.UUID, username string) bool {
	t, ok := a.tasks.Find(taskID)
	return ok && t.CreatedBy == username
}

// IsOwnerOrResponsible fails with repository.ErrTaskNotFound when the task
// does not exist, so callers can answer 404 instead of 403.
func (a *TasksAuthorization) IsOwnerOrResponsible(taskID uuid.UUID, username string) (bool, error) {
	t, ok := a.tasks.Find(taskID)
	if !ok {
		return false, repository.ErrTaskNotFound
	}
	return UserAllowedToViewTask(t, username), nil
}

// UserAllowedToViewTask holds for the creator and every responsible user.
func UserAllowedToViewTask(t models.Task, username string) bool {
	return t.CreatedBy == username || t.IsResponsible(username)
}

func (a *TasksAuthorization) UserAllowedToComment(taskID uuid.UUID, username string) bool {
	t, ok := a.tasks.Find(taskID)
	return ok && UserAllowedToViewTask(t, username)
}

func (a *TasksAuthorization) ImageIsInOwnedOrAssignedTask(filename, username string) bool {
	return a.mediaInViewableTask(username, func(c models.Comment) bool { return c.Image == filename })
}

func (a *TasksAuthorization) AttachmentIsInOwnedOrAssignedTask(filename, username string) bool {
	return a.mediaInViewableTask(username, func(c models.Comment) bool { return c.Attachment == filename })
}

func (a *TasksAuthorization) mediaInViewableTask(username string, match func(models.Comment) bool) bool {
	if match(models.Comment{}) {
		// An empty name would match every comment without media.
		return false
	}
	for _, t := range a.tasks.All() {
		if !UserAllowedToViewTask(t, username) {
			continue
		}
		for _, c := range t.Comments {
			if match(c) {
				return true
			}
		}
	}
	return false
}

// FilterViewable keeps the tasks user may see. ADMIN sees everything.
func FilterViewable(tasks []models.Task, user models.User) []models.Task {
	if user.HasRole(models.RoleAdmin) {
		return tasks
	}
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if UserAllowedToViewTask(t, user.Username) {
			out = append(out, t)
		}
	}
	return out
}
