package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/yukikurage/busybee/internal/constants"
	"github.com/yukikurage/busybee/internal/models"
	"github.com/yukikurage/busybee/internal/repository"
	"github.com/yukikurage/busybee/internal/safety"
)

// CreateTaskInput is the decoded create request. Nil pointers are fields
// the client left out; a nil ResponsibilityOf means the list was absent.
type CreateTaskInput struct {
	Name             *safety.TaskName
	Description      *safety.TaskDescription
	DueDate          *safety.DueDate
	DueTime          *safety.DueTime
	ResponsibilityOf []*safety.Username
}

// TaskService handles task business logic
type TaskService struct {
	tasks  *repository.TaskStore
	users  *repository.UserStore
	authz  *TasksAuthorization
	now    func() time.Time
	logger *slog.Logger
}

// NewTaskService creates a new TaskService
func NewTaskService(tasks *repository.TaskStore, users *repository.UserStore, authz *TasksAuthorization, logger *slog.Logger) *TaskService {
	return &TaskService{
		tasks:  tasks,
		users:  users,
		authz:  authz,
		now:    time.Now,
		logger: logger,
	}
}

// List returns the tasks actor may view, in insertion order.
func (s *TaskService) List(actor models.User) []models.Task {
	return FilterViewable(s.tasks.All(), actor)
}

// Create validates in and appends a new task owned by actor. Checks run in a
// fixed order: field shape, responsible users, name uniqueness, then the
// TRIAL quota.
func (s *TaskService) Create(ctx context.Context, actor models.User, in *CreateTaskInput) (models.Task, error) {
	if err := s.validateCreate(in); err != nil {
		s.logger.WarnContext(ctx, "create task rejected", "reason", err.Error())
		return models.Task{}, err
	}
	if err := s.validateResponsibleUsersExist(ctx, in.ResponsibilityOf); err != nil {
		return models.Task{}, err
	}
	if s.tasks.NameExists(*in.Name) {
		s.logger.WarnContext(ctx, "create task rejected", "reason", "duplicate task name")
		return models.Task{}, repository.ErrTaskNameTaken
	}
	if !s.canCreate(actor) {
		return models.Task{}, ErrAccessDenied
	}

	creator, err := safety.NewUsername(actor.Username)
	if err != nil {
		return models.Task{}, err
	}
	// The trial quota is checked again under the store lock.
	newTask := repository.NewTask{
		Name:           *in.Name,
		Description:    *in.Description,
		CreatedBy:      creator,
		DueDate:        in.DueDate,
		DueTime:        in.DueTime,
		SingleOpenTask: trialOnly(actor),
	}
	for _, u := range in.ResponsibilityOf {
		newTask.ResponsibilityOf = append(newTask.ResponsibilityOf, *u)
	}

	task, err := s.tasks.Add(ctx, newTask)
	if errors.Is(err, repository.ErrOpenTaskExists) {
		return models.Task{}, ErrAccessDenied
	}
	if err != nil {
		return task, err
	}
	s.logger.InfoContext(ctx, "task created", "task_id", task.ID)
	return task, nil
}

// MarkDone closes the task. success is false when it was already done.
func (s *TaskService) MarkDone(ctx context.Context, actor models.User, taskID uuid.UUID) (success bool, err error) {
	allowed, err := s.authz.IsOwnerOrResponsible(taskID, actor.Username)
	if err != nil {
		return false, err
	}
	if !allowed && !actor.HasRole(models.RoleAdmin) {
		return false, ErrAccessDenied
	}

	alreadyDone, err := s.tasks.MarkDone(ctx, taskID)
	if err != nil {
		return false, err
	}
	return !alreadyDone, nil
}

func (s *TaskService) canCreate(actor models.User) bool {
	if !trialOnly(actor) {
		return true
	}
	return actor.HasRole(models.RoleTrial) && s.authz.TrialUserCanCreate(actor.Username)
}

// trialOnly reports whether actor is limited to one open task.
func trialOnly(actor models.User) bool {
	return !actor.HasRole(models.RoleAdmin) && !actor.HasRole(models.RoleCreator)
}

func (s *TaskService) validateCreate(in *CreateTaskInput) error {
	switch {
	case in == nil:
		return safety.Invalid("request", "required")
	case in.Name == nil:
		return safety.Invalid("name", "required")
	case in.Description == nil:
		return safety.Invalid("desc", "required")
	case in.ResponsibilityOf == nil:
		return safety.Invalid("responsibilityOf", "required")
	case in.DueTime != nil && in.DueDate == nil:
		return safety.Invalid("dueTime", "cannot be set without dueDate")
	}

	if in.DueDate != nil {
		now := s.now()
		if in.DueDate.Before(now) {
			return safety.Invalid("dueDate", "cannot be in the past")
		}
		if in.DueTime != nil && in.DueDate.SameDay(now) && in.DueTime.Before(now) {
			return safety.Invalid("dueTime", "cannot set dueDate+dueTime in the past")
		}
	}

	if len(in.ResponsibilityOf) > constants.MaxResponsibleUsers {
		return safety.Invalid("responsibilityOf",
			"too many values (max "+strconv.Itoa(constants.MaxResponsibleUsers)+")")
	}
	for i, u := range in.ResponsibilityOf {
		if u == nil {
			return safety.Invalid(indexedField(i), "required")
		}
	}
	return nil
}

func (s *TaskService) validateResponsibleUsersExist(ctx context.Context, responsible []*safety.Username) error {
	for i, u := range responsible {
		if !s.users.Exists(u.String()) {
			s.logger.WarnContext(ctx, "create task rejected", "reason", "responsible user does not exist", "index", i)
			return safety.Invalid(indexedField(i), "user does not exist")
		}
	}
	return nil
}

func indexedField(i int) string {
	return fmt.Sprintf("responsibilityOf[%d]", i)
}
