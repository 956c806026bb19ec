package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yukikurage/busybee/internal/models"
	"github.com/yukikurage/busybee/internal/safety"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const batchSize = 100

// Snapshot persists whole copies of the in-memory stores. Every save
// replaces the previous snapshot inside one transaction.
type Snapshot struct {
	db *gorm.DB
}

func NewSnapshot(db *gorm.DB) *Snapshot {
	return &Snapshot{db: db}
}

// SaveTasks replaces the stored task list with tasks.
func (s *Snapshot) SaveTasks(ctx context.Context, tasks []models.Task) error {
	taskRecs, responsibles, comments := toTaskRecords(tasks)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.CommentRecord{}).Error; err != nil {
			return fmt.Errorf("failed to clear comments: %w", err)
		}
		if err := tx.Where("1 = 1").Delete(&models.ResponsibleRecord{}).Error; err != nil {
			return fmt.Errorf("failed to clear responsibles: %w", err)
		}
		if err := tx.Where("1 = 1").Delete(&models.TaskRecord{}).Error; err != nil {
			return fmt.Errorf("failed to clear tasks: %w", err)
		}

		if len(taskRecs) > 0 {
			if err := tx.Omit(clause.Associations).CreateInBatches(taskRecs, batchSize).Error; err != nil {
				return fmt.Errorf("failed to save tasks: %w", err)
			}
		}
		if len(responsibles) > 0 {
			if err := tx.CreateInBatches(responsibles, batchSize).Error; err != nil {
				return fmt.Errorf("failed to save responsibles: %w", err)
			}
		}
		if len(comments) > 0 {
			if err := tx.CreateInBatches(comments, batchSize).Error; err != nil {
				return fmt.Errorf("failed to save comments: %w", err)
			}
		}
		return nil
	})
}

// SaveUsers replaces the stored account table with users.
func (s *Snapshot) SaveUsers(ctx context.Context, users []models.User) error {
	recs := make([]models.UserRecord, 0, len(users))
	for _, u := range users {
		recs = append(recs, models.UserRecord{
			Username:       u.Username,
			HashedPassword: u.HashedPassword,
			Roles:          models.JoinRoles(u.Roles),
			Enabled:        u.Enabled,
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.UserRecord{}).Error; err != nil {
			return fmt.Errorf("failed to clear users: %w", err)
		}
		if len(recs) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(recs, batchSize).Error; err != nil {
			return fmt.Errorf("failed to save users: %w", err)
		}
		return nil
	})
}

// LoadTasks reads the task list in its saved order.
func (s *Snapshot) LoadTasks(ctx context.Context) ([]models.Task, error) {
	var recs []models.TaskRecord
	err := s.db.WithContext(ctx).
		Scopes(OrderByPosition).
		Preload("Responsibles", OrderByPosition).
		Preload("Comments", OrderByPosition).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	tasks := make([]models.Task, 0, len(recs))
	for _, rec := range recs {
		task, err := fromTaskRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", rec.ID, err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (s *Snapshot) LoadUsers(ctx context.Context) ([]models.User, error) {
	var recs []models.UserRecord
	if err := s.db.WithContext(ctx).Order("username ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	users := make([]models.User, 0, len(recs))
	for _, rec := range recs {
		users = append(users, models.User{
			Username:       rec.Username,
			HashedPassword: rec.HashedPassword,
			Roles:          models.SplitRoles(rec.Roles),
			Enabled:        rec.Enabled,
		})
	}
	return users, nil
}

func toTaskRecords(tasks []models.Task) ([]models.TaskRecord, []models.ResponsibleRecord, []models.CommentRecord) {
	taskRecs := make([]models.TaskRecord, 0, len(tasks))
	var responsibles []models.ResponsibleRecord
	var comments []models.CommentRecord

	for pos, t := range tasks {
		id := t.ID.String()
		rec := models.TaskRecord{
			ID:          id,
			Position:    pos,
			Name:        t.Name,
			Description: t.Description,
			CreatedBy:   t.CreatedBy,
			Done:        t.Done,
			CreatedAt:   t.CreatedAt,
		}
		if t.DueDate != nil {
			d := t.DueDate.Format(safety.DateLayout)
			rec.DueDate = &d
		}
		if t.DueTime != nil {
			tm := t.DueTime.Format(safety.TimeLayout)
			rec.DueTime = &tm
		}
		taskRecs = append(taskRecs, rec)

		for i, username := range t.ResponsibilityOf {
			responsibles = append(responsibles, models.ResponsibleRecord{
				TaskID:   id,
				Position: i,
				Username: username,
			})
		}
		for i, c := range t.Comments {
			comments = append(comments, models.CommentRecord{
				ID:         c.ID.String(),
				TaskID:     id,
				Position:   i,
				Text:       c.Text,
				Image:      c.Image,
				Attachment: c.Attachment,
				CreatedBy:  c.CreatedBy,
				CreatedAt:  c.CreatedAt,
			})
		}
	}
	return taskRecs, responsibles, comments
}

func fromTaskRecord(rec models.TaskRecord) (models.Task, error) {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return models.Task{}, err
	}
	task := models.Task{
		ID:               id,
		Name:             rec.Name,
		Description:      rec.Description,
		CreatedBy:        rec.CreatedBy,
		ResponsibilityOf: make([]string, 0, len(rec.Responsibles)),
		CreatedAt:        rec.CreatedAt.UTC(),
		Done:             rec.Done,
	}
	if rec.DueDate != nil {
		d, err := time.Parse(safety.DateLayout, *rec.DueDate)
		if err != nil {
			return models.Task{}, fmt.Errorf("due date: %w", err)
		}
		task.DueDate = &d
	}
	if rec.DueTime != nil {
		tm, err := time.Parse(safety.TimeLayout, *rec.DueTime)
		if err != nil {
			return models.Task{}, fmt.Errorf("due time: %w", err)
		}
		task.DueTime = &tm
	}
	for _, r := range rec.Responsibles {
		task.ResponsibilityOf = append(task.ResponsibilityOf, r.Username)
	}
	for _, c := range rec.Comments {
		cid, err := uuid.Parse(c.ID)
		if err != nil {
			return models.Task{}, fmt.Errorf("comment %s: %w", c.ID, err)
		}
		task.Comments = append(task.Comments, models.Comment{
			ID:         cid,
			Text:       c.Text,
			Image:      c.Image,
			Attachment: c.Attachment,
			CreatedBy:  c.CreatedBy,
			CreatedAt:  c.CreatedAt.UTC(),
		})
	}
	return task, nil
}
