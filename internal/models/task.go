package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Comment belongs to a task. At most one of Image and Attachment is set;
// both hold stored file handles.
type Comment struct {
	ID         uuid.UUID
	Text       string
	Image      string
	Attachment string
	CreatedBy  string
	CreatedAt  time.Time
}

// Task is the aggregate held by the task store. DueTime is only set when
// DueDate is. Once Done is true the task no longer changes.
type Task struct {
	ID               uuid.UUID
	Name             string
	Description      string
	CreatedBy        string
	ResponsibilityOf []string
	DueDate          *time.Time
	DueTime          *time.Time
	CreatedAt        time.Time
	Done             bool
	Comments         []Comment
}

// Clone returns a deep copy that shares nothing with t.
func (t Task) Clone() Task {
	t.ResponsibilityOf = slices.Clone(t.ResponsibilityOf)
	t.Comments = slices.Clone(t.Comments)
	if t.DueDate != nil {
		d := *t.DueDate
		t.DueDate = &d
	}
	if t.DueTime != nil {
		d := *t.DueTime
		t.DueTime = &d
	}
	return t
}

func (t *Task) IsResponsible(username string) bool {
	return slices.Contains(t.ResponsibilityOf, username)
}

// CommentIndex returns the position of the comment with id, or -1.
func (t *Task) CommentIndex(id uuid.UUID) int {
	return slices.IndexFunc(t.Comments, func(c Comment) bool { return c.ID == id })
}
