package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yukikurage/busybee/internal/models"
	"github.com/yukikurage/busybee/internal/safety"
	"github.com/yukikurage/busybee/internal/services"
)

// CommentOut is the wire form of a comment.
type CommentOut struct {
	CommentID  uuid.UUID `json:"commentid"`
	Text       string    `json:"text"`
	Image      string    `json:"image,omitempty"`
	Attachment string    `json:"attachment,omitempty"`
	CreatedBy  string    `json:"createdBy"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TaskOut is the wire form of a task. Description is sanitized HTML.
type TaskOut struct {
	TaskID           uuid.UUID    `json:"taskid"`
	Name             string       `json:"name"`
	Description      string       `json:"desc"`
	DueDate          string       `json:"dueDate,omitempty"`
	DueTime          string       `json:"dueTime,omitempty"`
	CreatedBy        string       `json:"createdBy"`
	ResponsibilityOf []string     `json:"responsibilityOf"`
	CreatedAt        time.Time    `json:"createdAt"`
	Done             bool         `json:"done"`
	Comments         []CommentOut `json:"comments"`
}

// ToTaskOut converts a task to its wire form
func ToTaskOut(t models.Task) TaskOut {
	out := TaskOut{
		TaskID:           t.ID,
		Name:             t.Name,
		Description:      t.Description,
		CreatedBy:        t.CreatedBy,
		ResponsibilityOf: t.ResponsibilityOf,
		CreatedAt:        t.CreatedAt,
		Done:             t.Done,
		Comments:         make([]CommentOut, 0, len(t.Comments)),
	}
	if out.ResponsibilityOf == nil {
		out.ResponsibilityOf = []string{}
	}
	if t.DueDate != nil {
		out.DueDate = t.DueDate.Format(safety.DateLayout)
	}
	if t.DueTime != nil {
		out.DueTime = t.DueTime.Format(safety.TimeLayout)
	}
	for _, c := range t.Comments {
		out.Comments = append(out.Comments, CommentOut{
			CommentID:  c.ID,
			Text:       c.Text,
			Image:      c.Image,
			Attachment: c.Attachment,
			CreatedBy:  c.CreatedBy,
			CreatedAt:  c.CreatedAt,
		})
	}
	return out
}

func ToTaskOuts(tasks []models.Task) []TaskOut {
	out := make([]TaskOut, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, ToTaskOut(t))
	}
	return out
}

// CreateRequest is the body of POST /create. Every field decodes through its
// safe-value type; absent fields stay nil.
type CreateRequest struct {
	Name             *safety.TaskName        `json:"name"`
	Desc             *safety.TaskDescription `json:"desc"`
	DueDate          *safety.DueDate         `json:"dueDate"`
	DueTime          *safety.DueTime         `json:"dueTime"`
	ResponsibilityOf ResponsibleUsers        `json:"responsibilityOf"`
}

func (r *CreateRequest) Input() *services.CreateTaskInput {
	return &services.CreateTaskInput{
		Name:             r.Name,
		Description:      r.Desc,
		DueDate:          r.DueDate,
		DueTime:          r.DueTime,
		ResponsibilityOf: []*safety.Username(r.ResponsibilityOf),
	}
}

// ResponsibleUsers is the responsibilityOf list. Entry errors name their
// index, and a null entry stays nil for the service to report.
type ResponsibleUsers []*safety.Username

func (r *ResponsibleUsers) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = nil
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return safety.Invalid("responsibilityOf", "invalid")
	}

	users := make(ResponsibleUsers, len(items))
	for i, item := range items {
		if bytes.Equal(item, []byte("null")) {
			continue
		}
		var u safety.Username
		if err := json.Unmarshal(item, &u); err != nil {
			var ve *safety.ValidationError
			if errors.As(err, &ve) {
				return safety.Invalid(fmt.Sprintf("responsibilityOf[%d]", i), ve.Reason)
			}
			return err
		}
		users[i] = &u
	}
	*r = users
	return nil
}

type CreateResponse struct {
	TaskID uuid.UUID `json:"taskid"`
}

type MarkDoneRequest struct {
	TaskID *uuid.UUID `json:"taskid"`
}

type MarkDoneResponse struct {
	Success bool `json:"success"`
}

// CommentFields is the commentFields part of POST /comment. CommentID is the
// comment to insert after.
type CommentFields struct {
	TaskID    *uuid.UUID          `json:"taskid"`
	CommentID *uuid.UUID          `json:"commentid"`
	Text      *safety.CommentText `json:"text"`
	ImageURL  string              `json:"imageUrl"`
}

type CommentResponse struct {
	CommentID uuid.UUID `json:"commentid"`
}
