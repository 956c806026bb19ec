package models

import "time"

// TaskRecord is the persisted form of a Task. Position keeps the store's
// insertion order across restarts.
type TaskRecord struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)"`
	Position    int       `gorm:"not null;index"`
	Name        string    `gorm:"type:varchar(100);not null"`
	Description string    `gorm:"type:text;not null"`
	CreatedBy   string    `gorm:"type:varchar(20);not null;index"`
	DueDate     *string   `gorm:"type:varchar(10)"`
	DueTime     *string   `gorm:"type:varchar(8)"`
	Done        bool      `gorm:"not null;default:false"`
	CreatedAt   time.Time `gorm:"not null"`

	// Relations
	Responsibles []ResponsibleRecord `gorm:"foreignKey:TaskID"`
	Comments     []CommentRecord     `gorm:"foreignKey:TaskID"`
}

func (TaskRecord) TableName() string { return "tasks" }

type ResponsibleRecord struct {
	ID       uint64 `gorm:"primaryKey"`
	TaskID   string `gorm:"type:varchar(36);not null;index"`
	Position int    `gorm:"not null"`
	Username string `gorm:"type:varchar(20);not null"`
}

func (ResponsibleRecord) TableName() string { return "task_responsibles" }

type CommentRecord struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)"`
	TaskID     string    `gorm:"type:varchar(36);not null;index"`
	Position   int       `gorm:"not null"`
	Text       string    `gorm:"type:text;not null"`
	Image      string    `gorm:"type:varchar(128)"`
	Attachment string    `gorm:"type:varchar(128)"`
	CreatedBy  string    `gorm:"type:varchar(20);not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (CommentRecord) TableName() string { return "comments" }
