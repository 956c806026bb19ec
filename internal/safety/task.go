package safety

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/yukikurage/busybee/internal/htmlsafe"
)

const (
	TaskNameMaxLength        = 100
	TaskDescriptionMaxLength = 2000
)

var (
	// Single line only: the class admits the space but no other whitespace.
	taskNamePattern           = regexp.MustCompile(`^[a-zA-Z0-9 .,!?\-_()\x{0590}-\x{05FF}]*$`)
	responsibilityNamePattern = regexp.MustCompile(`^[a-zA-Z0-9\s.,!?\-_()\x{0590}-\x{05FF}]*$`)
)

// TaskName is a trimmed, single-line task title.
type TaskName struct {
	value string
}

func NewTaskName(raw string) (TaskName, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return TaskName{}, Invalid("name", "required")
	}
	if runeLen(trimmed) > TaskNameMaxLength {
		return TaskName{}, Invalid("name", "too long")
	}
	if strings.ContainsAny(trimmed, "\r\n") {
		return TaskName{}, Invalid("name", "must be a single line")
	}
	if !taskNamePattern.MatchString(trimmed) {
		return TaskName{}, Invalid("name", "contains invalid characters")
	}
	return TaskName{value: trimmed}, nil
}

func (n TaskName) String() string { return n.value }

func (n TaskName) MarshalJSON() ([]byte, error) { return json.Marshal(n.value) }

func (n *TaskName) UnmarshalJSON(data []byte) error {
	s, err := decodeString(data, "name")
	if err != nil {
		return err
	}
	v, err := NewTaskName(s)
	if err != nil {
		return err
	}
	*n = v
	return nil
}

// TaskDescription holds rich text that has already been passed through the
// HTML allow-list. The length limit applies to the text as submitted.
type TaskDescription struct {
	value string
}

func NewTaskDescription(raw string) (TaskDescription, error) {
	if strings.TrimSpace(raw) == "" {
		return TaskDescription{}, Invalid("desc", "required")
	}
	if runeLen(raw) > TaskDescriptionMaxLength {
		return TaskDescription{}, Invalid("desc", "too long")
	}
	return TaskDescription{value: htmlsafe.Sanitize(raw)}, nil
}

func (d TaskDescription) String() string { return d.value }

func (d TaskDescription) MarshalJSON() ([]byte, error) { return json.Marshal(d.value) }

func (d *TaskDescription) UnmarshalJSON(data []byte) error {
	s, err := decodeString(data, "desc")
	if err != nil {
		return err
	}
	v, err := NewTaskDescription(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// ResponsibilityName is a free-form assignee name restricted to the task
// name character set plus whitespace. The empty value means no name.
type ResponsibilityName struct {
	value string
}

func NewResponsibilityName(raw string) (ResponsibilityName, error) {
	if !responsibilityNamePattern.MatchString(raw) {
		return ResponsibilityName{}, Invalid("responsibilityOf", "contains invalid characters")
	}
	if runeLen(raw) > UsernameMaxLength {
		return ResponsibilityName{}, Invalid("responsibilityOf", "too long")
	}
	return ResponsibilityName{value: raw}, nil
}

func (r ResponsibilityName) String() string { return r.value }

func (r ResponsibilityName) IsEmpty() bool { return strings.TrimSpace(r.value) == "" }

func (r ResponsibilityName) MarshalJSON() ([]byte, error) { return json.Marshal(r.value) }

func (r *ResponsibilityName) UnmarshalJSON(data []byte) error {
	s, err := decodeString(data, "responsibilityOf")
	if err != nil {
		return err
	}
	v, err := NewResponsibilityName(s)
	if err != nil {
		return err
	}
	*r = v
	return nil
}
