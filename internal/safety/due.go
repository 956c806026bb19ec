package safety

import (
	"encoding/json"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

var timeLayouts = []string{"15:04:05", "15:04"}

// DueDate is a calendar date without a zone, kept at midnight UTC.
type DueDate struct {
	t time.Time
}

func NewDueDate(raw string) (DueDate, error) {
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return DueDate{}, Invalid("dueDate", "invalid")
	}
	return DueDate{t: t}, nil
}

func (d DueDate) Time() time.Time { return d.t }

func (d DueDate) String() string { return d.t.Format(DateLayout) }

// Before reports whether d is strictly earlier than the calendar day of now.
func (d DueDate) Before(now time.Time) bool {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return d.t.Before(today)
}

// SameDay reports whether d falls on the calendar day of now.
func (d DueDate) SameDay(now time.Time) bool {
	y, m, day := now.Date()
	return d.t.Year() == y && d.t.Month() == m && d.t.Day() == day
}

func (d DueDate) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *DueDate) UnmarshalJSON(data []byte) error {
	s, err := decodeString(data, "dueDate")
	if err != nil {
		return err
	}
	v, err := NewDueDate(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// DueTime is a wall-clock time of day, HH:MM or HH:MM:SS.
type DueTime struct {
	t time.Time
}

func NewDueTime(raw string) (DueTime, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return DueTime{t: t}, nil
		}
	}
	return DueTime{}, Invalid("dueTime", "invalid")
}

func (d DueTime) Time() time.Time { return d.t }

func (d DueTime) String() string { return d.t.Format(TimeLayout) }

// Before reports whether d is earlier than the wall-clock time of now.
func (d DueTime) Before(now time.Time) bool {
	h, m, s := now.Clock()
	return d.t.Hour()*3600+d.t.Minute()*60+d.t.Second() < h*3600+m*60+s
}

func (d DueTime) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *DueTime) UnmarshalJSON(data []byte) error {
	s, err := decodeString(data, "dueTime")
	if err != nil {
		return err
	}
	v, err := NewDueTime(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}
