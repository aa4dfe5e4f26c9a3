package plan

import (
	"fmt"
	"strings"
	"time"
)

// Reminder is a note on a plan that may carry a scheduled notification time.
// ReminderDate and ReminderTime are persisted exactly as typed (YYYY-MM-DD, HH:MM).
type Reminder struct {
	ID           int    `json:"id" bson:"id"`
	Text         string `json:"text" bson:"text"`
	ReminderDate string `json:"reminderDate,omitempty" bson:"reminderDate,omitempty"`
	ReminderTime string `json:"reminderTime,omitempty" bson:"reminderTime,omitempty"`
	Notified     bool   `json:"notified" bson:"notified"`
}

func NewReminder(id int, text, date, clock string) Reminder {
	return Reminder{
		ID:           id,
		Text:         text,
		ReminderDate: date,
		ReminderTime: clock,
		Notified:     false,
	}
}

// Schedulable reports whether the reminder has text and a full date and time.
func (r Reminder) Schedulable() bool {
	return strings.TrimSpace(r.Text) != "" && r.ReminderDate != "" && r.ReminderTime != ""
}

// MarkerKey is the delivery marker key for this reminder.
func (r Reminder) MarkerKey() string {
	return fmt.Sprintf("notified_%s_%s_%d", r.ReminderDate, r.ReminderTime, r.ID)
}

// Tag identifies the reminder to notification centers so repeated
// notifications for the same reminder collapse into one.
func (r Reminder) Tag() string {
	return fmt.Sprintf("reminder-%d", r.ID)
}

// At returns the scheduled instant in loc.
func (r Reminder) At(loc *time.Location) (time.Time, error) {
	if !r.Schedulable() {
		return time.Time{}, fmt.Errorf("reminder %d is not scheduled", r.ID)
	}
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, r.ReminderDate+" "+r.ReminderTime, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse schedule of reminder %d: %w", r.ID, err)
	}
	return t, nil
}

func (r *Reminder) MarkNotified() {
	r.Notified = true
}
