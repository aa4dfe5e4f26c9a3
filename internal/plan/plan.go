package plan

import (
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type TodoItem struct {
	ID        int    `json:"id" bson:"id"`
	Text      string `json:"text" bson:"text"`
	Completed bool   `json:"completed" bson:"completed"`
}

// Plan holds one user's to-dos, must-dos and reminders for a calendar date.
// There is at most one Plan per (UserID, Date).
type Plan struct {
	ID        string     `json:"id" bson:"id"`
	UserID    string     `json:"userId" bson:"userId"`
	Date      string     `json:"date" bson:"date"`
	Todos     []TodoItem `json:"todos" bson:"todos"`
	MustDos   []TodoItem `json:"mustDos" bson:"mustDos"`
	Reminders []Reminder `json:"reminders" bson:"reminders"`
	UpdatedAt time.Time  `json:"updatedAt" bson:"updatedAt"`
}

func NewPlan(id, userID, date string) *Plan {
	return &Plan{
		ID:        id,
		UserID:    userID,
		Date:      date,
		Todos:     []TodoItem{},
		MustDos:   []TodoItem{},
		Reminders: []Reminder{},
	}
}

// Normalize replaces missing sequences with empty ones.
func (p *Plan) Normalize() {
	if p.Todos == nil {
		p.Todos = []TodoItem{}
	}
	if p.MustDos == nil {
		p.MustDos = []TodoItem{}
	}
	if p.Reminders == nil {
		p.Reminders = []Reminder{}
	}
}

func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	c := *p
	c.Todos = append([]TodoItem(nil), p.Todos...)
	c.MustDos = append([]TodoItem(nil), p.MustDos...)
	c.Reminders = append([]Reminder(nil), p.Reminders...)
	c.Normalize()
	return &c
}

// MarkNotified sets the notified flag of the reminder with the given id.
// It reports whether such a reminder exists.
func (p *Plan) MarkNotified(reminderID int) bool {
	for i := range p.Reminders {
		if p.Reminders[i].ID == reminderID {
			p.Reminders[i].MarkNotified()
			return true
		}
	}
	return false
}

// ResetNotified returns a copy of the plan with every reminder's notified
// flag cleared. This is how a plan is presented for editing.
func (p *Plan) ResetNotified() *Plan {
	c := p.Clone()
	for i := range c.Reminders {
		c.Reminders[i].Notified = false
	}
	return c
}

func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

func ValidTime(s string) bool {
	_, err := time.Parse(TimeLayout, s)
	return err == nil && len(s) == len(TimeLayout)
}

// DateRange lists the calendar dates from past days before today through
// future days after it, inclusive, in ascending order.
func DateRange(today time.Time, past, future int) []string {
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	dates := make([]string, 0, past+future+1)
	for i := -past; i <= future; i++ {
		dates = append(dates, start.AddDate(0, 0, i).Format(DateLayout))
	}
	return dates
}
