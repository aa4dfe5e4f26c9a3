package reminder

import (
	"context"
	"fmt"
	"iter"
	"time"

	"go.uber.org/zap"

	"daily-planner/internal/metrics"
	"daily-planner/internal/plan"
)

// Presenter delivers alerts to a user. Every method is best effort.
type Presenter interface {
	PlayAlertSound(ctx context.Context, userID string) error
	ShowBlockingAlert(ctx context.Context, userID, text string) error
	ShowSystemNotification(ctx context.Context, userID, tag, body string) error
}

// PlanWriter is the write side of the plan store used for write-back.
type PlanWriter interface {
	UpsertPlan(ctx context.Context, p *plan.Plan) error
	MarkReminderNotified(ctx context.Context, userID, date string, reminderID int) error
}

// WriteBackMode selects how the notified flag is persisted.
type WriteBackMode string

const (
	// WriteBackPatch updates only the delivered reminder inside the stored plan.
	WriteBackPatch WriteBackMode = "patch"
	// WriteBackReplace saves the scanned plan snapshot as a whole document.
	WriteBackReplace WriteBackMode = "replace"
)

const DefaultAlertDelay = 100 * time.Millisecond

type Dispatcher struct {
	Presenter Presenter
	Plans     PlanWriter
	Mode      WriteBackMode
	// AlertDelay postpones the blocking alert after the sound; zero shows it inline.
	AlertDelay time.Duration
	Logger     *zap.SugaredLogger
}

func NewDispatcher(presenter Presenter, plans PlanWriter, logger *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		Presenter:  presenter,
		Plans:      plans,
		Mode:       WriteBackPatch,
		AlertDelay: DefaultAlertDelay,
		Logger:     logger,
	}
}

// Dispatch delivers each due reminder in order and returns how many were delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *Session, due iter.Seq[Candidate]) int {
	n := 0
	for c := range due {
		d.deliver(ctx, sess, c)
		n++
	}
	return n
}

func alertText(r plan.Reminder) string {
	return fmt.Sprintf("⏰ REMINDER!\n\n%s\n\nScheduled for: %s", r.Text, r.ReminderTime)
}

func (d *Dispatcher) deliver(ctx context.Context, sess *Session, c Candidate) {
	r := c.Reminder
	d.Logger.Infow("Reminder triggered", "user", sess.UserID, "reminder", r.ID, "date", c.PlanDate, "text", r.Text)

	if err := d.Presenter.PlayAlertSound(ctx, sess.UserID); err != nil {
		metrics.PresentationFailures.WithLabelValues("sound").Inc()
		d.Logger.Warnw("Alert sound failed", "user", sess.UserID, "reminder", r.ID, "error", err)
	}

	text := alertText(r)
	if d.AlertDelay > 0 {
		actx := context.WithoutCancel(ctx)
		time.AfterFunc(d.AlertDelay, func() { d.showAlert(actx, sess, r, text) })
	} else {
		d.showAlert(ctx, sess, r, text)
	}

	if sess.Permission() == PermissionGranted {
		if err := d.Presenter.ShowSystemNotification(ctx, sess.UserID, r.Tag(), r.Text); err != nil {
			metrics.PresentationFailures.WithLabelValues("system").Inc()
			d.Logger.Warnw("System notification failed", "user", sess.UserID, "reminder", r.ID, "error", err)
		}
	}

	// The marker goes first: if write-back fails it still blocks a re-fire.
	if err := sess.Markers.Set(ctx, r.MarkerKey()); err != nil {
		metrics.MarkerFailures.Inc()
		d.Logger.Errorw("Failed to write delivery marker", "user", sess.UserID, "key", r.MarkerKey(), "error", err)
	}

	if err := d.writeBack(ctx, sess, c); err != nil {
		metrics.WriteBackFailures.Inc()
		d.Logger.Errorw("Failed to update reminder", "user", sess.UserID, "reminder", r.ID, "date", c.PlanDate, "error", err)
	}

	metrics.Delivered.Inc()
}

func (d *Dispatcher) showAlert(ctx context.Context, sess *Session, r plan.Reminder, text string) {
	if err := d.Presenter.ShowBlockingAlert(ctx, sess.UserID, text); err != nil {
		metrics.PresentationFailures.WithLabelValues("alert").Inc()
		d.Logger.Warnw("Blocking alert failed", "user", sess.UserID, "reminder", r.ID, "error", err)
	}
}

// writeBack persists notified on the reminder's source plan, which is the
// plan for c.PlanDate and not necessarily today's.
func (d *Dispatcher) writeBack(ctx context.Context, sess *Session, c Candidate) error {
	if d.Mode == WriteBackReplace {
		// Candidates from one plan share the snapshot, so flags set earlier
		// in the same tick are kept.
		c.Plan.MarkNotified(c.Reminder.ID)
		return d.Plans.UpsertPlan(ctx, c.Plan)
	}
	return d.Plans.MarkReminderNotified(ctx, sess.UserID, c.PlanDate, c.Reminder.ID)
}
