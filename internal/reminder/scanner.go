package reminder

import (
	"context"
	"iter"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"daily-planner/internal/metrics"
	"daily-planner/internal/plan"
	"daily-planner/internal/storage"
)

// PlanFetcher is the read side of the plan store used by the Scanner.
// GetPlan must report a missing plan with storage.ErrNotFound.
type PlanFetcher interface {
	GetPlan(ctx context.Context, userID, date string) (*plan.Plan, error)
}

// Window is the span of dates inspected on each scan, relative to today.
// Both ends are inclusive.
type Window struct {
	PastDays   int
	FutureDays int
}

var DefaultWindow = Window{PastDays: 7, FutureDays: 30}

// Candidate is a reminder together with the plan it was read from.
// Plan is a snapshot owned by the scan that produced it.
type Candidate struct {
	Reminder plan.Reminder
	PlanDate string
	Plan     *plan.Plan
}

type Scanner struct {
	Plans  PlanFetcher
	Window Window
	// Location defines "today" and the current minute. Defaults to time.Local.
	Location *time.Location
	// CatchUpMissed also treats reminders scheduled for an earlier minute
	// as due, as long as they are not yet delivered.
	CatchUpMissed bool
	// FetchTimeout bounds each plan fetch; zero means no bound.
	FetchTimeout time.Duration
	// FetchConcurrency limits parallel fetches; zero means one goroutine per date.
	FetchConcurrency int
	Logger           *zap.SugaredLogger
}

func NewScanner(plans PlanFetcher, logger *zap.SugaredLogger) *Scanner {
	return &Scanner{
		Plans:    plans,
		Window:   DefaultWindow,
		Location: time.Local,
		Logger:   logger,
	}
}

func (s *Scanner) location() *time.Location {
	if s.Location == nil {
		return time.Local
	}
	return s.Location
}

// Dates returns the scan window around now.
func (s *Scanner) Dates(now time.Time) []string {
	return plan.DateRange(now.In(s.location()), s.Window.PastDays, s.Window.FutureDays)
}

// fetch loads the plan for every date concurrently. The result is aligned
// with dates; a nil entry means no plan, either absent or failed to load.
func (s *Scanner) fetch(ctx context.Context, userID string, dates []string) []*plan.Plan {
	plans := make([]*plan.Plan, len(dates))

	var g errgroup.Group
	if s.FetchConcurrency > 0 {
		g.SetLimit(s.FetchConcurrency)
	}
	for i, date := range dates {
		g.Go(func() error {
			fctx := ctx
			if s.FetchTimeout > 0 {
				var cancel context.CancelFunc
				fctx, cancel = context.WithTimeout(ctx, s.FetchTimeout)
				defer cancel()
			}

			p, err := s.Plans.GetPlan(fctx, userID, date)
			switch {
			case err == nil:
				plans[i] = p
			case storage.IsNotFound(err):
			default:
				metrics.FetchFailures.Inc()
				s.Logger.Warnw("Failed to fetch plan, treating as empty", "user", userID, "date", date, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return plans
}

// Candidates returns every reminder of every plan in the window around now.
func (s *Scanner) Candidates(ctx context.Context, userID string, now time.Time) []Candidate {
	dates := s.Dates(now)
	plans := s.fetch(ctx, userID, dates)

	var candidates []Candidate
	for i, p := range plans {
		if p == nil {
			continue
		}
		for _, r := range p.Reminders {
			candidates = append(candidates, Candidate{Reminder: r, PlanDate: dates[i], Plan: p})
		}
	}
	return candidates
}

// Scheduled reports whether r should fire at now, ignoring delivery markers.
func (s *Scanner) Scheduled(r plan.Reminder, now time.Time) bool {
	if !r.Schedulable() || r.Notified {
		return false
	}
	local := now.In(s.location())
	if r.ReminderDate == local.Format(plan.DateLayout) && r.ReminderTime == local.Format(plan.TimeLayout) {
		return true
	}
	if !s.CatchUpMissed {
		return false
	}
	at, err := r.At(s.location())
	if err != nil {
		return false
	}
	return !at.After(now)
}

// IsDue applies Scheduled and then checks the session's delivery markers.
// A marker that cannot be read counts as present.
func (s *Scanner) IsDue(ctx context.Context, sess *Session, c Candidate, now time.Time) bool {
	if !s.Scheduled(c.Reminder, now) {
		return false
	}
	delivered, err := sess.Markers.Has(ctx, c.Reminder.MarkerKey())
	if err != nil {
		metrics.MarkerFailures.Inc()
		s.Logger.Errorw("Failed to read delivery marker, skipping reminder", "user", sess.UserID, "key", c.Reminder.MarkerKey(), "error", err)
		return false
	}
	return !delivered
}

// Scan fetches the window around now and returns the due reminders. The
// fetches complete before Scan returns; the due check for each candidate
// runs as the sequence is consumed, so markers written while dispatching
// earlier candidates are seen by later ones.
func (s *Scanner) Scan(ctx context.Context, sess *Session, now time.Time) iter.Seq[Candidate] {
	candidates := s.Candidates(ctx, sess.UserID, now)
	s.Logger.Debugw("Scanned reminders", "user", sess.UserID, "candidates", len(candidates))

	return func(yield func(Candidate) bool) {
		for _, c := range candidates {
			if !s.IsDue(ctx, sess, c, now) {
				continue
			}
			if !yield(c) {
				return
			}
		}
	}
}
