// Package weekgen computes the start date of the next week of a sprint.
package weekgen

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/josephgoksu/PlanWing/internal/task"
)

// MaxAttempts bounds the collision loop.
const MaxAttempts = 500

// ErrRetryBound is returned when no free start date was found within
// MaxAttempts steps. It indicates corrupt input, not a user error.
var ErrRetryBound = errors.New("week generator exceeded retry bound")

// Request is the body sent to the generate endpoint.
type Request struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Generator wraps Next with an injectable clock.
type Generator struct {
	Now func() time.Time
}

// New returns a generator using the wall clock.
func New() *Generator {
	return &Generator{Now: time.Now}
}

// Next returns the request for the week after the given ones.
func (g *Generator) Next(existing []task.Week, weekStartDay int) (Request, error) {
	now := time.Now
	if g != nil && g.Now != nil {
		now = g.Now
	}
	start, err := Next(existing, weekStartDay, now())
	if err != nil {
		return Request{}, err
	}
	return Request{From: start, To: start}, nil
}

// Next computes the next usable week start as YYYY-MM-DD.
//
// With existing weeks the candidate is the latest start plus 7 days;
// without, today aligned down to weekStartDay (0 = Sunday). The candidate
// advances by 7 days while it collides with an existing start.
func Next(existing []task.Week, weekStartDay int, today time.Time) (string, error) {
	taken := make(map[string]bool, len(existing))
	var latest time.Time
	for _, w := range existing {
		start, err := w.Start()
		if err != nil {
			slog.Warn("skipping week with unparseable start", "week_id", w.ID, "week_start", w.WeekStart, "error", err)
			continue
		}
		taken[start.Format(task.DateLayout)] = true
		if start.After(latest) {
			latest = start
		}
	}

	var candidate time.Time
	if latest.IsZero() {
		candidate = Align(today, weekStartDay)
	} else {
		candidate = latest.AddDate(0, 0, 7)
	}

	for i := 0; i < MaxAttempts; i++ {
		s := candidate.Format(task.DateLayout)
		if !taken[s] {
			return s, nil
		}
		candidate = candidate.AddDate(0, 0, 7)
	}
	slog.Error("week generator gave up", "attempts", MaxAttempts, "existing", len(existing))
	return "", fmt.Errorf("after %d attempts: %w", MaxAttempts, ErrRetryBound)
}

// Align moves date back to the most recent weekday (0 = Sunday), at midnight UTC.
// Out of range weekdays are treated as Monday.
func Align(date time.Time, weekday int) time.Time {
	if weekday < 0 || weekday > 6 {
		weekday = int(time.Monday)
	}
	d := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	back := (int(d.Weekday()) - weekday + 7) % 7
	return d.AddDate(0, 0, -back)
}

// End returns the last day of the week starting at start.
func End(start string) (string, error) {
	t, err := time.Parse(task.DateLayout, start)
	if err != nil {
		return "", fmt.Errorf("invalid week start %q: %w", start, err)
	}
	return t.AddDate(0, 0, 6).Format(task.DateLayout), nil
}
