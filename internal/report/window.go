package report

import (
	"fmt"
	"time"

	"veggiemarket/backend/internal/domain"
)

type Period string

const (
	PeriodToday  Period = "today"
	PeriodWeek   Period = "week"
	PeriodMonth  Period = "month"
	PeriodCustom Period = "custom"
	PeriodAll    Period = "all"
)

// Window is a half-open time range [Start, End). A zero bound is open.
type Window struct {
	Period Period    `json:"period"`
	Start  time.Time `json:"start,omitempty"`
	End    time.Time `json:"end,omitempty"`
}

// ResolveWindow turns a period into concrete bounds relative to now, in now's
// location. Custom windows include the whole end day.
func ResolveWindow(period Period, start, end *time.Time, now time.Time) (Window, error) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch period {
	case PeriodToday, "":
		return Window{Period: PeriodToday, Start: midnight}, nil
	case PeriodWeek:
		return Window{Period: PeriodWeek, Start: now.Add(-7 * 24 * time.Hour)}, nil
	case PeriodMonth:
		return Window{Period: PeriodMonth, Start: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())}, nil
	case PeriodAll:
		return Window{Period: PeriodAll}, nil
	case PeriodCustom:
		if start == nil || end == nil {
			return Window{}, fmt.Errorf("%w: custom period needs start and end", domain.ErrInvalidInput)
		}
		from := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, now.Location())
		to := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
		if !to.After(from) {
			return Window{}, fmt.Errorf("%w: end is before start", domain.ErrInvalidInput)
		}
		return Window{Period: PeriodCustom, Start: from, End: to}, nil
	default:
		return Window{}, fmt.Errorf("%w: unknown period %q", domain.ErrInvalidInput, period)
	}
}

func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && !t.Before(w.End) {
		return false
	}
	return true
}
