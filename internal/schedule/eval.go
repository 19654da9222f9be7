// Package schedule decides whether a schedule trigger is due. Evaluation is
// a pure function of the trigger, the rule's last run, and an injected "now",
// so tests never sleep.
package schedule

import (
	"time"

	"github.com/draftwell/autopilot/internal/domain"
)

// TimeTolerance is how far the current time-of-day may drift from the
// trigger's target time and still count as a match. It must be at least half
// the scheduler tick so a target time is never skipped between ticks.
const TimeTolerance = 5 * time.Minute

// Interval returns the minimum time between runs for a frequency.
// Monthly uses a fixed 30 days, not calendar months: a rule with
// day_of_month=31 will not fire in a 30-day month.
func Interval(f domain.Frequency) time.Duration {
	switch f {
	case domain.FrequencyHourly:
		return time.Hour
	case domain.FrequencyDaily:
		return 24 * time.Hour
	case domain.FrequencyWeekly:
		return 7 * 24 * time.Hour
	case domain.FrequencyMonthly:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Eligible reports whether a schedule trigger is due at now. All checks are
// ANDed: the minimum inter-run interval, the ±TimeTolerance time-of-day
// window, and the weekly/monthly day match. A rule that has never run passes
// the interval check unconditionally.
func Eligible(trig domain.ScheduleTrigger, lastRunAt *time.Time, now time.Time) bool {
	now = now.UTC()

	// The interval check allows TimeTolerance of slack. Without it a daily
	// rule that last fired at 09:02 would be one minute short at the next
	// day's 09:01 tick, drifting one tick later every day.
	if lastRunAt != nil && now.Sub(lastRunAt.UTC()) < Interval(trig.Frequency)-TimeTolerance {
		return false
	}

	if trig.Time != "" && !withinTimeWindow(trig.Time, now) {
		return false
	}

	switch trig.Frequency {
	case domain.FrequencyWeekly:
		if trig.DayOfWeek != nil && int(now.Weekday()) != *trig.DayOfWeek {
			return false
		}
	case domain.FrequencyMonthly:
		if trig.DayOfMonth != nil && now.Day() != *trig.DayOfMonth {
			return false
		}
	}

	return true
}

// withinTimeWindow reports whether now's time-of-day is within TimeTolerance
// of the "HH:MM" target, handling windows that straddle midnight.
func withinTimeWindow(target string, now time.Time) bool {
	hour, minute, err := domain.ParseClockTime(target)
	if err != nil {
		// Malformed times are rejected at rule creation; treat leftovers
		// as never matching rather than firing at arbitrary times.
		return false
	}

	targetMin := hour*60 + minute
	nowMin := now.Hour()*60 + now.Minute()

	diff := nowMin - targetMin
	if diff < 0 {
		diff = -diff
	}
	if wrapped := 24*60 - diff; wrapped < diff {
		diff = wrapped
	}

	return time.Duration(diff)*time.Minute <= TimeTolerance
}
