// Package schedule computes when a recurring campaign's next email is due.
//
// Everything here is a pure function of the campaign's cadence configuration
// and the last run time. The dispatcher owns the clock; this package only
// does calendar arithmetic.
package schedule

import (
	"fmt"
	"time"

	"github.com/ignite/campaign-autopilot/internal/domain"
)

// FirstRunDelay is how far after activation the first dispatch fires.
// Long enough for the creating transaction to commit and for an operator
// to cancel a fat-fingered campaign.
const FirstRunDelay = 5 * time.Second

// NextRun returns the timestamp of the run after lastRun.
//
// Daily: next day, same time-of-day. Weekly: scan forward day-by-day from
// lastRun+1d until a configured weekday is hit. The scan is bounded at 7
// iterations — with a non-empty day set it always terminates, and the
// round-robin across week boundaries falls out without any week-index
// bookkeeping.
func NextRun(scheduleType domain.ScheduleType, weeklyDays []int, lastRun time.Time) (time.Time, error) {
	switch scheduleType {
	case domain.ScheduleDaily:
		return lastRun.AddDate(0, 0, 1), nil

	case domain.ScheduleWeekly:
		if len(weeklyDays) == 0 {
			return time.Time{}, fmt.Errorf("weekly schedule has no weekdays configured")
		}
		days := make(map[int]bool, len(weeklyDays))
		for _, d := range weeklyDays {
			days[d] = true
		}
		for i := 1; i <= 7; i++ {
			candidate := lastRun.AddDate(0, 0, i)
			if days[int(candidate.Weekday())] {
				return candidate, nil
			}
		}
		// Unreachable with a valid 0-6 day set; kept so the loop is
		// provably bounded rather than trusted.
		return time.Time{}, fmt.Errorf("no matching weekday within 7 days of %s", lastRun.Format(time.RFC3339))

	default:
		return time.Time{}, fmt.Errorf("unknown schedule type %q", scheduleType)
	}
}

// FirstRun returns when a freshly activated campaign should first dispatch.
func FirstRun(now time.Time) time.Time {
	return now.Add(FirstRunDelay)
}
