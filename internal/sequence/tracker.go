// Package sequence tracks a campaign's position in its email series and
// computes the state transition that follows a successful dispatch.
package sequence

import (
	"time"

	"github.com/ignite/campaign-autopilot/internal/domain"
	"github.com/ignite/campaign-autopilot/internal/schedule"
)

// CurrentEmailNumber returns the 1-based number of the next email to send.
func CurrentEmailNumber(c *domain.Campaign) int {
	return c.EmailsSent + 1
}

// IsComplete reports whether the campaign has sent its entire series.
func IsComplete(c *domain.Campaign) bool {
	return c.EmailsSent >= c.TotalEmails
}

// Advancement is the state a campaign moves to after one email is sent.
// NextRunAt is nil when the series is finished.
type Advancement struct {
	EmailsSent int
	Status     domain.CampaignStatus
	LastRunAt  time.Time
	NextRunAt  *time.Time
}

// Advance computes the campaign's next state after sending the email at the
// current position. The caller persists it with an optimistic guard on the
// loaded EmailsSent value so concurrent dispatchers cannot double-advance.
func Advance(c *domain.Campaign, now time.Time) (*Advancement, error) {
	adv := &Advancement{
		EmailsSent: c.EmailsSent + 1,
		Status:     domain.CampaignActive,
		LastRunAt:  now,
	}

	if adv.EmailsSent >= c.TotalEmails {
		adv.Status = domain.CampaignCompleted
		return adv, nil
	}

	next, err := schedule.NextRun(c.ScheduleType, c.WeeklyDays, now)
	if err != nil {
		return nil, err
	}
	adv.NextRunAt = &next
	return adv, nil
}
