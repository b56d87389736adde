package domain

import (
	"fmt"
	"strings"
	"time"
)

// CampaignStatus enumerates the lifecycle states of a recurring campaign.
type CampaignStatus string

const (
	CampaignPending   CampaignStatus = "pending"
	CampaignActive    CampaignStatus = "active"
	CampaignCompleted CampaignStatus = "completed"
	CampaignCancelled CampaignStatus = "cancelled"
)

// ScheduleType is the cadence of a recurring campaign.
type ScheduleType string

const (
	ScheduleDaily  ScheduleType = "daily"
	ScheduleWeekly ScheduleType = "weekly"
)

// Approximate calendar used for total-duration derivation. A month is
// treated as 30 days / 4 send weeks, matching the scheduling arithmetic.
const (
	DaysPerMonth  = 30
	WeeksPerMonth = 4
)

// Campaign is a recurring email series: its cadence, duration, AI model,
// recipients, and the progress cursor the dispatcher advances.
type Campaign struct {
	ID          string `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`

	ScheduleType ScheduleType `json:"schedule_type" db:"schedule_type"`
	// WeeklyDays uses time.Weekday numbering: 0=Sunday ... 6=Saturday.
	WeeklyDays   []int `json:"weekly_days" db:"weekly_days"`
	WeeklyEmails int   `json:"weekly_emails" db:"weekly_emails"`
	TotalMonths  int   `json:"total_months" db:"total_months"`

	AIAgentID       string   `json:"ai_agent_id" db:"ai_agent_id"`
	RecipientEmails []string `json:"recipient_emails" db:"recipient_emails"`

	Status      CampaignStatus `json:"status" db:"status"`
	EmailsSent  int            `json:"emails_sent" db:"emails_sent"`
	TotalEmails int            `json:"total_emails" db:"total_emails"`
	LastRunAt   *time.Time     `json:"last_run_at" db:"last_run_at"`
	NextRunAt   *time.Time     `json:"next_run_at" db:"next_run_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the campaign is in a final state.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignCompleted || c.Status == CampaignCancelled
}

// Due reports whether the campaign has a scheduled run at or before now.
func (c *Campaign) Due(now time.Time) bool {
	return c.Status == CampaignActive && c.NextRunAt != nil && !c.NextRunAt.After(now)
}

// DeriveTotalEmails computes the fixed length of the email series from the
// cadence and duration. Daily campaigns send one email per day; weekly
// campaigns send one email on each configured weekday.
func (c *Campaign) DeriveTotalEmails() int {
	switch c.ScheduleType {
	case ScheduleDaily:
		return DaysPerMonth * c.TotalMonths
	case ScheduleWeekly:
		return c.WeeklyEmails * WeeksPerMonth * c.TotalMonths
	}
	return 0
}

// ConfigurationError is a campaign definition rejected at creation time.
// It never reaches persistence.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid campaign config: %s: %s", e.Field, e.Reason)
}

func configErr(field, reason string) error {
	return &ConfigurationError{Field: field, Reason: reason}
}

// Validate checks the campaign definition. Weekly campaigns must name their
// weekdays, and the per-week email count must equal the number of weekdays —
// a mismatch is rejected rather than guessed at.
func (c *Campaign) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return configErr("name", "is required")
	}
	if len(c.RecipientEmails) == 0 {
		return configErr("recipient_emails", "at least one recipient is required")
	}
	for _, addr := range c.RecipientEmails {
		if !validEmail(addr) {
			return configErr("recipient_emails", fmt.Sprintf("%q is not a valid address", addr))
		}
	}
	if c.TotalMonths <= 0 {
		return configErr("total_months", "must be a positive number of months")
	}

	switch c.ScheduleType {
	case ScheduleDaily:
		// one email per day, nothing else to check
	case ScheduleWeekly:
		if len(c.WeeklyDays) == 0 {
			return configErr("weekly_days", "cannot be empty for a weekly schedule")
		}
		seen := map[int]bool{}
		for _, d := range c.WeeklyDays {
			if d < 0 || d > 6 {
				return configErr("weekly_days", fmt.Sprintf("weekday %d out of range 0-6", d))
			}
			if seen[d] {
				return configErr("weekly_days", fmt.Sprintf("weekday %d listed twice", d))
			}
			seen[d] = true
		}
		if c.WeeklyEmails <= 0 {
			return configErr("weekly_emails", "must be > 0 for a weekly schedule")
		}
		if c.WeeklyEmails != len(c.WeeklyDays) {
			return configErr("weekly_emails",
				fmt.Sprintf("must equal the number of weekly_days (%d != %d)", c.WeeklyEmails, len(c.WeeklyDays)))
		}
	default:
		return configErr("schedule_type", fmt.Sprintf("unknown schedule type %q", c.ScheduleType))
	}

	return nil
}

// validEmail is a structural check, not RFC 5322. Good enough to reject
// obvious garbage at creation; the delivery sink reports the real verdict.
func validEmail(addr string) bool {
	at := strings.Index(addr, "@")
	if at <= 0 || at == len(addr)-1 {
		return false
	}
	dom := addr[at+1:]
	if strings.Contains(dom, "@") || !strings.Contains(dom, ".") {
		return false
	}
	return !strings.ContainsAny(addr, " \t\n")
}

// CanCancelCampaign reports whether a campaign in the given status may be
// cancelled, with a human-readable reason when it may not.
func CanCancelCampaign(status CampaignStatus) (bool, string) {
	switch status {
	case CampaignCompleted, CampaignCancelled:
		return false, fmt.Sprintf("cannot cancel campaign in '%s' status", status)
	default:
		return true, ""
	}
}

// CanEditRecipients reports whether the recipient list may still change.
// Recipients freeze once the first email has gone out.
func CanEditRecipients(status CampaignStatus, emailsSent int) (bool, string) {
	if status != CampaignPending {
		return false, fmt.Sprintf("recipients are locked once a campaign leaves '%s'", CampaignPending)
	}
	if emailsSent > 0 {
		return false, "recipients are locked after the first send"
	}
	return true, ""
}

// EventKind enumerates the dispatch audit trail entries.
type EventKind string

const (
	EventDispatched       EventKind = "dispatched"
	EventGenerationFailed EventKind = "generation_failed"
	EventDeliveryFailed   EventKind = "delivery_failed"
	EventCompleted        EventKind = "completed"
	EventCancelled        EventKind = "cancelled"
)

// CampaignEvent is one row of the append-only dispatch log.
type CampaignEvent struct {
	ID               string    `json:"id" db:"id"`
	CampaignID       string    `json:"campaign_id" db:"campaign_id"`
	EmailNumber      int       `json:"email_number" db:"email_number"`
	Kind             EventKind `json:"kind" db:"kind"`
	Detail           string    `json:"detail" db:"detail"`
	RecipientsOK     int       `json:"recipients_ok" db:"recipients_ok"`
	RecipientsFailed int       `json:"recipients_failed" db:"recipients_failed"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}
