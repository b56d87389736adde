package campaign

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-autopilot/internal/domain"
	"github.com/ignite/campaign-autopilot/internal/pkg/logger"
	"github.com/ignite/campaign-autopilot/internal/prompt"
	"github.com/ignite/campaign-autopilot/internal/schedule"
)

// Service implements campaign business logic. It validates configuration,
// derives the email series length, and enforces lifecycle transitions. All
// public methods are safe for concurrent use if the underlying repository is
// concurrency-safe.
type Service struct {
	repo Repository
	log  *logger.Logger
	now  func() time.Time
}

// NewService creates a campaign service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		log:  logger.Component("campaign.Service"),
		now:  time.Now,
	}
}

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	ScheduleType    string   `json:"schedule_type"`
	WeeklyDays      []int    `json:"weekly_days"`
	WeeklyEmails    int      `json:"weekly_emails"`
	TotalMonths     int      `json:"total_months"`
	AIAgentID       string   `json:"ai_agent_id"`
	RecipientEmails []string `json:"recipient_emails"`

	// Draft leaves the campaign in pending status instead of activating it
	// immediately.
	Draft bool `json:"draft"`
}

// Create validates and persists a new campaign. Unless input.Draft is set,
// the campaign is activated right away with its first run a few seconds out.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Campaign, error) {
	c := &domain.Campaign{
		ID:              uuid.New().String(),
		Name:            input.Name,
		Description:     input.Description,
		ScheduleType:    domain.ScheduleType(input.ScheduleType),
		WeeklyDays:      input.WeeklyDays,
		WeeklyEmails:    input.WeeklyEmails,
		TotalMonths:     input.TotalMonths,
		AIAgentID:       input.AIAgentID,
		RecipientEmails: input.RecipientEmails,
		Status:          domain.CampaignPending,
	}
	if c.AIAgentID == "" {
		c.AIAgentID = prompt.DefaultModel
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.TotalEmails = c.DeriveTotalEmails()

	id, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, err
	}
	c.ID = id

	if !input.Draft {
		if err := s.Activate(ctx, c.ID); err != nil {
			return nil, err
		}
		return s.repo.Get(ctx, c.ID)
	}

	s.log.Info("campaign created", "campaign_id", c.ID, "schedule_type", c.ScheduleType, "total_emails", c.TotalEmails)
	return c, nil
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.repo.Get(ctx, id)
}

// List returns campaigns matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Campaign, int, error) {
	return s.repo.List(ctx, f)
}

// Activate moves a pending campaign to active. The first email is scheduled
// almost immediately rather than waiting for a full schedule interval.
func (s *Service) Activate(ctx context.Context, id string) error {
	firstRun := schedule.FirstRun(s.now())
	if err := s.repo.Activate(ctx, id, firstRun); err != nil {
		return err
	}
	s.log.Info("campaign activated", "campaign_id", id, "first_run_at", firstRun.Format(time.RFC3339))
	return nil
}

// Cancel stops a campaign permanently. No further emails are dispatched and
// the campaign cannot be reactivated.
func (s *Service) Cancel(ctx context.Context, id string) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if ok, _ := domain.CanCancelCampaign(c.Status); !ok {
		return ErrInvalidTransition
	}

	if err := s.repo.Cancel(ctx, id); err != nil {
		return err
	}

	ev := &domain.CampaignEvent{
		ID:         uuid.New().String(),
		CampaignID: id,
		Kind:       domain.EventCancelled,
		Detail:     "cancelled by user",
	}
	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn("record cancel event", "campaign_id", id, "error", err.Error())
	}

	s.log.Info("campaign cancelled", "campaign_id", id, "emails_sent", c.EmailsSent)
	return nil
}

// UpdateRecipients replaces the recipient list of a campaign that has not
// been activated yet.
func (s *Service) UpdateRecipients(ctx context.Context, id string, recipients []string) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if ok, _ := domain.CanEditRecipients(c.Status, c.EmailsSent); !ok {
		return ErrNotEditable
	}

	probe := *c
	probe.RecipientEmails = recipients
	if err := probe.Validate(); err != nil {
		return err
	}

	return s.repo.UpdateRecipients(ctx, id, recipients)
}

// Delete removes a campaign that is pending or has reached a terminal
// status. Active campaigns must be cancelled first.
func (s *Service) Delete(ctx context.Context, id string) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status == domain.CampaignActive {
		return ErrInvalidTransition
	}
	return s.repo.Delete(ctx, id)
}

// Events returns the most recent audit events for a campaign.
func (s *Service) Events(ctx context.Context, id string, limit int) ([]domain.CampaignEvent, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.Events(ctx, id, limit)
}
