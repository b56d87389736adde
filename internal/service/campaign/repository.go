package campaign

import (
	"context"
	"time"

	"github.com/ignite/campaign-autopilot/internal/domain"
	"github.com/ignite/campaign-autopilot/internal/sequence"
)

// Repository defines the data access contract for campaigns.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Campaign, error)

	// List returns campaigns matching the filter, ordered by created_at DESC.
	List(ctx context.Context, filter ListFilter) ([]domain.Campaign, int, error)

	// Create inserts a new campaign and returns its ID.
	Create(ctx context.Context, c *domain.Campaign) (string, error)

	// UpdateRecipients replaces the recipient list. Returns ErrNotEditable
	// if the campaign has left pending status.
	UpdateRecipients(ctx context.Context, id string, recipients []string) error

	// Activate moves a pending campaign to active and sets its first run
	// time. Returns ErrInvalidTransition if the campaign is not pending.
	Activate(ctx context.Context, id string, firstRun time.Time) error

	// Cancel moves an active or pending campaign to cancelled and clears
	// next_run_at. Returns ErrInvalidTransition from a terminal status.
	Cancel(ctx context.Context, id string) error

	// Delete removes a campaign. Only pending or terminal campaigns can be
	// deleted.
	Delete(ctx context.Context, id string) error

	// DueCampaigns returns active campaigns with next_run_at <= now, oldest
	// first, up to limit.
	DueCampaigns(ctx context.Context, now time.Time, limit int) ([]domain.Campaign, error)

	// AdvanceCursor applies a post-dispatch advancement guarded on the
	// emails_sent value the dispatcher loaded. Returns ErrConflict when the
	// row was advanced by someone else in the meantime.
	AdvanceCursor(ctx context.Context, id string, loadedEmailsSent int, adv *sequence.Advancement) error

	// InsertEvent records an audit event for a campaign.
	InsertEvent(ctx context.Context, ev *domain.CampaignEvent) error

	// Events returns the most recent audit events for a campaign.
	Events(ctx context.Context, campaignID string, limit int) ([]domain.CampaignEvent, error)
}

// ListFilter controls pagination and filtering for campaign lists.
type ListFilter struct {
	Status string
	Limit  int
	Offset int
}
