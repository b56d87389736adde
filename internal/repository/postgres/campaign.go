// Package postgres implements the campaign service's repository interfaces
// against PostgreSQL using lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/campaign-autopilot/internal/domain"
	"github.com/ignite/campaign-autopilot/internal/sequence"
	"github.com/ignite/campaign-autopilot/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

const campaignColumns = `id, name, COALESCE(description,''), schedule_type,
	       weekly_days, weekly_emails, total_months, ai_agent_id,
	       recipient_emails, status, emails_sent, total_emails,
	       last_run_at, next_run_at, created_at, updated_at`

func scanCampaign(row interface{ Scan(...interface{}) error }) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	var days pq.Int64Array
	var recipients pq.StringArray
	err := row.Scan(
		&c.ID, &c.Name, &c.Description, &c.ScheduleType,
		&days, &c.WeeklyEmails, &c.TotalMonths, &c.AIAgentID,
		&recipients, &c.Status, &c.EmailsSent, &c.TotalEmails,
		&c.LastRunAt, &c.NextRunAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(days) > 0 {
		c.WeeklyDays = make([]int, len(days))
		for i, d := range days {
			c.WeeklyDays[i] = int(d)
		}
	}
	c.RecipientEmails = []string(recipients)
	return c, nil
}

func daysArray(days []int) pq.Int64Array {
	out := make(pq.Int64Array, len(days))
	for i, d := range days {
		out[i] = int64(d)
	}
	return out
}

func (r *CampaignRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE id = $1
	`, id)
	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) List(ctx context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	countQ := `SELECT COUNT(*) FROM campaigns`
	args := []interface{}{}
	if f.Status != "" {
		countQ += ` WHERE status = $1`
		args = append(args, f.Status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	q := `SELECT ` + campaignColumns + ` FROM campaigns`
	qArgs := []interface{}{}
	idx := 1
	if f.Status != "" {
		q += fmt.Sprintf(" WHERE status = $%d", idx)
		qArgs = append(qArgs, f.Status)
		idx++
	}
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	qArgs = append(qArgs, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, qArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) (string, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaigns
			(id, name, description, schedule_type, weekly_days, weekly_emails,
			 total_months, ai_agent_id, recipient_emails, status, emails_sent,
			 total_emails, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, NOW(), NOW())
	`, c.ID, c.Name, c.Description, c.ScheduleType, daysArray(c.WeeklyDays),
		c.WeeklyEmails, c.TotalMonths, c.AIAgentID, pq.Array(c.RecipientEmails),
		c.Status, c.TotalEmails)
	if err != nil {
		return "", fmt.Errorf("create campaign: %w", err)
	}
	return c.ID, nil
}

func (r *CampaignRepo) UpdateRecipients(ctx context.Context, id string, recipients []string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET recipient_emails = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'pending'
	`, pq.Array(recipients), id)
	if err != nil {
		return fmt.Errorf("update recipients: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return r.missReason(ctx, id, campaign.ErrNotEditable)
	}
	return nil
}

func (r *CampaignRepo) Activate(ctx context.Context, id string, firstRun time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = 'active', next_run_at = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'pending'
	`, firstRun, id)
	if err != nil {
		return fmt.Errorf("activate campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return r.missReason(ctx, id, campaign.ErrInvalidTransition)
	}
	return nil
}

func (r *CampaignRepo) Cancel(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = 'cancelled', next_run_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status IN ('pending','active')
	`, id)
	if err != nil {
		return fmt.Errorf("cancel campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return r.missReason(ctx, id, campaign.ErrInvalidTransition)
	}
	return nil
}

func (r *CampaignRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM campaigns WHERE id = $1 AND status != 'active'
	`, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return r.missReason(ctx, id, campaign.ErrInvalidTransition)
	}
	return nil
}

func (r *CampaignRepo) DueCampaigns(ctx context.Context, now time.Time, limit int) ([]domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE status = 'active' AND next_run_at IS NOT NULL AND next_run_at <= $1
		ORDER BY next_run_at ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("due campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// AdvanceCursor applies the post-dispatch state with a guard on the
// emails_sent value the caller loaded. Zero rows affected means another
// dispatcher advanced the campaign first.
func (r *CampaignRepo) AdvanceCursor(ctx context.Context, id string, loadedEmailsSent int, adv *sequence.Advancement) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET emails_sent = $1, status = $2, last_run_at = $3, next_run_at = $4, updated_at = NOW()
		WHERE id = $5 AND emails_sent = $6 AND status = 'active'
	`, adv.EmailsSent, adv.Status, adv.LastRunAt, adv.NextRunAt, id, loadedEmailsSent)
	if err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrConflict
	}
	return nil
}

func (r *CampaignRepo) InsertEvent(ctx context.Context, ev *domain.CampaignEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaign_events
			(id, campaign_id, email_number, kind, detail, recipients_ok, recipients_failed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`, ev.ID, ev.CampaignID, ev.EmailNumber, ev.Kind, ev.Detail, ev.RecipientsOK, ev.RecipientsFailed)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (r *CampaignRepo) Events(ctx context.Context, campaignID string, limit int) ([]domain.CampaignEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, campaign_id, email_number, kind, COALESCE(detail,''),
		       recipients_ok, recipients_failed, created_at
		FROM campaign_events
		WHERE campaign_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, campaignID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []domain.CampaignEvent
	for rows.Next() {
		var ev domain.CampaignEvent
		if err := rows.Scan(
			&ev.ID, &ev.CampaignID, &ev.EmailNumber, &ev.Kind, &ev.Detail,
			&ev.RecipientsOK, &ev.RecipientsFailed, &ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// missReason maps a zero-rows-affected update to the right sentinel: the
// row either does not exist or is in a status the statement excluded.
func (r *CampaignRepo) missReason(ctx context.Context, id string, inWrongState error) error {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM campaigns WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check campaign: %w", err)
	}
	if !exists {
		return campaign.ErrNotFound
	}
	return inWrongState
}
