// Package worker runs the background dispatch pipeline: it polls for due
// campaigns, generates each campaign's next email, delivers it, and advances
// the campaign cursor.
package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/campaign-autopilot/internal/delivery"
	"github.com/ignite/campaign-autopilot/internal/domain"
	"github.com/ignite/campaign-autopilot/internal/generator"
	"github.com/ignite/campaign-autopilot/internal/pkg/distlock"
	"github.com/ignite/campaign-autopilot/internal/pkg/logger"
	"github.com/ignite/campaign-autopilot/internal/prompt"
	"github.com/ignite/campaign-autopilot/internal/sequence"
	"github.com/ignite/campaign-autopilot/internal/service/campaign"
)

// DispatcherConfig holds dispatcher tuning. GenTimeout and DeliverTimeout
// bound a single generator or sink call; the retry envelope decides how many
// such calls a dispatch gets.
type DispatcherConfig struct {
	PollInterval   time.Duration
	Workers        int
	MaxAttempts    int
	BackoffBase    time.Duration
	LockTTL        time.Duration
	GenTimeout     time.Duration
	DeliverTimeout time.Duration
	FromEmail      string
	FromName       string
}

// Dispatcher polls for due campaigns and sends the next email in each one's
// series. Multiple dispatcher instances can run against the same database;
// per-campaign locks plus the optimistic cursor guard keep them from sending
// the same email twice.
type Dispatcher struct {
	repo  campaign.Repository
	gen   generator.Generator
	sink  delivery.Sink
	redis *redis.Client
	db    *sql.DB

	workerID       string
	pollInterval   time.Duration
	numWorkers     int
	maxAttempts    int
	backoffBase    time.Duration
	lockTTL        time.Duration
	genTimeout     time.Duration
	deliverTimeout time.Duration
	fromEmail      string
	fromName       string

	// Stats
	totalDispatched int64
	totalFailed     int64
	totalConflicts  int64

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool

	queue chan domain.Campaign
	log   *logger.Logger
	now   func() time.Time
}

// NewDispatcher creates a dispatcher. The redis client may be nil, in which
// case Postgres advisory locks are used for campaign claims.
func NewDispatcher(repo campaign.Repository, gen generator.Generator, sink delivery.Sink, redisClient *redis.Client, db *sql.DB, cfg DispatcherConfig) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if cfg.GenTimeout <= 0 {
		cfg.GenTimeout = 60 * time.Second
	}
	if cfg.DeliverTimeout <= 0 {
		cfg.DeliverTimeout = 30 * time.Second
	}

	return &Dispatcher{
		repo:           repo,
		gen:            gen,
		sink:           sink,
		redis:          redisClient,
		db:             db,
		workerID:       fmt.Sprintf("dispatcher-%s", uuid.New().String()[:8]),
		pollInterval:   cfg.PollInterval,
		numWorkers:     cfg.Workers,
		maxAttempts:    cfg.MaxAttempts,
		backoffBase:    cfg.BackoffBase,
		lockTTL:        cfg.LockTTL,
		genTimeout:     cfg.GenTimeout,
		deliverTimeout: cfg.DeliverTimeout,
		fromEmail:      cfg.FromEmail,
		fromName:       cfg.FromName,
		queue:          make(chan domain.Campaign, cfg.Workers*2),
		log:            logger.Component("worker.Dispatcher"),
		now:            time.Now,
	}
}

// Start begins polling and dispatching.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher already running")
	}
	d.running = true
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.mu.Unlock()

	d.log.Info("starting", "worker_id", d.workerID, "workers", d.numWorkers, "poll_interval", d.pollInterval.String())

	for i := 0; i < d.numWorkers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}

	d.wg.Add(1)
	go d.pollLoop()

	return nil
}

// Stop drains the workers and waits for in-flight dispatches to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.cancel()
	d.mu.Unlock()

	d.wg.Wait()
	d.log.Info("stopped",
		"dispatched", atomic.LoadInt64(&d.totalDispatched),
		"failed", atomic.LoadInt64(&d.totalFailed),
		"conflicts", atomic.LoadInt64(&d.totalConflicts),
	)
}

// Stats returns cumulative dispatch counters.
func (d *Dispatcher) Stats() map[string]int64 {
	return map[string]int64{
		"total_dispatched": atomic.LoadInt64(&d.totalDispatched),
		"total_failed":     atomic.LoadInt64(&d.totalFailed),
		"total_conflicts":  atomic.LoadInt64(&d.totalConflicts),
	}
}

func (d *Dispatcher) pollLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	d.pollOnce()
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.pollOnce()
		}
	}
}

func (d *Dispatcher) pollOnce() {
	ctx, cancel := context.WithTimeout(d.ctx, 10*time.Second)
	defer cancel()

	due, err := d.repo.DueCampaigns(ctx, d.now(), 50)
	if err != nil {
		d.log.Error("poll due campaigns", "error", err.Error())
		return
	}

	for _, c := range due {
		select {
		case d.queue <- c:
		case <-d.ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) worker(workerNum int) {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case c := <-d.queue:
			if err := d.dispatch(d.ctx, &c); err != nil {
				d.log.Error("dispatch", "worker", workerNum, "campaign_id", c.ID, "error", err.Error())
			}
		}
	}
}

// dispatch sends one email for a due campaign. The per-campaign lock keeps
// other dispatcher instances off the campaign for the duration; the cursor
// guard in AdvanceCursor catches any overlap the lock misses.
func (d *Dispatcher) dispatch(ctx context.Context, stale *domain.Campaign) error {
	lock := distlock.New(d.redis, d.db, distlock.CampaignKey(stale.ID), d.lockTTL)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !acquired {
		return nil
	}
	defer lock.Release(context.Background())

	// Reload under the lock: the campaign may have been cancelled or
	// advanced since the poll.
	c, err := d.repo.Get(ctx, stale.ID)
	if err != nil {
		if errors.Is(err, campaign.ErrNotFound) {
			return nil
		}
		return err
	}
	now := d.now()
	if !c.Due(now) {
		return nil
	}

	emailNumber := sequence.CurrentEmailNumber(c)
	res, err := d.generateAndDeliver(ctx, lock, c, emailNumber, now)
	if err != nil {
		atomic.AddInt64(&d.totalFailed, 1)
		return err
	}

	adv, err := sequence.Advance(c, now)
	if err != nil {
		return fmt.Errorf("compute advancement: %w", err)
	}
	if err := d.repo.AdvanceCursor(ctx, c.ID, c.EmailsSent, adv); err != nil {
		if errors.Is(err, campaign.ErrConflict) {
			atomic.AddInt64(&d.totalConflicts, 1)
			d.log.Warn("cursor conflict, skipping", "campaign_id", c.ID, "email_number", emailNumber)
			return nil
		}
		return err
	}
	atomic.AddInt64(&d.totalDispatched, 1)

	d.recordEvent(ctx, &domain.CampaignEvent{
		CampaignID:       c.ID,
		EmailNumber:      emailNumber,
		Kind:             domain.EventDispatched,
		RecipientsOK:     res.Delivered,
		RecipientsFailed: res.Failed,
	})
	if adv.Status == domain.CampaignCompleted {
		d.recordEvent(ctx, &domain.CampaignEvent{
			CampaignID:  c.ID,
			EmailNumber: emailNumber,
			Kind:        domain.EventCompleted,
			Detail:      fmt.Sprintf("series finished after %d emails", adv.EmailsSent),
		})
		d.log.Info("campaign completed", "campaign_id", c.ID, "emails_sent", adv.EmailsSent)
	}

	d.log.Info("email dispatched",
		"campaign_id", c.ID,
		"email_number", emailNumber,
		"delivered", res.Delivered,
		"failed", res.Failed,
	)
	return nil
}

// generateAndDeliver runs the retryable section of a dispatch: content
// generation and delivery together. A delivery where every recipient failed
// counts as a failed attempt; a partial delivery does not. Each generator and
// sink call carries its own deadline so a hung backend cannot pin a worker
// goroutine for the whole lock TTL.
func (d *Dispatcher) generateAndDeliver(ctx context.Context, lock distlock.Lock, c *domain.Campaign, emailNumber int, now time.Time) (*delivery.Result, error) {
	policy := retryPolicy{maxAttempts: d.maxAttempts, base: d.backoffBase, max: 15 * time.Minute}

	var res *delivery.Result
	err := policy.do(ctx, func(attempt int) error {
		if attempt > 1 {
			// Backoff waits eat into the lock lifetime; refresh it so
			// another instance cannot claim the campaign mid-retry.
			if err := lock.Extend(ctx, d.lockTTL); err != nil {
				d.log.Warn("extend lock", "campaign_id", c.ID, "error", err.Error())
			}
		}

		p, err := prompt.BuildPrompt(c, emailNumber, c.TotalEmails, now)
		if err != nil {
			return fmt.Errorf("build prompt: %w", err)
		}

		genCtx, cancel := context.WithTimeout(ctx, d.genTimeout)
		raw, err := d.gen.Generate(genCtx, p, prompt.ModelOrDefault(c.AIAgentID))
		cancel()
		if err != nil {
			d.log.Warn("generation failed",
				"campaign_id", c.ID, "email_number", emailNumber,
				"attempt", attempt, "error", err.Error())
			return &dispatchError{kind: domain.EventGenerationFailed, err: err}
		}

		email := prompt.ParseEmail(raw)
		delCtx, cancelDel := context.WithTimeout(ctx, d.deliverTimeout)
		defer cancelDel()
		r, err := d.sink.Deliver(delCtx, &delivery.Message{
			CampaignID:  c.ID,
			EmailNumber: emailNumber,
			Subject:     email.Subject,
			Body:        email.Body,
			FromEmail:   d.fromEmail,
			FromName:    d.fromName,
			Recipients:  c.RecipientEmails,
		})
		if err != nil {
			return &dispatchError{kind: domain.EventDeliveryFailed, err: err}
		}
		if r.AllFailed() {
			return &dispatchError{kind: domain.EventDeliveryFailed, err: fmt.Errorf("all %d recipients failed", r.Failed)}
		}
		res = r
		return nil
	})
	if err != nil {
		var de *dispatchError
		kind := domain.EventDeliveryFailed
		if errors.As(err, &de) {
			kind = de.kind
		}
		d.recordEvent(ctx, &domain.CampaignEvent{
			CampaignID:  c.ID,
			EmailNumber: emailNumber,
			Kind:        kind,
			Detail:      err.Error(),
		})
		return nil, err
	}
	return res, nil
}

func (d *Dispatcher) recordEvent(ctx context.Context, ev *domain.CampaignEvent) {
	ev.ID = uuid.New().String()
	if err := d.repo.InsertEvent(ctx, ev); err != nil {
		d.log.Warn("record event", "campaign_id", ev.CampaignID, "kind", string(ev.Kind), "error", err.Error())
	}
}

// dispatchError tags a failed attempt with the event kind to record if the
// whole dispatch gives up.
type dispatchError struct {
	kind domain.EventKind
	err  error
}

func (e *dispatchError) Error() string { return e.err.Error() }
func (e *dispatchError) Unwrap() error { return e.err }
