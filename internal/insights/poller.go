package insights

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/keepstack/keepsync/internal/cursor"
	"github.com/keepstack/keepsync/internal/feed"
	"github.com/keepstack/keepsync/internal/notify"
	apperrors "github.com/keepstack/keepsync/pkg/errors"
	"github.com/keepstack/keepsync/pkg/logger"
	"github.com/keepstack/keepsync/pkg/metrics"
)

// DefaultInterval is the gap between poll cycles.
const DefaultInterval = 15 * time.Second

// State is the poller lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateStopped State = "stopped"
)

// Stats is a snapshot of poller activity for the status API.
type Stats struct {
	State          State     `json:"state"`
	Cycles         uint64    `json:"cycles"`
	FailedCycles   uint64    `json:"failed_cycles"`
	Delivered      uint64    `json:"delivered"`
	LastCycleAt    time.Time `json:"last_cycle_at,omitzero"`
	LastDeliveryAt time.Time `json:"last_delivery_at,omitzero"`
	Cursor         time.Time `json:"cursor,omitzero"`
}

// Poller drives the sync loop: fetch the feed, select new insights against the
// cursor, deliver notifications, persist the advanced cursor. Cycles are
// serialized; a slow cycle delays the next tick instead of overlapping it.
type Poller struct {
	feed      feed.Client
	cursors   cursor.Store
	deliverer notify.Deliverer
	journal   *Journal

	interval time.Duration
	now      func() time.Time
	cron     *cron.Cron
	log      *zap.Logger

	cycleMu sync.Mutex

	mu    sync.Mutex
	state State
	entry cron.EntryID
	stats Stats
}

// Option customises the Poller.
type Option func(*Poller)

// WithInterval overrides the polling interval.
func WithInterval(interval time.Duration) Option {
	return func(p *Poller) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithNow overrides the clock, primarily for testing.
func WithNow(now func() time.Time) Option {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(p *Poller) {
		if c != nil {
			p.cron = c
		}
	}
}

// NewPoller constructs a poller. The journal may be nil to disable delivery
// journaling.
func NewPoller(feedClient feed.Client, cursors cursor.Store, deliverer notify.Deliverer, journal *Journal, opts ...Option) (*Poller, error) {
	if feedClient == nil {
		return nil, errors.New("poller: feed client is required")
	}
	if cursors == nil {
		return nil, errors.New("poller: cursor store is required")
	}
	if deliverer == nil {
		return nil, errors.New("poller: deliverer is required")
	}

	p := &Poller{
		feed:      feedClient,
		cursors:   cursors,
		deliverer: deliverer,
		journal:   journal,
		interval:  DefaultInterval,
		now:       time.Now,
		log:       logger.WithModule("poller"),
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.cron == nil {
		p.cron = cron.New(
			cron.WithLogger(cron.DiscardLogger),
			cron.WithChain(cron.DelayIfStillRunning(cron.DiscardLogger)),
		)
	}
	p.stats.State = StateIdle
	return p, nil
}

// Start runs one cycle immediately, then schedules recurring cycles at the
// configured interval. Starting an already running poller is a no-op.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.state == StateRunning {
		p.mu.Unlock()
		return nil
	}
	p.state = StateRunning
	p.stats.State = StateRunning
	p.mu.Unlock()

	if err := p.RunCycle(ctx); err != nil {
		p.log.Warn("initial sync cycle failed", zap.Error(err))
	}

	entry, err := p.cron.AddFunc(fmt.Sprintf("@every %s", p.interval), func() {
		if err := p.RunCycle(context.Background()); err != nil {
			p.log.Warn("sync cycle failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("poller: schedule: %w", err)
	}

	p.mu.Lock()
	p.entry = entry
	p.mu.Unlock()

	p.cron.Start()
	p.log.Info("poller started", zap.Duration("interval", p.interval))
	return nil
}

// Stop cancels future cycles and waits for any in-flight cycle to finish. An
// in-flight fetch is not aborted; a late cursor write is harmless.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.state != StateRunning {
		p.mu.Unlock()
		return
	}
	p.state = StateStopped
	p.stats.State = StateStopped
	p.cron.Remove(p.entry)
	p.mu.Unlock()

	<-p.cron.Stop().Done()
	p.log.Info("poller stopped")
}

// State returns the current lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Snapshot returns a copy of the current stats.
func (p *Poller) Snapshot() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// RunCycle executes a single fetch-select-deliver-persist cycle. Cycles are
// mutually exclusive; a concurrent call blocks until the running cycle ends.
func (p *Poller) RunCycle(ctx context.Context) error {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	err := p.cycle(ctx)

	p.mu.Lock()
	p.stats.Cycles++
	p.stats.LastCycleAt = p.now()
	if err != nil {
		p.stats.FailedCycles++
	}
	p.mu.Unlock()

	if err != nil {
		metrics.SyncCycles.WithLabelValues("error").Inc()
	} else {
		metrics.SyncCycles.WithLabelValues("ok").Inc()
	}
	return err
}

func (p *Poller) cycle(ctx context.Context) error {
	records, err := p.feed.Fetch(ctx)
	if err != nil {
		// A failed fetch is a no-op cycle: no delivery, no cursor change.
		return fmt.Errorf("poller: fetch: %w", err)
	}

	current, found, err := p.cursors.Get(ctx)
	readFailed := err != nil
	if readFailed {
		// A read failure suppresses delivery for this cycle only. The stored
		// watermark may still be intact, so no cursor write happens either;
		// arming would roll the cursor back behind insights already handled.
		p.log.Warn("cursor read failed, suppressing delivery for this cycle", zap.Error(err))
		current, found = time.Time{}, false
	}
	if !found {
		current = time.Time{}
	}

	selection := Select(records, current)

	var delivered int
	var deliveryErrs error
	for _, record := range selection.Deliver {
		notification := notify.FromRecord(record)
		if err := p.deliverer.Deliver(ctx, notification); err != nil {
			deliveryErrs = multierr.Append(deliveryErrs, fmt.Errorf("insight %s: %w", record.ID, err))
			metrics.DeliveryFailures.Inc()
			continue
		}

		delivered++
		metrics.InsightsDelivered.Inc()
		if p.journal != nil {
			if err := p.journal.Record(ctx, record, notification, p.now()); err != nil {
				p.log.Warn("journal write failed", zap.String("insight_id", record.ID), zap.Error(err))
			}
		}
	}

	if delivered > 0 {
		p.mu.Lock()
		p.stats.Delivered += uint64(delivered)
		p.stats.LastDeliveryAt = p.now()
		p.mu.Unlock()
	}

	if readFailed {
		return apperrors.ErrPersistence.WithInternal(fmt.Errorf("poller: read cursor: %w", err))
	}

	if !selection.NewCursor.IsZero() && !selection.NewCursor.Equal(current) {
		if err := p.cursors.Set(ctx, selection.NewCursor); err != nil {
			// The next cycle re-reads storage; re-delivery of a still-unread
			// insight is bounded by the read state, not the cursor alone.
			deliveryErrs = multierr.Append(deliveryErrs, fmt.Errorf("poller: persist cursor: %w", err))
		} else {
			p.mu.Lock()
			p.stats.Cursor = selection.NewCursor
			p.mu.Unlock()
			metrics.CursorTimestamp.Set(float64(selection.NewCursor.Unix()))
		}
	}

	if selection.FirstRun {
		p.log.Info("cursor armed on first run",
			zap.Time("cursor", selection.NewCursor),
			zap.Int("records", len(records)),
		)
	} else if delivered > 0 || deliveryErrs != nil {
		p.log.Info("sync cycle delivered",
			zap.Int("delivered", delivered),
			zap.Int("selected", len(selection.Deliver)),
			zap.Time("cursor", selection.NewCursor),
		)
	}

	if deliveryErrs != nil {
		return apperrors.ErrDelivery.WithInternal(deliveryErrs)
	}
	return nil
}
