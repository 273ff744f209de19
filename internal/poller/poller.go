// Package poller owns the availability refresh loop and delivers
// snapshots to its sink.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kevcor13/client-interface1/internal/metrics"
	"github.com/kevcor13/client-interface1/internal/models"
	"github.com/kevcor13/client-interface1/internal/slotstore"
)

// DefaultInterval is the background refresh cadence.
const DefaultInterval = 30 * time.Second

// Sink receives the result of each refresh. showLoading is true for the
// initial load and user-triggered retries, false for background ticks.
type Sink interface {
	ApplySnapshot(snap models.Snapshot, showLoading bool)
	ApplyFetchError(err error, showLoading bool)
}

// Poller refreshes the slot snapshot once at start and then on a fixed
// interval until stopped. Stop is idempotent; the loop is torn down at
// most once.
type Poller struct {
	store    slotstore.Store
	sink     Sink
	interval time.Duration
	timeout  time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// New creates a poller delivering into sink.
func New(store slotstore.Store, sink Sink, interval time.Duration, logger zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		store:    store,
		sink:     sink,
		interval: interval,
		timeout:  10 * time.Second,
		logger:   logger.With().Str("component", "poller").Logger(),
		stopCh:   make(chan struct{}),
	}
}

// Run performs the initial refresh and then ticks until the context is
// cancelled or Stop is called. Intended to run on its own goroutine.
func (p *Poller) Run(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.mu.Unlock()

	p.Refresh(ctx, true)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug().Msg("poller stopped by context")
			return
		case <-p.stopCh:
			p.logger.Debug().Msg("poller stopped")
			return
		case <-ticker.C:
			p.Refresh(ctx, false)
		}
	}
}

// Refresh lists the store, filters and sorts, and hands the result to
// the sink. Failures never touch the sink's existing snapshot; they are
// routed through ApplyFetchError instead.
func (p *Poller) Refresh(ctx context.Context, showLoading bool) {
	if p.Stopped() {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	slots, err := p.store.List(callCtx)
	if err != nil {
		metrics.IncPoll("error")
		p.logger.Warn().Err(err).Bool("show_loading", showLoading).Msg("availability poll failed")
		p.sink.ApplyFetchError(err, showLoading)
		return
	}

	snap := models.Snapshot(slots)
	if !p.store.Prefiltered() {
		snap = snap.FilterAvailable()
	}
	snap.Sort()

	metrics.IncPoll("ok")
	metrics.SetSnapshotSize(len(snap))
	p.sink.ApplySnapshot(snap, showLoading)
}

// Stop tears the loop down. Safe to call more than once and before Run.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.stopCh:
	default:
		close(p.stopCh)
	}
	p.running = false
}

// Stopped reports whether Stop has been called.
func (p *Poller) Stopped() bool {
	select {
	case <-p.stopCh:
		return true
	default:
		return false
	}
}
