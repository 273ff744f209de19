package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kevcor13/client-interface1/internal/events"
	"github.com/kevcor13/client-interface1/internal/metrics"
	"github.com/kevcor13/client-interface1/internal/models"
	"github.com/kevcor13/client-interface1/internal/poller"
	"github.com/kevcor13/client-interface1/internal/slotstore"
)

var (
	// ErrInvalidIntent is returned when an intent arrives in a state
	// that does not accept it.
	ErrInvalidIntent = errors.New("action not allowed in current state")
	// ErrSlotNotInSnapshot is returned when a selection names a slot
	// absent from the current snapshot.
	ErrSlotNotInSnapshot = errors.New("slot is not in the current snapshot")
)

// Notifier dispatches the post-commit notifications. Implementations
// are fire-and-forget: delivery failures are theirs to log and count,
// never to report back.
type Notifier interface {
	Notify(ctx context.Context, slot models.Slot, booker models.BookerInfo)
}

// Config tunes a coordinator.
type Config struct {
	// PollInterval is the background refresh cadence.
	PollInterval time.Duration
	// CommitTimeout bounds the reservation write.
	CommitTimeout time.Duration
}

// Coordinator is the booking state machine for one session. It owns the
// snapshot and the poller; the shell only sees RenderState copies and
// feeds intents back in. Transitions are serialized by the mutex, so
// poller callbacks and user intents never interleave mid-transition.
type Coordinator struct {
	store    slotstore.Store
	notifier Notifier
	bus      *events.Bus
	fsm      *FSM
	poller   *poller.Poller
	logger   zerolog.Logger

	commitTimeout time.Duration

	mu            sync.Mutex
	state         State
	snapshot      models.Snapshot
	selection     *models.Slot
	booker        models.BookerInfo
	confirmedSlot models.Slot
	reason        string
}

// New creates a coordinator in Loading state with its own poller.
func New(store slotstore.Store, notifier Notifier, bus *events.Bus, cfg Config, logger zerolog.Logger) *Coordinator {
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = 10 * time.Second
	}
	c := &Coordinator{
		store:         store,
		notifier:      notifier,
		bus:           bus,
		fsm:           NewFSM(),
		logger:        logger.With().Str("component", "coordinator").Logger(),
		commitTimeout: cfg.CommitTimeout,
		state:         StateLoading,
	}
	c.poller = poller.New(store, c, cfg.PollInterval, logger)
	return c
}

// Start launches the poll loop: one immediate refresh, then the fixed
// interval until Confirmed or Close.
func (c *Coordinator) Start(ctx context.Context) {
	go c.poller.Run(ctx)
}

// Close tears the session down, cancelling the poll loop. Idempotent.
func (c *Coordinator) Close() {
	c.poller.Stop()
}

// RefreshNow runs a single foreground refresh synchronously. Used by
// Start-less tests and by the retry intent.
func (c *Coordinator) RefreshNow(ctx context.Context) {
	c.poller.Refresh(ctx, true)
}

// ApplySnapshot implements poller.Sink. Foreground results drive
// Loading into Browsing or Empty; background results refresh the
// snapshot in place and never disturb a selection or an in-flight
// submit.
func (c *Coordinator) ApplySnapshot(snap models.Snapshot, showLoading bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fsm.Terminal(c.state) {
		return
	}

	c.snapshot = snap
	_ = c.bus.PublishJSON(events.TypeSnapshotRefreshed, events.SnapshotRefreshed{Slots: len(snap)})

	switch c.state {
	case StateLoading, StateBrowsing, StateEmpty, StateFetchFailed:
		next := StateBrowsing
		if len(snap) == 0 {
			next = StateEmpty
		}
		c.setState(next)
		c.reason = ""
	default:
		// SlotSelected, Submitting, BookingFailed: keep the displayed
		// state, the next browse sees the fresh snapshot.
	}
}

// ApplyFetchError implements poller.Sink. Only a foreground failure
// surfaces; a failed background tick keeps the existing snapshot and
// waits for the next one.
func (c *Coordinator) ApplyFetchError(err error, showLoading bool) {
	if !showLoading {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.fsm.CanTransition(c.state, StateFetchFailed) {
		return
	}
	c.reason = fetchReason(err)
	c.setState(StateFetchFailed)
}

// SelectSlot stores the chosen slot as the selection. The slot must be
// present in the current snapshot; the store is not re-checked.
func (c *Coordinator) SelectSlot(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.fsm.CanTransition(c.state, StateSlotSelected) {
		return ErrInvalidIntent
	}
	slot, ok := c.snapshot.FindByID(id)
	if !ok {
		return ErrSlotNotInSnapshot
	}
	c.selection = &slot
	c.setState(StateSlotSelected)
	return nil
}

// ChangeSelection clears the selection and returns to browsing without
// re-fetching.
func (c *Coordinator) ChangeSelection() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateSlotSelected {
		return ErrInvalidIntent
	}
	c.selection = nil
	c.setState(StateBrowsing)
	return nil
}

// Submit validates the form and commits the reservation. A validation
// failure is returned to the caller and causes no transition. A commit
// failure is not an error from the shell's point of view: the machine
// lands in BookingFailed and the render state carries the reason.
func (c *Coordinator) Submit(ctx context.Context, info models.BookerInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateSlotSelected || c.selection == nil {
		return ErrInvalidIntent
	}
	if err := info.Validate(); err != nil {
		return err
	}

	slot := *c.selection
	c.booker = info
	c.setState(StateSubmitting)

	commitCtx, cancel := context.WithTimeout(ctx, c.commitTimeout)
	defer cancel()

	patch := slotstore.Patch{
		Status:          models.SlotBooked,
		ClientName:      info.FullName(),
		ClientEmail:     info.Email,
		BookingDate:     time.Now().UTC().Format(time.RFC3339),
		RemoteInterview: info.RemoteInterview,
	}
	err := c.store.Patch(commitCtx, slot.ID, patch)
	if err != nil {
		outcome, reason := commitFailure(err)
		c.reason = reason
		c.setState(StateBookingFailed)
		metrics.IncBooking(outcome)
		c.publishAttempt(slot, info, outcome, reason)
		c.logger.Warn().Err(err).Str("slot_id", slot.ID).Msg("commit failed")
		return nil
	}

	c.confirmedSlot = slot
	c.selection = nil
	c.reason = ""
	c.setState(StateConfirmed)
	c.poller.Stop()
	metrics.IncBooking("confirmed")
	c.publishAttempt(slot, info, "confirmed", "")
	c.logger.Info().Str("slot_id", slot.ID).Str("date", slot.Date).Str("time", slot.Time).
		Msg("booking confirmed")

	// Best effort, off the transition path. Whatever happens in there
	// cannot move the machine out of Confirmed.
	go c.notifier.Notify(context.WithoutCancel(ctx), slot, c.booker)
	return nil
}

// RetryFetch re-enters Loading and polls again. Valid from Empty,
// FetchFailed and BookingFailed; the latter forces a fresh poll because
// the failure usually means the snapshot was stale.
func (c *Coordinator) RetryFetch(ctx context.Context) error {
	c.mu.Lock()
	if !c.fsm.CanTransition(c.state, StateLoading) {
		c.mu.Unlock()
		return ErrInvalidIntent
	}
	c.selection = nil
	c.reason = ""
	c.setState(StateLoading)
	c.mu.Unlock()

	// Refresh re-enters through the sink; run it outside the lock.
	c.poller.Refresh(ctx, true)
	return nil
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Result reports the outcome of the session's commit attempt.
func (c *Coordinator) Result() models.BookingResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateConfirmed:
		booker := c.booker
		slot := c.confirmedSlot
		return models.BookingResult{Status: models.BookingConfirmed, Slot: &slot, Booker: &booker}
	case StateBookingFailed:
		return models.BookingResult{Status: models.BookingFailed, Reason: c.reason}
	default:
		return models.BookingResult{Status: models.BookingPending}
	}
}

func (c *Coordinator) setState(next State) {
	if c.state == next {
		return
	}
	c.logger.Debug().Str("from", string(c.state)).Str("to", string(next)).Msg("state transition")
	c.state = next
}

func (c *Coordinator) publishAttempt(slot models.Slot, info models.BookerInfo, outcome, reason string) {
	eventType := events.TypeBookingFailed
	if outcome == "confirmed" {
		eventType = events.TypeBookingConfirmed
	}
	_ = c.bus.PublishJSON(eventType, events.BookingAttempt{
		SlotID:          slot.ID,
		SlotDate:        slot.Date,
		SlotTime:        slot.Time,
		ClientName:      info.FullName(),
		ClientEmail:     info.Email,
		RemoteInterview: info.RemoteInterview,
		Outcome:         outcome,
		Reason:          reason,
	})
}

func fetchReason(err error) string {
	switch {
	case errors.Is(err, slotstore.ErrDecode):
		return "The appointment calendar could not be read. Please try again."
	default:
		return "The appointment calendar could not be reached. Please try again."
	}
}

func commitFailure(err error) (outcome, reason string) {
	switch {
	case errors.Is(err, slotstore.ErrConflict):
		return "conflict", "That slot was just taken by someone else. Please pick another one."
	case errors.Is(err, slotstore.ErrNetwork):
		return "network", "The reservation could not be sent. Please check your connection and try again."
	default:
		return "rejected", "The reservation was not accepted. Please pick another slot."
	}
}
