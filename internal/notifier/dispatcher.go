package notifier

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/kevcor13/client-interface1/internal/metrics"
	"github.com/kevcor13/client-interface1/internal/models"
)

// DispatcherConfig tunes retry and rate limiting for outbound sends.
type DispatcherConfig struct {
	RetryDelays []time.Duration
	SendTimeout time.Duration
	// Rate and Burst bound outbound sends across all sessions.
	Rate  rate.Limit
	Burst int
}

// DefaultDispatcherConfig returns the default configuration.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		RetryDelays: []time.Duration{1 * time.Second, 5 * time.Second, 30 * time.Second},
		SendTimeout: 15 * time.Second,
		Rate:        rate.Limit(5),
		Burst:       10,
	}
}

// Dispatcher fans a booking out to the owner and client senders. The
// two sends are independent and order-insensitive; either may fail
// without affecting the other or the booking outcome.
type Dispatcher struct {
	owner   Sender
	client  Sender
	limiter *rate.Limiter
	cfg     DispatcherConfig
	logger  zerolog.Logger
}

// NewDispatcher creates a dispatcher. Either sender may be nil, in
// which case that notification is skipped.
func NewDispatcher(owner, client Sender, cfg DispatcherConfig, logger zerolog.Logger) *Dispatcher {
	if len(cfg.RetryDelays) == 0 {
		cfg.RetryDelays = DefaultDispatcherConfig().RetryDelays
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultDispatcherConfig().SendTimeout
	}
	if cfg.Rate <= 0 {
		cfg.Rate = DefaultDispatcherConfig().Rate
		cfg.Burst = DefaultDispatcherConfig().Burst
	}
	return &Dispatcher{
		owner:   owner,
		client:  client,
		limiter: rate.NewLimiter(cfg.Rate, cfg.Burst),
		cfg:     cfg,
		logger:  logger.With().Str("component", "notifier").Logger(),
	}
}

// Notify sends the owner alert and the client confirmation. It
// implements the coordinator's Notifier contract: no error return, no
// effect on the booking state.
func (d *Dispatcher) Notify(ctx context.Context, slot models.Slot, booker models.BookerInfo) {
	f := Fields{
		SlotDate:        slot.Date,
		SlotTime:        slot.Time,
		FirstName:       booker.FirstName,
		LastName:        booker.LastName,
		Email:           booker.Email,
		RemoteInterview: booker.RemoteInterview,
	}

	d.dispatch(ctx, d.owner, KindOwnerAlert, f)
	d.dispatch(ctx, d.client, KindClientConfirmation, f)
}

func (d *Dispatcher) dispatch(ctx context.Context, sender Sender, kind Kind, f Fields) {
	if sender == nil {
		return
	}
	if err := d.sendWithRetry(ctx, sender, kind, f); err != nil {
		metrics.IncNotification(string(kind), "error")
		d.logger.Error().Err(err).Str("kind", string(kind)).Msg("notification failed")
		return
	}
	metrics.IncNotification(string(kind), "ok")
	d.logger.Info().Str("kind", string(kind)).Msg("notification sent")
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, sender Sender, kind Kind, f Fields) error {
	var lastErr error
	for attempt := 0; attempt <= len(d.cfg.RetryDelays); attempt++ {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}

		sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
		err := sender.Send(sendCtx, kind, f)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt < len(d.cfg.RetryDelays) {
			delay := d.cfg.RetryDelays[attempt]
			d.logger.Debug().Err(err).Str("kind", string(kind)).
				Dur("delay", delay).Int("attempt", attempt+1).Msg("retrying notification")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}
