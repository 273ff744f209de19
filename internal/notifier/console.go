package notifier

import (
	"context"

	"github.com/rs/zerolog"
)

// ConsoleSender logs notifications instead of delivering them. Used in
// development and when no transport is configured.
type ConsoleSender struct {
	logger zerolog.Logger
}

// NewConsoleSender creates the sender.
func NewConsoleSender(logger zerolog.Logger) *ConsoleSender {
	return &ConsoleSender{logger: logger.With().Str("component", "console_notifier").Logger()}
}

// Send implements Sender.
func (c *ConsoleSender) Send(ctx context.Context, kind Kind, f Fields) error {
	c.logger.Info().
		Str("kind", string(kind)).
		Str("email", f.Email).
		Str("date", f.SlotDate).
		Str("time", f.SlotTime).
		Bool("remote_interview", f.RemoteInterview).
		Msg("notification")
	return nil
}
