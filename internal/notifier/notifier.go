// Package notifier dispatches the post-commit booking notifications:
// an alert to the operator and a confirmation to the booker. Delivery
// is best effort; failures are logged and counted, never surfaced.
package notifier

import "context"

// Kind distinguishes the two notification variants.
type Kind string

const (
	KindOwnerAlert         Kind = "owner_alert"
	KindClientConfirmation Kind = "client_confirmation"
)

// Fields carries everything a backend needs to format a message.
type Fields struct {
	SlotDate        string
	SlotTime        string
	FirstName       string
	LastName        string
	Email           string
	RemoteInterview bool
}

// Sender delivers a single notification over a concrete transport.
type Sender interface {
	Send(ctx context.Context, kind Kind, f Fields) error
}
