package models

import (
	"fmt"
	"net/mail"
	"strings"
)

// BookerInfo carries the form input for a reservation. All fields are
// ephemeral; nothing here is persisted outside the session. The
// RemoteInterview flag selects the confirmation variant sent to the
// booker and what the confirmation screen shows.
type BookerInfo struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	RemoteInterview bool   `json:"remote_interview"`
}

// ValidationError reports a rejected form field. It never leaves the
// client side of the coordinator.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid or missing field: %s", e.Field)
}

// Validate trims all text fields and checks the submit-time
// requirements: first name, last name and a plausible email address.
func (b *BookerInfo) Validate() error {
	b.FirstName = strings.TrimSpace(b.FirstName)
	b.LastName = strings.TrimSpace(b.LastName)
	b.Email = strings.TrimSpace(b.Email)

	if b.FirstName == "" {
		return &ValidationError{Field: "first_name"}
	}
	if b.LastName == "" {
		return &ValidationError{Field: "last_name"}
	}
	if b.Email == "" {
		return &ValidationError{Field: "email"}
	}
	if _, err := mail.ParseAddress(b.Email); err != nil {
		return &ValidationError{Field: "email"}
	}
	return nil
}

// FullName joins the trimmed name fields for notifications and audit rows.
func (b BookerInfo) FullName() string {
	return strings.TrimSpace(b.FirstName + " " + b.LastName)
}

// BookingStatus tags the outcome of a reservation attempt.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingFailed    BookingStatus = "failed"
)

// BookingResult is the terminal record of a commit attempt. Pending is
// only observable while the commit call is in flight.
type BookingResult struct {
	Status BookingStatus `json:"status"`
	Slot   *Slot         `json:"slot,omitempty"`
	Booker *BookerInfo   `json:"booker,omitempty"`
	Reason string        `json:"reason,omitempty"`
}
