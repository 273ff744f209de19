// Package slotstore abstracts the remote slot store behind a generic
// read/patch interface and converts its loosely-typed rows into typed
// slots at the client boundary.
package slotstore

import (
	"context"
	"errors"

	"github.com/kevcor13/client-interface1/internal/models"
)

var (
	// ErrNetwork marks transport failures and timeouts.
	ErrNetwork = errors.New("slot store unreachable")
	// ErrRejected marks a non-success response to a patch.
	ErrRejected = errors.New("slot store rejected the update")
	// ErrConflict marks a failed status precondition on a conditional
	// update: the slot was no longer available when the write landed.
	ErrConflict = errors.New("slot no longer available")
	// ErrDecode marks a response body that could not be parsed at all.
	ErrDecode = errors.New("slot store returned malformed data")
)

// Patch carries the fields written when a slot is reserved.
type Patch struct {
	Status          models.SlotStatus `json:"status"`
	ClientName      string            `json:"client_name"`
	ClientEmail     string            `json:"client_email"`
	BookingDate     string            `json:"booking_date"`
	RemoteInterview bool              `json:"remote_interview,omitempty"`
}

// Store is the remote slot store as the core consumes it.
//
// List is read-only and idempotent. Patch is a single-resource partial
// update with no compare-and-swap guarantee unless the concrete backend
// advertises one; a backend that does reports a failed precondition as
// ErrConflict.
type Store interface {
	List(ctx context.Context) ([]models.Slot, error)
	Patch(ctx context.Context, id string, p Patch) error

	// Prefiltered reports whether List already returns only bookable
	// rows. When false the caller filters on status itself. This is
	// explicit configuration, never inferred from response shape.
	Prefiltered() bool
}
