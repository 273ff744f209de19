// Package booking implements the slot-booking state machine: selection,
// form validation, the commit protocol and the render state exposed to
// the shell.
package booking

// State represents the current state of the booking session.
type State string

const (
	StateLoading       State = "loading"
	StateBrowsing      State = "browsing"
	StateEmpty         State = "empty"
	StateFetchFailed   State = "fetch_failed"
	StateSlotSelected  State = "slot_selected"
	StateSubmitting    State = "submitting"
	StateConfirmed     State = "confirmed"
	StateBookingFailed State = "booking_failed"
)

// FSM guards state transitions for the booking session.
type FSM struct {
	transitions map[State][]State
}

// NewFSM creates the FSM with the booking transition table. Confirmed
// is terminal. Empty and FetchFailed recover through Loading on a
// manual retry; a later successful background poll may also move them
// forward directly.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[State][]State{
			StateLoading:       {StateBrowsing, StateEmpty, StateFetchFailed},
			StateBrowsing:      {StateSlotSelected, StateEmpty, StateLoading},
			StateEmpty:         {StateLoading, StateBrowsing},
			StateFetchFailed:   {StateLoading, StateBrowsing, StateEmpty},
			StateSlotSelected:  {StateBrowsing, StateSubmitting},
			StateSubmitting:    {StateConfirmed, StateBookingFailed},
			StateBookingFailed: {StateLoading},
			StateConfirmed:     {},
		},
	}
}

// CanTransition checks if the transition is allowed.
func (f *FSM) CanTransition(from, to State) bool {
	for _, s := range f.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the state has no outgoing transitions.
func (f *FSM) Terminal(s State) bool {
	return len(f.transitions[s]) == 0
}
