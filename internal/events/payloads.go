package events

// BookingAttempt is the payload carried by booking.confirmed and
// booking.failed events.
type BookingAttempt struct {
	SlotID          string `json:"slot_id"`
	SlotDate        string `json:"slot_date"`
	SlotTime        string `json:"slot_time"`
	ClientName      string `json:"client_name"`
	ClientEmail     string `json:"client_email"`
	RemoteInterview bool   `json:"remote_interview"`
	Outcome         string `json:"outcome"`
	Reason          string `json:"reason,omitempty"`
}

// SnapshotRefreshed is the payload carried by snapshot.refreshed events.
type SnapshotRefreshed struct {
	Slots int `json:"slots"`
}
