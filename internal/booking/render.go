package booking

import "github.com/kevcor13/client-interface1/internal/models"

// RenderState is the read-only view handed to the rendering shell. Each
// state carries exactly the data that screen needs; everything else is
// omitted.
type RenderState struct {
	State State `json:"state"`
	// Days holds the snapshot grouped by date while browsing.
	Days []models.DayGroup `json:"days,omitempty"`
	// Selected is set while a slot is chosen or submitting.
	Selected *models.Slot `json:"selected,omitempty"`
	// Slot and Booker carry the committed reservation on Confirmed.
	Slot   *models.Slot       `json:"slot,omitempty"`
	Booker *models.BookerInfo `json:"booker,omitempty"`
	// Reason is the human-readable failure text on FetchFailed and
	// BookingFailed.
	Reason string `json:"reason,omitempty"`
}

// Render builds the current RenderState. The returned value shares
// nothing mutable with the coordinator.
func (c *Coordinator) Render() RenderState {
	c.mu.Lock()
	defer c.mu.Unlock()

	rs := RenderState{State: c.state}
	switch c.state {
	case StateBrowsing:
		rs.Days = c.snapshot.Clone().GroupByDate()
	case StateSlotSelected, StateSubmitting:
		slot := *c.selection
		rs.Selected = &slot
	case StateConfirmed:
		slot := c.confirmedSlot
		booker := c.booker
		rs.Slot = &slot
		rs.Booker = &booker
	case StateFetchFailed, StateBookingFailed:
		rs.Reason = c.reason
	}
	return rs
}
