package slotstore

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kevcor13/client-interface1/internal/models"
)

// rawSlot mirrors a store row before validation. The id may arrive as a
// string or a number depending on the backend.
type rawSlot struct {
	ID     json.RawMessage `json:"id"`
	Date   string          `json:"date"`
	Time   string          `json:"time"`
	Status string          `json:"status"`
}

// decodeSlots parses a raw store payload into typed slots. Rows missing
// a required field are dropped; the dropped count is returned so the
// caller can log it. A body that is not a slot array at all fails with
// ErrDecode.
func decodeSlots(data []byte) ([]models.Slot, int, error) {
	var rows []rawSlot
	if err := json.Unmarshal(data, &rows); err != nil {
		// Some stores wrap the array in an envelope.
		var wrap struct {
			Slots []rawSlot `json:"slots"`
		}
		if err2 := json.Unmarshal(data, &wrap); err2 != nil || wrap.Slots == nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		rows = wrap.Slots
	}

	slots := make([]models.Slot, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		slot, ok := row.toSlot()
		if !ok {
			dropped++
			continue
		}
		slots = append(slots, slot)
	}
	return slots, dropped, nil
}

func (r rawSlot) toSlot() (models.Slot, bool) {
	id := normalizeID(r.ID)
	if id == "" || strings.TrimSpace(r.Date) == "" || strings.TrimSpace(r.Time) == "" {
		return models.Slot{}, false
	}
	return models.Slot{
		ID:     id,
		Date:   strings.TrimSpace(r.Date),
		Time:   strings.TrimSpace(r.Time),
		Status: normalizeStatus(r.Status),
	}, true
}

// normalizeID renders a JSON string or number id as its canonical
// string form.
func normalizeID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func normalizeStatus(s string) models.SlotStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "booked", "reserved", "taken":
		return models.SlotBooked
	case "", "available", "open", "free":
		return models.SlotAvailable
	default:
		// Unknown statuses are treated as unavailable rather than
		// surfaced to the user.
		return models.SlotBooked
	}
}
