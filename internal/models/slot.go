// Package models defines the domain entities shared by the booking core.
package models

import "sort"

// SlotStatus is the availability state of a slot at the remote store.
type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
)

// Slot is a bookable appointment unit. ID is assigned by the store and
// opaque to the core. Date and Time stay in the store-native string
// representation; ordering is lexicographic on both.
type Slot struct {
	ID     string     `json:"id"`
	Date   string     `json:"date"`
	Time   string     `json:"time"`
	Status SlotStatus `json:"status,omitempty"`
}

// Snapshot is the locally held view of open slots, rebuilt wholesale on
// every successful poll.
type Snapshot []Slot

// Sort orders the snapshot by date ascending, then time ascending.
func (s Snapshot) Sort() {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Date != s[j].Date {
			return s[i].Date < s[j].Date
		}
		return s[i].Time < s[j].Time
	})
}

// FindByID returns the slot with the given id, if present.
func (s Snapshot) FindByID(id string) (Slot, bool) {
	for _, slot := range s {
		if slot.ID == id {
			return slot, true
		}
	}
	return Slot{}, false
}

// FilterAvailable returns only the slots with status available. Used
// when the store hands back unfiltered rows.
func (s Snapshot) FilterAvailable() Snapshot {
	out := make(Snapshot, 0, len(s))
	for _, slot := range s {
		if slot.Status == SlotAvailable {
			out = append(out, slot)
		}
	}
	return out
}

// DayGroup is a snapshot slice for a single calendar date, in time order.
type DayGroup struct {
	Date  string `json:"date"`
	Slots []Slot `json:"slots"`
}

// GroupByDate splits a sorted snapshot into per-date groups, preserving
// order. The receiver must already be sorted.
func (s Snapshot) GroupByDate() []DayGroup {
	var groups []DayGroup
	for _, slot := range s {
		if n := len(groups); n == 0 || groups[n-1].Date != slot.Date {
			groups = append(groups, DayGroup{Date: slot.Date})
		}
		last := &groups[len(groups)-1]
		last.Slots = append(last.Slots, slot)
	}
	return groups
}

// Clone returns a copy the rendering shell may hold without aliasing
// the coordinator's snapshot.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	copy(out, s)
	return out
}
