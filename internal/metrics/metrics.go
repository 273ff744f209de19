package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	polls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotbooking",
			Name:      "polls_total",
			Help:      "Count of availability polls by result.",
		},
		[]string{"result"},
	)

	snapshotSlots = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "slotbooking",
			Name:      "snapshot_slots",
			Help:      "Open slots in the most recent snapshot.",
		},
	)

	bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotbooking",
			Name:      "bookings_total",
			Help:      "Count of commit attempts by outcome.",
		},
		[]string{"outcome"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotbooking",
			Name:      "notifications_total",
			Help:      "Count of notification sends by kind and result.",
		},
		[]string{"kind", "result"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "slotbooking",
			Name:      "sessions_active",
			Help:      "Booking sessions currently alive.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(polls, snapshotSlots, bookings, notifications, activeSessions)
	})
}

func IncPoll(result string) {
	polls.WithLabelValues(result).Inc()
}

func SetSnapshotSize(n int) {
	snapshotSlots.Set(float64(n))
}

func IncBooking(outcome string) {
	bookings.WithLabelValues(outcome).Inc()
}

func IncNotification(kind, result string) {
	notifications.WithLabelValues(kind, result).Inc()
}

func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}
