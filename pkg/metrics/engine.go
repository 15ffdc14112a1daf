package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Reservation outcomes reported by the inventory ledger.
const (
	ReservationReserved     = "reserved"
	ReservationInsufficient = "insufficient"
)

// Commission record actions.
const (
	CommissionCreated = "created"
	CommissionVoided  = "voided"
)

// EngineMetrics counts booking engine outcomes. A nil receiver or one built
// without a registerer records nothing.
type EngineMetrics struct {
	reservations *prometheus.CounterVec
	seats        *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	commissions  *prometheus.CounterVec
}

// NewEngineMetrics registers the engine counters on the provided registerer.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		return &EngineMetrics{}
	}
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seat_reservations_total",
		Help: "Seat reservation attempts by outcome.",
	}, []string{"outcome"})
	seats := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seat_transitions_total",
		Help: "Seat slots moved into a status.",
	}, []string{"status"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_transitions_total",
		Help: "Booking state transitions by target status.",
	}, []string{"status"})
	commissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "commission_records_total",
		Help: "Commission records created or voided.",
	}, []string{"action"})
	reg.MustRegister(reservations, seats, transitions, commissions)
	return &EngineMetrics{
		reservations: reservations,
		seats:        seats,
		transitions:  transitions,
		commissions:  commissions,
	}
}

// ObserveReservation records one reservation attempt.
func (m *EngineMetrics) ObserveReservation(outcome string) {
	if m == nil || m.reservations == nil {
		return
	}
	m.reservations.WithLabelValues(labelOrUnknown(outcome)).Inc()
}

// AddSeatTransitions records n slots moving into status.
func (m *EngineMetrics) AddSeatTransitions(status string, n int) {
	if m == nil || m.seats == nil || n <= 0 {
		return
	}
	m.seats.WithLabelValues(labelOrUnknown(status)).Add(float64(n))
}

// IncBookingTransition records a booking entering status.
func (m *EngineMetrics) IncBookingTransition(status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(labelOrUnknown(status)).Inc()
}

// AddCommissions records n commission records for action.
func (m *EngineMetrics) AddCommissions(action string, n int) {
	if m == nil || m.commissions == nil || n <= 0 {
		return
	}
	m.commissions.WithLabelValues(labelOrUnknown(action)).Add(float64(n))
}
