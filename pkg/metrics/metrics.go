// Package metrics exposes the Prometheus instruments used across the
// verification pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	HTTPRequestsTotal   prometheus.Counter
	HTTPRequestDuration prometheus.Histogram

	ScreeningsTotal     prometheus.Counter
	ScreeningMatches    prometheus.Counter
	LimitChecksTotal    prometheus.Counter
	LimitCheckWarnings  prometheus.Counter
	TransitionsTotal    *prometheus.CounterVec
	BookingsTotal       prometheus.Counter
	BookingConflicts    prometheus.Counter
	OutboxPendingEvents prometheus.Gauge
}

func New(serviceName string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tscmf",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}),
		HTTPRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tscmf",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		ScreeningsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tscmf",
			Subsystem: serviceName,
			Name:      "sanctions_screenings_total",
			Help:      "Total counterparty screenings performed",
		}),
		ScreeningMatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tscmf",
			Subsystem: serviceName,
			Name:      "sanctions_screening_matches_total",
			Help:      "Total screenings that produced at least one candidate match",
		}),
		LimitChecksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tscmf",
			Subsystem: serviceName,
			Name:      "limit_checks_total",
			Help:      "Total limit aggregation checks",
		}),
		LimitCheckWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tscmf",
			Subsystem: serviceName,
			Name:      "limit_check_warnings_total",
			Help:      "Limit checks whose overall status was WARNING",
		}),
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tscmf",
			Subsystem: serviceName,
			Name:      "transaction_transitions_total",
			Help:      "State machine transitions by target status",
		}, []string{"status"}),
		BookingsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tscmf",
			Subsystem: serviceName,
			Name:      "exposure_bookings_total",
			Help:      "Successful exposure bookings",
		}),
		BookingConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tscmf",
			Subsystem: serviceName,
			Name:      "exposure_booking_conflicts_total",
			Help:      "Bookings rejected at commit time",
		}),
		OutboxPendingEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tscmf",
			Subsystem: serviceName,
			Name:      "outbox_pending_events",
			Help:      "Lifecycle events awaiting relay to Kafka",
		}),
	}
}

// Register registers every instrument on the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ScreeningsTotal,
		m.ScreeningMatches,
		m.LimitChecksTotal,
		m.LimitCheckWarnings,
		m.TransitionsTotal,
		m.BookingsTotal,
		m.BookingConflicts,
		m.OutboxPendingEvents,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
