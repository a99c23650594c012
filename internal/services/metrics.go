// Package services – Prometheus instrumentation.
//
// Counters here track business events rather than HTTP traffic (see the
// middleware package for the latter). Label cardinality is bounded: the only
// labeled dimension is the classification outcome, a three-value enum.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// messagesReceived counts webhook messages accepted into the store.
	messagesReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "attendance_messages_received_total",
			Help: "Total number of webhook messages persisted.",
		},
	)

	// classifications counts annotated rows by outcome (clock_in, clock_out, unclassified).
	classifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_classifications_total",
			Help: "Total number of classified messages by outcome.",
		},
		[]string{"outcome"},
	)

	// reportRuns counts report generation attempts by result.
	reportRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_report_runs_total",
			Help: "Total number of report generation runs.",
		},
		[]string{"result"},
	)

	// uploads counts report upload attempts by result.
	uploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_report_uploads_total",
			Help: "Total number of report upload attempts.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(messagesReceived, classifications, reportRuns, uploads)
}
