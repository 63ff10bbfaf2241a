package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bot metrics
var (
	InboundEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qabulxona",
			Subsystem: "bot",
			Name:      "inbound_events_total",
			Help:      "Inbound events by kind and gate outcome",
		},
		[]string{"kind", "outcome"},
	)

	WizardRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qabulxona",
			Subsystem: "wizard",
			Name:      "rejections_total",
			Help:      "Inputs rejected by step validation",
		},
		[]string{"step"},
	)

	ComplaintsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qabulxona",
			Subsystem: "complaints",
			Name:      "submitted_total",
			Help:      "Complaint submissions by result",
		},
		[]string{"result"},
	)

	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qabulxona",
			Subsystem: "dispatch",
			Name:      "sends_total",
			Help:      "Outbound sends by target kind and result",
		},
		[]string{"target", "result"},
	)

	AdminCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qabulxona",
			Subsystem: "admin",
			Name:      "commands_total",
			Help:      "Admin commands by name and result",
		},
		[]string{"command", "result"},
	)

	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qabulxona",
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by job and result",
		},
		[]string{"job", "result"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "qabulxona",
			Subsystem: "wizard",
			Name:      "active_sessions",
			Help:      "Conversations currently inside the wizard",
		},
	)
)

// RecordInbound records the outcome of the inbound gates for one event.
func RecordInbound(kind, outcome string) {
	InboundEventsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordDelivery records one outbound send.
func RecordDelivery(target string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	DeliveriesTotal.WithLabelValues(target, result).Inc()
}

// RecordAdminCommand records one admin command invocation.
func RecordAdminCommand(command string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	AdminCommandsTotal.WithLabelValues(command, result).Inc()
}

// RecordJob records one scheduled job run.
func RecordJob(job string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	JobRunsTotal.WithLabelValues(job, result).Inc()
}
