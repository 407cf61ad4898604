// Package metrics defines the process-wide Prometheus collectors served at
// /metrics, grounded on the teacher's own metrics package: a flat var block
// of promauto-registered collectors with a "netpulse_" prefix.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netpulse_probes_total",
		Help: "Total number of ICMP probes sent, by outcome.",
	}, []string{"outcome"})

	ProbeLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "netpulse_probe_latency_seconds",
		Help:    "Observed round-trip latency of successful ICMP probes.",
		Buckets: prometheus.DefBuckets,
	})

	AlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netpulse_alerts_total",
		Help: "Total number of alerts raised, by type and severity.",
	}, []string{"type", "severity"})

	HostsMonitored = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "netpulse_hosts_monitored",
		Help: "Number of hosts currently under active ICMP monitoring.",
	})

	ScanDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "netpulse_scan_duration_seconds",
		Help:    "Duration of a scheduled port scan run across all its ports.",
		Buckets: prometheus.DefBuckets,
	})

	ScansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netpulse_scans_total",
		Help: "Total number of scheduled port scans performed.",
	})

	PortChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netpulse_port_changes_total",
		Help: "Total number of port state changes detected, by change type.",
	}, []string{"change_type"})

	SnmpPollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netpulse_snmp_polls_total",
		Help: "Total number of SNMP polls performed, by outcome.",
	}, []string{"outcome"})

	WebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netpulse_webhook_deliveries_total",
		Help: "Total number of webhook delivery attempts, by outcome.",
	}, []string{"outcome"})
)
