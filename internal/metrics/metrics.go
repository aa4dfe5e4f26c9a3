// Package metrics exposes counters for the reminder engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	ScanTicks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "planner",
		Subsystem: "reminders",
		Name:      "scan_ticks_total",
		Help:      "Reminder scans run by scheduling loops.",
	})
	FetchFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "planner",
		Subsystem: "reminders",
		Name:      "fetch_failures_total",
		Help:      "Plan fetches that failed during a scan and were treated as empty.",
	})
	Delivered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "planner",
		Subsystem: "reminders",
		Name:      "delivered_total",
		Help:      "Reminders delivered.",
	})
	PresentationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "planner",
		Subsystem: "reminders",
		Name:      "presentation_failures_total",
		Help:      "Failed sound, alert or system notifications.",
	}, []string{"kind"})
	MarkerFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "planner",
		Subsystem: "reminders",
		Name:      "marker_failures_total",
		Help:      "Delivery marker reads or writes that failed.",
	})
	WriteBackFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "planner",
		Subsystem: "reminders",
		Name:      "write_back_failures_total",
		Help:      "Failed writes of the notified flag to the plan store.",
	})
	ActiveLoops = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "planner",
		Subsystem: "reminders",
		Name:      "active_loops",
		Help:      "Scheduling loops currently running.",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		ScanTicks,
		FetchFailures,
		Delivered,
		PresentationFailures,
		MarkerFailures,
		WriteBackFailures,
		ActiveLoops,
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
