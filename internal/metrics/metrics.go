// Package metrics exposes the Pipeline's prometheus instrumentation:
// archive counts by outcome, bytes transferred, and mirror-fallback events.
// A fresh Registry is created per process; sdkget has no long-lived metrics
// server and does not export the registry anywhere.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups every counter/gauge the Pipeline updates during a run.
type Metrics struct {
	Registry *prometheus.Registry

	ArchivesAttempted prometheus.Counter
	ArchivesSucceeded prometheus.Counter
	ArchivesFailed    prometheus.Counter
	BytesDownloaded   prometheus.Counter
	ChecksumMismatch  prometheus.Counter
	MirrorFallback    prometheus.Counter
	InFlightArchives  prometheus.Gauge
}

// New builds a Metrics bound to a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		ArchivesAttempted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sdkget", Name: "archives_attempted_total", Help: "Archives the pipeline began downloading.",
		}),
		ArchivesSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sdkget", Name: "archives_succeeded_total", Help: "Archives downloaded, verified, and extracted successfully.",
		}),
		ArchivesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sdkget", Name: "archives_failed_total", Help: "Archives that failed after exhausting retries/mirrors.",
		}),
		BytesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sdkget", Name: "bytes_downloaded_total", Help: "Bytes streamed from mirrors, including discarded failed attempts.",
		}),
		ChecksumMismatch: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sdkget", Name: "checksum_mismatches_total", Help: "Downloaded archives whose digest did not match the trusted-mirror checksum.",
		}),
		MirrorFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sdkget", Name: "mirror_fallback_total", Help: "Times the pipeline moved on to the next candidate mirror for an archive.",
		}),
		InFlightArchives: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sdkget", Name: "archives_in_flight", Help: "Archives currently being downloaded, verified, or extracted.",
		}),
	}
	reg.MustRegister(
		m.ArchivesAttempted, m.ArchivesSucceeded, m.ArchivesFailed,
		m.BytesDownloaded, m.ChecksumMismatch, m.MirrorFallback, m.InFlightArchives,
	)
	return m
}
