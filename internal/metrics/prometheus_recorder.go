package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "sitebuilder"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	buildDuration prom.Histogram
	buildOutcome  *prom.CounterVec
	fileDuration  *prom.HistogramVec
	fileResults   *prom.CounterVec
	filesVisited  prom.Gauge
	events        *prom.CounterVec
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Duration of a complete build pass",
			Buckets:   prom.DefBuckets,
		}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Build passes by final status",
		}, []string{"outcome"}),
		fileDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "file_duration_seconds",
			Help:      "Time spent preparing and running one file's program",
			Buckets:   prom.DefBuckets,
		}, []string{"program"}),
		fileResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "file_results_total",
			Help:      "Visited files by program and result",
		}, []string{"program", "result"}),
		filesVisited: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "files_visited",
			Help:      "Number of source files visited by the last pass",
		}),
		events: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Lifecycle events published on the build bus",
		}, []string{"event"}),
	}
	reg.MustRegister(pr.buildDuration, pr.buildOutcome, pr.fileDuration, pr.fileResults, pr.filesVisited, pr.events)
	return pr
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome string) {
	if p == nil {
		return
	}
	p.buildOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) ObserveFileDuration(program string, d time.Duration) {
	if p == nil {
		return
	}
	p.fileDuration.WithLabelValues(program).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncFileResult(program string, result ResultLabel) {
	if p == nil {
		return
	}
	p.fileResults.WithLabelValues(program, string(result)).Inc()
}

func (p *PrometheusRecorder) SetFilesVisited(n int) {
	if p == nil {
		return
	}
	p.filesVisited.Set(float64(n))
}

func (p *PrometheusRecorder) IncEvent(event string) {
	if p == nil {
		return
	}
	p.events.WithLabelValues(event).Inc()
}
