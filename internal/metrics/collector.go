// Package metrics provides Prometheus metrics for procrun runs.
//
// All metrics live on the Collector instance and are registered on the
// Registerer it was created with, so tests can use a private registry.
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-procrun/internal/engine"
	"github.com/randomizedcoder/go-procrun/internal/lines"
)

const namespace = "procrun"

// Stream label values for line counters.
const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Version string
	Exe     string
}

// Collector records run outcomes, durations, stdio volume and line counts.
type Collector struct {
	info        *prometheus.GaugeVec
	runsTotal   *prometheus.CounterVec
	exitCodes   *prometheus.CounterVec
	runDuration prometheus.Histogram
	active      prometheus.Gauge
	lastExit    prometheus.Gauge
	linesTotal  *prometheus.CounterVec
	bytesTotal  *prometheus.CounterVec

	mu         sync.Mutex
	activeRuns int
	peakActive int
	completed  int64
}

// NewCollectorWithRegistry creates a collector with a custom registry.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		info: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "info",
				Help:      "Information about the runner (value always 1)",
			},
			[]string{"version", "exe"},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Completed runs by outcome",
			},
			[]string{"outcome"},
		),
		exitCodes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exit_codes_total",
				Help:      "Exit codes of launched children",
			},
			[]string{"code"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time from launch to completion",
				Buckets: []float64{
					0.01, 0.05, 0.1, 0.25, 0.5,
					1, 2.5, 5, 10, 30, 60, 300,
				},
			},
		),
		active: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_runs",
				Help:      "Children currently running",
			},
		),
		lastExit: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_exit_code",
				Help:      "Exit code of the most recent launched child",
			},
		),
		linesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lines_total",
				Help:      "Lines received from the child by stream",
			},
			[]string{"stream"},
		),
		bytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pumped_bytes_total",
				Help:      "Bytes pumped through raw stdio by direction",
			},
			[]string{"direction"},
		),
	}

	registry.MustRegister(
		c.info,
		c.runsTotal,
		c.exitCodes,
		c.runDuration,
		c.active,
		c.lastExit,
		c.linesTotal,
		c.bytesTotal,
	)

	// Pre-create label sets so every series is exported from the start.
	for _, o := range engine.Outcomes() {
		c.runsTotal.WithLabelValues(string(o))
	}
	c.linesTotal.WithLabelValues(StreamStdout)
	c.linesTotal.WithLabelValues(StreamStderr)
	c.bytesTotal.WithLabelValues("in")
	c.bytesTotal.WithLabelValues("out")

	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	c.info.WithLabelValues(version, cfg.Exe).Set(1)

	return c
}

// Callbacks returns engine callbacks that record into c and then call next.
func (c *Collector) Callbacks(next engine.Callbacks) engine.Callbacks {
	return engine.Callbacks{
		OnStateChange: next.OnStateChange,
		OnStart: func(runID string, pid int) {
			c.RunStarted()
			if next.OnStart != nil {
				next.OnStart(runID, pid)
			}
		},
		OnComplete: func(res engine.Result) {
			c.RecordResult(res)
			if next.OnComplete != nil {
				next.OnComplete(res)
			}
		},
	}
}

// RunStarted records a child launch.
func (c *Collector) RunStarted() {
	c.active.Inc()

	c.mu.Lock()
	c.activeRuns++
	if c.activeRuns > c.peakActive {
		c.peakActive = c.activeRuns
	}
	c.mu.Unlock()
}

// RecordResult records a finished run, launched or not.
func (c *Collector) RecordResult(res engine.Result) {
	c.runsTotal.WithLabelValues(string(res.Outcome())).Inc()

	if res.Started {
		c.active.Dec()
		c.runDuration.Observe(res.Duration.Seconds())
		c.exitCodes.WithLabelValues(strconv.Itoa(res.ExitCode)).Inc()
		c.lastExit.Set(float64(res.ExitCode))
		c.bytesTotal.WithLabelValues("in").Add(float64(res.BytesIn))
		c.bytesTotal.WithLabelValues("out").Add(float64(res.BytesOut))
	}

	c.mu.Lock()
	if res.Started && c.activeRuns > 0 {
		c.activeRuns--
	}
	c.completed++
	c.mu.Unlock()
}

// LineCounter returns a line handler that counts lines for stream.
func (c *Collector) LineCounter(stream string) lines.Handler {
	counter := c.linesTotal.WithLabelValues(stream)
	return func(string) {
		counter.Inc()
	}
}

// PeakActive returns the highest number of concurrently active runs.
func (c *Collector) PeakActive() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peakActive
}

// Completed returns the number of recorded results.
func (c *Collector) Completed() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}
