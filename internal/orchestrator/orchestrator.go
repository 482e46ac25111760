// Package orchestrator drives procrun: preflight, metrics, one or more runs
// of the configured tool, the optional live viewer and the exit summary.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/randomizedcoder/go-procrun/internal/cmdline"
	"github.com/randomizedcoder/go-procrun/internal/config"
	"github.com/randomizedcoder/go-procrun/internal/engine"
	"github.com/randomizedcoder/go-procrun/internal/lines"
	"github.com/randomizedcoder/go-procrun/internal/logging"
	"github.com/randomizedcoder/go-procrun/internal/metrics"
	"github.com/randomizedcoder/go-procrun/internal/preflight"
	"github.com/randomizedcoder/go-procrun/internal/script"
	"github.com/randomizedcoder/go-procrun/internal/stats"
	"github.com/randomizedcoder/go-procrun/internal/timeseries"
	"github.com/randomizedcoder/go-procrun/internal/tui"
)

const (
	// viewerBuffer is the per-stream line buffer between engine and viewer.
	viewerBuffer = 10000

	recentStderrLines = 10
)

// Streams are the orchestrator's own standard streams.
type Streams struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStreams replaces os.Stdin, os.Stdout and os.Stderr.
func WithStreams(s Streams) Option {
	return func(o *Orchestrator) { o.streams = s }
}

// WithPacer replaces the time-seeded pacer.
func WithPacer(p *Pacer) Option {
	return func(o *Orchestrator) { o.pacer = p }
}

// WithVersion sets the version reported by procrun_info.
func WithVersion(v string) Option {
	return func(o *Orchestrator) { o.version = v }
}

// Orchestrator coordinates all components for a procrun invocation.
type Orchestrator struct {
	config  *config.Config
	exec    engine.ExecConfig
	logger  *slog.Logger
	streams Streams
	version string

	engine  *engine.Engine
	scripts *script.Runner
	pacer   *Pacer

	registry      *prometheus.Registry
	metrics       *metrics.Collector
	metricsServer *metrics.Server
	summary       *stats.RunSummary
	stderrLog     *logging.StderrHandler

	startTime time.Time
}

// New creates an Orchestrator with the given configuration. cfg must have
// passed config.Validate.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Orchestrator, error) {
	execCfg, err := cfg.ExecConfig()
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		config:  cfg,
		exec:    execCfg,
		logger:  logger,
		streams: Streams{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr},
		version: "dev",
		pacer:   NewPacer(cfg.Interval, cfg.Jitter),
		summary: stats.NewRunSummary(),
	}
	for _, opt := range opts {
		opt(o)
	}

	o.registry = prometheus.NewRegistry()
	o.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	o.metrics = metrics.NewCollectorWithRegistry(metrics.CollectorConfig{
		Version: o.version,
		Exe:     execCfg.ExeName,
	}, o.registry)
	if cfg.MetricsAddr != "" {
		o.metricsServer = metrics.NewServer(cfg.MetricsAddr, o.registry, logger)
	}

	o.engine = engine.New(engine.Config{
		Exec:   execCfg,
		Logger: logger,
		Callbacks: o.metrics.Callbacks(engine.Callbacks{
			OnStateChange: o.onStateChange,
			OnComplete:    o.onComplete,
		}),
	})
	o.scripts = script.NewRunner(o.engine,
		script.WithExt(cfg.ScriptExt),
		script.WithLogger(logger),
	)

	o.stderrLog = logging.NewStderrHandler(logger, cfg.Verbose)
	o.engine.ErrorReceived().Subscribe(o.stderrLog.HandleLine)
	o.engine.ErrorReceived().Subscribe(o.metrics.LineCounter(metrics.StreamStderr))
	o.engine.OutputReceived().Subscribe(o.metrics.LineCounter(metrics.StreamStdout))

	return o, nil
}

// Run executes the configured runs. It blocks until they finish or ctx is
// cancelled, and returns the last run failure, if any.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.startTime = time.Now()
	defer o.engine.Close()

	if !o.config.SkipPreflight {
		result := preflight.RunAll(o.exec.ExePath(), o.preflightTempDir())
		if !result.Passed || o.config.Verbose {
			preflight.PrintResults(o.streams.Stderr, result)
		}
		if !result.Passed {
			return fmt.Errorf("preflight checks failed (use -skip-preflight to override)")
		}
	}

	if o.metricsServer != nil {
		if err := o.metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer o.shutdownMetrics()
	}

	o.logger.Info("runs_starting",
		"exe", o.exec.ExePath(),
		"runs", o.config.Repeat,
		"async", o.config.Async,
		"estimated_pause", o.pacer.EstimatedPause(o.config.Repeat).String(),
	)

	var err error
	if o.config.TUIEnabled {
		err = o.runWithViewer(ctx)
	} else {
		err = o.runWithEcho(ctx)
	}

	o.logger.Info("runs_finished",
		"elapsed", time.Since(o.startTime).String(),
		"runs", o.summary.Snapshot().Runs,
		"outcome", string(engine.Classify(err)),
	)

	if o.config.PrintMetrics {
		if werr := metrics.WriteText(o.streams.Stderr, o.registry, "procrun_"); werr != nil {
			o.logger.Warn("print_metrics_failed", "error", werr)
		}
	}
	if o.config.Repeat > 1 || o.config.Verbose || o.config.TUIEnabled {
		o.printExitSummary()
	}

	return err
}

// runWithEcho copies child lines to our own streams while the runs execute.
func (o *Orchestrator) runWithEcho(ctx context.Context) error {
	if !o.config.RawOutput() {
		unsub := o.engine.OutputReceived().Subscribe(func(line string) {
			fmt.Fprintln(o.streams.Stdout, line)
		})
		defer unsub()
	}
	unsub := o.engine.ErrorReceived().Subscribe(func(line string) {
		fmt.Fprintln(o.streams.Stderr, line)
	})
	defer unsub()

	return o.runAll(ctx)
}

// runWithViewer runs under the live viewer. Quitting the viewer aborts any
// run still in flight.
func (o *Orchestrator) runWithViewer(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stdoutCh := lines.NewChannel(metrics.StreamStdout, viewerBuffer, 0.01)
	stderrCh := lines.NewChannel(metrics.StreamStderr, viewerBuffer, 0.01)
	unsubOut := o.engine.OutputReceived().Subscribe(stdoutCh.Handler())
	unsubErr := o.engine.ErrorReceived().Subscribe(stderrCh.Handler())

	rate := timeseries.NewRateTracker()
	unsubRateOut := o.engine.OutputReceived().Subscribe(rate.Count)
	unsubRateErr := o.engine.ErrorReceived().Subscribe(rate.Count)
	defer func() {
		unsubOut()
		unsubErr()
		unsubRateOut()
		unsubRateErr()
		stdoutCh.Close()
		stderrCh.Close()
	}()

	model := tui.New(tui.Config{
		Command:     o.commandString(),
		MetricsAddr: o.metricsAddr(),
		Status:      o.engine,
		Stdout:      stdoutCh,
		Stderr:      stderrCh,
		Rate:        rate,
		Summary:     o.summary.Snapshot,
		OnQuit:      cancel,
	})
	p := tea.NewProgram(model, tea.WithAltScreen())

	done := make(chan error, 1)
	go func() {
		err := o.runAll(ctx)
		tui.SendDone(p, err)
		done <- err
	}()

	if _, err := p.Run(); err != nil {
		o.logger.Warn("tui_failed", "error", err)
	}
	cancel()

	err := <-done
	for _, ch := range []*lines.Channel{stdoutCh, stderrCh} {
		if read, dropped := ch.Stats(); dropped > 0 {
			o.logger.Info("viewer_dropped_lines", "stream", ch.Stream(), "read", read, "dropped", dropped)
		}
	}
	return err
}

// runAll executes the configured number of runs in sequence. A failed run
// does not stop the sequence; an aborted one does.
func (o *Orchestrator) runAll(ctx context.Context) error {
	var out io.Writer
	if o.config.RawOutput() {
		w, closeOut, err := o.openOutput()
		if err != nil {
			return err
		}
		defer closeOut()
		out = w
	}

	var lastErr error
	for i := 0; i < o.config.Repeat; i++ {
		if err := o.pacer.Wait(ctx, i); err != nil {
			o.logger.Info("runs_cancelled", "completed", i, "target", o.config.Repeat)
			if lastErr == nil {
				lastErr = fmt.Errorf("interrupted before run %d: %w", i+1, context.Cause(ctx))
			}
			break
		}

		err := o.runOnce(ctx, out)
		if err != nil {
			lastErr = err
			if errors.Is(err, engine.ErrAborted) {
				break
			}
		}

		if o.config.Repeat > 1 {
			o.logger.Info("run_progress", "completed", i+1, "target", o.config.Repeat, "outcome", string(engine.Classify(err)))
		}
	}

	return lastErr
}

func (o *Orchestrator) runOnce(ctx context.Context, out io.Writer) error {
	if o.config.Async {
		return o.runAsync(ctx)
	}

	in, closeIn, err := o.openInput()
	if err != nil {
		return err
	}
	defer closeIn()

	if o.config.InlineScript != "" {
		return o.scripts.Run(ctx, o.config.InlineScript, o.config.Args, in, out)
	}
	return o.engine.Run(ctx, o.config.Script, o.config.Args, in, out)
}

// runAsync starts the run and waits on its future.
func (o *Orchestrator) runAsync(ctx context.Context) error {
	var (
		f   *engine.Future
		err error
	)
	if o.config.InlineScript != "" {
		f, err = o.scripts.RunAsync(ctx, o.config.InlineScript, o.config.Args)
	} else {
		f, err = o.engine.RunAsync(ctx, o.config.Script, o.config.Args)
	}
	if err != nil {
		return err
	}

	o.logger.Debug("run_async_started", "run_id", f.RunID(), "pid", o.engine.PID())

	if err := f.Wait(ctx); ctx.Err() == nil {
		return err
	}
	// Cancellation aborts the child; the future still settles.
	<-f.Done()
	return f.Err()
}

// openInput opens the -stdin source for one run. A nil reader means the
// child's stdin stays open for the engine's WriteLine/WriteEnd.
func (o *Orchestrator) openInput() (io.Reader, func(), error) {
	switch o.config.StdinPath {
	case "":
		return nil, func() {}, nil
	case "-":
		return o.streams.Stdin, func() {}, nil
	}

	f, err := os.Open(o.config.StdinPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open stdin file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

// openOutput opens the -stdout destination once for all runs.
func (o *Orchestrator) openOutput() (io.Writer, func(), error) {
	if o.config.StdoutPath == "-" {
		return o.streams.Stdout, func() {}, nil
	}

	f, err := os.Create(o.config.StdoutPath)
	if err != nil {
		return nil, nil, fmt.Errorf("create stdout file: %w", err)
	}
	return f, func() {
		if err := f.Close(); err != nil {
			o.logger.Warn("stdout_close_failed", "path", o.config.StdoutPath, "error", err)
		}
	}, nil
}

func (o *Orchestrator) preflightTempDir() string {
	if o.config.InlineScript == "" {
		return ""
	}
	if o.exec.TempDir != "" {
		return o.exec.TempDir
	}
	return os.TempDir()
}

func (o *Orchestrator) shutdownMetrics() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := o.metricsServer.Shutdown(ctx); err != nil {
		o.logger.Warn("metrics_server_shutdown_error", "error", err)
	}
}

// Callback handlers

func (o *Orchestrator) onStateChange(oldState, newState engine.State) {
	o.logger.Debug("engine_state", "from", oldState.String(), "to", newState.String())
}

func (o *Orchestrator) onComplete(res engine.Result) {
	o.summary.Record(res)
}

// printExitSummary prints a summary of all runs.
func (o *Orchestrator) printExitSummary() {
	fmt.Fprint(o.streams.Stderr, stats.FormatExitSummary(o.summary.Snapshot(), stats.SummaryConfig{
		Command:      o.commandString(),
		MetricsAddr:  o.metricsAddr(),
		RecentStderr: o.stderrLog.RecentLines(recentStderrLines),
		ErrorCounts:  o.stderrLog.CountErrors(),
	}))
}

func (o *Orchestrator) commandString() string {
	return CommandString(o.config, o.exec)
}

func (o *Orchestrator) metricsAddr() string {
	if o.metricsServer == nil {
		return ""
	}
	return o.metricsServer.Addr()
}

// CommandString renders the command line for cfg, for display. Inline
// scripts show a placeholder for the temporary file.
func CommandString(cfg *config.Config, execCfg engine.ExecConfig) string {
	scriptPath := cfg.Script
	if cfg.InlineScript != "" {
		pattern := script.DefaultPrefix + "-*" + cfg.ScriptExt
		if execCfg.TempDir != "" {
			pattern = filepath.Join(execCfg.TempDir, pattern)
		}
		scriptPath = "<" + pattern + ">"
	}

	argv, err := cmdline.NewShellBuilder().Build(execCfg.CustomArgs, scriptPath, cfg.Args)
	if err != nil {
		return fmt.Sprintf("%s (invalid -args: %v)", execCfg.ExePath(), err)
	}
	return cmdline.String(execCfg.ExePath(), argv)
}

// Summary returns the aggregated results so far.
func (o *Orchestrator) Summary() *stats.Snapshot {
	return o.summary.Snapshot()
}

// Registry returns the metrics registry for external access.
func (o *Orchestrator) Registry() *prometheus.Registry {
	return o.registry
}

// Engine returns the engine for external access.
func (o *Orchestrator) Engine() *engine.Engine {
	return o.engine
}
