/**
 * Diagnostic Executor.
 *
 * Drains the Scheduler's diagnostic channel in FIFO order, runs the
 * requested diagnostic against the probe engine and path analyzer, and
 * records the outcome in a bounded run-history ring.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package daemon

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/netdiag/netdiag/internal/errs"
	"github.com/netdiag/netdiag/internal/models"
	"github.com/netdiag/netdiag/internal/pathanalyzer"
	"github.com/netdiag/netdiag/internal/probe"
	"github.com/netdiag/netdiag/internal/providers"
)

// defaultMaxHistory bounds the DiagnosticRun history ring when the config
// does not override it.
const defaultMaxHistory = 1000

// defaultDiagnosticTarget is the well-known address quick/full diagnostics
// probe against absent a more specific configured target.
const defaultDiagnosticTarget = "1.1.1.1"

// Prober is the slice of the probe engine the executor drives; satisfied
// by *probe.Engine and by test fakes.
type Prober interface {
	Pinger
	Traceroute(ctx context.Context, target string, cfg probe.TracerouteConfig) (*models.TracerouteResult, error)
}

// Executor drains DiagnosticRequests and executes them against the real
// probe engine, path analyzer, and (where available) WiFi provider.
type Executor struct {
	in         <-chan models.DiagnosticRequest
	maxHistory int

	probeEngine Prober
	analyzer    *pathanalyzer.Analyzer
	net         providers.NetworkProvider
	wifi        providers.WifiProvider

	onComplete func(jobName string, completedAt time.Time)
	completed  *uint64 // shared counter with the owning Service
	persist    func(models.DiagnosticRun)

	mu   sync.RWMutex
	runs []models.DiagnosticRun

	logger *zap.SugaredLogger
}

// NewExecutor constructs an Executor. onComplete, if non-nil, is called
// after every run so the Scheduler can record LastRun feedback. completed,
// if non-nil, is atomically incremented on every finished run so Service
// can report diagnostics_run over IPC without its own bookkeeping.
func NewExecutor(
	in <-chan models.DiagnosticRequest,
	maxHistory int,
	probeEngine Prober,
	analyzer *pathanalyzer.Analyzer,
	net providers.NetworkProvider,
	wifi providers.WifiProvider,
	onComplete func(string, time.Time),
	completed *uint64,
	logger *zap.Logger,
) *Executor {
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}
	return &Executor{
		in: in, maxHistory: maxHistory,
		probeEngine: probeEngine, analyzer: analyzer, net: net, wifi: wifi,
		onComplete: onComplete, completed: completed, logger: sugar(logger),
	}
}

// WithPersistence registers a callback invoked after every completed run so
// a durable store (internal/store) can mirror the in-memory history ring.
// Persistence failures never fail the run itself.
func (e *Executor) WithPersistence(persist func(models.DiagnosticRun)) {
	e.persist = persist
}

// Run drains the channel until it is closed, so a scheduler shutdown
// cascades into executor exit through the channel close.
func (e *Executor) Run(ctx context.Context) {
	for req := range e.in {
		e.execute(ctx, req)
	}
}

func (e *Executor) execute(ctx context.Context, req models.DiagnosticRequest) {
	if e.logger != nil {
		e.logger.Infow("daemon.executor", "job", req.JobName, "type", req.DiagnosticType, "run_id", req.RunID)
	}

	run := models.DiagnosticRun{
		ID: req.RunID, JobName: req.JobName, DiagnosticType: req.DiagnosticType,
		StartedAt: time.Now().UTC(),
	}

	summary, err := e.runDiagnostic(ctx, req.DiagnosticType)
	completedAt := time.Now().UTC()
	run.CompletedAt = &completedAt
	if err != nil {
		run.Success = false
		msg := err.Error()
		run.Error = &msg
		if e.logger != nil {
			e.logger.Errorw("daemon.executor", "job", req.JobName, "error", err)
		}
	} else {
		run.Success = true
		run.Summary = &summary
	}

	e.record(run)
	if e.persist != nil {
		e.persist(run)
	}
	if e.completed != nil {
		atomic.AddUint64(e.completed, 1)
	}
	if e.onComplete != nil {
		e.onComplete(req.JobName, completedAt)
	}
}

func (e *Executor) record(run models.DiagnosticRun) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runs = append(e.runs, run)
	if len(e.runs) > e.maxHistory {
		e.runs = e.runs[len(e.runs)-e.maxHistory:]
	}
}

// Count returns the number of diagnostic runs currently held in history.
func (e *Executor) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.runs)
}

// Runs returns up to limit of the most recent diagnostic runs, newest first.
func (e *Executor) Runs(limit int) []models.DiagnosticRun {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if limit <= 0 || limit > len(e.runs) {
		limit = len(e.runs)
	}
	out := make([]models.DiagnosticRun, limit)
	for i := 0; i < limit; i++ {
		out[i] = e.runs[len(e.runs)-1-i]
	}
	return out
}

func (e *Executor) runDiagnostic(ctx context.Context, t models.DiagnosticType) (string, error) {
	switch t {
	case models.DiagQuick:
		return e.runQuick(ctx)
	case models.DiagFull:
		return e.runFull(ctx)
	case models.DiagWifi:
		return e.runWifi(ctx)
	case models.DiagSpeed:
		return e.runSpeed(ctx)
	default:
		return e.runQuick(ctx)
	}
}

func (e *Executor) runQuick(ctx context.Context) (string, error) {
	result, err := e.probeEngine.Ping(ctx, defaultDiagnosticTarget, probe.DefaultPingConfig())
	if err != nil {
		return "", err
	}
	if result.Received == 0 {
		return "", errs.New(errs.Transport, "daemon.runQuick", "internet unreachable: all probes lost")
	}
	return fmt.Sprintf("internet reachable: loss %.1f%%, avg %.1fms", result.LossPercent, *result.AvgMs), nil
}

func (e *Executor) runFull(ctx context.Context) (string, error) {
	tr, err := e.probeEngine.Traceroute(ctx, defaultDiagnosticTarget, probe.DefaultTracerouteConfig())
	if err != nil {
		return "", err
	}
	analysis := e.analyzer.Analyze(tr)
	return fmt.Sprintf("path health %d/100 (%s), %d issue(s)", analysis.Health.Score, analysis.Health.Rating, len(analysis.Issues)), nil
}

func (e *Executor) runWifi(ctx context.Context) (string, error) {
	if e.wifi == nil || !e.wifi.IsAvailable(ctx) {
		return "", errs.New(errs.Platform, "daemon.runWifi", "no wifi adapter available")
	}
	ifaces, err := e.wifi.ListWifiInterfaces(ctx)
	if err != nil {
		return "", err
	}
	if len(ifaces) == 0 {
		return "", errs.New(errs.NotFound, "daemon.runWifi", "no wifi interfaces found")
	}
	signal, err := e.wifi.GetSignalStrength(ctx, ifaces[0])
	if err != nil {
		return "", err
	}
	aps, err := e.wifi.ScanAccessPoints(ctx, ifaces[0])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("wifi %s: signal %ddBm, %d access point(s) in range", ifaces[0], signal, len(aps)), nil
}

// runSpeed reports a latency-only proxy: full throughput measurement needs
// a vendor speed-test protocol, which lives behind an external collaborator
// rather than in the daemon.
func (e *Executor) runSpeed(ctx context.Context) (string, error) {
	result, err := e.probeEngine.Ping(ctx, defaultDiagnosticTarget, probe.DefaultPingConfig())
	if err != nil {
		return "", err
	}
	if result.Received == 0 {
		return "", errs.New(errs.Transport, "daemon.runSpeed", "latency proxy unreachable")
	}
	return fmt.Sprintf("latency proxy: avg %.1fms, jitter %.1fms (full throughput test requires an external speed-test provider)", *result.AvgMs, *result.JitterMs), nil
}
