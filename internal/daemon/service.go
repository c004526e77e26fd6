/**
 * Daemon Service.
 *
 * Owns the daemon's lifecycle (Stopped -> Starting -> Running -> Stopping ->
 * Stopped), wires the Scheduler, Executor, Monitor, Dispatcher, and IPC
 * Server together, and answers IPC requests. Subsystems never hold a
 * pointer back to the Service; everything flows through channels and the
 * narrow provider interfaces.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/netdiag/netdiag/internal/autofix"
	"github.com/netdiag/netdiag/internal/capture"
	"github.com/netdiag/netdiag/internal/config"
	"github.com/netdiag/netdiag/internal/errs"
	"github.com/netdiag/netdiag/internal/models"
	"github.com/netdiag/netdiag/internal/pathanalyzer"
	"github.com/netdiag/netdiag/internal/probe"
	"github.com/netdiag/netdiag/internal/providers"
	"github.com/netdiag/netdiag/internal/store"
)

// Service is the daemon's top-level supervisor. A single writer at a time
// may transition state; mu guards every field read across goroutines.
type Service struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger

	mu            sync.RWMutex
	state         models.ServiceState
	startedAt     *time.Time
	monitoringPaused bool

	scheduler  *Scheduler
	executor   *Executor
	monitor    *Monitor
	dispatcher *Dispatcher
	server     *Server
	cancel     context.CancelFunc

	netProvider      providers.NetworkProvider
	wifiProvider     providers.WifiProvider
	privProvider     providers.PrivilegeProvider
	autofixProvider  providers.AutofixProvider
	captureProvider  providers.CaptureProvider
	sysInfoProvider  providers.SystemInfoProvider

	hostname, osType, osVersion, arch string

	store         *store.Store
	asnEnricher   *pathanalyzer.ASNEnricher
	autofixEngine *autofix.Engine

	captureMu      sync.Mutex
	captureHandle  providers.CaptureHandle
	captureCancel  context.CancelFunc
	captureStats   models.CaptureStats

	alertsGenerated uint64
}

// NewService constructs an idle Service. net, wifi, priv, fix, and cap may
// be platform providers built by cmd/netdiagd's main; wifi, fix, and cap
// may be nil on hosts with no concrete implementation wired in, in which
// case WiFi diagnostics, ReqRunAutofix, and ReqStartCapture report errors.
func NewService(cfg *config.Config, net providers.NetworkProvider, wifi providers.WifiProvider, priv providers.PrivilegeProvider, fix providers.AutofixProvider, cap providers.CaptureProvider, logger *zap.Logger) *Service {
	return &Service{cfg: cfg, netProvider: net, wifiProvider: wifi, privProvider: priv, autofixProvider: fix, captureProvider: cap, logger: logger, state: models.StateStopped}
}

// WithConfigPath records the file cfg was loaded from so a later ReqReload
// re-parses the same file rather than falling back to a guessed default.
func (s *Service) WithConfigPath(path string) *Service {
	s.configPath = path
	return s
}

// State returns the current lifecycle state.
func (s *Service) State() models.ServiceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Stats assembles the point-in-time summary exposed over IPC.
func (s *Service) Stats() models.ServiceStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	active := s.monitor != nil && s.monitor.Active() && !s.monitoringPaused
	return models.ServiceStats{
		State: s.state, StartedAt: s.startedAt,
		DiagnosticsRun:  s.diagnosticsRunLocked(),
		AlertsGenerated: atomic.LoadUint64(&s.alertsGenerated),
		MonitoringActive: active,
	}
}

func (s *Service) diagnosticsRunLocked() uint64 {
	if s.executor == nil {
		return 0
	}
	return uint64(s.executor.Count())
}

// Start wires up and launches every daemon subsystem: PID file, scheduler,
// executor, monitor, alert dispatcher, and IPC server, then transitions to
// Running.
func (s *Service) Start(ctx context.Context) error {
	s.setState(models.StateStarting)
	if s.logger != nil {
		s.logger.Info("starting netdiag daemon service")
	}

	if s.cfg.General.PidFile != "" {
		if err := writePidFile(s.cfg.General.PidFile); err != nil {
			return err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if s.cfg.Storage.DBPath != "" {
		db, err := store.Open(s.cfg.Storage.DBPath)
		if err != nil && s.logger != nil {
			s.logger.Sugar().Warnw("daemon.service", "msg", "durable history store unavailable, continuing with in-memory history only", "error", err)
		}
		s.store = db
	}

	if s.autofixProvider != nil && s.cfg.Storage.RollbackDir != "" {
		if rollback, err := autofix.NewRollbackManager(s.cfg.Storage.RollbackDir, s.cfg.Storage.RollbackMaxPoints, s.cfg.Storage.RollbackRetention()); err != nil {
			if s.logger != nil {
				s.logger.Sugar().Warnw("daemon.service", "msg", "rollback store unavailable, autofix actions will not be reversible", "error", err)
			}
		} else {
			s.autofixEngine = autofix.New(s.autofixProvider, rollback, false)
		}
	}

	s.scheduler = NewScheduler(s.logger)
	if err := s.scheduler.AddSchedules(s.cfg.Schedules); err != nil && s.logger != nil {
		s.logger.Sugar().Warnw("daemon.service", "error", err)
	}

	probeEngine := probe.NewEngine()
	analyzer := pathanalyzer.New()
	if s.cfg.Storage.ASNDBPath != "" {
		if enricher, err := pathanalyzer.OpenASNEnricher(s.cfg.Storage.ASNDBPath); err != nil {
			if s.logger != nil {
				s.logger.Sugar().Warnw("daemon.service", "msg", "ASN enrichment database unavailable, path analysis will omit network-owner info", "error", err)
			}
		} else {
			s.asnEnricher = enricher
			analyzer.Enrich = enricher.Lookup
		}
	}

	s.executor = NewExecutor(s.scheduler.Requests(), 0, probeEngine, analyzer, s.netProvider, s.wifiProvider, s.scheduler.UpdateLastRun, nil, s.logger)
	if s.store != nil {
		db := s.store
		s.executor.WithPersistence(func(run models.DiagnosticRun) {
			if err := db.SaveRun(run); err != nil && s.logger != nil {
				s.logger.Sugar().Warnw("daemon.service", "msg", "failed to persist diagnostic run", "error", err)
			}
		})
	}
	go s.executor.Run(runCtx)

	s.dispatcher = NewDispatcher(s.cfg.Alerts, &s.alertsGenerated, s.logger)
	go s.dispatcher.Run(runCtx)

	s.monitor = NewMonitor(s.cfg.Monitoring, s.cfg.Alerts, probeEngine, s.dispatcher, s.logger)
	if s.store != nil {
		db := s.store
		s.monitor.WithSnapshotPersistence(func(data models.MonitoringData) {
			if err := db.SaveMonitoringSnapshot(data); err != nil && s.logger != nil {
				s.logger.Sugar().Warnw("daemon.service", "msg", "failed to persist monitoring snapshot", "error", err)
			}
		})
	}
	go s.monitor.Run(runCtx)

	s.scheduler.Start()

	s.server = NewServer(s.cfg.Ipc.SocketPath, s, s.logger)
	if err := s.server.Start(); err != nil {
		return err
	}
	go s.server.Serve()

	now := time.Now().UTC()
	s.mu.Lock()
	s.startedAt = &now
	s.mu.Unlock()
	s.setState(models.StateRunning)
	if s.logger != nil {
		s.logger.Info("netdiag daemon service started")
	}
	return nil
}

// Stop cancels the run context, stops any capture, shuts down the scheduler
// and IPC server, removes the PID file, and closes the store and ASN database.
func (s *Service) Stop() error {
	s.setState(models.StateStopping)
	if s.logger != nil {
		s.logger.Info("stopping netdiag daemon service")
	}

	if s.cancel != nil {
		s.cancel()
	}
	s.handleStopCapture()
	if s.scheduler != nil {
		s.scheduler.Shutdown()
	}
	if s.server != nil {
		s.server.Shutdown()
	}
	if s.cfg.General.PidFile != "" {
		os.Remove(s.cfg.General.PidFile)
	}
	if s.store != nil {
		s.store.Close()
	}
	if s.asnEnricher != nil {
		s.asnEnricher.Close()
	}

	s.setState(models.StateStopped)
	if s.logger != nil {
		s.logger.Info("netdiag daemon service stopped")
	}
	return nil
}

func (s *Service) setState(state models.ServiceState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Handle answers one decoded IPC Request (implements RequestHandler).
func (s *Service) Handle(req Request) Response {
	switch req.Kind {
	case ReqPing:
		return Response{Kind: RespPong}

	case ReqStatus:
		stats := s.Stats()
		var uptime int64
		if stats.StartedAt != nil {
			uptime = int64(time.Since(*stats.StartedAt).Seconds())
		}
		return Response{
			Kind: RespStatus, State: string(stats.State), UptimeSecs: uptime,
			DiagnosticsRun: stats.DiagnosticsRun, AlertsGenerated: stats.AlertsGenerated,
			MonitoringActive: stats.MonitoringActive,
		}

	case ReqStop:
		go s.Stop()
		return Response{Kind: RespOk, Message: "daemon stopping"}

	case ReqReload:
		cfg, err := config.Load(s.configPathOrDefault())
		if err != nil {
			return Response{Kind: RespError, Message: err.Error()}
		}
		s.mu.Lock()
		s.cfg = cfg
		s.mu.Unlock()
		return Response{Kind: RespOk, Message: "configuration reloaded"}

	case ReqRunDiagnostic:
		if s.scheduler == nil {
			return Response{Kind: RespError, Message: "scheduler not initialized"}
		}
		s.scheduler.Trigger(parseDiagnosticType(req.DiagnosticType))
		return Response{Kind: RespOk, Message: "diagnostic queued"}

	case ReqGetResults:
		var runs []models.DiagnosticRun
		if s.executor != nil {
			runs = s.executor.Runs(req.Limit)
		}
		if len(runs) == 0 && s.store != nil {
			if fromDisk, err := s.store.RecentRuns(req.Limit); err == nil {
				runs = fromDisk
			}
		}
		results := make([]string, 0, len(runs))
		for _, run := range runs {
			results = append(results, summarizeRun(run))
		}
		return Response{Kind: RespResults, Results: results}

	case ReqGetMonitoringData:
		if s.monitor == nil {
			return Response{Kind: RespError, Message: "monitor not initialized"}
		}
		data := s.monitor.Snapshot()
		encoded, err := json.Marshal(data)
		if err != nil {
			return Response{Kind: RespError, Message: "failed to encode monitoring data: " + err.Error()}
		}
		return Response{Kind: RespMonitoringData, Data: string(encoded)}

	case ReqPauseMonitoring:
		if s.monitor != nil {
			s.monitor.Pause()
		}
		s.mu.Lock()
		s.monitoringPaused = true
		s.mu.Unlock()
		return Response{Kind: RespOk, Message: "monitoring paused"}

	case ReqResumeMonitoring:
		if s.monitor != nil {
			s.monitor.Resume()
		}
		s.mu.Lock()
		s.monitoringPaused = false
		s.mu.Unlock()
		return Response{Kind: RespOk, Message: "monitoring resumed"}

	case ReqRunAutofix:
		return s.handleRunAutofix(req)

	case ReqStartCapture:
		return s.handleStartCapture(req)

	case ReqStopCapture:
		return s.handleStopCapture()

	default:
		return Response{Kind: RespError, Message: "unknown request kind"}
	}
}

// handleRunAutofix builds a severity-ordered plan from req.Issues when given,
// otherwise from the daemon's fix catalog restricted to req.Categories (an
// empty plan when neither is given), then executes it with rollback
// protection.
func (s *Service) handleRunAutofix(req Request) Response {
	if s.autofixEngine == nil {
		return Response{Kind: RespError, Message: "autofix engine not available on this host"}
	}

	ctx := context.Background()
	iface := ""
	if defIface, err := s.netProvider.GetDefaultInterface(ctx); err == nil && defIface != nil {
		iface = defIface.Name
	}

	var plan models.FixPlan
	if len(req.Issues) > 0 {
		issues := make([]autofix.NetworkIssue, 0, len(req.Issues))
		for _, i := range req.Issues {
			issues = append(issues, autofix.NetworkIssue(i))
		}
		plan = autofix.PlanForIssues(issues, iface, req.DryRun)
	} else {
		categories := make([]models.FixCategory, 0, len(req.Categories))
		for _, c := range req.Categories {
			categories = append(categories, models.FixCategory(c))
		}
		plan = autofix.Plan(autofix.Catalog(iface), categories, req.DryRun)
	}

	results, err := s.autofixEngine.ExecuteWithRollback(ctx, s.privProvider, s.netProvider, plan)
	if err != nil {
		return Response{Kind: RespError, Message: err.Error()}
	}

	summaries := make([]string, 0, len(results))
	for _, r := range results {
		summaries = append(summaries, summarizeFixResult(r))
	}
	return Response{Kind: RespAutofixResults, FixResults: summaries}
}

func summarizeFixResult(r models.FixResult) string {
	switch {
	case r.Skipped:
		return fmt.Sprintf("%s: skipped (%s)", r.ActionID, r.Reason)
	case !r.Success:
		detail := r.Reason
		if r.RolledBack {
			detail += ", rolled back"
		}
		return fmt.Sprintf("%s: failed (%s)", r.ActionID, detail)
	default:
		return fmt.Sprintf("%s: ok (%s)", r.ActionID, r.Duration)
	}
}

// handleStartCapture opens one live capture session on req.CaptureDevice,
// refusing a second concurrent session; the daemon runs at most one capture
// at a time.
func (s *Service) handleStartCapture(req Request) Response {
	if s.captureProvider == nil {
		return Response{Kind: RespError, Message: "capture provider not available on this host"}
	}

	s.captureMu.Lock()
	defer s.captureMu.Unlock()
	if s.captureHandle != nil {
		return Response{Kind: RespError, Message: "a capture session is already running"}
	}

	cfg := providers.CaptureConfig{
		Device:      req.CaptureDevice,
		Filter:      req.CaptureFilter,
		Promiscuous: true,
		SnapLen:     65536,
		ReadTimeout: 250 * time.Millisecond,
	}

	if err := s.captureProvider.CompileFilter(context.Background(), cfg.Device, cfg.Filter); err != nil {
		return Response{Kind: RespError, Message: err.Error()}
	}

	ctx, cancel := context.WithCancel(context.Background())
	out := capture.NewChannel()
	handle, err := s.captureProvider.Start(ctx, cfg, out)
	if err != nil {
		cancel()
		return Response{Kind: RespError, Message: err.Error()}
	}

	s.captureHandle = handle
	s.captureCancel = cancel
	s.captureStats = models.CaptureStats{}
	started := time.Now()
	go s.drainCapture(out, started)

	return Response{Kind: RespOk, Message: "capture started on " + req.CaptureDevice}
}

// drainCapture tallies packets off the capture channel until the producer
// closes it, whether the session was stopped or ended on its own.
func (s *Service) drainCapture(out <-chan models.DecodedPacket, started time.Time) {
	for pkt := range out {
		s.captureMu.Lock()
		s.captureStats.TotalPackets++
		s.captureStats.TotalBytes += uint64(pkt.WireLength)
		s.captureStats.Duration = time.Since(started)
		s.captureMu.Unlock()
	}
}

// handleStopCapture stops any running capture session and reports its
// final tallies.
func (s *Service) handleStopCapture() Response {
	s.captureMu.Lock()
	handle := s.captureHandle
	cancel := s.captureCancel
	stats := s.captureStats
	s.captureHandle = nil
	s.captureCancel = nil
	s.captureMu.Unlock()

	if handle == nil {
		return Response{Kind: RespError, Message: "no capture session is running"}
	}
	handle.Stop()
	if cancel != nil {
		cancel()
	}
	return Response{Kind: RespOk, Message: fmt.Sprintf("capture stopped: %+v", stats)}
}

func summarizeRun(run models.DiagnosticRun) string {
	status := "failed"
	detail := ""
	if run.Success {
		status = "ok"
	}
	if run.Summary != nil {
		detail = *run.Summary
	} else if run.Error != nil {
		detail = *run.Error
	}
	return fmt.Sprintf("[%s] %s %s: %s", run.StartedAt.Format(time.RFC3339), run.JobName, status, detail)
}

func (s *Service) configPathOrDefault() string {
	if s.configPath != "" {
		return s.configPath
	}
	return config.DefaultConfigPath
}

// writePidFile records the current process ID, refusing to overwrite a
// live daemon's PID file. A stale file left by a dead process is removed
// and replaced.
func writePidFile(path string) error {
	if existing, ok := readLivePid(path); ok {
		return errs.New(errs.Platform, "daemon.writePidFile", fmt.Sprintf("daemon already running with pid %d", existing))
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644)
}

// readLivePid reads an existing PID file and signal-probes the recorded
// process. A stale file (process no longer running) is removed and (0,
// false) is returned so the caller proceeds to overwrite it.
func readLivePid(path string) (int, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, false
	}
	if err := syscall.Kill(pid, 0); err != nil {
		os.Remove(path)
		return 0, false
	}
	return pid, true
}
