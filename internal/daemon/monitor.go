/**
 * Continuous Monitor.
 *
 * Periodically checks the configured MonitorTargets (gateway, DNS, internet,
 * host, IP), tracks per-target HealthStatus with a worst-wins aggregate,
 * and emits an Alert on every tick a target sits over a threshold.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package daemon

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/netdiag/netdiag/internal/config"
	"github.com/netdiag/netdiag/internal/models"
	"github.com/netdiag/netdiag/internal/probe"
)

// Pinger is the one probe-engine capability the monitor needs; satisfied
// by *probe.Engine and by test fakes.
type Pinger interface {
	Ping(ctx context.Context, target string, cfg probe.PingConfig) (*models.PingResult, error)
}

// Monitor runs periodic health checks against a fixed set of targets and
// forwards Alerts to a Dispatcher when a threshold is crossed.
type Monitor struct {
	cfg    config.Monitoring
	alerts config.Alerts

	probeEngine Pinger
	dispatcher  *Dispatcher

	mu      sync.RWMutex
	targets []models.MonitorTarget
	status  map[models.MonitorTarget]TargetState

	active bool
	paused atomic.Bool
	logger *zap.SugaredLogger

	onTick func(models.MonitoringData)
}

// TargetState is a target's last-known status and result, used for the IPC
// MonitoringData snapshot.
type TargetState struct {
	Status HealthStatus
	Last   models.MonitorResult
}

// HealthStatus is re-exported locally to keep monitor.go self-contained;
// callers use models.HealthStatus directly.
type HealthStatus = models.HealthStatus

// NewMonitor parses cfg.Targets into typed MonitorTargets and constructs an
// idle Monitor. Gateway/DNS/Internet are well-known target kinds; anything
// else is treated as a bare host or IP literal.
func NewMonitor(cfg config.Monitoring, alerts config.Alerts, probeEngine Pinger, dispatcher *Dispatcher, logger *zap.Logger) *Monitor {
	targets := make([]models.MonitorTarget, 0, len(cfg.Targets))
	for _, t := range cfg.Targets {
		targets = append(targets, parseTarget(t))
	}
	return &Monitor{
		cfg: cfg, alerts: alerts,
		probeEngine: probeEngine, dispatcher: dispatcher,
		targets: targets,
		status:  make(map[models.MonitorTarget]TargetState),
		logger:  sugar(logger),
	}
}

func parseTarget(raw string) models.MonitorTarget {
	switch raw {
	case "gateway":
		return models.MonitorTarget{Kind: models.TargetGateway}
	case "dns":
		return models.MonitorTarget{Kind: models.TargetDns}
	case "internet":
		return models.MonitorTarget{Kind: models.TargetInternet}
	default:
		if ip := net.ParseIP(raw); ip != nil {
			return models.MonitorTarget{Kind: models.TargetIP, IP: raw}
		}
		return models.MonitorTarget{Kind: models.TargetHost, Host: raw}
	}
}

// resolveAddress maps a MonitorTarget onto the literal address probed.
// Gateway resolution is a platform concern left to the NetworkProvider in a
// fuller build; here fixed addresses stand in (192.168.1.1 for gateway, the
// public resolver 1.1.1.1 for dns and internet) so the monitor loop has a
// concrete address to dial regardless of which provider is wired in.
func resolveAddress(t models.MonitorTarget) string {
	switch t.Kind {
	case models.TargetGateway:
		return "192.168.1.1"
	case models.TargetDns:
		return "1.1.1.1"
	case models.TargetInternet:
		return defaultDiagnosticTarget
	case models.TargetIP:
		return t.IP
	default:
		return t.Host
	}
}

// Run ticks every cfg.Interval() until ctx is cancelled. A no-op if
// monitoring is disabled in configuration.
func (m *Monitor) Run(ctx context.Context) {
	if !m.cfg.Enabled || len(m.targets) == 0 {
		return
	}
	m.mu.Lock()
	m.active = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.active = false
		m.mu.Unlock()
	}()

	ticker := time.NewTicker(m.cfg.Interval())
	defer ticker.Stop()

	m.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// WithSnapshotPersistence registers a callback invoked after every tick with
// the freshly computed MonitoringData, so a durable store (internal/store)
// can survive a daemon restart between ticks.
func (m *Monitor) WithSnapshotPersistence(onTick func(models.MonitoringData)) {
	m.onTick = onTick
}

// Pause and Resume are non-destructive: the ticker keeps firing while
// paused, each tick just skips the checks, and accumulated state survives
// for when checks resume.
func (m *Monitor) Pause()  { m.paused.Store(true) }
func (m *Monitor) Resume() { m.paused.Store(false) }
func (m *Monitor) Paused() bool { return m.paused.Load() }

func (m *Monitor) tick(ctx context.Context) {
	if !m.paused.Load() {
		for _, target := range m.targets {
			result := m.check(ctx, target)
			m.updateStatus(target, result)
		}
	}
	if m.onTick != nil {
		m.onTick(m.Snapshot())
	}
}

func (m *Monitor) check(ctx context.Context, target models.MonitorTarget) models.MonitorResult {
	addr := resolveAddress(target)
	pingResult, err := m.probeEngine.Ping(ctx, addr, probe.DefaultPingConfig())
	result := models.MonitorResult{Target: target, Timestamp: time.Now().UTC()}
	if err != nil {
		msg := err.Error()
		result.Error = &msg
		return result
	}
	result.PacketLoss = pingResult.LossPercent
	result.Success = pingResult.Received > 0
	result.LatencyMs = pingResult.AvgMs
	return result
}

func (m *Monitor) updateStatus(target models.MonitorTarget, result models.MonitorResult) {
	status := m.classify(result)

	m.mu.Lock()
	m.status[target] = TargetState{Status: status, Last: result}
	m.mu.Unlock()

	// Alerts fire on every tick a target is unhealthy or degraded, not only
	// on transitions: check failure emits Critical, high latency Warning.
	if m.dispatcher == nil || !m.alerts.Enabled {
		return
	}
	if status == models.HealthHealthy {
		return
	}
	m.dispatcher.Dispatch(models.Alert{
		Severity: severityFor(status),
		Message:  alertMessage(target, result, status),
		Target:   target,
		Time:     result.Timestamp,
	})
}

func (m *Monitor) classify(result models.MonitorResult) models.HealthStatus {
	if result.Error != nil || !result.Success {
		return models.HealthUnhealthy
	}
	if result.PacketLoss >= m.alerts.LossThresholdPct {
		return models.HealthUnhealthy
	}
	if result.LatencyMs != nil && *result.LatencyMs >= m.alerts.LatencyThresholdMs {
		return models.HealthDegraded
	}
	return models.HealthHealthy
}

func severityFor(status models.HealthStatus) models.AlertSeverity {
	if status == models.HealthUnhealthy {
		return models.AlertCritical
	}
	return models.AlertWarning
}

func alertMessage(target models.MonitorTarget, result models.MonitorResult, status models.HealthStatus) string {
	name := target.Host
	if name == "" {
		name = string(target.Kind)
	}
	if result.Error != nil {
		return fmt.Sprintf("%s is %s: %s", name, status, *result.Error)
	}
	if result.LatencyMs != nil {
		return fmt.Sprintf("%s is %s: latency %.1fms, loss %.1f%%", name, status, *result.LatencyMs, result.PacketLoss)
	}
	return fmt.Sprintf("%s is %s: loss %.1f%%", name, status, result.PacketLoss)
}

// Snapshot returns the aggregated MonitoringData for the IPC surface, with
// overall Status computed worst-wins across all targets.
func (m *Monitor) Snapshot() models.MonitoringData {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := models.MonitoringData{Status: models.HealthUnknown, Updated: time.Now().UTC()}
	worst := -1
	rank := map[models.HealthStatus]int{
		models.HealthHealthy:   0,
		models.HealthDegraded:  1,
		models.HealthUnhealthy: 2,
		models.HealthUnknown:   -1,
	}
	for _, target := range m.targets {
		state, ok := m.status[target]
		if !ok {
			state = TargetState{Status: models.HealthUnknown}
		}
		out.Targets = append(out.Targets, models.TargetStatus{Target: target, Status: state.Status, Last: state.Last})
		if r := rank[state.Status]; r > worst {
			worst = r
			out.Status = state.Status
		}
	}
	if len(out.Targets) == 0 {
		out.Status = models.HealthUnknown
	}
	return out
}

// Active reports whether the monitor loop is currently running.
func (m *Monitor) Active() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}
