/**
 * Alert Dispatcher.
 *
 * Fans an Alert out to every configured AlertMethod (log, desktop
 * notification, file, command) off the monitor's tick path, so a slow
 * delivery target can never stall a health check.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package daemon

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/netdiag/netdiag/internal/config"
	"github.com/netdiag/netdiag/internal/models"
)

// alertChannelCapacity bounds the intake channel between the monitor's
// Dispatch calls and the delivery loop.
const alertChannelCapacity = 32

// Dispatcher fans alerts out to the configured methods without blocking the
// monitor's tick loop.
type Dispatcher struct {
	methods []models.AlertMethod
	in      chan models.Alert
	count   *uint64
	logger  *zap.SugaredLogger

	mu      sync.RWMutex
	history []models.Alert
}

// NewDispatcher parses cfg.Methods into typed AlertMethods and constructs a
// Dispatcher with its own bounded intake channel. count, if non-nil, is
// incremented on every dispatched alert for Service's IPC stats.
func NewDispatcher(cfg config.Alerts, count *uint64, logger *zap.Logger) *Dispatcher {
	methods := make([]models.AlertMethod, 0, len(cfg.Methods))
	for _, m := range cfg.Methods {
		methods = append(methods, parseAlertMethod(m))
	}
	return &Dispatcher{
		methods: methods,
		in:      make(chan models.Alert, alertChannelCapacity),
		count:   count,
		logger:  sugar(logger),
	}
}

// parseAlertMethod decodes one daemon.toml alerts.methods entry. File(path)
// and Command(cmd) carry a payload that a bare string can't, so those two
// variants are written "file:<path>" / "command:<cmd>"; "log" and
// "notification" need no payload.
func parseAlertMethod(raw string) models.AlertMethod {
	switch {
	case raw == "log":
		return models.AlertMethod{Kind: models.MethodLog}
	case raw == "notification":
		return models.AlertMethod{Kind: models.MethodNotification}
	case strings.HasPrefix(raw, "file:"):
		return models.AlertMethod{Kind: models.MethodFile, Path: strings.TrimPrefix(raw, "file:")}
	case strings.HasPrefix(raw, "command:"):
		return models.AlertMethod{Kind: models.MethodCommand, Command: strings.TrimPrefix(raw, "command:")}
	default:
		return models.AlertMethod{Kind: models.MethodLog}
	}
}

// Dispatch enqueues an alert without blocking; a full channel drops the
// alert and logs the loss rather than stalling the monitor loop.
func (d *Dispatcher) Dispatch(alert models.Alert) {
	select {
	case d.in <- alert:
	default:
		if d.logger != nil {
			d.logger.Warnw("daemon.alerts", "error", "alert channel full, dropping alert", "target", alert.Target)
		}
	}
}

// Run drains the intake channel until ctx is cancelled, fanning each alert
// out to every configured method.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case alert := <-d.in:
			d.deliver(alert)
		}
	}
}

func (d *Dispatcher) deliver(alert models.Alert) {
	d.mu.Lock()
	d.history = append(d.history, alert)
	if len(d.history) > defaultMaxHistory {
		d.history = d.history[len(d.history)-defaultMaxHistory:]
	}
	d.mu.Unlock()

	if d.count != nil {
		atomic.AddUint64(d.count, 1)
	}

	for _, method := range d.methods {
		d.deliverTo(method, alert)
	}
	if len(d.methods) == 0 {
		d.deliverTo(models.AlertMethod{Kind: models.MethodLog}, alert)
	}
}

func (d *Dispatcher) deliverTo(method models.AlertMethod, alert models.Alert) {
	switch method.Kind {
	case models.MethodLog:
		if d.logger == nil {
			return
		}
		if alert.Severity == models.AlertCritical {
			d.logger.Errorw("alert", "severity", alert.Severity, "message", alert.Message)
		} else {
			d.logger.Warnw("alert", "severity", alert.Severity, "message", alert.Message)
		}
	case models.MethodFile:
		d.deliverToFile(method, alert)
	case models.MethodCommand:
		d.deliverToCommand(method, alert)
	case models.MethodNotification:
		// Desktop notification delivery is platform-specific UI plumbing
		// (notify-send / UserNotifications / toast) outside the daemon's
		// headless core; it degrades to a log entry here.
		if d.logger != nil {
			d.logger.Infow("alert.notification", "severity", alert.Severity, "message", alert.Message)
		}
	}
}

func (d *Dispatcher) deliverToFile(method models.AlertMethod, alert models.Alert) {
	if method.Path == "" {
		return
	}
	f, err := os.OpenFile(method.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		if d.logger != nil {
			d.logger.Warnw("daemon.alerts.file", "path", method.Path, "error", err)
		}
		return
	}
	defer f.Close()
	line := alert.Time.Format(time.RFC3339) + " [" + string(alert.Severity) + "] " + alert.Message + "\n"
	if _, err := f.WriteString(line); err != nil && d.logger != nil {
		d.logger.Warnw("daemon.alerts.file", "path", method.Path, "error", err)
	}
}

func (d *Dispatcher) deliverToCommand(method models.AlertMethod, alert models.Alert) {
	if method.Command == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, method.Command, string(alert.Severity), alert.Message)
	if err := cmd.Run(); err != nil && d.logger != nil {
		d.logger.Warnw("daemon.alerts.command", "command", method.Command, "error", err)
	}
}

// Recent returns up to limit of the most recently dispatched alerts, newest
// first.
func (d *Dispatcher) Recent(limit int) []models.Alert {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if limit <= 0 || limit > len(d.history) {
		limit = len(d.history)
	}
	out := make([]models.Alert, limit)
	for i := 0; i < limit; i++ {
		out[i] = d.history[len(d.history)-1-i]
	}
	return out
}
