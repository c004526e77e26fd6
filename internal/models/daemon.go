/**
 * Daemon Model.
 *
 * Scheduling, monitoring, and alerting records shared between the daemon's
 * scheduler, monitor, and IPC surface.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package models

import "time"

// DiagnosticType names the kind of diagnostic a ScheduledJob runs.
type DiagnosticType string

const (
	DiagQuick  DiagnosticType = "quick"
	DiagFull   DiagnosticType = "full"
	DiagWifi   DiagnosticType = "wifi"
	DiagSpeed  DiagnosticType = "speed"
	DiagCustom DiagnosticType = "custom"
)

// ScheduledJob is one cron-triggered diagnostic entry.
type ScheduledJob struct {
	ID             string
	Name           string
	Cron           string
	DiagnosticType DiagnosticType
	Enabled        bool
	LastRun        *time.Time
	NextRun        *time.Time
}

// DiagnosticRequest is the trigger sent from the Scheduler onto the bounded
// diagnostic channel for the DiagnosticExecutor to drain.
type DiagnosticRequest struct {
	RunID          string
	JobName        string
	DiagnosticType DiagnosticType
}

// DiagnosticRun is the outcome record of one executed diagnostic.
type DiagnosticRun struct {
	ID             string
	JobName        string
	DiagnosticType DiagnosticType
	StartedAt      time.Time
	CompletedAt    *time.Time
	Success        bool
	Summary        *string
	Error          *string
}

// MonitorTargetKind discriminates a MonitorTarget.
type MonitorTargetKind string

const (
	TargetGateway  MonitorTargetKind = "gateway"
	TargetDns      MonitorTargetKind = "dns"
	TargetInternet MonitorTargetKind = "internet"
	TargetHost     MonitorTargetKind = "host"
	TargetIP       MonitorTargetKind = "ip"
)

// MonitorTarget is one configured monitoring check.
type MonitorTarget struct {
	Kind MonitorTargetKind
	Host string // TargetHost
	IP   string // TargetIP
}

// HealthStatus is the worst-wins aggregate status of a monitoring target.
type HealthStatus string

const (
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthHealthy   HealthStatus = "healthy"
	HealthUnknown   HealthStatus = "unknown"
)

// MonitorResult is the outcome of one check against one MonitorTarget.
type MonitorResult struct {
	Target      MonitorTarget
	Success     bool
	LatencyMs   *float64
	PacketLoss  float64
	Timestamp   time.Time
	Error       *string
}

// TargetStatus pairs a target with its current computed status.
type TargetStatus struct {
	Target MonitorTarget
	Status HealthStatus
	Last   MonitorResult
}

// MonitoringData is the live snapshot exposed over IPC.
type MonitoringData struct {
	Status  HealthStatus
	Targets []TargetStatus
	Updated time.Time
}

// AlertSeverity orders an Alert's urgency.
type AlertSeverity string

const (
	AlertWarning  AlertSeverity = "warning"
	AlertCritical AlertSeverity = "critical"
)

// Alert is one notification emitted by the monitor.
type Alert struct {
	Severity AlertSeverity
	Message  string
	Target   MonitorTarget
	Time     time.Time
}

// AlertMethodKind discriminates an AlertMethod.
type AlertMethodKind string

const (
	MethodLog          AlertMethodKind = "log"
	MethodNotification AlertMethodKind = "notification"
	MethodFile         AlertMethodKind = "file"
	MethodCommand      AlertMethodKind = "command"
)

// AlertMethod is one configured alert dispatch target.
type AlertMethod struct {
	Kind    AlertMethodKind
	Path    string // MethodFile
	Command string // MethodCommand
}

// ServiceState is the daemon's lifecycle state, totally ordered
// Stopped -> Starting -> Running -> Stopping -> Stopped.
type ServiceState string

const (
	StateStopped  ServiceState = "stopped"
	StateStarting ServiceState = "starting"
	StateRunning  ServiceState = "running"
	StateStopping ServiceState = "stopping"
)

// ServiceStats is the daemon's point-in-time lifecycle summary, exposed over
// IPC by the Status request.
type ServiceStats struct {
	State             ServiceState
	StartedAt         *time.Time
	DiagnosticsRun    uint64
	AlertsGenerated   uint64
	MonitoringActive  bool
}
