/**
 * Configuration Defaults.
 *
 * Provides sane default values for daemon configuration so NetDiag can run
 * out-of-the-box without extensive setup.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package config

// DefaultSocketPath is the POSIX default IPC socket location.
const DefaultSocketPath = "/var/run/netdiag.sock"

// DefaultPidFile is the default daemon PID file location.
const DefaultPidFile = "/var/run/netdiag.pid"

// DefaultConfigPath is the default daemon.toml location.
const DefaultConfigPath = "/etc/netdiag/daemon.toml"

// Default returns the documented zero-config defaults.
func Default() *Config {
	return &Config{
		General: General{
			LogLevel: "info",
			LogFile:  "",
			PidFile:  DefaultPidFile,
		},
		Ipc: Ipc{
			SocketPath:     DefaultSocketPath,
			MaxConnections: 16,
		},
		Monitoring: Monitoring{
			Enabled:         true,
			IntervalSeconds: 30,
			Targets:         []string{"gateway", "dns", "internet"},
		},
		Schedules: []Schedule{
			{Name: "quick-hourly", Cron: "0 * * * *", Diagnostic: "quick", Enabled: true},
		},
		Alerts: Alerts{
			Enabled:            true,
			LatencyThresholdMs: 150,
			LossThresholdPct:   5,
			SignalThresholdDbm: -75,
			Methods:            []string{"log"},
		},
		Storage: Storage{
			DBPath:                "/var/lib/netdiag/netdiag.db",
			RollbackDir:           "/var/lib/netdiag/rollback",
			RetentionDays:         30,
			RollbackMaxPoints:     50,
			RollbackRetentionDays: 14,
		},
	}
}
