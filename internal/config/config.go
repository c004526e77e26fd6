/**
 * Daemon Configuration.
 *
 * Loads and validates the typed, hierarchical daemon.toml configuration
 * described in the data model: general, IPC, monitoring, schedules, alerts,
 * and storage sections.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/netdiag/netdiag/internal/errs"
)

// General holds process-level settings.
type General struct {
	LogLevel string `toml:"log_level"`
	LogFile  string `toml:"log_file"`
	PidFile  string `toml:"pid_file"`
}

// Ipc holds the daemon's IPC listener settings.
type Ipc struct {
	SocketPath     string `toml:"socket_path"`
	MaxConnections int    `toml:"max_connections"`
}

// Monitoring holds the periodic-monitor settings.
type Monitoring struct {
	Enabled         bool     `toml:"enabled"`
	IntervalSeconds int      `toml:"interval_seconds"`
	Targets         []string `toml:"targets"`
}

// Interval returns the monitoring tick period as a time.Duration.
func (m Monitoring) Interval() time.Duration {
	if m.IntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(m.IntervalSeconds) * time.Second
}

// Schedule is one cron-triggered diagnostic entry from daemon.toml.
type Schedule struct {
	Name       string `toml:"name"`
	Cron       string `toml:"cron"`
	Diagnostic string `toml:"diagnostic"`
	Enabled    bool   `toml:"enabled"`
}

// Alerts holds the alerting thresholds and dispatch methods.
type Alerts struct {
	Enabled            bool     `toml:"enabled"`
	LatencyThresholdMs float64  `toml:"latency_threshold_ms"`
	LossThresholdPct   float64  `toml:"loss_threshold_pct"`
	SignalThresholdDbm float64  `toml:"signal_threshold_dbm"`
	Methods            []string `toml:"methods"`
}

// Storage holds persistence settings for run history and rollback points.
type Storage struct {
	DBPath        string `toml:"db_path"`
	RollbackDir   string `toml:"rollback_dir"`
	RetentionDays int    `toml:"retention_days"`
	ASNDBPath     string `toml:"asn_db_path"`

	RollbackMaxPoints     int `toml:"rollback_max_points"`
	RollbackRetentionDays int `toml:"rollback_retention_days"`
}

// RollbackRetention returns the rollback-point age cutoff as a duration;
// zero disables the cutoff.
func (s Storage) RollbackRetention() time.Duration {
	if s.RollbackRetentionDays <= 0 {
		return 0
	}
	return time.Duration(s.RollbackRetentionDays) * 24 * time.Hour
}

// Config is the root of daemon.toml.
type Config struct {
	General    General    `toml:"general"`
	Ipc        Ipc        `toml:"ipc"`
	Monitoring Monitoring `toml:"monitoring"`
	Schedules  []Schedule `toml:"schedules"`
	Alerts     Alerts     `toml:"alerts"`
	Storage    Storage    `toml:"storage"`
}

// Load reads and validates a daemon.toml file at path.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, errs.Wrap(errs.Config, "config.Load", fmt.Sprintf("failed to parse %s", path), err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the configuration invariants checkable without
// compiling cron expressions: the packet-loss threshold must fall in
// [0, 100]. Cron validity (non-empty and parseable) is enforced by the
// scheduler when schedules load, so one bad schedule is refused with a
// Config error while the rest still load.
func (c *Config) Validate() error {
	if c.Alerts.LossThresholdPct < 0 || c.Alerts.LossThresholdPct > 100 {
		return errs.New(errs.Config, "config.Validate", "alerts.loss_threshold_pct must be in [0, 100]")
	}
	return nil
}

// Save writes the configuration back to path; the package's load/save
// round-trip test uses it.
func (c *Config) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(errs.Config, "config.Save", "failed to create config file", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return errs.Wrap(errs.Config, "config.Save", "failed to encode config", err)
	}
	return nil
}
