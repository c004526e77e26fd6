/**
 * Auto-fix Model.
 *
 * FixAction, its fix-type payload discriminator, prerequisites, and the
 * RollbackPoint/RollbackState family used to reverse a mutation.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package models

import "time"

// FixSeverity orders how invasive a FixAction is, least to most.
type FixSeverity int

const (
	FixLow FixSeverity = iota
	FixMedium
	FixHigh
	FixCritical
)

// FixCategory groups a FixAction by the subsystem it mutates.
type FixCategory string

const (
	CategoryDns      FixCategory = "dns"
	CategoryAdapter  FixCategory = "adapter"
	CategoryTcpIp    FixCategory = "tcpip"
	CategoryWifi     FixCategory = "wifi"
	CategoryRouting  FixCategory = "routing"
	CategoryFirewall FixCategory = "firewall"
	CategoryService  FixCategory = "service"
)

// FixType discriminates the concrete mutation a FixAction performs. Only the
// fields relevant to Kind are populated.
type FixType struct {
	Kind FixTypeKind

	Iface   string   // SetDnsServers, ResetAdapter, ReconnectWifi, RenewDhcp
	Servers []string // SetDnsServers

	Command string   // CustomCommand
	Args    []string // CustomCommand
}

// FixTypeKind names the discriminant of a FixType.
type FixTypeKind string

const (
	FixFlushDnsCache       FixTypeKind = "flush_dns_cache"
	FixSetDnsServers       FixTypeKind = "set_dns_servers"
	FixResetAdapter        FixTypeKind = "reset_adapter"
	FixResetTcpIp          FixTypeKind = "reset_tcpip"
	FixReconnectWifi       FixTypeKind = "reconnect_wifi"
	FixRenewDhcp           FixTypeKind = "renew_dhcp"
	FixRestartNetworkSvc   FixTypeKind = "restart_network_service"
	FixClearArpCache       FixTypeKind = "clear_arp_cache"
	FixResetFirewall       FixTypeKind = "reset_firewall"
	FixCustomCommand       FixTypeKind = "custom_command"
)

// PrerequisiteKind discriminates a Prerequisite.
type PrerequisiteKind string

const (
	PrereqAdminPrivileges    PrerequisiteKind = "admin_privileges"
	PrereqRebootMayBeRequired PrerequisiteKind = "reboot_may_be_required"
	PrereqNetworkConnection  PrerequisiteKind = "network_connection"
	PrereqInterfaceExists    PrerequisiteKind = "interface_exists"
)

// Prerequisite is one condition checked before a FixAction executes.
type Prerequisite struct {
	Kind          PrerequisiteKind
	InterfaceName string // only set when Kind == PrereqInterfaceExists
}

// FixAction is one candidate remediation in a FixPlan.
type FixAction struct {
	ID              string
	Name            string
	Description     string
	Severity        FixSeverity
	Category        FixCategory
	Reversible      bool
	EstimatedDuration time.Duration
	Prerequisites   []Prerequisite
	Type            FixType
}

// FixPlan is an ordered, severity-sorted batch of FixActions.
type FixPlan struct {
	Actions []FixAction
	DryRun  bool
}

// FixResult is the outcome of executing (or skipping) one FixAction.
type FixResult struct {
	ActionID   string
	Success    bool
	Skipped    bool
	Verified   bool
	Reason     string
	Duration   time.Duration
	RolledBack bool
}

// RollbackStateKind discriminates a RollbackState.
type RollbackStateKind string

const (
	RollbackNone        RollbackStateKind = "none"
	RollbackDnsServers  RollbackStateKind = "dns_servers"
	RollbackConfigFile  RollbackStateKind = "config_file"
	RollbackMultiple    RollbackStateKind = "multiple"
)

// RollbackState is the pre-image captured before a reversible mutation.
type RollbackState struct {
	Kind RollbackStateKind

	Iface   string   // DnsServers
	Servers []string // DnsServers

	Path     string // ConfigFile
	Contents []byte // ConfigFile

	States []RollbackState // Multiple
}

// RollbackPoint is a persisted pre-image permitting reversal of one action.
type RollbackPoint struct {
	ID              string
	CreatedAt       time.Time
	Description     string
	State           RollbackState
	Valid           bool
	OriginatingActionID *string
}
