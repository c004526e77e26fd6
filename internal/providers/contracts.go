/**
 * Platform Provider Contracts.
 *
 * Narrow capability interfaces the core consumes for everything that is
 * inherently OS-specific: interface enumeration, WiFi, privilege level,
 * packet capture, autofix mutation primitives, and system info. Each
 * operating system supplies its own concrete implementation; the core never
 * imports a platform package directly.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package providers

import (
	"context"
	"time"

	"github.com/netdiag/netdiag/internal/models"
)

// NetworkProvider exposes interface, routing, and DNS discovery.
type NetworkProvider interface {
	ListInterfaces(ctx context.Context) ([]models.Interface, error)
	GetInterface(ctx context.Context, name string) (*models.Interface, error)
	GetDefaultInterface(ctx context.Context) (*models.Interface, error)
	GetDefaultRoute(ctx context.Context) (*models.Route, error)
	GetRoutes(ctx context.Context) ([]models.Route, error)
	GetDefaultGateway(ctx context.Context) (string, error)
	GetDNSServers(ctx context.Context) ([]string, error)
	GetDHCPInfo(ctx context.Context, iface string) (*models.DHCPInfo, error)
	DetectISP(ctx context.Context) (string, error)
	SupportsPromiscuous(ctx context.Context, iface string) (bool, error)
	Refresh(ctx context.Context) error
}

// PrivilegeLevel is the caller's current process privilege tier.
type PrivilegeLevel string

const (
	PrivilegeUser     PrivilegeLevel = "user"
	PrivilegeElevated PrivilegeLevel = "elevated"
	PrivilegeRoot     PrivilegeLevel = "root"
)

// PrivilegeProvider reports the process's OS-level privilege standing.
type PrivilegeProvider interface {
	CurrentPrivilegeLevel(ctx context.Context) (PrivilegeLevel, error)
	HasCapability(ctx context.Context, capability string) (bool, error)
	AvailableCapabilities(ctx context.Context) ([]string, error)
}

// CaptureConfig configures one capture session.
type CaptureConfig struct {
	Device        string
	Filter        string
	Promiscuous   bool
	SnapLen       int
	RingBufferBytes int
	ReadTimeout   time.Duration
	MaxPackets    int
	MaxDuration   *time.Duration
}

// CaptureHandle is the cooperative stop control for a running capture.
type CaptureHandle interface {
	Stop()
}

// CaptureProvider starts and stops live packet capture sessions.
type CaptureProvider interface {
	ListDevices(ctx context.Context) ([]string, error)
	Start(ctx context.Context, cfg CaptureConfig, out chan<- models.DecodedPacket) (CaptureHandle, error)
	CompileFilter(ctx context.Context, device, filter string) error
}

// AutofixProvider is the set of OS mutation primitives the autofix engine
// invokes. Each call is expected to be synchronous and idempotent where the
// data model marks the corresponding FixType non-rollback-bearing.
type AutofixProvider interface {
	FlushDNSCache(ctx context.Context) error
	ResetAdapter(ctx context.Context, iface string) error
	GetDNSServers(ctx context.Context, iface string) ([]string, error)
	SetDNSServers(ctx context.Context, iface string, servers []string) error
	RenewDHCP(ctx context.Context, iface string) error
	ResetTCPIPStack(ctx context.Context) error
	ClearARPCache(ctx context.Context) error
	RestartNetworkService(ctx context.Context) error
	ResetFirewall(ctx context.Context) error
	RunCustomCommand(ctx context.Context, cmd string, args []string) error
}

// SystemInfoProvider reports host identity facts used in diagnostics output.
type SystemInfoProvider interface {
	Hostname(ctx context.Context) (string, error)
	OSType(ctx context.Context) (string, error)
	OSVersion(ctx context.Context) (string, error)
	Arch(ctx context.Context) (string, error)
	Uptime(ctx context.Context) (time.Duration, error)
}

// WifiProvider exposes WiFi scanning and analysis. Implementations that run
// on wired-only hosts may return IsAvailable() == false and errs.Platform
// from every other method.
type WifiProvider interface {
	IsAvailable(ctx context.Context) bool
	ListWifiInterfaces(ctx context.Context) ([]string, error)
	ScanAccessPoints(ctx context.Context, iface string) ([]models.AccessPoint, error)
	GetCurrentConnection(ctx context.Context, iface string) (*models.AccessPoint, error)
	GetSignalStrength(ctx context.Context, iface string) (int, error)
	GetNoiseLevel(ctx context.Context, iface string) (int, error)
	GetChannelUtilization(ctx context.Context, channel int) (float64, error)
	AnalyzeChannels(ctx context.Context, iface string) ([]models.ChannelInfo, error)
	SupportsEnterprise(ctx context.Context, iface string) (bool, error)
	TriggerScan(ctx context.Context, iface string) error
	GetSupportedStandards(ctx context.Context, iface string) ([]string, error)
}
