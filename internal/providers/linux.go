//go:build linux

/**
 * Linux Platform Provider.
 *
 * Concrete NetworkProvider/PrivilegeProvider/SystemInfoProvider/AutofixProvider
 * implementations for Linux, built on the stdlib net package plus the `ip`
 * and `resolvectl` CLI tools rather than a netlink binding.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package providers

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/netdiag/netdiag/internal/errs"
	"github.com/netdiag/netdiag/internal/models"
)

// LinuxNetworkProvider implements NetworkProvider using the stdlib net
// package. Interface snapshots are cached after the first enumeration and
// invalidated only by an explicit Refresh.
type LinuxNetworkProvider struct {
	cached []models.Interface
}

// NewLinuxNetworkProvider constructs an empty, uncached provider.
func NewLinuxNetworkProvider() *LinuxNetworkProvider {
	return &LinuxNetworkProvider{}
}

func (p *LinuxNetworkProvider) ListInterfaces(ctx context.Context) ([]models.Interface, error) {
	if p.cached != nil {
		return p.cached, nil
	}
	return p.reload()
}

func (p *LinuxNetworkProvider) reload() ([]models.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, errs.Wrap(errs.Platform, "providers.ListInterfaces", "failed to enumerate interfaces", err)
	}

	out := make([]models.Interface, 0, len(ifaces))
	for _, nif := range ifaces {
		mi := models.Interface{
			Name:  nif.Name,
			Index: nif.Index,
			Type:  classifyInterface(nif),
			Flags: models.InterfaceFlags{
				Up:           nif.Flags&net.FlagUp != 0,
				Running:      nif.Flags&net.FlagRunning != 0,
				Broadcast:    nif.Flags&net.FlagBroadcast != 0,
				Loopback:     nif.Flags&net.FlagLoopback != 0,
				PointToPoint: nif.Flags&net.FlagPointToPoint != 0,
				Multicast:    nif.Flags&net.FlagMulticast != 0,
			},
		}
		if nif.MTU > 0 {
			mtu := nif.MTU
			mi.MTU = &mtu
		}
		if len(nif.HardwareAddr) == 6 {
			var hw [6]byte
			copy(hw[:], nif.HardwareAddr)
			mi.HardwareAddress = &hw
		}

		addrs, _ := nif.Addrs()
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				mi.IPv4 = append(mi.IPv4, models.IPv4Binding{
					Address: ip4.String(),
					Subnet:  ipnet.Mask.String(),
				})
			} else {
				ones, _ := ipnet.Mask.Size()
				mi.IPv6 = append(mi.IPv6, models.IPv6Binding{
					Address:      ipnet.IP.String(),
					PrefixLength: ones,
					Scope:        classifyIPv6Scope(ipnet.IP),
				})
			}
		}
		out = append(out, mi)
	}

	p.cached = out
	return out, nil
}

func classifyInterface(nif net.Interface) models.InterfaceType {
	name := strings.ToLower(nif.Name)
	switch {
	case nif.Flags&net.FlagLoopback != 0:
		return models.IfaceLoopback
	case strings.HasPrefix(name, "wl"):
		return models.IfaceWifi
	case strings.HasPrefix(name, "br"):
		return models.IfaceBridge
	case strings.HasPrefix(name, "tun") || strings.HasPrefix(name, "tap"):
		return models.IfaceTunnel
	case strings.HasPrefix(name, "wg") || strings.HasPrefix(name, "vpn"):
		return models.IfaceVpn
	case strings.HasPrefix(name, "veth") || strings.HasPrefix(name, "docker"):
		return models.IfaceVirtual
	case strings.HasPrefix(name, "eth") || strings.HasPrefix(name, "en"):
		return models.IfaceEthernet
	default:
		return models.IfaceOther
	}
}

func classifyIPv6Scope(ip net.IP) models.IPv6Scope {
	switch {
	case ip.IsLoopback():
		return models.ScopeLoopback
	case ip.IsLinkLocalUnicast():
		return models.ScopeLinkLocal
	case isUniqueLocal(ip):
		return models.ScopeUniqueLocal
	default:
		return models.ScopeGlobal
	}
}

func isUniqueLocal(ip net.IP) bool {
	return len(ip) == net.IPv6len && ip[0] == 0xfc || (len(ip) == net.IPv6len && ip[0] == 0xfd)
}

func (p *LinuxNetworkProvider) GetInterface(ctx context.Context, name string) (*models.Interface, error) {
	ifaces, err := p.ListInterfaces(ctx)
	if err != nil {
		return nil, err
	}
	for i := range ifaces {
		if ifaces[i].Name == name {
			return &ifaces[i], nil
		}
	}
	return nil, errs.New(errs.NotFound, "providers.GetInterface", fmt.Sprintf("interface %q not found", name))
}

func (p *LinuxNetworkProvider) GetDefaultInterface(ctx context.Context) (*models.Interface, error) {
	ifaces, err := p.ListInterfaces(ctx)
	if err != nil {
		return nil, err
	}
	for i := range ifaces {
		if !ifaces[i].Flags.Loopback && ifaces[i].Flags.Up && len(ifaces[i].IPv4) > 0 {
			return &ifaces[i], nil
		}
	}
	return nil, errs.New(errs.NotFound, "providers.GetDefaultInterface", "no suitable default interface found")
}

func (p *LinuxNetworkProvider) GetDefaultRoute(ctx context.Context) (*models.Route, error) {
	routes, err := p.parseRoutes(ctx, "default")
	if err != nil {
		return nil, err
	}
	for i := range routes {
		if routes[i].IsDefault {
			return &routes[i], nil
		}
	}
	return nil, errs.New(errs.NotFound, "providers.GetDefaultRoute", "no default route present")
}

func (p *LinuxNetworkProvider) GetRoutes(ctx context.Context) ([]models.Route, error) {
	return p.parseRoutes(ctx, "")
}

// parseRoutes runs `ip route show [selector]` and parses each line into a
// models.Route, scanning the "via" token as GetDefaultGateway does for the
// single-route case, plus "dev" and "metric".
func (p *LinuxNetworkProvider) parseRoutes(ctx context.Context, selector string) ([]models.Route, error) {
	args := []string{"route", "show"}
	if selector != "" {
		args = append(args, selector)
	}
	out, err := exec.CommandContext(ctx, "ip", args...).Output()
	if err != nil {
		return nil, errs.Wrap(errs.Platform, "providers.GetRoutes", "failed to query routing table", err)
	}

	var routes []models.Route
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		r := models.Route{Destination: fields[0], IsDefault: fields[0] == "default"}
		for i := 1; i < len(fields); i++ {
			switch fields[i] {
			case "via":
				if i+1 < len(fields) {
					r.Gateway = fields[i+1]
				}
			case "dev":
				if i+1 < len(fields) {
					r.Interface = fields[i+1]
				}
			case "metric":
				if i+1 < len(fields) {
					if m, err := strconv.Atoi(fields[i+1]); err == nil {
						r.Metric = m
					}
				}
			}
		}
		routes = append(routes, r)
	}
	return routes, nil
}

// GetDHCPInfo reports the lease a DHCP-managed interface currently holds,
// read from dhclient's per-interface lease file the way Linux dhcp clients
// conventionally record them under /var/lib/dhcp.
func (p *LinuxNetworkProvider) GetDHCPInfo(ctx context.Context, iface string) (*models.DHCPInfo, error) {
	mi, err := p.GetInterface(ctx, iface)
	if err != nil {
		return nil, err
	}
	info := &models.DHCPInfo{Enabled: false}
	if len(mi.IPv4) > 0 {
		info.Address = mi.IPv4[0].Address
	}

	leaseFile := fmt.Sprintf("/var/lib/dhcp/dhclient.%s.leases", iface)
	data, err := os.ReadFile(leaseFile)
	if err != nil {
		return info, nil
	}
	info.Enabled = true
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "option dhcp-server-identifier"):
			fields := strings.Fields(line)
			if len(fields) >= 3 {
				info.ServerIP = strings.TrimSuffix(fields[2], ";")
			}
		case strings.HasPrefix(line, "renew "):
			v := strings.TrimSuffix(strings.TrimPrefix(line, "renew "), ";")
			info.LeaseStart = &v
		case strings.HasPrefix(line, "expire "):
			v := strings.TrimSuffix(strings.TrimPrefix(line, "expire "), ";")
			info.LeaseEnd = &v
		}
	}
	return info, nil
}

func (p *LinuxNetworkProvider) GetDefaultGateway(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "ip", "route", "show", "default").Output()
	if err != nil {
		return "", errs.Wrap(errs.Platform, "providers.GetDefaultGateway", "failed to query default route", err)
	}
	fields := strings.Fields(string(out))
	for i, f := range fields {
		if f == "via" && i+1 < len(fields) {
			return fields[i+1], nil
		}
	}
	return "", errs.New(errs.NotFound, "providers.GetDefaultGateway", "no default route present")
}

func (p *LinuxNetworkProvider) GetDNSServers(ctx context.Context) ([]string, error) {
	f, err := os.Open("/etc/resolv.conf")
	if err != nil {
		return nil, errs.Wrap(errs.Platform, "providers.GetDNSServers", "failed to open resolv.conf", err)
	}
	defer f.Close()

	var servers []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 2 && fields[0] == "nameserver" {
			servers = append(servers, fields[1])
		}
	}
	return servers, nil
}

func (p *LinuxNetworkProvider) DetectISP(ctx context.Context) (string, error) {
	return "", errs.New(errs.Platform, "providers.DetectISP", "ISP detection requires an external ASN lookup collaborator")
}

func (p *LinuxNetworkProvider) SupportsPromiscuous(ctx context.Context, iface string) (bool, error) {
	mi, err := p.GetInterface(ctx, iface)
	if err != nil {
		return false, err
	}
	return !mi.Flags.Loopback, nil
}

func (p *LinuxNetworkProvider) Refresh(ctx context.Context) error {
	_, err := p.reload()
	return err
}

// LinuxPrivilegeProvider reports privilege level via the effective UID.
type LinuxPrivilegeProvider struct{}

func NewLinuxPrivilegeProvider() *LinuxPrivilegeProvider { return &LinuxPrivilegeProvider{} }

func (p *LinuxPrivilegeProvider) CurrentPrivilegeLevel(ctx context.Context) (PrivilegeLevel, error) {
	if os.Geteuid() == 0 {
		return PrivilegeRoot, nil
	}
	return PrivilegeUser, nil
}

func (p *LinuxPrivilegeProvider) HasCapability(ctx context.Context, capability string) (bool, error) {
	level, _ := p.CurrentPrivilegeLevel(ctx)
	return level == PrivilegeRoot, nil
}

func (p *LinuxPrivilegeProvider) AvailableCapabilities(ctx context.Context) ([]string, error) {
	level, _ := p.CurrentPrivilegeLevel(ctx)
	if level == PrivilegeRoot {
		return []string{"CAP_NET_RAW", "CAP_NET_ADMIN"}, nil
	}
	return nil, nil
}

// LinuxSystemInfoProvider reports host identity via the stdlib os/runtime.
type LinuxSystemInfoProvider struct{}

func NewLinuxSystemInfoProvider() *LinuxSystemInfoProvider { return &LinuxSystemInfoProvider{} }

func (p *LinuxSystemInfoProvider) Hostname(ctx context.Context) (string, error) {
	h, err := os.Hostname()
	if err != nil {
		return "", errs.Wrap(errs.Platform, "providers.Hostname", "failed to read hostname", err)
	}
	return h, nil
}

func (p *LinuxSystemInfoProvider) OSType(ctx context.Context) (string, error) {
	return runtime.GOOS, nil
}

func (p *LinuxSystemInfoProvider) OSVersion(ctx context.Context) (string, error) {
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return "unknown", nil
	}
	return strings.TrimSpace(string(data)), nil
}

func (p *LinuxSystemInfoProvider) Arch(ctx context.Context) (string, error) {
	return runtime.GOARCH, nil
}

func (p *LinuxSystemInfoProvider) Uptime(ctx context.Context) (time.Duration, error) {
	data, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return 0, errs.Wrap(errs.Platform, "providers.Uptime", "failed to read /proc/uptime", err)
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, errs.New(errs.Platform, "providers.Uptime", "unexpected /proc/uptime format")
	}
	secs, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, errs.Wrap(errs.Platform, "providers.Uptime", "failed to parse /proc/uptime", err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// LinuxAutofixProvider implements the OS mutation primitives the autofix
// engine invokes, shelling out to `ip`, `resolvectl`, `dhclient`, `sysctl`,
// `systemctl` and `iptables`, and reading resolv.conf for the current DNS
// servers.
type LinuxAutofixProvider struct{}

func NewLinuxAutofixProvider() *LinuxAutofixProvider { return &LinuxAutofixProvider{} }

func (p *LinuxAutofixProvider) FlushDNSCache(ctx context.Context) error {
	if err := exec.CommandContext(ctx, "resolvectl", "flush-caches").Run(); err != nil {
		return errs.Wrap(errs.Platform, "providers.FlushDNSCache", "resolvectl flush-caches failed", err)
	}
	return nil
}

func (p *LinuxAutofixProvider) ResetAdapter(ctx context.Context, iface string) error {
	if err := exec.CommandContext(ctx, "ip", "link", "set", iface, "down").Run(); err != nil {
		return errs.Wrap(errs.Platform, "providers.ResetAdapter", "failed to bring interface down", err)
	}
	if err := exec.CommandContext(ctx, "ip", "link", "set", iface, "up").Run(); err != nil {
		return errs.Wrap(errs.Platform, "providers.ResetAdapter", "failed to bring interface up", err)
	}
	return nil
}

func (p *LinuxAutofixProvider) GetDNSServers(ctx context.Context, iface string) ([]string, error) {
	np := NewLinuxNetworkProvider()
	return np.GetDNSServers(ctx)
}

func (p *LinuxAutofixProvider) SetDNSServers(ctx context.Context, iface string, servers []string) error {
	args := append([]string{"dns", iface}, servers...)
	if err := exec.CommandContext(ctx, "resolvectl", args...).Run(); err != nil {
		return errs.Wrap(errs.Platform, "providers.SetDNSServers", "resolvectl dns failed", err)
	}
	return nil
}

func (p *LinuxAutofixProvider) RenewDHCP(ctx context.Context, iface string) error {
	if err := exec.CommandContext(ctx, "dhclient", "-r", iface).Run(); err != nil {
		return errs.Wrap(errs.Platform, "providers.RenewDHCP", "dhclient release failed", err)
	}
	if err := exec.CommandContext(ctx, "dhclient", iface).Run(); err != nil {
		return errs.Wrap(errs.Platform, "providers.RenewDHCP", "dhclient renew failed", err)
	}
	return nil
}

func (p *LinuxAutofixProvider) ResetTCPIPStack(ctx context.Context) error {
	if err := exec.CommandContext(ctx, "sysctl", "-w", "net.ipv4.tcp_retries2=15").Run(); err != nil {
		return errs.Wrap(errs.Platform, "providers.ResetTCPIPStack", "sysctl reset failed", err)
	}
	return nil
}

func (p *LinuxAutofixProvider) ClearARPCache(ctx context.Context) error {
	if err := exec.CommandContext(ctx, "ip", "neigh", "flush", "all").Run(); err != nil {
		return errs.Wrap(errs.Platform, "providers.ClearARPCache", "ip neigh flush failed", err)
	}
	return nil
}

func (p *LinuxAutofixProvider) RestartNetworkService(ctx context.Context) error {
	if err := exec.CommandContext(ctx, "systemctl", "restart", "systemd-networkd").Run(); err != nil {
		return errs.Wrap(errs.Platform, "providers.RestartNetworkService", "systemctl restart failed", err)
	}
	return nil
}

func (p *LinuxAutofixProvider) ResetFirewall(ctx context.Context) error {
	if err := exec.CommandContext(ctx, "iptables", "-F").Run(); err != nil {
		return errs.Wrap(errs.Platform, "providers.ResetFirewall", "iptables -F failed", err)
	}
	return nil
}

func (p *LinuxAutofixProvider) RunCustomCommand(ctx context.Context, cmd string, args []string) error {
	if err := exec.CommandContext(ctx, cmd, args...).Run(); err != nil {
		return errs.Wrap(errs.Platform, "providers.RunCustomCommand", fmt.Sprintf("command %q failed", cmd), err)
	}
	return nil
}
