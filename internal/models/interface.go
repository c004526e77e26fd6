/**
 * Interface Model.
 *
 * Represents a network interface as snapshotted from the operating system:
 * addressing, capability flags, and default-route status.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package models

// InterfaceType classifies what kind of link an Interface represents.
type InterfaceType string

const (
	IfaceLoopback InterfaceType = "loopback"
	IfaceEthernet InterfaceType = "ethernet"
	IfaceWifi     InterfaceType = "wifi"
	IfaceCellular InterfaceType = "cellular"
	IfaceBridge   InterfaceType = "bridge"
	IfaceTunnel   InterfaceType = "tunnel"
	IfaceVpn      InterfaceType = "vpn"
	IfaceVirtual  InterfaceType = "virtual"
	IfaceOther    InterfaceType = "other"
)

// IPv6Scope classifies the reachability scope of an IPv6Binding.
type IPv6Scope string

const (
	ScopeLoopback    IPv6Scope = "loopback"
	ScopeLinkLocal   IPv6Scope = "link_local"
	ScopeUniqueLocal IPv6Scope = "unique_local"
	ScopeGlobal      IPv6Scope = "global"
)

// IPv4Binding is one IPv4 address assigned to an Interface.
type IPv4Binding struct {
	Address   string
	Subnet    string
	Broadcast string
}

// IPv6Binding is one IPv6 address assigned to an Interface.
type IPv6Binding struct {
	Address      string
	PrefixLength int
	Scope        IPv6Scope
}

// InterfaceFlags carries the capability bits the OS reports for a link.
type InterfaceFlags struct {
	Up            bool
	Running       bool
	Broadcast     bool
	Loopback      bool
	PointToPoint  bool
	Multicast     bool
	Promiscuous   bool
}

// Interface is a point-in-time snapshot of one network interface.
type Interface struct {
	Name            string
	FriendlyName    *string
	Index           int
	Type            InterfaceType
	HardwareAddress *[6]byte
	IPv4            []IPv4Binding
	IPv6            []IPv6Binding
	Flags           InterfaceFlags
	MTU             *int
	SpeedMbps       *uint64
	IsDefaultRoute  bool
}

// Route is one entry of the OS routing table, as returned by
// NetworkProvider.GetRoutes/GetDefaultRoute.
type Route struct {
	Destination string
	Gateway     string
	Interface   string
	Metric      int
	IsDefault   bool
}

// DHCPInfo describes the lease a DHCP-managed interface currently holds.
type DHCPInfo struct {
	Enabled    bool
	ServerIP   string
	LeaseStart *string
	LeaseEnd   *string
	Address    string
}
