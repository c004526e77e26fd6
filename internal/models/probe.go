/**
 * Probe Result Models.
 *
 * Ping and traceroute results produced by the probe engine, and the
 * traceroute protocol selector shared with the path analyzer.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package models

import "net"

// TracerouteProtocol selects the wire protocol a traceroute probe uses.
type TracerouteProtocol string

const (
	ProtoICMP TracerouteProtocol = "icmp"
	ProtoUDP  TracerouteProtocol = "udp"
	ProtoTCP  TracerouteProtocol = "tcp"
)

// PingResult summarizes one ping session against a single target.
//
// Invariant: Sent = Received + Lost; 0 <= LossPercent <= 100; if
// Received == 0 the RTT fields are nil.
type PingResult struct {
	Target      net.IP
	Sent        int
	Received    int
	Lost        int
	LossPercent float64
	MinMs       *float64
	AvgMs       *float64
	MaxMs       *float64
	JitterMs    *float64
}

// TracerouteHop is one hop of a TracerouteResult.
type TracerouteHop struct {
	Index       int
	Address     net.IP
	Hostname    *string
	RTTsMs      []*float64
	AllTimeout  bool
	ASN         *int
	ASName      *string
}

// TracerouteResult is the ordered hop list for one traceroute session.
//
// Invariant: hops are contiguous starting at index 1; Reached implies the
// final hop's address equals the resolved target or a known terminal peer.
type TracerouteResult struct {
	Target   net.IP
	Hops     []TracerouteHop
	Reached  bool
	Protocol TracerouteProtocol
}
