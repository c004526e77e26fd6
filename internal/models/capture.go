/**
 * Capture Model.
 *
 * DecodedPacket and CaptureStats, the unified output of the packet capture
 * pipeline's decoder and rolling statistics tracker.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package models

import (
	"net"
	"time"
)

// ProtocolTag classifies a DecodedPacket at the granularity the capture
// pipeline reports, spanning link through application-layer guesses.
type ProtocolTag string

const (
	ProtoTagUnknown ProtocolTag = "unknown"
	ProtoTagEther   ProtocolTag = "ethernet"
	ProtoTagARP     ProtocolTag = "arp"
	ProtoTagIPv4    ProtocolTag = "ipv4"
	ProtoTagIPv6    ProtocolTag = "ipv6"
	ProtoTagTCP     ProtocolTag = "tcp"
	ProtoTagUDP     ProtocolTag = "udp"
	ProtoTagICMP    ProtocolTag = "icmp"
	ProtoTagICMPv6  ProtocolTag = "icmpv6"
	ProtoTagDNS     ProtocolTag = "dns"
	ProtoTagHTTP    ProtocolTag = "http"
	ProtoTagHTTPS   ProtocolTag = "https"
	ProtoTagSSH     ProtocolTag = "ssh"
	ProtoTagDHCP    ProtocolTag = "dhcp"
)

// TCPFlags mirrors the bits of a TCP segment's flag byte.
type TCPFlags struct {
	FIN, SYN, RST, PSH, ACK, URG, ECE, CWR bool
}

// DecodedPacket is the unified, layer-flattened view of one captured frame.
//
// Invariant: len(PayloadPreview) <= CapturedLength.
type DecodedPacket struct {
	Timestamp      time.Time
	WireLength     int
	CapturedLength int
	SrcMAC         *string
	DstMAC         *string
	EtherType      *uint16
	SrcIP          net.IP
	DstIP          net.IP
	IPProtocol     *uint8
	TTL            *uint8
	SrcPort        *uint16
	DstPort        *uint16
	Protocol       ProtocolTag
	TCPFlags       *TCPFlags
	ICMPType       *uint8
	ICMPCode       *uint8
	PayloadPreview []byte
}

// ProtocolCount is the per-protocol tally kept inside CaptureStats.
type ProtocolCount struct {
	Packets uint64
	Bytes   uint64
}

// CaptureStats is the rolling and final summary of a capture session.
//
// Invariant: sum(ProtocolBreakdown[*].Packets) <= TotalPackets.
type CaptureStats struct {
	TotalPackets      uint64
	TotalBytes        uint64
	DroppedKernel     uint64
	DroppedInterface  uint64
	ProtocolBreakdown map[ProtocolTag]ProtocolCount
	Duration          time.Duration
	PacketsPerSecond  float64
	BandwidthBitsPerSecond float64
	TopTalkers        []TopTalker
}

// TopTalker is one entry in the capture session's most-frequent-address list.
type TopTalker struct {
	Address net.IP
	Packets uint64
}
