/**
 * Packet Decoder.
 *
 * Parses link, network, and transport layers in that order, producing a
 * DecodedPacket with missing layers left absent, and tags well-known
 * application protocols by port.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package capture

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/netdiag/netdiag/internal/models"
)

// maxPreviewBytes bounds the raw payload preview attached for an
// application-layer payload, or for the undecodable bytes when parsing fails.
const maxPreviewBytes = 64

// Decode turns one captured gopacket.Packet into a DecodedPacket.
func Decode(pkt gopacket.Packet) models.DecodedPacket {
	meta := pkt.Metadata()
	d := models.DecodedPacket{
		Timestamp:      meta.Timestamp,
		WireLength:     meta.Length,
		CapturedLength: meta.CaptureLength,
		Protocol:       models.ProtoTagUnknown,
	}

	if eth, ok := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet); ok {
		src, dst := eth.SrcMAC.String(), eth.DstMAC.String()
		d.SrcMAC, d.DstMAC = &src, &dst
		et := uint16(eth.EthernetType)
		d.EtherType = &et
		d.Protocol = models.ProtoTagEther
	}

	if arp, ok := pkt.Layer(layers.LayerTypeARP).(*layers.ARP); ok {
		d.SrcIP = arp.SourceProtAddress
		d.DstIP = arp.DstProtAddress
		d.Protocol = models.ProtoTagARP
	}

	if ip4, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4); ok {
		d.SrcIP = ip4.SrcIP
		d.DstIP = ip4.DstIP
		proto := uint8(ip4.Protocol)
		d.IPProtocol = &proto
		d.TTL = &ip4.TTL
		d.Protocol = models.ProtoTagIPv4
	} else if ip6, ok := pkt.Layer(layers.LayerTypeIPv6).(*layers.IPv6); ok {
		d.SrcIP = ip6.SrcIP
		d.DstIP = ip6.DstIP
		proto := uint8(ip6.NextHeader)
		d.IPProtocol = &proto
		d.TTL = &ip6.HopLimit
		d.Protocol = models.ProtoTagIPv6
	}

	var srcPort, dstPort *uint16
	if tcp, ok := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP); ok {
		sp, dp := uint16(tcp.SrcPort), uint16(tcp.DstPort)
		srcPort, dstPort = &sp, &dp
		d.TCPFlags = &models.TCPFlags{
			FIN: tcp.FIN, SYN: tcp.SYN, RST: tcp.RST, PSH: tcp.PSH,
			ACK: tcp.ACK, URG: tcp.URG, ECE: tcp.ECE, CWR: tcp.CWR,
		}
		d.Protocol = models.ProtoTagTCP
	} else if udp, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP); ok {
		sp, dp := uint16(udp.SrcPort), uint16(udp.DstPort)
		srcPort, dstPort = &sp, &dp
		d.Protocol = models.ProtoTagUDP
	}
	d.SrcPort, d.DstPort = srcPort, dstPort

	if icmp, ok := pkt.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4); ok {
		t, c := uint8(icmp.TypeCode.Type()), uint8(icmp.TypeCode.Code())
		d.ICMPType, d.ICMPCode = &t, &c
		d.Protocol = models.ProtoTagICMP
	} else if icmp6, ok := pkt.Layer(layers.LayerTypeICMPv6).(*layers.ICMPv6); ok {
		t, c := uint8(icmp6.TypeCode.Type()), uint8(icmp6.TypeCode.Code())
		d.ICMPType, d.ICMPCode = &t, &c
		d.Protocol = models.ProtoTagICMPv6
	}

	if srcPort != nil && dstPort != nil {
		if tag, ok := tagFromPorts(*srcPort, *dstPort); ok {
			d.Protocol = tag
		}
	}

	var raw []byte
	hasRaw := false
	if app := pkt.ApplicationLayer(); app != nil {
		raw, hasRaw = app.Payload(), true
	} else if failure := pkt.ErrorLayer(); failure != nil {
		raw, hasRaw = failure.LayerContents(), true
	}
	if hasRaw {
		payload := raw
		if n := len(payload); n > maxPreviewBytes {
			payload = payload[:maxPreviewBytes]
		}
		preview := make([]byte, len(payload))
		copy(preview, payload)
		d.PayloadPreview = preview
	}

	return d
}

// tagFromPorts maps well-known ports to an application protocol tag:
// 80/8080 HTTP, 443/8443 HTTPS, 22 SSH, 53 DNS, 67/68 DHCP.
func tagFromPorts(src, dst uint16) (models.ProtocolTag, bool) {
	for _, p := range []uint16{src, dst} {
		switch p {
		case 80, 8080:
			return models.ProtoTagHTTP, true
		case 443, 8443:
			return models.ProtoTagHTTPS, true
		case 22:
			return models.ProtoTagSSH, true
		case 53:
			return models.ProtoTagDNS, true
		case 67, 68:
			return models.ProtoTagDHCP, true
		}
	}
	return "", false
}
