package capture

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/netdiag/netdiag/internal/models"
)

func buildTCPPacket(t *testing.T, srcPort, dstPort layers.TCPPort) gopacket.Packet {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{6, 7, 8, 9, 10, 11},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.ParseIP("10.0.0.1").To4(),
		DstIP:    net.ParseIP("10.0.0.2").To4(),
	}
	tcp := &layers.TCP{SrcPort: srcPort, DstPort: dstPort, SYN: true}
	tcp.SetNetworkLayerForChecksum(ip)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload([]byte("hello"))); err != nil {
		t.Fatalf("failed to serialize test packet: %v", err)
	}
	return gopacket.NewPacket(buf.Bytes(), layers.LayerTypeEthernet, gopacket.Default)
}

func TestDecodeTagsHTTPSByPort(t *testing.T) {
	pkt := buildTCPPacket(t, 51234, 443)
	d := Decode(pkt)

	if d.Protocol != models.ProtoTagHTTPS {
		t.Errorf("Protocol = %v, want HTTPS", d.Protocol)
	}
	if d.SrcIP.String() != "10.0.0.1" || d.DstIP.String() != "10.0.0.2" {
		t.Errorf("unexpected src/dst IP: %v -> %v", d.SrcIP, d.DstIP)
	}
	if d.TCPFlags == nil || !d.TCPFlags.SYN {
		t.Error("expected SYN flag to be decoded")
	}
	if d.CapturedLength < len(d.PayloadPreview) {
		t.Errorf("payload preview longer than captured length")
	}
}

func TestDecodeUnclassifiedTransportKeepsTCP(t *testing.T) {
	pkt := buildTCPPacket(t, 51234, 9999)
	d := Decode(pkt)
	if d.Protocol != models.ProtoTagTCP {
		t.Errorf("Protocol = %v, want TCP for an unmapped port", d.Protocol)
	}
}
