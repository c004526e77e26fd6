/**
 * Traceroute Engine.
 *
 * Per-TTL ICMP probing with time-exceeded/echo-reply matching, the
 * all_timeout hop summary, and first-terminal-reply-wins early exit.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package probe

import (
	"context"
	"net"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/netdiag/netdiag/internal/errs"
	"github.com/netdiag/netdiag/internal/models"
)

// TracerouteConfig controls one traceroute session.
type TracerouteConfig struct {
	MaxHops int
	Probes  int
	Timeout time.Duration
}

// DefaultTracerouteConfig probes 30 hops, three probes each, with a
// one-second per-probe timeout.
func DefaultTracerouteConfig() TracerouteConfig {
	return TracerouteConfig{MaxHops: 30, Probes: 3, Timeout: time.Second}
}

// Traceroute runs one traceroute session against target, which may be a
// hostname (resolution failure surfaces with kind Dns).
func (e *Engine) Traceroute(ctx context.Context, target string, cfg TracerouteConfig) (*models.TracerouteResult, error) {
	dst, _, err := e.resolver.ResolveOne(ctx, target)
	if err != nil {
		return nil, err
	}
	isV6 := dst.To4() == nil

	conn, err := listenICMP(isV6)
	if err != nil {
		return nil, errs.Wrap(errs.Platform, "probe.Traceroute", "failed to open ICMP socket", err)
	}
	defer conn.Close()

	var p4 *ipv4.PacketConn
	var p6 *ipv6.PacketConn
	if isV6 {
		p6 = conn.IPv6PacketConn()
	} else {
		p4 = conn.IPv4PacketConn()
	}

	result := &models.TracerouteResult{Target: dst, Protocol: models.ProtoICMP}

	for ttl := 1; ttl <= cfg.MaxHops; ttl++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if isV6 {
			p6.SetHopLimit(ttl)
		} else {
			p4.SetTTL(ttl)
		}

		hop := models.TracerouteHop{Index: ttl, AllTimeout: true}
		terminal := false
		var terminalAddr net.IP

		for probe := 0; probe < cfg.Probes; probe++ {
			rtt, addr, isTerminal, err := e.tracerouteProbe(ctx, conn, dst, isV6, e.sessionID, ttl*1000+probe, cfg.Timeout)
			if err != nil {
				hop.RTTsMs = append(hop.RTTsMs, nil)
				continue
			}
			hop.AllTimeout = false
			hop.RTTsMs = append(hop.RTTsMs, &rtt)
			if hop.Address == nil {
				hop.Address = addr
			}
			if isTerminal {
				terminal = true
				terminalAddr = addr
				break
			}
		}

		result.Hops = append(result.Hops, hop)

		if terminal {
			result.Reached = terminalAddr != nil
			break
		}
	}

	return result, nil
}

// tracerouteProbe sends one probe at the connection's current TTL/hop
// limit and reports whether the reply was a terminal (echo-reply or
// destination-unreachable) response versus a transit time-exceeded.
func (e *Engine) tracerouteProbe(ctx context.Context, conn *icmp.PacketConn, dst net.IP, isV6 bool, id, seq int, timeout time.Duration) (float64, net.IP, bool, error) {
	msgType := icmp.Type(ipv4.ICMPTypeEcho)
	if isV6 {
		msgType = ipv6.ICMPTypeEchoRequest
	}
	msg := icmp.Message{Type: msgType, Code: 0, Body: &icmp.Echo{ID: id & 0xffff, Seq: seq & 0xffff, Data: []byte("netdiag")}}
	wire, err := msg.Marshal(nil)
	if err != nil {
		return 0, nil, false, errs.Wrap(errs.Transport, "probe.tracerouteProbe", "failed to marshal probe", err)
	}

	sendTime := time.Now()
	if _, err := conn.WriteTo(wire, &net.UDPAddr{IP: dst}); err != nil {
		return 0, nil, false, errs.Wrap(errs.Transport, "probe.tracerouteProbe", "failed to send probe", err)
	}

	conn.SetReadDeadline(sendTime.Add(timeout))
	buf := make([]byte, 1500)

	n, peer, err := conn.ReadFrom(buf)
	if err != nil {
		return 0, nil, false, errs.New(errs.Timeout, "probe.tracerouteProbe", "no reply within timeout")
	}
	rtt := float64(time.Since(sendTime)) / float64(time.Millisecond)

	proto := 1
	if isV6 {
		proto = 58
	}
	parsed, err := icmp.ParseMessage(proto, buf[:n])
	if err != nil {
		return 0, nil, false, errs.Wrap(errs.Transport, "probe.tracerouteProbe", "failed to parse ICMP reply", err)
	}

	var addr net.IP
	if udpAddr, ok := peer.(*net.UDPAddr); ok {
		addr = udpAddr.IP
	}

	switch parsed.Type {
	case ipv4.ICMPTypeEchoReply, ipv6.ICMPTypeEchoReply:
		return rtt, addr, true, nil
	case ipv4.ICMPTypeDestinationUnreachable, ipv6.ICMPTypeDestinationUnreachable:
		return rtt, addr, true, nil
	case ipv4.ICMPTypeTimeExceeded, ipv6.ICMPTypeTimeExceeded:
		return rtt, addr, false, nil
	default:
		return rtt, addr, false, nil
	}
}

