/**
 * Ping Engine.
 *
 * Sends ICMP echo requests over an unprivileged (SOCK_DGRAM) socket via
 * golang.org/x/net/icmp, matching the request/reply correlation and RTT
 * statistics the ping algorithm describes: exact (id, seq) attribution,
 * late replies counted as lost, jitter as mean absolute delta of
 * consecutive RTTs.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package probe

import (
	"context"
	"math"
	"net"
	"os"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/netdiag/netdiag/internal/errs"
	"github.com/netdiag/netdiag/internal/models"
)

// PingConfig controls one ping session.
type PingConfig struct {
	Count        int
	PayloadSize  int
	Interval     time.Duration
	Timeout      time.Duration
}

// DefaultPingConfig is the 4-probe, half-second-timeout configuration most
// callers want.
func DefaultPingConfig() PingConfig {
	return PingConfig{Count: 4, PayloadSize: 32, Interval: 100 * time.Millisecond, Timeout: 500 * time.Millisecond}
}

// Engine is the probe engine: ping, traceroute, and resolution.
type Engine struct {
	resolver *Resolver
	sessionID int
}

// NewEngine constructs an Engine seeded with the process PID as the ICMP
// session identifier, so Engines in different processes do not collide on
// ICMP id/seq correlation; Engines in the same process share the identifier.
func NewEngine() *Engine {
	return &Engine{resolver: NewResolver(), sessionID: os.Getpid() & 0xffff}
}

// Ping runs one ping session against target per cfg. target may be a
// hostname, in which case resolution failure surfaces with kind Dns.
func (e *Engine) Ping(ctx context.Context, target string, cfg PingConfig) (*models.PingResult, error) {
	ip, _, err := e.resolver.ResolveOne(ctx, target)
	if err != nil {
		return nil, err
	}

	isV6 := ip.To4() == nil
	conn, err := listenICMP(isV6)
	if err != nil {
		return nil, errs.Wrap(errs.Platform, "probe.Ping", "failed to open ICMP socket", err)
	}
	defer conn.Close()

	result := &models.PingResult{Target: ip, Sent: cfg.Count}
	var rtts []float64

	for seq := 1; seq <= cfg.Count; seq++ {
		rtt, err := e.pingOnce(ctx, conn, ip, isV6, e.sessionID, seq, cfg)
		result.Sent = seq
		if err == nil {
			result.Received++
			rtts = append(rtts, rtt)
		} else {
			result.Lost++
		}

		if seq < cfg.Count {
			select {
			case <-ctx.Done():
				result.Lost += cfg.Count - seq
				result.Sent = cfg.Count
				goto done
			case <-time.After(cfg.Interval):
			}
		}
	}

done:
	if result.Sent == 0 {
		result.Sent = cfg.Count
	}
	result.Lost = result.Sent - result.Received
	if result.Sent > 0 {
		result.LossPercent = 100 * float64(result.Lost) / float64(result.Sent)
	}

	if result.Received > 0 {
		min, max, sum := rtts[0], rtts[0], 0.0
		for _, v := range rtts {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
			sum += v
		}
		avg := sum / float64(len(rtts))

		var jitterSum float64
		for i := 1; i < len(rtts); i++ {
			jitterSum += math.Abs(rtts[i] - rtts[i-1])
		}
		var jitter float64
		if len(rtts) > 1 {
			jitter = jitterSum / float64(len(rtts)-1)
		}

		result.MinMs, result.AvgMs, result.MaxMs, result.JitterMs = &min, &avg, &max, &jitter
	}

	return result, nil
}

func (e *Engine) pingOnce(ctx context.Context, conn *icmp.PacketConn, dst net.IP, isV6 bool, id, seq int, cfg PingConfig) (float64, error) {
	msgType := icmp.Type(ipv4.ICMPTypeEcho)
	if isV6 {
		msgType = ipv6.ICMPTypeEchoRequest
	}

	payload := make([]byte, cfg.PayloadSize)
	msg := icmp.Message{
		Type: msgType,
		Code: 0,
		Body: &icmp.Echo{ID: id, Seq: seq, Data: payload},
	}
	wire, err := msg.Marshal(nil)
	if err != nil {
		return 0, errs.Wrap(errs.Transport, "probe.pingOnce", "failed to marshal ICMP echo", err)
	}

	sendTime := time.Now()
	dstAddr := &net.UDPAddr{IP: dst}
	if _, err := conn.WriteTo(wire, dstAddr); err != nil {
		return 0, errs.Wrap(errs.Transport, "probe.pingOnce", "failed to send ICMP echo", err)
	}

	deadline := sendTime.Add(cfg.Timeout)
	conn.SetReadDeadline(deadline)

	buf := make([]byte, 1500)
	for {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			return 0, errs.Wrap(errs.Timeout, "probe.pingOnce", "no reply received", err)
		}

		proto := 1
		if isV6 {
			proto = 58
		}
		parsed, err := icmp.ParseMessage(proto, buf[:n])
		if err != nil {
			continue
		}
		echo, ok := parsed.Body.(*icmp.Echo)
		if !ok {
			continue
		}
		if echo.ID != id || echo.Seq != seq {
			continue // not our reply; keep waiting until the deadline
		}

		recvTime := time.Now()
		if recvTime.After(deadline) {
			return 0, errs.New(errs.Timeout, "probe.pingOnce", "reply arrived after deadline")
		}
		return float64(recvTime.Sub(sendTime)) / float64(time.Millisecond), nil
	}
}

func listenICMP(isV6 bool) (*icmp.PacketConn, error) {
	if isV6 {
		return icmp.ListenPacket("udp6", "::")
	}
	return icmp.ListenPacket("udp4", "0.0.0.0")
}
