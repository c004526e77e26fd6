package probe

import (
	"context"
	"testing"
	"time"

	"github.com/netdiag/netdiag/internal/errs"
)

func TestPingUnreachableAccountsLoss(t *testing.T) {
	// 192.0.2.1 is TEST-NET-1 (RFC 5737): reserved for documentation and
	// never routable, so every probe must time out.
	e := NewEngine()
	cfg := PingConfig{Count: 4, PayloadSize: 32, Interval: 10 * time.Millisecond, Timeout: 100 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := e.Ping(ctx, "192.0.2.1", cfg)
	if err != nil {
		t.Skipf("ICMP socket unavailable in this sandbox: %v", err)
	}

	if result.Sent != 4 {
		t.Errorf("Sent = %d, want 4", result.Sent)
	}
	if result.Received != 0 {
		t.Errorf("Received = %d, want 0 (unreachable target)", result.Received)
	}
	if result.Lost != 4 {
		t.Errorf("Lost = %d, want 4", result.Lost)
	}
	if result.LossPercent != 100.0 {
		t.Errorf("LossPercent = %v, want 100.0", result.LossPercent)
	}
	if result.MinMs != nil || result.AvgMs != nil || result.MaxMs != nil {
		t.Error("expected RTT fields to be absent when Received == 0")
	}
}

func TestPingZeroCountYieldsEmptyStats(t *testing.T) {
	e := NewEngine()
	cfg := PingConfig{Count: 0, PayloadSize: 32, Interval: 10 * time.Millisecond, Timeout: 100 * time.Millisecond}

	result, err := e.Ping(context.Background(), "127.0.0.1", cfg)
	if err != nil {
		t.Skipf("ICMP socket unavailable in this sandbox: %v", err)
	}
	if result.Sent != 0 || result.Received != 0 || result.Lost != 0 {
		t.Errorf("expected empty counts for count=0, got %+v", result)
	}
	if result.MinMs != nil || result.AvgMs != nil || result.MaxMs != nil || result.JitterMs != nil {
		t.Error("expected no RTT statistics for count=0")
	}
}

func TestResolveOneLiteralIP(t *testing.T) {
	r := NewResolver()
	ip, elapsed, err := r.ResolveOne(context.Background(), "127.0.0.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ip.String() != "127.0.0.1" {
		t.Errorf("ip = %v, want 127.0.0.1", ip)
	}
	if elapsed != 0 {
		t.Errorf("expected zero-duration for a literal IP, got %v", elapsed)
	}
}

func TestResolveUnknownHostFailsWithDnsKind(t *testing.T) {
	r := NewResolver()
	_, _, err := r.Resolve(context.Background(), "this-host-does-not-exist.invalid")
	if err == nil {
		t.Fatal("expected an error resolving an invalid TLD")
	}
	if errs.KindOf(err) != errs.Dns {
		t.Errorf("error kind = %v, want Dns", errs.KindOf(err))
	}
}
