package daemon

import (
	"context"
	"testing"

	"github.com/netdiag/netdiag/internal/config"
	"github.com/netdiag/netdiag/internal/errs"
	"github.com/netdiag/netdiag/internal/models"
	"github.com/netdiag/netdiag/internal/probe"
)

// fakePinger returns a canned result per target address.
type fakePinger struct {
	results map[string]*models.PingResult
	err     map[string]error
	calls   int
}

func (f *fakePinger) Ping(ctx context.Context, target string, cfg probe.PingConfig) (*models.PingResult, error) {
	f.calls++
	if err, ok := f.err[target]; ok {
		return nil, err
	}
	if r, ok := f.results[target]; ok {
		return r, nil
	}
	return &models.PingResult{Sent: 4, Received: 4}, nil
}

func pingOK(avgMs float64) *models.PingResult {
	return &models.PingResult{Sent: 4, Received: 4, AvgMs: &avgMs}
}

func testMonitor(pinger Pinger, targets ...string) *Monitor {
	cfg := config.Monitoring{Enabled: true, IntervalSeconds: 30, Targets: targets}
	alerts := config.Alerts{Enabled: true, LatencyThresholdMs: 150, LossThresholdPct: 5}
	return NewMonitor(cfg, alerts, pinger, nil, nil)
}

func TestClassifyPerTargetStatus(t *testing.T) {
	m := testMonitor(&fakePinger{})

	lat := 10.0
	high := 300.0
	msg := "unreachable"
	cases := []struct {
		name   string
		result models.MonitorResult
		want   models.HealthStatus
	}{
		{"healthy", models.MonitorResult{Success: true, LatencyMs: &lat}, models.HealthHealthy},
		{"failed check", models.MonitorResult{Success: false}, models.HealthUnhealthy},
		{"errored check", models.MonitorResult{Error: &msg}, models.HealthUnhealthy},
		{"high latency", models.MonitorResult{Success: true, LatencyMs: &high}, models.HealthDegraded},
		{"heavy loss", models.MonitorResult{Success: true, LatencyMs: &lat, PacketLoss: 50}, models.HealthUnhealthy},
	}
	for _, c := range cases {
		if got := m.classify(c.result); got != c.want {
			t.Errorf("%s: classify = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestSnapshotWorstWins(t *testing.T) {
	pinger := &fakePinger{
		results: map[string]*models.PingResult{
			"192.0.2.10": pingOK(10),
			"192.0.2.11": pingOK(500), // over the 150ms threshold -> Degraded
		},
	}
	m := testMonitor(pinger, "192.0.2.10", "192.0.2.11")
	m.tick(context.Background())

	snap := m.Snapshot()
	if snap.Status != models.HealthDegraded {
		t.Errorf("overall status = %v, want worst-wins Degraded", snap.Status)
	}
	if len(snap.Targets) != 2 {
		t.Fatalf("expected 2 targets in snapshot, got %d", len(snap.Targets))
	}
}

func TestSnapshotUnhealthyBeatsDegraded(t *testing.T) {
	pinger := &fakePinger{
		results: map[string]*models.PingResult{"192.0.2.10": pingOK(500)},
		err:     map[string]error{"192.0.2.11": errs.New(errs.Transport, "test", "induced failure")},
	}
	m := testMonitor(pinger, "192.0.2.10", "192.0.2.11")
	m.tick(context.Background())

	if snap := m.Snapshot(); snap.Status != models.HealthUnhealthy {
		t.Errorf("overall status = %v, want Unhealthy", snap.Status)
	}
}

func TestPausedTickSkipsChecks(t *testing.T) {
	pinger := &fakePinger{}
	m := testMonitor(pinger, "192.0.2.10")

	m.Pause()
	m.tick(context.Background())
	if pinger.calls != 0 {
		t.Errorf("paused tick ran %d checks, want 0", pinger.calls)
	}
	if snap := m.Snapshot(); snap.Status != models.HealthUnknown {
		t.Errorf("status before any check = %v, want Unknown", snap.Status)
	}

	m.Resume()
	m.tick(context.Background())
	if pinger.calls == 0 {
		t.Error("resumed tick should run checks again")
	}
}

func TestParseTargetKinds(t *testing.T) {
	cases := map[string]models.MonitorTargetKind{
		"gateway":     models.TargetGateway,
		"dns":         models.TargetDns,
		"internet":    models.TargetInternet,
		"192.0.2.1":   models.TargetIP,
		"example.com": models.TargetHost,
	}
	for in, want := range cases {
		if got := parseTarget(in); got.Kind != want {
			t.Errorf("parseTarget(%q).Kind = %v, want %v", in, got.Kind, want)
		}
	}
}
