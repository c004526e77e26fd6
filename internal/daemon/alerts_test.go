package daemon

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/netdiag/netdiag/internal/config"
	"github.com/netdiag/netdiag/internal/models"
)

func TestParseAlertMethod(t *testing.T) {
	cases := []struct {
		in   string
		want models.AlertMethod
	}{
		{"log", models.AlertMethod{Kind: models.MethodLog}},
		{"notification", models.AlertMethod{Kind: models.MethodNotification}},
		{"file:/var/log/netdiag-alerts.log", models.AlertMethod{Kind: models.MethodFile, Path: "/var/log/netdiag-alerts.log"}},
		{"command:/usr/local/bin/notify", models.AlertMethod{Kind: models.MethodCommand, Command: "/usr/local/bin/notify"}},
		{"bogus", models.AlertMethod{Kind: models.MethodLog}},
	}
	for _, c := range cases {
		if got := parseAlertMethod(c.in); got != c.want {
			t.Errorf("parseAlertMethod(%q) = %+v, want %+v", c.in, got, c.want)
		}
	}
}

func TestDeliverAppendsToFileAndCounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.log")
	var count uint64
	d := NewDispatcher(config.Alerts{Methods: []string{"file:" + path}}, &count, nil)

	alert := models.Alert{
		Severity: models.AlertCritical,
		Message:  "gateway is unhealthy",
		Target:   models.MonitorTarget{Kind: models.TargetGateway},
		Time:     time.Now().UTC(),
	}
	d.deliver(alert)
	d.deliver(alert)

	if count != 2 {
		t.Errorf("alerts_generated = %d, want 2", count)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("alert file not written: %v", err)
	}
	lines := strings.Count(string(data), "\n")
	if lines != 2 {
		t.Errorf("expected 2 alert lines, got %d: %q", lines, data)
	}
	if !strings.Contains(string(data), "gateway is unhealthy") {
		t.Errorf("alert message missing from file: %q", data)
	}
}

func TestDispatchDropsWhenChannelFull(t *testing.T) {
	d := NewDispatcher(config.Alerts{Methods: []string{"log"}}, nil, nil)

	// Fill the bounded intake channel; the overflow dispatch must not block.
	for i := 0; i < alertChannelCapacity+5; i++ {
		done := make(chan struct{})
		go func() {
			d.Dispatch(models.Alert{Message: "x"})
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Dispatch blocked on a full alert channel")
		}
	}
}

func TestRecentReturnsNewestFirst(t *testing.T) {
	d := NewDispatcher(config.Alerts{}, nil, nil)
	d.deliver(models.Alert{Message: "first"})
	d.deliver(models.Alert{Message: "second"})

	recent := d.Recent(1)
	if len(recent) != 1 || recent[0].Message != "second" {
		t.Errorf("Recent(1) = %+v, want the newest alert", recent)
	}
}
