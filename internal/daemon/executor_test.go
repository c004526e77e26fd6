package daemon

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/netdiag/netdiag/internal/models"
	"github.com/netdiag/netdiag/internal/pathanalyzer"
	"github.com/netdiag/netdiag/internal/probe"
)

// fakeProber answers every ping and traceroute with a healthy canned result.
type fakeProber struct {
	fakePinger
}

func (f *fakeProber) Traceroute(ctx context.Context, target string, cfg probe.TracerouteConfig) (*models.TracerouteResult, error) {
	rtt := 1.5
	return &models.TracerouteResult{
		Reached:  true,
		Protocol: models.ProtoICMP,
		Hops:     []models.TracerouteHop{{Index: 1, RTTsMs: []*float64{&rtt}}},
	}, nil
}

func newTestExecutor(in <-chan models.DiagnosticRequest, maxHistory int, onComplete func(string, time.Time), completed *uint64) *Executor {
	avg := 12.0
	jitter := 0.5
	prober := &fakeProber{fakePinger{results: map[string]*models.PingResult{
		defaultDiagnosticTarget: {Sent: 4, Received: 4, AvgMs: &avg, JitterMs: &jitter},
	}}}
	return NewExecutor(in, maxHistory, prober, pathanalyzer.New(), nil, nil, onComplete, completed, nil)
}

func TestExecutorDrainsFIFOAndRecordsRuns(t *testing.T) {
	in := make(chan models.DiagnosticRequest, 4)
	var mu sync.Mutex
	var completedJobs []string
	var count uint64
	e := newTestExecutor(in, 0, func(job string, _ time.Time) {
		mu.Lock()
		completedJobs = append(completedJobs, job)
		mu.Unlock()
	}, &count)

	done := make(chan struct{})
	go func() {
		e.Run(context.Background())
		close(done)
	}()

	in <- models.DiagnosticRequest{RunID: "r1", JobName: "first", DiagnosticType: models.DiagQuick}
	in <- models.DiagnosticRequest{RunID: "r2", JobName: "second", DiagnosticType: models.DiagFull}
	close(in)
	<-done

	if count != 2 {
		t.Errorf("completed counter = %d, want 2", count)
	}

	runs := e.Runs(0)
	if len(runs) != 2 {
		t.Fatalf("expected 2 recorded runs, got %d", len(runs))
	}
	// Runs returns newest first.
	if runs[0].ID != "r2" || runs[1].ID != "r1" {
		t.Errorf("runs out of order: %s, %s", runs[0].ID, runs[1].ID)
	}
	for _, run := range runs {
		if !run.Success {
			t.Errorf("run %s failed: %v", run.ID, run.Error)
		}
		if run.Summary == nil || *run.Summary == "" {
			t.Errorf("run %s has no summary", run.ID)
		}
		if run.CompletedAt == nil {
			t.Errorf("run %s has no completion time", run.ID)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(completedJobs) != 2 || completedJobs[0] != "first" || completedJobs[1] != "second" {
		t.Errorf("completion feedback out of order: %v", completedJobs)
	}
}

func TestExecutorHistoryRingIsBounded(t *testing.T) {
	in := make(chan models.DiagnosticRequest, 8)
	e := newTestExecutor(in, 2, nil, nil)

	done := make(chan struct{})
	go func() {
		e.Run(context.Background())
		close(done)
	}()

	for i := 0; i < 5; i++ {
		in <- models.DiagnosticRequest{RunID: string(rune('a' + i)), JobName: "job", DiagnosticType: models.DiagQuick}
	}
	close(in)
	<-done

	if e.Count() != 2 {
		t.Errorf("history size = %d, want ring bound of 2", e.Count())
	}
	runs := e.Runs(0)
	if runs[0].ID != "e" || runs[1].ID != "d" {
		t.Errorf("ring kept wrong runs: %s, %s", runs[0].ID, runs[1].ID)
	}
}

func TestExecutorPersistCallbackSeesEveryRun(t *testing.T) {
	in := make(chan models.DiagnosticRequest, 2)
	e := newTestExecutor(in, 0, nil, nil)

	var persisted []models.DiagnosticRun
	e.WithPersistence(func(run models.DiagnosticRun) { persisted = append(persisted, run) })

	done := make(chan struct{})
	go func() {
		e.Run(context.Background())
		close(done)
	}()

	in <- models.DiagnosticRequest{RunID: "r1", JobName: "job", DiagnosticType: models.DiagFull}
	close(in)
	<-done

	if len(persisted) != 1 || persisted[0].ID != "r1" {
		t.Errorf("persistence callback missed runs: %+v", persisted)
	}
}

func TestRunWifiWithoutProviderFails(t *testing.T) {
	in := make(chan models.DiagnosticRequest)
	e := newTestExecutor(in, 0, nil, nil)

	if _, err := e.runDiagnostic(context.Background(), models.DiagWifi); err == nil {
		t.Error("expected wifi diagnostic to fail with no WifiProvider wired in")
	}
}
