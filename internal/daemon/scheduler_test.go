package daemon

import (
	"testing"
	"time"

	"github.com/netdiag/netdiag/internal/config"
	"github.com/netdiag/netdiag/internal/errs"
	"github.com/netdiag/netdiag/internal/models"
)

func TestAddScheduleRejectsEmptyCron(t *testing.T) {
	s := NewScheduler(nil)
	err := s.AddSchedule("broken", "", models.DiagQuick)
	if errs.KindOf(err) != errs.Config {
		t.Fatalf("expected Config error for empty cron, got %v", err)
	}
}

func TestAddScheduleRejectsUnparseableCron(t *testing.T) {
	s := NewScheduler(nil)
	err := s.AddSchedule("broken", "not a cron expr", models.DiagQuick)
	if errs.KindOf(err) != errs.Config {
		t.Fatalf("expected Config error for unparseable cron, got %v", err)
	}
}

// TestAddSchedulesLoadsRemainingAfterRejection covers the boundary where a
// schedule with an empty cron expression is refused with a Config error
// while the other schedules still load.
func TestAddSchedulesLoadsRemainingAfterRejection(t *testing.T) {
	s := NewScheduler(nil)
	err := s.AddSchedules([]config.Schedule{
		{Name: "broken", Cron: "", Diagnostic: "quick", Enabled: true},
		{Name: "quick", Cron: "*/1 * * * *", Diagnostic: "quick", Enabled: true},
		{Name: "disabled", Cron: "", Diagnostic: "full", Enabled: false},
	})
	if errs.KindOf(err) != errs.Config {
		t.Fatalf("expected the first rejection to be returned, got %v", err)
	}

	jobs := s.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("expected exactly the valid schedule to load, got %d jobs", len(jobs))
	}
	if jobs[0].Name != "quick" || jobs[0].DiagnosticType != models.DiagQuick {
		t.Errorf("unexpected surviving job: %+v", jobs[0])
	}
	if jobs[0].NextRun == nil {
		t.Error("expected a compiled schedule to carry its next trigger time")
	}
}

func TestTriggerDispatchesManualRequest(t *testing.T) {
	s := NewScheduler(nil)
	req := s.Trigger(models.DiagFull)

	select {
	case got := <-s.Requests():
		if got.RunID != req.RunID || got.JobName != "manual" || got.DiagnosticType != models.DiagFull {
			t.Errorf("dispatched request mismatch: %+v", got)
		}
	default:
		t.Fatal("expected the manual trigger to be waiting on the diagnostic channel")
	}
}

func TestUpdateLastRunRecordsCompletion(t *testing.T) {
	s := NewScheduler(nil)
	if err := s.AddSchedule("quick", "*/5 * * * *", models.DiagQuick); err != nil {
		t.Fatalf("AddSchedule: %v", err)
	}

	at := time.Now().UTC()
	s.UpdateLastRun("quick", at)

	jobs := s.Jobs()
	if len(jobs) != 1 || jobs[0].LastRun == nil || !jobs[0].LastRun.Equal(at) {
		t.Errorf("expected LastRun recorded, got %+v", jobs)
	}
}

func TestParseDiagnosticTypeDefaultsToCustom(t *testing.T) {
	cases := map[string]models.DiagnosticType{
		"quick":    models.DiagQuick,
		"full":     models.DiagFull,
		"wifi":     models.DiagWifi,
		"speed":    models.DiagSpeed,
		"anything": models.DiagCustom,
		"":         models.DiagCustom,
	}
	for in, want := range cases {
		if got := parseDiagnosticType(in); got != want {
			t.Errorf("parseDiagnosticType(%q) = %v, want %v", in, got, want)
		}
	}
}
