/**
 * Diagnostic Scheduler.
 *
 * Compiles cron-triggered ScheduledJobs and fires DiagnosticRequests onto a
 * bounded channel when each trigger elapses. Firing is decoupled from
 * execution: the cron clock never blocks on a busy executor, it just fails
 * the dispatch and waits for the next trigger.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package daemon

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/netdiag/netdiag/internal/config"
	"github.com/netdiag/netdiag/internal/errs"
	"github.com/netdiag/netdiag/internal/models"
)

// diagnosticChannelCapacity bounds how many fired-but-unexecuted triggers
// can queue before dispatches start being dropped.
const diagnosticChannelCapacity = 32

// Scheduler compiles and fires cron-triggered diagnostics. It never blocks
// the caller: a dispatch into a full channel is logged as dropped and the
// job remains scheduled for its next trigger.
type Scheduler struct {
	mu   sync.RWMutex
	jobs map[string]*models.ScheduledJob
	ids  map[string]cron.EntryID

	cron   *cron.Cron
	out    chan models.DiagnosticRequest
	logger *zap.SugaredLogger
}

// NewScheduler constructs an idle Scheduler; call Start to begin firing.
func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		jobs:   make(map[string]*models.ScheduledJob),
		ids:    make(map[string]cron.EntryID),
		cron:   cron.New(),
		out:    make(chan models.DiagnosticRequest, diagnosticChannelCapacity),
		logger: sugar(logger),
	}
}

// Requests returns the channel the DiagnosticExecutor drains in FIFO order.
func (s *Scheduler) Requests() <-chan models.DiagnosticRequest { return s.out }

// AddSchedules registers every enabled entry in schedules. A schedule with
// an empty or unparseable cron expression is rejected with a Config error
// and skipped; the remaining schedules still load. The first rejection, if
// any, is returned after all schedules have been attempted.
func (s *Scheduler) AddSchedules(schedules []config.Schedule) error {
	var first error
	for _, sc := range schedules {
		if !sc.Enabled {
			continue
		}
		if err := s.AddSchedule(sc.Name, sc.Cron, parseDiagnosticType(sc.Diagnostic)); err != nil {
			if first == nil {
				first = err
			}
			if s.logger != nil {
				s.logger.Warnw("scheduler.AddSchedules", "job", sc.Name, "error", err)
			}
		}
	}
	return first
}

// AddSchedule compiles one cron expression and registers its job.
func (s *Scheduler) AddSchedule(name, cronExpr string, diagType models.DiagnosticType) error {
	if cronExpr == "" {
		return errs.New(errs.Config, "daemon.AddSchedule", "schedule \""+name+"\" has an empty cron expression")
	}
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return errs.Wrap(errs.Config, "daemon.AddSchedule", "invalid cron expression for \""+name+"\"", err)
	}

	job := &models.ScheduledJob{
		ID:             uuid.NewString(),
		Name:           name,
		Cron:           cronExpr,
		DiagnosticType: diagType,
		Enabled:        true,
	}
	next := schedule.Next(time.Now())
	job.NextRun = &next

	entryID := s.cron.Schedule(schedule, cron.FuncJob(func() { s.fire(name, diagType) }))

	s.mu.Lock()
	s.jobs[name] = job
	s.ids[name] = entryID
	s.mu.Unlock()
	return nil
}

// fire builds and dispatches one DiagnosticRequest for a trigger.
func (s *Scheduler) fire(jobName string, diagType models.DiagnosticType) {
	req := models.DiagnosticRequest{RunID: uuid.NewString(), JobName: jobName, DiagnosticType: diagType}

	s.mu.Lock()
	if job, ok := s.jobs[jobName]; ok {
		if entry := s.cron.Entry(s.ids[jobName]); entry.Valid() {
			next := entry.Next
			job.NextRun = &next
		}
	}
	s.mu.Unlock()

	select {
	case s.out <- req:
	default:
		if s.logger != nil {
			s.logger.Warnw("scheduler.fire", "job", jobName, "error", "diagnostic channel full, dropping trigger")
		}
	}
}

// Trigger fires an ad-hoc diagnostic request outside the cron schedule (used
// by the IPC RunDiagnostic request). jobName is recorded as "manual".
func (s *Scheduler) Trigger(diagType models.DiagnosticType) models.DiagnosticRequest {
	req := models.DiagnosticRequest{RunID: uuid.NewString(), JobName: "manual", DiagnosticType: diagType}
	select {
	case s.out <- req:
	default:
		if s.logger != nil {
			s.logger.Warnw("scheduler.Trigger", "error", "diagnostic channel full, dropping manual trigger")
		}
	}
	return req
}

// Start begins firing compiled schedules.
func (s *Scheduler) Start() { s.cron.Start() }

// Shutdown stops the cron clock, waits for in-flight jobs to finish firing,
// then closes the diagnostic channel so the executor's range loop exits.
func (s *Scheduler) Shutdown() {
	<-s.cron.Stop().Done()
	close(s.out)
}

// Jobs returns a snapshot of all registered jobs.
func (s *Scheduler) Jobs() []models.ScheduledJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ScheduledJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	return out
}

// UpdateLastRun records the completion time of a job's most recent run.
// The executor calls this after every run so Jobs reports when each job
// actually last completed, not just when it will fire next.
func (s *Scheduler) UpdateLastRun(jobName string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[jobName]; ok {
		job.LastRun = &at
	}
}

// parseDiagnosticType maps a daemon.toml diagnostic string onto the typed
// enum, defaulting to Custom for anything unrecognized.
func parseDiagnosticType(s string) models.DiagnosticType {
	switch s {
	case string(models.DiagQuick):
		return models.DiagQuick
	case string(models.DiagFull):
		return models.DiagFull
	case string(models.DiagWifi):
		return models.DiagWifi
	case string(models.DiagSpeed):
		return models.DiagSpeed
	default:
		return models.DiagCustom
	}
}
