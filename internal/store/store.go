/**
 * Diagnostic History Store.
 *
 * SQLite-backed persistence for DiagnosticRun history and the latest
 * MonitoringData snapshot, a durable companion to the executor's bounded
 * in-memory ring and the monitor's live snapshot: a restarted daemon can
 * answer history and status queries before its first new tick.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package store

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/netdiag/netdiag/internal/errs"
	"github.com/netdiag/netdiag/internal/models"
)

// Store persists diagnostic run history and monitoring snapshots.
type Store struct {
	db *sql.DB
}

// Open creates the parent directory if needed, opens (creating if absent)
// the SQLite database at path, and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errs.Wrap(errs.Platform, "store.Open", "failed to create storage directory", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errs.Wrap(errs.Platform, "store.Open", "failed to open database", err)
	}
	if err := db.Ping(); err != nil {
		return nil, errs.Wrap(errs.Platform, "store.Open", "failed to ping database", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return errs.Wrap(errs.Platform, "store.migrate", "failed to apply schema", err)
	}
	return nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun inserts or replaces one DiagnosticRun record.
func (s *Store) SaveRun(run models.DiagnosticRun) error {
	var summary, errMsg interface{}
	if run.Summary != nil {
		summary = *run.Summary
	}
	if run.Error != nil {
		errMsg = *run.Error
	}
	_, err := s.db.Exec(
		`INSERT INTO diagnostic_runs (id, job_name, diagnostic_type, started_at, completed_at, success, summary, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   completed_at = excluded.completed_at,
		   success = excluded.success,
		   summary = excluded.summary,
		   error = excluded.error`,
		run.ID, run.JobName, string(run.DiagnosticType), run.StartedAt, run.CompletedAt, run.Success, summary, errMsg,
	)
	if err != nil {
		return errs.Wrap(errs.Platform, "store.SaveRun", "failed to persist diagnostic run", err)
	}
	return nil
}

// RecentRuns returns up to limit of the most recent runs, newest first.
func (s *Store) RecentRuns(limit int) ([]models.DiagnosticRun, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, job_name, diagnostic_type, started_at, completed_at, success, summary, error
		 FROM diagnostic_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errs.Wrap(errs.Platform, "store.RecentRuns", "failed to query diagnostic runs", err)
	}
	defer rows.Close()

	var runs []models.DiagnosticRun
	for rows.Next() {
		var run models.DiagnosticRun
		var diagType string
		var summary, errMsg sql.NullString
		if err := rows.Scan(&run.ID, &run.JobName, &diagType, &run.StartedAt, &run.CompletedAt, &run.Success, &summary, &errMsg); err != nil {
			return nil, errs.Wrap(errs.Platform, "store.RecentRuns", "failed to scan diagnostic run", err)
		}
		run.DiagnosticType = models.DiagnosticType(diagType)
		if summary.Valid {
			v := summary.String
			run.Summary = &v
		}
		if errMsg.Valid {
			v := errMsg.String
			run.Error = &v
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// SaveMonitoringSnapshot replaces the single-row latest MonitoringData
// snapshot, so a restarted daemon can report the last known status over IPC
// before its first monitor tick completes.
func (s *Store) SaveMonitoringSnapshot(data models.MonitoringData) error {
	targetsJSON, err := json.Marshal(data.Targets)
	if err != nil {
		return errs.Wrap(errs.Platform, "store.SaveMonitoringSnapshot", "failed to encode targets", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO monitoring_snapshots (id, status, updated, targets_json) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status, updated = excluded.updated, targets_json = excluded.targets_json`,
		string(data.Status), data.Updated, string(targetsJSON),
	)
	if err != nil {
		return errs.Wrap(errs.Platform, "store.SaveMonitoringSnapshot", "failed to persist monitoring snapshot", err)
	}
	return nil
}

// LoadMonitoringSnapshot returns the last persisted MonitoringData snapshot,
// or (nil, nil) if none has been saved yet.
func (s *Store) LoadMonitoringSnapshot() (*models.MonitoringData, error) {
	row := s.db.QueryRow(`SELECT status, updated, targets_json FROM monitoring_snapshots WHERE id = 1`)
	var status, targetsJSON string
	var data models.MonitoringData
	if err := row.Scan(&status, &data.Updated, &targetsJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errs.Wrap(errs.Platform, "store.LoadMonitoringSnapshot", "failed to read monitoring snapshot", err)
	}
	data.Status = models.HealthStatus(status)
	if err := json.Unmarshal([]byte(targetsJSON), &data.Targets); err != nil {
		return nil, errs.Wrap(errs.Platform, "store.LoadMonitoringSnapshot", "failed to decode targets", err)
	}
	return &data, nil
}
