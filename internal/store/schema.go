/**
 * Database Schema.
 *
 * DDL for the durable companion to the daemon's in-memory history ring:
 * diagnostic run history and the latest monitoring snapshot survive a
 * daemon restart.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package store

// Schema creates the tables netdiagd persists run history and monitoring
// snapshots into. Safe to run on every startup.
const Schema = `
CREATE TABLE IF NOT EXISTS diagnostic_runs (
    id TEXT PRIMARY KEY,
    job_name TEXT NOT NULL,
    diagnostic_type TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    completed_at TIMESTAMP,
    success INTEGER NOT NULL,
    summary TEXT,
    error TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON diagnostic_runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_job ON diagnostic_runs(job_name);

CREATE TABLE IF NOT EXISTS monitoring_snapshots (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    status TEXT NOT NULL,
    updated TIMESTAMP NOT NULL,
    targets_json TEXT NOT NULL
);
`
