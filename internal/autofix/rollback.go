/**
 * Rollback Manager.
 *
 * Persists RollbackPoints to a single JSON file under the configured
 * directory. The store is bounded two ways: a point cap with
 * oldest-by-creation eviction, and an age cutoff that drops points past
 * their retention window. Every rewrite goes through write-then-rename so
 * a crash mid-write can never leave a truncated store behind.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package autofix

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/netdiag/netdiag/internal/errs"
	"github.com/netdiag/netdiag/internal/models"
)

const rollbackFileName = "rollback_points.json"

// RollbackManager keeps an in-memory map of rollback points mirrored to a
// single JSON file.
type RollbackManager struct {
	mu        sync.RWMutex
	dir       string
	maxPoints int
	retention time.Duration
	points    map[string]*models.RollbackPoint
}

// NewRollbackManager loads dir/rollback_points.json if present. Points
// already consumed by a restore (valid = false) and points older than
// retention are pruned from memory after load; within a running manager's
// lifetime consumed points are kept for audit, but they have no further
// restore value across restarts. maxPoints <= 0 means uncapped;
// retention <= 0 disables the age cutoff.
func NewRollbackManager(dir string, maxPoints int, retention time.Duration) (*RollbackManager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(errs.Autofix, "autofix.NewRollbackManager", "failed to create rollback directory", err)
	}

	m := &RollbackManager{dir: dir, maxPoints: maxPoints, retention: retention, points: make(map[string]*models.RollbackPoint)}

	path := filepath.Join(dir, rollbackFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, errs.Wrap(errs.Autofix, "autofix.NewRollbackManager", "failed to read rollback store", err)
	}
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m.points); err != nil {
		return nil, errs.Wrap(errs.Autofix, "autofix.NewRollbackManager", "failed to parse rollback store", err)
	}
	for id, p := range m.points {
		if !p.Valid {
			delete(m.points, id)
		}
	}
	m.evictExpiredLocked()
	return m, nil
}

// Create persists a new RollbackPoint, first dropping points past the
// retention window, then evicting the oldest-by-creation point if this
// insertion would exceed maxPoints.
func (m *RollbackManager) Create(description string, state models.RollbackState, originatingActionID *string) (*models.RollbackPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	point := &models.RollbackPoint{
		ID:                  uuid.NewString(),
		CreatedAt:           time.Now().UTC(),
		Description:         description,
		State:               state,
		Valid:               true,
		OriginatingActionID: originatingActionID,
	}
	m.points[point.ID] = point

	m.evictExpiredLocked()
	if m.maxPoints > 0 && len(m.points) > m.maxPoints {
		m.evictOldestLocked()
	}

	if err := m.persistLocked(); err != nil {
		return nil, err
	}
	return point, nil
}

func (m *RollbackManager) evictOldestLocked() {
	var oldestID string
	var oldestTime time.Time
	first := true
	for id, p := range m.points {
		if first || p.CreatedAt.Before(oldestTime) {
			oldestID, oldestTime, first = id, p.CreatedAt, false
		}
	}
	if oldestID != "" {
		delete(m.points, oldestID)
	}
}

// evictExpiredLocked drops every point older than the retention window.
// Caller must hold m.mu.
func (m *RollbackManager) evictExpiredLocked() {
	if m.retention <= 0 {
		return
	}
	cutoff := time.Now().UTC().Add(-m.retention)
	for id, p := range m.points {
		if p.CreatedAt.Before(cutoff) {
			delete(m.points, id)
		}
	}
}

// Get returns the rollback point with the given id.
func (m *RollbackManager) Get(id string) (*models.RollbackPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.points[id]
	if !ok {
		return nil, errs.New(errs.NotFound, "autofix.Get", "rollback point not found: "+id)
	}
	return p, nil
}

// List returns all rollback points ordered newest-first.
func (m *RollbackManager) List() []*models.RollbackPoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.RollbackPoint, 0, len(m.points))
	for _, p := range m.points {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// MarkInvalid flags a point invalid after a successful restore; it is kept
// (not deleted) so audit history survives, then the file is rewritten.
func (m *RollbackManager) MarkInvalid(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.points[id]
	if !ok {
		return errs.New(errs.NotFound, "autofix.MarkInvalid", "rollback point not found: "+id)
	}
	p.Valid = false
	return m.persistLocked()
}

// persistLocked rewrites the JSON store atomically (write to a temp file,
// then rename), so partial failures cannot orphan the store. Caller must
// hold m.mu.
func (m *RollbackManager) persistLocked() error {
	data, err := json.MarshalIndent(m.points, "", "  ")
	if err != nil {
		return errs.Wrap(errs.Autofix, "autofix.persist", "failed to marshal rollback store", err)
	}

	path := filepath.Join(m.dir, rollbackFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errs.Wrap(errs.Autofix, "autofix.persist", "failed to write rollback store", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errs.Wrap(errs.Autofix, "autofix.persist", "failed to rename rollback store into place", err)
	}
	return nil
}
