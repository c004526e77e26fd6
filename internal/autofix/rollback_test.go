package autofix

import (
	"testing"
	"time"

	"github.com/netdiag/netdiag/internal/models"
)

func TestRollbackManagerPersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()

	m, err := NewRollbackManager(dir, 10, 0)
	if err != nil {
		t.Fatalf("NewRollbackManager: %v", err)
	}
	point, err := m.Create("test point", models.RollbackState{Kind: models.RollbackDnsServers, Iface: "eth0", Servers: []string{"8.8.8.8"}}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	reloaded, err := NewRollbackManager(dir, 10, 0)
	if err != nil {
		t.Fatalf("reload NewRollbackManager: %v", err)
	}
	got, err := reloaded.Get(point.ID)
	if err != nil {
		t.Fatalf("Get after reload: %v", err)
	}
	if got.Description != "test point" || !got.Valid {
		t.Errorf("reloaded point mismatch: %+v", got)
	}
}

func TestRollbackManagerEvictsOldestOverCapacity(t *testing.T) {
	dir := t.TempDir()
	m, err := NewRollbackManager(dir, 2, 0)
	if err != nil {
		t.Fatalf("NewRollbackManager: %v", err)
	}

	first, _ := m.Create("first", models.RollbackState{Kind: models.RollbackNone}, nil)
	m.Create("second", models.RollbackState{Kind: models.RollbackNone}, nil)
	m.Create("third", models.RollbackState{Kind: models.RollbackNone}, nil)

	if len(m.List()) != 2 {
		t.Fatalf("expected capacity-bounded list of 2, got %d", len(m.List()))
	}
	if _, err := m.Get(first.ID); err == nil {
		t.Error("expected the oldest point to have been evicted")
	}
}

func TestMarkInvalidKeepsPointForAudit(t *testing.T) {
	dir := t.TempDir()
	m, err := NewRollbackManager(dir, 10, 0)
	if err != nil {
		t.Fatalf("NewRollbackManager: %v", err)
	}
	point, _ := m.Create("test", models.RollbackState{Kind: models.RollbackNone}, nil)

	if err := m.MarkInvalid(point.ID); err != nil {
		t.Fatalf("MarkInvalid: %v", err)
	}
	got, err := m.Get(point.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Valid {
		t.Error("expected point to be marked invalid, not deleted")
	}
}

func TestRetentionEvictsExpiredPoints(t *testing.T) {
	dir := t.TempDir()
	m, err := NewRollbackManager(dir, 0, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewRollbackManager: %v", err)
	}

	old, _ := m.Create("old", models.RollbackState{Kind: models.RollbackNone}, nil)
	m.points[old.ID].CreatedAt = time.Now().UTC().Add(-48 * time.Hour)

	fresh, _ := m.Create("fresh", models.RollbackState{Kind: models.RollbackNone}, nil)

	if _, err := m.Get(old.ID); err == nil {
		t.Error("expected the expired point to be evicted")
	}
	if _, err := m.Get(fresh.ID); err != nil {
		t.Errorf("fresh point should survive retention eviction: %v", err)
	}
}

func TestRetentionPrunesExpiredOnLoad(t *testing.T) {
	dir := t.TempDir()
	m, err := NewRollbackManager(dir, 0, 0)
	if err != nil {
		t.Fatalf("NewRollbackManager: %v", err)
	}
	old, _ := m.Create("old", models.RollbackState{Kind: models.RollbackNone}, nil)
	m.points[old.ID].CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	m.mu.Lock()
	err = m.persistLocked()
	m.mu.Unlock()
	if err != nil {
		t.Fatalf("persist: %v", err)
	}

	reloaded, err := NewRollbackManager(dir, 0, 24*time.Hour)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, err := reloaded.Get(old.ID); err == nil {
		t.Error("expected the expired point to be pruned on load")
	}
}

func TestLoadPrunesConsumedPoints(t *testing.T) {
	dir := t.TempDir()
	m, err := NewRollbackManager(dir, 10, 0)
	if err != nil {
		t.Fatalf("NewRollbackManager: %v", err)
	}
	kept, _ := m.Create("live", models.RollbackState{Kind: models.RollbackNone}, nil)
	consumed, _ := m.Create("consumed", models.RollbackState{Kind: models.RollbackNone}, nil)
	if err := m.MarkInvalid(consumed.ID); err != nil {
		t.Fatalf("MarkInvalid: %v", err)
	}

	reloaded, err := NewRollbackManager(dir, 10, 0)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, err := reloaded.Get(kept.ID); err != nil {
		t.Errorf("valid point should survive reload: %v", err)
	}
	if _, err := reloaded.Get(consumed.ID); err == nil {
		t.Error("consumed point should be pruned on load")
	}
}
