package manager

import (
	"sync"
	"time"

	"github.com/openclaw/launcher/pkg/types"
)

// snapshotState is the in-memory side of the orchestrator: the status
// snapshot per instance and the restart counters. One mutex guards both;
// holders do only O(1) in-memory work, never runtime calls.
type snapshotState struct {
	mu        sync.Mutex
	snapshots map[string]types.StatusSnapshot
	restarts  map[string]uint64
}

func (s *snapshotState) init() {
	s.snapshots = make(map[string]types.StatusSnapshot)
	s.restarts = make(map[string]uint64)
}

func (s *snapshotState) seed(id string, status types.InstanceStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[id] = types.StatusSnapshot{Status: status, Updated: time.Now()}
}

func (s *snapshotState) invalidate(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, id)
}

func (s *snapshotState) drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, id)
	delete(s.restarts, id)
}

// Snapshot returns the snapshot for one instance, if any.
func (m *Manager) Snapshot(id string) (types.StatusSnapshot, bool) {
	m.snap.mu.Lock()
	defer m.snap.mu.Unlock()
	snap, ok := m.snap.snapshots[id]
	return snap, ok
}

// SetSnapshot records a reconciler observation.
func (m *Manager) SetSnapshot(id string, snap types.StatusSnapshot) {
	m.snap.mu.Lock()
	defer m.snap.mu.Unlock()
	m.snap.snapshots[id] = snap
}

// SeedSnapshot sets an instance's snapshot to the given status with zero
// telemetry.
func (m *Manager) SeedSnapshot(id string, status types.InstanceStatus) {
	m.snap.seed(id, status)
}

// PruneSnapshots removes snapshot entries for ids outside keep, enforcing
// snapshot-keys ⊆ store-keys after each reconciler pass.
func (m *Manager) PruneSnapshots(keep map[string]bool) {
	m.snap.mu.Lock()
	defer m.snap.mu.Unlock()
	for id := range m.snap.snapshots {
		if !keep[id] {
			delete(m.snap.snapshots, id)
		}
	}
}

// Snapshots returns a copy of the snapshot map.
func (m *Manager) Snapshots() map[string]types.StatusSnapshot {
	m.snap.mu.Lock()
	defer m.snap.mu.Unlock()
	out := make(map[string]types.StatusSnapshot, len(m.snap.snapshots))
	for id, snap := range m.snap.snapshots {
		out[id] = snap
	}
	return out
}

// IncrementRestarts bumps the restart counter for an instance.
func (m *Manager) IncrementRestarts(id string) {
	m.snap.mu.Lock()
	defer m.snap.mu.Unlock()
	m.snap.restarts[id]++
}

// RestartCount returns the restart counter for an instance.
func (m *Manager) RestartCount(id string) uint64 {
	m.snap.mu.Lock()
	defer m.snap.mu.Unlock()
	return m.snap.restarts[id]
}
