package manager

import (
	"context"
	"errors"
	"sort"

	"github.com/openclaw/launcher/pkg/runtime"
	"github.com/openclaw/launcher/pkg/types"
)

// Byte budget for the combined log tail, matching the operator UI's
// expectations: the last 5000 bytes of stdout plus 2000 of stderr.
const (
	tailStdoutBytes = 5000
	tailStderrBytes = 2000
)

// InstanceView is the wire form of one instance: the (safe) record plus
// the derived id and observed status.
type InstanceView struct {
	types.InstanceRecord
	ID     string               `json:"id"`
	Status types.InstanceStatus `json:"status"`
}

// List returns every instance with its snapshot status, safe form only.
// A missing snapshot falls back to one live inspect without populating
// the snapshot; the reconciler stays the only snapshot writer.
func (m *Manager) List(ctx context.Context) ([]InstanceView, error) {
	db, err := m.store.Load()
	if err != nil {
		return nil, err
	}

	views := make([]InstanceView, 0, len(db.Instances))
	for id, rec := range db.Instances {
		status := types.StatusUnknown
		if snap, ok := m.Snapshot(id); ok {
			status = snap.Status
		} else {
			if s, err := m.rt.InspectStatus(ctx, ContainerName(id)); err == nil {
				status = s
			} else if errors.Is(err, runtime.ErrNotFound) {
				status = types.StatusNotFound
			}
		}
		views = append(views, InstanceView{
			InstanceRecord: rec.Safe(),
			ID:             id,
			Status:         status,
		})
	}

	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views, nil
}

// InstanceCount returns the number of records in the store.
func (m *Manager) InstanceCount() int {
	db, err := m.store.Load()
	if err != nil {
		return 0
	}
	return len(db.Instances)
}

// InstanceStats is the live status + telemetry answer for one instance.
type InstanceStats struct {
	Status types.InstanceStatus `json:"status"`
	Stats  types.ContainerStats `json:"stats"`
}

// StatsFor inspects the container live, bypassing the snapshot. Stats are
// sampled only while running; a vanished container reports not_found with
// zero telemetry.
func (m *Manager) StatsFor(ctx context.Context, id string) (InstanceStats, error) {
	name := ContainerName(id)

	status, err := m.rt.InspectStatus(ctx, name)
	switch {
	case errors.Is(err, runtime.ErrNotFound):
		return InstanceStats{Status: types.StatusNotFound}, nil
	case err != nil:
		return InstanceStats{}, err
	}

	out := InstanceStats{Status: status}
	if status == types.StatusRunning {
		if stats, err := m.rt.SampleStats(ctx, name); err == nil {
			out.Stats = stats
		}
	}
	return out, nil
}

// Logs fetches the last lines of container output, truncated to the tail
// byte budget.
func (m *Manager) Logs(ctx context.Context, id string, lines int) (string, error) {
	stdout, stderr, err := m.rt.TailLogs(ctx, ContainerName(id), lines)
	if err != nil {
		return "", err
	}
	return lastBytes(stdout, tailStdoutBytes) + lastBytes(stderr, tailStderrBytes), nil
}

func lastBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
