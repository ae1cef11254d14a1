package types

import "time"

// InstanceRecord is the persisted record for one wallet-bound instance.
// It is the authoritative state; everything else (snapshot, counters) is
// derived and rebuildable.
type InstanceRecord struct {
	Pubkey       string `json:"pubkey"`
	Port         int    `json:"port"`
	GatewayToken string `json:"gateway_token,omitempty"`
	Created      int64  `json:"created"`
	LastStarted  int64  `json:"last_started"`
	ContainerID  string `json:"container_id"`
}

// Safe returns a copy of the record with the gateway token redacted.
// List and conflict responses only ever carry the safe form.
func (r InstanceRecord) Safe() InstanceRecord {
	r.GatewayToken = ""
	return r
}

// InstanceStatus is the observed container state for an instance.
type InstanceStatus string

const (
	StatusStarting InstanceStatus = "starting"
	StatusRunning  InstanceStatus = "running"
	StatusExited   InstanceStatus = "exited"
	StatusDead     InstanceStatus = "dead"
	StatusRemoving InstanceStatus = "removing"
	StatusPaused   InstanceStatus = "paused"
	StatusNotFound InstanceStatus = "not_found"
	StatusUnknown  InstanceStatus = "unknown"
)

// Terminal reports whether a status ends a running container's life.
// A running → terminal transition is what the reconciler counts as an
// unexpected termination.
func (s InstanceStatus) Terminal() bool {
	switch s {
	case StatusExited, StatusDead, StatusRemoving:
		return true
	}
	return false
}

// StatusSnapshot is the in-memory liveness and telemetry sample for one
// instance, refreshed by the reconciler.
type StatusSnapshot struct {
	Status      InstanceStatus
	CPUPercent  float64
	MemoryBytes uint64
	Updated     time.Time
}

// ContainerStats is one resource sample for a running container.
type ContainerStats struct {
	CPUPercent     float64 `json:"cpu_percent"`
	MemoryBytes    uint64  `json:"memory_bytes"`
	MemoryLimBytes uint64  `json:"memory_limit_bytes"`
}
