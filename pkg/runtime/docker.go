package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"

	"github.com/openclaw/launcher/pkg/types"
)

// Per-operation timeout budget. Stop gets the caller's grace period plus a
// buffer for the daemon's SIGKILL fallback.
const (
	createTimeout   = 30 * time.Second
	inspectTimeout  = 5 * time.Second
	statsTimeout    = 10 * time.Second
	tailTimeout     = 10 * time.Second
	stopExtraBudget = 10 * time.Second
)

// DockerRuntime implements Runtime against the Docker daemon.
type DockerRuntime struct {
	client *client.Client
}

// NewDockerRuntime connects to the Docker daemon. host may be empty to use
// the environment default (DOCKER_HOST or the local socket).
func NewDockerRuntime(host string) (*DockerRuntime, error) {
	opts := []client.Opt{
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &DockerRuntime{client: cli}, nil
}

var _ Runtime = (*DockerRuntime)(nil)

// Close releases the client connection.
func (d *DockerRuntime) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}

// Ping checks daemon reachability.
func (d *DockerRuntime) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, inspectTimeout)
	defer cancel()

	_, err := d.client.Ping(ctx)
	return classify("ping", err)
}

// Create creates the container. The name is the uniqueness guard: a second
// create for the same name fails at the daemon.
func (d *DockerRuntime) Create(ctx context.Context, name string, spec ContainerSpec) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, createTimeout)
	defer cancel()

	port := nat.Port(fmt.Sprintf("%d/tcp", spec.Port.ContainerPort))

	cfg := &container.Config{
		Image: spec.Image,
		Cmd:   spec.Cmd,
		Env:   spec.Env,
		ExposedPorts: nat.PortSet{
			port: struct{}{},
		},
	}

	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			port: []nat.PortBinding{{
				HostIP:   spec.Port.BindAddr,
				HostPort: strconv.Itoa(spec.Port.HostPort),
			}},
		},
		RestartPolicy: container.RestartPolicy{
			Name: container.RestartPolicyMode(spec.RestartPolicy),
		},
		ReadonlyRootfs: spec.ReadOnlyRootfs,
		Tmpfs:          spec.Tmpfs,
		CapDrop:        strslice.StrSlice(spec.CapDrop),
		CapAdd:         strslice.StrSlice(spec.CapAdd),
		Resources: container.Resources{
			Memory:     spec.MemoryBytes,
			MemorySwap: spec.MemorySwapBytes,
			NanoCPUs:   spec.NanoCPUs,
		},
	}
	if spec.Init {
		init := true
		hostCfg.Init = &init
	}
	if spec.NoNewPrivileges {
		hostCfg.SecurityOpt = append(hostCfg.SecurityOpt, "no-new-privileges:true")
	}
	for _, b := range spec.Binds {
		bind := b.HostPath + ":" + b.ContainerPath
		if b.ReadOnly {
			bind += ":ro"
		}
		hostCfg.Binds = append(hostCfg.Binds, bind)
	}

	resp, err := d.client.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
	if err != nil {
		return "", classify("create", err)
	}
	return resp.ID, nil
}

// Start starts an existing container.
func (d *DockerRuntime) Start(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, createTimeout)
	defer cancel()

	err := d.client.ContainerStart(ctx, name, container.StartOptions{})
	return classify("start", err)
}

// Stop stops the container, giving it grace before the daemon kills it.
func (d *DockerRuntime) Stop(ctx context.Context, name string, grace time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, grace+stopExtraBudget)
	defer cancel()

	secs := int(grace.Seconds())
	err := d.client.ContainerStop(ctx, name, container.StopOptions{Timeout: &secs})
	return classify("stop", err)
}

// Remove deletes the container.
func (d *DockerRuntime) Remove(ctx context.Context, name string, force bool) error {
	ctx, cancel := context.WithTimeout(ctx, createTimeout)
	defer cancel()

	err := d.client.ContainerRemove(ctx, name, container.RemoveOptions{Force: force})
	return classify("remove", err)
}

// InspectStatus maps the daemon's state string onto the status enum.
// Docker's transitional "created" and "restarting" states are outside the
// enum and report as unknown until the next settled observation.
func (d *DockerRuntime) InspectStatus(ctx context.Context, name string) (types.InstanceStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, inspectTimeout)
	defer cancel()

	inspect, err := d.client.ContainerInspect(ctx, name)
	if err != nil {
		return types.StatusUnknown, classify("inspect", err)
	}
	if inspect.State == nil {
		return types.StatusUnknown, nil
	}

	switch inspect.State.Status {
	case "running":
		return types.StatusRunning, nil
	case "exited":
		return types.StatusExited, nil
	case "dead":
		return types.StatusDead, nil
	case "removing":
		return types.StatusRemoving, nil
	case "paused":
		return types.StatusPaused, nil
	default:
		return types.StatusUnknown, nil
	}
}

// SampleStats takes one non-streaming stats sample. CPU percent follows the
// daemon's own formula: delta of total usage over delta of system usage,
// scaled by the CPU count and 100.
func (d *DockerRuntime) SampleStats(ctx context.Context, name string) (types.ContainerStats, error) {
	ctx, cancel := context.WithTimeout(ctx, statsTimeout)
	defer cancel()

	resp, err := d.client.ContainerStats(ctx, name, false)
	if err != nil {
		return types.ContainerStats{}, classify("stats", err)
	}
	defer resp.Body.Close()

	var v container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return types.ContainerStats{}, classify("stats", err)
	}

	return types.ContainerStats{
		CPUPercent:     cpuPercent(&v),
		MemoryBytes:    v.MemoryStats.Usage,
		MemoryLimBytes: v.MemoryStats.Limit,
	}, nil
}

func cpuPercent(v *container.StatsResponse) float64 {
	cpuDelta := float64(v.CPUStats.CPUUsage.TotalUsage) - float64(v.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(v.CPUStats.SystemUsage) - float64(v.PreCPUStats.SystemUsage)
	if cpuDelta <= 0 || systemDelta <= 0 {
		return 0
	}
	cpuCount := len(v.CPUStats.CPUUsage.PercpuUsage)
	if cpuCount == 0 {
		cpuCount = 1
	}
	return (cpuDelta / systemDelta) * float64(cpuCount) * 100.0
}

// FollowLogs opens a follow stream primed with the last tail lines. The
// returned reader carries Docker's stdout/stderr multiplexing; callers
// demultiplex with stdcopy. The stream ends when the container exits and
// must be closed to release the daemon connection.
func (d *DockerRuntime) FollowLogs(ctx context.Context, name string, tail int) (io.ReadCloser, error) {
	rc, err := d.client.ContainerLogs(ctx, name, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
		Tail:       strconv.Itoa(tail),
	})
	if err != nil {
		return nil, classify("logs", err)
	}
	return rc, nil
}

// TailLogs fetches the last lines without following.
func (d *DockerRuntime) TailLogs(ctx context.Context, name string, lines int) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, tailTimeout)
	defer cancel()

	rc, err := d.client.ContainerLogs(ctx, name, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       strconv.Itoa(lines),
	})
	if err != nil {
		return "", "", classify("logs", err)
	}
	defer rc.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, rc); err != nil {
		return "", "", classify("logs", err)
	}
	return stdout.String(), stderr.String(), nil
}
