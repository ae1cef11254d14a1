package runtime

import (
	"context"
	"io"
	"time"

	"github.com/openclaw/launcher/pkg/types"
)

// ContainerSpec enumerates everything the controller decides about a
// container. The adapter translates it into a Docker create request
// verbatim; it adds no policy of its own.
type ContainerSpec struct {
	Image string
	Cmd   []string
	Env   []string

	Binds []BindMount

	// Single published port: container port → (bind address, host port).
	Port PortMapping

	// Resource caps.
	MemoryBytes     int64
	MemorySwapBytes int64
	NanoCPUs        int64

	// Security profile.
	ReadOnlyRootfs  bool
	Tmpfs           map[string]string // mount path → options ("size=256m")
	CapDrop         []string
	CapAdd          []string
	NoNewPrivileges bool

	RestartPolicy string // "unless-stopped"
	Init          bool
}

// BindMount maps a host path into the container.
type BindMount struct {
	HostPath      string
	ContainerPath string
	ReadOnly      bool
}

// PortMapping publishes one container port on a host address.
type PortMapping struct {
	ContainerPort int
	BindAddr      string
	HostPort      int
}

// Runtime is the narrow façade over the container runtime. Every method
// except FollowLogs applies its own bounded timeout (a follow stream lives
// as long as the caller's context), and all return only taxonomy errors
// (ErrNotFound, ErrUnreachable, *APIError).
type Runtime interface {
	// Create creates a named container and returns the runtime's container
	// ID. Fails if the name is already taken.
	Create(ctx context.Context, name string, spec ContainerSpec) (string, error)

	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string, grace time.Duration) error
	Remove(ctx context.Context, name string, force bool) error

	// InspectStatus returns the observed status. It never returns
	// StatusStarting; that state is seeded by the controller, not observed.
	InspectStatus(ctx context.Context, name string) (types.InstanceStatus, error)

	// SampleStats samples CPU and memory for a running container.
	SampleStats(ctx context.Context, name string) (types.ContainerStats, error)

	// FollowLogs opens a finite, non-restartable follow stream of the
	// container's multiplexed log output, primed with the last tail lines.
	// The caller must Close it to release the daemon connection.
	FollowLogs(ctx context.Context, name string, tail int) (io.ReadCloser, error)

	// TailLogs fetches the last lines of output without following,
	// demultiplexed into stdout and stderr.
	TailLogs(ctx context.Context, name string, lines int) (stdout, stderr string, err error)

	// Ping checks that the daemon is contactable.
	Ping(ctx context.Context) error
}
