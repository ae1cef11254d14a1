package manager

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/openclaw/launcher/pkg/config"
	"github.com/openclaw/launcher/pkg/identity"
	"github.com/openclaw/launcher/pkg/log"
	"github.com/openclaw/launcher/pkg/runtime"
	"github.com/openclaw/launcher/pkg/store"
	"github.com/openclaw/launcher/pkg/types"
	"github.com/openclaw/launcher/pkg/workspace"
)

const (
	containerNamePrefix = "openclaw-"

	stopGrace    = 30 * time.Second
	destroyGrace = 15 * time.Second

	gatewayTokenBytes = 24
)

// ErrCapacity is returned when the store already holds the maximum number
// of instances.
var ErrCapacity = errors.New("maximum instances reached")

// ErrBadInput is returned for a malformed wallet public key.
var ErrBadInput = errors.New("invalid wallet public key")

// ConflictError reports a launch against an already-running instance. It
// carries the safe (token-redacted) record.
type ConflictError struct {
	ID     string
	Record types.InstanceRecord
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("instance %s already running", e.ID)
}

// Manager owns the orchestration state: the persistent store, the runtime
// adapter, the workspace provisioner, and the in-memory status snapshot.
// It is shared by reference between the HTTP handlers, the reconciler and
// the metrics collector.
type Manager struct {
	cfg    config.Config
	store  *store.Store
	rt     runtime.Runtime
	ws     *workspace.Provisioner
	logger zerolog.Logger

	snap snapshotState
}

// New creates a manager.
func New(cfg config.Config, st *store.Store, rt runtime.Runtime, ws *workspace.Provisioner) *Manager {
	m := &Manager{
		cfg:    cfg,
		store:  st,
		rt:     rt,
		ws:     ws,
		logger: log.WithComponent("manager"),
	}
	m.snap.init()
	return m
}

// Runtime exposes the runtime adapter to collaborators (reconciler, log
// streamer).
func (m *Manager) Runtime() runtime.Runtime {
	return m.rt
}

// Store exposes the instance store.
func (m *Manager) Store() *store.Store {
	return m.store
}

// ContainerName returns the runtime name owned by an instance.
func ContainerName(id string) string {
	return containerNamePrefix + id
}

// LaunchResult is the outcome of a successful launch: the full record
// (token included — this is the one surface that may carry it) plus the
// derived id and status: starting for a fresh create, the freshly
// inspected status for a restart.
type LaunchResult struct {
	ID     string
	Record types.InstanceRecord
	Status types.InstanceStatus
}

// Launch creates or restarts the instance bound to pubkey. The whole
// decision runs inside the store's exclusive section so two concurrent
// launches for one wallet cannot both pass the existence check.
func (m *Manager) Launch(ctx context.Context, pubkey string) (LaunchResult, error) {
	if err := identity.ValidatePubkey(pubkey); err != nil {
		return LaunchResult{}, fmt.Errorf("%w: %s", ErrBadInput, err)
	}

	id := identity.DeriveID(pubkey)
	name := ContainerName(id)

	var res LaunchResult
	var created bool

	err := m.store.Update(func(db *store.DB) error {
		if existing, ok := db.Instances[id]; ok {
			r, err := m.restartExisting(ctx, db, id, name, existing)
			if err != nil {
				return err
			}
			res = r
			return nil
		}

		if len(db.Instances) >= m.cfg.MaxInstances {
			return ErrCapacity
		}

		r, err := m.createNew(ctx, db, id, name, pubkey)
		if err != nil {
			return err
		}
		res = r
		created = true
		return nil
	})
	if err != nil {
		return LaunchResult{}, err
	}

	if created {
		m.snap.seed(id, types.StatusStarting)
	} else {
		m.snap.invalidate(id)
	}
	return res, nil
}

// restartExisting handles the id-already-present branch of launch.
func (m *Manager) restartExisting(ctx context.Context, db *store.DB, id, name string, rec types.InstanceRecord) (LaunchResult, error) {
	status, err := m.rt.InspectStatus(ctx, name)
	switch {
	case errors.Is(err, runtime.ErrUnreachable):
		return LaunchResult{}, err
	case errors.Is(err, runtime.ErrNotFound):
		status = types.StatusNotFound
	case err != nil:
		return LaunchResult{}, err
	}

	if status == types.StatusRunning {
		return LaunchResult{}, &ConflictError{ID: id, Record: rec.Safe()}
	}

	// Stopped (or vanished): start it again. A start failure other than an
	// unreachable daemon is tolerated; the refreshed status tells the
	// caller what actually happened.
	if err := m.rt.Start(ctx, name); err != nil {
		if errors.Is(err, runtime.ErrUnreachable) {
			return LaunchResult{}, err
		}
		m.logger.Warn().Err(err).Str("instance_id", id).Msg("restart of existing container failed")
	}

	time.Sleep(m.cfg.SettleInterval)

	status, err = m.rt.InspectStatus(ctx, name)
	if err != nil {
		status = types.StatusUnknown
	}

	rec.LastStarted = time.Now().Unix()
	db.Instances[id] = rec

	return LaunchResult{ID: id, Record: rec, Status: status}, nil
}

// createNew handles the fresh-create branch of launch. The port choice,
// token generation, workspace provisioning and container create all happen
// with the section held. A create failure leaves the workspace on disk;
// the next launch for the same wallet reuses it.
func (m *Manager) createNew(ctx context.Context, db *store.DB, id, name, pubkey string) (LaunchResult, error) {
	port := db.NextPort(m.cfg.BasePort)

	token, err := generateGatewayToken()
	if err != nil {
		return LaunchResult{}, fmt.Errorf("generate gateway token: %w", err)
	}

	if err := m.ws.Provision(id, pubkey, token, m.cfg.ContainerPort); err != nil {
		return LaunchResult{}, err
	}

	containerID, err := m.rt.Create(ctx, name, m.containerSpec(id, token, port))
	if err != nil {
		return LaunchResult{}, err
	}
	if err := m.rt.Start(ctx, name); err != nil {
		// Drop the half-made container so the next attempt can create
		// under the same name.
		if rmErr := m.rt.Remove(ctx, name, true); rmErr != nil {
			m.logger.Warn().Err(rmErr).Str("instance_id", id).Msg("cleanup of failed container failed")
		}
		return LaunchResult{}, err
	}

	now := time.Now().Unix()
	rec := types.InstanceRecord{
		Pubkey:       pubkey,
		Port:         port,
		GatewayToken: token,
		Created:      now,
		LastStarted:  now,
		ContainerID:  shortContainerID(containerID),
	}
	db.Instances[id] = rec

	m.logger.Info().
		Str("instance_id", id).
		Int("port", port).
		Msg("instance created")

	return LaunchResult{ID: id, Record: rec, Status: types.StatusStarting}, nil
}

// containerSpec assembles the create request for one instance.
func (m *Manager) containerSpec(id, token string, hostPort int) runtime.ContainerSpec {
	return runtime.ContainerSpec{
		Image: m.cfg.Image,
		Cmd: []string{
			"node", "dist/index.js", "gateway",
			"--bind", "lan", "--port", strconv.Itoa(m.cfg.ContainerPort),
		},
		Env: []string{
			"HOME=/home/node",
			"TERM=xterm-256color",
			"OPENCLAW_GATEWAY_TOKEN=" + token,
		},
		Binds: []runtime.BindMount{
			{HostPath: m.ws.ConfigDir(id), ContainerPath: "/home/node/.openclaw"},
			{HostPath: m.ws.WorkspaceDir(id), ContainerPath: "/home/node/.openclaw/workspace"},
		},
		Port: runtime.PortMapping{
			ContainerPort: m.cfg.ContainerPort,
			BindAddr:      m.cfg.TailscaleIP,
			HostPort:      hostPort,
		},
		MemoryBytes:     m.cfg.MemoryBytes,
		MemorySwapBytes: m.cfg.MemorySwapBytes,
		NanoCPUs:        m.cfg.NanoCPUs,
		ReadOnlyRootfs:  m.cfg.ReadOnlyRootfs,
		Tmpfs: map[string]string{
			"/tmp": "size=" + strconv.FormatInt(m.cfg.TmpfsSizeBytes, 10),
		},
		CapDrop:         m.cfg.CapDrop,
		CapAdd:          m.cfg.CapAdd,
		NoNewPrivileges: true,
		RestartPolicy:   "unless-stopped",
		Init:            true,
	}
}

// Stop stops the instance's container with the user grace period.
func (m *Manager) Stop(ctx context.Context, pubkey string) (string, error) {
	if err := identity.ValidatePubkey(pubkey); err != nil {
		return "", fmt.Errorf("%w: %s", ErrBadInput, err)
	}
	id := identity.DeriveID(pubkey)

	if err := m.rt.Stop(ctx, ContainerName(id), stopGrace); err != nil {
		if errors.Is(err, runtime.ErrUnreachable) {
			return id, err
		}
		// Daemon-side failures collapse to not-found for the caller; the
		// container is gone or was never there.
		m.logger.Debug().Err(err).Str("instance_id", id).Msg("stop failed")
		return id, runtime.ErrNotFound
	}

	m.snap.invalidate(id)
	return id, nil
}

// Destroy stops (best-effort) and force-removes the container, then drops
// the record, snapshot and restart counter. A missing container is not an
// error; the workspace directory is deliberately left on disk.
func (m *Manager) Destroy(ctx context.Context, pubkey string) (string, error) {
	if err := identity.ValidatePubkey(pubkey); err != nil {
		return "", fmt.Errorf("%w: %s", ErrBadInput, err)
	}
	id := identity.DeriveID(pubkey)
	name := ContainerName(id)

	if err := m.rt.Stop(ctx, name, destroyGrace); err != nil {
		if errors.Is(err, runtime.ErrUnreachable) {
			return id, err
		}
	}
	if err := m.rt.Remove(ctx, name, true); err != nil {
		if errors.Is(err, runtime.ErrUnreachable) {
			return id, err
		}
		if !errors.Is(err, runtime.ErrNotFound) {
			m.logger.Warn().Err(err).Str("instance_id", id).Msg("container removal failed")
		}
	}

	if err := m.store.Update(func(db *store.DB) error {
		delete(db.Instances, id)
		return nil
	}); err != nil {
		return id, err
	}

	m.snap.drop(id)
	m.logger.Info().Str("instance_id", id).Msg("instance destroyed")
	return id, nil
}

func generateGatewayToken() (string, error) {
	b := make([]byte, gatewayTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func shortContainerID(containerID string) string {
	if len(containerID) > 12 {
		return containerID[:12]
	}
	return containerID
}
