package reconciler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/openclaw/launcher/pkg/log"
	"github.com/openclaw/launcher/pkg/manager"
	"github.com/openclaw/launcher/pkg/runtime"
	"github.com/openclaw/launcher/pkg/types"
)

// Reconciler keeps the in-memory status snapshot in step with the
// container runtime and counts unexpected terminations. It only describes:
// it never creates or destroys records.
type Reconciler struct {
	manager *manager.Manager
	period  time.Duration
	logger  zerolog.Logger

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
}

// New creates a reconciler over mgr with the given pass period.
func New(mgr *manager.Manager, period time.Duration) *Reconciler {
	return &Reconciler{
		manager: mgr,
		period:  period,
		logger:  log.WithComponent("reconciler"),
		stopCh:  make(chan struct{}),
	}
}

// Start begins the reconciliation loop. It is idempotent: the loop runs at
// most once per process no matter how often Start is called.
func (r *Reconciler) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	go r.run()
}

// Stop stops the reconciler.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return
	}
	select {
	case <-r.stopCh:
	default:
		close(r.stopCh)
	}
}

func (r *Reconciler) run() {
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	r.logger.Info().Dur("period", r.period).Msg("reconciler started")

	for {
		select {
		case <-ticker.C:
			r.pass()
		case <-r.stopCh:
			r.logger.Info().Msg("reconciler stopped")
			return
		}
	}
}

// pass performs one reconciliation cycle. Panics are confined to the pass
// so the next one still runs on schedule.
func (r *Reconciler) pass() {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Interface("panic", rec).Msg("reconciliation pass panicked")
		}
	}()

	ctx := context.Background()

	db, err := r.manager.Store().Load()
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to load store")
		return
	}

	if err := r.manager.Runtime().Ping(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("docker unreachable, skipping pass")
		return
	}

	known := make(map[string]bool, len(db.Instances))
	for id := range db.Instances {
		known[id] = true
	}
	r.manager.PruneSnapshots(known)

	for id := range db.Instances {
		r.reconcileInstance(ctx, id)
	}
}

// reconcileInstance refreshes one instance's snapshot. Adapter failures
// other than not-found leave the snapshot untouched.
func (r *Reconciler) reconcileInstance(ctx context.Context, id string) {
	name := manager.ContainerName(id)
	prev, hadPrev := r.manager.Snapshot(id)

	status, err := r.manager.Runtime().InspectStatus(ctx, name)
	if err != nil {
		if errors.Is(err, runtime.ErrNotFound) {
			if !hadPrev || (prev.Status != types.StatusNotFound && prev.Status != types.StatusUnknown) {
				r.logger.Warn().Str("instance_id", id).Msg("container missing for known instance")
			}
			r.manager.SetSnapshot(id, types.StatusSnapshot{
				Status:  types.StatusNotFound,
				Updated: time.Now(),
			})
			return
		}
		r.logger.Error().Err(err).Str("instance_id", id).Msg("inspect failed")
		return
	}

	if hadPrev && prev.Status == types.StatusRunning && status.Terminal() {
		r.manager.IncrementRestarts(id)
		r.logger.Warn().
			Str("instance_id", id).
			Str("from", string(prev.Status)).
			Str("to", string(status)).
			Msg("instance left running state")
	}

	snap := types.StatusSnapshot{Status: status, Updated: time.Now()}
	if status == types.StatusRunning {
		if stats, err := r.manager.Runtime().SampleStats(ctx, name); err == nil {
			snap.CPUPercent = stats.CPUPercent
			snap.MemoryBytes = stats.MemoryBytes
		}
	}
	r.manager.SetSnapshot(id, snap)
}
