// Package runtimetest provides a scriptable in-memory Runtime for tests.
package runtimetest

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/openclaw/launcher/pkg/runtime"
	"github.com/openclaw/launcher/pkg/types"
)

// Fake is an in-memory runtime.Runtime. Containers are keyed by name.
// Zero value is not usable; call New.
type Fake struct {
	mu sync.Mutex

	containers map[string]*fakeContainer
	nextID     int

	// PingErr makes every operation observe an unreachable daemon.
	PingErr error
	// CreateErr fails the next Create.
	CreateErr error
	// StartErr fails the next Start.
	StartErr error
	// StatsErr fails SampleStats.
	StatsErr error

	// Stdout and Stderr are returned by TailLogs for any existing
	// container; FollowLogs returns Stdout when FollowRaw is unset.
	Stdout string
	Stderr string

	// FollowRaw, when set, is returned verbatim by FollowLogs. Use
	// stdcopy.NewStdWriter to build daemon-framed content.
	FollowRaw []byte

	// StartedStatus is the status Start leaves a container in.
	StartedStatus types.InstanceStatus
}

type fakeContainer struct {
	id     string
	status types.InstanceStatus
	stats  types.ContainerStats
}

// New creates an empty fake runtime whose Start transitions containers to
// running.
func New() *Fake {
	return &Fake{
		containers:    make(map[string]*fakeContainer),
		StartedStatus: types.StatusRunning,
	}
}

var _ runtime.Runtime = (*Fake)(nil)

// SetStatus scripts the observed status of a container.
func (f *Fake) SetStatus(name string, status types.InstanceStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.containers[name]; ok {
		c.status = status
	}
}

// SetStats scripts the stats sample of a container.
func (f *Fake) SetStats(name string, stats types.ContainerStats) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.containers[name]; ok {
		c.stats = stats
	}
}

// Exists reports whether a container with the given name exists.
func (f *Fake) Exists(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.containers[name]
	return ok
}

func (f *Fake) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PingErr
}

func (f *Fake) Create(_ context.Context, name string, _ runtime.ContainerSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PingErr != nil {
		return "", f.PingErr
	}
	if f.CreateErr != nil {
		err := f.CreateErr
		f.CreateErr = nil
		return "", err
	}
	if _, ok := f.containers[name]; ok {
		return "", &runtime.APIError{Op: "create", Message: fmt.Sprintf("name %q already in use", name)}
	}
	f.nextID++
	id := fmt.Sprintf("%064d", f.nextID)
	f.containers[name] = &fakeContainer{id: id, status: types.StatusExited}
	return id, nil
}

func (f *Fake) Start(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PingErr != nil {
		return f.PingErr
	}
	if f.StartErr != nil {
		err := f.StartErr
		f.StartErr = nil
		return err
	}
	c, ok := f.containers[name]
	if !ok {
		return runtime.ErrNotFound
	}
	c.status = f.StartedStatus
	return nil
}

func (f *Fake) Stop(_ context.Context, name string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PingErr != nil {
		return f.PingErr
	}
	c, ok := f.containers[name]
	if !ok {
		return runtime.ErrNotFound
	}
	c.status = types.StatusExited
	return nil
}

func (f *Fake) Remove(_ context.Context, name string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PingErr != nil {
		return f.PingErr
	}
	if _, ok := f.containers[name]; !ok {
		return runtime.ErrNotFound
	}
	delete(f.containers, name)
	return nil
}

func (f *Fake) InspectStatus(_ context.Context, name string) (types.InstanceStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PingErr != nil {
		return types.StatusUnknown, f.PingErr
	}
	c, ok := f.containers[name]
	if !ok {
		return types.StatusUnknown, runtime.ErrNotFound
	}
	return c.status, nil
}

func (f *Fake) SampleStats(_ context.Context, name string) (types.ContainerStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PingErr != nil {
		return types.ContainerStats{}, f.PingErr
	}
	if f.StatsErr != nil {
		return types.ContainerStats{}, f.StatsErr
	}
	c, ok := f.containers[name]
	if !ok {
		return types.ContainerStats{}, runtime.ErrNotFound
	}
	return c.stats, nil
}

func (f *Fake) FollowLogs(_ context.Context, name string, _ int) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PingErr != nil {
		return nil, f.PingErr
	}
	if _, ok := f.containers[name]; !ok {
		return nil, runtime.ErrNotFound
	}
	if f.FollowRaw != nil {
		return io.NopCloser(strings.NewReader(string(f.FollowRaw))), nil
	}
	return io.NopCloser(strings.NewReader(f.Stdout)), nil
}

func (f *Fake) TailLogs(_ context.Context, name string, _ int) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PingErr != nil {
		return "", "", f.PingErr
	}
	if _, ok := f.containers[name]; !ok {
		return "", "", runtime.ErrNotFound
	}
	return f.Stdout, f.Stderr, nil
}
