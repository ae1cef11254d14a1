package metrics

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/launcher/pkg/config"
	"github.com/openclaw/launcher/pkg/manager"
	"github.com/openclaw/launcher/pkg/runtime/runtimetest"
	"github.com/openclaw/launcher/pkg/store"
	"github.com/openclaw/launcher/pkg/types"
	"github.com/openclaw/launcher/pkg/workspace"
)

func newManager(t *testing.T) *manager.Manager {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.SettleInterval = 0

	st, err := store.New(filepath.Join(cfg.DataDir, "instances.json"))
	require.NoError(t, err)
	return manager.New(cfg, st, runtimetest.New(), workspace.New(filepath.Join(cfg.DataDir, "instances"), ""))
}

func scrape(t *testing.T, mgr *manager.Manager) (string, string) {
	t.Helper()
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler(mgr).ServeHTTP(rec, req)
	return rec.Body.String(), rec.Header().Get("Content-Type")
}

func TestEmptyExposition(t *testing.T) {
	mgr := newManager(t)
	body, contentType := scrape(t, mgr)

	assert.Contains(t, contentType, "version=0.0.4")
	assert.Contains(t, body, "# HELP openclaw_instances_total")
	assert.Contains(t, body, "# TYPE openclaw_instances_total gauge")
	assert.Contains(t, body, "openclaw_instances_total 0")
	assert.Contains(t, body, "openclaw_instances_running 0")
	assert.True(t, strings.HasSuffix(body, "\n"))
}

func TestPerInstanceSamples(t *testing.T) {
	mgr := newManager(t)
	pubkey := strings.Repeat("A", 32)

	res, err := mgr.Launch(context.Background(), pubkey)
	require.NoError(t, err)

	mgr.SetSnapshot(res.ID, types.StatusSnapshot{
		Status:      types.StatusRunning,
		CPUPercent:  12.5,
		MemoryBytes: 1048576,
		Updated:     time.Now(),
	})
	mgr.IncrementRestarts(res.ID)

	body, _ := scrape(t, mgr)

	labels := `instance="` + res.ID + `",pubkey="` + pubkey + `"`
	assert.Contains(t, body, "openclaw_instances_total 1")
	assert.Contains(t, body, "openclaw_instances_running 1")
	assert.Contains(t, body, "# TYPE openclaw_instance_restarts_total counter")
	assert.Contains(t, body, "openclaw_instance_restarts_total{"+labels+"} 1")
	assert.Contains(t, body, "openclaw_instance_cpu_percent{"+labels+"} 12.5")
	assert.Contains(t, body, "openclaw_instance_memory_bytes{"+labels+"} 1.048576e+06")
}

func TestTokenNeverInExposition(t *testing.T) {
	mgr := newManager(t)
	res, err := mgr.Launch(context.Background(), strings.Repeat("B", 33))
	require.NoError(t, err)

	body, _ := scrape(t, mgr)
	assert.NotContains(t, body, res.Record.GatewayToken)
}
