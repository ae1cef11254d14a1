package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/launcher/pkg/config"
	"github.com/openclaw/launcher/pkg/identity"
	"github.com/openclaw/launcher/pkg/manager"
	"github.com/openclaw/launcher/pkg/runtime"
	"github.com/openclaw/launcher/pkg/runtime/runtimetest"
	"github.com/openclaw/launcher/pkg/store"
	"github.com/openclaw/launcher/pkg/workspace"
)

type fixture struct {
	cfg config.Config
	mgr *manager.Manager
	rt  *runtimetest.Fake
	srv *httptest.Server
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()

	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.SettleInterval = 0
	if mutate != nil {
		mutate(&cfg)
	}

	st, err := store.New(filepath.Join(cfg.DataDir, "instances.json"))
	require.NoError(t, err)

	rt := runtimetest.New()
	ws := workspace.New(filepath.Join(cfg.DataDir, "instances"), "")
	mgr := manager.New(cfg, st, rt, ws)

	srv := httptest.NewServer(NewServer(cfg, mgr).Handler())
	t.Cleanup(srv.Close)

	return &fixture{cfg: cfg, mgr: mgr, rt: rt, srv: srv}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp, decoded
}

func launchBody(pubkey string) map[string]string {
	return map[string]string{"pubkey": pubkey}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	resp, body := f.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
	assert.EqualValues(t, 0, body["instances"])
}

func TestLaunchListDestroyRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	pubkey := strings.Repeat("A", 32)

	resp, body := f.do(t, "POST", "/api/launch", launchBody(pubkey))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	inst := body["instance"].(map[string]any)
	assert.Equal(t, identity.DeriveID(pubkey), inst["id"])
	assert.EqualValues(t, 19000, inst["port"])
	assert.Equal(t, "starting", inst["status"])
	token := inst["gateway_token"].(string)
	assert.Len(t, token, 48)

	// list: one entry, no token
	resp, body = f.do(t, "GET", "/api/instances", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := body["instances"].([]any)
	require.Len(t, list, 1)
	entry := list[0].(map[string]any)
	assert.NotContains(t, entry, "gateway_token")
	assert.Equal(t, inst["id"], entry["id"])

	// destroy, then empty list
	resp, body = f.do(t, "POST", "/api/destroy", launchBody(pubkey))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "destroyed", body["status"])

	resp, body = f.do(t, "GET", "/api/instances", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["instances"])
}

func TestLaunchInvalidPubkey(t *testing.T) {
	f := newFixture(t, nil)

	for _, pubkey := range []string{"", strings.Repeat("x", 31), strings.Repeat("x", 65)} {
		resp, body := f.do(t, "POST", "/api/launch", launchBody(pubkey))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body["error"], "Invalid wallet public key")
	}
}

func TestDuplicateLaunchWhileRunning(t *testing.T) {
	f := newFixture(t, nil)
	pubkey := strings.Repeat("B", 33)

	resp, body := f.do(t, "POST", "/api/launch", launchBody(pubkey))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := body["instance"].(map[string]any)["gateway_token"].(string)

	resp, body = f.do(t, "POST", "/api/launch", launchBody(pubkey))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Instance already running", body["error"])

	inst := body["instance"].(map[string]any)
	assert.Equal(t, identity.DeriveID(pubkey), inst["id"])
	assert.NotContains(t, inst, "gateway_token")

	raw, _ := json.Marshal(body)
	assert.NotContains(t, string(raw), token)
}

func TestRestartKeepsTokenPortAndContainer(t *testing.T) {
	f := newFixture(t, nil)
	pubkey := strings.Repeat("C", 40)

	_, body := f.do(t, "POST", "/api/launch", launchBody(pubkey))
	first := body["instance"].(map[string]any)

	resp, body := f.do(t, "POST", "/api/stop", launchBody(pubkey))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "stopped", body["status"])

	resp, body = f.do(t, "POST", "/api/launch", launchBody(pubkey))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := body["instance"].(map[string]any)

	assert.Equal(t, first["gateway_token"], second["gateway_token"])
	assert.Equal(t, first["port"], second["port"])
	assert.Equal(t, first["container_id"], second["container_id"])
	assert.Equal(t, "running", second["status"])
}

func TestCapacity(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) { cfg.MaxInstances = 4 })

	for i := 0; i < 4; i++ {
		pubkey := strings.Repeat(string(rune('D'+i)), 32)
		resp, body := f.do(t, "POST", "/api/launch", launchBody(pubkey))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		inst := body["instance"].(map[string]any)
		assert.EqualValues(t, 19000+i, inst["port"])
	}

	resp, _ := f.do(t, "POST", "/api/launch", launchBody(strings.Repeat("Z", 32)))
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestStopUnknownInstance(t *testing.T) {
	f := newFixture(t, nil)
	resp, _ := f.do(t, "POST", "/api/stop", launchBody(strings.Repeat("E", 32)))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDockerDown(t *testing.T) {
	f := newFixture(t, nil)
	pubkey := strings.Repeat("F", 32)
	_, _ = f.do(t, "POST", "/api/launch", launchBody(pubkey))

	f.rt.PingErr = runtime.ErrUnreachable

	resp, _ := f.do(t, "POST", "/api/launch", launchBody(strings.Repeat("G", 32)))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = f.do(t, "POST", "/api/stop", launchBody(pubkey))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = f.do(t, "GET", "/api/stats/"+identity.DeriveID(pubkey), nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	// health stays up
	resp, body := f.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
}

func TestStatsEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	pubkey := strings.Repeat("H", 32)
	_, body := f.do(t, "POST", "/api/launch", launchBody(pubkey))
	id := body["instance"].(map[string]any)["id"].(string)

	resp, body := f.do(t, "GET", "/api/stats/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "running", body["status"])
	assert.Contains(t, body, "stats")
}

func TestLogsClamping(t *testing.T) {
	f := newFixture(t, nil)
	pubkey := strings.Repeat("I", 32)
	_, body := f.do(t, "POST", "/api/launch", launchBody(pubkey))
	id := body["instance"].(map[string]any)["id"].(string)
	f.rt.Stdout = "line1\nline2\n"

	for _, q := range []string{"?lines=0", "?lines=10000", "?lines=50", ""} {
		resp, body := f.do(t, "GET", "/api/logs/"+id+q, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body["logs"], "line1")
	}
}

func TestLogsMissingContainer(t *testing.T) {
	f := newFixture(t, nil)
	resp, _ := f.do(t, "GET", "/api/logs/aabbccddeeff", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAuthToken(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) { cfg.AuthToken = "hunter2" })

	// no token → 401 on /api, 200 on public paths
	resp, _ := f.do(t, "GET", "/api/instances", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = f.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// query form
	resp, _ = f.do(t, "GET", "/api/instances?token=hunter2", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// bearer form
	req, err := http.NewRequest("GET", f.srv.URL+"/api/instances", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer hunter2")
	r2, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	r2.Body.Close()
	assert.Equal(t, http.StatusOK, r2.StatusCode)

	// wrong token
	resp, _ = f.do(t, "GET", "/api/instances?token=wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	pubkey := strings.Repeat("J", 32)
	_, _ = f.do(t, "POST", "/api/launch", launchBody(pubkey))

	resp, err := f.srv.Client().Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, resp.Header.Get("Content-Type"), "version=0.0.4")
	assert.Contains(t, body, "openclaw_instances_total 1")
	assert.Contains(t, body, `pubkey="`+pubkey+`"`)
}

func TestFilesAPI(t *testing.T) {
	f := newFixture(t, nil)
	pubkey := strings.Repeat("K", 32)
	_, body := f.do(t, "POST", "/api/launch", launchBody(pubkey))
	id := body["instance"].(map[string]any)["id"].(string)

	// listing contains the identity marker written at provision time
	resp, body := f.do(t, "GET", "/api/files/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	files := body["files"].([]any)
	assert.Contains(t, files, "IDENTITY.md")

	// read it
	resp, body = f.do(t, "GET", "/api/files/"+id+"/IDENTITY.md", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["exists"])
	assert.Contains(t, body["content"], pubkey)

	// edit it
	resp, body = f.do(t, "PUT", "/api/files/"+id+"/IDENTITY.md", map[string]string{"content": "# edited\n"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])

	data, err := os.ReadFile(filepath.Join(f.cfg.DataDir, "instances", id, "workspace", "IDENTITY.md"))
	require.NoError(t, err)
	assert.Equal(t, "# edited\n", string(data))

	// create via PUT is forbidden
	resp, _ = f.do(t, "PUT", "/api/files/"+id+"/new.md", map[string]string{"content": "x"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// missing file reads as exists=false
	resp, body = f.do(t, "GET", "/api/files/"+id+"/absent.md", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["exists"])

	// unknown instance
	resp, _ = f.do(t, "GET", "/api/files/000000000000", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFilenamePolicy(t *testing.T) {
	assert.True(t, validFilename("notes.md"))
	assert.True(t, validFilename("settings.json"))
	assert.False(t, validFilename("../evil.md"))
	assert.False(t, validFilename("a/b.md"))
	assert.False(t, validFilename("a\\b.md"))
	assert.False(t, validFilename("script.sh"))
	assert.False(t, validFilename(""))

	// exactly 64 chars is allowed, 65 is not
	ok := strings.Repeat("a", 61) + ".md"
	require.Len(t, ok, 64)
	assert.True(t, validFilename(ok))
	assert.False(t, validFilename("a"+ok))
}
