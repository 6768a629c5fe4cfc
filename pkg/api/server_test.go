package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taylored/runnerd/pkg/config"
	"github.com/taylored/runnerd/pkg/docker"
	"github.com/taylored/runnerd/pkg/log"
	"github.com/taylored/runnerd/pkg/orchestrator"
	"github.com/taylored/runnerd/pkg/registry"
	"github.com/taylored/runnerd/pkg/types"
)

func init() {
	log.Init(log.Config{Level: log.ErrorLevel, Output: io.Discard, JSONOutput: true})
}

type stubDriver struct {
	mu      sync.Mutex
	imageOK bool
	nextID  int
	created int
	live    map[string]bool
}

func newStubDriver() *stubDriver {
	return &stubDriver{imageOK: true, live: make(map[string]bool)}
}

func (d *stubDriver) ImageExists(ctx context.Context, image string) (bool, error) {
	return d.imageOK, nil
}

func (d *stubDriver) Create(ctx context.Context, cfg docker.CreateConfig) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.created++
	id := fmt.Sprintf("c%d", d.nextID)
	d.live[id] = false
	return id, nil
}

func (d *stubDriver) Start(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.live[id] = true
	return nil
}

func (d *stubDriver) Inspect(ctx context.Context, id string) (*docker.ContainerState, error) {
	return &docker.ContainerState{ID: id, Running: true, Status: "running"}, nil
}

func (d *stubDriver) Stop(ctx context.Context, id string) error { return nil }

func (d *stubDriver) Remove(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.live, id)
	return nil
}

func (d *stubDriver) ListSessionContainers(ctx context.Context) ([]docker.SessionContainer, error) {
	return nil, nil
}

func (d *stubDriver) Close() error { return nil }

func newTestServer(t *testing.T, reuse bool) (*Server, *stubDriver) {
	t.Helper()
	cfg := &config.Orchestrator{
		Port:              3001,
		InactivityTimeout: 60,
		ReuseRunnerMode:   reuse,
		RunnersHost:       "localhost",
		Image:             "runner-image",
		ContainerPort:     3000,
		Environment:       "development",
	}
	drv := newStubDriver()
	orch := orchestrator.New(cfg, registry.New(reuse), drv, nil)
	return NewServer(orch), drv
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRootBanner(t *testing.T) {
	srv, _ := newTestServer(t, false)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Orchestrator service is running!", rec.Body.String())
}

func TestProvisionFresh(t *testing.T) {
	srv, _ := newTestServer(t, false)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/runner/provision", nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var res provisionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, orchestrator.MsgProvisioned, res.Message)
	assert.NotEmpty(t, res.SessionID)
	assert.Contains(t, res.Endpoint, "localhost:")
}

func TestProvisionIdempotentSameEndpoint(t *testing.T) {
	srv, drv := newTestServer(t, false)
	headers := map[string]string{"X-Session-Id": "abc"}

	first := doJSON(t, srv.Handler(), http.MethodPost, "/api/runner/provision", nil, headers)
	require.Equal(t, http.StatusCreated, first.Code)
	second := doJSON(t, srv.Handler(), http.MethodPost, "/api/runner/provision", nil, headers)
	require.Equal(t, http.StatusOK, second.Code)

	var res1, res2 provisionResponse
	require.NoError(t, json.NewDecoder(first.Body).Decode(&res1))
	require.NoError(t, json.NewDecoder(second.Body).Decode(&res2))

	assert.Equal(t, "abc", res1.SessionID)
	assert.Equal(t, "abc", res2.SessionID)
	assert.Equal(t, res1.Endpoint, res2.Endpoint)
	assert.Equal(t, orchestrator.MsgAlreadyExists, res2.Message)
	assert.Equal(t, 1, drv.created)
}

func TestProvisionIsolated(t *testing.T) {
	srv, _ := newTestServer(t, false)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/runner/provision",
		provisionRequest{NetworkMode: "none"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var res provisionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, types.IsolatedEndpoint, res.Endpoint)
}

func TestProvisionImageMissing(t *testing.T) {
	srv, drv := newTestServer(t, false)
	drv.imageOK = false

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/runner/provision", nil, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var res errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, ErrKindImageNotFound, res.Error)
	assert.Equal(t, 0, drv.created)
}

func TestHeartbeat(t *testing.T) {
	srv, _ := newTestServer(t, false)
	h := srv.Handler()

	// Missing session id.
	rec := doJSON(t, h, http.MethodPost, "/api/runner/heartbeat", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var res errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, ErrKindSessionRequired, res.Error)

	// Unknown session.
	rec = doJSON(t, h, http.MethodPost, "/api/runner/heartbeat", sessionRequest{SessionID: "ghost"}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Live session.
	prov := doJSON(t, h, http.MethodPost, "/api/runner/provision", nil, map[string]string{"X-Session-Id": "hb"})
	require.Equal(t, http.StatusCreated, prov.Code)
	rec = doJSON(t, h, http.MethodPost, "/api/runner/heartbeat", sessionRequest{SessionID: "hb"}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeprovisionLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, false)
	h := srv.Handler()

	prov := doJSON(t, h, http.MethodPost, "/api/runner/provision", nil, map[string]string{"X-Session-Id": "gone"})
	require.Equal(t, http.StatusCreated, prov.Code)

	rec := doJSON(t, h, http.MethodPost, "/api/runner/deprovision", sessionRequest{SessionID: "gone"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var res messageResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, "Runner for session gone deprovisioned successfully.", res.Message)

	// Second deprovision: 404.
	rec = doJSON(t, h, http.MethodPost, "/api/runner/deprovision", sessionRequest{SessionID: "gone"}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReuseModeEndpoints(t *testing.T) {
	srv, drv := newTestServer(t, true)
	h := srv.Handler()

	first := doJSON(t, h, http.MethodPost, "/api/runner/provision", nil, map[string]string{"X-Session-Id": "alice"})
	require.Equal(t, http.StatusCreated, first.Code)
	second := doJSON(t, h, http.MethodPost, "/api/runner/provision", nil, map[string]string{"X-Session-Id": "bob"})
	require.Equal(t, http.StatusOK, second.Code)

	var res1, res2 provisionResponse
	require.NoError(t, json.NewDecoder(first.Body).Decode(&res1))
	require.NoError(t, json.NewDecoder(second.Body).Decode(&res2))
	assert.Equal(t, res1.Endpoint, res2.Endpoint)
	assert.Equal(t, res1.SessionID, res2.SessionID)
	assert.Equal(t, orchestrator.MsgSingletonReturned, res2.Message)
	assert.Equal(t, 1, drv.created)

	// Deprovision is disabled but reports success.
	rec := doJSON(t, h, http.MethodPost, "/api/runner/deprovision", sessionRequest{SessionID: res1.SessionID}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var msg messageResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
	assert.Equal(t, orchestrator.MsgReuseDeprovision, msg.Message)

	// Singleton persists.
	again := doJSON(t, h, http.MethodPost, "/api/runner/provision", nil, nil)
	assert.Equal(t, http.StatusOK, again.Code)
}

func TestListRunners(t *testing.T) {
	srv, _ := newTestServer(t, false)
	h := srv.Handler()

	doJSON(t, h, http.MethodPost, "/api/runner/provision", nil, map[string]string{"X-Session-Id": "one"})
	doJSON(t, h, http.MethodPost, "/api/runner/provision", nil, map[string]string{"X-Session-Id": "two"})

	rec := doJSON(t, h, http.MethodGet, "/api/runner/list", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res listResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	require.Len(t, res.Runners, 2)
}

func TestDownloadNotImplemented(t *testing.T) {
	srv, _ := newTestServer(t, false)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/runner/download/s1/somefile", nil, nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestCORSHeaders(t *testing.T) {
	srv, _ := newTestServer(t, false)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/", nil, nil)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST", rec.Header().Get("Access-Control-Allow-Methods"))
}
