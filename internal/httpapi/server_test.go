package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autocorp/engine/internal/company"
	"github.com/autocorp/engine/internal/cycle"
	"github.com/autocorp/engine/internal/health"
	"github.com/autocorp/engine/internal/metrics"
)

type fakeRunner struct {
	result cycle.CycleResult
	calls  int
}

func (f *fakeRunner) RunCycle(context.Context) (cycle.CycleResult, error) {
	f.calls++
	f.result.Cycle = f.calls
	return f.result, nil
}

func newTestServer(t *testing.T, apiKey string) (*Server, *company.State, *fakeRunner) {
	t.Helper()
	st := company.NewState(zerolog.Nop())
	st.AddLocation("AI Lab", "delivery", []string{"gpu"})
	_, err := st.CreateWorker("Ana", company.RoleExecutor, "m", "AI Lab", company.ObjectiveAwaiting)
	require.NoError(t, err)
	st.AddTask("Ship it")

	runner := &fakeRunner{}
	srv := NewServer(Config{APIKey: apiKey, SnapshotDir: t.TempDir()}, st, runner, nil, metrics.New(), zerolog.Nop())
	return srv, st, runner
}

func TestReadiness(t *testing.T) {
	st := company.NewState(zerolog.Nop())
	checker := health.NewChecker(zerolog.Nop())
	checker.Register("decision_key", func(context.Context) health.Status { return health.StatusDown })
	srv := NewServer(Config{}, st, &fakeRunner{}, checker, nil, zerolog.Nop())

	req, _ := http.NewRequest(http.MethodGet, "/readyz", nil)
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestListEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t, "")

	for path, key := range map[string]string{
		"/api/v1/workers":   "workers",
		"/api/v1/locations": "locations",
		"/api/v1/tasks":     "tasks",
		"/api/v1/events":    "events",
	} {
		req, _ := http.NewRequest(http.MethodGet, path, nil)
		resp, err := srv.App().Test(req, -1)
		require.NoError(t, err, path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body), path)
		assert.Contains(t, body, key, path)
		assert.Contains(t, body, "total", path)
	}
}

func TestTaskStatusFilter(t *testing.T) {
	srv, st, _ := newTestServer(t, "")
	st.Tasks[0].LogStatus(company.TaskInProgress, "claimed")
	st.AddTask("Another one")

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/tasks?status=todo", nil)
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)

	var body struct {
		Tasks []company.Task `json:"tasks"`
		Total int            `json:"total"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body.Total)
	assert.Equal(t, "Another one", body.Tasks[0].Description)
}

func TestRunCycleEndpoint(t *testing.T) {
	srv, _, runner := newTestServer(t, "")

	req, _ := http.NewRequest(http.MethodPost, "/api/v1/cycles", nil)
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, runner.calls)

	var result cycle.CycleResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 1, result.Cycle)
}

func TestAuth(t *testing.T) {
	srv, _, _ := newTestServer(t, "secret")

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/workers", nil)
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = srv.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req.Header.Set("Authorization", "Bearer secret")
	resp, err = srv.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Probes stay open.
	probe, _ := http.NewRequest(http.MethodGet, "/healthz", nil)
	resp, err = srv.App().Test(probe, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestIDHeader(t *testing.T) {
	srv, _, _ := newTestServer(t, "")

	req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestSnapshotEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, "")

	req, _ := http.NewRequest(http.MethodPost, "/api/v1/snapshot", nil)
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
