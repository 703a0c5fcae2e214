package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/poiesic/notegen/core"
	"github.com/poiesic/notegen/ledger"
	"github.com/poiesic/notegen/operation"
	"github.com/poiesic/notegen/queue"
	"github.com/poiesic/notegen/vault"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStats struct{}

func (fakeStats) Summary() ledger.Summary {
	return ledger.Summary{TotalProcessed: 4, TotalErrors: 1, SuccessRatePercent: 80}
}

func (fakeStats) Stats() []core.ProcessingStatsSample {
	return []core.ProcessingStatsSample{{TotalItems: 5, ProcessedItems: 4, ErrorItems: 1}}
}

type fakeOperations struct {
	statuses []core.OperationStatus
	limit    int
}

func (f *fakeOperations) Recent(n int) []core.OperationStatus {
	f.limit = n
	return f.statuses
}

func (f *fakeOperations) Status(id string) (core.OperationStatus, bool) {
	for _, s := range f.statuses {
		if s.ID == id {
			return s, true
		}
	}
	return core.OperationStatus{}, false
}

func (f *fakeOperations) Metrics() map[core.OperationType]operation.MetricEntry {
	return map[core.OperationType]operation.MetricEntry{core.OperationFrontMatter: {Count: 3, Errors: 1}}
}

type fakeTrigger struct {
	TriggerFunc func(ctx context.Context, id string, force bool) error
	lastID      string
	lastForce   bool
}

func (f *fakeTrigger) TriggerItem(ctx context.Context, id string, force bool) error {
	f.lastID, f.lastForce = id, force
	if f.TriggerFunc != nil {
		return f.TriggerFunc(ctx, id, force)
	}
	return nil
}

func newTestRouter(ready bool, trigger *fakeTrigger, ops *fakeOperations) http.Handler {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "notegen_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	return NewRouter(Deps{
		Ready:      func() bool { return ready },
		Stats:      fakeStats{},
		Operations: ops,
		Trigger:    trigger,
		Gatherer:   reg,
	})
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestRouter(true, &fakeTrigger{}, &fakeOperations{}), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, newTestRouter(false, &fakeTrigger{}, &fakeOperations{}), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStats(t *testing.T) {
	rec := do(t, newTestRouter(true, &fakeTrigger{}, &fakeOperations{}), http.MethodGet, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Summary ledger.Summary                               `json:"summary"`
		Samples []core.ProcessingStatsSample                 `json:"samples"`
		Metrics map[core.OperationType]operation.MetricEntry `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 4, body.Summary.TotalProcessed)
	assert.Equal(t, 80.0, body.Summary.SuccessRatePercent)
	require.Len(t, body.Samples, 1)
	assert.Equal(t, 3, body.Metrics[core.OperationFrontMatter].Count)
}

func TestOperations(t *testing.T) {
	finished := time.Date(2025, 5, 1, 10, 0, 1, 0, time.UTC)
	ops := &fakeOperations{statuses: []core.OperationStatus{
		{ID: "b", Type: core.OperationWikilinks, TargetID: "n.md", State: core.OperationFailed, FinishedAt: finished, Error: "boom", RetryOf: "a"},
		{ID: "a", Type: core.OperationWikilinks, TargetID: "n.md", State: core.OperationRunning},
	}}
	h := newTestRouter(true, &fakeTrigger{}, ops)

	rec := do(t, h, http.MethodGet, "/operations?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, ops.limit)

	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "failed", list[0]["state"])
	assert.Equal(t, "a", list[0]["retryOf"])
	assert.NotContains(t, list[1], "finishedAt", "running operations have no finish time")

	rec = do(t, h, http.MethodGet, "/operations")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultRecent, ops.limit)

	rec = do(t, h, http.MethodGet, "/operations?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/operations/b")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"boom"`)

	rec = do(t, h, http.MethodGet, "/operations/zzz")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics(t *testing.T) {
	rec := do(t, newTestRouter(true, &fakeTrigger{}, &fakeOperations{}), http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "notegen_test_total 1")
}

func TestProcess(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{name: "queued", status: http.StatusAccepted, body: `"status":"queued"`},
		{name: "up to date", err: errors.Wrap(ledger.ErrUpToDate, "n.md"), status: http.StatusOK, body: `"status":"up_to_date"`},
		{name: "duplicate", err: queue.ErrDuplicate, status: http.StatusConflict},
		{name: "missing", err: errors.Wrap(vault.ErrNotFound, "n.md"), status: http.StatusNotFound},
		{name: "invalid", err: vault.ErrInvalidPath, status: http.StatusBadRequest},
		{name: "draining", err: queue.ErrDraining, status: http.StatusServiceUnavailable},
		{name: "other", err: errors.New("disk on fire"), status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger := &fakeTrigger{TriggerFunc: func(context.Context, string, bool) error { return tt.err }}
			rec := do(t, newTestRouter(true, trigger, &fakeOperations{}), http.MethodPost, "/items/topics/Go%20Channels.md/process")
			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Contains(t, rec.Body.String(), tt.body)
			}
			assert.Equal(t, "topics/Go Channels.md", trigger.lastID)
			assert.False(t, trigger.lastForce)
		})
	}
}

func TestProcess_ForceAndBadPaths(t *testing.T) {
	trigger := &fakeTrigger{}
	h := newTestRouter(true, trigger, &fakeOperations{})

	rec := do(t, h, http.MethodPost, "/items/n.md/process?force=true")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, trigger.lastForce)

	trigger.lastID = ""
	rec = do(t, h, http.MethodPost, "/items/n.md")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, trigger.lastID)

	rec = do(t, h, http.MethodGet, "/items/n.md/process")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestUnavailableDependencies(t *testing.T) {
	h := NewRouter(Deps{})
	for _, target := range []string{"/stats", "/operations", "/operations/x"} {
		rec := do(t, h, http.MethodGet, target)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, target)
	}
	rec := do(t, h, http.MethodPost, "/items/n.md/process")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.True(t, strings.Contains(do(t, h, http.MethodGet, "/healthz").Body.String(), "ok"))
}
