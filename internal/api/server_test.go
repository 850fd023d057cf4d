package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickrun/internal/eventbus"
	"tickrun/internal/launch"
	"tickrun/internal/storage"
	"tickrun/internal/task/scheduler"
	logx "tickrun/pkg/logx"
)

type harness struct {
	srv  *Server
	svc  *scheduler.Service
	rec  *eventbus.Recorder
	http http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := storage.OpenFile(filepath.Join(t.TempDir(), "tasks.json"), logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	rec := eventbus.NewRecorder(16, "task.")
	svc := scheduler.New(scheduler.Config{Tick: time.Hour}, store, launch.Func(func(string) error { return nil }), logx.Nop(), eventbus.Nop())
	srv := New(svc, rec, logx.Nop())
	srv.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local) }
	return &harness{srv: srv, svc: svc, rec: rec, http: srv.Handler()}
}

func (h *harness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.http.ServeHTTP(rr, req)
	return rr
}

func decodeData(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var env ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env.Error.Code
}

const dailyBody = `{"name":"backup","file_path":"/usr/local/bin/backup","schedule_type":"daily","time":"10:30"}`

func TestTaskLifecycle(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rr := h.do(t, http.MethodPost, "/api/v1/tasks", dailyBody)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created map[string]any
	decodeData(t, rr, &created)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "/api/v1/tasks/"+id, rr.Header().Get("Location"))
	assert.Equal(t, "10:30:00", created["time"])
	assert.Equal(t, true, created["enabled"])

	rr = h.do(t, http.MethodGet, "/api/v1/tasks", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []map[string]any
	decodeData(t, rr, &list)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0]["id"])

	rr = h.do(t, http.MethodPut, "/api/v1/tasks/"+id,
		`{"name":"backup","file_path":"/usr/local/bin/backup","schedule_type":"weekly","time":"07:00:00","days":[0,2]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var updated map[string]any
	decodeData(t, rr, &updated)
	assert.Equal(t, "weekly", updated["schedule_type"])
	assert.Equal(t, []any{float64(0), float64(2)}, updated["days"])

	rr = h.do(t, http.MethodPost, "/api/v1/tasks/"+id+"/disable", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var toggled map[string]any
	decodeData(t, rr, &toggled)
	assert.Equal(t, false, toggled["enabled"])
	assert.Nil(t, toggled["next_run"])

	rr = h.do(t, http.MethodPost, "/api/v1/tasks/"+id+"/enable", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = h.do(t, http.MethodGet, "/api/v1/tasks/"+id, "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = h.do(t, http.MethodDelete, "/api/v1/tasks/"+id, "")
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = h.do(t, http.MethodGet, "/api/v1/tasks/"+id, "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, CodeNotFound, errorCode(t, rr))
}

func TestCreateErrors(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"empty body", "", http.StatusBadRequest, CodeInvalidJSON},
		{"malformed", `{"name":`, http.StatusBadRequest, CodeInvalidJSON},
		{"unknown field", `{"name":"x","cron":"* * * * *"}`, http.StatusBadRequest, CodeInvalidJSON},
		{"wrong type", `{"name":42}`, http.StatusBadRequest, CodeInvalidJSON},
		{"bad time", `{"name":"x","file_path":"/bin/true","schedule_type":"daily","time":"25:00"}`, http.StatusBadRequest, CodeInvalidTask},
		{"weekly without days", `{"name":"x","file_path":"/bin/true","schedule_type":"weekly","time":"10:00"}`, http.StatusBadRequest, CodeInvalidTask},
		{"unknown kind", `{"name":"x","file_path":"/bin/true","schedule_type":"hourly","time":"10:00"}`, http.StatusBadRequest, CodeInvalidTask},
	}
	for _, tc := range cases {
		rr := h.do(t, http.MethodPost, "/api/v1/tasks", tc.body)
		assert.Equal(t, tc.status, rr.Code, tc.name)
		assert.Equal(t, tc.code, errorCode(t, rr), tc.name)
	}

	rr := h.do(t, http.MethodGet, "/api/v1/tasks", "")
	var list []map[string]any
	decodeData(t, rr, &list)
	assert.Empty(t, list, "rejected tasks are not stored")
}

func TestCreateDuplicateIDConflicts(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	body := `{"id":"fixed","name":"x","file_path":"/bin/true","schedule_type":"daily","time":"10:00"}`
	require.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, "/api/v1/tasks", body).Code)

	rr := h.do(t, http.MethodPost, "/api/v1/tasks", body)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, CodeConflict, errorCode(t, rr))
}

func TestUpdateErrors(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rr := h.do(t, http.MethodPut, "/api/v1/tasks/ghost", dailyBody)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = h.do(t, http.MethodPut, "/api/v1/tasks/ghost",
		`{"id":"other","name":"x","file_path":"/bin/true","schedule_type":"daily","time":"10:00"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodDelete, "/api/v1/tasks/ghost", "").Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodPost, "/api/v1/tasks/ghost/enable", "").Code)
}

func TestPreview(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	rr := h.do(t, http.MethodPost, "/api/v1/tasks",
		`{"id":"p","name":"x","file_path":"/bin/true","schedule_type":"daily","time":"10:30","enabled":false}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = h.do(t, http.MethodGet, "/api/v1/tasks/p/preview?n=3", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var p previewResponse
	decodeData(t, rr, &p)
	require.Len(t, p.Runs, 3, "preview covers disabled tasks")

	first, err := time.Parse(time.RFC3339, p.Runs[0])
	require.NoError(t, err)
	assert.True(t, first.Equal(time.Date(2024, 5, 1, 10, 30, 0, 0, time.Local)))

	for _, q := range []string{"0", "abc", "101"} {
		rr = h.do(t, http.MethodGet, "/api/v1/tasks/p/preview?n="+q, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
		assert.Equal(t, CodeInvalidRequest, errorCode(t, rr))
	}
}

func TestHealthAndStatus(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.rec.Record(eventbus.Event{Type: "task.fired", Time: time.Now()})
	h.rec.Record(eventbus.Event{Type: "config.reloaded", Time: time.Now()})

	rr := h.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var health healthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.False(t, health.Running)

	rr = h.do(t, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var st struct {
		Scheduler map[string]any   `json:"scheduler"`
		Events    []map[string]any `json:"events"`
	}
	decodeData(t, rr, &st)
	assert.Equal(t, false, st.Scheduler["running"])
	require.Len(t, st.Events, 1, "recorder keeps task events only")
	assert.Equal(t, "task.fired", st.Events[0]["type"])
}

func TestInternalErrorsAreOpaque(t *testing.T) {
	t.Parallel()
	status, detail := statusFor(errors.New("disk on fire"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, CodeInternal, detail.Code)
	assert.NotContains(t, detail.Message, "disk")
}

func TestServeListenerShutsDown(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.srv.ServeListener(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
	_, err = http.Get(url)
	assert.Error(t, err)
}

func TestProfilerIsOptIn(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/debug/pprof/", "").Code)

	srv := New(h.svc, nil, logx.Nop(), WithProfiler(true))
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
