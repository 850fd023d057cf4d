package main

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickrun/internal/api"
	"tickrun/internal/eventbus"
	"tickrun/internal/launch"
	"tickrun/internal/storage"
	"tickrun/internal/task"
	"tickrun/internal/task/scheduler"
	logx "tickrun/pkg/logx"
)

func TestParseDays(t *testing.T) {
	got, err := parseDays("mon, 4,sun")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 4, 6}, got)

	_, err = parseDays(" , ")
	assert.Error(t, err)
	_, err = parseDays("mon,someday")
	assert.Error(t, err)
}

func TestRuleApplyOnlyChanged(t *testing.T) {
	var f ruleFlags
	cmd := &cobra.Command{Use: "x"}
	f.register(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"--time", "7:5", "--disabled"}))

	name := "keep"
	rec := task.Record{Name: name, FilePath: "/bin/true", ScheduleType: "daily"}
	require.NoError(t, f.apply(cmd, &rec, true))
	assert.Equal(t, name, rec.Name)
	assert.Equal(t, "daily", rec.ScheduleType)
	require.NotNil(t, rec.Time)
	assert.Equal(t, "07:05:00", *rec.Time)
	require.NotNil(t, rec.Enabled)
	assert.False(t, *rec.Enabled)
}

func TestRuleApplyRejectsUnknownKind(t *testing.T) {
	var f ruleFlags
	cmd := &cobra.Command{Use: "x"}
	f.register(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"--kind", "hourly"}))
	assert.Error(t, f.apply(cmd, &task.Record{}, true))
}

func TestClientAgainstServer(t *testing.T) {
	store, err := storage.OpenFile(filepath.Join(t.TempDir(), "tasks.json"), logx.Nop())
	require.NoError(t, err)
	defer store.Close()
	svc := scheduler.New(scheduler.Config{Tick: time.Hour}, store, launch.Func(func(string) error { return nil }), logx.Nop(), eventbus.Nop())
	srv := httptest.NewServer(api.New(svc, nil, logx.Nop()).Handler())
	defer srv.Close()

	prev := apiAddr
	apiAddr = srv.URL + "/"
	defer func() { apiAddr = prev }()

	at := "06:00:00"
	var created task.Task
	require.NoError(t, apiPost("/api/v1/tasks", task.Record{
		Name: "wake", FilePath: "/bin/true", ScheduleType: "daily", Time: &at,
	}, &created))
	require.NotEmpty(t, created.ID)
	assert.True(t, created.Enabled)

	var list []task.Task
	require.NoError(t, apiGet("/api/v1/tasks", &list))
	require.Len(t, list, 1)
	assert.Equal(t, "06:00:00", list[0].Time.String())

	require.NoError(t, apiDelete("/api/v1/tasks/"+created.ID))

	err = apiGet("/api/v1/tasks/"+created.ID, &created)
	var ae *apiError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, http.StatusNotFound, ae.Status)
	assert.Equal(t, api.CodeNotFound, ae.Code)
}
