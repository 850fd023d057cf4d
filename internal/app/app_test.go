package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickrun/internal/task"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func configBody(dir, tick, addr string, api bool) string {
	return fmt.Sprintf(`{
  "logging": {"level": "debug", "console": false},
  "scheduler": {"tick": %q},
  "storage": {"driver": "file", "path": %q},
  "api": {"enabled": %t, "addr": %q}
}`, tick, filepath.Join(dir, "tasks.json"), api, addr)
}

func writeConfig(t *testing.T, dir, tick, addr string, api bool) string {
	t.Helper()
	p := filepath.Join(dir, "tickrun.json")
	require.NoError(t, os.WriteFile(p, []byte(configBody(dir, tick, addr, api)), 0o600))
	return p
}

func TestAppLifecycle(t *testing.T) {
	dir := t.TempDir()
	addr := freeAddr(t)
	a, err := New(writeConfig(t, dir, "50ms", addr, true))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))
	assert.Equal(t, addr, a.APIAddr())
	assert.True(t, a.Scheduler().Running())

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	tod := task.MustTimeOfDay("23:59:59")
	added, err := a.Scheduler().Add(ctx, task.Task{
		Name: "nightly", Target: "/bin/true", Kind: task.Daily, Time: &tod, Enabled: true,
	})
	require.NoError(t, err)
	require.NotNil(t, added.NextRun)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	require.NoError(t, a.Stop(stopCtx, StopAppStop))
	assert.False(t, a.Scheduler().Running())

	select {
	case <-a.Done():
	default:
		t.Fatal("done channel must be closed after stop")
	}
	require.NoError(t, a.Err())

	_, err = http.Get("http://" + addr + "/health")
	assert.Error(t, err, "api is shut down")

	// The task survives a restart.
	b, err := New(writeConfig(t, dir, "50ms", addr, false))
	require.NoError(t, err)
	require.NoError(t, b.Start(context.Background()))
	got, err := b.Scheduler().Get(context.Background(), added.ID)
	require.NoError(t, err)
	assert.Equal(t, "nightly", got.Name)
	require.NoError(t, b.Stop(stopCtx, StopAppStop))
}

func TestAppStartFailsOnBusyPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	a, err := New(writeConfig(t, t.TempDir(), "1s", ln.Addr().String(), true))
	require.NoError(t, err)
	err = a.Start(context.Background())
	require.Error(t, err)
	assert.False(t, a.Scheduler().Running())
	_ = a.store.Close()
	_ = a.logs.Close()
}

func TestNewRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "tickrun.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"storage":{"driver":"postgres","path":"x"}}`), 0o600))
	_, err := New(p)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(p, []byte(`{"launch":{"work_dir":"`+filepath.Join(dir, "missing")+`"}}`), 0o600))
	_, err = New(p)
	require.Error(t, err)
}

func TestHotReloadAppliesTick(t *testing.T) {
	dir := t.TempDir()
	p := writeConfig(t, dir, "1s", "", false)
	a, err := New(p)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		_ = a.Stop(stopCtx, StopAppStop)
	}()

	require.Eventually(t, func() bool {
		_ = os.WriteFile(p, []byte(configBody(dir, "200ms", "", false)), 0o600)
		for _, e := range a.events.Recent() {
			if e.Type == EventConfigReloaded {
				return true
			}
		}
		return false
	}, 10*time.Second, 300*time.Millisecond)

	assert.Equal(t, 200*time.Millisecond, a.sched.Snapshot().Tick)
}
