package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestParseYAMLOverDefaults(t *testing.T) {
	t.Parallel()
	p := writeFile(t, "tickrun.yaml", `
logging:
  level: debug
scheduler:
  tick: 250ms
storage:
  driver: sqlite
  path: /var/lib/tickrun/tasks.db
  busy_timeout: 2s
`)
	cfg, err := NewConfigManager(p).Parse()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Console, "omitted keys keep defaults")
	assert.Equal(t, DefaultAPIAddr, cfg.API.Addr)

	sc, err := cfg.SchedulerSettings()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, sc.Tick)

	st, err := cfg.StorageSettings()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", st.Driver)
	assert.Equal(t, "/var/lib/tickrun/tasks.db", st.Path)
	assert.Equal(t, 2*time.Second, st.BusyTimeout)
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	p := writeFile(t, "tickrun.json", `{"api":{"enabled":false},"launch":{"work_dir":"/srv"}}`)
	cfg, err := NewConfigManager(p).Parse()
	require.NoError(t, err)
	assert.False(t, cfg.API.Enabled)
	assert.Equal(t, "/srv", cfg.Launch.WorkDir)
	assert.Equal(t, DefaultStore, cfg.Storage.Path)
}

func TestParseRejects(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		file string
		body string
	}{
		{"unknown field", "c.json", `{"logging":{"colour":true}}`},
		{"trailing data", "c.json", `{} {}`},
		{"bad yaml", "c.yaml", "logging: [\n"},
		{"bad level", "c.json", `{"logging":{"level":"loud"}}`},
		{"bad tick", "c.json", `{"scheduler":{"tick":"soon"}}`},
		{"tiny tick", "c.json", `{"scheduler":{"tick":"1ms"}}`},
		{"bad driver", "c.json", `{"storage":{"driver":"postgres","path":"x"}}`},
		{"empty store path", "c.json", `{"storage":{"path":""}}`},
		{"bad addr", "c.json", `{"api":{"enabled":true,"addr":"nowhere"}}`},
		{"api without addr", "c.json", `{"api":{"enabled":true,"addr":""}}`},
		{"file sink without path", "c.json", `{"logging":{"file":{"enabled":true,"path":""}}}`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewConfigManager(writeFile(t, tc.file, tc.body)).Parse()
			require.Error(t, err)
		})
	}
}

func TestValidationErrorsWrapErrInvalid(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Logging.Level = "chatty"
	err := Validate(cfg)
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "logging.level")
}

func TestMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()
	m := NewConfigManager(filepath.Join(t.TempDir(), "absent.yaml"))
	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultTick, cfg.Scheduler.Tick)
	assert.Same(t, cfg, m.Get())
}

func TestEnvOverlay(t *testing.T) {
	p := writeFile(t, "tickrun.yaml", "storage:\n  path: from-file.json\n")
	t.Setenv("TICKRUN_STORAGE_PATH", "from-env.json")
	t.Setenv("TICKRUN_LOG_LEVEL", "warn")
	t.Setenv("TICKRUN_API_ENABLED", "false")
	t.Setenv("TICKRUN_LOG_FILE", "/tmp/tickrun-test.log")

	cfg, err := NewConfigManager(p).Parse()
	require.NoError(t, err)
	assert.Equal(t, "from-env.json", cfg.Storage.Path)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.False(t, cfg.API.Enabled)
	assert.True(t, cfg.Logging.File.Enabled)
	assert.Equal(t, "/tmp/tickrun-test.log", cfg.Logging.File.Path)
}

func TestEnvOverlayInvalidValue(t *testing.T) {
	t.Setenv("TICKRUN_API_ENABLED", "maybe")
	_, err := NewConfigManager("").Parse()
	require.Error(t, err)
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	t.Parallel()
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	old := Default()
	next := Default()
	next.Logging.Level = "debug"
	next.Scheduler.Tick = "5s"
	next.Storage.Driver = "sqlite"

	changed, attrs, restart := SummarizeConfigChange(old, next)
	assert.Equal(t, []string{"logging", "scheduler", "storage"}, changed)
	assert.NotEmpty(t, attrs)
	assert.Equal(t, []string{"storage"}, restart)

	changed, _, restart = SummarizeConfigChange(old, Default())
	assert.Empty(t, changed)
	assert.Empty(t, restart)
}

func TestSubscribeDeliversLatest(t *testing.T) {
	t.Parallel()
	m := NewConfigManager("")
	ch := m.Subscribe(1)

	a, b := Default(), Default()
	b.Scheduler.Tick = "2s"
	m.publish(a)
	m.publish(b)

	got := <-ch
	assert.Same(t, b, got, "a full buffer keeps the newest config")

	m.Unsubscribe(ch)
	_, ok := <-ch
	assert.False(t, ok)
}

func TestWatchPublishesReload(t *testing.T) {
	t.Parallel()
	p := writeFile(t, "tickrun.json", `{"scheduler":{"tick":"1s"}}`)
	m := NewConfigManager(p)
	_, err := m.Load()
	require.NoError(t, err)
	ch := m.Subscribe(4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()

	// Keep rewriting until the watcher is up and sees a change.
	var got *Config
	require.Eventually(t, func() bool {
		_ = os.WriteFile(p, []byte(`{"scheduler":{"tick":"3s"}}`), 0o600)
		select {
		case got = <-ch:
			return true
		default:
			return false
		}
	}, 10*time.Second, 300*time.Millisecond)
	assert.Equal(t, "3s", got.Scheduler.Tick)
	assert.Equal(t, "3s", m.Get().Scheduler.Tick)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
