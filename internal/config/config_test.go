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

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MIRADOR_CONSOLE_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Store.HistoryCapacity)
	assert.Equal(t, 4*time.Second, cfg.Notify.SuccessTTL)
	assert.Equal(t, 5*time.Second, cfg.Notify.ErrorTTL)
	assert.Equal(t, []string{"/api/control/plan", "/console/plan"}, cfg.Endpoints.Plan)
	require.Len(t, cfg.Console.Pages, 1)
	assert.Equal(t, 10*time.Second, cfg.Console.Pages[0].Period)
	assert.False(t, cfg.Store.SequenceGuard)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "console.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend:
  origin: "http://localhost:8000"
console:
  pages:
    - name: overview
      period: 5s
    - name: agents
endpoints:
  metrics: ["/analytics/summary"]
`), 0o644))

	t.Setenv("MIRADOR_CONSOLE_LOG_LEVEL", "debug")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"/analytics/summary"}, cfg.Endpoints.Metrics)
	require.Len(t, cfg.Console.Pages, 2)
	assert.Equal(t, 5*time.Second, cfg.Console.Pages[0].Period)
	assert.Equal(t, 15*time.Second, cfg.Console.Pages[1].Period, "agents page falls back to its stock period")
	assert.Equal(t, "http://localhost:8000", cfg.ResolveBaseURL())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidateRejectsLongCandidateLists(t *testing.T) {
	cfg := Default()
	cfg.Endpoints.Agents = []string{"/a", "/b", "/c"}
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Endpoints.Feedback = nil
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownPage(t *testing.T) {
	cfg := Default()
	cfg.Console.Pages = []PageConfig{{Name: "overview"}, {Name: "dashboard"}}
	assert.ErrorContains(t, cfg.Validate(), `unknown page "dashboard"`)

	cfg = Default()
	cfg.Console.Pages = []PageConfig{{Name: "agents"}}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 15*time.Second, cfg.Console.Pages[0].Period)
}

func TestResolveBaseURLPriority(t *testing.T) {
	assert.Equal(t, "https://build.example", resolveBaseURL("https://build.example/", "https://runtime.example", "http://origin"))
	assert.Equal(t, "https://runtime.example", resolveBaseURL("", "https://runtime.example", "http://origin"))
	assert.Equal(t, "http://origin", resolveBaseURL("", " ", "http://origin"))
	assert.Equal(t, DefaultProductionBaseURL, resolveBaseURL("", "", ""))
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "console.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 1)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, func(cfg *Config) {
			select {
			case reloaded <- cfg:
			default:
			}
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: warn\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "warn", cfg.Logging.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("config reload not observed")
	}

	cancel()
	require.NoError(t, <-done)
}
