package console

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-console/internal/config"
	"github.com/miradorstack/mirador-console/internal/store"
	"github.com/miradorstack/mirador-console/internal/utils"
)

func TestMountRefreshesAndUnmountCloses(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/api/analytics/metrics/summary":
			_, _ = w.Write([]byte(`{"cpu_usage":0.3}`))
		case "/api/agents":
			_, _ = w.Write([]byte(`[{"id":"a","status":"healthy"}]`))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Backend.BaseURL = srv.URL
	cfg.Console.Pages = []config.PageConfig{{Name: "overview", Period: time.Hour}, {Name: "agents", Period: time.Hour}}
	c := Build(&cfg, utils.DiscardLogger())

	require.NoError(t, c.Mount(context.Background()))
	assert.True(t, c.Mounted())
	assert.Eventually(t, func() bool { return c.Store().Loaded("overview") }, 2*time.Second, 5*time.Millisecond)
	snap := c.Store().Snapshot()
	assert.Equal(t, 0.3, snap.Metrics["cpu_usage"])
	require.Len(t, snap.Agents, 1)

	c.ApplyPages([]config.PageConfig{{Name: "overview", Period: time.Minute}, {Name: "agents", Period: time.Hour}})
	assert.Equal(t, "1m0s", c.Periods()["overview"])

	c.Unmount()
	assert.False(t, c.Mounted())
	assert.True(t, c.Store().Closed())
	assert.ErrorIs(t, c.Mount(context.Background()), store.ErrClosed)
}

func TestMountRejectsUnknownPage(t *testing.T) {
	st := store.New(store.Deps{Logger: utils.DiscardLogger()}, store.Options{})
	c := New(st, []config.PageConfig{{Name: "dashboard", Period: time.Second}}, utils.DiscardLogger())
	err := c.Mount(context.Background())
	require.Error(t, err)
	assert.False(t, c.Mounted())
	c.Unmount()
}

func TestEveryConfigPageHasTask(t *testing.T) {
	st := store.New(store.Deps{Logger: utils.DiscardLogger()}, store.Options{})
	defer st.Close()
	for _, page := range config.PageNames {
		task, err := TaskFor(st, page)
		require.NoError(t, err, page)
		assert.NotNil(t, task)
	}
}

func TestDefaultPagesIsOverview(t *testing.T) {
	st := store.New(store.Deps{Logger: utils.DiscardLogger()}, store.Options{})
	c := New(st, nil, utils.DiscardLogger())
	require.Len(t, c.pages, 1)
	assert.Equal(t, "overview", c.pages[0].Name)
	assert.Equal(t, 10*time.Second, c.pages[0].Period)
	c.Unmount()
}

func TestTaskFor(t *testing.T) {
	st := store.New(store.Deps{Logger: utils.DiscardLogger()}, store.Options{})
	defer st.Close()
	for _, page := range []string{"overview", "agents", "logs", "alerts", "automation"} {
		task, err := TaskFor(st, page)
		require.NoError(t, err, page)
		assert.NotNil(t, task)
	}
	_, err := TaskFor(st, "unknown")
	assert.Error(t, err)
}
