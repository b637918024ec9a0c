package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-console/internal/utils"
)

func TestRunsImmediatelyThenOnTick(t *testing.T) {
	var slow atomic.Int32
	hourly := New("overview", time.Hour, func(context.Context) { slow.Add(1) }, utils.DiscardLogger())
	hourly.Start(context.Background())
	defer hourly.Stop()
	assert.Eventually(t, func() bool { return slow.Load() == 1 }, time.Second, time.Millisecond, "first run must not wait for a tick")

	var runs atomic.Int32
	s := New("overview", 20*time.Millisecond, func(context.Context) { runs.Add(1) }, utils.DiscardLogger())
	s.Start(context.Background())
	defer s.Stop()
	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.True(t, s.Running())
}

func TestStopHaltsTicksWithoutCancellingTask(t *testing.T) {
	var runs atomic.Int32
	started := make(chan struct{}, 8)
	finished := make(chan error, 1)
	release := make(chan struct{})
	task := func(ctx context.Context) {
		if runs.Add(1) == 1 {
			started <- struct{}{}
			<-release
			finished <- ctx.Err()
		}
	}
	s := New("agents", 10*time.Millisecond, task, utils.DiscardLogger())
	s.Start(context.Background())
	<-started
	s.Stop()
	assert.False(t, s.Running())

	after := runs.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no ticks after stop")

	close(release)
	select {
	case err := <-finished:
		assert.NoError(t, err, "in-flight task context must survive Stop")
	case <-time.After(time.Second):
		t.Fatal("in-flight task never finished")
	}
	s.Stop()
}

func TestOverlappingRunsAllowed(t *testing.T) {
	var active, peak atomic.Int32
	release := make(chan struct{})
	task := func(context.Context) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		active.Add(-1)
	}
	s := New("logs", 10*time.Millisecond, task, utils.DiscardLogger())
	s.Start(context.Background())
	require.Eventually(t, func() bool { return peak.Load() >= 2 }, time.Second, time.Millisecond)
	s.Stop()
	close(release)
}

func TestReset(t *testing.T) {
	var runs atomic.Int32
	s := New("overview", time.Hour, func(context.Context) { runs.Add(1) }, utils.DiscardLogger())
	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, time.Millisecond)
	s.Reset(10 * time.Millisecond)
	assert.Equal(t, 10*time.Millisecond, s.Period())
	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestDefaultPeriod(t *testing.T) {
	s := New("x", 0, nil, nil)
	assert.Equal(t, 10*time.Second, s.Period())
	assert.Equal(t, "x", s.Name())
	s.Stop()
}
