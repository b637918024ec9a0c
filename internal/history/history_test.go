package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendEvictsOldestFirst(t *testing.T) {
	buf := New(30)
	for i := 0; i < 45; i++ {
		buf.Append("cpu_usage", float64(i)/100)
	}
	values := buf.Values("cpu_usage")
	require.Len(t, values, 30)
	assert.InDelta(t, 0.15, values[0], 1e-9)
	assert.InDelta(t, 0.44, values[29], 1e-9)
}

func TestAppendClamps(t *testing.T) {
	buf := New(5)
	buf.Append("error_rate", 1.7)
	buf.Append("error_rate", -0.2)
	buf.Append("error_rate", 0.42)
	assert.Equal(t, []float64{1, 0, 0.42}, buf.Values("error_rate"))
}

func TestPointIDs(t *testing.T) {
	buf := New(0)
	assert.Equal(t, DefaultCapacity, buf.Capacity())
	buf.now = func() time.Time { return time.UnixMilli(1700000000123) }
	point := buf.Append("log_rate", 0.5)
	assert.Equal(t, "1700000000123log_rate", point.ID)
}

func TestPointsAreCopies(t *testing.T) {
	buf := New(3)
	buf.Append("k", 0.1)
	points := buf.Points("k")
	points[0].Value = 0.9
	assert.Equal(t, 0.1, buf.Values("k")[0])
	assert.Equal(t, []string{"k"}, buf.Keys())
	assert.Len(t, buf.Snapshot()["k"], 1)
}
