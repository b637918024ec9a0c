package notify

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessagesAutoClear(t *testing.T) {
	ch := New(30*time.Millisecond, 60*time.Millisecond, nil)
	ch.NotifySuccess("saved")
	ch.NotifyError("failed")

	st := ch.Current()
	require.NotNil(t, st.Success)
	require.NotNil(t, st.Error)
	assert.Equal(t, "saved", st.Success.Text)
	assert.NotEmpty(t, st.Error.ID)

	assert.Eventually(t, func() bool { return ch.Current().Success == nil }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return ch.Current().Error == nil }, time.Second, 5*time.Millisecond)
}

func TestReplacementResetsTimer(t *testing.T) {
	ch := New(150*time.Millisecond, time.Second, nil)
	ch.NotifySuccess("first")
	time.Sleep(100 * time.Millisecond)
	ch.NotifySuccess("second")
	time.Sleep(100 * time.Millisecond)

	st := ch.Current()
	require.NotNil(t, st.Success, "replacement must restart the clear timer")
	assert.Equal(t, "second", st.Success.Text)
	assert.Eventually(t, func() bool { return ch.Current().Success == nil }, time.Second, 5*time.Millisecond)
}

func TestOnlyLatestVisible(t *testing.T) {
	ch := New(time.Second, time.Second, nil)
	ch.NotifyError("a")
	ch.NotifyError("b")
	assert.Equal(t, "b", ch.Current().Error.Text)
	ch.Clear(KindError)
	assert.Nil(t, ch.Current().Error)
}

func TestOnChangeAndClose(t *testing.T) {
	var calls atomic.Int32
	ch := New(10*time.Millisecond, 10*time.Millisecond, func() { calls.Add(1) })
	ch.NotifySuccess("x")
	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	ch.Close()
	ch.NotifyError("dropped")
	assert.Nil(t, ch.Current().Error)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDefaults(t *testing.T) {
	ch := New(0, 0, nil)
	assert.Equal(t, DefaultSuccessTTL, ch.ttl[KindSuccess])
	assert.Equal(t, DefaultErrorTTL, ch.ttl[KindError])
}
