package timer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerManager_Due(t *testing.T) {
	clock := quartz.NewMock(t)
	m := NewTimerManager(clock, time.Second)

	once := m.AddTimer(2*time.Second, 0, func() {})
	periodic := m.AddTimer(time.Second, 3*time.Second, func() {})
	require.Equal(t, 2, m.Len())

	assert.Empty(t, m.due())

	clock.Set(clock.Now().Add(time.Second))
	fired := m.due()
	require.Len(t, fired, 1)
	assert.Equal(t, periodic, fired[0].Id)

	clock.Set(clock.Now().Add(time.Second))
	fired = m.due()
	require.Len(t, fired, 1)
	assert.Equal(t, once, fired[0].Id)
	assert.Equal(t, 1, m.Len())

	clock.Set(clock.Now().Add(2 * time.Second))
	fired = m.due()
	require.Len(t, fired, 1)
	assert.Equal(t, periodic, fired[0].Id)
}

func TestTimerManager_Run(t *testing.T) {
	m := NewTimerManager(quartz.NewReal(), 5*time.Millisecond)
	var calls atomic.Int32
	m.AddTimer(0, 10*time.Millisecond, func() { calls.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
