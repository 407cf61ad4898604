package ioruntime

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPostRunsTask(t *testing.T) {
	rt := New(2)
	defer rt.Stop()

	var ran atomic.Bool
	done := make(chan struct{})
	rt.Post(func() {
		ran.Store(true)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run in time")
	}
	require.True(t, ran.Load())
}

func TestScheduleAfterCancel(t *testing.T) {
	rt := New(2)
	defer rt.Stop()

	var fired atomic.Bool
	cancel := rt.ScheduleAfter(50*time.Millisecond, func() { fired.Store(true) })
	cancel()

	time.Sleep(100 * time.Millisecond)
	require.False(t, fired.Load())
}

func TestScheduleAfterFires(t *testing.T) {
	rt := New(2)
	defer rt.Stop()

	done := make(chan struct{})
	rt.ScheduleAfter(10*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	rt := New(1)
	rt.Stop()
	require.NotPanics(t, func() { rt.Stop() })
}
