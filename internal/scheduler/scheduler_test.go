package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rcourtman/netpulse/internal/ioruntime"
	"github.com/rcourtman/netpulse/internal/models"
	"github.com/stretchr/testify/require"
)

func TestStartMonitoringFiresAndReschedules(t *testing.T) {
	rt := ioruntime.New(2)
	defer rt.Stop()
	s := New(rt)

	var fired atomic.Int32
	var lastHostID atomic.Int64
	s.StartMonitoring(models.Host{ID: 7, Address: "127.0.0.1", PingIntervalSeconds: 1}, func(r *models.PingResult) {
		fired.Add(1)
		lastHostID.Store(r.HostID)
	})

	require.Eventually(t, func() bool { return fired.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)
	require.Equal(t, int64(7), lastHostID.Load())

	s.StopMonitoring(7)
}

func TestStopMonitoringPreventsFurtherFires(t *testing.T) {
	rt := ioruntime.New(2)
	defer rt.Stop()
	s := New(rt)

	var fired atomic.Int32
	s.StartMonitoring(models.Host{ID: 1, Address: "127.0.0.1", PingIntervalSeconds: 1}, func(*models.PingResult) {
		fired.Add(1)
	})
	require.Eventually(t, func() bool { return fired.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	s.StopMonitoring(1)
	countAtStop := fired.Load()
	time.Sleep(1500 * time.Millisecond)
	require.Equal(t, countAtStop, fired.Load())
}

func TestStartMonitoringReplacesExistingEntry(t *testing.T) {
	rt := ioruntime.New(2)
	defer rt.Stop()
	s := New(rt)

	s.StartMonitoring(models.Host{ID: 1, Address: "127.0.0.1", PingIntervalSeconds: 1}, func(*models.PingResult) {})
	require.Len(t, s.hosts, 1)

	s.StartMonitoring(models.Host{ID: 1, Address: "127.0.0.1", PingIntervalSeconds: 1}, func(*models.PingResult) {})
	require.Len(t, s.hosts, 1)

	s.StopAll()
	require.Len(t, s.hosts, 0)
}
