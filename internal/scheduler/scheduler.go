// Package scheduler drives the recurring ICMP probe loop, one timer per
// monitored host, per spec §4.7.
package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rcourtman/netpulse/internal/ioruntime"
	"github.com/rcourtman/netpulse/internal/models"
	"github.com/rcourtman/netpulse/internal/probe/icmp"
)

// maxPingTimeout caps the ICMP receive timeout regardless of a host's
// configured interval (spec §4.7's "5s upper bound on receive timeout").
const maxPingTimeout = 5 * time.Second

// Callback is invoked once per completed probe with the result already
// stamped with HostID. It runs on a runtime worker and must not block.
type Callback func(*models.PingResult)

// monitoredHost tracks one host's timer and liveness flag.
type monitoredHost struct {
	host   models.Host
	cancel ioruntime.Cancellation
	active atomic.Bool
}

// Scheduler maintains one timer per monitored host.
type Scheduler struct {
	rt     *ioruntime.Runtime
	prober *icmp.Prober

	mu    sync.Mutex
	hosts map[int64]*monitoredHost
}

func New(rt *ioruntime.Runtime) *Scheduler {
	return &Scheduler{
		rt:     rt,
		prober: icmp.New(),
		hosts:  make(map[int64]*monitoredHost),
	}
}

// StartMonitoring cancels any existing timer for host.ID, installs a new
// entry, and schedules the first ping after host.PingIntervalSeconds.
func (s *Scheduler) StartMonitoring(host models.Host, cb Callback) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.hosts[host.ID]; ok {
		existing.active.Store(false)
		if existing.cancel != nil {
			existing.cancel()
		}
	}

	mh := &monitoredHost{host: host}
	mh.active.Store(true)
	s.hosts[host.ID] = mh
	s.scheduleNext(mh, cb)
}

// StopMonitoring clears the active flag and cancels the host's timer.
func (s *Scheduler) StopMonitoring(hostID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mh, ok := s.hosts[hostID]
	if !ok {
		return
	}
	mh.active.Store(false)
	if mh.cancel != nil {
		mh.cancel()
	}
	delete(s.hosts, hostID)
}

// StopAll cancels every monitored host's timer.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, mh := range s.hosts {
		mh.active.Store(false)
		if mh.cancel != nil {
			mh.cancel()
		}
		delete(s.hosts, id)
	}
}

func (s *Scheduler) scheduleNext(mh *monitoredHost, cb Callback) {
	interval := time.Duration(mh.host.PingIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	mh.cancel = s.rt.ScheduleAfter(interval, func() {
		s.fire(mh, cb)
	})
}

func (s *Scheduler) fire(mh *monitoredHost, cb Callback) {
	if !mh.active.Load() {
		return
	}

	timeout := time.Duration(mh.host.PingIntervalSeconds) * time.Second
	if timeout <= 0 || timeout > maxPingTimeout {
		timeout = maxPingTimeout
	}

	result := s.prober.Ping(mh.host.Address, timeout)
	result.HostID = mh.host.ID
	if cb != nil {
		cb(result)
	}

	if mh.active.Load() {
		s.scheduleNext(mh, cb)
	}
}
