package snmp

import (
	"sync"
	"time"

	"github.com/rcourtman/netpulse/internal/ioruntime"
	"github.com/rcourtman/netpulse/internal/models"
)

// Stats accumulates per-device poll statistics, per spec §4.6.
type Stats struct {
	TotalPolls       int
	SuccessfulPolls  int
	MinResponseUs    int64
	MaxResponseUs    int64
	AvgResponseUs    float64
	LastValues       map[string]string
}

// MonitoredDevice is one actively-polled SNMP target.
type MonitoredDevice struct {
	Host   models.Host
	Config models.SnmpDeviceConfig
	Stats  Stats
	cancel ioruntime.Cancellation
}

// Monitor schedules recurring SNMP polls, one per device, via the I/O
// Runtime's timer wheel, mirroring the ICMP scheduler's single-map design.
type Monitor struct {
	rt      *ioruntime.Runtime
	client  *Client
	mu      sync.Mutex
	devices map[int64]*MonitoredDevice
}

func NewMonitor(rt *ioruntime.Runtime) *Monitor {
	return &Monitor{
		rt:      rt,
		client:  NewClient(),
		devices: make(map[int64]*MonitoredDevice),
	}
}

// StartMonitoring installs (or replaces) polling for host under cfg.
// Replacing an existing device cancels its previous timer first.
func (m *Monitor) StartMonitoring(host models.Host, cfg models.SnmpDeviceConfig, callback func(*models.SnmpResult)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.devices[host.ID]; ok && existing.cancel != nil {
		existing.cancel()
	}

	device := &MonitoredDevice{
		Host:   host,
		Config: cfg,
		Stats:  Stats{LastValues: make(map[string]string)},
	}
	m.devices[host.ID] = device
	m.scheduleNext(device, callback)
}

// StopAllMonitoring cancels every device's timer.
func (m *Monitor) StopAllMonitoring() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, d := range m.devices {
		if d.cancel != nil {
			d.cancel()
		}
		delete(m.devices, id)
	}
}

func (m *Monitor) scheduleNext(device *MonitoredDevice, callback func(*models.SnmpResult)) {
	interval := time.Duration(device.Config.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}
	device.cancel = m.rt.ScheduleAfter(interval, func() {
		m.poll(device, callback)
	})
}

func (m *Monitor) poll(device *MonitoredDevice, callback func(*models.SnmpResult)) {
	cfg := Config{
		Version: device.Config.Version,
		Creds:   device.Config.Credentials,
		Port:    device.Config.Port,
		Timeout: time.Duration(device.Config.TimeoutMs) * time.Millisecond,
		Retries: device.Config.Retries,
	}
	result := m.client.Get(device.Host.Address, device.Config.OIDs, cfg)
	result.HostID = device.Host.ID

	m.mu.Lock()
	device.Stats.TotalPolls++
	if result.Success {
		device.Stats.SuccessfulPolls++
		updateResponseStats(&device.Stats, result.ResponseTimeUs)
		for _, vb := range result.VarBinds {
			device.Stats.LastValues[vb.OID] = vb.Value
		}
	}
	stillMonitored := m.devices[device.Host.ID] == device
	m.mu.Unlock()

	if callback != nil {
		callback(result)
	}

	if stillMonitored {
		m.mu.Lock()
		m.scheduleNext(device, callback)
		m.mu.Unlock()
	}
}

func updateResponseStats(s *Stats, responseUs int64) {
	if s.SuccessfulPolls == 1 {
		s.MinResponseUs = responseUs
		s.MaxResponseUs = responseUs
		s.AvgResponseUs = float64(responseUs)
		return
	}
	if responseUs < s.MinResponseUs {
		s.MinResponseUs = responseUs
	}
	if responseUs > s.MaxResponseUs {
		s.MaxResponseUs = responseUs
	}
	n := float64(s.SuccessfulPolls)
	s.AvgResponseUs = s.AvgResponseUs + (float64(responseUs)-s.AvgResponseUs)/n
}
