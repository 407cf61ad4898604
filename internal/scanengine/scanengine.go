// Package scanengine drives recurring scheduled port scans and computes
// diffs between consecutive runs, per spec §4.8.
package scanengine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rcourtman/netpulse/internal/ioruntime"
	"github.com/rcourtman/netpulse/internal/models"
	"github.com/rcourtman/netpulse/internal/probe/tcpscan"
)

// Callbacks lets a caller observe completed scans and diffs.
type Callbacks struct {
	OnScanComplete func(models.ScheduledScanConfig, []models.PortScanResult)
	OnDiff         func(models.PortScanDiff)
}

// scheduledItem tracks one schedule's timer and last result set.
type scheduledItem struct {
	config      models.ScheduledScanConfig
	cancel      ioruntime.Cancellation
	lastResults []models.PortScanResult
	active      bool
}

// Engine runs the shared port scanner against every enabled schedule.
type Engine struct {
	rt      *ioruntime.Runtime
	scanner *tcpscan.Scanner

	mu    sync.Mutex
	items map[int64]*scheduledItem
}

func New(rt *ioruntime.Runtime, scanner *tcpscan.Scanner) *Engine {
	return &Engine{rt: rt, scanner: scanner, items: make(map[int64]*scheduledItem)}
}

// Start installs timers for every enabled schedule.
func (e *Engine) Start(schedules []models.ScheduledScanConfig, cb Callbacks) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, cfg := range schedules {
		if !cfg.Enabled {
			continue
		}
		item := &scheduledItem{config: cfg, active: true}
		e.items[cfg.ID] = item
		e.scheduleNext(item, cb)
	}
}

// Stop cancels every schedule's timer.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, item := range e.items {
		item.active = false
		if item.cancel != nil {
			item.cancel()
		}
		delete(e.items, id)
	}
}

func (e *Engine) scheduleNext(item *scheduledItem, cb Callbacks) {
	interval := time.Duration(item.config.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	item.cancel = e.rt.ScheduleAfter(interval, func() {
		e.fire(item, cb)
	})
}

func (e *Engine) fire(item *scheduledItem, cb Callbacks) {
	e.mu.Lock()
	if !item.active {
		e.mu.Unlock()
		return
	}
	if e.scanner.Scanning() {
		// Skip this tick; the shared scanner is busy with another scan.
		e.scheduleNext(item, cb)
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	err := e.scanner.ScanAsync(context.Background(), tcpscan.Config{
		TargetAddress:  item.config.TargetAddress,
		PortRange:      item.config.PortRange,
		CustomPorts:    item.config.CustomPorts,
		MaxConcurrency: 100,
		Timeout:        2 * time.Second,
	}, tcpscan.Callbacks{
		OnComplete: func(results []models.PortScanResult) {
			e.onComplete(item, results, cb)
		},
	})
	if err != nil {
		e.mu.Lock()
		if item.active {
			e.scheduleNext(item, cb)
		}
		e.mu.Unlock()
	}
}

func (e *Engine) onComplete(item *scheduledItem, results []models.PortScanResult, cb Callbacks) {
	now := time.Now()

	e.mu.Lock()
	item.config.LastRunAt = &now
	previous := item.lastResults
	item.lastResults = results
	active := item.active
	e.mu.Unlock()

	if cb.OnScanComplete != nil {
		cb.OnScanComplete(item.config, results)
	}

	if previous != nil {
		diff := computeDiff(item.config.TargetAddress, previous, results)
		if len(diff.Changes) > 0 && cb.OnDiff != nil {
			cb.OnDiff(diff)
		}
	}

	if active {
		e.mu.Lock()
		e.scheduleNext(item, cb)
		e.mu.Unlock()
	}
}

// computeDiff implements spec §4.8's diff algorithm exactly: build two
// port->state maps, classify every port present in either scan, sort
// changes by ascending port, and sum open-port counts on each side.
func computeDiff(target string, previous, current []models.PortScanResult) models.PortScanDiff {
	prevByPort := make(map[int]models.PortScanResult, len(previous))
	for _, r := range previous {
		prevByPort[r.Port] = r
	}
	currByPort := make(map[int]models.PortScanResult, len(current))
	for _, r := range current {
		currByPort[r.Port] = r
	}

	var changes []models.PortChange
	for port, curr := range currByPort {
		prev, existed := prevByPort[port]
		switch {
		case !existed:
			if curr.State == models.PortStateOpen {
				changes = append(changes, models.PortChange{
					Port: port, ChangeType: models.ChangeNewOpen,
					PreviousState: models.PortStateUnknown, CurrentState: curr.State,
					ServiceName: curr.ServiceName,
				})
			}
		case prev.State != curr.State:
			changeType := models.ChangeStateChanged
			switch {
			case curr.State == models.PortStateOpen && prev.State != models.PortStateOpen:
				changeType = models.ChangeNewOpen
			case prev.State == models.PortStateOpen && curr.State != models.PortStateOpen:
				changeType = models.ChangeNewClosed
			}
			changes = append(changes, models.PortChange{
				Port: port, ChangeType: changeType,
				PreviousState: prev.State, CurrentState: curr.State,
				ServiceName: curr.ServiceName,
			})
		}
	}
	for port, prev := range prevByPort {
		if _, stillPresent := currByPort[port]; stillPresent {
			continue
		}
		if prev.State == models.PortStateOpen {
			changes = append(changes, models.PortChange{
				Port: port, ChangeType: models.ChangeNewClosed,
				PreviousState: models.PortStateOpen, CurrentState: models.PortStateUnknown,
				ServiceName: prev.ServiceName,
			})
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Port < changes[j].Port })

	var openBefore, openAfter int
	for _, r := range previous {
		if r.State == models.PortStateOpen {
			openBefore++
		}
	}
	for _, r := range current {
		if r.State == models.PortStateOpen {
			openAfter++
		}
	}

	var prevTime, currTime time.Time
	if len(previous) > 0 {
		prevTime = previous[0].ScanTimestamp
	}
	if len(current) > 0 {
		currTime = current[0].ScanTimestamp
	}

	return models.PortScanDiff{
		TargetAddress:     target,
		PreviousScanTime:  prevTime,
		CurrentScanTime:   currTime,
		Changes:           changes,
		TotalPortsScanned: len(current),
		OpenPortsBefore:   openBefore,
		OpenPortsAfter:    openAfter,
	}
}
