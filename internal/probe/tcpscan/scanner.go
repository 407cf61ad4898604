// Package tcpscan implements the bounded-concurrency TCP connect-scan
// described in spec §4.5.
package tcpscan

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rcourtman/netpulse/internal/models"
	"golang.org/x/sync/semaphore"
)

// Config parameterizes one scan.
type Config struct {
	TargetAddress  string
	PortRange      models.PortRange
	CustomPorts    []int
	MaxConcurrency int64
	Timeout        time.Duration
}

// Progress is reported periodically while a scan runs.
type Progress struct {
	PortsScanned int
	TotalPorts   int
}

// Callbacks lets a caller observe a scan as it runs.
type Callbacks struct {
	OnOpenPort func(models.PortScanResult)
	OnProgress func(Progress)
	OnComplete func([]models.PortScanResult)
}

// Scanner runs one scan at a time; a second ScanAsync call while a scan is
// in flight is rejected.
type Scanner struct {
	mu       sync.Mutex
	results  []models.PortScanResult
	scanning atomic.Bool
	cancel   atomic.Bool
}

func New() *Scanner {
	return &Scanner{}
}

var errAlreadyScanning = errors.New("a scan is already in progress")

// ScanAsync starts a scan in a new goroutine and returns immediately.
// Callbacks fire from that goroutine.
func (s *Scanner) ScanAsync(ctx context.Context, cfg Config, cb Callbacks) error {
	if !s.scanning.CompareAndSwap(false, true) {
		return errAlreadyScanning
	}
	s.cancel.Store(false)
	s.mu.Lock()
	s.results = nil
	s.mu.Unlock()

	go func() {
		defer s.scanning.Store(false)
		results := s.scan(ctx, cfg, cb)
		if cb.OnComplete != nil {
			cb.OnComplete(results)
		}
	}()
	return nil
}

// Scanning reports whether a scan is currently in flight.
func (s *Scanner) Scanning() bool { return s.scanning.Load() }

// Cancel requests best-effort cancellation; it never blocks the caller.
func (s *Scanner) Cancel() { s.cancel.Store(true) }

func (s *Scanner) scan(ctx context.Context, cfg Config, cb Callbacks) []models.PortScanResult {
	ports := ResolvePorts(cfg.PortRange, cfg.CustomPorts)
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 100
	}
	sem := semaphore.NewWeighted(maxConcurrency)

	var wg sync.WaitGroup
	var scanned atomic.Int64

	for _, port := range ports {
		if s.cancel.Load() {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			defer sem.Release(1)

			result := s.probePort(cfg.TargetAddress, port, cfg.Timeout)
			s.mu.Lock()
			s.results = append(s.results, result)
			s.mu.Unlock()

			if result.State == models.PortStateOpen && cb.OnOpenPort != nil {
				cb.OnOpenPort(result)
			}
			done := scanned.Add(1)
			if cb.OnProgress != nil {
				cb.OnProgress(Progress{PortsScanned: int(done), TotalPorts: len(ports)})
			}
		}(port)
	}
	wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]models.PortScanResult(nil), s.results...)
	sort.Slice(out, func(i, j int) bool { return out[i].Port < out[j].Port })
	return out
}

// probePort races a connect attempt against a timer: whichever completes
// first wins (spec §4.5).
func (s *Scanner) probePort(address string, port int, timeout time.Duration) models.PortScanResult {
	result := models.PortScanResult{
		TargetAddress: address,
		Port:          port,
		State:         models.PortStateUnknown,
		ScanTimestamp: time.Now(),
	}

	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", address, port), timeout)
	if err != nil {
		if isRefused(err) {
			result.State = models.PortStateClosed
		} else {
			result.State = models.PortStateFiltered
		}
		return result
	}
	conn.Close()
	result.State = models.PortStateOpen
	result.ServiceName = serviceNameFor(port)
	return result
}

func isRefused(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return !opErr.Timeout()
	}
	return false
}
