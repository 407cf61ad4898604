// Package retention periodically deletes aged rows across every
// time-series table, per spec §4.13.
package retention

import (
	"context"
	"time"

	"github.com/rcourtman/netpulse/internal/ioruntime"
)

// Cleaner runs one retention pass. Each method deletes rows older than
// maxAge and returns the number of rows removed.
type Cleaner interface {
	CleanupPingResultsOlderThan(ctx context.Context, maxAge time.Duration) (int64, error)
	CleanupAlertsOlderThan(ctx context.Context, maxAge time.Duration) (int64, error)
	CleanupPortScanResultsOlderThan(ctx context.Context, maxAge time.Duration) (int64, error)
}

// SnmpCleaner deletes aged SNMP results (with cascaded varbind rows).
type SnmpCleaner interface {
	CleanupResultsOlderThan(ctx context.Context, maxAge time.Duration) (int64, error)
}

// DiffCleaner deletes aged port-scan diffs (with cascaded change rows).
type DiffCleaner interface {
	CleanupPortScanDiffsOlderThan(ctx context.Context, maxAge time.Duration) (int64, error)
}

// Logger is a minimal logging interface: notify.Logger's Error plus Info.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Scheduler runs a retention pass at startup and, when AutoCleanup is
// set, once every 24h thereafter.
type Scheduler struct {
	rt      *ioruntime.Runtime
	metrics Cleaner
	snmp    SnmpCleaner
	scans   DiffCleaner
	log     Logger

	retentionDays int
	autoCleanup   bool
	cancel        ioruntime.Cancellation
}

func New(rt *ioruntime.Runtime, metrics Cleaner, snmp SnmpCleaner, scans DiffCleaner, log Logger, retentionDays int, autoCleanup bool) *Scheduler {
	return &Scheduler{
		rt: rt, metrics: metrics, snmp: snmp, scans: scans, log: log,
		retentionDays: retentionDays, autoCleanup: autoCleanup,
	}
}

// Start runs one cleanup pass immediately, then installs a daily timer if
// autoCleanup is enabled.
func (s *Scheduler) Start(ctx context.Context) {
	s.runOnce(ctx)
	if s.autoCleanup {
		s.scheduleNext(ctx)
	}
}

// Stop cancels the daily timer, if one is installed.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Scheduler) scheduleNext(ctx context.Context) {
	s.cancel = s.rt.ScheduleAfter(24*time.Hour, func() {
		s.runOnce(ctx)
		s.scheduleNext(ctx)
	})
}

func (s *Scheduler) runOnce(ctx context.Context) {
	maxAge := time.Duration(s.retentionDays) * 24 * time.Hour

	type job struct {
		name string
		run  func() (int64, error)
	}
	jobs := []job{
		{"ping_results", func() (int64, error) { return s.metrics.CleanupPingResultsOlderThan(ctx, maxAge) }},
		{"alerts", func() (int64, error) { return s.metrics.CleanupAlertsOlderThan(ctx, maxAge) }},
		{"port_scan_results", func() (int64, error) { return s.metrics.CleanupPortScanResultsOlderThan(ctx, maxAge) }},
		{"snmp_results", func() (int64, error) { return s.snmp.CleanupResultsOlderThan(ctx, maxAge) }},
		{"port_scan_diffs", func() (int64, error) { return s.scans.CleanupPortScanDiffsOlderThan(ctx, maxAge) }},
	}

	for _, j := range jobs {
		n, err := j.run()
		if err != nil {
			if s.log != nil {
				s.log.Error("retention cleanup failed", "table", j.name, "error", err.Error())
			}
			continue
		}
		if n > 0 && s.log != nil {
			s.log.Info("retention cleanup removed rows", "table", j.name, "rows", n)
		}
	}
}
