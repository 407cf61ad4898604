package retention

import (
	"context"
	"testing"
	"time"

	"github.com/rcourtman/netpulse/internal/ioruntime"
	"github.com/rcourtman/netpulse/internal/models"
	"github.com/rcourtman/netpulse/internal/repositories"
	"github.com/rcourtman/netpulse/internal/storage"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open("file:" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStartRemovesAgedRowsOnFirstPass(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	hosts := repositories.NewHostRepository(db)
	metrics := repositories.NewMetricsRepository(db)
	snmp := repositories.NewSnmpRepository(db)
	scans := repositories.NewScanRepository(db)

	hostID, err := hosts.Insert(ctx, &models.Host{Name: "h", Address: "10.0.0.1", PingIntervalSeconds: 30, CreatedAt: time.Now()})
	require.NoError(t, err)

	old := time.Now().Add(-100 * 24 * time.Hour)
	_, err = metrics.InsertPingResult(ctx, &models.PingResult{HostID: hostID, Timestamp: old, LatencyUs: 1000, Success: true})
	require.NoError(t, err)
	require.NoError(t, metrics.InsertAlert(ctx, &models.Alert{ID: "old-alert", HostID: hostID, Type: models.AlertTypeHostDown, Severity: models.SeverityCritical, Title: "t", Message: "m", Timestamp: old}))

	rt := ioruntime.New(1)
	defer rt.Stop()

	sched := New(rt, metrics, snmp, scans, nil, 30, false)
	sched.Start(ctx)

	stats, err := metrics.GetStatistics(ctx, hostID, 100)
	require.NoError(t, err)
	require.Equal(t, 0, stats.TotalPings)

	unacked, err := metrics.GetUnacknowledgedAlerts(ctx)
	require.NoError(t, err)
	require.Empty(t, unacked)
}

func TestStartWithoutAutoCleanupDoesNotInstallTimer(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	metrics := repositories.NewMetricsRepository(db)
	snmp := repositories.NewSnmpRepository(db)
	scans := repositories.NewScanRepository(db)

	rt := ioruntime.New(1)
	defer rt.Stop()

	sched := New(rt, metrics, snmp, scans, nil, 30, false)
	sched.Start(ctx)
	require.Nil(t, sched.cancel)
}
