package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/rcourtman/netpulse/internal/models"
	"github.com/rcourtman/netpulse/internal/storage"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open("file:" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func insertHost(t *testing.T, repo *HostRepository, address string) int64 {
	t.Helper()
	id, err := repo.Insert(context.Background(), &models.Host{
		Name: address, Address: address, PingIntervalSeconds: 60, CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	return id
}

// S6: latencies {10000, 20000, 30000, failed, 40000} over a 5-sample window.
func TestStatisticsScenarioS6(t *testing.T) {
	db := newTestDB(t)
	hosts := NewHostRepository(db)
	metrics := NewMetricsRepository(db)
	ctx := context.Background()

	hostID := insertHost(t, hosts, "10.0.0.1")
	latencies := []int64{10000, 20000, 30000, 0, 40000}
	for i, lat := range latencies {
		success := lat != 0
		_, err := metrics.InsertPingResult(ctx, &models.PingResult{
			HostID: hostID, Timestamp: time.Now().Add(time.Duration(i) * time.Second),
			LatencyUs: lat, Success: success,
		})
		require.NoError(t, err)
	}

	stats, err := metrics.GetStatistics(ctx, hostID, 5)
	require.NoError(t, err)
	require.Equal(t, 5, stats.TotalPings)
	require.Equal(t, 4, stats.SuccessfulPings)
	require.Equal(t, int64(10000), stats.MinLatencyUs)
	require.Equal(t, int64(40000), stats.MaxLatencyUs)
	require.InDelta(t, 25000, stats.AvgLatencyUs, 0.001)
	require.InDelta(t, 20.0, stats.PacketLossPercent, 0.001)
	require.InDelta(t, 10000, stats.JitterUs, 0.001)
}

func TestStatisticsJitterZeroWithFewerThanTwoSuccesses(t *testing.T) {
	db := newTestDB(t)
	hosts := NewHostRepository(db)
	metrics := NewMetricsRepository(db)
	ctx := context.Background()

	hostID := insertHost(t, hosts, "10.0.0.2")
	_, err := metrics.InsertPingResult(ctx, &models.PingResult{HostID: hostID, Timestamp: time.Now(), LatencyUs: 5000, Success: true})
	require.NoError(t, err)

	stats, err := metrics.GetStatistics(ctx, hostID, 5)
	require.NoError(t, err)
	require.Zero(t, stats.JitterUs)
}

// S2: four alerts, filter by {severity:Critical, acknowledged:false}.
func TestAlertFilterScenarioS2(t *testing.T) {
	db := newTestDB(t)
	metrics := NewMetricsRepository(db)
	ctx := context.Background()

	type seed struct {
		severity     models.AlertSeverity
		title        string
		acknowledged bool
	}
	seeds := []seed{
		{models.SeverityCritical, "Host Down", false},
		{models.SeverityWarning, "High Latency", false},
		{models.SeverityInfo, "Host Recovered", true},
		{models.SeverityCritical, "Packet Loss", false},
	}
	for i, s := range seeds {
		err := metrics.InsertAlert(ctx, &models.Alert{
			ID: "alert-" + s.title, HostID: 1, Type: models.AlertTypeHostDown,
			Severity: s.severity, Title: s.title, Message: "msg",
			Timestamp: time.Now().Add(time.Duration(i) * time.Second), Acknowledged: s.acknowledged,
		})
		require.NoError(t, err)
	}

	sev := models.SeverityCritical
	ack := false
	filtered, err := metrics.GetAlertsFiltered(ctx, models.AlertFilter{Severity: &sev, Acknowledged: &ack}, 100)
	require.NoError(t, err)
	require.Len(t, filtered, 2)

	titles := map[string]bool{}
	for _, a := range filtered {
		titles[a.Title] = true
	}
	require.True(t, titles["Host Down"])
	require.True(t, titles["Packet Loss"])
}

func TestAlertFilterSearchTextIsCaseInsensitive(t *testing.T) {
	db := newTestDB(t)
	metrics := NewMetricsRepository(db)
	ctx := context.Background()

	require.NoError(t, metrics.InsertAlert(ctx, &models.Alert{
		ID: "a1", HostID: 1, Type: models.AlertTypeHostDown, Severity: models.SeverityCritical,
		Title: "Host Down", Message: "unreachable", Timestamp: time.Now(),
	}))

	filtered, err := metrics.GetAlertsFiltered(ctx, models.AlertFilter{SearchText: "UNREACH"}, 10)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
}

func TestAcknowledgeAllClearsUnacknowledged(t *testing.T) {
	db := newTestDB(t)
	metrics := NewMetricsRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, metrics.InsertAlert(ctx, &models.Alert{
			ID: "a" + string(rune('0'+i)), HostID: 1, Type: models.AlertTypeHostDown,
			Severity: models.SeverityCritical, Title: "t", Message: "m", Timestamp: time.Now(),
		}))
	}
	n, err := metrics.AcknowledgeAll(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	unacked, err := metrics.GetUnacknowledgedAlerts(ctx)
	require.NoError(t, err)
	require.Empty(t, unacked)
}

func TestExportToCSVHeader(t *testing.T) {
	db := newTestDB(t)
	hosts := NewHostRepository(db)
	metrics := NewMetricsRepository(db)
	ctx := context.Background()

	hostID := insertHost(t, hosts, "10.0.0.3")
	_, err := metrics.InsertPingResult(ctx, &models.PingResult{HostID: hostID, Timestamp: time.Now(), LatencyUs: 1000, Success: true})
	require.NoError(t, err)

	csv, err := metrics.ExportToCSV(ctx, hostID, 10)
	require.NoError(t, err)
	require.Contains(t, string(csv), "timestamp,latency_ms,success,ttl")
}
