package alerts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rcourtman/netpulse/internal/models"
	"github.com/stretchr/testify/require"
)

func newTestEngine(thresholds models.AlertThresholds) (*Engine, *[]*models.Alert) {
	var persisted []*models.Alert
	var mu sync.Mutex
	persist := func(_ context.Context, a *models.Alert) error {
		mu.Lock()
		defer mu.Unlock()
		persisted = append(persisted, a)
		return nil
	}
	return New(thresholds, persist, nil), &persisted
}

// S4: with consecutiveFailuresForDown=3, feed [fail, fail, fail, success].
// Expected: one HostDown/Critical on the third fail, one HostRecovered/Info
// on the success, no further alerts. Latency thresholds are the config
// defaults, so the 0 µs success is not a high-latency sample.
func TestAlertStateMachineScenarioS4(t *testing.T) {
	engine, persisted := newTestEngine(models.AlertThresholds{LatencyWarningMs: 150, LatencyCriticalMs: 500, ConsecutiveFailuresForDown: 3})
	host := models.Host{ID: 1, Name: "router"}

	outcomes := []bool{false, false, false, true}
	var allEmitted []*models.Alert
	for _, success := range outcomes {
		emitted, err := engine.Evaluate(context.Background(), host, &models.PingResult{Success: success})
		require.NoError(t, err)
		allEmitted = append(allEmitted, emitted...)
	}

	require.Len(t, allEmitted, 2)
	require.Equal(t, models.AlertTypeHostDown, allEmitted[0].Type)
	require.Equal(t, models.SeverityCritical, allEmitted[0].Severity)
	require.Equal(t, models.AlertTypeHostRecovered, allEmitted[1].Type)
	require.Equal(t, models.SeverityInfo, allEmitted[1].Severity)
	require.Len(t, *persisted, 2)
}

func TestAlertEngineEmitsCriticalHighLatency(t *testing.T) {
	engine, _ := newTestEngine(models.AlertThresholds{
		LatencyWarningMs:           100,
		LatencyCriticalMs:          500,
		ConsecutiveFailuresForDown: 3,
	})
	host := models.Host{ID: 2, Name: "db"}

	emitted, err := engine.Evaluate(context.Background(), host, &models.PingResult{Success: true, LatencyUs: 600_000})
	require.NoError(t, err)
	require.Len(t, emitted, 1)
	require.Equal(t, models.AlertTypeHighLatency, emitted[0].Type)
	require.Equal(t, models.SeverityCritical, emitted[0].Severity)
}

func TestAlertEngineDoesNotReemitHostDownWhileStillDown(t *testing.T) {
	engine, persisted := newTestEngine(models.AlertThresholds{ConsecutiveFailuresForDown: 2})
	host := models.Host{ID: 3, Name: "switch"}

	for i := 0; i < 5; i++ {
		_, err := engine.Evaluate(context.Background(), host, &models.PingResult{Success: false})
		require.NoError(t, err)
	}
	require.Len(t, *persisted, 1)
	require.Equal(t, models.AlertTypeHostDown, (*persisted)[0].Type)
}

func TestAlertEngineNotifiesSubscribersWithClones(t *testing.T) {
	engine, _ := newTestEngine(models.AlertThresholds{ConsecutiveFailuresForDown: 1})
	host := models.Host{ID: 4, Name: "ap"}

	received := make(chan *models.Alert, 1)
	engine.Subscribe(func(a *models.Alert) { received <- a })

	_, err := engine.Evaluate(context.Background(), host, &models.PingResult{Success: false})
	require.NoError(t, err)

	select {
	case a := <-received:
		require.Equal(t, models.AlertTypeHostDown, a.Type)
	case <-time.After(time.Second):
		t.Fatal("subscriber never notified")
	}
}
