package scanengine

import (
	"testing"
	"time"

	"github.com/rcourtman/netpulse/internal/models"
	"github.com/stretchr/testify/require"
)

func result(port int, state models.PortState) models.PortScanResult {
	return models.PortScanResult{Port: port, State: state, ScanTimestamp: time.Now()}
}

// S3: previous {22:Open, 80:Closed, 443:Filtered}, current {22:Closed,
// 80:Open, 443:Open} -> three changes sorted by port:
// {22: NewClosed, 80: NewOpen, 443: NewOpen}; openPortsBefore=1, openPortsAfter=2.
func TestComputeDiffScenarioS3(t *testing.T) {
	previous := []models.PortScanResult{
		result(22, models.PortStateOpen),
		result(80, models.PortStateClosed),
		result(443, models.PortStateFiltered),
	}
	current := []models.PortScanResult{
		result(22, models.PortStateClosed),
		result(80, models.PortStateOpen),
		result(443, models.PortStateOpen),
	}

	diff := computeDiff("10.0.0.1", previous, current)

	require.Len(t, diff.Changes, 3)
	require.Equal(t, 22, diff.Changes[0].Port)
	require.Equal(t, models.ChangeNewClosed, diff.Changes[0].ChangeType)
	require.Equal(t, 80, diff.Changes[1].Port)
	require.Equal(t, models.ChangeNewOpen, diff.Changes[1].ChangeType)
	require.Equal(t, 443, diff.Changes[2].Port)
	require.Equal(t, models.ChangeNewOpen, diff.Changes[2].ChangeType)
	require.Equal(t, 1, diff.OpenPortsBefore)
	require.Equal(t, 2, diff.OpenPortsAfter)
}

func TestComputeDiffNewPortAppearsAsNewOpen(t *testing.T) {
	previous := []models.PortScanResult{result(22, models.PortStateOpen)}
	current := []models.PortScanResult{
		result(22, models.PortStateOpen),
		result(8080, models.PortStateOpen),
	}
	diff := computeDiff("10.0.0.1", previous, current)
	require.Len(t, diff.Changes, 1)
	require.Equal(t, 8080, diff.Changes[0].Port)
	require.Equal(t, models.ChangeNewOpen, diff.Changes[0].ChangeType)
}

func TestComputeDiffPortDisappearsWhileClosedProducesNoChange(t *testing.T) {
	previous := []models.PortScanResult{result(22, models.PortStateClosed)}
	current := []models.PortScanResult{}
	diff := computeDiff("10.0.0.1", previous, current)
	require.Empty(t, diff.Changes)
}

func TestComputeDiffNoChangesWhenStatesIdentical(t *testing.T) {
	previous := []models.PortScanResult{result(22, models.PortStateOpen)}
	current := []models.PortScanResult{result(22, models.PortStateOpen)}
	diff := computeDiff("10.0.0.1", previous, current)
	require.Empty(t, diff.Changes)
}
