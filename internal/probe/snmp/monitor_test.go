package snmp

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/rcourtman/netpulse/internal/ioruntime"
	"github.com/rcourtman/netpulse/internal/models"
	"github.com/stretchr/testify/require"
)

func TestMonitorPollsAndReschedules(t *testing.T) {
	addr, stop := startFakeAgent(t, []varbindFixture{
		{oid: "1.3.6.1.2.1.1.1.0", tag: tagOctetStr, value: []byte("device-a")},
	})
	defer stop()

	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port)
	require.NoError(t, err)

	rt := ioruntime.New(2)
	defer rt.Stop()
	monitor := NewMonitor(rt)

	results := make(chan *models.SnmpResult, 4)
	monitor.StartMonitoring(
		models.Host{ID: 1, Address: host},
		models.SnmpDeviceConfig{
			Version:             models.SnmpV2c,
			Credentials:         models.SnmpCredentials{Community: "public"},
			Port:                portNum,
			TimeoutMs:           1000,
			PollIntervalSeconds: 1,
			OIDs:                []string{"1.3.6.1.2.1.1.1.0"},
		},
		func(r *models.SnmpResult) { results <- r },
	)

	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			require.True(t, r.Success, r.ErrorMessage)
			require.Equal(t, int64(1), r.HostID)
		case <-time.After(3 * time.Second):
			t.Fatalf("poll %d did not fire", i)
		}
	}

	monitor.StopAllMonitoring()
}
