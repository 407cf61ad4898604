package tcpscan

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rcourtman/netpulse/internal/models"
	"github.com/stretchr/testify/require"
)

func TestResolvePortsRanges(t *testing.T) {
	require.Len(t, ResolvePorts(models.PortRangeWeb, nil), len(webPorts))
	require.Len(t, ResolvePorts(models.PortRangeDatabase, nil), len(databasePorts))
	require.Len(t, ResolvePorts(models.PortRangeAll, nil), 65535)
	require.Equal(t, []int{1, 2, 3}, ResolvePorts(models.PortRangeCustom, []int{1, 2, 3}))
}

func TestScanDetectsOpenPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	s := New()
	done := make(chan []models.PortScanResult, 1)
	err = s.ScanAsync(context.Background(), Config{
		TargetAddress: "127.0.0.1", PortRange: models.PortRangeCustom,
		CustomPorts: []int{addr.Port}, MaxConcurrency: 4, Timeout: time.Second,
	}, Callbacks{OnComplete: func(r []models.PortScanResult) { done <- r }})
	require.NoError(t, err)

	select {
	case results := <-done:
		require.Len(t, results, 1)
		require.Equal(t, models.PortStateOpen, results[0].State)
	case <-time.After(5 * time.Second):
		t.Fatal("scan did not complete")
	}
}

func TestScanRejectsConcurrentCalls(t *testing.T) {
	s := New()
	done := make(chan struct{})
	err := s.ScanAsync(context.Background(), Config{
		TargetAddress: "127.0.0.1", PortRange: models.PortRangeCustom,
		CustomPorts: []int{1}, MaxConcurrency: 1, Timeout: 50 * time.Millisecond,
	}, Callbacks{OnComplete: func([]models.PortScanResult) { close(done) }})
	require.NoError(t, err)

	err = s.ScanAsync(context.Background(), Config{TargetAddress: "x", PortRange: models.PortRangeCustom, CustomPorts: []int{1}}, Callbacks{})
	require.ErrorIs(t, err, errAlreadyScanning)

	<-done
}
