package wshub

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestHubSendsInitialStateThenBroadcasts(t *testing.T) {
	hub := NewHub(func() any {
		return map[string]any{"hosts": 3}
	})
	go hub.Run()
	defer hub.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var initial Message
	require.NoError(t, conn.ReadJSON(&initial))
	require.Equal(t, "initialState", initial.Type)

	hub.BroadcastAlert(map[string]any{"severity": "critical"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "alert", msg.Type)
}

func TestSanitizeReplacesNaNAndInfWithZero(t *testing.T) {
	data := map[string]any{
		"latency": 0.0 / zero(),
		"normal":  42.5,
		"nested": map[string]any{
			"loss": 1.0 / zero(),
		},
	}

	sanitized := sanitize(data).(map[string]any)
	require.Equal(t, 0.0, sanitized["latency"])
	require.Equal(t, 42.5, sanitized["normal"])
	require.Equal(t, 0.0, sanitized["nested"].(map[string]any)["loss"])
}

// zero avoids a compile-time division-by-zero constant error while still
// producing NaN/Inf at runtime.
func zero() float64 { return 0 }
