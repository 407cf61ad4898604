package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rcourtman/netpulse/internal/models"
	"github.com/stretchr/testify/require"
)

type testLogger struct{ calls atomic.Int32 }

func (l *testLogger) Error(string, ...any) { l.calls.Add(1) }

func TestDispatchSendsJSONPayloadToEnabledEndpoints(t *testing.T) {
	var received payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	endpoints := []*models.WebhookEndpoint{{ID: 1, URL: srv.URL, Enabled: true}}
	log := &testLogger{}
	d := NewDispatcher(func(context.Context) ([]*models.WebhookEndpoint, error) { return endpoints, nil }, log)

	alert := &models.Alert{ID: "01ALERT", HostID: 5, Type: models.AlertTypeHostDown, Severity: models.SeverityCritical, Title: "Host down", Message: "m", Timestamp: time.Now()}
	d.Dispatch(context.Background(), alert, "router")
	d.Wait()

	require.Equal(t, "01ALERT", received.ID)
	require.Equal(t, int64(5), received.HostID)
	require.Equal(t, "router", received.HostName)
	require.Equal(t, int32(0), log.calls.Load())
}

func TestDispatchSkipsDisabledEndpoints(t *testing.T) {
	var hit atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit.Store(true)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	endpoints := []*models.WebhookEndpoint{{ID: 1, URL: srv.URL, Enabled: false}}
	d := NewDispatcher(func(context.Context) ([]*models.WebhookEndpoint, error) { return endpoints, nil }, &testLogger{})
	d.Dispatch(context.Background(), &models.Alert{ID: "x"}, "host")
	d.Wait()

	require.False(t, hit.Load())
}

func TestDispatchRetriesOnNon2xxThenLogsFailure(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	endpoints := []*models.WebhookEndpoint{{ID: 1, URL: srv.URL, Enabled: true}}
	log := &testLogger{}
	d := NewDispatcher(func(context.Context) ([]*models.WebhookEndpoint, error) { return endpoints, nil }, log)
	d.Dispatch(context.Background(), &models.Alert{ID: "x"}, "host")
	d.Wait()

	require.Equal(t, int32(maxAttempts), attempts.Load())
	require.Equal(t, int32(1), log.calls.Load())
}

func TestDispatchSignsPayloadWhenSecretConfigured(t *testing.T) {
	var gotSignature string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-NetPulse-Signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	endpoints := []*models.WebhookEndpoint{{ID: 1, URL: srv.URL, Enabled: true, Secret: "shh"}}
	d := NewDispatcher(func(context.Context) ([]*models.WebhookEndpoint, error) { return endpoints, nil }, &testLogger{})
	d.Dispatch(context.Background(), &models.Alert{ID: "x"}, "host")
	d.Wait()

	require.NotEmpty(t, gotSignature)
}

func TestDispatchSuppressedWhenDisabled(t *testing.T) {
	var hit atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit.Store(true)
	}))
	defer srv.Close()

	endpoints := []*models.WebhookEndpoint{{ID: 1, URL: srv.URL, Enabled: true}}
	d := NewDispatcher(func(context.Context) ([]*models.WebhookEndpoint, error) { return endpoints, nil }, &testLogger{})
	d.SetEnabled(false)
	d.Dispatch(context.Background(), &models.Alert{ID: "x"}, "host")
	d.Wait()

	require.False(t, hit.Load())
}
