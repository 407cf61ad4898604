// Package notify fans alerts out to configured webhook endpoints, per
// spec §4.10.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rcourtman/netpulse/internal/metrics"
	"github.com/rcourtman/netpulse/internal/models"
)

const maxAttempts = 3

// payload is the JSON body rendered for every webhook delivery, exactly
// the fields spec §4.10 names.
type payload struct {
	ID           string `json:"id"`
	HostID       int64  `json:"hostId"`
	HostName     string `json:"hostName"`
	Type         string `json:"type"`
	Severity     string `json:"severity"`
	Title        string `json:"title"`
	Message      string `json:"message"`
	Timestamp    string `json:"timestamp"`
	Acknowledged bool   `json:"acknowledged"`
}

// EndpointSource supplies the current set of enabled webhook endpoints.
type EndpointSource func(ctx context.Context) ([]*models.WebhookEndpoint, error)

// Logger is a minimal logging interface so this package doesn't need to
// import the logging package directly.
type Logger interface {
	Error(msg string, args ...any)
}

// Dispatcher fans an alert out to every enabled endpoint, retrying
// non-2xx responses with bounded exponential backoff. Delivery is
// fire-and-forget from the alert engine's perspective: Dispatch lists the
// endpoints and renders the payload on the caller's goroutine, then returns
// without waiting for any delivery goroutine.
type Dispatcher struct {
	endpoints EndpointSource
	client    *http.Client
	enabled   atomic.Bool
	log       Logger
	wg        sync.WaitGroup
}

func NewDispatcher(endpoints EndpointSource, log Logger) *Dispatcher {
	d := &Dispatcher{
		endpoints: endpoints,
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log,
	}
	d.enabled.Store(true)
	return d
}

// SetEnabled flips the global switch that suppresses delivery without
// removing configured endpoints.
func (d *Dispatcher) SetEnabled(enabled bool) { d.enabled.Store(enabled) }

// Dispatch renders alert as a webhook payload and sends it to every
// enabled endpoint concurrently, each with its own retry budget.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *models.Alert, hostName string) {
	if !d.enabled.Load() {
		return
	}
	endpoints, err := d.endpoints(ctx)
	if err != nil {
		d.log.Error("list webhook endpoints", "error", err.Error())
		return
	}

	body, err := json.Marshal(payload{
		ID: alert.ID, HostID: alert.HostID, HostName: hostName,
		Type: string(alert.Type), Severity: string(alert.Severity),
		Title: alert.Title, Message: alert.Message,
		Timestamp: alert.Timestamp.Format(time.RFC3339), Acknowledged: alert.Acknowledged,
	})
	if err != nil {
		d.log.Error("marshal webhook payload", "error", err.Error())
		return
	}

	for _, endpoint := range endpoints {
		if !endpoint.Enabled {
			continue
		}
		ep := endpoint
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.deliverWithRetry(ctx, ep, body); err != nil {
				d.log.Error("webhook delivery failed", "url", ep.URL, "error", err.Error())
			}
		}()
	}
}

// Wait blocks until every in-flight delivery goroutine has returned.
// Tests use this, and the app's shutdown calls it so in-flight deliveries
// finish before the process exits.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func (d *Dispatcher) deliverWithRetry(ctx context.Context, endpoint *models.WebhookEndpoint, body []byte) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff(attempt))
		}
		if err := d.deliver(ctx, endpoint, body); err != nil {
			metrics.WebhookDeliveriesTotal.WithLabelValues("failure").Inc()
			lastErr = err
			continue
		}
		metrics.WebhookDeliveriesTotal.WithLabelValues("success").Inc()
		return nil
	}
	return fmt.Errorf("giving up after %d attempts: %w", maxAttempts, lastErr)
}

func backoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * 200 * time.Millisecond
}

func (d *Dispatcher) deliver(ctx context.Context, endpoint *models.WebhookEndpoint, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if endpoint.Secret != "" {
		req.Header.Set("X-NetPulse-Signature", sign(endpoint.Secret, body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}

// sign computes an HMAC-SHA256 signature over body using secret, rendered
// as lowercase hex, the way an operator's receiving endpoint can verify
// the payload originated from this dispatcher.
func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
