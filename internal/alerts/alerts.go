// Package alerts implements the per-host threshold/state-machine that
// turns ping results into Alert events, per spec §4.9.
package alerts

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rcourtman/netpulse/internal/models"
)

// Subscriber receives a read-only clone of every emitted alert.
type Subscriber func(*models.Alert)

// Persister writes an alert to storage. The engine does not retry a
// failed persist; the error is returned to the caller of Evaluate.
type Persister func(ctx context.Context, a *models.Alert) error

// Notifier forwards an alert to the notification dispatcher. It runs
// after persistence succeeds and before subscribers are notified, per
// the engine's resolved emission order: persist -> webhook -> notify.
type Notifier func(*models.Alert)

// hostState is the per-host mutable counter pair the spec describes.
type hostState struct {
	mu                  sync.Mutex
	consecutiveFailures int
	hostWasDown         bool
}

// Engine evaluates PingResults against AlertThresholds and maintains
// per-host state. Safe for concurrent use across many hosts; state for a
// given host is serialized by that host's own mutex so results for
// different hosts never block each other.
type Engine struct {
	thresholds models.AlertThresholds
	persist    Persister
	notify     Notifier

	mu          sync.Mutex
	states      map[int64]*hostState
	subscribers []Subscriber

	entropy *ulid.MonotonicEntropySource
	entMu   sync.Mutex
}

func New(thresholds models.AlertThresholds, persist Persister, notify Notifier) *Engine {
	return &Engine{
		thresholds: thresholds,
		persist:    persist,
		notify:     notify,
		states:     make(map[int64]*hostState),
		entropy:    ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// Subscribe registers a subscriber invoked after every alert is persisted
// and forwarded to the notifier.
func (e *Engine) Subscribe(sub Subscriber) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers = append(e.subscribers, sub)
}

func (e *Engine) stateFor(hostID int64) *hostState {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.states[hostID]
	if !ok {
		s = &hostState{}
		e.states[hostID] = s
	}
	return s
}

// Evaluate applies spec §4.9's state machine to one result for host and
// returns every alert it emitted, in emission order, having already
// persisted and forwarded each one (persist -> webhook -> notify
// subscribers, deterministic per host).
func (e *Engine) Evaluate(ctx context.Context, host models.Host, result *models.PingResult) ([]*models.Alert, error) {
	state := e.stateFor(host.ID)
	state.mu.Lock()

	var pending []*models.Alert
	latencyMs := result.LatencyUs / 1000

	if result.Success {
		switch {
		case latencyMs >= e.thresholds.LatencyCriticalMs:
			pending = append(pending, e.newAlert(host, models.AlertTypeHighLatency, models.SeverityCritical,
				"High latency", fmt.Sprintf("%s latency %dms exceeds critical threshold %dms", host.Name, latencyMs, e.thresholds.LatencyCriticalMs)))
		case latencyMs >= e.thresholds.LatencyWarningMs:
			pending = append(pending, e.newAlert(host, models.AlertTypeHighLatency, models.SeverityWarning,
				"Elevated latency", fmt.Sprintf("%s latency %dms exceeds warning threshold %dms", host.Name, latencyMs, e.thresholds.LatencyWarningMs)))
		}

		if state.hostWasDown {
			state.hostWasDown = false
			state.consecutiveFailures = 0
			pending = append(pending, e.newAlert(host, models.AlertTypeHostRecovered, models.SeverityInfo,
				"Host recovered", fmt.Sprintf("%s is reachable again", host.Name)))
		} else {
			state.consecutiveFailures = 0
		}
	} else {
		state.consecutiveFailures++
		if state.consecutiveFailures == e.thresholds.ConsecutiveFailuresForDown && !state.hostWasDown {
			state.hostWasDown = true
			pending = append(pending, e.newAlert(host, models.AlertTypeHostDown, models.SeverityCritical,
				"Host down", fmt.Sprintf("%s failed %d consecutive pings", host.Name, state.consecutiveFailures)))
		}
	}
	state.mu.Unlock()

	for _, alert := range pending {
		if err := e.persist(ctx, alert); err != nil {
			return pending, err
		}
		if e.notify != nil {
			e.notify(alert)
		}
		e.mu.Lock()
		subs := append([]Subscriber(nil), e.subscribers...)
		e.mu.Unlock()
		for _, sub := range subs {
			sub(alert.Clone())
		}
	}
	return pending, nil
}

func (e *Engine) newAlert(host models.Host, t models.AlertType, severity models.AlertSeverity, title, message string) *models.Alert {
	return &models.Alert{
		ID:        e.nextID(),
		HostID:    host.ID,
		Type:      t,
		Severity:  severity,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func (e *Engine) nextID() string {
	e.entMu.Lock()
	defer e.entMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), e.entropy).String()
}
