// Package alerts implements the Alert Manager (§4.5): a small pipeline
// that fans a tick's alerts out to every configured Sink, de-duplicates
// repeat firings of the same (sink, check) pair against a bounded cache,
// and emits a resolution notice once a continuous check stops firing.
package alerts

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/ethereum/go-ethereum/log"

	"github.com/chain-sentry/monitor/internal/chain"
)

// Sink is satisfied by every notification backend (§4.5, §6: "log",
// "webhook", "telegram").
type Sink interface {
	ID() string
	Send(ctx context.Context, alert chain.Alert) error
	SendResolve(ctx context.Context, alert chain.Alert, firstSeen time.Time) error
}

// firing records the alert and the time it first started firing,
// together with the wall-clock deadline it may re-fire after. The cache
// itself is LRU-bounded (§4.5, capacity default 100); expiry is an
// explicit per-entry deadline layered on top since BasicLRU has no TTL
// notion of its own.
type firing struct {
	alert     chain.Alert
	firstSeen time.Time
	expiresAt time.Time
}

// DefaultCapacity is the in-flight alert cache's default bound (§4.5).
const DefaultCapacity = 100

// defaultTTL is the cache lifetime recorded for an alert sent without an
// explicit TriggerAfter (§4.5). Such alerts are never suppressed: every
// emission is sent, and the cache entry only tracks them for resolution.
const defaultTTL = 10 * time.Minute

// Manager is the sink fan-out plus de-duplication cache (§4.5).
type Manager struct {
	sinks []Sink

	mu     sync.Mutex
	onFire lru.BasicLRU[chain.AlertKey, firing]
}

// New builds a Manager over the given sinks with the given cache
// capacity (0 falls back to DefaultCapacity).
func New(sinks []Sink, capacity int) *Manager {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Manager{
		sinks:  sinks,
		onFire: lru.NewBasicLRU[chain.AlertKey, firing](capacity),
	}
}

// Run dispatches alerts to every sink, honoring each alert's de-dup TTL,
// then resolves any continuous alert whose check did not fire this tick
// (§4.5). The de-dup unit is the (sink-id, check-id) tuple (§3),
// chain.AlertKey.
func (m *Manager) Run(ctx context.Context, tickAlerts []chain.Alert) {
	now := time.Now()
	m.mu.Lock()
	for _, sink := range m.sinks {
		for _, alert := range tickAlerts {
			id := alert.Key(sink.ID())
			if alert.TriggerAfter != nil {
				if f, found := m.onFire.Get(id); found && now.Before(f.expiresAt) {
					log.Debug("Alert already firing, suppressing", "sink", sink.ID(), "check", alert.CheckID)
					continue
				}
			}

			m.mu.Unlock()
			err := sink.Send(ctx, alert)
			m.mu.Lock()
			if err != nil {
				log.Error("Failed to send alert", "sink", sink.ID(), "check", alert.CheckID, "err", err)
				continue
			}

			ttl := defaultTTL
			if alert.TriggerAfter != nil {
				ttl = *alert.TriggerAfter
			}
			m.onFire.Add(id, firing{alert: alert, firstSeen: now, expiresAt: now.Add(ttl)})
		}
	}
	m.mu.Unlock()

	m.resolveStale(ctx, tickAlerts)
}

// resolveStale sends a resolution notice for every continuous alert on
// file whose check did not re-fire this tick, then clears its cache slot.
func (m *Manager) resolveStale(ctx context.Context, tickAlerts []chain.Alert) {
	firingStillActive := make(map[string]bool, len(tickAlerts))
	for _, a := range tickAlerts {
		firingStillActive[a.CheckID] = true
	}

	m.mu.Lock()
	var toResolve []struct {
		id chain.AlertKey
		f  firing
	}
	for _, id := range m.onFire.Keys() {
		f, ok := m.onFire.Peek(id)
		if !ok || !f.alert.Continuous || firingStillActive[f.alert.CheckID] {
			continue
		}
		toResolve = append(toResolve, struct {
			id chain.AlertKey
			f  firing
		}{id, f})
	}
	m.mu.Unlock()

	for _, entry := range toResolve {
		for _, sink := range m.sinks {
			if entry.id.SinkID != sink.ID() {
				continue
			}
			if err := sink.SendResolve(ctx, entry.f.alert, entry.f.firstSeen); err != nil {
				log.Error("Failed to send alert resolution", "sink", sink.ID(), "check", entry.f.alert.CheckID, "err", err)
			}
		}
		m.mu.Lock()
		m.onFire.Remove(entry.id)
		m.mu.Unlock()
	}
}
