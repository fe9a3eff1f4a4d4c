package alerts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chain-sentry/monitor/internal/chain"
)

type recordingSink struct {
	id string

	mu        sync.Mutex
	sent      []chain.Alert
	resolved  []chain.Alert
}

func (s *recordingSink) ID() string { return s.id }

func (s *recordingSink) Send(_ context.Context, alert chain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, alert)
	return nil
}

func (s *recordingSink) SendResolve(_ context.Context, alert chain.Alert, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved = append(s.resolved, alert)
	return nil
}

func (s *recordingSink) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *recordingSink) resolvedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.resolved)
}

func TestManagerDispatchesToEverySink(t *testing.T) {
	a := &recordingSink{id: "a"}
	b := &recordingSink{id: "b"}
	m := New([]Sink{a, b}, DefaultCapacity)

	m.Run(context.Background(), []chain.Alert{{CheckID: "fee_check"}})

	require.Equal(t, 1, a.sentCount())
	require.Equal(t, 1, b.sentCount())
}

func TestManagerSuppressesRepeatWithinTTL(t *testing.T) {
	sink := &recordingSink{id: "log"}
	m := New([]Sink{sink}, DefaultCapacity)

	ttl := time.Hour
	alert := chain.Alert{CheckID: "ibc_check", TriggerAfter: &ttl, Continuous: true}

	m.Run(context.Background(), []chain.Alert{alert})
	m.Run(context.Background(), []chain.Alert{alert})

	require.Equal(t, 1, sink.sentCount())
}

func TestManagerResolvesStaleContinuousAlert(t *testing.T) {
	sink := &recordingSink{id: "log"}
	m := New([]Sink{sink}, DefaultCapacity)

	ttl := time.Hour
	alert := chain.Alert{CheckID: "ibc_check", TriggerAfter: &ttl, Continuous: true}

	m.Run(context.Background(), []chain.Alert{alert})
	require.Equal(t, 1, sink.sentCount())
	require.Equal(t, 0, sink.resolvedCount())

	// Next tick: the check no longer fires, so the cached entry must
	// resolve and clear.
	m.Run(context.Background(), nil)
	require.Equal(t, 1, sink.resolvedCount())

	// A third tick with nothing firing must not resolve again.
	m.Run(context.Background(), nil)
	require.Equal(t, 1, sink.resolvedCount())
}

func TestManagerNonContinuousAlertNeverAutoResolves(t *testing.T) {
	sink := &recordingSink{id: "log"}
	m := New([]Sink{sink}, DefaultCapacity)

	alert := chain.Alert{CheckID: "fee_check"}
	m.Run(context.Background(), []chain.Alert{alert})
	m.Run(context.Background(), nil)

	require.Equal(t, 0, sink.resolvedCount())
}
