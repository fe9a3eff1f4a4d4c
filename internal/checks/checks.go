// Package checks implements the Check Framework (§4.4): a registry of
// analytical predicates run against the state window on every ingestion
// tick, producing Alerts for the Alert Manager to de-duplicate and route.
package checks

import (
	"time"

	"github.com/chain-sentry/monitor/internal/chain"
	"github.com/chain-sentry/monitor/internal/state"
)

// Check is satisfied by every entry in the catalog (§4.4). Implementations
// must never error; a check that cannot evaluate (e.g. insufficient
// window length) silently returns no alerts (§7, "Check-precondition").
type Check interface {
	ID() string
	IsContinuous() bool
	Run(s *state.State, now time.Time) []chain.Alert
}

// Registry holds one instance of each configured check and dispatches the
// continuous and block-triggered classes separately, preserving
// registration order within a class (§4.4).
type Registry struct {
	checks []Check
}

// NewRegistry builds a registry over the given checks, in the order they
// should run within their class.
func NewRegistry(checks ...Check) *Registry {
	return &Registry{checks: checks}
}

// Continuous returns the continuous checks, in registry order.
func (r *Registry) Continuous() []Check {
	var out []Check
	for _, c := range r.checks {
		if c.IsContinuous() {
			out = append(out, c)
		}
	}
	return out
}

// BlockTriggered returns the block-triggered checks, in registry order.
func (r *Registry) BlockTriggered() []Check {
	var out []Check
	for _, c := range r.checks {
		if !c.IsContinuous() {
			out = append(out, c)
		}
	}
	return out
}

// RunContinuous evaluates every continuous check against the tip alone.
func (r *Registry) RunContinuous(s *state.State, now time.Time) []chain.Alert {
	var alerts []chain.Alert
	for _, c := range r.Continuous() {
		alerts = append(alerts, c.Run(s, now)...)
	}
	return alerts
}

// RunBlockTriggered evaluates every block-triggered check against the
// just-appended block, possibly against its predecessor.
func (r *Registry) RunBlockTriggered(s *state.State, now time.Time) []chain.Alert {
	var alerts []chain.Alert
	for _, c := range r.BlockTriggered() {
		alerts = append(alerts, c.Run(s, now)...)
	}
	return alerts
}

// hasPredecessor reports whether s has at least two entries, the
// precondition every block-triggered check that compares pre/post state
// requires (§3, §7 "Check-precondition").
func hasPredecessor(s *state.State) bool {
	return s.Len() >= 2
}

func durationPtr(d time.Duration) *time.Duration {
	return &d
}

func heightPtr(h uint64) *uint64 {
	return &h
}

func stringPtr(s string) *string {
	return &s
}
