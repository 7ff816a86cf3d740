package manager

import (
	"sync"
	"time"
)

// TraderState describes the lifecycle state of a virtual trader.
type TraderState string

const (
	StateIdle    TraderState = "idle"
	StateActive  TraderState = "active"
	StatePaused  TraderState = "paused"
	StateStopped TraderState = "stopped"
)

// VirtualTrader is one autonomous trading loop: a symbol universe, a venue
// binding and a decision cadence. All mutable state is guarded by mu.
type VirtualTrader struct {
	mu sync.RWMutex

	Config TraderConfig

	state        TraderState
	lastDecision time.Time
	cycleCount   int
	lastError    string
}

// NewVirtualTrader constructs an idle trader from its configuration.
func NewVirtualTrader(cfg TraderConfig) *VirtualTrader {
	return &VirtualTrader{Config: cfg, state: StateIdle}
}

// Start moves the trader into the active state.
func (t *VirtualTrader) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = StateActive
}

// Pause suspends decision making without discarding state.
func (t *VirtualTrader) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateActive {
		t.state = StatePaused
	}
}

// Resume reactivates a paused trader.
func (t *VirtualTrader) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StatePaused {
		t.state = StateActive
	}
}

// Stop terminates the trader permanently.
func (t *VirtualTrader) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = StateStopped
}

// State returns the current lifecycle state.
func (t *VirtualTrader) State() TraderState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// IsActive reports whether the trader participates in the trading loop.
func (t *VirtualTrader) IsActive() bool {
	return t.State() == StateActive
}

// ShouldMakeDecision reports whether the decision interval has elapsed since
// the last recorded cycle. A trader that has never decided is always due.
func (t *VirtualTrader) ShouldMakeDecision(now time.Time) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.state != StateActive {
		return false
	}
	if t.lastDecision.IsZero() {
		return true
	}
	return now.Sub(t.lastDecision) >= t.Config.DecisionInterval
}

// RecordDecision marks the completion of a decision cycle.
func (t *VirtualTrader) RecordDecision(now time.Time, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastDecision = now
	t.cycleCount++
	if err != nil {
		t.lastError = err.Error()
	} else {
		t.lastError = ""
	}
}

// CycleCount returns the number of completed decision cycles.
func (t *VirtualTrader) CycleCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cycleCount
}

// LastError returns the failure message of the most recent cycle, empty when
// the last cycle succeeded.
func (t *VirtualTrader) LastError() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastError
}
