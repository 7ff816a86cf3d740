// Package store persists decision outcomes: trade plans, the equity curve
// and oracle conversations. It backs the account snapshot's plan join and
// the manager's cycle persistence.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	executorpkg "quantra/pkg/executor"
	"quantra/pkg/manager"
	"quantra/pkg/symbols"
	"quantra/pkg/trading"
)

// TradeStore is the durable side of a decision cycle. It satisfies
// manager.Store, trading.PlanSource and executor.ConversationRecorder.
type TradeStore interface {
	RecordPlan(ctx context.Context, traderID string, plan trading.TradePlan) error
	RecordEquity(ctx context.Context, snapshot manager.EquitySnapshot) error
	RecordConversation(ctx context.Context, rec executorpkg.ConversationRecord) error
	LatestPlans(ctx context.Context, syms []string) (map[symbols.Base]trading.TradePlan, error)
}

// Memory is an in-process TradeStore used by tests and by deployments that
// run without a database.
type Memory struct {
	mu            sync.Mutex
	plans         []storedPlan
	equity        []manager.EquitySnapshot
	conversations []executorpkg.ConversationRecord
}

type storedPlan struct {
	traderID string
	plan     trading.TradePlan
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) RecordPlan(ctx context.Context, traderID string, plan trading.TradePlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	plan.Symbol = symbols.Normalize(plan.Symbol)
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now()
	}
	m.plans = append(m.plans, storedPlan{traderID: traderID, plan: plan})
	return nil
}

func (m *Memory) RecordEquity(ctx context.Context, snapshot manager.EquitySnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.equity = append(m.equity, snapshot)
	return nil
}

func (m *Memory) RecordConversation(ctx context.Context, rec executorpkg.ConversationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations = append(m.conversations, rec)
	return nil
}

// LatestPlans returns the most recent plan per base symbol. An empty symbol
// list means no filter.
func (m *Memory) LatestPlans(ctx context.Context, syms []string) (map[symbols.Base]trading.TradePlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var want map[symbols.Base]bool
	if len(syms) > 0 {
		want = make(map[symbols.Base]bool, len(syms))
		for _, s := range syms {
			want[symbols.BaseOf(s)] = true
		}
	}

	out := make(map[symbols.Base]trading.TradePlan)
	for _, sp := range m.plans {
		base := symbols.BaseOf(sp.plan.Symbol)
		if want != nil && !want[base] {
			continue
		}
		if existing, ok := out[base]; ok && existing.CreatedAt.After(sp.plan.CreatedAt) {
			continue
		}
		out[base] = sp.plan
	}
	return out, nil
}

// Equity returns the recorded equity curve ordered by time.
func (m *Memory) Equity(traderID string) []manager.EquitySnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]manager.EquitySnapshot, 0, len(m.equity))
	for _, e := range m.equity {
		if traderID == "" || e.TraderID == traderID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// Conversations returns every recorded oracle exchange.
func (m *Memory) Conversations() []executorpkg.ConversationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]executorpkg.ConversationRecord, len(m.conversations))
	copy(out, m.conversations)
	return out
}
