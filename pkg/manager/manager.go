// Package manager owns the trader lifecycle: it binds each configured trader
// to its venue, market feed and oracle, runs the decision loop on cadence and
// persists every cycle outcome.
package manager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"quantra/pkg/exchange"
	executorpkg "quantra/pkg/executor"
	"quantra/pkg/journal"
	"quantra/pkg/llm"
	"quantra/pkg/market"
	"quantra/pkg/risk"
	"quantra/pkg/symbols"
	"quantra/pkg/trading"
)

// Dependencies carries the shared collaborators traders are built from.
type Dependencies struct {
	Exchanges map[string]exchange.Provider
	Markets   map[string]market.Provider
	LLM       llm.LLMClient
	Executor  *executorpkg.Config

	// Optional. Nil values fall back to no-op implementations.
	Store         Store
	Plans         trading.PlanSource
	Conversations executorpkg.ConversationRecorder
}

type traderRuntime struct {
	trader  *VirtualTrader
	venue   exchange.Provider
	feed    market.Provider
	oracle  executorpkg.Executor
	service *trading.Service
	journal *journal.Writer
}

// Manager coordinates all virtual traders against shared providers.
type Manager struct {
	mu       sync.RWMutex
	cfg      *Config
	store    Store
	plans    trading.PlanSource
	runtimes map[string]*traderRuntime

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewManager wires every configured trader to its providers. Construction
// fails fast on unresolvable bindings so a misconfigured trader never trades.
func NewManager(cfg *Config, deps Dependencies) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("manager: config is required")
	}
	if deps.LLM == nil {
		return nil, fmt.Errorf("manager: llm client is required")
	}
	if deps.Executor == nil {
		return nil, fmt.Errorf("manager: executor config is required")
	}
	store := deps.Store
	if store == nil {
		store = newNoopStore()
	}

	m := &Manager{
		cfg:      cfg,
		store:    store,
		plans:    deps.Plans,
		runtimes: make(map[string]*traderRuntime, len(cfg.Traders)),
		stopCh:   make(chan struct{}),
	}

	for i := range cfg.Traders {
		tc := cfg.Traders[i]
		venue, ok := deps.Exchanges[tc.ExchangeProvider]
		if !ok {
			return nil, fmt.Errorf("manager: trader %s references unknown exchange provider %q", tc.ID, tc.ExchangeProvider)
		}
		feed, ok := deps.Markets[tc.MarketProvider]
		if !ok {
			return nil, fmt.Errorf("manager: trader %s references unknown market provider %q", tc.ID, tc.MarketProvider)
		}

		execCfg := *deps.Executor
		execCfg.TemplatePath = tc.PromptTemplate
		execCfg.DecisionInterval = tc.DecisionInterval
		var opts []executorpkg.ExecutorOption
		if deps.Conversations != nil {
			opts = append(opts, executorpkg.WithConversationRecorder(deps.Conversations))
		}
		oracle, err := executorpkg.NewExecutor(&execCfg, deps.LLM, opts...)
		if err != nil {
			return nil, fmt.Errorf("manager: trader %s: %w", tc.ID, err)
		}

		engine, err := risk.NewEngine(tc.Risk)
		if err != nil {
			return nil, fmt.Errorf("manager: trader %s: %w", tc.ID, err)
		}
		service, err := trading.NewService(venue, feed, engine)
		if err != nil {
			return nil, fmt.Errorf("manager: trader %s: %w", tc.ID, err)
		}

		trader := NewVirtualTrader(tc)
		if tc.AutoStart {
			trader.Start()
		}
		m.runtimes[tc.ID] = &traderRuntime{
			trader:  trader,
			venue:   venue,
			feed:    feed,
			oracle:  oracle,
			service: service,
			journal: journal.NewWriter(tc.JournalDir),
		}
	}
	return m, nil
}

// Trader returns the virtual trader with the given ID.
func (m *Manager) Trader(id string) (*VirtualTrader, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rt, ok := m.runtimes[id]
	if !ok {
		return nil, false
	}
	return rt.trader, true
}

// RiskMetrics returns the position risk ledger metrics for a trader.
func (m *Manager) RiskMetrics(id string) (risk.Metrics, error) {
	rt, err := m.runtime(id)
	if err != nil {
		return risk.Metrics{}, err
	}
	return rt.service.Ledger().Metrics(), nil
}

// AccountSnapshot builds the live account view for a trader.
func (m *Manager) AccountSnapshot(ctx context.Context, id string) (*trading.AccountSnapshot, error) {
	rt, err := m.runtime(id)
	if err != nil {
		return nil, err
	}
	cfg := rt.trader.Config
	snapshot, err := trading.BuildAccountSnapshot(ctx, rt.venue, m.plans, cfg.Symbols, cfg.InitialCapital)
	if err != nil {
		return nil, err
	}
	rt.service.ReconcileLedger(snapshot.Positions)
	return snapshot, nil
}

func (m *Manager) runtime(id string) (*traderRuntime, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rt, ok := m.runtimes[id]
	if !ok {
		return nil, fmt.Errorf("manager: unknown trader %q", id)
	}
	return rt, nil
}

// CycleResult summarizes one completed decision cycle.
type CycleResult struct {
	TraderID    string
	Timestamp   time.Time
	Reasoning   string
	Decisions   []executorpkg.Decision
	Executions  []*trading.ExecutionResult
	JournalPath string
}

// RunCycle executes one full decision cycle for a trader: account snapshot,
// market fan-out, oracle call, per-symbol execution and persistence. One
// symbol's execution failure never blocks its siblings.
func (m *Manager) RunCycle(ctx context.Context, traderID string) (*CycleResult, error) {
	rt, err := m.runtime(traderID)
	if err != nil {
		return nil, err
	}
	cfg := rt.trader.Config
	now := time.Now()

	snapshot, err := trading.BuildAccountSnapshot(ctx, rt.venue, m.plans, cfg.Symbols, cfg.InitialCapital)
	if err != nil {
		m.journalFailure(rt, traderID, now, fmt.Errorf("account snapshot: %w", err))
		rt.trader.RecordDecision(now, err)
		return nil, fmt.Errorf("manager: trader %s account snapshot: %w", traderID, err)
	}
	rt.service.ReconcileLedger(snapshot.Positions)

	marketData := market.All(ctx, rt.feed, cfg.Symbols)

	input := buildOracleContext(now, snapshot, marketData, cfg.Symbols, rt.service.Ledger().Metrics())
	full, err := rt.oracle.GetFullDecision(ctx, input)
	if err != nil {
		m.journalFailure(rt, traderID, now, fmt.Errorf("oracle: %w", err))
		rt.trader.RecordDecision(now, err)
		return nil, fmt.Errorf("manager: trader %s oracle: %w", traderID, err)
	}

	// Every execution draws on the balance observed at the top of the cycle.
	capital := snapshot.AvailableBalance
	executions := make([]*trading.ExecutionResult, 0, len(full.Decisions))
	for _, decision := range full.Decisions {
		result := rt.service.Execute(ctx, decision, capital, marketData[symbols.Normalize(decision.Symbol)])
		executions = append(executions, result)
		if result.Error != "" {
			logx.WithContext(ctx).Errorf("manager: trader %s %s %s: %s",
				traderID, decision.Signal, decision.Symbol, result.Error)
			continue
		}
		m.persistPlan(ctx, traderID, decision, result)
	}

	record := &journal.CycleRecord{
		Timestamp:    now,
		TraderID:     traderID,
		PromptDigest: promptDigest(full.UserPrompt),
		Reasoning:    full.Reasoning,
		Decisions:    decisionMaps(full.Decisions),
		Account:      accountMap(snapshot),
		Symbols:      cfg.Symbols,
		Executions:   executionMaps(executions),
		RiskMetrics:  riskMap(rt.service.Ledger().Metrics()),
		Success:      true,
	}
	path, err := rt.journal.WriteCycle(record)
	if err != nil {
		logx.WithContext(ctx).Errorf("manager: trader %s journal: %v", traderID, err)
	}

	if err := m.store.RecordEquity(ctx, EquitySnapshot{
		TraderID:         traderID,
		TotalEquity:      snapshot.TotalEquity,
		AvailableBalance: snapshot.AvailableBalance,
		TotalReturnPct:   snapshot.TotalReturnPct,
		SharpeRatio:      snapshot.SharpeRatio,
		PositionCount:    len(snapshot.Positions),
		Timestamp:        now,
	}); err != nil {
		logx.WithContext(ctx).Errorf("manager: trader %s equity snapshot: %v", traderID, err)
	}

	rt.trader.RecordDecision(now, nil)
	return &CycleResult{
		TraderID:    traderID,
		Timestamp:   now,
		Reasoning:   full.Reasoning,
		Decisions:   full.Decisions,
		Executions:  executions,
		JournalPath: path,
	}, nil
}

// persistPlan stores the intent behind position-shaping decisions: entries
// and stop-refreshing holds.
func (m *Manager) persistPlan(ctx context.Context, traderID string, decision executorpkg.Decision, result *trading.ExecutionResult) {
	switch decision.Signal {
	case executorpkg.SignalBuyToEnter, executorpkg.SignalSellToEnter:
	case executorpkg.SignalHold:
		if decision.StopLoss == 0 && decision.ProfitTarget == 0 {
			return
		}
	default:
		return
	}
	quantity := result.ExecutedQuantity
	if quantity == 0 {
		quantity = decision.Quantity
	}
	plan := trading.TradePlan{
		Symbol:        decision.Symbol,
		Signal:        decision.Signal,
		Leverage:      decision.Leverage,
		Quantity:      quantity,
		StopLoss:      decision.StopLoss,
		TakeProfit:    decision.ProfitTarget,
		Confidence:    decision.Confidence,
		RiskUSD:       decision.RiskUSD,
		Justification: decision.Justification,
		CreatedAt:     time.Now(),
	}
	if err := m.store.RecordPlan(ctx, traderID, plan); err != nil {
		logx.WithContext(ctx).Errorf("manager: trader %s record plan for %s: %v", traderID, decision.Symbol, err)
	}
}

func (m *Manager) journalFailure(rt *traderRuntime, traderID string, now time.Time, err error) {
	if _, werr := rt.journal.WriteCycle(&journal.CycleRecord{
		Timestamp:    now,
		TraderID:     traderID,
		Symbols:      rt.trader.Config.Symbols,
		Success:      false,
		ErrorMessage: err.Error(),
	}); werr != nil {
		logx.Errorf("manager: trader %s journal failure record: %v", traderID, werr)
	}
}

// RunTradingLoop polls every trader and runs a cycle whenever its interval
// elapses. It blocks until the context is cancelled or Stop is called.
func (m *Manager) RunTradingLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case now := <-ticker.C:
			m.runDueCycles(ctx, now)
		}
	}
}

func (m *Manager) runDueCycles(ctx context.Context, now time.Time) {
	m.mu.RLock()
	due := make([]string, 0, len(m.runtimes))
	for id, rt := range m.runtimes {
		if rt.trader.ShouldMakeDecision(now) {
			due = append(due, id)
		}
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, id := range due {
		wg.Add(1)
		go func(traderID string) {
			defer wg.Done()
			if _, err := m.RunCycle(ctx, traderID); err != nil {
				logx.WithContext(ctx).Errorf("manager: cycle failed: %v", err)
			}
		}(id)
	}
	wg.Wait()
}

// Stop terminates the trading loop and stops every trader.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rt := range m.runtimes {
		rt.trader.Stop()
	}
}

func buildOracleContext(now time.Time, snapshot *trading.AccountSnapshot, marketData map[string]*market.Snapshot, universe []string, metrics risk.Metrics) *executorpkg.Context {
	positions := make([]executorpkg.PositionInfo, 0, len(snapshot.Positions))
	for _, pos := range snapshot.Positions {
		positions = append(positions, executorpkg.PositionInfo{
			Symbol:           pos.Symbol,
			Side:             pos.Side,
			EntryPrice:       pos.EntryPrice,
			MarkPrice:        pos.MarkPrice,
			Quantity:         pos.Quantity,
			Leverage:         pos.Leverage,
			UnrealizedPnl:    pos.UnrealizedPnl,
			LiquidationPrice: pos.LiquidationPrice,
		})
	}
	return &executorpkg.Context{
		CurrentTime: now.UTC().Format(time.RFC3339),
		Account: executorpkg.AccountInfo{
			TotalEquity:      snapshot.TotalEquity,
			AvailableBalance: snapshot.AvailableBalance,
			TotalReturnPct:   snapshot.TotalReturnPct,
			SharpeRatio:      snapshot.SharpeRatio,
			PositionCount:    len(snapshot.Positions),
		},
		Positions:     positions,
		Symbols:       universe,
		MarketDataMap: marketData,
		RiskMetrics:   formatRiskMetrics(metrics),
	}
}

// promptDigest identifies the rendered prompt in the journal without storing
// its full text twice.
func promptDigest(prompt string) string {
	if prompt == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:8])
}

func formatRiskMetrics(m risk.Metrics) string {
	return fmt.Sprintf("positions=%d, unrealized=%.2f, total_risk=%.4f, daily_pnl=%.2f, risk_score=%.2f",
		m.TotalPositions, m.TotalUnrealizedPnl, m.TotalRisk, m.DailyPnl, m.RiskScore)
}

func decisionMaps(decisions []executorpkg.Decision) []map[string]any {
	out := make([]map[string]any, 0, len(decisions))
	for _, d := range decisions {
		out = append(out, map[string]any{
			"symbol":        d.Symbol,
			"signal":        d.Signal,
			"quantity":      d.Quantity,
			"cost":          d.Cost,
			"leverage":      d.Leverage,
			"stop_loss":     d.StopLoss,
			"profit_target": d.ProfitTarget,
			"confidence":    d.Confidence,
			"risk_usd":      d.RiskUSD,
			"justification": d.Justification,
		})
	}
	return out
}

func executionMaps(results []*trading.ExecutionResult) []map[string]any {
	out := make([]map[string]any, 0, len(results))
	for _, r := range results {
		entry := map[string]any{
			"symbol":  r.Symbol,
			"signal":  r.Signal,
			"success": r.Success,
		}
		if r.OrderID != 0 {
			entry["order_id"] = r.OrderID
		}
		if r.ExecutedPrice != 0 {
			entry["executed_price"] = r.ExecutedPrice
		}
		if r.ExecutedQuantity != 0 {
			entry["executed_quantity"] = r.ExecutedQuantity
		}
		if r.Error != "" {
			entry["error"] = r.Error
		}
		if len(r.Warnings) > 0 {
			entry["warnings"] = r.Warnings
		}
		out = append(out, entry)
	}
	return out
}

func accountMap(s *trading.AccountSnapshot) map[string]any {
	return map[string]any{
		"total_equity":      s.TotalEquity,
		"available_balance": s.AvailableBalance,
		"total_return_pct":  s.TotalReturnPct,
		"sharpe_ratio":      s.SharpeRatio,
		"position_count":    len(s.Positions),
	}
}

func riskMap(m risk.Metrics) map[string]any {
	return map[string]any{
		"total_positions":      m.TotalPositions,
		"total_unrealized_pnl": m.TotalUnrealizedPnl,
		"total_risk":           m.TotalRisk,
		"daily_pnl":            m.DailyPnl,
		"risk_score":           m.RiskScore,
	}
}
