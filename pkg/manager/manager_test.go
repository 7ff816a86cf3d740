package manager

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantra/pkg/exchange"
	"quantra/pkg/exchange/sim"
	executorpkg "quantra/pkg/executor"
	"quantra/pkg/llm"
	"quantra/pkg/market"
	"quantra/pkg/risk"
	"quantra/pkg/trading"
)

type scriptedLLM struct {
	response string
}

func (s *scriptedLLM) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, errors.New("not implemented")
}

func (s *scriptedLLM) ChatStream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamResponse, error) {
	return nil, errors.New("not implemented")
}

func (s *scriptedLLM) ChatStructured(ctx context.Context, req *llm.ChatRequest, target interface{}) (interface{}, error) {
	if s.response == "" {
		return nil, errors.New("oracle unavailable")
	}
	if err := json.Unmarshal([]byte(s.response), target); err != nil {
		return nil, err
	}
	return target, nil
}

func (s *scriptedLLM) GetConfig() *llm.Config { return &llm.Config{} }
func (s *scriptedLLM) Close() error           { return nil }

type stubFeed struct {
	prices map[string]float64
}

func (f *stubFeed) Snapshot(ctx context.Context, symbol string) (*market.Snapshot, error) {
	px, ok := f.prices[symbol]
	if !ok {
		return nil, market.NewDataFetchError(symbol, "no price", nil)
	}
	return &market.Snapshot{Symbol: symbol, Price: market.PriceInfo{Last: px}}, nil
}

func (f *stubFeed) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	px, ok := f.prices[symbol]
	if !ok {
		return 0, market.NewDataFetchError(symbol, "no price", nil)
	}
	return px, nil
}

func (f *stubFeed) ListAssets(ctx context.Context) ([]market.Asset, error) { return nil, nil }

type captureStore struct {
	mu     sync.Mutex
	plans  []trading.TradePlan
	equity []EquitySnapshot
}

func (s *captureStore) RecordPlan(ctx context.Context, traderID string, plan trading.TradePlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans = append(s.plans, plan)
	return nil
}

func (s *captureStore) RecordEquity(ctx context.Context, snapshot EquitySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.equity = append(s.equity, snapshot)
	return nil
}

func testManagerConfig(t *testing.T, symbols []string) *Config {
	t.Helper()
	dir := t.TempDir()
	prompt := writePrompt(t, dir, "trader.tmpl")
	return &Config{Traders: []TraderConfig{{
		ID:               "alpha",
		Name:             "Momentum",
		Symbols:          symbols,
		InitialCapital:   10000,
		ExchangeProvider: "sim",
		MarketProvider:   "stub",
		PromptTemplate:   prompt,
		JournalDir:       dir,
		AutoStart:        true,
		DecisionInterval: 3 * time.Minute,
		Risk:             risk.Config{MaxPositionSizeUSD: 100000},
	}}}
}

func executorConfig(batch bool) *executorpkg.Config {
	return &executorpkg.Config{
		MaxLeverage:     20,
		MinConfidence:   0.3,
		MaxPositions:    5,
		BatchDecisions:  batch,
		DecisionTimeout: 30 * time.Second,
	}
}

func newTestManager(t *testing.T, cfg *Config, oracle *scriptedLLM, batch bool, store Store) (*Manager, *sim.Provider) {
	t.Helper()
	venue := sim.NewWithBalance(10000)
	feed := &stubFeed{prices: map[string]float64{"BTCUSDT": 50000, "ETHUSDT": 3000}}
	require.NoError(t, venue.SetMarkPrice("BTCUSDT", 50000))
	require.NoError(t, venue.SetMarkPrice("ETHUSDT", 3000))

	mgr, err := NewManager(cfg, Dependencies{
		Exchanges: map[string]exchange.Provider{"sim": venue},
		Markets:   map[string]market.Provider{"stub": feed},
		LLM:       oracle,
		Executor:  executorConfig(batch),
		Store:     store,
	})
	require.NoError(t, err)
	return mgr, venue
}

func TestRunCycleOpensPositionAndPersists(t *testing.T) {
	store := &captureStore{}
	oracle := &scriptedLLM{response: `{
		"symbol": "BTCUSDT",
		"signal": "buy_to_enter",
		"cost": 500,
		"leverage": 10,
		"stop_loss": 48000,
		"profit_target": 55000,
		"confidence": 0.9,
		"justification": "momentum continuation"
	}`}
	cfg := testManagerConfig(t, []string{"BTCUSDT"})
	mgr, venue := newTestManager(t, cfg, oracle, false, store)

	result, err := mgr.RunCycle(context.Background(), "alpha")
	require.NoError(t, err)
	require.Len(t, result.Executions, 1)
	assert.True(t, result.Executions[0].Success)

	// (500 * 10) / 50000 = 0.1 contracts long.
	positions, err := venue.GetPositions(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.InDelta(t, 0.1, positions[0].Quantity, 1e-9)

	require.Len(t, store.plans, 1)
	assert.Equal(t, "BTCUSDT", store.plans[0].Symbol)
	assert.InDelta(t, 55000.0, store.plans[0].TakeProfit, 1e-9)
	assert.InDelta(t, 0.1, store.plans[0].Quantity, 1e-9)

	require.Len(t, store.equity, 1)
	assert.Equal(t, "alpha", store.equity[0].TraderID)
	assert.InDelta(t, 10000.0, store.equity[0].TotalEquity, 1e-6)

	if assert.NotEmpty(t, result.JournalPath) {
		_, statErr := os.Stat(result.JournalPath)
		assert.NoError(t, statErr)
	}

	trader, ok := mgr.Trader("alpha")
	require.True(t, ok)
	assert.Equal(t, 1, trader.CycleCount())
	assert.Empty(t, trader.LastError())
}

func TestRiskMetricsTrackVenueAfterSnapshot(t *testing.T) {
	oracle := &scriptedLLM{response: `{
		"symbol": "BTCUSDT",
		"signal": "buy_to_enter",
		"cost": 500,
		"leverage": 10,
		"stop_loss": 48000,
		"profit_target": 55000,
		"confidence": 0.9
	}`}
	cfg := testManagerConfig(t, []string{"BTCUSDT"})
	mgr, venue := newTestManager(t, cfg, oracle, false, &captureStore{})

	_, err := mgr.RunCycle(context.Background(), "alpha")
	require.NoError(t, err)

	// The mark moves after entry; the next account snapshot reconciles the
	// ledger so risk metrics report the venue's unrealized PnL.
	require.NoError(t, venue.SetMarkPrice("BTCUSDT", 55000))
	_, err = mgr.AccountSnapshot(context.Background(), "alpha")
	require.NoError(t, err)

	metrics, err := mgr.RiskMetrics("alpha")
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.TotalPositions)
	// 0.1 contracts marked 5000 higher.
	assert.InDelta(t, 500.0, metrics.TotalUnrealizedPnl, 1e-6)
}

func TestRunCycleIsolatesSymbolFailures(t *testing.T) {
	store := &captureStore{}
	// One valid entry and one close against a flat book: the close fails,
	// the entry still executes.
	oracle := &scriptedLLM{response: `{
		"decisions": [
			{"symbol": "BTCUSDT", "signal": "buy_to_enter", "cost": 500, "leverage": 5, "stop_loss": 48000, "profit_target": 55000, "confidence": 0.8},
			{"symbol": "ETHUSDT", "signal": "close", "confidence": 0.6}
		],
		"reasoning": "btc leading, eth flat"
	}`}
	cfg := testManagerConfig(t, []string{"BTCUSDT", "ETHUSDT"})
	mgr, venue := newTestManager(t, cfg, oracle, true, store)

	result, err := mgr.RunCycle(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, "btc leading, eth flat", result.Reasoning)
	require.Len(t, result.Executions, 2)

	assert.True(t, result.Executions[0].Success)
	assert.False(t, result.Executions[1].Success)
	assert.Equal(t, "No open position found for ETHUSDT", result.Executions[1].Error)

	positions, err := venue.GetPositions(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "BTCUSDT", positions[0].Symbol)

	// Only the successful entry produced a plan.
	require.Len(t, store.plans, 1)
	assert.Equal(t, "BTCUSDT", store.plans[0].Symbol)
}

func TestRunCycleOracleFailureJournaled(t *testing.T) {
	cfg := testManagerConfig(t, []string{"BTCUSDT"})
	mgr, _ := newTestManager(t, cfg, &scriptedLLM{}, false, &captureStore{})

	_, err := mgr.RunCycle(context.Background(), "alpha")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")

	trader, ok := mgr.Trader("alpha")
	require.True(t, ok)
	assert.Equal(t, 1, trader.CycleCount())
	assert.NotEmpty(t, trader.LastError())
}

func TestRunCycleUnknownTrader(t *testing.T) {
	cfg := testManagerConfig(t, []string{"BTCUSDT"})
	mgr, _ := newTestManager(t, cfg, &scriptedLLM{}, false, &captureStore{})

	_, err := mgr.RunCycle(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown trader")
}

func TestNewManagerRejectsUnknownProviders(t *testing.T) {
	cfg := testManagerConfig(t, []string{"BTCUSDT"})
	cfg.Traders[0].ExchangeProvider = "missing"

	_, err := NewManager(cfg, Dependencies{
		Exchanges: map[string]exchange.Provider{"sim": sim.New()},
		Markets:   map[string]market.Provider{"stub": &stubFeed{}},
		LLM:       &scriptedLLM{},
		Executor:  executorConfig(false),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown exchange provider")
}
