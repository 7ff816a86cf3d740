package executor

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"quantra/pkg/market"
)

// buildPromptInputs renders the dynamic sections used by the decision prompt.
func buildPromptInputs(cfg *Config, ctx *Context) PromptInputs {
	current := strings.TrimSpace(ctx.CurrentTime)
	if current == "" {
		current = time.Now().UTC().Format(time.RFC3339)
	}

	return PromptInputs{
		CurrentTime:     current,
		AccountOverview: formatAccount(ctx.Account),
		OpenPositions:   formatPositions(ctx.Positions),
		RiskBudget:      formatRiskBudget(cfg, ctx),
		RiskMetrics:     ctx.RiskMetrics,
		Symbols:         formatSymbols(ctx.Symbols),
		MarketSnapshots: formatMarketJSON(ctx.MarketDataMap),
	}
}

func formatAccount(a AccountInfo) string {
	return fmt.Sprintf("equity=%.2f, avail=%.2f, return=%.2f%%, sharpe=%.3f, positions=%d",
		a.TotalEquity, a.AvailableBalance, a.TotalReturnPct*100, a.SharpeRatio, a.PositionCount,
	)
}

func formatPositions(positions []PositionInfo) string {
	if len(positions) == 0 {
		return "(none)"
	}
	items := make([]string, 0, len(positions))
	for _, p := range positions {
		items = append(items, fmt.Sprintf("%s %s qty=%.4f lev=%dx entry=%.4f mark=%.4f upnl=%.2f liq=%.4f",
			p.Symbol, p.Side, p.Quantity, p.Leverage, p.EntryPrice, p.MarkPrice, p.UnrealizedPnl, p.LiquidationPrice,
		))
	}
	sort.Strings(items)
	return strings.Join(items, "\n")
}

func formatSymbols(syms []string) string {
	if len(syms) == 0 {
		return "(none)"
	}
	sorted := make([]string, len(syms))
	copy(sorted, syms)
	sort.Strings(sorted)
	return strings.Join(sorted, ", ")
}

func formatRiskBudget(cfg *Config, ctx *Context) string {
	remaining := cfg.MaxPositions - len(ctx.Positions)
	if remaining < 0 {
		remaining = 0
	}
	return fmt.Sprintf("max_positions=%d (remaining=%d), min_confidence=%.2f, max_leverage=%dx",
		cfg.MaxPositions, remaining, cfg.MinConfidence, cfg.MaxLeverage,
	)
}

func formatMarketJSON(snaps map[string]*market.Snapshot) string {
	if len(snaps) == 0 {
		return "{}"
	}
	// Reduce payload: selected fields only.
	type lite struct {
		Price    float64            `json:"price"`
		Change1h float64            `json:"change_1h"`
		Change4h float64            `json:"change_4h"`
		EMA      map[string]float64 `json:"ema,omitempty"`
		RSI      map[string]float64 `json:"rsi,omitempty"`
		ATR      map[string]float64 `json:"atr,omitempty"`
		MACD     float64            `json:"macd,omitempty"`
		OILatest *float64           `json:"oi_latest,omitempty"`
		Funding  *float64           `json:"funding,omitempty"`
	}
	out := make(map[string]lite, len(snaps))
	for sym, s := range snaps {
		if s == nil {
			continue
		}
		var oi *float64
		if s.OpenInterest != nil {
			oi = &s.OpenInterest.Latest
		}
		var funding *float64
		if s.Funding != nil {
			funding = &s.Funding.Rate
		}
		out[sym] = lite{
			Price:    s.Price.Last,
			Change1h: s.Change.OneHour,
			Change4h: s.Change.FourHour,
			EMA:      s.Indicators.EMA,
			RSI:      s.Indicators.RSI,
			ATR:      s.Indicators.ATR,
			MACD:     s.Indicators.MACD,
			OILatest: oi,
			Funding:  funding,
		}
	}
	b, _ := json.Marshal(out)
	return string(b)
}
