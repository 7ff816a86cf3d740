package executor

import (
	"strings"

	"quantra/pkg/symbols"
)

// ValidateDecisions checks every decision against the oracle contract. Any
// violation surfaces as OracleResponseInvalidError; decisions are never
// silently corrected.
func ValidateDecisions(cfg *Config, input *Context, decisions []Decision) error {
	if cfg == nil {
		return invalidf("missing config for validation")
	}
	if len(decisions) == 0 {
		return invalidf("oracle returned no decisions")
	}

	universe := make(map[string]bool, len(input.Symbols))
	for _, s := range input.Symbols {
		universe[symbols.Normalize(s)] = true
	}

	if cfg.BatchDecisions {
		if err := validateBatchShape(universe, decisions); err != nil {
			return err
		}
	}

	for i, d := range decisions {
		if err := validateDecision(cfg, universe, i, d); err != nil {
			return err
		}
	}
	return nil
}

// validateBatchShape enforces exactly one decision per candidate symbol.
func validateBatchShape(universe map[string]bool, decisions []Decision) error {
	if len(decisions) != len(universe) {
		return invalidf("batch mode requires %d decisions (one per symbol), got %d",
			len(universe), len(decisions))
	}
	seen := make(map[string]bool, len(decisions))
	for _, d := range decisions {
		symbol := symbols.Normalize(d.Symbol)
		if seen[symbol] {
			return invalidf("duplicate decision for symbol %s", symbol)
		}
		seen[symbol] = true
	}
	return nil
}

func validateDecision(cfg *Config, universe map[string]bool, i int, d Decision) error {
	symbol := strings.TrimSpace(d.Symbol)
	if symbol == "" {
		return invalidf("decision[%d]: symbol is required", i)
	}
	if len(universe) > 0 && !universe[symbols.Normalize(symbol)] {
		return invalidf("decision[%d]: symbol %s is outside the candidate universe", i, symbol)
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return invalidf("decision[%d]: confidence %v outside [0,1]", i, d.Confidence)
	}
	if d.Quantity < 0 {
		return invalidf("decision[%d]: quantity cannot be negative", i)
	}
	if d.Cost < 0 {
		return invalidf("decision[%d]: cost cannot be negative", i)
	}
	if d.Leverage < 0 {
		return invalidf("decision[%d]: leverage cannot be negative", i)
	}

	signal := strings.ToLower(strings.TrimSpace(d.Signal))
	switch signal {
	case SignalBuyToEnter, SignalSellToEnter:
		if d.Confidence < cfg.MinConfidence {
			return invalidf("decision[%d]: confidence %.2f below threshold %.2f",
				i, d.Confidence, cfg.MinConfidence)
		}
		if d.Quantity == 0 && d.Cost == 0 {
			return invalidf("decision[%d]: entry requires a quantity or a cost", i)
		}
		if d.StopLoss > 0 && d.ProfitTarget > 0 {
			if signal == SignalBuyToEnter && d.ProfitTarget <= d.StopLoss {
				return invalidf("decision[%d]: long requires profit target above stop loss", i)
			}
			if signal == SignalSellToEnter && d.ProfitTarget >= d.StopLoss {
				return invalidf("decision[%d]: short requires profit target below stop loss", i)
			}
		}
	case SignalHold, SignalClose:
		// No sizing requirements.
	default:
		return invalidf("decision[%d]: unknown signal %q", i, d.Signal)
	}
	return nil
}
