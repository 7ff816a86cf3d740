// Package executor adapts the decision oracle: it renders the trading prompt
// from market and account snapshots, requests a structured decision and
// validates the response before anything reaches the execution service.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"quantra/pkg/llm"
)

// Executor defines the decision oracle interface.
type Executor interface {
	// GetFullDecision builds the prompt from input context, calls the oracle
	// and returns a validated decision bundle.
	GetFullDecision(ctx context.Context, input *Context) (*FullDecision, error)
	// GetConfig exposes the immutable executor configuration.
	GetConfig() *Config
}

// BasicExecutor wires configuration, prompt rendering and the llm client.
type BasicExecutor struct {
	cfg           *Config
	llm           llm.LLMClient
	renderer      *PromptRenderer
	conversations ConversationRecorder
}

// ExecutorOption customises BasicExecutor construction.
type ExecutorOption func(*BasicExecutor)

// NewExecutor constructs a BasicExecutor from config and an oracle client.
func NewExecutor(cfg *Config, client llm.LLMClient, opts ...ExecutorOption) (*BasicExecutor, error) {
	if cfg == nil {
		return nil, errors.New("executor: config is required")
	}
	if client == nil {
		return nil, errors.New("executor: llm client is required")
	}
	renderer, err := NewPromptRenderer(cfg, cfg.TemplatePath)
	if err != nil {
		return nil, err
	}
	exec := &BasicExecutor{
		cfg:           cfg,
		llm:           client,
		renderer:      renderer,
		conversations: noopConversationRecorder{},
	}
	for _, opt := range opts {
		opt(exec)
	}
	return exec, nil
}

// GetConfig returns the underlying configuration.
func (e *BasicExecutor) GetConfig() *Config { return e.cfg }

// decisionContract mirrors the structured JSON contract expected from the
// oracle for a single symbol.
type decisionContract struct {
	Symbol                string  `json:"symbol" description:"trading pair, e.g. BTCUSDT"`
	Signal                string  `json:"signal" description:"one of buy_to_enter, sell_to_enter, hold, close"`
	Quantity              float64 `json:"quantity,omitempty" description:"explicit contract quantity; omit to size from cost"`
	Cost                  float64 `json:"cost,omitempty" description:"margin to commit in quote currency"`
	Leverage              int     `json:"leverage,omitempty" description:"requested leverage multiplier"`
	StopLoss              float64 `json:"stop_loss,omitempty" description:"protective stop trigger price"`
	ProfitTarget          float64 `json:"profit_target,omitempty" description:"take profit trigger price"`
	InvalidationCondition string  `json:"invalidation_condition,omitempty" description:"market condition that voids the thesis"`
	Confidence            float64 `json:"confidence" description:"conviction between 0 and 1"`
	RiskUSD               float64 `json:"risk_usd,omitempty" description:"estimated loss in USD if the stop is hit"`
	Justification         string  `json:"justification,omitempty" description:"short reasoning for the action"`
}

// batchContract is the oracle contract for multi-symbol mode: exactly one
// decision per candidate symbol.
type batchContract struct {
	Decisions []decisionContract `json:"decisions" description:"exactly one decision per candidate symbol"`
	Reasoning string             `json:"reasoning,omitempty" description:"overall market read"`
}

// GetFullDecision implements the end-to-end oracle flow.
func (e *BasicExecutor) GetFullDecision(ctx context.Context, input *Context) (*FullDecision, error) {
	if e == nil || e.renderer == nil {
		return nil, errors.New("executor: not initialised")
	}
	if input == nil {
		return nil, errors.New("executor: input context is required")
	}

	promptStr, err := e.renderer.Render(buildPromptInputs(e.cfg, input))
	if err != nil {
		return nil, err
	}

	req := &llm.ChatRequest{
		// Model left empty to use the client's default.
		Messages: []llm.Message{
			{Role: "system", Content: promptStr},
		},
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.DecisionTimeout)
	defer cancel()

	var decisions []Decision
	reasoning := ""
	if e.cfg.BatchDecisions {
		var out batchContract
		if _, err := e.llm.ChatStructured(callCtx, req, &out); err != nil {
			return &FullDecision{UserPrompt: promptStr, Timestamp: time.Now()}, err
		}
		decisions = mapContracts(out.Decisions)
		reasoning = out.Reasoning
	} else {
		var out decisionContract
		if _, err := e.llm.ChatStructured(callCtx, req, &out); err != nil {
			return &FullDecision{UserPrompt: promptStr, Timestamp: time.Now()}, err
		}
		decisions = mapContracts([]decisionContract{out})
		reasoning = out.Justification
	}

	full := &FullDecision{
		UserPrompt: promptStr,
		Decisions:  decisions,
		Reasoning:  reasoning,
		Timestamp:  time.Now(),
	}
	if err := ValidateDecisions(e.cfg, input, decisions); err != nil {
		return full, err
	}

	e.recordConversation(ctx, promptStr, decisions)
	return full, nil
}

func (e *BasicExecutor) recordConversation(ctx context.Context, prompt string, decisions []Decision) {
	payload, err := json.Marshal(decisions)
	if err != nil {
		payload = []byte("{}")
	}
	rec := ConversationRecord{
		Prompt:    prompt,
		Response:  string(payload),
		Timestamp: time.Now(),
		Topic:     "decision",
	}
	if err := e.conversations.RecordConversation(ctx, rec); err != nil {
		logx.WithContext(ctx).Slowf("executor: record conversation: %v", err)
	}
}

func mapContracts(contracts []decisionContract) []Decision {
	decisions := make([]Decision, 0, len(contracts))
	for _, c := range contracts {
		decisions = append(decisions, Decision{
			Symbol:                c.Symbol,
			Signal:                c.Signal,
			Quantity:              c.Quantity,
			Cost:                  c.Cost,
			Leverage:              c.Leverage,
			StopLoss:              c.StopLoss,
			ProfitTarget:          c.ProfitTarget,
			InvalidationCondition: c.InvalidationCondition,
			Confidence:            c.Confidence,
			RiskUSD:               c.RiskUSD,
			Justification:         c.Justification,
		})
	}
	return decisions
}
