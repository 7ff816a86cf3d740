package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	executorpkg "quantra/pkg/executor"
	"quantra/pkg/manager"
	"quantra/pkg/symbols"
	"quantra/pkg/trading"
)

// Postgres implements TradeStore on a Postgres connection.
type Postgres struct {
	conn sqlx.SqlConn
}

// NewPostgres opens a TradeStore over the given DSN.
func NewPostgres(dsn string) *Postgres {
	return &Postgres{conn: sqlx.NewSqlConn("pgx", dsn)}
}

// NewPostgresWithConn wraps an existing connection, used by tests.
func NewPostgresWithConn(conn sqlx.SqlConn) *Postgres {
	return &Postgres{conn: conn}
}

const schema = `
CREATE TABLE IF NOT EXISTS trade_plans (
    id BIGSERIAL PRIMARY KEY,
    trader_id TEXT NOT NULL,
    symbol TEXT NOT NULL,
    signal TEXT NOT NULL,
    leverage INT NOT NULL DEFAULT 0,
    quantity DOUBLE PRECISION NOT NULL DEFAULT 0,
    stop_loss DOUBLE PRECISION NOT NULL DEFAULT 0,
    take_profit DOUBLE PRECISION NOT NULL DEFAULT 0,
    confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
    risk_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
    justification TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_trade_plans_symbol_created
    ON trade_plans (symbol, created_at DESC);

CREATE TABLE IF NOT EXISTS equity_snapshots (
    id BIGSERIAL PRIMARY KEY,
    trader_id TEXT NOT NULL,
    total_equity DOUBLE PRECISION NOT NULL,
    available_balance DOUBLE PRECISION NOT NULL,
    total_return_pct DOUBLE PRECISION NOT NULL,
    sharpe_ratio DOUBLE PRECISION NOT NULL,
    position_count INT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS conversations (
    id BIGSERIAL PRIMARY KEY,
    topic TEXT NOT NULL DEFAULT '',
    prompt TEXT NOT NULL,
    response TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// EnsureSchema creates the backing tables when they do not exist yet.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.conn.ExecCtx(ctx, schema); err != nil {
		return fmt.Errorf("store: ensure schema: %w", err)
	}
	return nil
}

func (p *Postgres) RecordPlan(ctx context.Context, traderID string, plan trading.TradePlan) error {
	createdAt := plan.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	const q = `
INSERT INTO trade_plans
    (trader_id, symbol, signal, leverage, quantity, stop_loss, take_profit, confidence, risk_usd, justification, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := p.conn.ExecCtx(ctx, q,
		traderID, symbols.Normalize(plan.Symbol), plan.Signal, plan.Leverage, plan.Quantity,
		plan.StopLoss, plan.TakeProfit, plan.Confidence, plan.RiskUSD, plan.Justification, createdAt)
	if err != nil {
		return fmt.Errorf("store: record plan for %s: %w", plan.Symbol, err)
	}
	return nil
}

func (p *Postgres) RecordEquity(ctx context.Context, snapshot manager.EquitySnapshot) error {
	createdAt := snapshot.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	const q = `
INSERT INTO equity_snapshots
    (trader_id, total_equity, available_balance, total_return_pct, sharpe_ratio, position_count, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := p.conn.ExecCtx(ctx, q,
		snapshot.TraderID, snapshot.TotalEquity, snapshot.AvailableBalance,
		snapshot.TotalReturnPct, snapshot.SharpeRatio, snapshot.PositionCount, createdAt)
	if err != nil {
		return fmt.Errorf("store: record equity for %s: %w", snapshot.TraderID, err)
	}
	return nil
}

func (p *Postgres) RecordConversation(ctx context.Context, rec executorpkg.ConversationRecord) error {
	createdAt := rec.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	const q = `
INSERT INTO conversations (topic, prompt, response, created_at)
VALUES ($1, $2, $3, $4)`
	if _, err := p.conn.ExecCtx(ctx, q, rec.Topic, rec.Prompt, rec.Response, createdAt); err != nil {
		return fmt.Errorf("store: record conversation: %w", err)
	}
	return nil
}

type planRow struct {
	Symbol        string         `db:"symbol"`
	Signal        string         `db:"signal"`
	Leverage      int            `db:"leverage"`
	Quantity      float64        `db:"quantity"`
	StopLoss      float64        `db:"stop_loss"`
	TakeProfit    float64        `db:"take_profit"`
	Confidence    float64        `db:"confidence"`
	RiskUSD       float64        `db:"risk_usd"`
	Justification sql.NullString `db:"justification"`
	CreatedAt     time.Time      `db:"created_at"`
}

// LatestPlans returns the most recent plan per base symbol, filtered to the
// requested symbols when the list is non-empty.
func (p *Postgres) LatestPlans(ctx context.Context, syms []string) (map[symbols.Base]trading.TradePlan, error) {
	const q = `
SELECT DISTINCT ON (symbol)
    symbol, signal, leverage, quantity, stop_loss, take_profit, confidence, risk_usd, justification, created_at
FROM trade_plans
ORDER BY symbol, created_at DESC`

	var rows []planRow
	if err := p.conn.QueryRowsCtx(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("store: latest plans: %w", err)
	}

	var want map[symbols.Base]bool
	if len(syms) > 0 {
		want = make(map[symbols.Base]bool, len(syms))
		for _, s := range syms {
			want[symbols.BaseOf(s)] = true
		}
	}

	out := make(map[symbols.Base]trading.TradePlan, len(rows))
	for _, row := range rows {
		base := symbols.BaseOf(row.Symbol)
		if want != nil && !want[base] {
			continue
		}
		plan := trading.TradePlan{
			Symbol:     row.Symbol,
			Signal:     row.Signal,
			Leverage:   row.Leverage,
			Quantity:   row.Quantity,
			StopLoss:   row.StopLoss,
			TakeProfit: row.TakeProfit,
			Confidence: row.Confidence,
			RiskUSD:    row.RiskUSD,
			CreatedAt:  row.CreatedAt,
		}
		if row.Justification.Valid {
			plan.Justification = row.Justification.String
		}
		out[base] = plan
	}
	return out, nil
}
