package types

// Response is the uniform API envelope. Failures are reported in-band with
// success=false and an HTTP 200 status.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CycleRequest triggers one decision cycle. TraderID defaults to the first
// configured trader when omitted.
type CycleRequest struct {
	TraderID string `json:"trader_id,optional"`
}

// TraderQuery selects a trader on read endpoints.
type TraderQuery struct {
	TraderID string `form:"trader_id,optional"`
}

// CycleResponse summarizes a completed decision cycle.
type CycleResponse struct {
	TraderID    string           `json:"trader_id"`
	Timestamp   string           `json:"timestamp"`
	Reasoning   string           `json:"reasoning,omitempty"`
	Decisions   any              `json:"decisions"`
	Executions  []ExecutionEntry `json:"executions"`
	JournalPath string           `json:"journal_path,omitempty"`
}

// ExecutionEntry is the per-symbol outcome within a cycle.
type ExecutionEntry struct {
	Symbol           string   `json:"symbol"`
	Signal           string   `json:"signal"`
	Success          bool     `json:"success"`
	OrderID          int64    `json:"order_id,omitempty"`
	ExecutedPrice    float64  `json:"executed_price,omitempty"`
	ExecutedQuantity float64  `json:"executed_quantity,omitempty"`
	Error            string   `json:"error,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
}
