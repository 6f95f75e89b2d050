package types

import "time"

// SignalType is the action a strategy proposes for a symbol.
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

// Actionable reports whether the signal should reach the order pipeline.
func (s SignalType) Actionable() bool {
	return s == SignalBuy || s == SignalSell
}

// OrderType selects how an order is priced at the broker.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// TradingSignal is what strategy generators hand to the execution pipeline.
type TradingSignal struct {
	Type       SignalType `json:"type"`
	Symbol     string     `json:"symbol"`
	Price      float64    `json:"price"`
	Quantity   int        `json:"quantity"`
	Confidence float64    `json:"confidence"` // 0.0 - 1.0
	StopLoss   float64    `json:"stop_loss,omitempty"`
	TakeProfit float64    `json:"take_profit,omitempty"`
	Strategy   string     `json:"strategy,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// ExecutionContext carries per-request execution settings alongside a signal.
type ExecutionContext struct {
	AccountID  string    `json:"account_id"`
	Strategy   string    `json:"strategy"`
	DryRun     bool      `json:"dry_run"`
	OrderType  OrderType `json:"order_type"`
	LimitPrice float64   `json:"limit_price,omitempty"`
}

// Position is a broker-reported open position.
type Position struct {
	Symbol      string  `json:"symbol"`
	Quantity    float64 `json:"quantity"`
	AvgPrice    float64 `json:"avg_price"`
	MarketPrice float64 `json:"market_price"`
}

// MarketValue returns the current notional value of the position.
func (p Position) MarketValue() float64 {
	return p.Quantity * p.MarketPrice
}

// AccountSummary is the broker-reported account state.
type AccountSummary struct {
	AccountID string  `json:"account_id"`
	Balance   float64 `json:"balance"`
	DailyPnL  float64 `json:"daily_pnl"`
	Equity    float64 `json:"equity"`
}

// OrderStatus is the broker's fill state for a placed order.
type OrderStatus string

const (
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusPending  OrderStatus = "PENDING"
	OrderStatusRejected OrderStatus = "REJECTED"
)

// Order is the broker's response to a placement request.
type Order struct {
	ID          string      `json:"id"`
	Symbol      string      `json:"symbol"`
	Side        SignalType  `json:"side"`
	Quantity    int         `json:"quantity"`
	FillPrice   float64     `json:"fill_price"`
	Status      OrderStatus `json:"status"`
	SubmittedAt time.Time   `json:"submitted_at"`
}
