package store

import (
	"context"
	"time"
)

// SettlementRecord tracks one trade's cash settlement. Amount is signed:
// positive for sell proceeds, negative for buy cost.
type SettlementRecord struct {
	TradeRef        string    `json:"trade_ref"`
	AccountID       string    `json:"account_id"`
	Symbol          string    `json:"symbol"`
	TradeDate       time.Time `json:"trade_date"`
	SettlementDate  time.Time `json:"settlement_date"`
	Amount          float64   `json:"amount"`
	UnsettledFunded bool      `json:"unsettled_funded"` // buy paid with unsettled proceeds
	IsSettled       bool      `json:"is_settled"`
}

// DayTradeRecord is an append-only record of a same-day round trip.
type DayTradeRecord struct {
	AccountID string    `json:"account_id"`
	Symbol    string    `json:"symbol"`
	BuyRef    string    `json:"buy_ref"`
	SellRef   string    `json:"sell_ref"`
	TradeDate time.Time `json:"trade_date"`
}

// TradeFrequencyRecord holds per-day and aggregated per-week trade counts.
type TradeFrequencyRecord struct {
	AccountID   string    `json:"account_id"`
	Day         time.Time `json:"day"`
	DailyCount  int       `json:"daily_count"`
	WeekStart   time.Time `json:"week_start"`
	WeeklyCount int       `json:"weekly_count"`
}

// AuditRecord is the persisted form of an execution audit log. Payload holds
// the full JSON-encoded log so it round-trips losslessly; the indexed columns
// exist for querying.
type AuditRecord struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	Payload   []byte    `json:"payload"`
}

// Store persists the compliance and audit record shapes. Implementations must
// make read-modify-write operations (sweep, frequency increments) atomic per
// account.
type Store interface {
	RecordSettlement(ctx context.Context, rec SettlementRecord) error
	UnsettledSettlements(ctx context.Context, accountID string) ([]SettlementRecord, error)
	// SweepSettlements flips every record whose settlement date has passed to
	// settled and returns how many were flipped.
	SweepSettlements(ctx context.Context, accountID string, now time.Time) (int, error)

	RecordDayTrade(ctx context.Context, rec DayTradeRecord) error
	CountDayTradesSince(ctx context.Context, accountID string, cutoff time.Time) (int, error)

	// IncrementTradeCounts bumps today's counter, creating the row lazily.
	IncrementTradeCounts(ctx context.Context, accountID string, day time.Time) error
	TradeCounts(ctx context.Context, accountID string, day time.Time) (TradeFrequencyRecord, error)

	RecordAudit(ctx context.Context, rec AuditRecord) error
	AuditLogs(ctx context.Context, accountID string, limit int) ([]AuditRecord, error)

	Close() error
}

// DayKey truncates a time to its calendar day in local time.
func DayKey(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WeekStart returns the Monday of the week containing t.
func WeekStart(t time.Time) time.Time {
	day := DayKey(t)
	offset := (int(day.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	return day.AddDate(0, 0, -offset)
}
