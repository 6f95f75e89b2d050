package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests and the paper-trading CLI.
// A single mutex gives it the same atomicity guarantees as the SQLite store.
type MemoryStore struct {
	mu          sync.Mutex
	settlements map[string][]SettlementRecord // by account
	dayTrades   map[string][]DayTradeRecord
	frequency   map[string]map[string]*TradeFrequencyRecord // account -> day key
	audits      map[string][]AuditRecord
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		settlements: make(map[string][]SettlementRecord),
		dayTrades:   make(map[string][]DayTradeRecord),
		frequency:   make(map[string]map[string]*TradeFrequencyRecord),
		audits:      make(map[string][]AuditRecord),
	}
}

func (s *MemoryStore) RecordSettlement(_ context.Context, rec SettlementRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settlements[rec.AccountID] = append(s.settlements[rec.AccountID], rec)
	return nil
}

func (s *MemoryStore) UnsettledSettlements(_ context.Context, accountID string) ([]SettlementRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var recs []SettlementRecord
	for _, rec := range s.settlements[accountID] {
		if !rec.IsSettled {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].SettlementDate.Before(recs[j].SettlementDate)
	})
	return recs, nil
}

func (s *MemoryStore) SweepSettlements(_ context.Context, accountID string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flipped := 0
	recs := s.settlements[accountID]
	for i := range recs {
		if !recs[i].IsSettled && !recs[i].SettlementDate.After(now) {
			recs[i].IsSettled = true
			flipped++
		}
	}
	return flipped, nil
}

func (s *MemoryStore) RecordDayTrade(_ context.Context, rec DayTradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dayTrades[rec.AccountID] = append(s.dayTrades[rec.AccountID], rec)
	return nil
}

func (s *MemoryStore) CountDayTradesSince(_ context.Context, accountID string, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, rec := range s.dayTrades[accountID] {
		if !rec.TradeDate.Before(cutoff) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) IncrementTradeCounts(_ context.Context, accountID string, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	days := s.frequency[accountID]
	if days == nil {
		days = make(map[string]*TradeFrequencyRecord)
		s.frequency[accountID] = days
	}

	key := DayKey(day).Format(dayFormat)
	rec := days[key]
	if rec == nil {
		rec = &TradeFrequencyRecord{
			AccountID: accountID,
			Day:       DayKey(day),
			WeekStart: WeekStart(day),
		}
		days[key] = rec
	}
	rec.DailyCount++
	return nil
}

func (s *MemoryStore) TradeCounts(_ context.Context, accountID string, day time.Time) (TradeFrequencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := TradeFrequencyRecord{
		AccountID: accountID,
		Day:       DayKey(day),
		WeekStart: WeekStart(day),
	}
	for _, rec := range s.frequency[accountID] {
		if rec.WeekStart.Equal(out.WeekStart) {
			out.WeeklyCount += rec.DailyCount
			if rec.Day.Equal(out.Day) {
				out.DailyCount = rec.DailyCount
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) RecordAudit(_ context.Context, rec AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits[rec.AccountID] = append(s.audits[rec.AccountID], rec)
	return nil
}

func (s *MemoryStore) AuditLogs(_ context.Context, accountID string, limit int) ([]AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.audits[accountID]
	out := make([]AuditRecord, len(recs))
	copy(out, recs)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
