package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const dayFormat = "2006-01-02"

// SQLiteStore persists records in a single SQLite database. Row-level
// read-modify-write statements keep per-account counters atomic under
// concurrent validations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and applies the schema.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// A single writer avoids SQLITE_BUSY under concurrent validations.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) RecordSettlement(ctx context.Context, rec SettlementRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settlements
		(trade_ref, account_id, symbol, trade_date, settlement_date, amount, unsettled_funded, is_settled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TradeRef, rec.AccountID, rec.Symbol, rec.TradeDate, rec.SettlementDate,
		rec.Amount, rec.UnsettledFunded, rec.IsSettled,
	)
	return err
}

func (s *SQLiteStore) UnsettledSettlements(ctx context.Context, accountID string) ([]SettlementRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trade_ref, account_id, symbol, trade_date, settlement_date, amount, unsettled_funded, is_settled
		FROM settlements
		WHERE account_id = ? AND is_settled = 0
		ORDER BY settlement_date`,
		accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []SettlementRecord
	for rows.Next() {
		var rec SettlementRecord
		if err := rows.Scan(&rec.TradeRef, &rec.AccountID, &rec.Symbol, &rec.TradeDate,
			&rec.SettlementDate, &rec.Amount, &rec.UnsettledFunded, &rec.IsSettled); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *SQLiteStore) SweepSettlements(ctx context.Context, accountID string, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE settlements SET is_settled = 1
		WHERE account_id = ? AND is_settled = 0 AND settlement_date <= ?`,
		accountID, now,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLiteStore) RecordDayTrade(ctx context.Context, rec DayTradeRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO day_trades (account_id, symbol, buy_ref, sell_ref, trade_date)
		VALUES (?, ?, ?, ?, ?)`,
		rec.AccountID, rec.Symbol, rec.BuyRef, rec.SellRef, rec.TradeDate,
	)
	return err
}

func (s *SQLiteStore) CountDayTradesSince(ctx context.Context, accountID string, cutoff time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM day_trades
		WHERE account_id = ? AND trade_date >= ?`,
		accountID, cutoff,
	).Scan(&count)
	return count, err
}

func (s *SQLiteStore) IncrementTradeCounts(ctx context.Context, accountID string, day time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trade_frequency (account_id, day, daily_count, week_start)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(account_id, day) DO UPDATE SET daily_count = daily_count + 1`,
		accountID, DayKey(day).Format(dayFormat), WeekStart(day).Format(dayFormat),
	)
	return err
}

func (s *SQLiteStore) TradeCounts(ctx context.Context, accountID string, day time.Time) (TradeFrequencyRecord, error) {
	rec := TradeFrequencyRecord{
		AccountID: accountID,
		Day:       DayKey(day),
		WeekStart: WeekStart(day),
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN day = ? THEN daily_count ELSE 0 END), 0),
		       COALESCE(SUM(daily_count), 0)
		FROM trade_frequency
		WHERE account_id = ? AND week_start = ?`,
		rec.Day.Format(dayFormat), accountID, rec.WeekStart.Format(dayFormat),
	).Scan(&rec.DailyCount, &rec.WeeklyCount)
	if err != nil && err != sql.ErrNoRows {
		return rec, err
	}
	return rec, nil
}

func (s *SQLiteStore) RecordAudit(ctx context.Context, rec AuditRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, account_id, symbol, side, status, message, created_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.AccountID, rec.Symbol, rec.Side, rec.Status, rec.Message,
		rec.CreatedAt, string(rec.Payload),
	)
	return err
}

func (s *SQLiteStore) AuditLogs(ctx context.Context, accountID string, limit int) ([]AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, symbol, side, status, message, created_at, payload
		FROM audit_logs
		WHERE account_id = ?
		ORDER BY created_at DESC
		LIMIT ?`,
		accountID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []AuditRecord
	for rows.Next() {
		var rec AuditRecord
		var payload string
		if err := rows.Scan(&rec.ID, &rec.AccountID, &rec.Symbol, &rec.Side,
			&rec.Status, &rec.Message, &rec.CreatedAt, &payload); err != nil {
			return nil, err
		}
		rec.Payload = []byte(payload)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
