package reporting

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"equity-risk-engine/internal/risk"
	"equity-risk-engine/internal/store"
)

// ConsoleReporter renders risk status and audit history as terminal tables
type ConsoleReporter struct{}

// NewConsoleReporter creates a new console reporter
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{}
}

// PrintRiskStatus renders the account risk snapshot
func (r *ConsoleReporter) PrintRiskStatus(status *risk.Status) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("RISK STATUS")
	t.SetStyle(table.StyleRounded)

	mode := "margin-eligible"
	if status.CashAccountMode {
		mode = "cash account"
	}

	t.AppendRows([]table.Row{
		{"🏦 Account", status.AccountID},
		{"💰 Balance", fmt.Sprintf("$%.2f", status.Balance)},
		{"💵 Settled Cash", fmt.Sprintf("$%.2f", status.SettledCash)},
		{"🔧 Mode", mode},
	})

	t.AppendSeparator()

	t.AppendRows([]table.Row{
		{"📊 Day Trades", fmt.Sprintf("%d of %d", status.DayTradesUsed, status.DayTradeLimit)},
		{"📊 Trades Today", fmt.Sprintf("%d of %d", status.DailyTrades, status.DailyLimit)},
		{"📊 Trades This Week", fmt.Sprintf("%d of %d", status.WeeklyTrades, status.WeeklyLimit)},
	})

	t.AppendSeparator()

	breaker := "✅ inactive"
	if status.BreakerActive {
		breaker = fmt.Sprintf("🚨 ACTIVE (%s remaining)", status.BreakerCooldown.Round(time.Second))
	}
	t.AppendRows([]table.Row{
		{"⚡ Circuit Breaker", breaker},
		{"🌐 Market Regime", string(status.MarketRegime)},
	})

	if status.Degraded {
		t.AppendSeparator()
		t.AppendRow(table.Row{"⚠️ Degraded", "some fields served from stale or missing data"})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 20, WidthMax: 20, Align: text.AlignLeft},
		{Number: 2, WidthMin: 30, WidthMax: 45, Align: text.AlignLeft},
	})

	t.Render()
	fmt.Println()
}

// PrintAuditLogs renders recent execution audit records, newest first
func (r *ConsoleReporter) PrintAuditLogs(records []store.AuditRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("EXECUTION AUDIT LOG")
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{"Time", "Symbol", "Side", "Status", "Message"})
	for _, rec := range records {
		t.AppendRow(table.Row{
			rec.CreatedAt.Format("2006-01-02 15:04:05"),
			rec.Symbol,
			rec.Side,
			statusBadge(rec.Status),
			rec.Message,
		})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, WidthMax: 60},
	})

	t.Render()
	fmt.Println()
}

func statusBadge(status string) string {
	switch status {
	case "SUCCESS":
		return "✅ " + status
	case "FAILED_ORDER", "FAILED_BROKER":
		return "❌ " + status
	default:
		return "🚫 " + status
	}
}
