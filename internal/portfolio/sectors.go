package portfolio

// sectorTable is a static symbol -> sector lookup. Symbols outside the table
// surface as a warning, not a failure, in the sector-exposure check.
var sectorTable = map[string]string{
	// Technology
	"AAPL": "Technology",
	"MSFT": "Technology",
	"GOOG": "Technology",
	"GOOGL": "Technology",
	"META": "Technology",
	"NVDA": "Technology",
	"AMD":  "Technology",
	"INTC": "Technology",
	"CRM":  "Technology",
	"ORCL": "Technology",

	// Consumer
	"AMZN": "Consumer",
	"TSLA": "Consumer",
	"HD":   "Consumer",
	"MCD":  "Consumer",
	"NKE":  "Consumer",
	"SBUX": "Consumer",
	"WMT":  "Consumer",
	"COST": "Consumer",

	// Financials
	"JPM": "Financials",
	"BAC": "Financials",
	"WFC": "Financials",
	"GS":  "Financials",
	"MS":  "Financials",
	"V":   "Financials",
	"MA":  "Financials",

	// Healthcare
	"JNJ":  "Healthcare",
	"UNH":  "Healthcare",
	"PFE":  "Healthcare",
	"ABBV": "Healthcare",
	"MRK":  "Healthcare",
	"LLY":  "Healthcare",

	// Energy
	"XOM": "Energy",
	"CVX": "Energy",
	"COP": "Energy",
	"SLB": "Energy",

	// Industrials
	"BA":  "Industrials",
	"CAT": "Industrials",
	"GE":  "Industrials",
	"UPS": "Industrials",

	// Communications
	"T":    "Communications",
	"VZ":   "Communications",
	"DIS":  "Communications",
	"NFLX": "Communications",

	// Broad-market ETFs
	"SPY": "Index",
	"QQQ": "Index",
	"DIA": "Index",
	"IWM": "Index",
	"VTI": "Index",
	"VOO": "Index",
}

// SectorOf returns the symbol's sector, or "" when unknown.
func SectorOf(symbol string) string {
	return sectorTable[symbol]
}

// isIndexETF reports whether the symbol is a broad-market index fund.
func isIndexETF(symbol string) bool {
	return sectorTable[symbol] == "Index"
}
