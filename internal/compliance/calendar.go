package compliance

import "time"

// isBusinessDay reports whether the day is Monday through Friday. Exchange
// holidays are not modeled yet, so settlements land a day early around them.
func isBusinessDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// settlementDate walks forward one calendar day at a time until businessDays
// business days have been counted. A Friday trade with T+2 settles the
// following Tuesday.
func settlementDate(tradeDate time.Time, businessDays int) time.Time {
	date := dayOf(tradeDate)
	counted := 0
	for counted < businessDays {
		date = date.AddDate(0, 0, 1)
		if isBusinessDay(date) {
			counted++
		}
	}
	return date
}

// lookbackCutoff walks backward from now until businessDays business days
// (including today, if it is one) have accumulated, and returns the earliest
// date still inside the window.
func lookbackCutoff(now time.Time, businessDays int) time.Time {
	date := dayOf(now)
	counted := 0
	for {
		if isBusinessDay(date) {
			counted++
			if counted >= businessDays {
				return date
			}
		}
		date = date.AddDate(0, 0, -1)
	}
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
