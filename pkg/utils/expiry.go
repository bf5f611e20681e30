package utils

import (
	"sort"
	"strings"
	"time"

	"shoonya-screener/internal/calendar"
)

// ExpirySuffix returns the "MMM-YYYY" suffix used to pick a contract
// month, e.g. "AUG-2025". Broker expiries are stored as DD-MMM-YYYY,
// so a LIKE match on this suffix selects one monthly series.
func ExpirySuffix(t time.Time) string {
	return strings.ToUpper(t.In(calendar.ISTLocation).Format("Jan-2006"))
}

// CurrentExpirySuffix returns the suffix for the current month.
func CurrentExpirySuffix() string {
	return ExpirySuffix(time.Now())
}

// NextExpirySuffix returns the suffix for the following month.
func NextExpirySuffix() string {
	return ExpirySuffix(time.Now().AddDate(0, 1, 0))
}

// TodayParam returns today's date in the DDMMYYYY form the exchange's
// volatility download endpoint expects.
func TodayParam() string {
	return time.Now().In(calendar.ISTLocation).Format("02012006")
}

// SortExpiries orders broker-encoded expiry strings chronologically.
// Unparseable entries sort last, preserving their relative order.
func SortExpiries(expiries []string) {
	sort.SliceStable(expiries, func(i, j int) bool {
		a, errA := calendar.ParseDate(expiries[i])
		b, errB := calendar.ParseDate(expiries[j])
		if errA != nil {
			return false
		}
		if errB != nil {
			return true
		}
		return a.Before(b)
	})
}
