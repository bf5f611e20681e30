// Package calendar provides trading-day arithmetic for the Indian market.
//
// All date handling happens in a single fixed timezone (IST) so that
// day-boundary comparisons cannot drift by one day depending on the host
// clock.
package calendar

import (
	"regexp"
	"strings"
	"time"

	"shoonya-screener/internal/errors"
)

// ISTLocation is the timezone for Indian markets.
var ISTLocation *time.Location

func init() {
	var err error
	ISTLocation, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		ISTLocation = time.FixedZone("IST", 5*60*60+30*60)
	}
}

// HolidaySet is a set of market holidays keyed by YYYY-MM-DD.
type HolidaySet map[string]struct{}

// NewHolidaySet builds a HolidaySet from YYYY-MM-DD date strings.
// Unparseable entries are dropped; holidays are loaded once at startup
// and read-only afterwards.
func NewHolidaySet(dates []string) HolidaySet {
	set := make(HolidaySet, len(dates))
	for _, d := range dates {
		if _, err := time.ParseInLocation(isoLayout, d, ISTLocation); err == nil {
			set[d] = struct{}{}
		}
	}
	return set
}

// Contains reports whether the date is a listed holiday.
func (h HolidaySet) Contains(date time.Time) bool {
	_, ok := h[date.In(ISTLocation).Format(isoLayout)]
	return ok
}

const (
	isoLayout     = "2006-01-02"
	shoonyaLayout = "02-Jan-2006"
)

var (
	isoPattern     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	shoonyaPattern = regexp.MustCompile(`^\d{2}-[A-Z]{3}-\d{4}$`)
)

// ParseDate parses a date in ISO (YYYY-MM-DD) or broker (DD-MMM-YYYY)
// encoding and normalizes it to midnight IST. It never silently
// defaults: unparseable input returns an InvalidDateError.
func ParseDate(s string) (time.Time, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return time.Time{}, errors.NewInvalidDateError(s, "must be a non-empty string")
	}

	if isoPattern.MatchString(trimmed) {
		if t, err := time.ParseInLocation(isoLayout, trimmed, ISTLocation); err == nil {
			return t, nil
		}
	}

	if shoonyaPattern.MatchString(trimmed) {
		// Broker months arrive upper-cased (28-AUG-2025); Go's layout
		// expects title case.
		normalized := trimmed[:4] + strings.ToLower(trimmed[4:6]) + trimmed[6:]
		if t, err := time.ParseInLocation(shoonyaLayout, normalized, ISTLocation); err == nil {
			return t, nil
		}
	}

	return time.Time{}, errors.NewInvalidDateError(s, "expected format YYYY-MM-DD or DD-MMM-YYYY")
}

// StartOfDay truncates a time to midnight IST.
func StartOfDay(t time.Time) time.Time {
	ist := t.In(ISTLocation)
	return time.Date(ist.Year(), ist.Month(), ist.Day(), 0, 0, 0, 0, ISTLocation)
}

// SameDay reports whether two times fall on the same IST calendar day.
func SameDay(a, b time.Time) bool {
	return StartOfDay(a).Equal(StartOfDay(b))
}

// IsTradingDay reports whether a date is a trading day: not a Saturday
// or Sunday in IST, and not a listed holiday.
func IsTradingDay(date time.Time, holidays HolidaySet) bool {
	ist := date.In(ISTLocation)
	if wd := ist.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !holidays.Contains(ist)
}

// CountTradingDays returns the inclusive count of trading days in
// [start, end]. Returns ErrInvalidRange when start is after end.
func CountTradingDays(start, end time.Time, holidays HolidaySet) (int, error) {
	from := StartOfDay(start)
	to := StartOfDay(end)
	if from.After(to) {
		return 0, errors.ErrInvalidRange
	}

	count := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if IsTradingDay(d, holidays) {
			count++
		}
	}
	return count, nil
}
