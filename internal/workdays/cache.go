// Package workdays provides the working-day cache and the volatility
// scaling built on top of it.
//
// A single Cache instance is constructed per process and injected where
// needed; tests construct fresh instances.
package workdays

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"shoonya-screener/internal/calendar"
	"shoonya-screener/internal/errors"
	"shoonya-screener/internal/models"
)

// Cache memoizes trading-day counts: the count for the trailing year
// (T in the SD formula) and one count per distinct expiry string (N).
// Entries are computed once under a per-key lock; concurrent callers of
// the same key wait for the first computation.
type Cache struct {
	holidays calendar.HolidaySet
	logger   zerolog.Logger

	// overridable in tests
	now     func() time.Time
	countFn func(start, end time.Time, holidays calendar.HolidaySet) (int, error)

	mu       sync.Mutex
	lastYear *entry
	expiries map[string]*entry
}

type entry struct {
	once sync.Once
	days int
}

// New creates a cache over the given holiday set.
func New(holidays calendar.HolidaySet, logger zerolog.Logger) *Cache {
	return &Cache{
		holidays: holidays,
		logger:   logger,
		now:      time.Now,
		countFn:  calendar.CountTradingDays,
		expiries: make(map[string]*entry),
	}
}

// TradingDaysLastYear returns the number of trading days in the
// trailing 365 days. Computed once per process lifetime.
func (c *Cache) TradingDaysLastYear() int {
	c.mu.Lock()
	if c.lastYear == nil {
		c.lastYear = &entry{}
	}
	e := c.lastYear
	c.mu.Unlock()

	e.once.Do(func() {
		today := c.now().In(calendar.ISTLocation)
		oneYearAgo := today.AddDate(-1, 0, 0)

		days, err := c.countFn(oneYearAgo, today, c.holidays)
		if err != nil {
			c.logger.Error().Err(err).Msg("Failed to count trading days in trailing year")
			return
		}
		e.days = days
		c.logger.Info().Int("days", days).Msg("Cached trading days in trailing year")
	})

	return e.days
}

// TradingDaysToExpiry returns the number of trading days from today to
// the expiry, inclusive. Invalid expiry strings are recorded as zero
// and logged, never propagated: they occur mid-stream across many
// instruments and must not abort the batch. Cached per distinct expiry
// string.
func (c *Cache) TradingDaysToExpiry(expiry string) int {
	c.mu.Lock()
	e, ok := c.expiries[expiry]
	if !ok {
		e = &entry{}
		c.expiries[expiry] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		e.days = c.computeToExpiry(expiry)
	})

	return e.days
}

// Prepopulate validates and computes entries for all given expiries up
// front so that per-tick lookups never pay parse cost. Failures are
// isolated per entry.
func (c *Cache) Prepopulate(expiries []string) {
	c.logger.Info().Int("count", len(expiries)).Msg("Pre-populating expiry cache")

	valid := 0
	for _, expiry := range expiries {
		if c.TradingDaysToExpiry(expiry) > 0 {
			valid++
		}
	}

	c.logger.Info().
		Int("total", len(expiries)).
		Int("nonzero", valid).
		Msg("Expiry cache populated")
}

func (c *Cache) computeToExpiry(expiry string) int {
	expiryDate, err := c.validateExpiry(expiry)
	if err != nil {
		c.logger.Warn().Err(err).Str("expiry", expiry).Msg("Invalid expiry date, recording zero")
		return 0
	}

	today := calendar.StartOfDay(c.now())
	if calendar.SameDay(today, expiryDate) || expiryDate.Before(today) {
		return 0
	}

	days, err := c.countFn(today, expiryDate, c.holidays)
	if err != nil {
		c.logger.Warn().Err(err).Str("expiry", expiry).Msg("Failed to count days to expiry, recording zero")
		return 0
	}
	return days
}

// validateExpiry parses the expiry string and rejects dates outside a
// sanity window of one year in the past to five years in the future,
// guarding against corrupt universe data.
func (c *Cache) validateExpiry(expiry string) (time.Time, error) {
	parsed, err := calendar.ParseDate(expiry)
	if err != nil {
		return time.Time{}, err
	}

	now := c.now().In(calendar.ISTLocation)
	oneYearAgo := now.AddDate(-1, 0, 0)
	fiveYearsOut := now.AddDate(5, 0, 0)

	if parsed.Before(calendar.StartOfDay(oneYearAgo)) || parsed.After(fiveYearsOut) {
		return time.Time{}, errors.NewInvalidDateError(expiry, "outside sanity window (-1y to +5y)")
	}
	return parsed, nil
}

// LegacySD computes the standard deviation scaling av / sqrt(T/N),
// where T is the trailing-year trading-day count and N the trading
// days to expiry. Returns 0 when av, T or N is non-positive.
func (c *Cache) LegacySD(av float64, expiry string) float64 {
	if av <= 0 {
		return 0
	}

	t := c.TradingDaysLastYear()
	n := c.TradingDaysToExpiry(expiry)
	if t == 0 || n == 0 {
		return 0
	}

	return av / math.Sqrt(float64(t)/float64(n))
}

// Sigmas runs the full volatility-scaling pipeline for one contract:
//
//	base = av / sqrt(T/N)
//	N    = base * multiplier
//	X    = N / sqrt(T/N)
//	XI   = N + X for calls, N - X for puts
//
// The asymmetry is intentional: calls get a wider confidence band
// upward, puts a tighter one downward. All outputs are on a 0-100
// percent scale.
func (c *Cache) Sigmas(av, multiplier float64, expiry string, side models.OptionSide) models.Sigmas {
	base := c.LegacySD(av, expiry)
	sigmaN := base * multiplier

	var sigmaX float64
	if sigmaN > 0 {
		t := c.TradingDaysLastYear()
		n := c.TradingDaysToExpiry(expiry)
		if t > 0 && n > 0 {
			sigmaX = sigmaN / math.Sqrt(float64(t)/float64(n))
		}
	}

	sigmaXI := sigmaN + sigmaX
	if side == models.OptionPut {
		sigmaXI = sigmaN - sigmaX
	}

	return models.Sigmas{Base: base, N: sigmaN, X: sigmaX, XI: sigmaXI}
}

// YearsToExpiry returns time to expiry as a fraction of the trading
// year: N / T. Returns 0 when either count is zero.
func (c *Cache) YearsToExpiry(expiry string) float64 {
	t := c.TradingDaysLastYear()
	n := c.TradingDaysToExpiry(expiry)
	if t == 0 {
		return 0
	}
	return float64(n) / float64(t)
}
