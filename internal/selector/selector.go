package selector

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"shoonya-screener/internal/broker"
	"shoonya-screener/internal/models"
	"shoonya-screener/internal/pricing"
	"shoonya-screener/internal/workdays"
)

// collectTimeout bounds the snapshot collection. The broker is known to
// silently drop some acknowledgements, so hitting the timeout is not an
// error: whatever was collected is a valid result.
const collectTimeout = 3 * time.Second

// Config holds selector configuration.
type Config struct {
	// TickSlippage is subtracted from the best bid when computing sell
	// value.
	TickSlippage float64
	// RiskFreeRate feeds the Black-Scholes delta.
	RiskFreeRate float64
	// Timeout overrides the default collection timeout (tests).
	Timeout time.Duration
}

// Selector narrows an option chain and runs the one-shot
// subscribe / collect / unsubscribe exchange over a ticker connection.
type Selector struct {
	ticker  broker.Ticker
	cache   *workdays.Cache
	logger  zerolog.Logger
	timeout time.Duration

	slippage     float64
	riskFreeRate float64
}

// New creates a selector over an already connected ticker.
func New(ticker broker.Ticker, cache *workdays.Cache, cfg Config, logger zerolog.Logger) *Selector {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = collectTimeout
	}
	slippage := cfg.TickSlippage
	if slippage == 0 {
		slippage = 0.05
	}
	rate := cfg.RiskFreeRate
	if rate == 0 {
		rate = pricing.DefaultRiskFreeRate
	}

	return &Selector{
		ticker:       ticker,
		cache:        cache,
		logger:       logger,
		timeout:      timeout,
		slippage:     slippage,
		riskFreeRate: rate,
	}
}

// Narrow retains the one-sided tails of the chain: every PUT at or
// below the floor strike and every CALL at or above the ceiling strike.
//
// The floor strike is the nearest PUT strike at or below the floor
// bound (falling back to the lowest available); the ceiling strike is
// the nearest CALL strike at or above the ceiling bound (falling back
// to the highest available). The result is deliberately not a
// symmetric window: it keeps the cheap, deep strikes that sit near the
// expected move.
func Narrow(chain []models.Instrument, floorBound, ceilingBound float64) []models.Instrument {
	var putStrikes, callStrikes []float64
	for _, inst := range chain {
		switch inst.OptionType {
		case models.OptionPut:
			putStrikes = append(putStrikes, inst.StrikePrice)
		case models.OptionCall:
			callStrikes = append(callStrikes, inst.StrikePrice)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(putStrikes)))
	sort.Float64s(callStrikes)

	floorStrike, ok := firstAtOrBelow(putStrikes, floorBound)
	if !ok && len(putStrikes) > 0 {
		floorStrike = putStrikes[len(putStrikes)-1] // lowest available
		ok = true
	}
	hasPuts := ok

	ceilingStrike, ok := firstAtOrAbove(callStrikes, ceilingBound)
	if !ok && len(callStrikes) > 0 {
		ceilingStrike = callStrikes[len(callStrikes)-1] // highest available
		ok = true
	}
	hasCalls := ok

	var retained []models.Instrument
	for _, inst := range chain {
		switch inst.OptionType {
		case models.OptionPut:
			if hasPuts && inst.StrikePrice <= floorStrike {
				retained = append(retained, inst)
			}
		case models.OptionCall:
			if hasCalls && inst.StrikePrice >= ceilingStrike {
				retained = append(retained, inst)
			}
		}
	}
	return retained
}

// firstAtOrBelow scans descending strikes for the first at or below the
// bound.
func firstAtOrBelow(descending []float64, bound float64) (float64, bool) {
	for _, s := range descending {
		if s <= bound {
			return s, true
		}
	}
	return 0, false
}

// firstAtOrAbove scans ascending strikes for the first at or above the
// bound.
func firstAtOrAbove(ascending []float64, bound float64) (float64, bool) {
	for _, s := range ascending {
		if s >= bound {
			return s, true
		}
	}
	return 0, false
}

// Collect narrows the chain against the given bounds and runs one
// subscription cycle: subscribe to every retained token, gather one
// snapshot per token, and unsubscribe once all snapshots arrived or
// the timeout elapsed, whichever is first. Partial results are valid.
// The unsubscribe is sent on every exit path so no subscription is
// abandoned.
func (s *Selector) Collect(ctx context.Context, chain []models.Instrument, ltp, floorBound, ceilingBound float64) ([]models.LiveInstrument, error) {
	retained := Narrow(chain, floorBound, ceilingBound)
	s.logger.Info().
		Float64("floor", floorBound).
		Float64("ceiling", ceilingBound).
		Int("retained", len(retained)).
		Int("chain", len(chain)).
		Msg("Narrowed option chain")

	if len(retained) == 0 {
		return nil, nil
	}

	byToken := make(map[string]models.Instrument, len(retained))
	keys := make([]string, 0, len(retained))
	for _, inst := range retained {
		byToken[inst.Token] = inst
		keys = append(keys, broker.SubscriptionKey(inst.Exchange, inst.Token))
	}

	snapshots := make(chan broker.Touchline, len(retained))
	s.ticker.OnTouchline(func(tl broker.Touchline) {
		select {
		case snapshots <- tl:
		default:
		}
	})
	defer s.ticker.OnTouchline(nil)

	if err := s.ticker.Subscribe(keys); err != nil {
		return nil, err
	}
	defer func() {
		if err := s.ticker.Unsubscribe(keys); err != nil {
			s.logger.Warn().Err(err).Msg("Unsubscribe after snapshot cycle failed")
		}
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	collected := make([]models.LiveInstrument, 0, len(retained))
	received := 0
	for received < len(retained) {
		select {
		case tl := <-snapshots:
			inst, ok := byToken[tl.Token]
			if !ok || !tl.IsSnapshot() {
				continue
			}
			received++
			if tl.BestBidPrice == "" {
				// No bid on the book; nothing to value.
				continue
			}
			collected = append(collected, s.value(inst, ltp, tl.BidValue()))
		case <-timer.C:
			s.logger.Warn().
				Int("received", received).
				Int("expected", len(retained)).
				Msg("Snapshot collection timed out, resolving with partial set")
			return collected, nil
		case <-ctx.Done():
			return collected, ctx.Err()
		}
	}

	return collected, nil
}

// value attaches the derived valuation fields to one snapshot. A
// failed sigma/delta calculation zero-fills rather than failing the
// instrument; one bad contract must not abort the batch.
func (s *Selector) value(inst models.Instrument, ltp, bid float64) models.LiveInstrument {
	live := models.LiveInstrument{
		Instrument:     inst,
		LTP:            ltp,
		Bid:            bid,
		SellValue:      (bid - s.slippage) * float64(inst.LotSize),
		StrikePosition: strikeDistance(inst.StrikePrice, ltp),
	}

	if inst.AnnualVol > 0 && inst.Expiry != "" {
		// Bounds-level multiplier already applied; per-instrument
		// sigmas use the base multiplier of 1.
		live.Sigmas = s.cache.Sigmas(inst.AnnualVol, 1, inst.Expiry, inst.OptionType)

		years := s.cache.YearsToExpiry(inst.Expiry)
		live.Delta = pricing.Delta(ltp, inst.StrikePrice, inst.AnnualVol/100, years, s.riskFreeRate, inst.OptionType)
	}

	return live
}

func strikeDistance(strike, ltp float64) float64 {
	if ltp == 0 {
		return 0
	}
	d := strike - ltp
	if d < 0 {
		d = -d
	}
	return d * 100 / ltp
}
