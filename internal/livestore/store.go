// Package livestore holds the live working set of one screening
// session: the tracked underlying and its retained option contracts,
// updated tick by tick.
//
// All state lives behind a single command channel drained by Run. Tick
// handlers, margin-refresh results and snapshot reads all enter through
// that channel, so no field is ever touched by two goroutines and ticks
// are applied in arrival order.
package livestore

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"shoonya-screener/internal/broker"
	"shoonya-screener/internal/models"
	"shoonya-screener/internal/notify"
	"shoonya-screener/internal/pricing"
	"shoonya-screener/internal/ret"
	"shoonya-screener/internal/workdays"
)

// Config holds live store configuration.
type Config struct {
	// TickSlippage is subtracted from the best bid for sell value.
	TickSlippage float64
	// RiskFreeRate feeds the per-tick delta recomputation.
	RiskFreeRate float64
	// CommandBuffer sizes the command channel.
	CommandBuffer int
	// MarginTimeout bounds each asynchronous margin refresh.
	MarginTimeout time.Duration
}

// DefaultConfig returns the default live store configuration.
func DefaultConfig() Config {
	return Config{
		TickSlippage:  0.05,
		RiskFreeRate:  pricing.DefaultRiskFreeRate,
		CommandBuffer: 256,
		MarginTimeout: 5 * time.Second,
	}
}

// Store is the live working set for one underlying.
type Store struct {
	cfg       Config
	estimator ret.Estimator
	notifier  notify.Notifier
	cache     *workdays.Cache
	logger    zerolog.Logger

	// guarded by the run loop: only commands touch these
	equity     models.Equity
	byToken    map[string]*models.LiveInstrument
	refreshing map[string]bool

	commands chan func()
	done     chan struct{}
}

// New creates a store seeded with the collected snapshot set. The
// initial ReturnValue of every contract is zero; it stays zero until
// the first successful margin quote, so a contract never ranks on a
// stale or guessed return.
func New(equity models.Equity, collected []models.LiveInstrument, estimator ret.Estimator, notifier notify.Notifier, cache *workdays.Cache, cfg Config, logger zerolog.Logger) *Store {
	if cfg.CommandBuffer <= 0 {
		cfg.CommandBuffer = DefaultConfig().CommandBuffer
	}
	if cfg.MarginTimeout <= 0 {
		cfg.MarginTimeout = DefaultConfig().MarginTimeout
	}
	if cfg.TickSlippage == 0 {
		cfg.TickSlippage = DefaultConfig().TickSlippage
	}
	if cfg.RiskFreeRate == 0 {
		cfg.RiskFreeRate = DefaultConfig().RiskFreeRate
	}

	byToken := make(map[string]*models.LiveInstrument, len(collected))
	for i := range collected {
		inst := collected[i]
		byToken[inst.Token] = &inst
	}

	return &Store{
		cfg:        cfg,
		estimator:  estimator,
		notifier:   notifier,
		cache:      cache,
		logger:     logger,
		equity:     equity,
		byToken:    byToken,
		refreshing: make(map[string]bool),
		commands:   make(chan func(), cfg.CommandBuffer),
		done:       make(chan struct{}),
	}
}

// Run drains the command channel until the context is cancelled. It
// must run in its own goroutine for the lifetime of the session.
func (s *Store) Run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-s.commands:
			cmd()
		}
	}
}

// enqueue submits a command to the run loop, dropping it if the store
// has shut down.
func (s *Store) enqueue(cmd func()) {
	select {
	case s.commands <- cmd:
	case <-s.done:
	}
}

// Keys returns the subscription keys for the underlying and every
// retained contract.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.byToken)+1)
	keys = append(keys, broker.SubscriptionKey(models.NSE, s.equity.Token))
	for token := range s.byToken {
		keys = append(keys, broker.SubscriptionKey(models.NFO, token))
	}
	return keys
}

// OnTick routes a touchline message to the equity or option path. It is
// safe to call from the ticker's read goroutine; the actual state
// change happens on the run loop.
func (s *Store) OnTick(tl broker.Touchline) {
	switch {
	case tl.IsEquityUpdate() && tl.Token == s.equity.Token:
		s.enqueue(func() { s.applyEquityTick(tl) })
	case tl.IsOptionUpdate():
		s.enqueue(func() { s.applyOptionTick(tl) })
	}
}

// applyEquityTick updates the underlying and recomputes every
// contract's strike distance and delta against the new LTP.
func (s *Store) applyEquityTick(tl broker.Touchline) {
	ltp := tl.LTPValue()
	if ltp <= 0 {
		return
	}

	s.equity.LTP = ltp
	if s.equity.PrevClose > 0 {
		s.equity.GainLossPercent = (ltp - s.equity.PrevClose) * 100 / s.equity.PrevClose
	}

	for _, inst := range s.byToken {
		prevLTP := inst.LTP
		prevPos := inst.StrikePosition

		inst.LTP = ltp
		inst.StrikePosition = strikeDistance(inst.StrikePrice, ltp)
		inst.LTPChange.Observe(prevLTP, ltp)
		inst.StrikePositionChange.Observe(prevPos, inst.StrikePosition)

		if inst.AnnualVol > 0 && inst.Expiry != "" {
			years := s.cache.YearsToExpiry(inst.Expiry)
			inst.Delta = pricing.Delta(ltp, inst.StrikePrice, inst.AnnualVol/100, years, s.cfg.RiskFreeRate, inst.OptionType)
		}
	}
}

// applyOptionTick updates one contract's bid-derived fields and kicks
// off an asynchronous margin refresh. The refresh result re-enters
// through the command channel, so a slow margin quote never blocks the
// tick path.
func (s *Store) applyOptionTick(tl broker.Touchline) {
	inst, ok := s.byToken[tl.Token]
	if !ok {
		return
	}

	bid := tl.BidValue()
	if bid <= 0 {
		return
	}

	prevBid := inst.Bid
	inst.Bid = bid
	inst.SellValue = (bid - s.cfg.TickSlippage) * float64(inst.LotSize)

	if bid != prevBid {
		s.alertIfTopRanked(inst, bid-prevBid)
		s.refreshReturn(inst.Instrument, bid)
	}
}

// alertIfTopRanked raises a notification when the contract with the
// highest return moved its bid.
func (s *Store) alertIfTopRanked(inst *models.LiveInstrument, bidChange float64) {
	if s.notifier == nil || inst.ReturnValue <= 0 {
		return
	}
	for _, other := range s.byToken {
		if other.Token != inst.Token && other.ReturnValue > inst.ReturnValue {
			return
		}
	}
	s.notifier.TopBidMoved(notify.NewAlert(*inst, bidChange))
}

// refreshReturn fetches a fresh margin quote off-loop. At most one
// refresh per contract is in flight; bursts of ticks coalesce into the
// refresh triggered by the first.
func (s *Store) refreshReturn(inst models.Instrument, bid float64) {
	if s.estimator == nil || s.refreshing[inst.Token] {
		return
	}
	s.refreshing[inst.Token] = true

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.MarginTimeout)
		defer cancel()

		value, err := s.estimator.Return(ctx, inst, bid)

		s.enqueue(func() {
			s.refreshing[inst.Token] = false
			live, ok := s.byToken[inst.Token]
			if !ok {
				return
			}
			if err != nil {
				s.logger.Warn().Err(err).Str("symbol", inst.TradingSymbol).Msg("Margin refresh failed, keeping last return")
				return
			}
			prev := live.ReturnValue
			live.ReturnValue = value
			live.ReturnValueChange.Observe(prev, value)
		})
	}()
}

// Snapshot returns the equity state and the contracts ranked by return,
// highest first, contracts without a return yet last. The read runs on
// the run loop so it observes a consistent state.
func (s *Store) Snapshot(ctx context.Context) (models.Equity, []models.LiveInstrument, error) {
	type result struct {
		equity models.Equity
		insts  []models.LiveInstrument
	}
	reply := make(chan result, 1)

	s.enqueue(func() {
		insts := make([]models.LiveInstrument, 0, len(s.byToken))
		for _, inst := range s.byToken {
			insts = append(insts, *inst)
		}
		sort.SliceStable(insts, func(i, j int) bool {
			return insts[i].ReturnValue > insts[j].ReturnValue
		})
		reply <- result{equity: s.equity, insts: insts}
	})

	select {
	case r := <-reply:
		return r.equity, r.insts, nil
	case <-ctx.Done():
		return models.Equity{}, nil, ctx.Err()
	case <-s.done:
		return models.Equity{}, nil, context.Canceled
	}
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
