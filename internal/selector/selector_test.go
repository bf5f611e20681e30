package selector

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"shoonya-screener/internal/broker"
	"shoonya-screener/internal/calendar"
	"shoonya-screener/internal/models"
	"shoonya-screener/internal/workdays"
)

func opt(side models.OptionSide, strike float64) models.Instrument {
	return models.Instrument{
		Exchange:    models.NFO,
		Token:       fmt.Sprintf("%s%d", side, int(strike)),
		LotSize:     100,
		Symbol:      "TEST",
		OptionType:  side,
		StrikePrice: strike,
	}
}

func strikes(insts []models.Instrument, side models.OptionSide) []float64 {
	var out []float64
	for _, inst := range insts {
		if inst.OptionType == side {
			out = append(out, inst.StrikePrice)
		}
	}
	return out
}

func TestNarrowRetainsTails(t *testing.T) {
	chain := []models.Instrument{
		opt(models.OptionPut, 900),
		opt(models.OptionPut, 940),
		opt(models.OptionPut, 960),
		opt(models.OptionCall, 1040),
		opt(models.OptionCall, 1060),
		opt(models.OptionCall, 1100),
	}

	retained := Narrow(chain, 950, 1050)

	puts := strikes(retained, models.OptionPut)
	calls := strikes(retained, models.OptionCall)

	if len(puts) != 2 || puts[0] != 900 || puts[1] != 940 {
		t.Errorf("retained put strikes = %v, want [900 940]", puts)
	}
	if len(calls) != 2 || calls[0] != 1060 || calls[1] != 1100 {
		t.Errorf("retained call strikes = %v, want [1060 1100]", calls)
	}
}

func TestNarrowFallbacks(t *testing.T) {
	// Every put strike sits above the floor: fall back to the lowest.
	chain := []models.Instrument{
		opt(models.OptionPut, 980),
		opt(models.OptionPut, 990),
		opt(models.OptionCall, 1010),
		opt(models.OptionCall, 1020),
	}

	retained := Narrow(chain, 950, 1050)

	puts := strikes(retained, models.OptionPut)
	calls := strikes(retained, models.OptionCall)

	if len(puts) != 1 || puts[0] != 980 {
		t.Errorf("fallback put strikes = %v, want [980]", puts)
	}
	// Every call strike sits below the ceiling: fall back to the highest.
	if len(calls) != 1 || calls[0] != 1020 {
		t.Errorf("fallback call strikes = %v, want [1020]", calls)
	}
}

func TestNarrowOneSidedChain(t *testing.T) {
	chain := []models.Instrument{
		opt(models.OptionPut, 900),
		opt(models.OptionPut, 960),
	}

	retained := Narrow(chain, 950, 1050)
	if len(retained) != 1 || retained[0].StrikePrice != 900 {
		t.Errorf("one-sided narrow = %v, want only the 900 put", retained)
	}
	if got := Narrow(nil, 950, 1050); got != nil {
		t.Errorf("empty chain should narrow to nothing, got %v", got)
	}
}

// fakeTicker delivers canned snapshots when Subscribe is called.
type fakeTicker struct {
	handler      func(broker.Touchline)
	subscribed   []string
	unsubscribed []string
	onSubscribe  func(keys []string, emit func(broker.Touchline))
}

func (f *fakeTicker) Connect(ctx context.Context) error { return nil }
func (f *fakeTicker) Close() error                      { return nil }
func (f *fakeTicker) IsConnected() bool                 { return true }
func (f *fakeTicker) OnError(func(error))               {}

func (f *fakeTicker) OnTouchline(handler func(broker.Touchline)) {
	f.handler = handler
}

func (f *fakeTicker) Subscribe(keys []string) error {
	f.subscribed = append(f.subscribed, keys...)
	if f.onSubscribe != nil {
		f.onSubscribe(keys, func(tl broker.Touchline) {
			if f.handler != nil {
				f.handler(tl)
			}
		})
	}
	return nil
}

func (f *fakeTicker) Unsubscribe(keys []string) error {
	f.unsubscribed = append(f.unsubscribed, keys...)
	return nil
}

var _ broker.Ticker = (*fakeTicker)(nil)

func newTestSelector(ticker broker.Ticker, timeout time.Duration) *Selector {
	cache := workdays.New(calendar.NewHolidaySet(nil), zerolog.Nop())
	return New(ticker, cache, Config{Timeout: timeout}, zerolog.Nop())
}

func snapshot(token string, bid string) broker.Touchline {
	return broker.Touchline{
		Type:         "tk",
		Exchange:     "NFO",
		Token:        token,
		BestBidPrice: bid,
	}
}

func TestCollectAllSnapshots(t *testing.T) {
	chain := []models.Instrument{
		opt(models.OptionPut, 900),
		opt(models.OptionCall, 1100),
	}

	ticker := &fakeTicker{}
	ticker.onSubscribe = func(keys []string, emit func(broker.Touchline)) {
		emit(snapshot(chain[0].Token, "12.50"))
		emit(snapshot(chain[1].Token, "8.00"))
	}

	sel := newTestSelector(ticker, time.Second)
	collected, err := sel.Collect(context.Background(), chain, 1000, 950, 1050)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(collected) != 2 {
		t.Fatalf("collected %d instruments, want 2", len(collected))
	}

	byStrike := map[float64]models.LiveInstrument{}
	for _, live := range collected {
		byStrike[live.StrikePrice] = live
	}

	put := byStrike[900]
	if put.Bid != 12.50 {
		t.Errorf("put bid = %f, want 12.50", put.Bid)
	}
	if want := (12.50 - 0.05) * 100; math.Abs(put.SellValue-want) > 1e-9 {
		t.Errorf("put sell value = %f, want %f", put.SellValue, want)
	}
	if want := math.Abs(900-1000.0) * 100 / 1000; math.Abs(put.StrikePosition-want) > 1e-9 {
		t.Errorf("put strike distance = %f, want %f", put.StrikePosition, want)
	}

	if len(ticker.unsubscribed) != len(ticker.subscribed) {
		t.Errorf("unsubscribe keys %v should mirror subscribe keys %v", ticker.unsubscribed, ticker.subscribed)
	}
}

func TestCollectTimeoutReturnsPartial(t *testing.T) {
	chain := []models.Instrument{
		opt(models.OptionPut, 900),
		opt(models.OptionCall, 1100),
	}

	ticker := &fakeTicker{}
	ticker.onSubscribe = func(keys []string, emit func(broker.Touchline)) {
		// Only one of the two snapshots ever arrives.
		emit(snapshot(chain[0].Token, "12.50"))
	}

	sel := newTestSelector(ticker, 50*time.Millisecond)
	collected, err := sel.Collect(context.Background(), chain, 1000, 950, 1050)
	if err != nil {
		t.Fatalf("timeout must not be an error, got %v", err)
	}
	if len(collected) != 1 {
		t.Fatalf("collected %d instruments, want the 1 that arrived", len(collected))
	}
	if len(ticker.unsubscribed) == 0 {
		t.Error("unsubscribe must be sent on the timeout path")
	}
}

func TestCollectSkipsBidlessSnapshots(t *testing.T) {
	chain := []models.Instrument{
		opt(models.OptionPut, 900),
		opt(models.OptionCall, 1100),
	}

	ticker := &fakeTicker{}
	ticker.onSubscribe = func(keys []string, emit func(broker.Touchline)) {
		emit(snapshot(chain[0].Token, "12.50"))
		emit(broker.Touchline{Type: "tk", Exchange: "NFO", Token: chain[1].Token}) // empty book
	}

	sel := newTestSelector(ticker, time.Second)
	collected, err := sel.Collect(context.Background(), chain, 1000, 950, 1050)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	// The bidless snapshot still counts toward completion but produces
	// no live instrument.
	if len(collected) != 1 {
		t.Fatalf("collected %d instruments, want 1", len(collected))
	}
}

func TestCollectEmptyChain(t *testing.T) {
	ticker := &fakeTicker{}
	sel := newTestSelector(ticker, time.Second)

	collected, err := sel.Collect(context.Background(), nil, 1000, 950, 1050)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if collected != nil {
		t.Errorf("expected no result for an empty chain, got %v", collected)
	}
	if len(ticker.subscribed) != 0 {
		t.Error("nothing should be subscribed for an empty chain")
	}
}
