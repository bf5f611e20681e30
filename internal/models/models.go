// Package models provides domain models for the screener.
package models

// Exchange represents a stock exchange segment.
type Exchange string

const (
	NSE Exchange = "NSE"
	BSE Exchange = "BSE"
	NFO Exchange = "NFO" // F&O
)

// OptionSide represents the side of an option contract.
type OptionSide string

const (
	OptionCall OptionSide = "CE"
	OptionPut  OptionSide = "PE"
	// OptionNone is used for non-option instruments (equities).
	OptionNone OptionSide = "XX"
)

// Instrument represents a seeded instrument from the universe database.
// Identity is exchange + token. Rows are immutable during a session;
// derived per-tick fields live on LiveInstrument.
type Instrument struct {
	ID            string // trading symbol, primary key in the store
	Exchange      Exchange
	Token         string
	LotSize       int
	Symbol        string // underlying symbol, e.g. RELIANCE
	TradingSymbol string // e.g. RELIANCE28AUG25C1500
	Expiry        string // broker encoding (DD-MMM-YYYY), empty for equities
	Instrument    string // EQ, OPTSTK, ...
	OptionType    OptionSide
	StrikePrice   float64
	TickSize      float64
	DailyVol      float64
	AnnualVol     float64 // annualized volatility percent, 0 when unknown
}

// IsOption reports whether the instrument is an option contract.
func (i Instrument) IsOption() bool {
	return i.OptionType == OptionCall || i.OptionType == OptionPut
}

// Equity is a tracked underlying in the live working set.
type Equity struct {
	Token           string
	Symbol          string
	LTP             float64
	PrevClose       float64
	GainLossPercent float64
}

// Sigmas holds the volatility-scaling band values for one contract.
// XI is asymmetric: the call side adds the error term X, the put side
// subtracts it. All values are on a 0-100 percent scale.
type Sigmas struct {
	Base float64 // legacy SD: av / sqrt(T/N)
	N    float64 // Base * user multiplier
	X    float64 // N / sqrt(T/N)
	XI   float64 // N+X for calls, N-X for puts
}

// LiveInstrument is an option contract in the live working set with its
// derived valuation fields. The *Change trackers are advisory values for
// presentation highlighting only.
type LiveInstrument struct {
	Instrument

	LTP            float64 // underlying last traded price
	Bid            float64 // best bid for the contract
	SellValue      float64 // (bid - slippage) * lot size
	StrikePosition float64 // |strike - LTP| * 100 / LTP
	ReturnValue    float64 // margin-based return percent, 0 until first quote
	Sigmas         Sigmas
	Delta          float64 // Black-Scholes delta

	LTPChange            ChangeTracker
	StrikePositionChange ChangeTracker
	ReturnValueChange    ChangeTracker
}

// Margin is the broker's margin quote for a prospective order.
type Margin struct {
	OrderMargin float64
	MarginUsed  float64
	Cash        float64
	Remarks     string
}

// Holiday is a market holiday loaded into the calendar at startup.
type Holiday struct {
	Date string // YYYY-MM-DD
	Name string
}
