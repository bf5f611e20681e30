// Package broker provides Shoonya (Noren) API integration.
package broker

import (
	"context"
	"strconv"
	"strings"

	"shoonya-screener/internal/models"
)

// Broker defines the REST operations the screener consumes.
type Broker interface {
	// Authentication
	Login(ctx context.Context) error
	IsAuthenticated() bool
	SessionToken() string

	// Market data
	GetQuote(ctx context.Context, exchange models.Exchange, token string) (*Quote, error)

	// Margin quote for a prospective sell of one lot
	GetOrderMargin(ctx context.Context, price float64, quantity int, tradingSymbol string) (*models.Margin, error)

	// After-market limit buy order
	PlaceAMOOrder(ctx context.Context, tradingSymbol string, quantity int, price float64) (string, error)
}

// Ticker defines the streaming connection to the market-data feed.
type Ticker interface {
	Connect(ctx context.Context) error
	Close() error
	Subscribe(keys []string) error
	Unsubscribe(keys []string) error
	OnTouchline(handler func(Touchline))
	OnError(handler func(error))
	IsConnected() bool
}

// SubscriptionKey builds a single "EXCH|token" subscription key.
func SubscriptionKey(exchange models.Exchange, token string) string {
	return string(exchange) + "|" + token
}

// JoinKeys joins subscription keys into the wire format
// "EXCH|token#EXCH|token#...".
func JoinKeys(keys []string) string {
	return strings.Join(keys, "#")
}

// Touchline is a snapshot ("tk") or incremental ("tf") feed message.
// Shoonya encodes all numbers as strings and omits unchanged fields on
// incremental updates.
type Touchline struct {
	Type          string `json:"t"`
	Exchange      string `json:"e"`
	Token         string `json:"tk"`
	TradingSymbol string `json:"ts,omitempty"`
	LTP           string `json:"lp,omitempty"`
	PercentChange string `json:"pc,omitempty"`
	Close         string `json:"c,omitempty"`
	OpenInterest  string `json:"oi,omitempty"`
	BestBidPrice  string `json:"bp1,omitempty"`
	BestBidQty    string `json:"bq1,omitempty"`
	BestAskPrice  string `json:"sp1,omitempty"`
	BestAskQty    string `json:"sq1,omitempty"`
	LotSize       string `json:"ls,omitempty"`
	TickSize      string `json:"ti,omitempty"`
}

// IsSnapshot reports whether this is an initial "tk" snapshot.
func (t Touchline) IsSnapshot() bool { return t.Type == "tk" }

// IsEquityUpdate reports whether this message carries an equity LTP.
func (t Touchline) IsEquityUpdate() bool {
	return t.Exchange == string(models.NSE) && t.LTP != ""
}

// IsOptionUpdate reports whether this message carries an option bid.
func (t Touchline) IsOptionUpdate() bool {
	return t.Exchange == string(models.NFO) && t.BestBidPrice != ""
}

// LTPValue returns the last traded price, 0 when absent.
func (t Touchline) LTPValue() float64 { return parsePrice(t.LTP) }

// BidValue returns the best bid, 0 when absent.
func (t Touchline) BidValue() float64 { return parsePrice(t.BestBidPrice) }

func parsePrice(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// Quote is the GetQuotes response subset the screener uses, including
// the top-5 bid/ask ladder.
type Quote struct {
	Stat          string `json:"stat"`
	ErrorMessage  string `json:"emsg,omitempty"`
	Exchange      string `json:"exch"`
	TradingSymbol string `json:"tsym"`
	Token         string `json:"token"`
	LTP           string `json:"lp"`
	Open          string `json:"o"`
	High          string `json:"h"`
	Low           string `json:"l"`
	Close         string `json:"c"`
	Volume        string `json:"v"`
	LotSize       string `json:"ls"`
	TickSize      string `json:"ti"`

	BidPrice1 string `json:"bp1"`
	BidPrice2 string `json:"bp2"`
	BidPrice3 string `json:"bp3"`
	BidPrice4 string `json:"bp4"`
	BidPrice5 string `json:"bp5"`
	AskPrice1 string `json:"sp1"`
	AskPrice2 string `json:"sp2"`
	AskPrice3 string `json:"sp3"`
	AskPrice4 string `json:"sp4"`
	AskPrice5 string `json:"sp5"`
	BidQty1   string `json:"bq1"`
	BidQty2   string `json:"bq2"`
	BidQty3   string `json:"bq3"`
	BidQty4   string `json:"bq4"`
	BidQty5   string `json:"bq5"`
	AskQty1   string `json:"sq1"`
	AskQty2   string `json:"sq2"`
	AskQty3   string `json:"sq3"`
	AskQty4   string `json:"sq4"`
	AskQty5   string `json:"sq5"`
}

// BidLadder returns the top-5 bid prices.
func (q Quote) BidLadder() [5]float64 {
	return [5]float64{
		parsePrice(q.BidPrice1), parsePrice(q.BidPrice2), parsePrice(q.BidPrice3),
		parsePrice(q.BidPrice4), parsePrice(q.BidPrice5),
	}
}

// AskLadder returns the top-5 ask prices.
func (q Quote) AskLadder() [5]float64 {
	return [5]float64{
		parsePrice(q.AskPrice1), parsePrice(q.AskPrice2), parsePrice(q.AskPrice3),
		parsePrice(q.AskPrice4), parsePrice(q.AskPrice5),
	}
}

// LTPValue returns the last traded price, 0 when absent.
func (q Quote) LTPValue() float64 { return parsePrice(q.LTP) }

// CloseValue returns the previous close, 0 when absent.
func (q Quote) CloseValue() float64 { return parsePrice(q.Close) }
