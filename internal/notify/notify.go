// Package notify provides alerting for the live screener.
package notify

import (
	"time"

	"shoonya-screener/internal/models"
)

// Alert is raised when the bid of the top-ranked contract moves.
type Alert struct {
	Symbol        string
	TradingSymbol string
	Bid           float64
	BidChange     float64
	ReturnValue   float64
	Timestamp     time.Time
}

// Notifier receives alerts from the live store. Implementations must
// not block: alerts are raised on the store's serialization loop.
type Notifier interface {
	TopBidMoved(alert Alert)
}

// NewAlert builds an alert from a live instrument and its bid delta.
func NewAlert(inst models.LiveInstrument, bidChange float64) Alert {
	return Alert{
		Symbol:        inst.Symbol,
		TradingSymbol: inst.TradingSymbol,
		Bid:           inst.Bid,
		BidChange:     bidChange,
		ReturnValue:   inst.ReturnValue,
		Timestamp:     time.Now(),
	}
}
