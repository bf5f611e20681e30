// Package ret estimates the margin-based return of selling one lot of
// an option contract.
package ret

import (
	"context"

	"github.com/rs/zerolog"

	"shoonya-screener/internal/broker"
	"shoonya-screener/internal/errors"
	"shoonya-screener/internal/models"
)

// Estimator computes the return percent for selling one lot at the
// given bid. Implementations may block on network calls; callers
// refresh asynchronously and merge results back on their own loop.
type Estimator interface {
	Return(ctx context.Context, inst models.Instrument, bid float64) (float64, error)
}

// MarginEstimator asks the broker for the order margin of a one-lot
// sell and derives the return from it:
//
//	return = (bid - slippage) * lot * 100 / ordermargin
type MarginEstimator struct {
	broker   broker.Broker
	logger   zerolog.Logger
	slippage float64
}

// NewMarginEstimator creates an estimator over an authenticated broker.
func NewMarginEstimator(b broker.Broker, slippage float64, logger zerolog.Logger) *MarginEstimator {
	if slippage == 0 {
		slippage = 0.05
	}
	return &MarginEstimator{broker: b, logger: logger, slippage: slippage}
}

// Return implements Estimator.
func (e *MarginEstimator) Return(ctx context.Context, inst models.Instrument, bid float64) (float64, error) {
	if bid <= 0 || inst.LotSize <= 0 {
		return 0, errors.NewDataError("margin", inst.TradingSymbol, "no bid or lot size", nil)
	}

	margin, err := e.broker.GetOrderMargin(ctx, bid, inst.LotSize, inst.TradingSymbol)
	if err != nil {
		return 0, err
	}
	if margin.OrderMargin <= 0 {
		return 0, errors.NewDataError("margin", inst.TradingSymbol, "broker returned zero margin", nil)
	}

	ret := (bid - e.slippage) * float64(inst.LotSize) * 100 / margin.OrderMargin
	e.logger.Debug().
		Str("symbol", inst.TradingSymbol).
		Float64("bid", bid).
		Float64("margin", margin.OrderMargin).
		Float64("return", ret).
		Msg("Margin return computed")
	return ret, nil
}

var _ Estimator = (*MarginEstimator)(nil)
