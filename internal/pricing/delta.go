// Package pricing provides the stateless numerical pieces of the
// valuation pipeline: a normal-CDF approximation and the Black-Scholes
// delta.
package pricing

import (
	"math"

	"shoonya-screener/internal/models"
)

// DefaultRiskFreeRate is the annual risk-free rate used when no rate is
// configured.
const DefaultRiskFreeRate = 0.07

// Abramowitz-Stegun coefficients. Downstream delta comparisons are
// sensitive to which approximation is used, so these must not change.
const (
	a1 = 0.254829592
	a2 = -0.284496736
	a3 = 1.421413741
	a4 = -1.453152027
	a5 = 1.061405429
	p  = 0.3275911
)

// NormalCDF approximates the standard normal cumulative distribution
// function via the Abramowitz-Stegun error-function expansion.
func NormalCDF(x float64) float64 {
	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	x = math.Abs(x) / math.Sqrt2

	t := 1.0 / (1.0 + p*x)
	y := 1.0 - ((((a5*t+a4)*t+a3)*t+a2)*t+a1)*t*math.Exp(-x*x)

	return 0.5 * (1.0 + sign*y)
}

// Delta computes the Black-Scholes delta for one contract.
//
//	d1 = (ln(spot/strike) + (r + vol^2/2) * T) / (vol * sqrt(T))
//
// Call delta is N(d1), put delta is N(d1) - 1. Volatility is a
// fraction, not a percent. Degenerate inputs (any of spot, strike,
// volatility or years <= 0) are not an error: the contract is expired
// or unpriceable and the delta is defined to be 0.
func Delta(spot, strike, volatility, years, riskFreeRate float64, side models.OptionSide) float64 {
	if years <= 0 || volatility <= 0 || spot <= 0 || strike <= 0 {
		return 0
	}

	d1 := (math.Log(spot/strike) + (riskFreeRate+0.5*volatility*volatility)*years) /
		(volatility * math.Sqrt(years))

	nd1 := NormalCDF(d1)
	if side == models.OptionPut {
		return nd1 - 1
	}
	return nd1
}
