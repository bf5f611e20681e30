// Package selector narrows an option chain to a bounded candidate set
// and collects a one-shot touchline snapshot for each candidate.
package selector

import (
	"shoonya-screener/internal/models"
	"shoonya-screener/internal/workdays"
)

// BandInput carries the per-underlying values a band strategy may use.
type BandInput struct {
	LTP       float64
	AnnualVol float64 // percent, 0 when unknown
	Expiry    string
}

// BandStrategy derives the PUT floor and CALL ceiling bounds from the
// underlying's state. Three historical conventions coexist as
// interchangeable implementations of this one interface.
type BandStrategy interface {
	Name() string
	Bounds(in BandInput) (floor, ceiling float64)
}

// FlatPercentBand bounds at a flat percentage around the LTP.
type FlatPercentBand struct {
	Percent float64
}

// Name implements BandStrategy.
func (b FlatPercentBand) Name() string { return "percent" }

// Bounds implements BandStrategy.
func (b FlatPercentBand) Bounds(in BandInput) (float64, float64) {
	floor := (100 - b.Percent) * in.LTP / 100
	ceiling := (100 + b.Percent) * in.LTP / 100
	return floor, ceiling
}

// SDBand bounds at a multiple of the legacy standard-deviation scaling.
type SDBand struct {
	Cache      *workdays.Cache
	Multiplier float64
}

// Name implements BandStrategy.
func (b SDBand) Name() string { return "sd" }

// Bounds implements BandStrategy. When the SD is unavailable (unknown
// volatility or expiry) both bounds collapse onto the LTP, which makes
// the narrowing fall back to the cheapest available strikes.
func (b SDBand) Bounds(in BandInput) (float64, float64) {
	sd := b.Cache.LegacySD(in.AnnualVol, in.Expiry) * b.Multiplier
	floor := in.LTP * (100 - sd) / 100
	ceiling := in.LTP * (100 + sd) / 100
	return floor, ceiling
}

// SigmaBand bounds using the asymmetric sigma pipeline: the put floor
// uses the put-side XI (N - X) and the call ceiling the call-side XI
// (N + X), so calls get a wider band upward than puts get downward.
type SigmaBand struct {
	Cache      *workdays.Cache
	Multiplier float64
}

// Name implements BandStrategy.
func (b SigmaBand) Name() string { return "sigma" }

// Bounds implements BandStrategy.
func (b SigmaBand) Bounds(in BandInput) (float64, float64) {
	put := b.Cache.Sigmas(in.AnnualVol, b.Multiplier, in.Expiry, models.OptionPut)
	call := b.Cache.Sigmas(in.AnnualVol, b.Multiplier, in.Expiry, models.OptionCall)

	floor := in.LTP * (100 - put.XI) / 100
	ceiling := in.LTP * (100 + call.XI) / 100
	return floor, ceiling
}
