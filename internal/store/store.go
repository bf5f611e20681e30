// Package store provides the instrument-universe repository.
package store

import (
	"context"

	"shoonya-screener/internal/models"
)

// InstrumentStore defines the query surface over the seeded instrument
// universe plus the write path used by the seeding job.
type InstrumentStore interface {
	// Equities returns all equity-type instruments sorted by symbol.
	Equities(ctx context.Context) ([]models.Instrument, error)

	// Subscription returns the equity for a symbol together with its
	// option chain filtered by expiry suffix (MMM-YYYY), sorted by
	// strike ascending.
	Subscription(ctx context.Context, symbol, expirySuffix string) (*models.Instrument, []models.Instrument, error)

	// DistinctExpiries returns the distinct expiry values across the
	// option universe.
	DistinctExpiries(ctx context.Context) ([]string, error)

	// Holidays returns all market holidays.
	Holidays(ctx context.Context) ([]models.Holiday, error)

	// ReplaceInstruments atomically replaces the instrument universe.
	ReplaceInstruments(ctx context.Context, instruments []models.Instrument) error

	// ReplaceHolidays atomically replaces the holiday calendar.
	ReplaceHolidays(ctx context.Context, holidays []models.Holiday) error

	Close() error
}
