package store

import (
	"context"
	"path/filepath"
	"testing"

	"shoonya-screener/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testUniverse() []models.Instrument {
	return []models.Instrument{
		{
			ID: "RELIANCE-EQ", Exchange: models.NSE, Token: "2885", LotSize: 1,
			Symbol: "RELIANCE", TradingSymbol: "RELIANCE-EQ", Instrument: "EQ",
			OptionType: models.OptionNone, TickSize: 0.05, AnnualVol: 22.5,
		},
		{
			ID: "TCS-EQ", Exchange: models.NSE, Token: "11536", LotSize: 1,
			Symbol: "TCS", TradingSymbol: "TCS-EQ", Instrument: "EQ",
			OptionType: models.OptionNone, TickSize: 0.05,
		},
		{
			ID: "RELIANCE28AUG25P2800", Exchange: models.NFO, Token: "40001", LotSize: 250,
			Symbol: "RELIANCE", TradingSymbol: "RELIANCE28AUG25P2800",
			Expiry: "28-AUG-2025", Instrument: "OPTSTK",
			OptionType: models.OptionPut, StrikePrice: 2800, TickSize: 0.05,
		},
		{
			ID: "RELIANCE28AUG25C3200", Exchange: models.NFO, Token: "40002", LotSize: 250,
			Symbol: "RELIANCE", TradingSymbol: "RELIANCE28AUG25C3200",
			Expiry: "28-AUG-2025", Instrument: "OPTSTK",
			OptionType: models.OptionCall, StrikePrice: 3200, TickSize: 0.05,
		},
		{
			ID: "RELIANCE25SEP25C3200", Exchange: models.NFO, Token: "40003", LotSize: 250,
			Symbol: "RELIANCE", TradingSymbol: "RELIANCE25SEP25C3200",
			Expiry: "25-SEP-2025", Instrument: "OPTSTK",
			OptionType: models.OptionCall, StrikePrice: 3200, TickSize: 0.05,
		},
	}
}

func TestReplaceAndQueryInstruments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.ReplaceInstruments(ctx, testUniverse()); err != nil {
		t.Fatalf("ReplaceInstruments: %v", err)
	}

	equities, err := s.Equities(ctx)
	if err != nil {
		t.Fatalf("Equities: %v", err)
	}
	if len(equities) != 2 {
		t.Fatalf("got %d equities, want 2", len(equities))
	}
	if equities[0].Symbol != "RELIANCE" || equities[1].Symbol != "TCS" {
		t.Errorf("equities not sorted by symbol: %s, %s", equities[0].Symbol, equities[1].Symbol)
	}
	if equities[0].AnnualVol != 22.5 {
		t.Errorf("annual vol = %f, want 22.5", equities[0].AnnualVol)
	}

	// A second replace wipes the previous universe.
	if err := s.ReplaceInstruments(ctx, testUniverse()[:1]); err != nil {
		t.Fatalf("second ReplaceInstruments: %v", err)
	}
	equities, err = s.Equities(ctx)
	if err != nil {
		t.Fatalf("Equities: %v", err)
	}
	if len(equities) != 1 {
		t.Errorf("got %d equities after replace, want 1", len(equities))
	}
}

func TestSubscriptionFiltersByExpirySuffix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.ReplaceInstruments(ctx, testUniverse()); err != nil {
		t.Fatalf("ReplaceInstruments: %v", err)
	}

	equity, chain, err := s.Subscription(ctx, "RELIANCE", "AUG-2025")
	if err != nil {
		t.Fatalf("Subscription: %v", err)
	}
	if equity.Token != "2885" {
		t.Errorf("equity token = %s, want 2885", equity.Token)
	}
	if len(chain) != 2 {
		t.Fatalf("got %d contracts, want the 2 August ones", len(chain))
	}
	if chain[0].StrikePrice > chain[1].StrikePrice {
		t.Error("chain should be sorted by strike ascending")
	}
	for _, inst := range chain {
		if inst.Expiry != "28-AUG-2025" {
			t.Errorf("unexpected expiry %s in AUG-2025 chain", inst.Expiry)
		}
	}
}

func TestSubscriptionUnknownSymbol(t *testing.T) {
	s := newTestStore(t)

	if _, _, err := s.Subscription(context.Background(), "NOSUCH", "AUG-2025"); err == nil {
		t.Error("expected an error for an unknown symbol")
	}
}

func TestDistinctExpiries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.ReplaceInstruments(ctx, testUniverse()); err != nil {
		t.Fatalf("ReplaceInstruments: %v", err)
	}

	expiries, err := s.DistinctExpiries(ctx)
	if err != nil {
		t.Fatalf("DistinctExpiries: %v", err)
	}
	if len(expiries) != 2 {
		t.Errorf("got %d distinct expiries, want 2: %v", len(expiries), expiries)
	}
}

func TestReplaceAndQueryHolidays(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	holidays := []models.Holiday{
		{Date: "2025-10-02", Name: "Gandhi Jayanti"},
		{Date: "2025-01-26", Name: "Republic Day"},
	}
	if err := s.ReplaceHolidays(ctx, holidays); err != nil {
		t.Fatalf("ReplaceHolidays: %v", err)
	}

	got, err := s.Holidays(ctx)
	if err != nil {
		t.Fatalf("Holidays: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d holidays, want 2", len(got))
	}
	if got[0].Date != "2025-01-26" {
		t.Errorf("holidays should be date-ordered, first = %s", got[0].Date)
	}
}
