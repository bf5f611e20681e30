package seed

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"shoonya-screener/internal/calendar"
	"shoonya-screener/internal/models"
)

// memStore captures replace calls for assertions.
type memStore struct {
	instruments []models.Instrument
	holidays    []models.Holiday
}

func (m *memStore) Equities(ctx context.Context) ([]models.Instrument, error) { return nil, nil }
func (m *memStore) Subscription(ctx context.Context, symbol, expirySuffix string) (*models.Instrument, []models.Instrument, error) {
	return nil, nil, nil
}
func (m *memStore) DistinctExpiries(ctx context.Context) ([]string, error) { return nil, nil }
func (m *memStore) Holidays(ctx context.Context) ([]models.Holiday, error) { return m.holidays, nil }
func (m *memStore) ReplaceInstruments(ctx context.Context, instruments []models.Instrument) error {
	m.instruments = instruments
	return nil
}
func (m *memStore) ReplaceHolidays(ctx context.Context, holidays []models.Holiday) error {
	m.holidays = holidays
	return nil
}
func (m *memStore) Close() error { return nil }

func zipBytes(t *testing.T, name, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create(name)
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	f.Write([]byte(content))
	if err := w.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

const nseMaster = `Exchange,Token,LotSize,Symbol,TradingSymbol,Instrument,TickSize
NSE,2885,1,RELIANCE,RELIANCE-EQ,EQ,0.05
NSE,11536,1,TCS,TCS-EQ,EQ,0.05
NSE,9999,1,BANNEDCO,BANNEDCO-EQ,EQ,0.05
NSE,2886,1,RELIANCE,RELIANCE-BE,BE,0.05
`

const nfoMaster = `Exchange,Token,LotSize,Symbol,TradingSymbol,Expiry,Instrument,OptionType,StrikePrice,TickSize
NFO,40001,250,RELIANCE,RELIANCE28AUG25P2800,28-AUG-2025,OPTSTK,PE,2800,0.05
NFO,40002,250,RELIANCE,RELIANCE28AUG25C3200,28-AUG-2025,OPTSTK,CE,3200,0.05
NFO,40003,250,BANNEDCO,BANNEDCO28AUG25C100,28-AUG-2025,OPTSTK,CE,100,0.05
NFO,40004,250,OUTSIDER,OUTSIDER28AUG25C100,28-AUG-2025,OPTSTK,CE,100,0.05
NFO,40005,250,RELIANCE,RELIANCE28AUG25F,28-AUG-2025,FUTSTK,XX,0,0.05
`

const nifty500 = `Company Name,Industry,Symbol,Series,ISIN Code
Reliance Industries Ltd.,Oil & Gas,RELIANCE,EQ,INE002A01018
Tata Consultancy Services Ltd.,IT,TCS,EQ,INE467B01029
Banned Co Ltd.,Metals,BANNEDCO,EQ,INE000000001
`

const banList = `Securities banned for trading in F&O segment
1,BANNEDCO
`

const volFile = `Date,Symbol,A,B,C,D,Daily Vol,Annualised Vol
31-AUG-2026,RELIANCE,2950,2930,0.0068,0.012,0.0125,0.2389
31-AUG-2026,TCS,4100,4080,0.0049,0.010,0.0102,0.1949
`

func newTestSeeder(t *testing.T) (*Seeder, *memStore) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/nse.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Write(zipBytes(t, "NSE_symbols.txt", nseMaster))
	})
	mux.HandleFunc("/nfo.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Write(zipBytes(t, "NFO_symbols.txt", nfoMaster))
	})
	mux.HandleFunc("/nifty500.csv", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(nifty500))
	})
	mux.HandleFunc("/ban.csv", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(banList))
	})
	mux.HandleFunc("/CMVOLT_31082026.CSV", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(volFile))
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	holidayFile := filepath.Join(t.TempDir(), "holidays.csv")
	holidayCSV := "Date,Name\n2026-10-02,Gandhi Jayanti\n26-JAN-2026,Republic Day\nbad-date,Ignored\n"
	if err := os.WriteFile(holidayFile, []byte(holidayCSV), 0600); err != nil {
		t.Fatalf("writing holiday file: %v", err)
	}

	st := &memStore{}
	seeder := New(st, Config{
		Sources: Sources{
			NSEMasterURL:  ts.URL + "/nse.zip",
			NFOMasterURL:  ts.URL + "/nfo.zip",
			Nifty500URL:   ts.URL + "/nifty500.csv",
			VolatilityURL: ts.URL + "/CMVOLT_",
			BanListURL:    ts.URL + "/ban.csv",
		},
		HolidayFile: holidayFile,
	}, zerolog.Nop())
	seeder.now = func() time.Time {
		return time.Date(2026, time.August, 31, 9, 0, 0, 0, calendar.ISTLocation)
	}
	return seeder, st
}

func TestSeederRun(t *testing.T) {
	seeder, st := newTestSeeder(t)

	if err := seeder.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	byID := map[string]models.Instrument{}
	for _, inst := range st.instruments {
		byID[inst.ID] = inst
	}

	// RELIANCE equity and both of its options survive.
	eq, ok := byID["RELIANCE-EQ"]
	if !ok {
		t.Fatal("RELIANCE-EQ missing from universe")
	}
	if _, ok := byID["RELIANCE28AUG25P2800"]; !ok {
		t.Error("RELIANCE put missing from universe")
	}
	if _, ok := byID["RELIANCE28AUG25C3200"]; !ok {
		t.Error("RELIANCE call missing from universe")
	}

	// Volatility attaches as percent.
	if eq.AnnualVol != 23.89 {
		t.Errorf("RELIANCE annual vol = %f, want 23.89", eq.AnnualVol)
	}

	// The banned symbol and non-universe symbols are excluded, as are
	// futures rows and non-EQ series.
	for _, id := range []string{"BANNEDCO-EQ", "BANNEDCO28AUG25C100", "OUTSIDER28AUG25C100", "RELIANCE28AUG25F", "RELIANCE-BE"} {
		if _, ok := byID[id]; ok {
			t.Errorf("%s should have been filtered out", id)
		}
	}

	// TCS has no option rows in the master, so its equity is dropped
	// from the watchable universe too.
	if _, ok := byID["TCS-EQ"]; ok {
		t.Error("TCS-EQ has no F&O contracts and should be excluded")
	}
}

func TestSeederHolidays(t *testing.T) {
	seeder, st := newTestSeeder(t)

	if err := seeder.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(st.holidays) != 2 {
		t.Fatalf("got %d holidays, want 2 (bad row dropped)", len(st.holidays))
	}
	// Broker-encoded dates normalize to ISO.
	byDate := map[string]string{}
	for _, h := range st.holidays {
		byDate[h.Date] = h.Name
	}
	if byDate["2026-01-26"] != "Republic Day" {
		t.Errorf("expected normalized Republic Day entry, got %v", byDate)
	}
	if byDate["2026-10-02"] != "Gandhi Jayanti" {
		t.Errorf("expected Gandhi Jayanti entry, got %v", byDate)
	}
}

func TestSeederAbortsWhenMasterUnavailable(t *testing.T) {
	seeder, st := newTestSeeder(t)
	seeder.cfg.Sources.NFOMasterURL = "http://127.0.0.1:1/unreachable.zip"

	if err := seeder.Run(context.Background()); err == nil {
		t.Fatal("expected an error when the NFO master is unreachable")
	}
	if len(st.instruments) != 0 {
		t.Error("a failed run must not touch the store")
	}
}
