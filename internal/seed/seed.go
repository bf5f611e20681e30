// Package seed builds the instrument universe: it downloads the broker
// symbol masters, filters them to the Nifty 500 stocks that have F&O
// contracts and are not under a trading ban, attaches exchange
// volatility figures, and replaces the store contents atomically.
package seed

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog"

	"shoonya-screener/internal/calendar"
	"shoonya-screener/internal/errors"
	"shoonya-screener/internal/models"
	"shoonya-screener/internal/store"
)

// nseMasterRow is one line of the NSE symbol master.
type nseMasterRow struct {
	Exchange      string  `csv:"Exchange"`
	Token         string  `csv:"Token"`
	LotSize       int     `csv:"LotSize"`
	Symbol        string  `csv:"Symbol"`
	TradingSymbol string  `csv:"TradingSymbol"`
	Instrument    string  `csv:"Instrument"`
	TickSize      float64 `csv:"TickSize"`
}

// nfoMasterRow is one line of the NFO symbol master.
type nfoMasterRow struct {
	Exchange      string  `csv:"Exchange"`
	Token         string  `csv:"Token"`
	LotSize       int     `csv:"LotSize"`
	Symbol        string  `csv:"Symbol"`
	TradingSymbol string  `csv:"TradingSymbol"`
	Expiry        string  `csv:"Expiry"`
	Instrument    string  `csv:"Instrument"`
	OptionType    string  `csv:"OptionType"`
	StrikePrice   float64 `csv:"StrikePrice"`
	TickSize      float64 `csv:"TickSize"`
}

// nifty500Row is one line of the NSE Nifty 500 constituents list.
type nifty500Row struct {
	CompanyName string `csv:"Company Name"`
	Industry    string `csv:"Industry"`
	Symbol      string `csv:"Symbol"`
	Series      string `csv:"Series"`
}

// holidayRow is one line of the local holiday calendar file.
type holidayRow struct {
	Date string `csv:"Date"`
	Name string `csv:"Name"`
}

// Config holds seeding configuration.
type Config struct {
	Sources      Sources
	HolidayFile  string
	ExtraSymbols []string // symbols outside the Nifty 500 to keep anyway
}

// Seeder orchestrates a full universe refresh.
type Seeder struct {
	store  store.InstrumentStore
	client *http.Client
	cfg    Config
	logger zerolog.Logger

	// overridable in tests
	now func() time.Time
}

// New creates a seeder writing to the given store.
func New(st store.InstrumentStore, cfg Config, logger zerolog.Logger) *Seeder {
	if cfg.Sources == (Sources{}) {
		cfg.Sources = DefaultSources()
	}
	return &Seeder{
		store:  st,
		client: &http.Client{Timeout: 60 * time.Second},
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Run performs the full seeding pass. Any failure in a required source
// aborts the run without touching the store; the previous universe
// stays queryable.
func (s *Seeder) Run(ctx context.Context) error {
	universe, err := s.nifty500(ctx)
	if err != nil {
		return err
	}
	for _, symbol := range s.cfg.ExtraSymbols {
		universe[strings.ToUpper(symbol)] = struct{}{}
	}

	banned, err := s.banList(ctx)
	if err != nil {
		// Ban list availability varies off-hours; skipping it only
		// over-includes contracts the exchange will reject anyway.
		s.logger.Warn().Err(err).Msg("Ban list unavailable, seeding without ban filter")
		banned = map[string]struct{}{}
	}
	for symbol := range banned {
		delete(universe, symbol)
	}

	options, fnoSymbols, err := s.nfoInstruments(ctx, universe)
	if err != nil {
		return err
	}

	equities, err := s.nseInstruments(ctx, fnoSymbols)
	if err != nil {
		return err
	}

	volatility, err := s.volatility(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Volatility file unavailable, seeding without volatility")
		volatility = map[string]volRecord{}
	}

	instruments := make([]models.Instrument, 0, len(equities)+len(options))
	for i := range equities {
		if v, ok := volatility[equities[i].Symbol]; ok {
			equities[i].DailyVol = v.daily
			equities[i].AnnualVol = v.annual
		}
		instruments = append(instruments, equities[i])
	}
	for i := range options {
		if v, ok := volatility[options[i].Symbol]; ok {
			options[i].DailyVol = v.daily
			options[i].AnnualVol = v.annual
		}
		instruments = append(instruments, options[i])
	}

	if err := s.store.ReplaceInstruments(ctx, instruments); err != nil {
		return err
	}
	s.logger.Info().
		Int("equities", len(equities)).
		Int("options", len(options)).
		Int("banned", len(banned)).
		Msg("Instrument universe replaced")

	return s.seedHolidays(ctx)
}

// nifty500 downloads the index constituents and returns the EQ symbols.
func (s *Seeder) nifty500(ctx context.Context) (map[string]struct{}, error) {
	body, err := download(ctx, s.client, s.cfg.Sources.Nifty500URL)
	if err != nil {
		return nil, err
	}

	var rows []nifty500Row
	if err := gocsv.UnmarshalBytes(body, &rows); err != nil {
		return nil, errors.NewDataError("nifty500", "", "parsing constituents list", err)
	}

	universe := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if row.Series == "" || row.Series == "EQ" {
			universe[strings.ToUpper(row.Symbol)] = struct{}{}
		}
	}
	if len(universe) == 0 {
		return nil, errors.NewDataError("nifty500", "", "constituents list is empty", nil)
	}
	return universe, nil
}

// banList downloads the F&O security ban list. Format: a header line
// followed by "n,SYMBOL" rows.
func (s *Seeder) banList(ctx context.Context) (map[string]struct{}, error) {
	body, err := download(ctx, s.client, s.cfg.Sources.BanListURL)
	if err != nil {
		return nil, err
	}

	banned := make(map[string]struct{})
	for _, line := range strings.Split(string(body), "\n") {
		fields := strings.Split(strings.TrimSpace(line), ",")
		if len(fields) != 2 {
			continue
		}
		if _, err := strconv.Atoi(fields[0]); err != nil {
			continue // header or junk line
		}
		banned[strings.ToUpper(strings.TrimSpace(fields[1]))] = struct{}{}
	}
	return banned, nil
}

// nfoInstruments downloads the NFO master and keeps stock options whose
// underlying is in the universe. It also reports which universe symbols
// actually have F&O contracts, so the equity pass can filter to them.
func (s *Seeder) nfoInstruments(ctx context.Context, universe map[string]struct{}) ([]models.Instrument, map[string]struct{}, error) {
	body, err := downloadZip(ctx, s.client, s.cfg.Sources.NFOMasterURL)
	if err != nil {
		return nil, nil, err
	}

	var rows []nfoMasterRow
	if err := gocsv.UnmarshalBytes(body, &rows); err != nil {
		return nil, nil, errors.NewDataError("nfo-master", "", "parsing symbol master", err)
	}

	fnoSymbols := make(map[string]struct{})
	var instruments []models.Instrument
	for _, row := range rows {
		if row.Instrument != "OPTSTK" {
			continue
		}
		symbol := strings.ToUpper(row.Symbol)
		if _, ok := universe[symbol]; !ok {
			continue
		}
		side := models.OptionSide(row.OptionType)
		if side != models.OptionCall && side != models.OptionPut {
			continue
		}

		fnoSymbols[symbol] = struct{}{}
		instruments = append(instruments, models.Instrument{
			ID:            row.TradingSymbol,
			Exchange:      models.NFO,
			Token:         row.Token,
			LotSize:       row.LotSize,
			Symbol:        symbol,
			TradingSymbol: row.TradingSymbol,
			Expiry:        row.Expiry,
			Instrument:    row.Instrument,
			OptionType:    side,
			StrikePrice:   row.StrikePrice,
			TickSize:      row.TickSize,
		})
	}
	if len(instruments) == 0 {
		return nil, nil, errors.NewDataError("nfo-master", "", "no stock options matched the universe", nil)
	}
	return instruments, fnoSymbols, nil
}

// nseInstruments downloads the NSE master and keeps the EQ rows for
// symbols that have F&O contracts.
func (s *Seeder) nseInstruments(ctx context.Context, fnoSymbols map[string]struct{}) ([]models.Instrument, error) {
	body, err := downloadZip(ctx, s.client, s.cfg.Sources.NSEMasterURL)
	if err != nil {
		return nil, err
	}

	var rows []nseMasterRow
	if err := gocsv.UnmarshalBytes(body, &rows); err != nil {
		return nil, errors.NewDataError("nse-master", "", "parsing symbol master", err)
	}

	var instruments []models.Instrument
	for _, row := range rows {
		symbol := strings.ToUpper(row.Symbol)
		if _, ok := fnoSymbols[symbol]; !ok {
			continue
		}
		if !strings.HasSuffix(row.TradingSymbol, "-EQ") {
			continue
		}
		instruments = append(instruments, models.Instrument{
			ID:            row.TradingSymbol,
			Exchange:      models.NSE,
			Token:         row.Token,
			LotSize:       row.LotSize,
			Symbol:        symbol,
			TradingSymbol: row.TradingSymbol,
			Instrument:    "EQ",
			OptionType:    models.OptionNone,
			TickSize:      row.TickSize,
		})
	}
	return instruments, nil
}

type volRecord struct {
	daily  float64
	annual float64
}

// volatility downloads the exchange's daily volatility file for today.
// The file has verbose formula headers that shift between revisions, so
// rows are read positionally: symbol in column 1, current daily
// volatility in column 6, annualised volatility in column 7. Values are
// fractions in the file and stored as percents.
func (s *Seeder) volatility(ctx context.Context) (map[string]volRecord, error) {
	url := s.cfg.Sources.VolatilityURL + s.now().In(calendar.ISTLocation).Format("02012006") + ".CSV"
	body, err := download(ctx, s.client, url)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.NewDataError("volatility", "", "parsing volatility file", err)
	}

	vols := make(map[string]volRecord)
	for i, record := range records {
		if i == 0 || len(record) < 8 {
			continue
		}
		daily, errD := strconv.ParseFloat(strings.TrimSpace(record[6]), 64)
		annual, errA := strconv.ParseFloat(strings.TrimSpace(record[7]), 64)
		if errD != nil || errA != nil {
			continue
		}
		vols[strings.ToUpper(strings.TrimSpace(record[1]))] = volRecord{
			daily:  daily * 100,
			annual: annual * 100,
		}
	}
	if len(vols) == 0 {
		return nil, errors.NewDataError("volatility", "", "volatility file had no usable rows", nil)
	}
	return vols, nil
}

// seedHolidays loads the local holiday calendar file, when configured.
func (s *Seeder) seedHolidays(ctx context.Context) error {
	if s.cfg.HolidayFile == "" {
		return nil
	}

	body, err := os.ReadFile(s.cfg.HolidayFile)
	if err != nil {
		return errors.NewDataError("holidays", "", "reading holiday file", err)
	}

	var rows []holidayRow
	if err := gocsv.UnmarshalBytes(body, &rows); err != nil {
		return errors.NewDataError("holidays", "", "parsing holiday file", err)
	}

	holidays := make([]models.Holiday, 0, len(rows))
	for _, row := range rows {
		parsed, err := calendar.ParseDate(row.Date)
		if err != nil {
			s.logger.Warn().Err(err).Str("date", row.Date).Msg("Skipping unparseable holiday row")
			continue
		}
		holidays = append(holidays, models.Holiday{
			Date: parsed.Format("2006-01-02"),
			Name: strings.TrimSpace(row.Name),
		})
	}

	if err := s.store.ReplaceHolidays(ctx, holidays); err != nil {
		return err
	}
	s.logger.Info().Int("count", len(holidays)).Msg("Holiday calendar replaced")
	return nil
}
