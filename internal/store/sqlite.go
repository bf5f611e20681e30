// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"shoonya-screener/internal/models"
)

// SQLiteStore implements InstrumentStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based instrument store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Instrument universe, replaced wholesale by the seeding job
	CREATE TABLE IF NOT EXISTS instruments (
		id TEXT PRIMARY KEY,
		exchange TEXT NOT NULL,
		token TEXT NOT NULL,
		lot_size INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		trading_symbol TEXT NOT NULL,
		expiry TEXT NOT NULL,
		instrument TEXT NOT NULL,
		option_type TEXT NOT NULL,
		strike_price REAL NOT NULL,
		tick_size REAL NOT NULL,
		dv REAL,
		av REAL
	);

	CREATE INDEX IF NOT EXISTS idx_instruments_symbol ON instruments(symbol);
	CREATE INDEX IF NOT EXISTS idx_instruments_exchange ON instruments(exchange);

	-- Market holidays, loaded once at startup
	CREATE TABLE IF NOT EXISTS holidays (
		date TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Equities returns all equity-type instruments sorted by symbol.
func (s *SQLiteStore) Equities(ctx context.Context) ([]models.Instrument, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, exchange, token, lot_size, symbol, trading_symbol,
		       expiry, instrument, option_type, strike_price, tick_size,
		       COALESCE(dv, 0), COALESCE(av, 0)
		FROM instruments
		WHERE instrument = 'EQ'
		ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying equities: %w", err)
	}
	defer rows.Close()

	return scanInstruments(rows)
}

// Subscription returns the equity for a symbol together with its option
// chain for the given expiry suffix, sorted by strike ascending.
func (s *SQLiteStore) Subscription(ctx context.Context, symbol, expirySuffix string) (*models.Instrument, []models.Instrument, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, exchange, token, lot_size, symbol, trading_symbol,
		       expiry, instrument, option_type, strike_price, tick_size,
		       COALESCE(dv, 0), COALESCE(av, 0)
		FROM instruments
		WHERE id = ?`, symbol+"-EQ")

	equity, err := scanInstrument(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, fmt.Errorf("equity %s: not found", symbol)
		}
		return nil, nil, fmt.Errorf("querying equity %s: %w", symbol, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, exchange, token, lot_size, symbol, trading_symbol,
		       expiry, instrument, option_type, strike_price, tick_size,
		       COALESCE(dv, 0), COALESCE(av, 0)
		FROM instruments
		WHERE symbol = ?
		  AND exchange = 'NFO'
		  AND option_type IN ('CE', 'PE')
		  AND expiry LIKE ?
		ORDER BY strike_price ASC`, symbol, "%"+expirySuffix)
	if err != nil {
		return nil, nil, fmt.Errorf("querying option chain for %s: %w", symbol, err)
	}
	defer rows.Close()

	chain, err := scanInstruments(rows)
	if err != nil {
		return nil, nil, err
	}

	return &equity, chain, nil
}

// DistinctExpiries returns the distinct expiry values across the option
// universe.
func (s *SQLiteStore) DistinctExpiries(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT expiry FROM instruments
		WHERE option_type IN ('CE', 'PE') AND expiry != ''`)
	if err != nil {
		return nil, fmt.Errorf("querying distinct expiries: %w", err)
	}
	defer rows.Close()

	var expiries []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, err
		}
		expiries = append(expiries, e)
	}
	return expiries, rows.Err()
}

// Holidays returns all market holidays.
func (s *SQLiteStore) Holidays(ctx context.Context) ([]models.Holiday, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT date, name FROM holidays ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("querying holidays: %w", err)
	}
	defer rows.Close()

	var holidays []models.Holiday
	for rows.Next() {
		var h models.Holiday
		if err := rows.Scan(&h.Date, &h.Name); err != nil {
			return nil, err
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// ReplaceInstruments atomically replaces the instrument universe.
func (s *SQLiteStore) ReplaceInstruments(ctx context.Context, instruments []models.Instrument) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM instruments`); err != nil {
		return fmt.Errorf("clearing instruments: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO instruments (id, exchange, token, lot_size, symbol,
			trading_symbol, expiry, instrument, option_type, strike_price,
			tick_size, dv, av)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, i := range instruments {
		_, err := stmt.ExecContext(ctx, i.ID, string(i.Exchange), i.Token,
			i.LotSize, i.Symbol, i.TradingSymbol, i.Expiry, i.Instrument,
			string(i.OptionType), i.StrikePrice, i.TickSize, i.DailyVol, i.AnnualVol)
		if err != nil {
			return fmt.Errorf("inserting instrument %s: %w", i.ID, err)
		}
	}

	return tx.Commit()
}

// ReplaceHolidays atomically replaces the holiday calendar.
func (s *SQLiteStore) ReplaceHolidays(ctx context.Context, holidays []models.Holiday) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM holidays`); err != nil {
		return fmt.Errorf("clearing holidays: %w", err)
	}

	for _, h := range holidays {
		if _, err := tx.ExecContext(ctx, `INSERT INTO holidays (date, name) VALUES (?, ?)`, h.Date, h.Name); err != nil {
			return fmt.Errorf("inserting holiday %s: %w", h.Date, err)
		}
	}

	return tx.Commit()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInstrument(row rowScanner) (models.Instrument, error) {
	var i models.Instrument
	var exchange, optionType string
	err := row.Scan(&i.ID, &exchange, &i.Token, &i.LotSize, &i.Symbol,
		&i.TradingSymbol, &i.Expiry, &i.Instrument, &optionType,
		&i.StrikePrice, &i.TickSize, &i.DailyVol, &i.AnnualVol)
	if err != nil {
		return models.Instrument{}, err
	}
	i.Exchange = models.Exchange(exchange)
	i.OptionType = models.OptionSide(optionType)
	return i, nil
}

func scanInstruments(rows *sql.Rows) ([]models.Instrument, error) {
	var instruments []models.Instrument
	for rows.Next() {
		i, err := scanInstrument(rows)
		if err != nil {
			return nil, err
		}
		instruments = append(instruments, i)
	}
	return instruments, rows.Err()
}

// Ensure SQLiteStore implements InstrumentStore
var _ InstrumentStore = (*SQLiteStore)(nil)
