package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null/v5"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"bistx/internal/domain"
)

// Compile-time interface check.
var _ PriceStore = (*SQLiteStore)(nil)

// ValidationError reports an input batch missing required columns. It is
// raised before any row is written.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// SQLiteStore implements PriceStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database at dbPath and returns a
// ready-to-use SQLiteStore.
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %s: %w", dbPath, err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Schema
// ---------------------------------------------------------------------------

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		rng TEXT NOT NULL,
		interval TEXT NOT NULL,
		n_rows INTEGER NOT NULL,
		note TEXT
	);`,
	`CREATE TABLE IF NOT EXISTS prices (
		ticker TEXT NOT NULL,
		datetime_utc TEXT NOT NULL,
		datetime_local TEXT,
		datetime_tr TEXT,
		open REAL,
		high REAL,
		low REAL,
		close REAL,
		volume REAL,
		adjclose REAL,
		range_str TEXT,
		interval TEXT,
		ingested_at TEXT NOT NULL,
		run_id TEXT NOT NULL,
		PRIMARY KEY (ticker, datetime_utc, interval)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_prices_ticker ON prices(ticker);`,
	`CREATE INDEX IF NOT EXISTS idx_prices_dt ON prices(datetime_utc);`,
	`CREATE TABLE IF NOT EXISTS meta (
		symbol TEXT PRIMARY KEY,
		currency TEXT,
		exchangeName TEXT,
		fullExchangeName TEXT,
		instrumentType TEXT,
		firstTradeDate INTEGER,
		regularMarketTime INTEGER,
		hasPrePostMarketData INTEGER,
		gmtoffset INTEGER,
		timezone TEXT,
		exchangeTimezoneName TEXT,
		regularMarketPrice REAL,
		fiftyTwoWeekHigh REAL,
		fiftyTwoWeekLow REAL,
		regularMarketDayHigh REAL,
		regularMarketDayLow REAL,
		regularMarketVolume REAL,
		longName TEXT,
		shortName TEXT,
		chartPreviousClose REAL,
		previousClose REAL,
		scale INTEGER,
		priceHint INTEGER,
		ingested_at TEXT,
		run_id TEXT
	);`,
}

// InitSchema idempotently creates the runs, prices, and meta tables plus
// supporting indexes. Safe to call on every startup.
func (s *SQLiteStore) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("initializing schema: %w", err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Prices
// ---------------------------------------------------------------------------

const upsertPriceSQL = `
	INSERT INTO prices (
		ticker, datetime_utc, datetime_local, datetime_tr,
		open, high, low, close, volume, adjclose,
		range_str, interval, ingested_at, run_id
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	ON CONFLICT(ticker, datetime_utc, interval) DO UPDATE SET
		open=excluded.open,
		high=excluded.high,
		low=excluded.low,
		close=excluded.close,
		volume=excluded.volume,
		adjclose=excluded.adjclose,
		range_str=excluded.range_str,
		ingested_at=excluded.ingested_at,
		run_id=excluded.run_id;`

const insertRunSQL = `
	INSERT OR REPLACE INTO runs (run_id, started_at, rng, interval, n_rows, note)
	VALUES (?, ?, ?, ?, ?, ?);`

// UpsertPrices validates the table's column set, stamps every row with the
// run identifier and an ingestion timestamp, and upserts each row keyed on
// (ticker, datetime_utc, interval). A conflicting row has its measurement
// fields, range tag, ingestion timestamp, and run identifier overwritten;
// the natural key itself is never altered. Exactly one summary row is then
// written to runs. Returns the run identifier used (generated when
// opts.RunID is empty).
func (s *SQLiteStore) UpsertPrices(ctx context.Context, table domain.BarTable, rng, interval string, opts UpsertOptions) (string, error) {
	var missing []string
	for _, col := range domain.RequiredColumns {
		if !table.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return "", &ValidationError{Missing: missing}
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	ingestedAt := time.Now().UTC().Format(domain.TimeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertPriceSQL)
	if err != nil {
		return "", fmt.Errorf("preparing price upsert: %w", err)
	}
	defer stmt.Close()

	for _, bar := range table.Rows {
		rowRange := bar.Range
		if rowRange == "" {
			rowRange = rng
		}
		rowInterval := bar.Interval
		if rowInterval == "" {
			rowInterval = interval
		}

		_, err := stmt.ExecContext(ctx,
			bar.Symbol,
			bar.Time.UTC().Format(domain.TimeLayout),
			naiveString(bar.LocalTime),
			naiveString(bar.TRTime),
			bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, bar.AdjClose,
			rowRange, rowInterval, ingestedAt, runID,
		)
		if err != nil {
			return "", fmt.Errorf("upserting price row %s@%s: %w", bar.Symbol, bar.Time, err)
		}
	}

	note := null.NewString(opts.Note, opts.Note != "")
	if _, err := tx.ExecContext(ctx, insertRunSQL, runID, ingestedAt, rng, interval, len(table.Rows), note); err != nil {
		return "", fmt.Errorf("logging run %s: %w", runID, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing price upsert: %w", err)
	}
	return runID, nil
}

// naiveString formats a timestamp in its own location with no timezone
// suffix. A zero time maps to NULL.
func naiveString(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(domain.TimeLayout)
}

// ---------------------------------------------------------------------------
// Meta
// ---------------------------------------------------------------------------

const upsertMetaSQL = `
	INSERT INTO meta (
		symbol, currency, exchangeName, fullExchangeName, instrumentType,
		firstTradeDate, regularMarketTime, hasPrePostMarketData, gmtoffset,
		timezone, exchangeTimezoneName, regularMarketPrice, fiftyTwoWeekHigh,
		fiftyTwoWeekLow, regularMarketDayHigh, regularMarketDayLow,
		regularMarketVolume, longName, shortName, chartPreviousClose,
		previousClose, scale, priceHint, ingested_at, run_id
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	ON CONFLICT(symbol) DO UPDATE SET
		currency=excluded.currency,
		exchangeName=excluded.exchangeName,
		fullExchangeName=excluded.fullExchangeName,
		instrumentType=excluded.instrumentType,
		firstTradeDate=excluded.firstTradeDate,
		regularMarketTime=excluded.regularMarketTime,
		hasPrePostMarketData=excluded.hasPrePostMarketData,
		gmtoffset=excluded.gmtoffset,
		timezone=excluded.timezone,
		exchangeTimezoneName=excluded.exchangeTimezoneName,
		regularMarketPrice=excluded.regularMarketPrice,
		fiftyTwoWeekHigh=excluded.fiftyTwoWeekHigh,
		fiftyTwoWeekLow=excluded.fiftyTwoWeekLow,
		regularMarketDayHigh=excluded.regularMarketDayHigh,
		regularMarketDayLow=excluded.regularMarketDayLow,
		regularMarketVolume=excluded.regularMarketVolume,
		longName=excluded.longName,
		shortName=excluded.shortName,
		chartPreviousClose=excluded.chartPreviousClose,
		previousClose=excluded.previousClose,
		scale=excluded.scale,
		priceHint=excluded.priceHint,
		ingested_at=excluded.ingested_at,
		run_id=excluded.run_id;`

// UpsertMeta performs a full-row upsert of metadata snapshots keyed on
// symbol: every field of an existing row is overwritten on conflict, not
// merged. The run identifier defaults to "manual" when empty.
func (s *SQLiteStore) UpsertMeta(ctx context.Context, metas map[string]domain.InstrumentMeta, runID string) error {
	if runID == "" {
		runID = "manual"
	}
	ingestedAt := time.Now().UTC().Format(domain.TimeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertMetaSQL)
	if err != nil {
		return fmt.Errorf("preparing meta upsert: %w", err)
	}
	defer stmt.Close()

	for sym, m := range metas {
		symbol := m.Symbol
		if symbol == "" {
			symbol = sym
		}

		_, err := stmt.ExecContext(ctx,
			symbol, m.Currency, m.ExchangeName, m.FullExchangeName, m.InstrumentType,
			m.FirstTradeDate, m.RegularMarketTime, m.HasPrePostMarketData, m.GMTOffset,
			m.Timezone, m.ExchangeTimezoneName, m.RegularMarketPrice, m.FiftyTwoWeekHigh,
			m.FiftyTwoWeekLow, m.RegularMarketDayHigh, m.RegularMarketDayLow,
			m.RegularMarketVolume, m.LongName, m.ShortName, m.ChartPreviousClose,
			m.PreviousClose, m.Scale, m.PriceHint, ingestedAt, runID,
		)
		if err != nil {
			return fmt.Errorf("upserting meta for %s: %w", symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing meta upsert: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Read helpers
// ---------------------------------------------------------------------------

// CountPrices returns the total number of rows in the prices table.
func (s *SQLiteStore) CountPrices(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM prices`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting prices: %w", err)
	}
	return n, nil
}

// GetRun returns the audit record for a run identifier.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (domain.Run, error) {
	var run domain.Run
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, started_at, rng, interval, n_rows, note FROM runs WHERE run_id = ?`,
		runID,
	).Scan(&run.RunID, &run.StartedAt, &run.Range, &run.Interval, &run.NRows, &run.Note)
	if err != nil {
		return domain.Run{}, fmt.Errorf("reading run %s: %w", runID, err)
	}
	return run, nil
}
