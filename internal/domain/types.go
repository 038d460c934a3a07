// Package domain defines the core data types shared across the ingestion
// pipeline: OHLCV bars, instrument metadata snapshots, run audit records,
// and the aggregated batch result.
package domain

import (
	"time"

	"github.com/guregu/null/v5"
)

// TimeLayout is the storage representation for timestamps: second precision,
// no timezone suffix. The timezone is implied by the column the string is
// stored in.
const TimeLayout = "2006-01-02 15:04:05"

// BarColumns is the fixed column set of an aggregated bar table, in storage
// order. An empty table still carries this set.
var BarColumns = []string{
	"ticker", "datetime",
	"open", "high", "low", "close", "volume", "adjclose",
	"range", "interval",
}

// RequiredColumns must be present in a table before it can be persisted.
var RequiredColumns = []string{"ticker", "open", "high", "low", "close", "volume"}

// Bar is one OHLCV observation for one symbol at one instant.
// (Symbol, Time truncated to whole seconds, Interval) uniquely identifies a
// bar and is the natural key for storage deduplication.
type Bar struct {
	Symbol    string
	Time      time.Time // absolute UTC instant
	LocalTime time.Time // same instant in the exchange-declared timezone
	TRTime    time.Time // same instant in Europe/Istanbul

	Open     null.Float
	High     null.Float
	Low      null.Float
	Close    null.Float
	Volume   null.Float
	AdjClose null.Float

	Range    string // requested lookback, e.g. "60d"
	Interval string // requested bar granularity, e.g. "5m"
}

// BarTable is an aggregated sequence of bars together with its column set.
// The column set travels with the rows so that consumers can validate
// presence of required columns even for empty or hand-built tables.
type BarTable struct {
	Columns []string
	Rows    []Bar
}

// NewBarTable returns an empty table carrying the fixed column set.
func NewBarTable() BarTable {
	return BarTable{Columns: append([]string(nil), BarColumns...)}
}

// HasColumn reports whether the table carries the named column.
func (t BarTable) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// InstrumentMeta is the provider-supplied descriptive and last-quote
// snapshot for one symbol. The latest ingestion overwrites the prior
// snapshot entirely; it is a "most recent known state", not a history.
type InstrumentMeta struct {
	Symbol               string      `json:"symbol"`
	Currency             null.String `json:"currency"`
	ExchangeName         null.String `json:"exchangeName"`
	FullExchangeName     null.String `json:"fullExchangeName"`
	InstrumentType       null.String `json:"instrumentType"`
	FirstTradeDate       null.Int    `json:"firstTradeDate"`
	RegularMarketTime    null.Int    `json:"regularMarketTime"`
	HasPrePostMarketData null.Bool   `json:"hasPrePostMarketData"`
	GMTOffset            null.Int    `json:"gmtoffset"`
	Timezone             null.String `json:"timezone"`
	ExchangeTimezoneName null.String `json:"exchangeTimezoneName"`
	RegularMarketPrice   null.Float  `json:"regularMarketPrice"`
	FiftyTwoWeekHigh     null.Float  `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow      null.Float  `json:"fiftyTwoWeekLow"`
	RegularMarketDayHigh null.Float  `json:"regularMarketDayHigh"`
	RegularMarketDayLow  null.Float  `json:"regularMarketDayLow"`
	RegularMarketVolume  null.Float  `json:"regularMarketVolume"`
	LongName             null.String `json:"longName"`
	ShortName            null.String `json:"shortName"`
	ChartPreviousClose   null.Float  `json:"chartPreviousClose"`
	PreviousClose        null.Float  `json:"previousClose"`
	Scale                null.Int    `json:"scale"`
	PriceHint            null.Int    `json:"priceHint"`
}

// Run is the audit record of one ingestion batch. Every price and meta row
// written during the batch carries its RunID.
type Run struct {
	RunID     string
	StartedAt string // TimeLayout, UTC
	Range     string
	Interval  string
	NRows     int
	Note      null.String
}

// BatchResult aggregates one orchestrator pass over a symbol list. The
// success (Metas) and failure (Errors) partitions are exhaustive and
// disjoint over the attempted symbols.
type BatchResult struct {
	Table  BarTable
	Metas  map[string]InstrumentMeta
	Errors map[string]string
}

// Attempted returns the number of symbols the batch tried to fetch.
func (r BatchResult) Attempted() int {
	return len(r.Metas) + len(r.Errors)
}
