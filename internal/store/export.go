package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/guregu/null/v5"
	"github.com/parquet-go/parquet-go"

	"bistx/internal/domain"
)

// csvHeader is the column order of the exported CSV. Timestamps are split
// into the three naive projections up front, followed by the zone name the
// local columns were resolved in.
var csvHeader = []string{
	"datetime_local", "datetime_utc", "datetime_tr", "tz",
	"ticker", "open", "high", "low", "close", "volume", "adjclose",
	"range", "interval",
}

// exportRecord is the Parquet schema for exported bars. Nullable
// measurements map to optional columns.
type exportRecord struct {
	Ticker        string   `parquet:"ticker"`
	DatetimeUTC   int64    `parquet:"datetime_utc,timestamp(millisecond)"`
	DatetimeLocal string   `parquet:"datetime_local"`
	DatetimeTR    string   `parquet:"datetime_tr"`
	TZ            string   `parquet:"tz"`
	Open          *float64 `parquet:"open,optional"`
	High          *float64 `parquet:"high,optional"`
	Low           *float64 `parquet:"low,optional"`
	Close         *float64 `parquet:"close,optional"`
	Volume        *float64 `parquet:"volume,optional"`
	AdjClose      *float64 `parquet:"adjclose,optional"`
	Range         string   `parquet:"range"`
	Interval      string   `parquet:"interval"`
}

// ExportTable writes the aggregated table as a combined CSV and Parquet
// file pair under outDir (created if missing), named
// <prefix>_<rng>_<interval>_<YYYYMMDD_HHMMSS>.{csv,parquet}. Returns the
// two paths written.
func ExportTable(table domain.BarTable, rng, interval, prefix, outDir string) (string, string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", "", fmt.Errorf("creating output dir: %w", err)
	}

	stem := fmt.Sprintf("%s_%s_%s_%s", prefix, rng, interval, time.Now().Format("20060102_150405"))
	csvPath := filepath.Join(outDir, stem+".csv")
	parquetPath := filepath.Join(outDir, stem+".parquet")

	if err := writeCSV(csvPath, table); err != nil {
		return "", "", fmt.Errorf("writing csv: %w", err)
	}
	if err := writeParquet(parquetPath, table); err != nil {
		return "", "", fmt.Errorf("writing parquet: %w", err)
	}
	return csvPath, parquetPath, nil
}

func writeCSV(path string, table domain.BarTable) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}

	for _, bar := range table.Rows {
		record := []string{
			bar.LocalTime.Format(domain.TimeLayout),
			bar.Time.UTC().Format(domain.TimeLayout),
			bar.TRTime.Format(domain.TimeLayout),
			bar.LocalTime.Location().String(),
			bar.Symbol,
			csvFloat(bar.Open),
			csvFloat(bar.High),
			csvFloat(bar.Low),
			csvFloat(bar.Close),
			csvFloat(bar.Volume),
			csvFloat(bar.AdjClose),
			bar.Range,
			bar.Interval,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// csvFloat renders a nullable float; nulls become empty cells.
func csvFloat(v null.Float) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'f', -1, 64)
}

func writeParquet(path string, table domain.BarTable) error {
	records := make([]exportRecord, 0, len(table.Rows))
	for _, bar := range table.Rows {
		records = append(records, exportRecord{
			Ticker:        bar.Symbol,
			DatetimeUTC:   bar.Time.UnixMilli(),
			DatetimeLocal: bar.LocalTime.Format(domain.TimeLayout),
			DatetimeTR:    bar.TRTime.Format(domain.TimeLayout),
			TZ:            bar.LocalTime.Location().String(),
			Open:          bar.Open.Ptr(),
			High:          bar.High.Ptr(),
			Low:           bar.Low.Ptr(),
			Close:         bar.Close.Ptr(),
			Volume:        bar.Volume.Ptr(),
			AdjClose:      bar.AdjClose.Ptr(),
			Range:         bar.Range,
			Interval:      bar.Interval,
		})
	}
	return parquet.WriteFile(path, records)
}
