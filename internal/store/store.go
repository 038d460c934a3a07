// Package store owns the relational schema for ingested price data and the
// flat-file export of aggregated batches.
package store

import (
	"context"

	"bistx/internal/domain"
)

// PriceStore persists aggregated bar batches and instrument metadata with
// run tracking.
type PriceStore interface {
	// InitSchema idempotently creates all tables and indexes if absent.
	// Safe to call on every startup.
	InitSchema(ctx context.Context) error

	// UpsertPrices upserts the table's rows keyed on
	// (ticker, datetime_utc, interval), logs the run, and returns the run
	// identifier used.
	UpsertPrices(ctx context.Context, table domain.BarTable, rng, interval string, opts UpsertOptions) (string, error)

	// UpsertMeta performs a full-row upsert of metadata snapshots keyed on
	// symbol.
	UpsertMeta(ctx context.Context, metas map[string]domain.InstrumentMeta, runID string) error
}

// UpsertOptions carries the optional parameters of an UpsertPrices call.
type UpsertOptions struct {
	RunID string // generated when empty
	Note  string // free-text note stored on the run row
}
