package yahoo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bistx/internal/domain"
	"bistx/internal/util"
)

// Batch sequentially fetches a list of symbols through a shared session.
// One symbol's failure never aborts the batch: errors are recorded per
// symbol and the loop moves on. A uniformly random delay in
// [SleepMin, SleepMax] follows every symbol, throttling request rate.
type Batch struct {
	Client   *ChartClient
	Range    string
	Interval string
	SleepMin time.Duration
	SleepMax time.Duration

	log *slog.Logger
}

// NewBatch creates a Batch over the given client and shared range/interval.
func NewBatch(client *ChartClient, rng, interval string, sleepMin, sleepMax time.Duration) *Batch {
	if client == nil {
		client = NewChartClient(nil)
	}
	return &Batch{
		Client:   client,
		Range:    rng,
		Interval: interval,
		SleepMin: sleepMin,
		SleepMax: sleepMax,
		log:      slog.Default().With("component", "batch"),
	}
}

// Run fetches every symbol in order and aggregates the results. The
// returned table concatenates rows across all successful symbols and
// carries the fixed column set even when no symbol succeeded. Successes
// land in Metas, failures in Errors; together they cover every attempted
// symbol exactly once. Run returns an error only on context cancellation.
func (b *Batch) Run(ctx context.Context, symbols []string) (domain.BatchResult, error) {
	result := domain.BatchResult{
		Table:  domain.NewBarTable(),
		Metas:  make(map[string]domain.InstrumentMeta, len(symbols)),
		Errors: make(map[string]string),
	}

	for i, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		progress := fmt.Sprintf("%d/%d", i+1, len(symbols))
		table, meta, err := b.Client.Fetch(ctx, sym, b.Range, b.Interval)
		if err != nil {
			result.Errors[sym] = err.Error()
			b.log.Warn("fetch failed", "progress", progress, "symbol", sym, "err", err)
		} else {
			result.Table.Rows = append(result.Table.Rows, table.Rows...)
			result.Metas[sym] = meta
			b.log.Info("fetched", "progress", progress, "symbol", sym, "rows", len(table.Rows))
		}

		if err := util.SleepJitter(ctx, b.SleepMin, b.SleepMax); err != nil {
			return result, err
		}
	}

	return result, nil
}
