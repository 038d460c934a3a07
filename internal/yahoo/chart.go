package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"bistx/internal/domain"
	"bistx/internal/util"
)

// Known API mirrors, attempted in round-robin order.
var defaultHosts = []string{
	"query1.finance.yahoo.com",
	"query2.finance.yahoo.com",
}

const defaultQuotePageBase = "https://finance.yahoo.com"

// ChartClient fetches OHLCV chart data and instrument metadata for single
// symbols. The zero value is not usable; construct with NewChartClient.
type ChartClient struct {
	Session        *http.Client
	Hosts          []string // candidate API hosts, round-robin
	Passes         int      // full passes over Hosts before giving up
	IncludePrePost bool

	// Sleep windows between failover attempts. Rate-limit responses back
	// off longer than other failures.
	RateLimitSleepMin time.Duration
	RateLimitSleepMax time.Duration
	ErrorSleepMin     time.Duration
	ErrorSleepMax     time.Duration

	// scheme and quotePageBase are overridable for tests.
	scheme        string
	quotePageBase string
}

// NewChartClient creates a ChartClient using the given session, falling
// back to a default session when nil.
func NewChartClient(session *http.Client) *ChartClient {
	if session == nil {
		session = NewSession(SessionOptions{})
	}
	return &ChartClient{
		Session:           session,
		Hosts:             append([]string(nil), defaultHosts...),
		Passes:            2,
		RateLimitSleepMin: 1250 * time.Millisecond,
		RateLimitSleepMax: 2250 * time.Millisecond,
		ErrorSleepMin:     400 * time.Millisecond,
		ErrorSleepMax:     1400 * time.Millisecond,
		scheme:            "https",
		quotePageBase:     defaultQuotePageBase,
	}
}

// Fetch retrieves the chart for one symbol over the requested range and
// interval. It issues a best-effort cookie warm-up request, then tries the
// data query against each candidate host round-robin, backing off on rate
// limits. Rows come back sorted ascending by UTC instant, with the
// exchange-local and Europe/Istanbul projections attached.
func (c *ChartClient) Fetch(ctx context.Context, symbol, rng, interval string) (domain.BarTable, domain.InstrumentMeta, error) {
	table := domain.NewBarTable()

	c.warmUp(ctx, symbol)

	params := url.Values{
		"range":          {rng},
		"interval":       {interval},
		"includePrePost": {fmt.Sprintf("%t", c.IncludePrePost)},
		"events":         {"history"},
		"corsDomain":     {"finance.yahoo.com"},
	}

	env, err := c.query(ctx, symbol, params)
	if err != nil {
		return table, domain.InstrumentMeta{}, err
	}

	if env.hasError() {
		return table, domain.InstrumentMeta{}, &FetchError{
			Kind: KindProvider, Symbol: symbol, Detail: string(env.Chart.Error),
		}
	}
	if len(env.Chart.Result) == 0 {
		return table, domain.InstrumentMeta{}, &FetchError{Kind: KindEmptyResult, Symbol: symbol}
	}
	res := env.Chart.Result[0]
	if len(res.Timestamp) == 0 {
		return table, domain.InstrumentMeta{}, &FetchError{Kind: KindNoData, Symbol: symbol}
	}

	meta := res.Meta
	if meta.Symbol == "" {
		meta.Symbol = symbol
	}

	table.Rows = buildRows(symbol, rng, interval, res)
	return table, meta, nil
}

// warmUp requests the human-facing quote page to acquire session cookies.
// Failures are swallowed: its only purpose is improving the odds of the
// data request that follows.
func (c *ChartClient) warmUp(ctx context.Context, symbol string) {
	u := fmt.Sprintf("%s/quote/%s/chart", c.quotePageBase, url.PathEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return
	}
	req.Header.Set("Referer", u)
	resp, err := c.Session.Do(req)
	if err != nil {
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// query runs the data request against the candidate hosts, round-robin, up
// to Passes full passes. A 429 final status sleeps the rate-limit window
// before the next candidate; any other failure sleeps the shorter error
// window. The first parseable JSON body wins.
func (c *ChartClient) query(ctx context.Context, symbol string, params url.Values) (*chartEnvelope, error) {
	referer := fmt.Sprintf("%s/quote/%s/chart", c.quotePageBase, url.PathEscape(symbol))

	var lastErr error
	attempts := c.Passes * len(c.Hosts)

	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			break
		}
		host := c.Hosts[i%len(c.Hosts)]
		u := fmt.Sprintf("%s://%s/v8/finance/chart/%s?%s", c.scheme, host, url.PathEscape(symbol), params.Encode())

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Referer", referer)

		resp, err := c.Session.Do(req)
		if err != nil {
			lastErr = err
			util.SleepJitter(ctx, c.ErrorSleepMin, c.ErrorSleepMax)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("%s: status 429", host)
			util.SleepJitter(ctx, c.RateLimitSleepMin, c.RateLimitSleepMax)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("%s: status %d", host, resp.StatusCode)
			util.SleepJitter(ctx, c.ErrorSleepMin, c.ErrorSleepMax)
			continue
		}
		if readErr != nil {
			lastErr = fmt.Errorf("%s: %w", host, readErr)
			util.SleepJitter(ctx, c.ErrorSleepMin, c.ErrorSleepMax)
			continue
		}

		env := &chartEnvelope{}
		if err := json.Unmarshal(body, env); err != nil {
			lastErr = fmt.Errorf("%s: decoding response: %w", host, err)
			util.SleepJitter(ctx, c.ErrorSleepMin, c.ErrorSleepMax)
			continue
		}
		return env, nil
	}

	return nil, &FetchError{Kind: KindHTTP, Symbol: symbol, Err: lastErr}
}

// buildRows converts the parsed result into one bar per timestamp, sorted
// ascending by instant. Missing or non-numeric quote entries become nulls.
// The adjclose column is used only when its length exactly matches the row
// count; otherwise every row gets a null adjusted close.
func buildRows(symbol, rng, interval string, res chartResult) []domain.Bar {
	loc := locationOrUTC(res.Meta.Timezone.ValueOrZero())
	tr := istanbul()

	var quote quoteBlock
	if len(res.Indicators.Quote) > 0 {
		quote = res.Indicators.Quote[0]
	}

	var adj []looseFloat
	if len(res.Indicators.AdjClose) > 0 {
		adj = res.Indicators.AdjClose[0].AdjClose
	}
	useAdj := len(adj) == len(res.Timestamp)

	rows := make([]domain.Bar, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		utc := time.Unix(ts, 0).UTC()
		bar := domain.Bar{
			Symbol:    symbol,
			Time:      utc,
			LocalTime: utc.In(loc),
			TRTime:    utc.In(tr),
			Open:      floatAt(quote.Open, i),
			High:      floatAt(quote.High, i),
			Low:       floatAt(quote.Low, i),
			Close:     floatAt(quote.Close, i),
			Volume:    floatAt(quote.Volume, i),
			Range:     rng,
			Interval:  interval,
		}
		if useAdj {
			bar.AdjClose = adj[i].Float
		}
		rows = append(rows, bar)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Time.Before(rows[j].Time)
	})
	return rows
}

// locationOrUTC resolves the provider-declared timezone name, treating
// unknown or empty names as UTC.
func locationOrUTC(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

var (
	istanbulOnce sync.Once
	istanbulLoc  *time.Location
)

// istanbul returns the Europe/Istanbul location, falling back to a fixed
// +03:00 zone when the zone database is unavailable (Istanbul has not
// observed DST since 2016).
func istanbul() *time.Location {
	istanbulOnce.Do(func() {
		loc, err := time.LoadLocation("Europe/Istanbul")
		if err != nil {
			loc = time.FixedZone("+03", 3*60*60)
		}
		istanbulLoc = loc
	})
	return istanbulLoc
}
