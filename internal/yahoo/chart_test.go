package yahoo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// testClient builds a ChartClient against httptest hosts with zero backoff
// sleeps and a non-retrying session, so failover behavior is observable
// per request.
func testClient(hosts ...string) *ChartClient {
	sess := NewSession(SessionOptions{MaxRetries: 1, BackoffFactor: 0.001})
	c := NewChartClient(sess)
	c.Hosts = hosts
	c.scheme = "http"
	c.quotePageBase = "http://" + hosts[0]
	c.RateLimitSleepMin, c.RateLimitSleepMax = 0, 0
	c.ErrorSleepMin, c.ErrorSleepMax = 0, 0
	return c
}

func hostOf(srv *httptest.Server) string {
	return strings.TrimPrefix(srv.URL, "http://")
}

// chartServer serves the given body for chart requests and 200s warm-up
// page requests.
func chartServer(body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/quote/") {
			return
		}
		w.Header().Set("Content-Type", "application/json")
		strings.NewReader(body).WriteTo(w)
	}))
}

const singleBarBody = `{"chart":{"result":[{
	"meta":{"symbol":"THYAO.IS","currency":"TRY","exchangeName":"IST","timezone":"UTC"},
	"timestamp":[1700000000],
	"indicators":{"quote":[{"open":[10.5],"high":[11.0],"low":[10.0],"close":[10.8],"volume":[1000]}]}
}],"error":null}}`

func TestFetchSingleBar(t *testing.T) {
	srv := chartServer(singleBarBody)
	defer srv.Close()

	c := testClient(hostOf(srv))
	table, meta, err := c.Fetch(context.Background(), "THYAO.IS", "60d", "5m")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if len(table.Rows) != 1 {
		t.Fatalf("got %d rows, want 1 (one per provider timestamp)", len(table.Rows))
	}
	bar := table.Rows[0]

	if got := bar.Time.UTC().Format("2006-01-02 15:04:05"); got != "2023-11-14 22:13:20" {
		t.Errorf("UTC instant = %q, want %q", got, "2023-11-14 22:13:20")
	}
	if got := bar.TRTime.Format("2006-01-02 15:04:05"); got != "2023-11-15 01:13:20" {
		t.Errorf("Istanbul instant = %q, want %q", got, "2023-11-15 01:13:20")
	}
	if !bar.Open.Valid || bar.Open.Float64 != 10.5 {
		t.Errorf("Open = %+v, want 10.5", bar.Open)
	}
	if !bar.Volume.Valid || bar.Volume.Float64 != 1000 {
		t.Errorf("Volume = %+v, want 1000", bar.Volume)
	}
	if bar.AdjClose.Valid {
		t.Errorf("AdjClose = %+v, want null when provider sends no adjclose", bar.AdjClose)
	}
	if bar.Range != "60d" || bar.Interval != "5m" {
		t.Errorf("Range/Interval = %q/%q, want 60d/5m", bar.Range, bar.Interval)
	}

	if meta.Symbol != "THYAO.IS" {
		t.Errorf("meta.Symbol = %q, want THYAO.IS", meta.Symbol)
	}
	if meta.Currency.ValueOrZero() != "TRY" {
		t.Errorf("meta.Currency = %+v, want TRY", meta.Currency)
	}

	if len(table.Columns) == 0 || !table.HasColumn("volume") {
		t.Errorf("table should carry the fixed column set, got %v", table.Columns)
	}
}

func TestFetchSortsRowsAscending(t *testing.T) {
	body := `{"chart":{"result":[{
		"meta":{"symbol":"X.IS","timezone":"UTC"},
		"timestamp":[1700000300,1700000000],
		"indicators":{"quote":[{"open":[2,1],"high":[2,1],"low":[2,1],"close":[2,1],"volume":[2,1]}]}
	}],"error":null}}`
	srv := chartServer(body)
	defer srv.Close()

	c := testClient(hostOf(srv))
	table, _, err := c.Fetch(context.Background(), "X.IS", "1d", "5m")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(table.Rows))
	}
	if !table.Rows[0].Time.Before(table.Rows[1].Time) {
		t.Error("rows are not sorted ascending by instant")
	}
	// Values must travel with their timestamps through the sort.
	if table.Rows[0].Close.Float64 != 1 || table.Rows[1].Close.Float64 != 2 {
		t.Errorf("close values = %v,%v; want 1,2", table.Rows[0].Close.Float64, table.Rows[1].Close.Float64)
	}
}

func TestFetchCoercesLooseNumerics(t *testing.T) {
	// Numeric strings parse; null, booleans, and short arrays become nulls.
	body := `{"chart":{"result":[{
		"meta":{"symbol":"X.IS","timezone":"UTC"},
		"timestamp":[1700000000,1700000060,1700000120,1700000180],
		"indicators":{"quote":[{
			"open":[10.5,"11.2",null,true],
			"high":[1,2,3,4],
			"low":[1,2,3,4],
			"close":[1,2,3,4],
			"volume":[100]
		}]}
	}],"error":null}}`
	srv := chartServer(body)
	defer srv.Close()

	c := testClient(hostOf(srv))
	table, _, err := c.Fetch(context.Background(), "X.IS", "1d", "1m")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(table.Rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(table.Rows))
	}

	opens := table.Rows
	if !opens[0].Open.Valid || opens[0].Open.Float64 != 10.5 {
		t.Errorf("row 0 Open = %+v, want 10.5", opens[0].Open)
	}
	if !opens[1].Open.Valid || opens[1].Open.Float64 != 11.2 {
		t.Errorf("row 1 Open = %+v, want numeric string coerced to 11.2", opens[1].Open)
	}
	if opens[2].Open.Valid {
		t.Errorf("row 2 Open = %+v, want null", opens[2].Open)
	}
	if opens[3].Open.Valid {
		t.Errorf("row 3 Open = %+v, want null (boolean coerced to null)", opens[3].Open)
	}

	if !opens[0].Volume.Valid || opens[0].Volume.Float64 != 100 {
		t.Errorf("row 0 Volume = %+v, want 100", opens[0].Volume)
	}
	for i := 1; i < 4; i++ {
		if opens[i].Volume.Valid {
			t.Errorf("row %d Volume = %+v, want null (missing entry)", i, opens[i].Volume)
		}
	}
}

func TestFetchAdjCloseLengthRule(t *testing.T) {
	mismatch := `{"chart":{"result":[{
		"meta":{"symbol":"X.IS","timezone":"UTC"},
		"timestamp":[1700000000,1700000060],
		"indicators":{
			"quote":[{"open":[1,2],"high":[1,2],"low":[1,2],"close":[1,2],"volume":[1,2]}],
			"adjclose":[{"adjclose":[1.5]}]
		}
	}],"error":null}}`
	srv := chartServer(mismatch)
	defer srv.Close()

	c := testClient(hostOf(srv))
	table, _, err := c.Fetch(context.Background(), "X.IS", "1d", "1m")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	for i, bar := range table.Rows {
		if bar.AdjClose.Valid {
			t.Errorf("row %d AdjClose = %+v, want null on length mismatch", i, bar.AdjClose)
		}
	}

	match := `{"chart":{"result":[{
		"meta":{"symbol":"X.IS","timezone":"UTC"},
		"timestamp":[1700000000,1700000060],
		"indicators":{
			"quote":[{"open":[1,2],"high":[1,2],"low":[1,2],"close":[1,2],"volume":[1,2]}],
			"adjclose":[{"adjclose":[1.5,2.5]}]
		}
	}],"error":null}}`
	srv2 := chartServer(match)
	defer srv2.Close()

	c2 := testClient(hostOf(srv2))
	table2, _, err := c2.Fetch(context.Background(), "X.IS", "1d", "1m")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if !table2.Rows[0].AdjClose.Valid || table2.Rows[0].AdjClose.Float64 != 1.5 {
		t.Errorf("row 0 AdjClose = %+v, want 1.5", table2.Rows[0].AdjClose)
	}
	if !table2.Rows[1].AdjClose.Valid || table2.Rows[1].AdjClose.Float64 != 2.5 {
		t.Errorf("row 1 AdjClose = %+v, want 2.5", table2.Rows[1].AdjClose)
	}
}

func TestFetchErrorKinds(t *testing.T) {
	cases := []struct {
		name string
		body string
		kind ErrorKind
	}{
		{
			name: "provider error",
			body: `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`,
			kind: KindProvider,
		},
		{
			name: "empty result",
			body: `{"chart":{"result":[],"error":null}}`,
			kind: KindEmptyResult,
		},
		{
			name: "no timestamps",
			body: `{"chart":{"result":[{"meta":{"symbol":"X.IS"},"indicators":{"quote":[{}]}}],"error":null}}`,
			kind: KindNoData,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := chartServer(tc.body)
			defer srv.Close()

			c := testClient(hostOf(srv))
			_, _, err := c.Fetch(context.Background(), "X.IS", "1d", "1m")

			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("err = %v, want *FetchError", err)
			}
			if fe.Kind != tc.kind {
				t.Errorf("Kind = %q, want %q", fe.Kind, tc.kind)
			}
			if fe.Symbol != "X.IS" {
				t.Errorf("Symbol = %q, want X.IS", fe.Symbol)
			}
			if tc.kind == KindProvider && !strings.Contains(fe.Detail, "Not Found") {
				t.Errorf("Detail = %q, want the provider error object", fe.Detail)
			}
		})
	}
}

func TestFetchFailsOverToSecondHost(t *testing.T) {
	var badCalls atomic.Int32
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/quote/") {
			return
		}
		badCalls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	good := chartServer(singleBarBody)
	defer good.Close()

	c := testClient(hostOf(bad), hostOf(good))
	table, _, err := c.Fetch(context.Background(), "THYAO.IS", "60d", "5m")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("got %d rows, want 1 from the failover host", len(table.Rows))
	}
	if got := badCalls.Load(); got != 1 {
		t.Errorf("primary host saw %d data calls, want 1", got)
	}
}

func TestFetchExhaustsCandidates(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/quote/") {
			return
		}
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	// Same server as both candidates: two round-robin passes over two
	// hosts means four data attempts.
	c := testClient(hostOf(srv), hostOf(srv))
	_, _, err := c.Fetch(context.Background(), "X.IS", "1d", "1m")

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want *FetchError", err)
	}
	if fe.Kind != KindHTTP {
		t.Errorf("Kind = %q, want %q", fe.Kind, KindHTTP)
	}
	if fe.Err == nil || !strings.Contains(fe.Err.Error(), "404") {
		t.Errorf("Err = %v, want the last observed status error", fe.Err)
	}
	if got := calls.Load(); got != 4 {
		t.Errorf("server saw %d data calls, want 4 (2 hosts x 2 passes)", got)
	}
}

func TestFetchLocalProjection(t *testing.T) {
	ist, err := time.LoadLocation("Europe/Istanbul")
	if err != nil {
		t.Skip("zoneinfo unavailable")
	}

	body := `{"chart":{"result":[{
		"meta":{"symbol":"X.IS","timezone":"Europe/Istanbul"},
		"timestamp":[1700000000],
		"indicators":{"quote":[{"open":[1],"high":[1],"low":[1],"close":[1],"volume":[1]}]}
	}],"error":null}}`
	srv := chartServer(body)
	defer srv.Close()

	c := testClient(hostOf(srv))
	table, _, err := c.Fetch(context.Background(), "X.IS", "1d", "1m")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	want := time.Unix(1700000000, 0).In(ist).Format("2006-01-02 15:04:05")
	if got := table.Rows[0].LocalTime.Format("2006-01-02 15:04:05"); got != want {
		t.Errorf("LocalTime = %q, want %q", got, want)
	}
}

func TestFetchUnknownTimezoneFallsBackToUTC(t *testing.T) {
	body := `{"chart":{"result":[{
		"meta":{"symbol":"X.IS","timezone":"Mars/Crater"},
		"timestamp":[1700000000],
		"indicators":{"quote":[{"open":[1],"high":[1],"low":[1],"close":[1],"volume":[1]}]}
	}],"error":null}}`
	srv := chartServer(body)
	defer srv.Close()

	c := testClient(hostOf(srv))
	table, _, err := c.Fetch(context.Background(), "X.IS", "1d", "1m")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if got := table.Rows[0].LocalTime.Format("2006-01-02 15:04:05"); got != "2023-11-14 22:13:20" {
		t.Errorf("LocalTime = %q, want the UTC fallback", got)
	}
}

func TestFetchWarmsUpCookies(t *testing.T) {
	var warmups atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/quote/") {
			warmups.Add(1)
			return
		}
		strings.NewReader(singleBarBody).WriteTo(w)
	}))
	defer srv.Close()

	c := testClient(hostOf(srv))
	if _, _, err := c.Fetch(context.Background(), "THYAO.IS", "60d", "5m"); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if got := warmups.Load(); got != 1 {
		t.Errorf("warm-up requests = %d, want 1", got)
	}
}

func TestFetchSurvivesWarmupFailure(t *testing.T) {
	srv := chartServer(singleBarBody)
	defer srv.Close()

	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead.Close() // warm-up target refuses connections

	c := testClient(hostOf(srv))
	c.quotePageBase = dead.URL

	table, _, err := c.Fetch(context.Background(), "THYAO.IS", "60d", "5m")
	if err != nil {
		t.Fatalf("Fetch returned error despite data host being healthy: %v", err)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(table.Rows))
	}
}
