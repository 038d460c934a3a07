package yahoo

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/guregu/null/v5"

	"bistx/internal/domain"
)

// ---------------------------------------------------------------------------
// Wire types for the v8 chart response
// ---------------------------------------------------------------------------

// chartEnvelope is the provider's response shape:
//
//	{chart: {result: [{meta, timestamp, indicators}], error: null|{...}}}
type chartEnvelope struct {
	Chart struct {
		Result []chartResult   `json:"result"`
		Error  json.RawMessage `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta       domain.InstrumentMeta `json:"meta"`
	Timestamp  []int64               `json:"timestamp"`
	Indicators struct {
		Quote    []quoteBlock    `json:"quote"`
		AdjClose []adjCloseBlock `json:"adjclose"`
	} `json:"indicators"`
}

type quoteBlock struct {
	Open   []looseFloat `json:"open"`
	High   []looseFloat `json:"high"`
	Low    []looseFloat `json:"low"`
	Close  []looseFloat `json:"close"`
	Volume []looseFloat `json:"volume"`
}

type adjCloseBlock struct {
	AdjClose []looseFloat `json:"adjclose"`
}

// hasError reports whether the provider returned a structured error object.
func (e *chartEnvelope) hasError() bool {
	raw := strings.TrimSpace(string(e.Chart.Error))
	return raw != "" && raw != "null"
}

// ---------------------------------------------------------------------------
// Loose numeric decoding
// ---------------------------------------------------------------------------

// looseFloat decodes a JSON value as a nullable float. Numbers and numeric
// strings parse; anything else (null, booleans, non-numeric strings,
// objects) is coerced to the null value instead of failing the decode.
type looseFloat struct {
	null.Float
}

func (f *looseFloat) UnmarshalJSON(b []byte) error {
	var v float64
	if err := json.Unmarshal(b, &v); err == nil {
		f.Float = null.FloatFrom(v)
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			f.Float = null.FloatFrom(v)
			return nil
		}
	}

	f.Float = null.Float{}
	return nil
}

// floatAt returns the i-th value of a loose numeric array, or null when the
// array is shorter than the row count.
func floatAt(vals []looseFloat, i int) null.Float {
	if i >= len(vals) {
		return null.Float{}
	}
	return vals[i].Float
}
