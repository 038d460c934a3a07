package yahoo

import "fmt"

// ErrorKind classifies a per-symbol fetch failure.
type ErrorKind string

const (
	// KindHTTP means every transport attempt was exhausted without a
	// parseable JSON body.
	KindHTTP ErrorKind = "http"
	// KindProvider means the remote API reported a structured error object
	// for the symbol.
	KindProvider ErrorKind = "provider"
	// KindEmptyResult means the response carried no result entry.
	KindEmptyResult ErrorKind = "empty_result"
	// KindNoData means the result carried no timestamps.
	KindNoData ErrorKind = "no_data"
)

// FetchError is a classified failure for one symbol. It is fatal for that
// symbol only; the batch orchestrator records it and moves on.
type FetchError struct {
	Kind   ErrorKind
	Symbol string
	Detail string // provider error object or response diagnostics
	Err    error  // last underlying transport error, if any
}

func (e *FetchError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %s: %v", e.Symbol, e.Kind, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("fetch %s: %s: %s", e.Symbol, e.Kind, e.Detail)
	default:
		return fmt.Sprintf("fetch %s: %s", e.Symbol, e.Kind)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }
