package okx

import "fmt"

// ErrorKind classifies request failures so the poll loop can decide what to
// count and how loudly to log.
type ErrorKind int

const (
	// KindTransport covers network-layer failures: dial errors, timeouts,
	// TLS trouble, a body that cut off mid-read.
	KindTransport ErrorKind = iota

	// KindUpstream covers responses the API itself rejected: a non-200
	// status or a business code other than "0".
	KindUpstream

	// KindData covers well-formed responses whose payload cannot be decoded
	// into candles.
	KindData
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindUpstream:
		return "upstream"
	case KindData:
		return "data"
	default:
		return "unknown"
	}
}

// APIError is the error type returned by Client methods. Callers can pick it
// out of a wrapped chain with errors.As and branch on Kind.
type APIError struct {
	Kind ErrorKind
	Op   string // operation, e.g. "candles"
	Code string // upstream business code, when present
	Msg  string
	Err  error // underlying error, when present
}

func (e *APIError) Error() string {
	s := fmt.Sprintf("okx %s: %s", e.Op, e.Kind)
	if e.Code != "" {
		s += " code=" + e.Code
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *APIError) Unwrap() error { return e.Err }
