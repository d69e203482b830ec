package reviewapi

import (
	"fmt"
)

// FetchErrorKind classifies why a poll failed.
type FetchErrorKind string

const (
	KindRequest    FetchErrorKind = "request"
	KindConnection FetchErrorKind = "connection"
	KindTimeout    FetchErrorKind = "timeout"
	KindHTTP       FetchErrorKind = "http"
	KindDecode     FetchErrorKind = "decode"
)

// FetchError is returned by Client.FetchStatuses for every failure.
// No response body is ever used after a FetchError.
type FetchError struct {
	Kind       FetchErrorKind
	StatusCode int // KindHTTP only
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == KindHTTP {
		return fmt.Sprintf("review api: %s error (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("review api: %s error: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
