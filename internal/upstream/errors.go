package upstream

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyURL is a caller error: no source URL was supplied.
	ErrEmptyURL = errors.New("upstream: empty source url")

	// ErrInvalidURL is returned for unparsable or non-http(s) source URLs.
	ErrInvalidURL = errors.New("upstream: invalid source url")

	// ErrTimeout is returned when the fetch deadline expires, whether while
	// waiting for headers or while streaming the body.
	ErrTimeout = errors.New("upstream: deadline exceeded")
)

// HTTPError is returned when the camera answers with a non-2xx status.
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream: unexpected status %s", e.Status)
}

// TransportError wraps connection-level failures (DNS, refused, reset, TLS).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("upstream: transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
