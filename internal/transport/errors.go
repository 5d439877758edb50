package transport

import (
	"fmt"
	"net/http"
)

// StatusError is a non-2xx answer of a tile server.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("GET %s: HTTP %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("GET %s: HTTP %d: %s", e.URL, e.StatusCode, e.Body)
}

// NotFound reports whether the server had no tile at the address.
func (e *StatusError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// DecodeError is tile data that is not a PNG, JPEG or WebP image.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode tile %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
