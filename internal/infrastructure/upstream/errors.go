package upstream

import (
	"errors"
	"fmt"
)

// Errors returned by the upstream client
var (
	ErrUpstreamUnavailable     = errors.New("upstream: unavailable")
	ErrUpstreamRequestFailed   = errors.New("upstream: request failed")
	ErrUpstreamTimeout         = errors.New("upstream: timeout")
	ErrUpstreamInvalidResponse = errors.New("upstream: invalid response")
	ErrInvalidOptions          = errors.New("upstream: invalid options")
	ErrUnexpectedScope         = errors.New("upstream: resource is not scoped")
	ErrMissingScope            = errors.New("upstream: scope required")
	ErrInvalidScope            = errors.New("upstream: invalid scope")
)

// StatusError is returned for HTTP responses with status >= 400
type StatusError struct {
	StatusCode int
	Path       string
	Body       string
}

// Error implements the error interface
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream: request failed: %s: HTTP %d", e.Path, e.StatusCode)
	}
	return fmt.Sprintf("upstream: request failed: %s: HTTP %d: %s", e.Path, e.StatusCode, e.Body)
}

// Unwrap lets errors.Is match ErrUpstreamRequestFailed
func (e *StatusError) Unwrap() error {
	return ErrUpstreamRequestFailed
}
