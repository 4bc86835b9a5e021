package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRateLimited matches any *StatusError carrying HTTP 429.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnauthenticated is returned by authenticated calls when no token is configured.
	ErrUnauthenticated = errors.New("not authenticated")
)

// StatusError is a non-2xx response from the API.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s failed with status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s failed with status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrRateLimited && e.StatusCode == http.StatusTooManyRequests
}

// IsRateLimited reports whether err is, or wraps, a 429 response.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
