package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

// NetworkError wraps a transport-level failure (DNS, refused connection,
// reset). Transient from the adapter's point of view.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// TimeoutError indicates the request exceeded its deadline.
type TimeoutError struct {
	URL string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout fetching %s", e.URL)
}

// HTTPStatusError indicates a non-2xx response that is not bot detection.
type HTTPStatusError struct {
	URL  string
	Code int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http %d fetching %s", e.Code, e.URL)
}

// BlockedError indicates the response looks like bot detection: a challenge
// page, a captcha, or an outright 403.
type BlockedError struct {
	URL    string
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked fetching %s: %s", e.URL, e.Reason)
}

// IsBlocked reports whether err indicates bot detection.
func IsBlocked(err error) bool {
	var be *BlockedError
	return errors.As(err, &be)
}

// IsThrottle reports whether the source is telling us to slow down: bot
// detection or HTTP 429. Adapters respond with exponential backoff.
func IsThrottle(err error) bool {
	if IsBlocked(err) {
		return true
	}
	var se *HTTPStatusError
	return errors.As(err, &se) && se.Code == http.StatusTooManyRequests
}

// IsTransient reports whether err is worth retrying at all: throttling,
// network failures, and timeouts. Permanent HTTP errors (404, 410) are not.
func IsTransient(err error) bool {
	if IsThrottle(err) {
		return true
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return true
	}
	var te *TimeoutError
	return errors.As(err, &te)
}
