package api

import (
	"fmt"
	"strings"
	"time"
)

// HTTPError is returned when the tracker answers with a non-success status
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("Error fetching issues: %d - %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// RateLimitError is returned when GitHub reports the rate limit as exhausted
type RateLimitError struct {
	ResetTime time.Time
	Err       error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, resets at %s: %v", e.ResetTime.Format(time.RFC3339), e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}
