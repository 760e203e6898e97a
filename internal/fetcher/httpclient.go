package fetcher

import (
	"time"

	"resty.dev/v3"
)

const defaultRequestTimeout = 30 * time.Second

// NewHTTPClient creates the long-lived HTTP client shared by all provider
// calls. Resty's built-in retry stays disabled: retrying is the Retry
// combinator's job, and doubling it up would multiply the attempt count.
func NewHTTPClient(timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return resty.New().
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)
}
