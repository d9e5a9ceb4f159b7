package instagram

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// ProactiveRate is the steady request rate towards the Graph API.
	ProactiveRate = 2.0

	// ProactiveBurst is the number of requests allowed back to back.
	ProactiveBurst = 5

	// HeaderAppUsage carries the app-level usage as JSON percentages.
	HeaderAppUsage = "X-App-Usage"

	// HeaderRetryAfter is the retry-after header (seconds).
	HeaderRetryAfter = "Retry-After"
)

// appUsage is the payload of the X-App-Usage header.
type appUsage struct {
	CallCount    int `json:"call_count"`
	TotalTime    int `json:"total_time"`
	TotalCPUTime int `json:"total_cputime"`
}

func (u appUsage) highest() int {
	return max(u.CallCount, u.TotalTime, u.TotalCPUTime)
}

// RateLimiter throttles requests proactively and tracks the usage the API
// reports back.
type RateLimiter struct {
	mu     sync.Mutex
	usage  int           // Highest usage percentage from the API
	bucket *rate.Limiter // Proactive throttling
}

// NewRateLimiter creates a rate limiter allowing r requests per second.
// A non-positive r disables proactive throttling.
func NewRateLimiter(r float64, burst int) *RateLimiter {
	limit := rate.Limit(r)
	if r <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		bucket: rate.NewLimiter(limit, burst),
	}
}

// Wait blocks until the next request may be sent.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.bucket.Wait(ctx)
}

// UpdateFromResponse updates the usage state from response headers.
func (r *RateLimiter) UpdateFromResponse(resp *http.Response) {
	if resp == nil {
		return
	}
	header := resp.Header.Get(HeaderAppUsage)
	if header == "" {
		return
	}

	var u appUsage
	if err := json.Unmarshal([]byte(header), &u); err != nil {
		return
	}

	r.mu.Lock()
	r.usage = u.highest()
	r.mu.Unlock()
}

// CheckRateLimit checks if the response indicates throttling.
// Returns a RateLimitError if rate limited, nil otherwise.
func (r *RateLimiter) CheckRateLimit(resp *http.Response) error {
	if resp == nil {
		return nil
	}

	r.UpdateFromResponse(resp)

	usage := r.Usage()
	if resp.StatusCode != http.StatusTooManyRequests && (resp.StatusCode < 400 || usage < 100) {
		return nil
	}

	rlErr := &RateLimitError{
		StatusCode: resp.StatusCode,
		Usage:      usage,
	}
	if retryAfter := resp.Header.Get(HeaderRetryAfter); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil {
			rlErr.ResetAt = time.Now().Add(time.Duration(seconds) * time.Second)
		}
	}
	return rlErr
}

// Usage returns the last usage percentage reported by the API.
func (r *RateLimiter) Usage() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usage
}
