package instagram

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/connect3/instagram-ingestor/internal/core/domain"
)

// Graph API error codes that signal throttling.
var rateLimitCodes = map[int]bool{
	4:   true, // application request limit
	17:  true, // user request limit
	32:  true, // page request limit
	613: true, // calls within one hour exceeded
}

// ErrForeignHost is returned for a request URL outside the Graph API host.
var ErrForeignHost = errors.New("instagram: endpoint host does not match Graph API host")

// codeInvalidToken is the OAuthException code for an invalid or expired token.
const codeInvalidToken = 190

// APIError represents a Graph API error response.
type APIError struct {
	StatusCode int
	Type       string
	Code       int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("instagram: API error %d (%s %d): %s", e.StatusCode, e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("instagram: API error %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the error onto the matching domain error, if any.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.Code == codeInvalidToken:
		return domain.ErrAuthInvalid
	case e.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	default:
		return nil
	}
}

// RateLimitError represents a throttled request.
type RateLimitError struct {
	StatusCode int
	Code       int
	// Usage is the highest usage percentage reported by the API.
	Usage int
	// ResetAt is when a retry may succeed. Zero when unknown.
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	if e.ResetAt.IsZero() {
		return fmt.Sprintf("instagram: rate limit exceeded (status %d, usage %d%%)", e.StatusCode, e.Usage)
	}
	return fmt.Sprintf("instagram: rate limit exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

// Unwrap returns domain.ErrRateLimited.
func (e *RateLimitError) Unwrap() error {
	return domain.ErrRateLimited
}

// IsNotFound checks if the error indicates a resource was not found.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

// IsRateLimited checks if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	var rateLimitErr *RateLimitError
	return errors.As(err, &rateLimitErr)
}

// IsUnauthorized checks if the error indicates an invalid or expired token.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.Code == codeInvalidToken
	}
	return false
}
