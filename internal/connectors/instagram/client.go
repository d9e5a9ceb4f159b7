package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/oauth2"

	"github.com/connect3/instagram-ingestor/internal/core/domain"
	"github.com/connect3/instagram-ingestor/internal/core/ports/driven"
	"github.com/connect3/instagram-ingestor/internal/logger"
)

// Ensure Client implements the interface.
var _ driven.GraphClient = (*Client)(nil)

const (
	// DefaultBaseURL is the versioned Graph API root.
	DefaultBaseURL = "https://graph.instagram.com/v24.0"

	// DefaultRefreshURL is the long-lived token refresh endpoint.
	DefaultRefreshURL = "https://graph.instagram.com/refresh_access_token"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultPageSize is the number of media requested per page.
	DefaultPageSize = 50

	// refreshGrantType is the grant used to renew long-lived tokens.
	refreshGrantType = "ig_refresh_token"

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 << 10
)

// Config configures the Graph API client.
type Config struct {
	BaseURL    string
	RefreshURL string
	Timeout    time.Duration
	PageSize   int

	// Rate is the proactive request rate per second. Zero uses
	// ProactiveRate; a negative value disables throttling.
	Rate float64
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.RefreshURL == "" {
		c.RefreshURL = DefaultRefreshURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.Rate == 0 {
		c.Rate = ProactiveRate
	}
	return c
}

// Client talks to the Instagram Graph API.
type Client struct {
	cfg         Config
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// NewClient creates a Graph API client.
func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	httpClient := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: newTransport(),
	}
	return &Client{
		cfg:         cfg,
		httpClient:  httpClient,
		rateLimiter: NewRateLimiter(cfg.Rate, ProactiveBurst),
	}
}

// newTransport returns a pooled transport that negotiates HTTP/2 over TLS.
func newTransport() *http.Transport {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if err := http2.ConfigureTransport(t); err != nil {
		logger.Warn("instagram: HTTP/2 unavailable: %v", err)
	}
	return t
}

// MediaURL returns the first page URL of a user's media feed.
func (c *Client) MediaURL(userID string) string {
	q := url.Values{
		"fields": {mediaFields},
		"limit":  {strconv.Itoa(c.cfg.PageSize)},
	}
	return c.cfg.BaseURL + "/" + url.PathEscape(userID) + "/media?" + q.Encode()
}

// FetchMediaPage fetches one page of a media feed.
func (c *Client) FetchMediaPage(ctx context.Context, accessToken, pageURL string) (*domain.MediaPage, error) {
	var resp mediaResponse
	if err := c.get(ctx, accessToken, pageURL, &resp); err != nil {
		return nil, c.wrapError(err, "list media")
	}
	return resp.toDomain(), nil
}

// GetMedia fetches a single media object.
func (c *Client) GetMedia(ctx context.Context, accessToken, mediaID string) (*domain.MediaItem, error) {
	q := url.Values{"fields": {mediaFields}}
	endpoint := c.cfg.BaseURL + "/" + url.PathEscape(mediaID) + "?" + q.Encode()

	var node mediaNode
	if err := c.get(ctx, accessToken, endpoint, &node); err != nil {
		return nil, c.wrapError(err, "get media")
	}
	item := node.toDomain()
	return &item, nil
}

// GetProfile fetches the user node of an account.
func (c *Client) GetProfile(ctx context.Context, accessToken, userID string) (*domain.Profile, error) {
	q := url.Values{"fields": {profileFields}}
	endpoint := c.cfg.BaseURL + "/" + url.PathEscape(userID) + "?" + q.Encode()

	var node profileNode
	if err := c.get(ctx, accessToken, endpoint, &node); err != nil {
		return nil, c.wrapError(err, "get profile")
	}
	return &domain.Profile{ID: node.ID, Name: node.Name, Username: node.Username}, nil
}

// RefreshToken renews a long-lived token. The refresh endpoint only accepts
// the token as a query parameter.
func (c *Client) RefreshToken(ctx context.Context, accessToken string) (domain.TokenGrant, error) {
	q := url.Values{
		"grant_type":   {refreshGrantType},
		"access_token": {accessToken},
	}
	endpoint := c.cfg.RefreshURL + "?" + q.Encode()

	var tok oauth2.Token
	if err := c.do(ctx, endpoint, nil, &tok); err != nil {
		return domain.TokenGrant{}, c.wrapError(err, "refresh token")
	}

	return domain.TokenGrant{
		AccessToken: tok.AccessToken,
		ExpiresIn:   time.Duration(tok.ExpiresIn) * time.Second,
	}, nil
}

// get performs an authenticated GET.
func (c *Client) get(ctx context.Context, accessToken, endpoint string, out any) error {
	if err := c.checkHost(endpoint); err != nil {
		return err
	}
	tok := &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}
	return c.do(ctx, endpoint, tok, out)
}

// do sends a GET request and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, endpoint string, tok *oauth2.Token, out any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if tok != nil {
		tok.SetAuthHeader(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.responseError(resp)
	}
	c.rateLimiter.UpdateFromResponse(resp)

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// responseError builds the error for a non-2xx response.
func (c *Client) responseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		URL:        redactURL(resp.Request),
		Message:    http.StatusText(resp.StatusCode),
	}
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		apiErr.Type = env.Error.Type
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
	}

	if rlErr := c.rateLimiter.CheckRateLimit(resp); rlErr != nil {
		var typed *RateLimitError
		if errors.As(rlErr, &typed) {
			typed.Code = apiErr.Code
		}
		return rlErr
	}
	if rateLimitCodes[apiErr.Code] {
		return &RateLimitError{StatusCode: resp.StatusCode, Code: apiErr.Code, Usage: c.rateLimiter.Usage()}
	}
	return apiErr
}

// wrapError adds the operation to an error.
func (c *Client) wrapError(err error, op string) error {
	return fmt.Errorf("instagram: %s: %w", op, err)
}

// checkHost rejects endpoints outside the configured Graph host, so a
// paging cursor cannot carry the bearer token elsewhere.
func (c *Client) checkHost(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("parse base URL: %w", err)
	}
	if !strings.EqualFold(u.Scheme, base.Scheme) || !strings.EqualFold(u.Host, base.Host) {
		return fmt.Errorf("%w: %s://%s", ErrForeignHost, u.Scheme, u.Host)
	}
	return nil
}

// redactURL returns the request URL without its access token.
func redactURL(req *http.Request) string {
	if req == nil || req.URL == nil {
		return ""
	}
	u := *req.URL
	q := u.Query()
	if q.Has("access_token") {
		q.Set("access_token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
