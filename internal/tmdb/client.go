package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Discoverer defines the TMDB operations the sync pipeline depends on.
type Discoverer interface {
	DiscoverPage(ctx context.Context, opts DiscoverOptions) (*Page, error)
	MovieDetails(ctx context.Context, movieID int64) (*MovieDetails, error)
	ForEachMovieInYear(ctx context.Context, year int, maxResults int, fn func(DiscoverMovie) error) error
}

// Client provides rate-limited access to the TMDB API.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	maxRetries int
	limiter    *limiter
	httpClient *http.Client
}

var _ Discoverer = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRateLimit overrides the rolling-window request cap and backoff bounds.
func WithRateLimit(perSecond int, backoffBase, backoffMax time.Duration) Option {
	return func(c *Client) {
		c.limiter = newLimiter(perSecond, backoffBase, backoffMax)
	}
}

// WithMaxRetries overrides the retry cap for rate-limited requests.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// New creates a TMDB client.
func New(apiKey, baseURL, language string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   strings.TrimSpace(language),
		maxRetries: DefaultMaxRetries,
		limiter:    newLimiter(DefaultRequestsPerSecond, DefaultBackoffBase, DefaultBackoffMax),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// DiscoverOptions filters one discover request.
type DiscoverOptions struct {
	Year     int
	FromDate string
	ToDate   string
	Page     int
}

// DiscoverPage fetches a single page of discover results.
func (c *Client) DiscoverPage(ctx context.Context, opts DiscoverOptions) (*Page, error) {
	params := url.Values{}
	if opts.Year > 0 {
		params.Set("primary_release_year", strconv.Itoa(opts.Year))
	}
	if opts.FromDate != "" {
		params.Set("release_date.gte", opts.FromDate)
	}
	if opts.ToDate != "" {
		params.Set("release_date.lte", opts.ToDate)
	}
	if opts.Page > 0 {
		params.Set("page", strconv.Itoa(opts.Page))
	}
	params.Set("include_adult", "false")
	params.Set("sort_by", "popularity.desc")
	if c.language != "" {
		params.Set("with_original_language", c.language)
	}

	var payload Page
	if err := c.getJSON(ctx, "/discover/movie", params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// MovieDetails fetches full movie metadata with credits appended.
func (c *Client) MovieDetails(ctx context.Context, movieID int64) (*MovieDetails, error) {
	if movieID <= 0 {
		return nil, errors.New("movie id must be positive")
	}
	params := url.Values{}
	params.Set("append_to_response", "credits")

	var payload MovieDetails
	if err := c.getJSON(ctx, fmt.Sprintf("/movie/%d", movieID), params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse tmdb url: %w", err)
	}
	params.Set("api_key", c.apiKey)
	if c.language != "" && params.Get("language") == "" {
		params.Set("language", c.language)
	}
	endpoint.RawQuery = params.Encode()

	for attempt := 0; ; attempt++ {
		if err := c.limiter.wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}

		requestStart := time.Now()
		resp, err := c.httpClient.Do(req)
		latency := time.Since(requestStart)
		if err != nil {
			return fmt.Errorf("execute request (latency=%v): %w", latency, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			if attempt+1 >= c.maxRetries {
				return fmt.Errorf("tmdb %s rate limited after %d attempts", path, attempt+1)
			}
			delay := c.limiter.rateLimited()
			if err := sleepWithContext(ctx, delay); err != nil {
				return err
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("tmdb %s returned %d (latency=%v)", path, resp.StatusCode, latency)
		}

		decodeErr := json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if decodeErr != nil {
			return fmt.Errorf("decode tmdb response: %w", decodeErr)
		}
		c.limiter.succeeded()
		return nil
	}
}
