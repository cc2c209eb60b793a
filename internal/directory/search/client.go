// Package search queries the Google Custom Search JSON API.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const DefaultEndpoint = "https://www.googleapis.com/customsearch/v1"

var (
	// ErrInvalidResponse marks a response that can never succeed on retry:
	// the body is not JSON, carries no items, or no item has a link.
	ErrInvalidResponse = errors.New("invalid search response")
	ErrUnauthorized    = errors.New("search api rejected credentials")
	ErrRateLimited     = errors.New("search api rate limit exceeded")
)

// StatusError is returned for any other non-200 response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("search api returned status %d", e.Code)
}

// Result is one organic search hit.
type Result struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

type Config struct {
	Endpoint string
	APIKey   string
	EngineID string
	// Token is sent as a bearer token when set.
	Token             string
	RequestsPerSecond float64
	Timeout           time.Duration
}

type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.Named("search_client"),
	}
}

type response struct {
	Items *[]Result `json:"items"`
}

// Search performs one query. It never retries; callers decide which errors
// are worth another attempt.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	if c.cfg.EngineID != "" {
		params.Set("cx", c.cfg.EngineID)
	}
	if c.cfg.APIKey != "" {
		params.Set("key", c.cfg.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrUnauthorized
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	default:
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	results, err := parse(body)
	if err != nil {
		c.logger.Warn("Unusable search response", zap.String("query", query), zap.Error(err))
		return nil, err
	}
	return results, nil
}

func parse(body []byte) ([]Result, error) {
	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if r.Items == nil {
		return nil, fmt.Errorf("%w: no items", ErrInvalidResponse)
	}

	results := make([]Result, 0, len(*r.Items))
	for _, item := range *r.Items {
		item.Link = strings.TrimSpace(item.Link)
		if item.Link == "" {
			continue
		}
		results = append(results, item)
	}
	if len(*r.Items) > 0 && len(results) == 0 {
		return nil, fmt.Errorf("%w: no item carries a link", ErrInvalidResponse)
	}
	return results, nil
}
