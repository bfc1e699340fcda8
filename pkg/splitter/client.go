// Package splitter provides clients for the extraction/event-splitting
// collaborator that turns one free-text answer into a storage destination
// and zero or more life events.
package splitter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultTimeout = 30 * time.Second

// Client performs event splitting for one piece of content.
type Client interface {
	Split(ctx context.Context, req SplitRequest) (*SplitResponse, error)
}

// SplitRequest is the request body for POST /split-events.
type SplitRequest struct {
	Content     string `json:"content"`
	Source      string `json:"source"`
	Topic       string `json:"topic,omitempty"`
	UserID      string `json:"userId"`
	AccessToken string `json:"accessToken,omitempty"`
}

// Event is one life event identified in the content.
type Event struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	StartDate   string  `json:"start_date"`
	Category    string  `json:"category"`
	Confidence  float64 `json:"confidence"`
	Source      string  `json:"source"`
}

// SplitResponse is the response from POST /split-events.
type SplitResponse struct {
	Success     bool    `json:"success"`
	Destination string  `json:"destination"`
	Events      []Event `json:"events,omitempty"`
}

// Option configures the HTTP client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithAccessToken attaches a bearer token to every request.
func WithAccessToken(token string) Option {
	return func(c *httpClient) {
		c.accessToken = token
	}
}

// WithRateLimit caps outgoing requests per second with the given burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

type httpClient struct {
	baseURL     string
	accessToken string
	http        *http.Client
	limiter     *rate.Limiter
}

// NewHTTPClient creates a splitter client for a remote collaborator.
func NewHTTPClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Split(ctx context.Context, req SplitRequest) (*SplitResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "splitter: rate limit wait")
		}
	}

	if req.AccessToken == "" {
		req.AccessToken = c.accessToken
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "splitter: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/split-events", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "splitter: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.AccessToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.AccessToken)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "splitter: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "splitter: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("splitter: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result SplitResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "splitter: unmarshal response")
	}

	return &result, nil
}
