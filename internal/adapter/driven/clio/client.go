// Package clio implements the ClioGateway port against the Clio v4 REST API.
package clio

import (
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ericfisherdev/intakesync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ClioGateway = (*Client)(nil)

// DefaultBaseURL is the production Clio v4 API root.
const DefaultBaseURL = "https://app.clio.com/api/v4"

// DefaultTokenURL is the production Clio OAuth token endpoint.
const DefaultTokenURL = "https://app.clio.com/oauth/token"

const (
	defaultMaxAttempts = 3
	defaultHTTPTimeout = 30 * time.Second
)

// Client implements the driven.ClioGateway port. All calls flow through the
// resilient executor in executor.go, which handles bearer auth, the 401
// refresh-and-retry cycle, and the bounded attempt budget.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	refresher   driven.TokenRefresher
	maxAttempts int

	// newBackOff builds the inter-attempt wait policy. Injectable so tests
	// run without real sleeps.
	newBackOff func() backoff.BackOff
}

// Option configures a Client.
type Option func(*Client)

// WithMaxAttempts overrides the per-request attempt budget (default 3).
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBackOff overrides the inter-attempt wait policy factory.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(c *Client) { c.newBackOff = f }
}

// NewClient creates a Client against the production Clio API.
func NewClient(refresher driven.TokenRefresher, opts ...Option) *Client {
	return newClient(&http.Client{Timeout: defaultHTTPTimeout}, DefaultBaseURL, refresher, opts...)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and
// base URL. This constructor is intended for testing, allowing injection of
// an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string, refresher driven.TokenRefresher, opts ...Option) *Client {
	return newClient(httpClient, baseURL, refresher, opts...)
}

func newClient(httpClient *http.Client, baseURL string, refresher driven.TokenRefresher, opts ...Option) *Client {
	c := &Client{
		httpClient:  httpClient,
		baseURL:     baseURL,
		refresher:   refresher,
		maxAttempts: defaultMaxAttempts,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 250 * time.Millisecond
			bo.MaxInterval = 2 * time.Second
			return bo
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
