// Package backend talks to the marketplace REST API.
package backend

import (
	"time"

	"github.com/katatrina/gundam-live/internal/session"
	"github.com/katatrina/gundam-live/internal/util"
	"resty.dev/v3"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultRetryWait    = 200 * time.Millisecond
	defaultRetryMaxWait = 2 * time.Second
)

// Client is a thin typed wrapper around a resty client.
// Retries are resty's default conditions (connection errors, 429, 5xx) and only ever apply to
// idempotent methods; a 4xx answer is a rejection and is returned as is.
type Client struct {
	http  *resty.Client
	token string
}

func NewClient(config *util.Config) *Client {
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := resty.New().
		SetBaseURL(config.APIBaseURL).
		SetTimeout(timeout).
		SetRetryCount(config.RequestRetryCount).
		SetRetryWaitTime(defaultRetryWait).
		SetRetryMaxWaitTime(defaultRetryMaxWait).
		SetHeader("Accept", "application/json")

	return &Client{http: httpClient}
}

// WithSession returns a client that authenticates as s. The receiver is not modified.
func (c *Client) WithSession(s session.Session) *Client {
	return &Client{
		http:  c.http,
		token: s.AccessToken,
	}
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}

func (c *Client) request() *resty.Request {
	req := c.http.R().SetError(&errorBody{})
	if c.token != "" {
		req.SetAuthToken(c.token)
	}
	return req
}
