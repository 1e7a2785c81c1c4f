/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/acronis/go-appkit/httpclient"
	"github.com/acronis/go-appkit/log"

	"github.com/acronis/go-ratequeue/ratequeue"
)

// ContentTypeAppJSON is the value of the Content-Type header for JSON payloads.
const ContentTypeAppJSON = "application/json"

// Opts represents options for Client.
type Opts struct {
	// Delegate is the transport used for sending HTTP requests.
	// A clone of http.DefaultTransport is used by default.
	Delegate http.RoundTripper

	// Logger is used for diagnostics of the dispatch queue and transport retries.
	Logger log.FieldLogger

	// AuthProvider supplies the default bearer token.
	// May be nil when every call passes WithToken.
	AuthProvider AuthProvider

	// Collector is a metrics collector for the dispatch queue.
	Collector ratequeue.MetricsCollector
}

// Client submits authorized HTTP calls to a remote API through a rate-limited
// dispatch queue. Every call returns a one-shot future settled with the final
// result; callers distinguish success and failure by the result's status code.
type Client struct {
	queue        *ratequeue.Queue
	baseURL      string
	authProvider AuthProvider
}

// New creates a new Client with the given configuration and options.
func New(cfg *Config, opts Opts) (*Client, error) {
	delegate := opts.Delegate
	if delegate == nil {
		delegate = http.DefaultTransport.(*http.Transport).Clone()
	}

	if cfg.UserAgent != "" {
		delegate = httpclient.NewUserAgentRoundTripper(delegate, cfg.UserAgent)
	}

	if cfg.Retries.Enabled {
		var err error
		delegate, err = httpclient.NewRetryableRoundTripperWithOpts(delegate, httpclient.RetryableRoundTripperOpts{
			Logger:           opts.Logger,
			MaxRetryAttempts: cfg.Retries.MaxAttempts,
			BackoffPolicy:    cfg.Retries.GetPolicy(),
			CheckRetryFunc:   checkRetryTransportError,
		})
		if err != nil {
			return nil, fmt.Errorf("create retryable round tripper: %w", err)
		}
	}

	queueOpts := cfg.Queue.QueueOpts()
	queueOpts.Logger = opts.Logger
	queueOpts.Collector = opts.Collector
	queue, err := ratequeue.NewWithOpts(delegate, queueOpts)
	if err != nil {
		return nil, fmt.Errorf("create dispatch queue: %w", err)
	}

	return &Client{
		queue:        queue,
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		authProvider: opts.AuthProvider,
	}, nil
}

// checkRetryTransportError allows retries for temporary transport failures only.
// HTTP statuses (429 included) are passed through untouched so that the
// dispatch queue can interpret them.
func checkRetryTransportError(_ context.Context, resp *http.Response, roundTripErr error, _ int) (bool, error) {
	if roundTripErr != nil {
		return httpclient.CheckErrorIsTemporary(roundTripErr), nil
	}
	if resp == nil {
		return false, fmt.Errorf("both response and round trip error are nil")
	}
	return false, nil
}

// Start launches the underlying dispatch queue. It implements the service.Unit interface.
func (c *Client) Start(fatalErr chan<- error) {
	c.queue.Start(fatalErr)
}

// Stop halts the underlying dispatch queue. It implements the service.Unit interface.
func (c *Client) Stop(gracefully bool) error {
	return c.queue.Stop(gracefully)
}

// MustRegisterMetrics implements the service.MetricsRegisterer interface.
func (c *Client) MustRegisterMetrics() {
	c.queue.MustRegisterMetrics()
}

// UnregisterMetrics implements the service.MetricsRegisterer interface.
func (c *Client) UnregisterMetrics() {
	c.queue.UnregisterMetrics()
}

// CallOption customizes a single request.
type CallOption func(*callOptions)

type callOptions struct {
	token      string
	header     http.Header
	onComplete func(ratequeue.Result)
}

// WithToken overrides the default bearer token for a single request.
func WithToken(token string) CallOption {
	return func(o *callOptions) {
		o.token = token
	}
}

// WithHeader adds an extra header to a single request.
func WithHeader(key, value string) CallOption {
	return func(o *callOptions) {
		if o.header == nil {
			o.header = make(http.Header)
		}
		o.header.Add(key, value)
	}
}

// WithOnComplete attaches a continuation that is invoked exactly once with the final result.
func WithOnComplete(fn func(ratequeue.Result)) CallOption {
	return func(o *callOptions) {
		o.onComplete = fn
	}
}

// Get submits a GET request to the given endpoint.
func (c *Client) Get(ctx context.Context, endpoint string, opts ...CallOption) (*ratequeue.Future, error) {
	return c.submit(ctx, http.MethodGet, endpoint, nil, opts)
}

// Delete submits a DELETE request to the given endpoint.
func (c *Client) Delete(ctx context.Context, endpoint string, opts ...CallOption) (*ratequeue.Future, error) {
	return c.submit(ctx, http.MethodDelete, endpoint, nil, opts)
}

// Post submits a POST request with a JSON-serialized payload.
func (c *Client) Post(ctx context.Context, endpoint string, payload interface{}, opts ...CallOption) (*ratequeue.Future, error) {
	return c.submit(ctx, http.MethodPost, endpoint, payload, opts)
}

// Put submits a PUT request with a JSON-serialized payload.
func (c *Client) Put(ctx context.Context, endpoint string, payload interface{}, opts ...CallOption) (*ratequeue.Future, error) {
	return c.submit(ctx, http.MethodPut, endpoint, payload, opts)
}

// Patch submits a PATCH request with a JSON-serialized payload.
func (c *Client) Patch(ctx context.Context, endpoint string, payload interface{}, opts ...CallOption) (*ratequeue.Future, error) {
	return c.submit(ctx, http.MethodPatch, endpoint, payload, opts)
}

func (c *Client) submit(
	ctx context.Context, method, endpoint string, payload interface{}, opts []CallOption,
) (*ratequeue.Future, error) {
	var callOpts callOptions
	for _, opt := range opts {
		opt(&callOpts)
	}

	header := make(http.Header)
	for key, values := range callOpts.header {
		for _, value := range values {
			header.Add(key, value)
		}
	}

	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("marshal request payload: %w", err)
		}
		header.Set("Content-Type", ContentTypeAppJSON)
	} else {
		// The transport puts the declared zero length on the wire only for
		// methods that normally carry a body; for GET and DELETE it is omitted.
		header.Set("Content-Length", "0")
	}

	token := callOpts.token
	if token == "" && c.authProvider != nil {
		var err error
		if token, err = c.authProvider.GetToken(ctx); err != nil {
			return nil, fmt.Errorf("get auth token: %w", err)
		}
	}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	return c.queue.Submit(ratequeue.Descriptor{
		Method:     method,
		URL:        c.buildURL(endpoint),
		Header:     header,
		Body:       body,
		OnComplete: callOpts.onComplete,
	}), nil
}

func (c *Client) buildURL(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return c.baseURL + endpoint
}
