package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/time/rate"

	"github.com/e14n/pump2status/types"
)

var UserAgent = "pump2status/1.0"

var tracer = otel.Tracer("httpclient")

const maxBodySize = 4 << 20

// Client performs outbound requests to pump.io and foreign hosts. Requests
// are rate limited per host and bounded by a timeout.
type Client struct {
	transport *transport
	timeout   time.Duration
	userAgent string
}

// Response is a fully read response body.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// NewClient returns a Client configured from the worker settings.
func NewClient(config types.WorkerConfig, userAgent string) *Client {
	config = config.WithDefaults()
	if userAgent == "" {
		userAgent = UserAgent
	}
	return &Client{
		transport: &transport{
			base:     http.DefaultTransport,
			limiters: make(map[string]*rate.Limiter),
			limit:    rate.Limit(config.RateLimit),
			burst:    config.RateBurst,
		},
		timeout:   config.HTTPTimeout,
		userAgent: userAgent,
	}
}

// Standard returns an unsigned HTTP client.
func (c *Client) Standard() *http.Client {
	return &http.Client{Transport: c.transport, Timeout: c.timeout}
}

// Signed returns an HTTP client that signs requests with OAuth 1.0a.
func (c *Client) Signed(ctx context.Context, config *oauth1.Config, token, secret string) *http.Client {
	ctx = context.WithValue(ctx, oauth1.HTTPClient, c.Standard())
	hc := config.Client(ctx, oauth1.NewToken(token, secret))
	hc.Timeout = c.timeout
	return hc
}

// Do sends req with hc and reads the whole body. A 401 answer is reported as
// types.ErrUnauthorized. Any other failure, 403 included, is a TransientError.
func (c *Client) Do(ctx context.Context, hc *http.Client, req *http.Request) (Response, error) {
	ctx, span := tracer.Start(ctx, "HTTPClientDo")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req = req.WithContext(ctx)
	req.Header.Set("User-Agent", c.userAgent)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	op := req.Method + " " + req.URL.String()
	resp, err := hc.Do(req)
	if err != nil {
		span.RecordError(err)
		return Response{}, &types.TransientError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		span.RecordError(err)
		return Response{}, &types.TransientError{Op: op, Err: err}
	}

	result := Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return result, errors.Wrapf(types.ErrUnauthorized, "%s: status %d", op, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return result, &types.TransientError{Op: op, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return result, nil
}

// Get fetches url with hc, asking for accept.
func (c *Client) Get(ctx context.Context, hc *http.Client, url, accept string) (Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return Response{}, err
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return c.Do(ctx, hc, req)
}

// Post sends body to url with hc.
func (c *Client) Post(ctx context.Context, hc *http.Client, url, contentType string, body io.Reader) (Response, error) {
	req, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Content-Type", contentType)
	return c.Do(ctx, hc, req)
}

type transport struct {
	base     http.RoundTripper
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func (t *transport) limiter(host string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.limiters[host]
	if !ok {
		l = rate.NewLimiter(t.limit, t.burst)
		t.limiters[host] = l
	}
	return l
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter(req.URL.Host).Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}
