// Package peer performs the single outbound GET a relay makes per request.
package peer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/0xReLogic/Tandem/internal/tracing"
)

// ErrUnavailable is returned, possibly wrapped, for every failed call:
// DNS failure, refused connection, cancelled context and non-2xx status alike.
var ErrUnavailable = errors.New("peer unavailable")

// StatusError reports a peer that answered with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("peer %s answered %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *StatusError) Unwrap() error { return ErrUnavailable }

// Caller fetches the peer's response body. Fetch blocks until the peer has
// answered or ctx is done. URL names the peer in logs and spans.
type Caller interface {
	Fetch(ctx context.Context) ([]byte, error)
	URL() string
}

var _ Caller = (*HTTPCaller)(nil)

// HTTPCaller is a Caller for a fixed URL.
type HTTPCaller struct {
	url    string
	client *http.Client
}

// Option configures an HTTPCaller.
type Option func(*HTTPCaller)

// WithHTTPClient replaces the default client, which has no timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPCaller) { h.client = c }
}

// NewHTTPCaller validates rawURL and returns a caller bound to it.
func NewHTTPCaller(rawURL string, opts ...Option) (*HTTPCaller, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse peer url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("peer url %q must be absolute http(s)", rawURL)
	}
	c := &HTTPCaller{url: u.String(), client: &http.Client{}}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// URL returns the peer address.
func (c *HTTPCaller) URL() string { return c.url }

// Fetch issues one GET with no body and no query. The response body is only
// returned for 2xx answers.
func (c *HTTPCaller) Fetch(ctx context.Context) ([]byte, error) {
	ctx, span := tracing.StartSpan(ctx, "peer.get", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", http.MethodGet),
		attribute.String("url.full", c.url),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fail(span, err)
	}
	tracing.Inject(ctx, req.Header)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fail(span, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fail(span, &StatusError{URL: c.url, StatusCode: resp.StatusCode})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fail(span, err)
	}
	span.SetStatus(codes.Ok, "")
	return body, nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
