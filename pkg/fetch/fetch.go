// Package fetch performs the cancellable listing requests of the grid
// engine against a generic CRUD backend.
//
// The backend contract is loose on purpose: rows may arrive under
// "data", "items", or as a bare array, and the total under "total" or
// "count". Extraction is tolerant of extra fields; a payload with no
// recognizable rows is a shape failure, which callers display exactly
// like a transport failure.
//
// Cancellation is cooperative and caller-owned: a superseded request is
// cancelled through its context, and that outcome is distinguishable
// from a real failure via IsCancel so it never surfaces as an error to
// the user.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Row is one decoded result row.
type Row map[string]any

// ID returns the row's stable identifier under the given field,
// stringified. Numeric identifiers are rendered without an exponent.
func (r Row) ID(field string) string {
	switch v := r[field].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Page is one page of listing results.
type Page struct {
	Rows  []Row
	Total int
}

// TransportError is a failed exchange with the backend: network error
// or non-success status.
type TransportError struct {
	URL    string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ErrBadShape marks a response payload with no recognizable row list.
var ErrBadShape = errors.New("response shape not recognized")

// IsCancel reports whether err is a cancelled or superseded request
// rather than a true failure. Cancellations must never be shown to the
// user.
func IsCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRateLimit paces outgoing requests, bounding the request volume of
// rapid page flipping. Zero rps disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithHeader adds a header to every request, e.g. an authorization
// token.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers.Set(key, value) }
}

// WithTracerProvider sets the tracer provider; the global provider is
// used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp.Tracer(tracerName) }
}

const tracerName = "gridcore/fetch"

// Client fetches listing pages, posts actions, and streams downloads.
type Client struct {
	http    *http.Client
	base    *url.URL
	limiter *rate.Limiter
	tracer  trace.Tracer
	headers http.Header
	logger  *slog.Logger
}

// NewClient builds a client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	c := &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		base:    base,
		tracer:  otel.Tracer(tracerName),
		headers: http.Header{},
		logger:  slog.Default().With("component", "fetch"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// List fetches one listing page. params is the encoded grid query.
func (c *Client) List(ctx context.Context, path string, params url.Values) (*Page, error) {
	body, reqURL, err := c.get(ctx, path, params, "list")
	if err != nil {
		return nil, err
	}
	page, ok := extractPage(body)
	if !ok {
		c.logger.WarnContext(ctx, "unrecognized response shape", "url", reqURL)
		return nil, fmt.Errorf("%s: %w", reqURL, ErrBadShape)
	}
	return page, nil
}

// PostJSON posts a JSON payload and returns the raw response body.
// Non-success statuses are transport errors carrying the body's text.
func (c *Client) PostJSON(ctx context.Context, rawURL string, payload io.Reader) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "grid.post", trace.WithAttributes(
		attribute.String("url.path", rawURL),
	))
	defer span.End()

	u, err := c.resolve(rawURL, nil)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, payload)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req, span)
}

// Download streams a GET response into w, for export flows.
func (c *Client) Download(ctx context.Context, path string, params url.Values, w io.Writer) error {
	ctx, span := c.tracer.Start(ctx, "grid.download", trace.WithAttributes(
		attribute.String("url.path", path),
	))
	defer span.End()

	u, err := c.resolve(path, params)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.decorate(req)

	resp, err := c.http.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return &TransportError{URL: u, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, resp.Status)
		return &TransportError{URL: u, Status: resp.StatusCode}
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return &TransportError{URL: u, Err: err}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, op string) ([]byte, string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			// Admission refused: the context is done, or the wait would
			// outlive its deadline. Either way the request is moot.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, path, ctxErr
			}
			return nil, path, context.DeadlineExceeded
		}
	}
	ctx, span := c.tracer.Start(ctx, "grid."+op, trace.WithAttributes(
		attribute.String("url.path", path),
	))
	defer span.End()

	u, err := c.resolve(path, params)
	if err != nil {
		return nil, path, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, u, fmt.Errorf("build request: %w", err)
	}
	body, err := c.send(req, span)
	return body, u, err
}

func (c *Client) send(req *http.Request, span trace.Span) ([]byte, error) {
	c.decorate(req)
	u := req.URL.String()

	resp, err := c.http.Do(req)
	if err != nil {
		if IsCancel(err) {
			// Superseded request; not a failure.
			return nil, err
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, &TransportError{URL: u, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if IsCancel(err) {
			return nil, err
		}
		return nil, &TransportError{URL: u, Err: err}
	}
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, resp.Status)
		return nil, &TransportError{URL: u, Status: resp.StatusCode}
	}
	return body, nil
}

func (c *Client) decorate(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	for k, vals := range c.headers {
		for _, v := range vals {
			req.Header.Set(k, v)
		}
	}
}

func (c *Client) resolve(path string, params url.Values) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse path %q: %w", path, err)
	}
	u := c.base.ResolveReference(ref)
	if params != nil {
		u.RawQuery = params.Encode()
	}
	return u.String(), nil
}

// extractPage pulls rows and total out of a response body.
func extractPage(body []byte) (*Page, bool) {
	root := gjson.ParseBytes(body)

	var rows gjson.Result
	switch {
	case root.Get("data").IsArray():
		rows = root.Get("data")
	case root.Get("items").IsArray():
		rows = root.Get("items")
	case root.IsArray():
		rows = root
	default:
		return nil, false
	}

	page := &Page{}
	rows.ForEach(func(_, item gjson.Result) bool {
		if m, ok := item.Value().(map[string]any); ok {
			page.Rows = append(page.Rows, Row(m))
		}
		return true
	})

	if total := root.Get("total"); total.Exists() {
		page.Total = int(total.Int())
	} else if count := root.Get("count"); count.Exists() {
		page.Total = int(count.Int())
	} else {
		page.Total = len(page.Rows)
	}
	return page, true
}
