// Package catalog implements the client for the remote product catalog API
// together with the in-memory snapshot of the last fetched catalog.
package catalog

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/catalog-console/internal/domain/product"
	"github.com/xenking/catalog-console/pkg/httpmiddleware"
)

const instrumentationName = "github.com/xenking/catalog-console/internal/catalog"

var _ product.Catalog = (*Client)(nil)

// Config holds the remote catalog settings.
type Config struct {
	// BaseURL is the API root, e.g. https://dummyjson.com.
	BaseURL string
	// Timeout bounds every remote call. Zero disables the timeout.
	Timeout time.Duration
	// ListLimit is sent as the `limit` query parameter of List when positive.
	// Zero keeps the remote default page size.
	ListLimit int
}

// Option configures a Client.
type Option func(*options)

type options struct {
	httpClient     *http.Client
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	logger         *zap.Logger
}

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTracerProvider sets the tracer provider used for client spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider used for client metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithLogger sets the logger used outside of request scope (local deletes).
func WithLogger(lg *zap.Logger) Option {
	return func(o *options) { o.logger = lg }
}

// Client talks to the remote catalog API and owns the catalog snapshot.
type Client struct {
	baseURL   string
	listLimit int
	http      *http.Client
	snapshot  *Snapshot
	lg        *zap.Logger

	tracer trace.Tracer
	calls  metric.Int64Counter
}

// NewClient returns a Client for cfg that mirrors List results into snapshot.
func NewClient(cfg Config, snapshot *Snapshot, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("catalog base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, errors.Wrap(err, "parse base URL")
	}
	if snapshot == nil {
		return nil, errors.New("catalog snapshot is required")
	}

	o := options{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(o.tracerProvider),
				otelhttp.WithMeterProvider(o.meterProvider),
			),
		}
	}

	calls, err := o.meterProvider.Meter(instrumentationName).Int64Counter("catalog.client.calls",
		metric.WithDescription("Remote catalog calls and local deletes by operation and outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create calls counter")
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		listLimit: cfg.ListLimit,
		http:      o.httpClient,
		snapshot:  snapshot,
		lg:        o.logger,
		tracer:    o.tracerProvider.Tracer(instrumentationName),
		calls:     calls,
	}, nil
}

// List fetches the catalog and replaces the snapshot with the result. On
// failure the snapshot is left as it was.
func (c *Client) List(ctx context.Context) (*product.Page, error) {
	path := "/products"
	if c.listLimit > 0 {
		path += "?limit=" + strconv.Itoa(c.listLimit)
	}

	var page *product.Page
	err := c.do(ctx, "list", http.MethodGet, path, nil, func(d *jx.Decoder) (err error) {
		page, err = decodePage(d)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}

	c.snapshot.Replace(page.Products)
	return page, nil
}

// Page fetches one window of the catalog without touching the snapshot.
func (c *Client) Page(ctx context.Context, skip, limit int) (*product.Page, error) {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))

	var page *product.Page
	err := c.do(ctx, "page", http.MethodGet, "/products?"+q.Encode(), nil, func(d *jx.Decoder) (err error) {
		page, err = decodePage(d)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetch products window skip=%d limit=%d", skip, limit)
	}
	return page, nil
}

// Get fetches a single product. A remote 404 yields product.ErrNotFound.
func (c *Client) Get(ctx context.Context, id int64) (*product.Product, error) {
	var p product.Product
	err := c.do(ctx, "get", http.MethodGet, productPath(id), nil, func(d *jx.Decoder) error {
		return decodeProduct(d, &p)
	})
	if err != nil {
		return nil, errors.Wrapf(notFound(err), "get product %d", id)
	}
	return &p, nil
}

// Create submits a new product. The remote service answers with a simulated
// record that is not durably stored; the snapshot is not updated.
func (c *Client) Create(ctx context.Context, p product.Product) (*product.Product, error) {
	var e jx.Encoder
	encodeProduct(&e, p)

	var created product.Product
	err := c.do(ctx, "create", http.MethodPost, "/products/add", e.Bytes(), func(d *jx.Decoder) error {
		return decodeProduct(d, &created)
	})
	if err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	return &created, nil
}

// Update submits a full replacement of product id. The snapshot is not
// updated.
func (c *Client) Update(ctx context.Context, id int64, p product.Product) (*product.Product, error) {
	var e jx.Encoder
	encodeProduct(&e, p)

	var updated product.Product
	err := c.do(ctx, "update", http.MethodPut, productPath(id), e.Bytes(), func(d *jx.Decoder) error {
		return decodeProduct(d, &updated)
	})
	if err != nil {
		return nil, errors.Wrapf(notFound(err), "update product %d", id)
	}
	return &updated, nil
}

// Delete removes product id from the snapshot only. The remote API does not
// persist deletes, so no request is sent and the product comes back on the
// next List.
func (c *Client) Delete(id int64) (*product.DeleteResult, error) {
	if !c.snapshot.Remove(id) {
		c.count(context.Background(), "delete", product.ErrNotFound)
		return nil, errors.Wrapf(product.ErrNotFound, "delete product %d", id)
	}

	c.count(context.Background(), "delete", nil)
	c.lg.Info("Product removed from local snapshot",
		zap.Int64("product_id", id),
		zap.Int("remaining", c.snapshot.Len()),
	)
	return &product.DeleteResult{Deleted: true, ID: id}, nil
}

// Snapshot returns the catalog as last fetched, minus local deletes.
func (c *Client) Snapshot() []product.Product {
	return c.snapshot.Products()
}

// Loaded reports whether List has succeeded at least once.
func (c *Client) Loaded() bool {
	return c.snapshot.Loaded()
}

// Ping checks that the remote catalog answers with the smallest possible
// listing.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", http.MethodGet, "/products?limit=1&select=id", nil, nil)
}

func (c *Client) do(
	ctx context.Context,
	op, method, path string,
	body []byte,
	decode func(d *jx.Decoder) error,
) (rerr error) {
	ctx, span := c.tracer.Start(ctx, "catalog."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.request.method", method)),
	)
	start := time.Now()
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
		c.count(ctx, op, rerr)
		zctx.From(ctx).Debug("Catalog call",
			zap.String("op", op),
			zap.String("path", path),
			zap.Duration("duration", time.Since(start)),
			zap.Error(rerr),
		)
	}()

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := httpmiddleware.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(httpmiddleware.HeaderRequestID, id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "send request")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Op: op, Code: resp.StatusCode, Message: decodeMessage(data)}
	}
	if decode == nil {
		return nil
	}
	if err := decode(jx.DecodeBytes(data)); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func (c *Client) count(ctx context.Context, op string, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, product.ErrNotFound):
		outcome = "not_found"
	case err != nil:
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			outcome = "not_found"
		} else {
			outcome = "error"
		}
	}
	c.calls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	))
}

func productPath(id int64) string {
	return "/products/" + strconv.FormatInt(id, 10)
}
