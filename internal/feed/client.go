// Package feed loads fee rows, release metadata and the changelog from the static
// data endpoints.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"etfsave.life/web/internal/changelog"
	"etfsave.life/web/internal/format"
	"etfsave.life/web/internal/observability"
	"etfsave.life/web/internal/record"
)

// ErrNotFound is returned when an endpoint is not configured, the file is missing,
// or the server answers 404.
var ErrNotFound = errors.New("feed: not found")

const maxPayload = 16 << 20

// Endpoints locate the three data documents. Each is an http(s) URL or a file path.
type Endpoints struct {
	Rows      string
	Updated   string
	Changelog string
}

// Client reads the data documents.
type Client struct {
	eps    Endpoints
	http   *http.Client
	logger *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient sets the client used for remote endpoints.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithLogger sets the logger used for ignored failures.
func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// NewClient builds a client for eps.
func NewClient(eps Endpoints, opts ...Option) *Client {
	c := &Client{
		eps:    eps,
		http:   &http.Client{Timeout: 15 * time.Second},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoints returns the configured endpoints.
func (c *Client) Endpoints() Endpoints { return c.eps }

// IsRemote reports whether endpoint is fetched over HTTP.
func IsRemote(endpoint string) bool {
	e := strings.ToLower(strings.TrimSpace(endpoint))
	return strings.HasPrefix(e, "http://") || strings.HasPrefix(e, "https://")
}

// LocalFiles returns the endpoints that are plain files.
func (c *Client) LocalFiles() []string {
	var out []string
	for _, e := range []string{c.eps.Rows, c.eps.Updated, c.eps.Changelog} {
		if strings.TrimSpace(e) != "" && !IsRemote(e) {
			out = append(out, filepath.Clean(e))
		}
	}
	return out
}

// Rows fetches the fee rows. A non-2xx response or a payload that is not a JSON array
// is an error.
func (c *Client) Rows(ctx context.Context) (rows []record.Record, err error) {
	ctx, span := observability.StartSpan(ctx, "feed.rows", attribute.String("feed.endpoint", c.eps.Rows))
	defer func() {
		span.SetAttributes(attribute.Int("feed.rows", len(rows)))
		observability.EndSpan(span, err)
	}()

	body, err := c.open(ctx, c.eps.Rows)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	rows, err = record.DecodeArray(io.LimitReader(body, maxPayload))
	if err != nil {
		return nil, fmt.Errorf("feed: rows: %w", err)
	}
	return rows, nil
}

type updatedDoc struct {
	UpdatedAt string `json:"updatedAt"`
}

// UpdatedAt returns the release date as YYYY/MM/DD. Failures are logged and yield "".
func (c *Client) UpdatedAt(ctx context.Context) string {
	if strings.TrimSpace(c.eps.Updated) == "" {
		return ""
	}
	ctx, span := observability.StartSpan(ctx, "feed.updated", attribute.String("feed.endpoint", c.eps.Updated))
	var err error
	defer func() { observability.EndSpan(span, err) }()

	body, err := c.open(ctx, c.eps.Updated)
	if err != nil {
		c.logger.Warn("update metadata unavailable", zap.String("endpoint", c.eps.Updated), zap.Error(err))
		return ""
	}
	defer body.Close()
	var doc updatedDoc
	if err = json.NewDecoder(io.LimitReader(body, maxPayload)).Decode(&doc); err != nil {
		c.logger.Warn("update metadata unreadable", zap.String("endpoint", c.eps.Updated), zap.Error(err))
		return ""
	}
	d := format.NormalizeDate(doc.UpdatedAt)
	if d == "" && strings.TrimSpace(doc.UpdatedAt) != "" {
		c.logger.Warn("update metadata has unknown date format", zap.String("updatedAt", doc.UpdatedAt))
	}
	return d
}

// Changelog fetches the changelog, newest entry first.
func (c *Client) Changelog(ctx context.Context) (entries []changelog.Entry, err error) {
	ctx, span := observability.StartSpan(ctx, "feed.changelog", attribute.String("feed.endpoint", c.eps.Changelog))
	defer func() { observability.EndSpan(span, err) }()

	body, err := c.open(ctx, c.eps.Changelog)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	entries, err = changelog.Decode(io.LimitReader(body, maxPayload))
	if err != nil {
		return nil, fmt.Errorf("feed: changelog: %w", err)
	}
	return changelog.SortDesc(entries), nil
}

func (c *Client) open(ctx context.Context, endpoint string) (io.ReadCloser, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, ErrNotFound
	}
	if !IsRemote(endpoint) {
		f, err := os.Open(endpoint)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, endpoint)
		}
		return f, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed: GET %s: %w", endpoint, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, endpoint)
	case resp.StatusCode/100 != 2:
		resp.Body.Close()
		return nil, fmt.Errorf("feed: GET %s: status %d", endpoint, resp.StatusCode)
	}
	return resp.Body, nil
}
