// Package grobid talks to a GROBID-style reference-parsing service and maps
// its TEI responses onto bibliographic records.
package grobid

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/refsweep/refsweep/internal/record"
	"github.com/refsweep/refsweep/internal/teicache"
)

const (
	// DefaultBaseURL is the conventional local GROBID address.
	DefaultBaseURL = "http://localhost:8070"

	// HealthTimeout bounds the liveness probe. A probe that takes longer
	// than this is treated as an unreachable service.
	HealthTimeout = 3 * time.Second

	// ProcessTimeout bounds one references-processing call.
	ProcessTimeout = 60 * time.Second

	// RateLimit is the maximum request rate against the service.
	RateLimit = 5.0

	// maxErrorBody is how much of a failure response body is kept.
	maxErrorBody = 512
)

// Cache stores raw service responses keyed by content hash so an unchanged
// PDF is never uploaded twice.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, tei []byte) error
}

// Client is a rate-limited HTTP client for the reference-parsing service.
type Client struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	baseURL     string
	consolidate bool
	cache       Cache
	logger      *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets the service base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithCache enables response caching.
func WithCache(cache Cache) ClientOption {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithConsolidation asks the service to consolidate citations against its
// upstream sources.
func WithConsolidation(on bool) ClientOption {
	return func(c *Client) {
		c.consolidate = on
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a service client. Without options it targets a local
// instance, applies the default rate limit, and logs nowhere.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    DefaultBaseURL,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Alive probes the service's liveness endpoint with a short timeout. An
// unreachable service yields ErrServiceUnavailable; a non-success status
// yields a *ServiceError.
func (c *Client) Alive(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/isalive", nil)
	if err != nil {
		return fmt.Errorf("creating liveness request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ServiceError{StatusCode: resp.StatusCode, Body: truncatedBody(resp.Body)}
	}
	return nil
}

// ProcessReferences submits the PDF at path to the references-only
// processing endpoint and returns the extracted records. Cached responses
// short-circuit both the liveness probe and the upload. There is no retry:
// one failed probe or processing call fails the whole file.
func (c *Client) ProcessReferences(ctx context.Context, path string) ([]record.Extracted, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading PDF: %w", err)
	}

	key := teicache.Key(data)
	if c.cache != nil {
		if tei, ok := c.cache.Get(key); ok {
			c.logger.Debug("using cached service response",
				zap.String("file", path), zap.String("key", key))
			return ParseTEI(tei, path)
		}
	}

	if err := c.Alive(ctx); err != nil {
		return nil, err
	}

	tei, err := c.postReferences(ctx, data)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Put(key, tei); err != nil {
			c.logger.Debug("caching service response failed", zap.Error(err))
		}
	}

	return ParseTEI(tei, path)
}

func (c *Client) postReferences(ctx context.Context, pdf []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, ProcessTimeout)
	defer cancel()

	form := url.Values{}
	form.Set("input", base64.StdEncoding.EncodeToString(pdf))
	form.Set("consolidateCitations", consolidateFlag(c.consolidate))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/processReferences", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating processing request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Body: truncatedBody(resp.Body)}
	}

	return io.ReadAll(resp.Body)
}

func consolidateFlag(on bool) string {
	if on {
		return "1"
	}
	return "0"
}

func truncatedBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(data))
}
