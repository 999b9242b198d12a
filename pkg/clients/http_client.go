// Package clients provides the HTTP client used to fetch spreadsheet data.
package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/time/rate"

	"github.com/ajitpratap0/nebula-sheets/pkg/errors"
	"github.com/ajitpratap0/nebula-sheets/pkg/metrics"
)

// Fixed request headers sent on every fetch.
const (
	UserAgent            = "Sheets FDW"
	HeaderDatasourceAuth = "X-Datasource-Auth"
)

// DefaultMaxBodySize caps how much of a response is read into memory.
const DefaultMaxBodySize = 64 << 20

// HTTPConfig configures the HTTP client
type HTTPConfig struct {
	// Connection settings
	MaxIdleConns        int           `json:"max_idle_conns"`
	MaxIdleConnsPerHost int           `json:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `json:"idle_conn_timeout"`
	DisableCompression  bool          `json:"disable_compression"`

	// HTTP/2 settings
	EnableHTTP2 bool `json:"enable_http2"`

	// Timeouts
	DialTimeout           time.Duration `json:"dial_timeout"`
	TLSHandshakeTimeout   time.Duration `json:"tls_handshake_timeout"`
	ResponseHeaderTimeout time.Duration `json:"response_header_timeout"`
	RequestTimeout        time.Duration `json:"request_timeout"`
	KeepAlive             time.Duration `json:"keep_alive"`

	// TLS settings
	TLSMinVersion uint16 `json:"tls_min_version"`

	// Retry policy. MaxRetries counts retries after the first attempt.
	MaxRetries          uint64        `json:"max_retries"`
	InitialInterval     time.Duration `json:"initial_interval"`
	MaxInterval         time.Duration `json:"max_interval"`
	Multiplier          float64       `json:"multiplier"`
	RandomizationFactor float64       `json:"randomization_factor"`

	// MaxBodySize is the largest accepted response body, in bytes.
	MaxBodySize int64 `json:"max_body_size"`

	// Rate limiting, in requests per second. Zero disables it.
	RateLimit float64 `json:"rate_limit"`
	RateBurst int     `json:"rate_burst"`
}

// DefaultHTTPConfig returns the default configuration: three retries with
// exponential backoff starting at one second.
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
		EnableHTTP2:           true,
		DialTimeout:           10 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		RequestTimeout:        30 * time.Second,
		KeepAlive:             30 * time.Second,
		TLSMinVersion:         tls.VersionTLS12,
		MaxRetries:            3,
		InitialInterval:       time.Second,
		MaxInterval:           30 * time.Second,
		Multiplier:            2,
		RandomizationFactor:   backoff.DefaultRandomizationFactor,
		MaxBodySize:           DefaultMaxBodySize,
		RateLimit:             10,
		RateBurst:             5,
	}
}

// HTTPClient fetches text resources with the fixed connector headers and a
// bounded retry policy.
type HTTPClient struct {
	config     *HTTPConfig
	logger     *zap.Logger
	httpClient *http.Client
	transport  *http.Transport
	limiter    *rate.Limiter
	latency    *metrics.LatencyTracker
	maxBody    int64

	totalRequests  int64
	retries        int64
	failedRequests int64
}

// NewHTTPClient creates a client from config. A nil config means
// DefaultHTTPConfig.
func NewHTTPClient(config *HTTPConfig, logger *zap.Logger) *HTTPClient {
	if config == nil {
		config = DefaultHTTPConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := &HTTPClient{
		config:  config,
		logger:  logger.With(zap.String("component", "http_client")),
		latency: metrics.NewLatencyTracker(100),
		maxBody: config.MaxBodySize,
	}
	if client.maxBody <= 0 {
		client.maxBody = DefaultMaxBodySize
	}

	client.transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		DisableCompression:    config.DisableCompression,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: config.TLSMinVersion,
		},
	}

	if config.EnableHTTP2 {
		if err := http2.ConfigureTransport(client.transport); err != nil {
			client.logger.Warn("failed to configure HTTP/2", zap.Error(err))
		}
	}

	client.httpClient = &http.Client{
		Transport: client.transport,
		Timeout:   config.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst < 1 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	return client
}

// Client returns the underlying *http.Client. The sheets connector builds
// its Sheets API client on it so both share one transport.
func (c *HTTPClient) Client() *http.Client {
	return c.httpClient
}

// FetchText performs an authenticated GET and returns the body as text.
// Transient failures are retried with exponential backoff; the call returns
// only after the final attempt.
func (c *HTTPClient) FetchText(ctx context.Context, url, bearer string) (string, error) {
	timer := metrics.NewTimer("fetch")
	attempt := 0

	operation := func() (string, error) {
		attempt++
		body, err := c.attempt(ctx, url, bearer)
		switch {
		case err == nil:
			metrics.FetchAttempts.WithLabelValues(metrics.OutcomeSuccess).Inc()
			return body, nil
		case ctx.Err() == nil && errors.IsRetryable(err):
			metrics.FetchAttempts.WithLabelValues(metrics.OutcomeRetry).Inc()
			return "", err
		default:
			metrics.FetchAttempts.WithLabelValues(metrics.OutcomePermanent).Inc()
			return "", backoff.Permanent(err)
		}
	}

	notify := func(err error, wait time.Duration) {
		atomic.AddInt64(&c.retries, 1)
		c.logger.Warn("fetch attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err))
	}

	body, err := backoff.RetryNotifyWithData(operation, c.newBackOff(ctx), notify)

	elapsed := timer.Stop()
	c.latency.Record(elapsed)
	metrics.FetchDuration.Observe(elapsed.Seconds())

	if err != nil {
		atomic.AddInt64(&c.failedRequests, 1)
		if errors.CodeOf(err) == "" {
			// context cancellation surfaces unwrapped from the backoff loop
			err = errors.Wrap(err, errors.CodeTransport, "fetch aborted").
				WithDetail(errors.DetailURL, url)
		}
		c.logger.Error("fetch failed",
			zap.String("url", url),
			zap.Int("attempts", attempt),
			zap.Error(err))
		return "", err
	}

	c.logger.Debug("fetch completed",
		zap.String("url", url),
		zap.Int("attempts", attempt),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", elapsed))
	return body, nil
}

func (c *HTTPClient) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.config.InitialInterval),
		backoff.WithMaxInterval(c.config.MaxInterval),
		backoff.WithMultiplier(c.config.Multiplier),
		backoff.WithRandomizationFactor(c.config.RandomizationFactor),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithContext(backoff.WithMaxRetries(exp, c.config.MaxRetries), ctx)
}

// attempt performs a single request and classifies its failure.
func (c *HTTPClient) attempt(ctx context.Context, url, bearer string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", errors.Wrap(err, errors.CodeTransport, "rate limiter wait failed")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInvalidRequest, "cannot build request").
			WithDetail(errors.DetailURL, url)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set(HeaderDatasourceAuth, "true")
	req.Header.Set("Authorization", "Bearer "+bearer)

	atomic.AddInt64(&c.totalRequests, 1)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeTransport, "request failed").
			WithDetail(errors.DetailURL, url)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return "", errors.Wrap(err, errors.CodeTransport, "cannot read response body").
			WithDetail(errors.DetailURL, url)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.Newf(errors.CodeHTTPStatus, "unexpected status %d", resp.StatusCode).
			WithDetail(errors.DetailStatusCode, resp.StatusCode).
			WithDetail(errors.DetailURL, url)
	}
	if int64(len(body)) > c.maxBody {
		return "", errors.Newf(errors.CodeResponseTooLarge, "response body exceeds %d bytes", c.maxBody).
			WithDetail(errors.DetailURL, url)
	}

	return string(body), nil
}

// GetStats returns current client statistics
func (c *HTTPClient) GetStats() HTTPStats {
	total := atomic.LoadInt64(&c.totalRequests)
	failed := atomic.LoadInt64(&c.failedRequests)

	return HTTPStats{
		TotalRequests:  total,
		Retries:        atomic.LoadInt64(&c.retries),
		FailedFetches:  failed,
		AverageLatency: c.latency.Average(),
		P95Latency:     c.latency.Percentile(95),
		P99Latency:     c.latency.Percentile(99),
	}
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

// HTTPStats represents HTTP client statistics
type HTTPStats struct {
	TotalRequests  int64         `json:"total_requests"`
	Retries        int64         `json:"retries"`
	FailedFetches  int64         `json:"failed_fetches"`
	AverageLatency time.Duration `json:"average_latency"`
	P95Latency     time.Duration `json:"p95_latency"`
	P99Latency     time.Duration `json:"p99_latency"`
}
