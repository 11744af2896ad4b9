// Package weather fetches and parses Yandex weather forecast pages.
package weather

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"weatherbot/model"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://yandex.ru/pogoda/ru"
	DefaultMaxDays = 7
	maxPageSize    = 8 << 20
)

// Client implements the forecast source of the weather flows.
type Client struct {
	baseURL   string
	userAgent string
	retries   int
	backoff   time.Duration
	maxDays   int
	timeout   time.Duration
	proxy     *url.URL
	logger    *zap.Logger

	direct  *http.Client
	proxied *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

func WithRetries(retries int, backoff time.Duration) Option {
	return func(c *Client) {
		c.retries = retries
		c.backoff = backoff
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

func WithMaxDays(days int) Option {
	return func(c *Client) {
		c.maxDays = days
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithProxy routes requests through proxyUrl; nil means a direct connection.
func WithProxy(proxyUrl *url.URL) Option {
	return func(c *Client) {
		c.proxy = proxyUrl
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		retries: 3,
		backoff: time.Second,
		maxDays: DefaultMaxDays,
		timeout: 30 * time.Second,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.direct = &http.Client{Timeout: c.timeout}
	if c.proxy != nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.Proxy = http.ProxyURL(c.proxy)
		c.proxied = &http.Client{Timeout: c.timeout, Transport: transport}
	}
	return c
}

// PageURL is the address of the forecast page of city.
func (c *Client) PageURL(city string) string {
	return c.baseURL + "/" + url.PathEscape(strings.ToLower(strings.TrimSpace(city)))
}

// FetchWeather downloads and parses the forecast of city. A page without
// any parsable day yields an empty forecast, not an error.
func (c *Client) FetchWeather(ctx context.Context, city string) (*model.Forecast, error) {
	pageURL := c.PageURL(city)

	body, err := c.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	forecast, err := Parse(bytes.NewReader(body), c.maxDays)
	if err != nil {
		return nil, err
	}
	forecast.City = city
	forecast.Source = pageURL
	forecast.Table.Name = city
	if forecast.Empty() {
		forecast.Errors = append(forecast.Errors, "failed to parse "+pageURL)
	}
	return forecast, nil
}

func (c *Client) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	client := c.direct
	if c.proxied != nil {
		client = c.proxied
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff):
			}
		}

		body, retry, err := c.get(ctx, client, pageURL)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if isProxyError(err) && client == c.proxied {
			c.logger.Warn("proxy failed, switching to a direct connection",
				zap.String("proxy", c.proxy.Redacted()),
				zap.Error(err),
			)
			client = c.direct
			continue
		}
		if !retry || ctx.Err() != nil {
			break
		}
		c.logger.Debug("retrying forecast request",
			zap.String("url", pageURL),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return nil, lastErr
}

func (c *Client) get(ctx context.Context, client *http.Client, pageURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, false, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("failed to request %s : %w", pageURL, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, res.StatusCode >= 500, fmt.Errorf("unexpected status %d from %s", res.StatusCode, pageURL)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxPageSize))
	if err != nil {
		return nil, true, fmt.Errorf("failed to read %s : %w", pageURL, err)
	}
	return body, false, nil
}

func isProxyError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "proxyconnect" {
		return true
	}
	return strings.Contains(err.Error(), "proxyconnect")
}
