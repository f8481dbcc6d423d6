// Package ghost is the backend gateway for a Ghost site.
//
// Every outbound call is funnelled through a single queue.Queue and every
// failure is returned as a classified *Error. The package owns translation of
// logical operations (browse, read, add, edit, delete, bulk) into Admin API
// and Content API requests.
package ghost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/petal-labs/ghostmcp/queue"
)

const (
	// DefaultAPIVersion is sent as the Accept-Version header.
	DefaultAPIVersion = "v5.0"
	// DefaultTimeout bounds a single HTTP exchange.
	DefaultTimeout = 30 * time.Second

	adminAPIPath   = "/ghost/api/admin/"
	contentAPIPath = "/ghost/api/content/"
	maxBodyBytes   = 16 << 20
)

// Config configures a Client.
type Config struct {
	// URL is the site root, e.g. https://example.ghost.io.
	URL string
	// AdminAPIKey is "<id>:<hex secret>".
	AdminAPIKey string
	// ContentAPIKey enables public reads through the Content API. When empty,
	// those reads go to the Admin API instead.
	ContentAPIKey string
	// APIVersion is sent as Accept-Version.
	// Default: v5.0
	APIVersion string
	// Timeout is the HTTP client timeout.
	// Default: 30s
	Timeout time.Duration
	// Queue gates every outbound call. A default queue is created when nil.
	Queue *queue.Queue
	// HTTPClient overrides the pooled client; mainly for tests.
	HTTPClient *http.Client
	Logger     *slog.Logger
	Now        func() time.Time
}

// Client is the Ghost backend gateway.
type Client struct {
	base       *url.URL
	adminKey   AdminKey
	contentKey string
	apiVersion string
	queue      *queue.Queue
	http       *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

type api int

const (
	adminAPI api = iota
	contentAPI
)

func (a api) String() string {
	if a == contentAPI {
		return "content"
	}
	return "admin"
}

type request struct {
	method string
	api    api
	path   string
	query  url.Values
	body   any
	out    any
}

// NewClient validates cfg and builds a gateway.
func NewClient(cfg Config) (*Client, error) {
	rawURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if rawURL == "" {
		return nil, errors.New("ghost: site URL is required")
	}
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("ghost: parse site URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("ghost: site URL %q must use http or https", rawURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("ghost: site URL %q has no host", rawURL)
	}

	key, err := ParseAdminKey(cfg.AdminAPIKey)
	if err != nil {
		return nil, err
	}

	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Queue == nil {
		cfg.Queue = queue.New(queue.Config{})
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = newHTTPClient(cfg.Timeout)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Client{
		base:       base,
		adminKey:   key,
		contentKey: strings.TrimSpace(cfg.ContentAPIKey),
		apiVersion: cfg.APIVersion,
		queue:      cfg.Queue,
		http:       cfg.HTTPClient,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// Queue returns the request queue shared by every call.
func (c *Client) Queue() *queue.Queue {
	return c.queue
}

// SiteURL returns the configured site root.
func (c *Client) SiteURL() string {
	return c.base.String()
}

// readAPI picks the API used for public reads.
func (c *Client) readAPI() api {
	if c.contentKey != "" {
		return contentAPI
	}
	return adminAPI
}

// do runs one backend exchange through the queue. Every returned error is a
// *Error.
func (c *Client) do(ctx context.Context, req request) error {
	err := c.queue.Do(ctx, func(ctx context.Context) error {
		return c.send(ctx, req)
	})
	if err != nil {
		return transportError(err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, req request) error {
	endpoint, err := c.endpoint(req)
	if err != nil {
		return err
	}

	var body io.Reader
	if req.body != nil {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(req.body); err != nil {
			return fmt.Errorf("ghost: encode %s %s body: %w", req.method, req.path, err)
		}
		body = &buf
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, body)
	if err != nil {
		return fmt.Errorf("ghost: build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Accept-Version", c.apiVersion)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.api == adminAPI {
		auth, err := c.adminKey.AuthorizationHeader(c.now())
		if err != nil {
			return err
		}
		httpReq.Header.Set("Authorization", auth)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Debug("ghost request failed",
			"method", req.method,
			"api", req.api.String(),
			"path", req.path,
			"error", err,
		)
		return transportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return transportError(fmt.Errorf("read response: %w", err))
	}

	c.logger.Debug("ghost request",
		"method", req.method,
		"api", req.api.String(),
		"path", req.path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		fallback := fmt.Sprintf("request failed with status %d", resp.StatusCode)
		return Classify(resp.StatusCode, resp.Header, respBody, fallback)
	}

	if req.out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, req.out); err != nil {
		return fmt.Errorf("ghost: decode %s %s response: %w", req.method, req.path, err)
	}
	return nil
}

func (c *Client) endpoint(req request) (string, error) {
	prefix := adminAPIPath
	if req.api == contentAPI {
		prefix = contentAPIPath
	}

	path := strings.Trim(req.path, "/")
	if path == "" {
		return "", errors.New("ghost: request path is empty")
	}

	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + prefix + path + "/"

	query := url.Values{}
	for k, vs := range req.query {
		for _, v := range vs {
			if v != "" {
				query.Add(k, v)
			}
		}
	}
	if req.api == contentAPI {
		query.Set("key", c.contentKey)
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}
