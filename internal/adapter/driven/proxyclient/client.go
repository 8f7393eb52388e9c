// Package proxyclient sends signed requests to the configured proxy gateway.
package proxyclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/signproxy/internal/domain/model"
	"github.com/ericfisherdev/signproxy/internal/domain/port/driven"
	"github.com/ericfisherdev/signproxy/internal/signature"
)

// maxResponseBytes caps how much of an upstream response body is read.
const maxResponseBytes = 16 << 20

var (
	// ErrNoProxy is returned when no proxy endpoint has been saved.
	ErrNoProxy = errors.New("no api proxy configured")

	// ErrUnreachable wraps transport failures talking to the gateway.
	ErrUnreachable = errors.New("proxy unreachable")
)

// UpstreamError reports a non-2xx response from the gateway. A 401 means the
// gateway rejected the signature; other codes come from the upstream provider.
type UpstreamError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("proxy returned %d: %s", e.StatusCode, e.Body)
}

// Unauthorized reports whether the gateway refused the signature.
func (e *UpstreamError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// Stamper signs the current time with the API key of a settings record.
type Stamper interface {
	StampWith(cfg model.Settings) (model.Stamp, error)
}

// Client attaches (timestamp, signature) headers to every request and sends it
// to the endpoint held in settings. It never retries; the caller's context
// bounds each call.
type Client struct {
	http     *http.Client
	settings driven.SettingsStore
	stamper  Stamper
}

// New creates a Client backed by an in-memory httpcache transport. The cache
// keys on URL only, so every request carries Cache-Control: no-cache and a
// response stored under an earlier credential is never returned without a
// round trip to the gateway.
func New(settings driven.SettingsStore, stamper Stamper) *Client {
	return &Client{
		http: &http.Client{
			Transport: httpcache.NewMemoryCacheTransport(),
			Timeout:   2 * time.Minute,
		},
		settings: settings,
		stamper:  stamper,
	}
}

// NewWithHTTPClient creates a Client using httpClient as-is. Intended for tests.
func NewWithHTTPClient(httpClient *http.Client, settings driven.SettingsStore, stamper Stamper) *Client {
	return &Client{http: httpClient, settings: settings, stamper: stamper}
}

// Do sends body to path under the configured proxy URL and returns the
// response body. Non-2xx responses return *UpstreamError.
func (c *Client) Do(ctx context.Context, method, path string, body []byte, contentType string) ([]byte, error) {
	cfg, err := c.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load proxy settings: %w", err)
	}
	if cfg.APIProxy == "" {
		return nil, ErrNoProxy
	}

	target, err := joinURL(cfg.APIProxy, path)
	if err != nil {
		return nil, err
	}

	stamp, err := c.stamper.StampWith(cfg)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build proxy request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Cache-Control", "no-cache")
	signature.SetHeader(req.Header, stamp.Signature, stamp.Timestamp)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	return data, nil
}

// joinURL appends path to base, keeping any path prefix base already has.
func joinURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid api proxy %q", base)
	}
	return strings.TrimRight(u.String(), "/") + "/" + strings.TrimLeft(path, "/"), nil
}
