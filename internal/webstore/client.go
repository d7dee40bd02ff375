/*
Copyright © 2025 CRX Grabber Authors.

Released under MIT license.
*/

// Package webstore downloads extension packages from the Chrome Web Store
// update endpoint.
package webstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"github.com/acronis/go-appkit/httpclient"

	"github.com/jaipandya/crx-grabber/internal/crx"
)

const (
	// DefaultUpdateURL is the Chrome Web Store endpoint serving CRX packages.
	DefaultUpdateURL = "https://clients2.google.com/service/update2/crx"

	// DefaultClientVersion is the Chrome version reported to the update endpoint.
	DefaultClientVersion = "120.0.0.0"

	// DefaultFetchTimeout bounds a single download end to end,
	// connection establishment and body transfer included.
	DefaultFetchTimeout = 9 * time.Second

	// DefaultSizeLimit is the maximum package size accepted from upstream.
	DefaultSizeLimit = 20 * 1024 * 1024
)

const downloadReqType = "webstore_download"

// ErrEmptyBody is returned when upstream responds with success but no content.
var ErrEmptyBody = errors.New("upstream returned empty body")

// UpstreamStatusError is returned when upstream responds with a non-success status.
type UpstreamStatusError struct {
	StatusCode int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream responded with status %d", e.StatusCode)
}

// TooLargeError is returned when the package exceeds the configured size limit.
type TooLargeError struct {
	SizeLimit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("package exceeds size limit of %s", bytefmt.ByteSize(uint64(e.SizeLimit)))
}

// Opts allows to configure Client.
type Opts struct {
	// UpdateURL overrides the upstream endpoint. DefaultUpdateURL is used if empty.
	UpdateURL string

	// ClientVersion is sent as prodversion. DefaultClientVersion is used if empty.
	ClientVersion string

	// Timeout bounds the whole download. DefaultFetchTimeout is used if zero.
	Timeout time.Duration

	// SizeLimit caps the package size in bytes. DefaultSizeLimit is used if zero.
	SizeLimit int64

	// OutboundRateLimit limits requests per second to upstream. Unlimited if zero.
	OutboundRateLimit int

	// UserAgent is sent with every upstream request if not empty.
	UserAgent string
}

// Client fetches CRX packages from the update endpoint.
type Client struct {
	httpClient    *http.Client
	updateURL     string
	clientVersion string
	sizeLimit     int64
}

// NewClient creates a new Client.
func NewClient(opts Opts) (*Client, error) {
	if opts.UpdateURL == "" {
		opts.UpdateURL = DefaultUpdateURL
	}
	if opts.ClientVersion == "" {
		opts.ClientVersion = DefaultClientVersion
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultFetchTimeout
	}
	if opts.SizeLimit == 0 {
		opts.SizeLimit = DefaultSizeLimit
	}
	if _, err := url.Parse(opts.UpdateURL); err != nil {
		return nil, fmt.Errorf("parse update URL: %w", err)
	}

	var transport http.RoundTripper = http.DefaultTransport.(*http.Transport).Clone()
	transport = httpclient.NewLoggingRoundTripperWithOpts(transport,
		httpclient.LoggingRoundTripperOpts{ClientType: downloadReqType})
	if opts.OutboundRateLimit > 0 {
		var err error
		transport, err = httpclient.NewRateLimitingRoundTripperWithOpts(
			transport, opts.OutboundRateLimit, httpclient.RateLimitingRoundTripperOpts{WaitTimeout: opts.Timeout})
		if err != nil {
			return nil, fmt.Errorf("create rate limiting round tripper: %w", err)
		}
	}
	if opts.UserAgent != "" {
		transport = httpclient.NewUserAgentRoundTripper(transport, opts.UserAgent)
	}

	return &Client{
		httpClient:    &http.Client{Transport: transport, Timeout: opts.Timeout},
		updateURL:     opts.UpdateURL,
		clientVersion: opts.ClientVersion,
		sizeLimit:     opts.SizeLimit,
	}, nil
}

// SizeLimit returns the maximum package size in bytes the client will accept.
func (c *Client) SizeLimit() int64 {
	return c.sizeLimit
}

// DownloadURL builds the update endpoint URL for the given extension identifier.
func (c *Client) DownloadURL(id crx.ID) string {
	query := url.Values{}
	query.Set("response", "redirect")
	query.Set("acceptformat", "crx2,crx3")
	query.Set("prodversion", c.clientVersion)
	query.Set("x", fmt.Sprintf("id=%s&uc", id))
	return c.updateURL + "?" + query.Encode()
}

// Download is an open package download. Body reads are capped by the client's
// size limit and fail with *TooLargeError once the cap is crossed.
// The caller must close Body.
type Download struct {
	Body io.ReadCloser

	// ContentLength mirrors the upstream Content-Length header, -1 if unknown.
	ContentLength int64
}

// Open starts a package download for the given extension identifier.
// A non-success upstream status yields *UpstreamStatusError, a declared
// length above the size limit yields *TooLargeError.
func (c *Client) Open(ctx context.Context, id crx.ID) (*Download, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.DownloadURL(id), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &UpstreamStatusError{StatusCode: resp.StatusCode}
	}
	if resp.ContentLength > c.sizeLimit {
		_ = resp.Body.Close()
		return nil, &TooLargeError{SizeLimit: c.sizeLimit}
	}

	return &Download{
		Body:          &maxBytesReadCloser{body: resp.Body, limit: c.sizeLimit, remaining: c.sizeLimit},
		ContentLength: resp.ContentLength,
	}, nil
}

// FetchAll downloads the whole package into memory.
func (c *Client) FetchAll(ctx context.Context, id crx.ID) ([]byte, error) {
	dl, err := c.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = dl.Body.Close() }()

	buf, err := io.ReadAll(dl.Body)
	if err != nil {
		return nil, err
	}
	if len(buf) == 0 {
		return nil, ErrEmptyBody
	}
	return buf, nil
}

// IsTimeout reports whether the error was caused by the download deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// maxBytesReadCloser fails the read that crosses the size limit
// instead of silently truncating the stream.
type maxBytesReadCloser struct {
	body      io.ReadCloser
	limit     int64
	remaining int64
}

func (r *maxBytesReadCloser) Read(p []byte) (int, error) {
	if r.remaining < 0 {
		return 0, &TooLargeError{SizeLimit: r.limit}
	}
	n, err := r.body.Read(p)
	r.remaining -= int64(n)
	if r.remaining < 0 {
		return int(int64(n) + r.remaining), &TooLargeError{SizeLimit: r.limit}
	}
	return n, err
}

func (r *maxBytesReadCloser) Close() error {
	return r.body.Close()
}
