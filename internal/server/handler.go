/*
Copyright © 2025 CRX Grabber Authors.

Released under MIT license.
*/

// Package server implements the HTTP API of the extension download proxy.
package server

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/acronis/go-appkit/httpserver/middleware"
	"github.com/acronis/go-appkit/log"
	"github.com/acronis/go-appkit/restapi"
	"github.com/go-chi/chi/v5"

	"github.com/jaipandya/crx-grabber/internal/crx"
	"github.com/jaipandya/crx-grabber/internal/ratelimit"
	"github.com/jaipandya/crx-grabber/internal/webstore"
)

// DeliveryMode determines the form in which a fetched package is returned.
type DeliveryMode string

// Delivery modes.
const (
	// DeliveryModeRaw streams the CRX package untouched.
	DeliveryModeRaw DeliveryMode = "raw"

	// DeliveryModeArchive strips the CRX container header and returns the ZIP payload.
	DeliveryModeArchive DeliveryMode = "archive"
)

// Error codes returned in response bodies.
const (
	ErrCodeInvalidExtensionID = "invalidExtensionID"
	ErrCodeTooManyRequests    = "tooManyRequests"
	ErrCodePayloadTooLarge    = "payloadTooLarge"
	ErrCodeUpstreamTimeout    = "upstreamTimeout"
	ErrCodeUpstreamError      = "upstreamError"
	ErrCodeInvalidContainer   = "invalidContainer"
)

// Metric result labels for terminal states of a download request.
const (
	resultSuccess     = "success"
	resultBadID       = "bad_id"
	resultRateLimited = "rate_limited"
	resultTooLarge    = "too_large"
	resultTimeout     = "timeout"
	resultUpstream    = "upstream_error"
	resultBadPackage  = "bad_package"
	resultAborted     = "aborted"
	resultInternal    = "internal_error"
)

// DownloadHandlerOpts allows to configure DownloadHandler.
type DownloadHandlerOpts struct {
	// ZipScanWindow bounds the search for a bare ZIP signature in packages
	// without a CRX container. crx.DefaultZipScanWindow is used if zero.
	ZipScanWindow int
}

// DownloadHandler serves extension download requests.
type DownloadHandler struct {
	client        *webstore.Client
	limiter       ratelimit.Limiter
	metrics       *MetricsCollector
	zipScanWindow int
}

// NewDownloadHandler creates a new DownloadHandler.
func NewDownloadHandler(
	client *webstore.Client, limiter ratelimit.Limiter, metrics *MetricsCollector, opts DownloadHandlerOpts,
) *DownloadHandler {
	if opts.ZipScanWindow == 0 {
		opts.ZipScanWindow = crx.DefaultZipScanWindow
	}
	return &DownloadHandler{
		client:        client,
		limiter:       limiter,
		metrics:       metrics,
		zipScanWindow: opts.ZipScanWindow,
	}
}

// ServeRaw handles GET /api/raw/{id}.
func (h *DownloadHandler) ServeRaw(rw http.ResponseWriter, r *http.Request) {
	h.serve(rw, r, DeliveryModeRaw)
}

// ServeArchive handles GET /api/archive/{id}.
func (h *DownloadHandler) ServeArchive(rw http.ResponseWriter, r *http.Request) {
	h.serve(rw, r, DeliveryModeArchive)
}

func (h *DownloadHandler) serve(rw http.ResponseWriter, r *http.Request, mode DeliveryMode) {
	logger := middleware.GetLoggerFromContext(r.Context())

	id, err := crx.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		h.metrics.observeDownload(mode, resultBadID)
		apiErr := restapi.NewError(ErrorDomain, ErrCodeInvalidExtensionID,
			fmt.Sprintf("Extension ID must be exactly %d latin letters.", crx.IDLength))
		restapi.RespondError(rw, http.StatusBadRequest, apiErr, logger)
		return
	}

	if !h.allowRequest(rw, r, mode, logger) {
		return
	}

	switch mode {
	case DeliveryModeArchive:
		h.serveArchive(rw, r, id, logger)
	default:
		h.serveRaw(rw, r, id, logger)
	}
}

// allowRequest checks the caller against the rate limiter and writes the
// error response itself when the request must not proceed.
func (h *DownloadHandler) allowRequest(
	rw http.ResponseWriter, r *http.Request, mode DeliveryMode, logger log.FieldLogger,
) bool {
	key := callerKey(r)
	allow, retryAfter, err := h.limiter.Allow(r.Context(), key)
	if err != nil {
		h.metrics.observeDownload(mode, resultInternal)
		restapi.RespondInternalError(rw, ErrorDomain, logger)
		return false
	}
	if allow {
		return true
	}

	h.metrics.observeDownload(mode, resultRateLimited)
	if logger != nil {
		logger.Warn("download request rate limited", log.String("rate_limit_key", key))
	}
	rw.Header().Set("Retry-After", strconv.FormatInt(retryAfterSeconds(retryAfter), 10))
	apiErr := restapi.NewError(ErrorDomain, ErrCodeTooManyRequests,
		"Too many download requests, retry later.")
	restapi.RespondError(rw, http.StatusTooManyRequests, apiErr, logger)
	return false
}

func (h *DownloadHandler) serveRaw(rw http.ResponseWriter, r *http.Request, id crx.ID, logger log.FieldLogger) {
	fetchStart := time.Now()
	dl, err := h.client.Open(r.Context(), id)
	if err != nil {
		h.respondFetchError(rw, DeliveryModeRaw, err, logger)
		return
	}
	defer func() { _ = dl.Body.Close() }()
	h.metrics.observeFetchDuration(DeliveryModeRaw, time.Since(fetchStart))

	if dl.ContentLength == 0 {
		h.respondFetchError(rw, DeliveryModeRaw, webstore.ErrEmptyBody, logger)
		return
	}

	header := rw.Header()
	header.Set("Content-Type", contentTypeCRX)
	header.Set("Cache-Control", cacheControl)
	header.Set("Content-Disposition", attachmentDisposition(r.URL.Query().Get("name"), id, "crx"))
	if dl.ContentLength >= 0 {
		header.Set("Content-Length", strconv.FormatInt(dl.ContentLength, 10))
	}
	rw.WriteHeader(http.StatusOK)

	if _, err = io.Copy(rw, dl.Body); err != nil {
		// Headers are out, the only honest signal left is dropping the connection.
		h.metrics.observeDownload(DeliveryModeRaw, resultAborted)
		if logger != nil {
			logger.Error("aborting package stream", log.String("extension_id", id.String()), log.Error(err))
		}
		panic(http.ErrAbortHandler)
	}
	h.metrics.observeDownload(DeliveryModeRaw, resultSuccess)
}

func (h *DownloadHandler) serveArchive(rw http.ResponseWriter, r *http.Request, id crx.ID, logger log.FieldLogger) {
	fetchStart := time.Now()
	buf, err := h.client.FetchAll(r.Context(), id)
	if err != nil {
		h.respondFetchError(rw, DeliveryModeArchive, err, logger)
		return
	}
	h.metrics.observeFetchDuration(DeliveryModeArchive, time.Since(fetchStart))

	payload, err := crx.StripHeaderWithOpts(buf, crx.StripOpts{ZipScanWindow: h.zipScanWindow})
	if err != nil {
		h.metrics.observeDownload(DeliveryModeArchive, resultBadPackage)
		if logger != nil {
			logger.Error("cannot extract archive from package",
				log.String("extension_id", id.String()), log.Int("package_size", len(buf)), log.Error(err))
		}
		apiErr := restapi.NewError(ErrorDomain, ErrCodeInvalidContainer,
			"Upstream returned a package that is not a valid extension container.")
		restapi.RespondError(rw, http.StatusBadGateway, apiErr, logger)
		return
	}

	header := rw.Header()
	header.Set("Content-Type", contentTypeZIP)
	header.Set("Cache-Control", cacheControl)
	header.Set("Content-Disposition", attachmentDisposition(r.URL.Query().Get("name"), id, "zip"))
	header.Set("Content-Length", strconv.Itoa(len(payload)))
	rw.WriteHeader(http.StatusOK)
	if _, err = rw.Write(payload); err != nil {
		h.metrics.observeDownload(DeliveryModeArchive, resultAborted)
		if logger != nil {
			logger.Error("aborting archive response", log.String("extension_id", id.String()), log.Error(err))
		}
		panic(http.ErrAbortHandler)
	}
	h.metrics.observeDownload(DeliveryModeArchive, resultSuccess)
}

func (h *DownloadHandler) respondFetchError(
	rw http.ResponseWriter, mode DeliveryMode, err error, logger log.FieldLogger,
) {
	var tooLarge *webstore.TooLargeError
	var statusErr *webstore.UpstreamStatusError

	switch {
	case errors.As(err, &tooLarge):
		h.metrics.observeDownload(mode, resultTooLarge)
		apiErr := restapi.NewError(ErrorDomain, ErrCodePayloadTooLarge, tooLarge.Error())
		restapi.RespondError(rw, http.StatusRequestEntityTooLarge, apiErr, logger)

	case webstore.IsTimeout(err):
		h.metrics.observeDownload(mode, resultTimeout)
		apiErr := restapi.NewError(ErrorDomain, ErrCodeUpstreamTimeout,
			"Upstream did not deliver the package in time.")
		restapi.RespondError(rw, http.StatusGatewayTimeout, apiErr, logger)

	case errors.As(err, &statusErr):
		h.metrics.observeDownload(mode, resultUpstream)
		if logger != nil {
			logger.Error("unexpected upstream status", log.Int("upstream_status_code", statusErr.StatusCode))
		}
		apiErr := restapi.NewError(ErrorDomain, ErrCodeUpstreamError,
			"Upstream could not serve the package.")
		restapi.RespondError(rw, http.StatusBadGateway, apiErr, logger)

	default:
		h.metrics.observeDownload(mode, resultUpstream)
		if logger != nil {
			logger.Error("upstream fetch failed", log.Error(err))
		}
		apiErr := restapi.NewError(ErrorDomain, ErrCodeUpstreamError,
			"Upstream could not serve the package.")
		restapi.RespondError(rw, http.StatusBadGateway, apiErr, logger)
	}
}

// callerKey identifies the caller for rate limiting purposes. Behind a proxy
// the leftmost X-Forwarded-For entry is the original client. Requests without
// the header share one bucket.
func callerKey(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	return "unknown"
}

func retryAfterSeconds(retryAfter time.Duration) int64 {
	secs := int64(math.Ceil(retryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
