/*
Copyright © 2025 CRX Grabber Authors.

Released under MIT license.
*/

package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/acronis/go-appkit/httpserver"
	"github.com/acronis/go-appkit/httpserver/middleware"
	"github.com/acronis/go-appkit/log"
	"github.com/acronis/go-appkit/restapi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ErrorDomain is used in all error responses of the service.
const ErrorDomain = "CrxGrabber"

// systemEndpoints is a list of endpoints which are not involved in metrics collecting,
// and in-flight requests limiting.
var systemEndpoints = []string{"/metrics", "/healthz"}

// New creates a ready to start HTTP server with logging, metrics collecting,
// recovering after panics and health-checking functionality, serving the
// download API on top of the given handler.
func New(
	cfg *httpserver.Config,
	logger log.FieldLogger,
	handler *DownloadHandler,
	promMetrics *middleware.HTTPRequestPrometheusMetrics,
) (*httpserver.HTTPServer, error) {
	router := chi.NewRouter()
	if err := applyDefaultMiddlewares(router, cfg, logger, promMetrics); err != nil {
		return nil, err
	}

	router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	router.Method(http.MethodGet, "/healthz", httpserver.NewHealthCheckHandler(healthCheck))

	router.Get("/api/raw/{id}", handler.ServeRaw)
	router.Get("/api/archive/{id}", handler.ServeArchive)

	router.NotFound(func(rw http.ResponseWriter, r *http.Request) {
		apiErr := restapi.NewError(ErrorDomain, restapi.ErrCodeNotFound, restapi.ErrMessageNotFound)
		restapi.RespondError(rw, http.StatusNotFound, apiErr, logger)
	})
	router.MethodNotAllowed(func(rw http.ResponseWriter, r *http.Request) {
		apiErr := restapi.NewError(ErrorDomain, restapi.ErrCodeMethodNotAllowed, restapi.ErrMessageMethodNotAllowed)
		restapi.RespondError(rw, http.StatusMethodNotAllowed, apiErr, logger)
	})

	return httpserver.New(cfg, logger, httpserver.Opts{Handler: router, ErrorDomain: ErrorDomain})
}

func healthCheck() (httpserver.HealthCheckResult, error) {
	return httpserver.HealthCheckResult{}, nil
}

func applyDefaultMiddlewares(
	router chi.Router, cfg *httpserver.Config, logger log.FieldLogger,
	promMetrics *middleware.HTTPRequestPrometheusMetrics,
) error {
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(rw, r.WithContext(middleware.NewContextWithRequestStartTime(r.Context(), time.Now())))
		})
	})

	router.Use(middleware.RequestID())

	loggingOpts := middleware.LoggingOpts{
		RequestStart:           cfg.Log.RequestStart,
		RequestHeaders:         make(map[string]string, len(cfg.Log.RequestHeaders)),
		ExcludedEndpoints:      cfg.Log.ExcludedEndpoints,
		SecretQueryParams:      cfg.Log.SecretQueryParams,
		AddRequestInfoToLogger: cfg.Log.AddRequestInfoToLogger,
		SlowRequestThreshold:   time.Duration(cfg.Log.SlowRequestThreshold),
	}
	for _, headerName := range cfg.Log.RequestHeaders {
		logFieldKey := "req_header_" + strings.ToLower(strings.ReplaceAll(headerName, "-", "_"))
		loggingOpts.RequestHeaders[headerName] = logFieldKey
	}
	router.Use(middleware.LoggingWithOpts(logger, loggingOpts))

	router.Use(middleware.Recovery(ErrorDomain))

	router.Use(middleware.HTTPRequestMetricsWithOpts(promMetrics, httpserver.GetChiRoutePattern,
		middleware.HTTPRequestMetricsOpts{
			ExcludedEndpoints: systemEndpoints,
		}))

	if cfg.Limits.MaxRequests != 0 {
		inFlightLimitMw, err := middleware.InFlightLimit(cfg.Limits.MaxRequests, ErrorDomain)
		if err != nil {
			return fmt.Errorf("create in-flight limit middleware: %w", err)
		}
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
				for i := 0; i < len(systemEndpoints); i++ {
					if r.URL.Path == systemEndpoints[i] {
						next.ServeHTTP(rw, r)
						return
					}
				}
				inFlightLimitMw(next).ServeHTTP(rw, r)
			})
		})
	}

	if cfg.Limits.MaxBodySizeBytes > 0 {
		router.Use(middleware.RequestBodyLimit(uint64(cfg.Limits.MaxBodySizeBytes), ErrorDomain))
	}

	return nil
}
