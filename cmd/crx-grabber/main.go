/*
Copyright © 2025 CRX Grabber Authors.

Released under MIT license.
*/

// crx-grabber is an HTTP proxy that downloads Chrome extension packages
// from the Chrome Web Store and serves them raw or as plain ZIP archives.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"time"

	appkitconfig "github.com/acronis/go-appkit/config"
	"github.com/acronis/go-appkit/httpserver/middleware"
	"github.com/acronis/go-appkit/log"
	"github.com/acronis/go-appkit/profserver"
	"github.com/acronis/go-appkit/service"

	"github.com/jaipandya/crx-grabber/internal/config"
	"github.com/jaipandya/crx-grabber/internal/ratelimit"
	"github.com/jaipandya/crx-grabber/internal/server"
	"github.com/jaipandya/crx-grabber/internal/webstore"
)

const version = "1.0.0"

const envVarsPrefix = "crx_grabber"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to the configuration file in YAML format")
	flag.Parse()

	cfg, err := loadAppConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, closeLogger := log.NewLogger(cfg.Log)
	defer closeLogger()

	logger.Info("starting crx-grabber", log.String("version", version))

	limiter, err := makeRateLimiter(cfg.Proxy)
	if err != nil {
		return fmt.Errorf("create rate limiter: %w", err)
	}

	client, err := webstore.NewClient(webstore.Opts{
		UpdateURL:         cfg.Proxy.Upstream.URL,
		ClientVersion:     cfg.Proxy.Upstream.ClientVersion,
		Timeout:           time.Duration(cfg.Proxy.Upstream.Timeout),
		SizeLimit:         int64(cfg.Proxy.SizeLimit),
		OutboundRateLimit: cfg.Proxy.Upstream.RateLimit,
		UserAgent:         "crx-grabber/" + version,
	})
	if err != nil {
		return fmt.Errorf("create webstore client: %w", err)
	}

	promMetrics := middleware.NewHTTPRequestPrometheusMetrics()
	promMetrics.MustRegister()
	defer promMetrics.Unregister()

	appMetrics := server.NewMetricsCollector()
	appMetrics.MustRegister()
	defer appMetrics.Unregister()

	handler := server.NewDownloadHandler(client, limiter, appMetrics,
		server.DownloadHandlerOpts{ZipScanWindow: cfg.Proxy.ZipScanWindow})

	httpServer, err := server.New(cfg.Server, logger, handler, promMetrics)
	if err != nil {
		return fmt.Errorf("create HTTP server: %w", err)
	}

	units := []service.Unit{httpServer}
	if fw, ok := limiter.(*ratelimit.FixedWindowLimiter); ok {
		units = append(units, service.NewWorkerUnit(ratelimit.NewSweepWorker(fw, logger)))
	}
	if cfg.ProfServer.Enabled {
		units = append(units, profserver.New(cfg.ProfServer, logger))
	}

	return service.New(logger, service.NewCompositeUnit(units...)).Start()
}

func loadAppConfig(configPath string) (*config.AppConfig, error) {
	cfg := config.NewAppConfig()
	loader := appkitconfig.NewDefaultLoader(envVarsPrefix)
	if configPath == "" {
		// No file given, defaults and environment variables only.
		err := loader.LoadFromReader(bytes.NewReader(nil), appkitconfig.DataTypeYAML, cfg)
		return cfg, err
	}
	if err := loader.LoadFromFile(configPath, appkitconfig.DataTypeYAML, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func makeRateLimiter(cfg *config.ProxyConfig) (ratelimit.Limiter, error) {
	rate := ratelimit.Rate{Count: cfg.RateLimit.Count, Duration: time.Duration(cfg.RateLimit.Window)}
	switch cfg.RateLimit.Alg {
	case ratelimit.AlgLeakyBucket:
		return ratelimit.NewLeakyBucketLimiter(rate, cfg.RateLimit.MaxBurst, cfg.RateLimit.MaxKeys)
	case ratelimit.AlgSlidingWindow:
		return ratelimit.NewSlidingWindowLimiter(rate, cfg.RateLimit.MaxKeys)
	default:
		return ratelimit.NewFixedWindowLimiter(rate)
	}
}
