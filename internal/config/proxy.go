/*
Copyright © 2025 CRX Grabber Authors.

Released under MIT license.
*/

package config

import (
	"fmt"
	"net/url"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"github.com/acronis/go-appkit/config"

	"github.com/jaipandya/crx-grabber/internal/crx"
	"github.com/jaipandya/crx-grabber/internal/ratelimit"
	"github.com/jaipandya/crx-grabber/internal/webstore"
)

const cfgDefaultProxyKeyPrefix = "proxy"

const (
	cfgKeyProxyUpstreamURL           = "upstream.url"
	cfgKeyProxyUpstreamClientVersion = "upstream.clientVersion"
	cfgKeyProxyUpstreamTimeout       = "upstream.timeout"
	cfgKeyProxyUpstreamRateLimit     = "upstream.rateLimit"
	cfgKeyProxySizeLimit             = "sizeLimit"
	cfgKeyProxyZipScanWindow         = "zipScanWindow"
	cfgKeyProxyRateLimitAlg          = "rateLimit.alg"
	cfgKeyProxyRateLimitCount        = "rateLimit.count"
	cfgKeyProxyRateLimitWindow       = "rateLimit.window"
	cfgKeyProxyRateLimitMaxKeys      = "rateLimit.maxKeys"
	cfgKeyProxyRateLimitMaxBurst     = "rateLimit.maxBurst"
)

const (
	defaultProxyRateLimitCount   = 5
	defaultProxyRateLimitWindow  = time.Minute
	defaultProxyRateLimitMaxKeys = 10000
)

var availableRateLimitAlgs = []string{
	ratelimit.AlgFixedWindow,
	ratelimit.AlgLeakyBucket,
	ratelimit.AlgSlidingWindow,
}

// ProxyConfig represents a set of configuration parameters for the download proxy itself:
// the upstream endpoint, package size limits and per-caller rate limiting.
type ProxyConfig struct {
	Upstream UpstreamConfig `mapstructure:"upstream" yaml:"upstream" json:"upstream"`

	// SizeLimit is the maximum package size accepted from upstream.
	SizeLimit config.ByteSize `mapstructure:"sizeLimit" yaml:"sizeLimit" json:"sizeLimit"`

	// ZipScanWindow bounds the search for a bare ZIP signature in packages
	// that carry no CRX container.
	ZipScanWindow int `mapstructure:"zipScanWindow" yaml:"zipScanWindow" json:"zipScanWindow"`

	RateLimit RateLimitConfig `mapstructure:"rateLimit" yaml:"rateLimit" json:"rateLimit"`

	keyPrefix string
}

var _ config.Config = (*ProxyConfig)(nil)
var _ config.KeyPrefixProvider = (*ProxyConfig)(nil)

// UpstreamConfig represents configuration of the Chrome Web Store endpoint.
type UpstreamConfig struct {
	URL           string              `mapstructure:"url" yaml:"url" json:"url"`
	ClientVersion string              `mapstructure:"clientVersion" yaml:"clientVersion" json:"clientVersion"`
	Timeout       config.TimeDuration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`

	// RateLimit limits outgoing requests per second. Unlimited if zero.
	RateLimit int `mapstructure:"rateLimit" yaml:"rateLimit" json:"rateLimit"`
}

// RateLimitConfig represents configuration of per-caller rate limiting.
type RateLimitConfig struct {
	Alg      string              `mapstructure:"alg" yaml:"alg" json:"alg"`
	Count    int                 `mapstructure:"count" yaml:"count" json:"count"`
	Window   config.TimeDuration `mapstructure:"window" yaml:"window" json:"window"`
	MaxKeys  int                 `mapstructure:"maxKeys" yaml:"maxKeys" json:"maxKeys"`
	MaxBurst int                 `mapstructure:"maxBurst" yaml:"maxBurst" json:"maxBurst"`
}

// NewProxyConfig creates a new ProxyConfig.
func NewProxyConfig() *ProxyConfig {
	return &ProxyConfig{keyPrefix: cfgDefaultProxyKeyPrefix}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *ProxyConfig) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultProxyKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *ProxyConfig) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyProxyUpstreamURL, webstore.DefaultUpdateURL)
	dp.SetDefault(cfgKeyProxyUpstreamClientVersion, webstore.DefaultClientVersion)
	dp.SetDefault(cfgKeyProxyUpstreamTimeout, webstore.DefaultFetchTimeout)
	dp.SetDefault(cfgKeyProxySizeLimit, bytefmt.ByteSize(webstore.DefaultSizeLimit))
	dp.SetDefault(cfgKeyProxyZipScanWindow, crx.DefaultZipScanWindow)
	dp.SetDefault(cfgKeyProxyRateLimitAlg, ratelimit.AlgFixedWindow)
	dp.SetDefault(cfgKeyProxyRateLimitCount, defaultProxyRateLimitCount)
	dp.SetDefault(cfgKeyProxyRateLimitWindow, defaultProxyRateLimitWindow)
	dp.SetDefault(cfgKeyProxyRateLimitMaxKeys, defaultProxyRateLimitMaxKeys)
}

// Set sets proxy configuration values from config.DataProvider.
func (c *ProxyConfig) Set(dp config.DataProvider) error {
	var err error

	if c.Upstream.URL, err = dp.GetString(cfgKeyProxyUpstreamURL); err != nil {
		return err
	}
	if _, err = url.ParseRequestURI(c.Upstream.URL); err != nil {
		return dp.WrapKeyErr(cfgKeyProxyUpstreamURL, err)
	}

	if c.Upstream.ClientVersion, err = dp.GetString(cfgKeyProxyUpstreamClientVersion); err != nil {
		return err
	}

	var dur time.Duration
	if dur, err = dp.GetDuration(cfgKeyProxyUpstreamTimeout); err != nil {
		return err
	}
	if dur <= 0 {
		return dp.WrapKeyErr(cfgKeyProxyUpstreamTimeout, fmt.Errorf("must be positive"))
	}
	c.Upstream.Timeout = config.TimeDuration(dur)

	if c.Upstream.RateLimit, err = dp.GetInt(cfgKeyProxyUpstreamRateLimit); err != nil {
		return err
	}
	if c.Upstream.RateLimit < 0 {
		return dp.WrapKeyErr(cfgKeyProxyUpstreamRateLimit, fmt.Errorf("must not be negative"))
	}

	var sizeLimit config.ByteSize
	if sizeLimit, err = dp.GetSizeInBytes(cfgKeyProxySizeLimit); err != nil {
		return err
	}
	if sizeLimit == 0 {
		return dp.WrapKeyErr(cfgKeyProxySizeLimit, fmt.Errorf("must be positive"))
	}
	c.SizeLimit = config.ByteSize(sizeLimit)

	if c.ZipScanWindow, err = dp.GetInt(cfgKeyProxyZipScanWindow); err != nil {
		return err
	}
	if c.ZipScanWindow <= 0 {
		return dp.WrapKeyErr(cfgKeyProxyZipScanWindow, fmt.Errorf("must be positive"))
	}

	return c.setRateLimit(dp)
}

func (c *ProxyConfig) setRateLimit(dp config.DataProvider) error {
	var err error

	if c.RateLimit.Alg, err = dp.GetStringFromSet(cfgKeyProxyRateLimitAlg, availableRateLimitAlgs, true); err != nil {
		return err
	}

	if c.RateLimit.Count, err = dp.GetInt(cfgKeyProxyRateLimitCount); err != nil {
		return err
	}
	if c.RateLimit.Count <= 0 {
		return dp.WrapKeyErr(cfgKeyProxyRateLimitCount, fmt.Errorf("must be positive"))
	}

	var dur time.Duration
	if dur, err = dp.GetDuration(cfgKeyProxyRateLimitWindow); err != nil {
		return err
	}
	if dur <= 0 {
		return dp.WrapKeyErr(cfgKeyProxyRateLimitWindow, fmt.Errorf("must be positive"))
	}
	c.RateLimit.Window = config.TimeDuration(dur)

	if c.RateLimit.MaxKeys, err = dp.GetInt(cfgKeyProxyRateLimitMaxKeys); err != nil {
		return err
	}
	if c.RateLimit.MaxKeys < 0 {
		return dp.WrapKeyErr(cfgKeyProxyRateLimitMaxKeys, fmt.Errorf("must not be negative"))
	}

	if c.RateLimit.MaxBurst, err = dp.GetInt(cfgKeyProxyRateLimitMaxBurst); err != nil {
		return err
	}
	if c.RateLimit.MaxBurst < 0 {
		return dp.WrapKeyErr(cfgKeyProxyRateLimitMaxBurst, fmt.Errorf("must not be negative"))
	}

	return nil
}
