/*
Copyright © 2025 CRX Grabber Authors.

Released under MIT license.
*/

// Package config aggregates configuration of all service components.
package config

import (
	"github.com/acronis/go-appkit/config"
	"github.com/acronis/go-appkit/httpserver"
	"github.com/acronis/go-appkit/log"
	"github.com/acronis/go-appkit/profserver"
)

// AppConfig is a top-level config of the service.
// Configuration can be loaded in YAML or JSON format using config.Loader,
// environment variables can override any value.
type AppConfig struct {
	Server     *httpserver.Config `mapstructure:"server" yaml:"server" json:"server"`
	Log        *log.Config        `mapstructure:"log" yaml:"log" json:"log"`
	ProfServer *profserver.Config `mapstructure:"profServer" yaml:"profServer" json:"profServer"`
	Proxy      *ProxyConfig       `mapstructure:"proxy" yaml:"proxy" json:"proxy"`
}

var _ config.Config = (*AppConfig)(nil)

// NewAppConfig creates a new AppConfig with initialized sections.
func NewAppConfig() *AppConfig {
	return &AppConfig{
		Server:     httpserver.NewConfig(),
		Log:        log.NewConfig(),
		ProfServer: profserver.NewConfig(),
		Proxy:      NewProxyConfig(),
	}
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *AppConfig) SetProviderDefaults(dp config.DataProvider) {
	config.CallSetProviderDefaultsForFields(c, dp)
}

// Set sets configuration values from config.DataProvider.
func (c *AppConfig) Set(dp config.DataProvider) error {
	return config.CallSetForFields(c, dp)
}
