/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package ratequeue

import (
	"errors"
	"time"

	"github.com/acronis/go-appkit/config"
)

// Configuration properties.
const (
	cfgKeyTickInterval     = "tickInterval"
	cfgKeyThrottleCooldown = "throttleCooldown"
	cfgKeyRemainingHeader  = "remainingHeader"
	cfgKeyResetHeader      = "resetHeader"
)

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// Config represents options for the dispatch queue configuration.
type Config struct {
	// TickInterval is the period of the scheduler loop.
	TickInterval time.Duration `mapstructure:"tickInterval"`

	// ThrottleCooldown is the dispatching pause after a rate limit violation
	// without a server-provided reset hint.
	ThrottleCooldown time.Duration `mapstructure:"throttleCooldown"`

	// RemainingHeader is the name of the response header with the remaining request budget.
	RemainingHeader string `mapstructure:"remainingHeader"`

	// ResetHeader is the name of the response header with the budget reset time (Unix seconds).
	ResetHeader string `mapstructure:"resetHeader"`

	// keyPrefix is a prefix for configuration parameters.
	keyPrefix string
}

// NewConfig creates a new instance of the Config.
func NewConfig() *Config {
	return NewConfigWithKeyPrefix("")
}

// NewConfigWithKeyPrefix creates a new instance of the Config.
// Allows specifying key prefix which will be used for parsing configuration parameters.
func NewConfigWithKeyPrefix(keyPrefix string) *Config {
	return &Config{keyPrefix: keyPrefix}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// Set is part of config interface implementation.
func (c *Config) Set(dp config.DataProvider) error {
	tickInterval, err := dp.GetDuration(cfgKeyTickInterval)
	if err != nil {
		return err
	}
	if tickInterval < 0 {
		return errors.New("queue tick interval must be positive")
	}
	c.TickInterval = tickInterval

	throttleCooldown, err := dp.GetDuration(cfgKeyThrottleCooldown)
	if err != nil {
		return err
	}
	if throttleCooldown < 0 {
		return errors.New("queue throttle cooldown must be positive")
	}
	c.ThrottleCooldown = throttleCooldown

	remainingHeader, err := dp.GetString(cfgKeyRemainingHeader)
	if err != nil {
		return err
	}
	c.RemainingHeader = remainingHeader

	resetHeader, err := dp.GetString(cfgKeyResetHeader)
	if err != nil {
		return err
	}
	c.ResetHeader = resetHeader

	return nil
}

// SetProviderDefaults is part of config interface implementation.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyTickInterval, DefaultTickInterval)
	dp.SetDefault(cfgKeyThrottleCooldown, DefaultThrottleCooldown)
	dp.SetDefault(cfgKeyRemainingHeader, DefaultRemainingHeader)
	dp.SetDefault(cfgKeyResetHeader, DefaultResetHeader)
}

// QueueOpts returns queue options based on the configuration.
func (c *Config) QueueOpts() Opts {
	return Opts{
		TickInterval:     c.TickInterval,
		ThrottleCooldown: c.ThrottleCooldown,
		RemainingHeader:  c.RemainingHeader,
		ResetHeader:      c.ResetHeader,
	}
}
