/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package apiclient

import (
	"errors"
	"time"

	"github.com/acronis/go-appkit/config"
	"github.com/acronis/go-appkit/retry"
	"github.com/cenkalti/backoff/v4"

	"github.com/acronis/go-ratequeue/ratequeue"
)

const (
	// RetryPolicyExponential is a policy for exponential retries.
	RetryPolicyExponential = "exponential"

	// RetryPolicyConstant is a policy for constant retries.
	RetryPolicyConstant = "constant"

	// configuration properties
	cfgKeyBaseURL                                 = "baseURL"
	cfgKeyUserAgent                               = "userAgent"
	cfgKeyRetriesEnabled                          = "retries.enabled"
	cfgKeyRetriesMax                              = "retries.maxAttempts"
	cfgKeyRetriesPolicyStrategy                   = "retries.policy.strategy"
	cfgKeyRetriesPolicyExponentialInitialInterval = "retries.policy.exponentialBackoffInitialInterval"
	cfgKeyRetriesPolicyExponentialMultiplier      = "retries.policy.exponentialBackoffMultiplier"
	cfgKeyRetriesPolicyConstantInterval           = "retries.policy.constantBackoffInterval"
	cfgKeyQueue                                   = "queue"
)

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// PolicyConfig represents configuration options for the retry policy.
type PolicyConfig struct {
	// Strategy is a strategy for retry policy.
	Strategy string `mapstructure:"strategy"`

	// ExponentialBackoffInitialInterval is the initial interval for exponential backoff.
	ExponentialBackoffInitialInterval time.Duration `mapstructure:"exponentialBackoffInitialInterval"`

	// ExponentialBackoffMultiplier is the multiplier for exponential backoff.
	ExponentialBackoffMultiplier float64 `mapstructure:"exponentialBackoffMultiplier"`

	// ConstantBackoffInterval is the interval for constant backoff.
	ConstantBackoffInterval time.Duration `mapstructure:"constantBackoffInterval"`
}

// Set is part of config interface implementation.
func (c *PolicyConfig) Set(dp config.DataProvider) error {
	strategy, err := dp.GetString(cfgKeyRetriesPolicyStrategy)
	if err != nil {
		return err
	}
	if strategy != "" && strategy != RetryPolicyExponential && strategy != RetryPolicyConstant {
		return errors.New("client retry policy must be one of: [exponential, constant]")
	}
	c.Strategy = strategy

	switch c.Strategy {
	case RetryPolicyExponential:
		var interval time.Duration
		if interval, err = dp.GetDuration(cfgKeyRetriesPolicyExponentialInitialInterval); err != nil {
			return err
		}
		if interval < 0 {
			return errors.New("client exponential backoff initial interval must be positive")
		}
		c.ExponentialBackoffInitialInterval = interval

		var multiplier float64
		if multiplier, err = dp.GetFloat64(cfgKeyRetriesPolicyExponentialMultiplier); err != nil {
			return err
		}
		if multiplier <= 1 {
			return errors.New("client exponential backoff multiplier must be greater than 1")
		}
		c.ExponentialBackoffMultiplier = multiplier

	case RetryPolicyConstant:
		var interval time.Duration
		if interval, err = dp.GetDuration(cfgKeyRetriesPolicyConstantInterval); err != nil {
			return err
		}
		if interval < 0 {
			return errors.New("client constant backoff interval must be positive")
		}
		c.ConstantBackoffInterval = interval
	}

	return nil
}

// SetProviderDefaults is part of config interface implementation.
func (c *PolicyConfig) SetProviderDefaults(_ config.DataProvider) {}

// RetriesConfig represents configuration options for transport-level retries.
type RetriesConfig struct {
	// Enabled is a flag that enables retries.
	Enabled bool `mapstructure:"enabled"`

	// MaxAttempts is the maximum number of attempts to retry the request.
	MaxAttempts int `mapstructure:"maxAttempts"`

	// Policy of a retry: [exponential, constant]. default is exponential.
	Policy PolicyConfig `mapstructure:"policy"`
}

// GetPolicy returns a retry policy based on strategy or nil if none is provided.
func (c *RetriesConfig) GetPolicy() retry.Policy {
	switch c.Policy.Strategy {
	case RetryPolicyExponential:
		return retry.PolicyFunc(func() backoff.BackOff {
			bf := backoff.NewExponentialBackOff()
			bf.InitialInterval = c.Policy.ExponentialBackoffInitialInterval
			bf.Multiplier = c.Policy.ExponentialBackoffMultiplier
			bf.Reset()
			return bf
		})
	case RetryPolicyConstant:
		return retry.PolicyFunc(func() backoff.BackOff {
			bf := backoff.NewConstantBackOff(c.Policy.ConstantBackoffInterval)
			bf.Reset()
			return bf
		})
	}
	return nil
}

// Set is part of config interface implementation.
func (c *RetriesConfig) Set(dp config.DataProvider) error {
	enabled, err := dp.GetBool(cfgKeyRetriesEnabled)
	if err != nil {
		return err
	}
	c.Enabled = enabled

	if !c.Enabled {
		return nil
	}

	maxAttempts, err := dp.GetInt(cfgKeyRetriesMax)
	if err != nil {
		return err
	}
	if maxAttempts < 0 {
		return errors.New("client max retry attempts must be positive")
	}
	c.MaxAttempts = maxAttempts

	return c.Policy.Set(dp)
}

// SetProviderDefaults is part of config interface implementation.
func (c *RetriesConfig) SetProviderDefaults(_ config.DataProvider) {}

// Config represents options for the API client configuration.
type Config struct {
	// BaseURL is the URL against which relative endpoints are resolved.
	BaseURL string `mapstructure:"baseURL"`

	// UserAgent is a user agent string for outgoing requests.
	UserAgent string `mapstructure:"userAgent"`

	// Retries is a configuration for transport-level retries.
	Retries RetriesConfig `mapstructure:"retries"`

	// Queue is a configuration for the dispatch queue.
	Queue ratequeue.Config `mapstructure:"queue"`

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
	baseURL, err := dp.GetString(cfgKeyBaseURL)
	if err != nil {
		return err
	}
	c.BaseURL = baseURL

	userAgent, err := dp.GetString(cfgKeyUserAgent)
	if err != nil {
		return err
	}
	c.UserAgent = userAgent

	if err = c.Retries.Set(dp); err != nil {
		return err
	}

	return c.Queue.Set(config.NewKeyPrefixedDataProvider(dp, cfgKeyQueue))
}

// SetProviderDefaults is part of config interface implementation.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	c.Queue.SetProviderDefaults(config.NewKeyPrefixedDataProvider(dp, cfgKeyQueue))
}
