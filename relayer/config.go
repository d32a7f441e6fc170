// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Command line option keys
	ConfigFileKey = "config-file"
	VersionKey    = "version"

	// Top-level configuration keys
	LogLevelKey            = "log-level"
	StoreDirKey            = "store-dir"
	APIPortKey             = "api-port"
	MetricsPortKey         = "metrics-port"
	WorkersKey             = "workers"
	RetryTimeoutKey        = "retry-timeout"
	FlushIntervalKey       = "flush-interval"
	CheckpointTTLKey       = "checkpoint-ttl"
	DeliveryHistorySizeKey = "delivery-history-size"
)

const (
	defaultLogLevel            = "info"
	defaultAPIPort             = uint16(8080)
	defaultMetricsPort         = uint16(9090)
	defaultWorkers             = 4
	defaultRetryTimeout        = 30 * time.Second
	defaultFlushInterval       = 2 * time.Second
	defaultCheckpointTTL       = 5 * time.Second
	defaultDeliveryHistorySize = 1024
)

// Config configures the relayer hub and its daemon surfaces
type Config struct {
	LogLevel string `mapstructure:"log-level" json:"log-level"`
	// StoreDir is the base directory for the persistent store; empty keeps
	// everything in memory
	StoreDir    string `mapstructure:"store-dir" json:"store-dir"`
	APIPort     uint16 `mapstructure:"api-port" json:"api-port"`
	MetricsPort uint16 `mapstructure:"metrics-port" json:"metrics-port"`
	// Workers is the number of concurrent delivery workers
	Workers int `mapstructure:"workers" json:"workers"`
	// RetryTimeout bounds the total time spent retrying one delivery
	RetryTimeout time.Duration `mapstructure:"retry-timeout" json:"retry-timeout"`
	// FlushInterval is the checkpoint write cadence
	FlushInterval time.Duration `mapstructure:"flush-interval" json:"flush-interval"`
	// CheckpointTTL bounds staleness of checkpoint reads served from cache
	CheckpointTTL       time.Duration `mapstructure:"checkpoint-ttl" json:"checkpoint-ttl"`
	DeliveryHistorySize int           `mapstructure:"delivery-history-size" json:"delivery-history-size"`
}

// DefaultConfig returns the configuration used when no file is provided
func DefaultConfig() Config {
	return Config{
		LogLevel:            defaultLogLevel,
		APIPort:             defaultAPIPort,
		MetricsPort:         defaultMetricsPort,
		Workers:             defaultWorkers,
		RetryTimeout:        defaultRetryTimeout,
		FlushInterval:       defaultFlushInterval,
		CheckpointTTL:       defaultCheckpointTTL,
		DeliveryHistorySize: defaultDeliveryHistorySize,
	}
}

// Validate checks the configuration for usable values
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.RetryTimeout <= 0 {
		return fmt.Errorf("retry-timeout must be positive, got %s", c.RetryTimeout)
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush-interval must be positive, got %s", c.FlushInterval)
	}
	if c.DeliveryHistorySize <= 0 {
		return fmt.Errorf("delivery-history-size must be positive, got %d", c.DeliveryHistorySize)
	}
	return nil
}

// BuildViper builds the viper instance backing the configuration. All keys
// may be provided via flags, config file, or environment variables; flags
// take precedence over the file.
func BuildViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.AutomaticEnv()
	// Flags are capitalized, and hyphens are replaced with underscores, to
	// map onto environment variable names
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	if v.IsSet(ConfigFileKey) {
		filename := v.GetString(ConfigFileKey)
		v.SetConfigFile(filename)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func setDefaultConfigValues(v *viper.Viper) {
	v.SetDefault(LogLevelKey, defaultLogLevel)
	v.SetDefault(APIPortKey, defaultAPIPort)
	v.SetDefault(MetricsPortKey, defaultMetricsPort)
	v.SetDefault(WorkersKey, defaultWorkers)
	v.SetDefault(RetryTimeoutKey, defaultRetryTimeout)
	v.SetDefault(FlushIntervalKey, defaultFlushInterval)
	v.SetDefault(CheckpointTTLKey, defaultCheckpointTTL)
	v.SetDefault(DeliveryHistorySizeKey, defaultDeliveryHistorySize)
}

// NewConfig constructs and validates a Config from the viper instance
func NewConfig(v *viper.Viper) (Config, error) {
	setDefaultConfigValues(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal viper config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("failed to validate configuration: %w", err)
	}
	return cfg, nil
}
