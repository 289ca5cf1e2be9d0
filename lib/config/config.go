// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/telespool/lib/transmission"
	"github.com/bureau-foundation/telespool/lib/workers"
)

// EnvironmentVariable names the variable [Load] reads.
const EnvironmentVariable = "TELESPOOL_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the complete telespool configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	Spool      SpoolConfig      `yaml:"spool"`
	Network    NetworkConfig    `yaml:"network"`
	Loader     LoaderConfig     `yaml:"loader"`
	Resend     ResendConfig     `yaml:"resend"`
	Serializer SerializerConfig `yaml:"serializer"`
	Relay      RelayConfig      `yaml:"relay"`

	// Per-environment overrides, applied after the base config is
	// loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains the sections that can be overridden per
// environment. Zero-valued fields leave the base value alone.
type ConfigOverrides struct {
	Spool      *SpoolConfig      `yaml:"spool,omitempty"`
	Network    *NetworkConfig    `yaml:"network,omitempty"`
	Loader     *LoaderConfig     `yaml:"loader,omitempty"`
	Resend     *ResendConfig     `yaml:"resend,omitempty"`
	Serializer *SerializerConfig `yaml:"serializer,omitempty"`
	Relay      *RelayConfig      `yaml:"relay,omitempty"`
}

// SpoolConfig configures the on-disk spool.
type SpoolConfig struct {
	// Dir is the spool directory. Default: ${HOME}/.cache/telespool/spool
	Dir string `yaml:"dir"`

	// MaxBytes bounds the bytes held by permanent spool records.
	// Default: 50 MiB
	MaxBytes int64 `yaml:"max_bytes"`

	// ClaimGrace is how long a claimed record may sit before a startup
	// scan restores it. Default: 5m
	ClaimGrace string `yaml:"claim_grace"`
}

// NetworkConfig configures delivery to the ingestion endpoint.
type NetworkConfig struct {
	// Endpoint is the http(s) URL receiving POSTs. Required by the
	// relay; tools that only read the spool ignore it.
	Endpoint string `yaml:"endpoint"`

	// Concurrency is the number of simultaneous posts, between 1 and
	// workers.MaxWorkers. Default: 4
	Concurrency int `yaml:"concurrency"`

	// Admission is "reject" (decline instantly when saturated, so the
	// transmission is spooled) or "block" (wait for a slot).
	// Default: reject
	Admission string `yaml:"admission"`

	// Timeout bounds one POST. Default: 30s
	Timeout string `yaml:"timeout"`

	// Headers are added to every POST.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// LoaderConfig configures the startup drain of the spool.
type LoaderConfig struct {
	// Workers is the number of records dispatched concurrently at
	// startup. Default: 2
	Workers int `yaml:"workers"`
}

// ResendConfig configures the periodic retry of spooled records.
type ResendConfig struct {
	// Interval is the fixed delay between retries. Default: 30s
	Interval string `yaml:"interval"`
}

// SerializerConfig configures batch encoding.
type SerializerConfig struct {
	// Encoding is gzip, zstd, or lz4. Default: gzip
	Encoding string `yaml:"encoding"`
}

// RelayConfig configures the telespool-relay daemon.
type RelayConfig struct {
	// SocketPath is the Unix socket accepting JSONL records.
	// Default: /run/telespool/relay.sock
	SocketPath string `yaml:"socket_path"`

	// FlushThreshold is the number of buffered records that triggers
	// a batch. Default: 512
	FlushThreshold int `yaml:"flush_threshold"`

	// FlushInterval bounds how long a record waits in the buffer.
	// Default: 5s
	FlushInterval string `yaml:"flush_interval"`

	// StopTimeout bounds shutdown draining. Default: 10s
	StopTimeout string `yaml:"stop_timeout"`
}

// Default returns the default configuration, used as the base before
// the config file is applied.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Environment: Development,
		Spool: SpoolConfig{
			Dir:        filepath.Join(homeDir, ".cache", "telespool", "spool"),
			MaxBytes:   50 << 20,
			ClaimGrace: "5m",
		},
		Network: NetworkConfig{
			Concurrency: 4,
			Admission:   workers.AdmissionReject.String(),
			Timeout:     "30s",
		},
		Loader: LoaderConfig{
			Workers: 2,
		},
		Resend: ResendConfig{
			Interval: "30s",
		},
		Serializer: SerializerConfig{
			Encoding: transmission.EncodingGzip,
		},
		Relay: RelayConfig{
			SocketPath:     "/run/telespool/relay.sock",
			FlushThreshold: 512,
			FlushInterval:  "5s",
			StopTimeout:    "10s",
		},
	}
}

// Load loads configuration from the file named by TELESPOOL_CONFIG.
// There is no fallback when the variable is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your telespool.yaml config file, or use --config flag", EnvironmentVariable)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, applies the
// matching environment section, and expands path variables. It does
// not validate; call [Config.Validate].
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// loadFile merges a single configuration file into c.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// Stripped JSON is valid YAML, so one set of struct tags
		// serves both formats.
		data = jsonc.ToJSON(data)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the section matching
// c.Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.Spool != nil {
		if overrides.Spool.Dir != "" {
			c.Spool.Dir = overrides.Spool.Dir
		}
		if overrides.Spool.MaxBytes != 0 {
			c.Spool.MaxBytes = overrides.Spool.MaxBytes
		}
		if overrides.Spool.ClaimGrace != "" {
			c.Spool.ClaimGrace = overrides.Spool.ClaimGrace
		}
	}

	if overrides.Network != nil {
		if overrides.Network.Endpoint != "" {
			c.Network.Endpoint = overrides.Network.Endpoint
		}
		if overrides.Network.Concurrency != 0 {
			c.Network.Concurrency = overrides.Network.Concurrency
		}
		if overrides.Network.Admission != "" {
			c.Network.Admission = overrides.Network.Admission
		}
		if overrides.Network.Timeout != "" {
			c.Network.Timeout = overrides.Network.Timeout
		}
		// Header maps merge; an override can add or replace headers
		// but not remove them.
		for name, value := range overrides.Network.Headers {
			if c.Network.Headers == nil {
				c.Network.Headers = make(map[string]string)
			}
			c.Network.Headers[name] = value
		}
	}

	if overrides.Loader != nil && overrides.Loader.Workers != 0 {
		c.Loader.Workers = overrides.Loader.Workers
	}

	if overrides.Resend != nil && overrides.Resend.Interval != "" {
		c.Resend.Interval = overrides.Resend.Interval
	}

	if overrides.Serializer != nil && overrides.Serializer.Encoding != "" {
		c.Serializer.Encoding = overrides.Serializer.Encoding
	}

	if overrides.Relay != nil {
		if overrides.Relay.SocketPath != "" {
			c.Relay.SocketPath = overrides.Relay.SocketPath
		}
		if overrides.Relay.FlushThreshold != 0 {
			c.Relay.FlushThreshold = overrides.Relay.FlushThreshold
		}
		if overrides.Relay.FlushInterval != "" {
			c.Relay.FlushInterval = overrides.Relay.FlushInterval
		}
		if overrides.Relay.StopTimeout != "" {
			c.Relay.StopTimeout = overrides.Relay.StopTimeout
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Spool.Dir = expandVars(c.Spool.Dir, vars)
	c.Relay.SocketPath = expandVars(c.Relay.SocketPath, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration and reports every problem at
// once.
func (c *Config) Validate() error {
	errs := c.deliveryErrors()

	if c.Relay.SocketPath == "" {
		errs = append(errs, fmt.Errorf("relay.socket_path is required"))
	}
	if c.Relay.FlushThreshold < 1 {
		errs = append(errs, fmt.Errorf("relay.flush_threshold must be positive (got %d)", c.Relay.FlushThreshold))
	}
	errs = appendDurationError(errs, "relay.flush_interval", c.Relay.FlushInterval)
	errs = appendDurationError(errs, "relay.stop_timeout", c.Relay.StopTimeout)

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ValidateDelivery checks only the sections the delivery pipeline
// reads: environment, spool, network, loader, resend, and serializer.
// The relay section is ignored.
func (c *Config) ValidateDelivery() error {
	if errs := c.deliveryErrors(); len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (c *Config) deliveryErrors() []error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Spool.Dir == "" {
		errs = append(errs, fmt.Errorf("spool.dir is required"))
	}
	if c.Spool.MaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("spool.max_bytes must be positive (got %d)", c.Spool.MaxBytes))
	}
	errs = appendDurationError(errs, "spool.claim_grace", c.Spool.ClaimGrace)

	if c.Network.Endpoint != "" {
		if parsed, err := url.Parse(c.Network.Endpoint); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			errs = append(errs, fmt.Errorf("network.endpoint must be an absolute http or https URL (got %q)", c.Network.Endpoint))
		}
	}
	if c.Network.Concurrency < 1 || c.Network.Concurrency > workers.MaxWorkers {
		errs = append(errs, fmt.Errorf("network.concurrency must be between 1 and %d (got %d)", workers.MaxWorkers, c.Network.Concurrency))
	}
	if _, err := workers.ParseAdmission(c.Network.Admission); err != nil {
		errs = append(errs, fmt.Errorf("network.admission: %w", err))
	}
	errs = appendDurationError(errs, "network.timeout", c.Network.Timeout)

	if c.Loader.Workers < 1 || c.Loader.Workers > workers.MaxWorkers {
		errs = append(errs, fmt.Errorf("loader.workers must be between 1 and %d (got %d)", workers.MaxWorkers, c.Loader.Workers))
	}

	errs = appendDurationError(errs, "resend.interval", c.Resend.Interval)

	switch c.Serializer.Encoding {
	case transmission.EncodingGzip, transmission.EncodingZstd, transmission.EncodingLZ4:
	default:
		errs = append(errs, fmt.Errorf("serializer.encoding must be one of: gzip, zstd, lz4 (got %q)", c.Serializer.Encoding))
	}
	return errs
}

func appendDurationError(errs []error, field, value string) []error {
	duration, err := time.ParseDuration(value)
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", field, err))
	}
	if duration <= 0 {
		return append(errs, fmt.Errorf("%s must be positive (got %s)", field, value))
	}
	return errs
}

// mustDuration parses a duration that Validate already checked.
func mustDuration(value string) time.Duration {
	duration, _ := time.ParseDuration(value)
	return duration
}

// ClaimGraceDuration returns the parsed spool.claim_grace.
func (s SpoolConfig) ClaimGraceDuration() time.Duration { return mustDuration(s.ClaimGrace) }

// TimeoutDuration returns the parsed network.timeout.
func (n NetworkConfig) TimeoutDuration() time.Duration { return mustDuration(n.Timeout) }

// AdmissionPolicy returns the parsed network.admission.
func (n NetworkConfig) AdmissionPolicy() workers.Admission {
	admission, _ := workers.ParseAdmission(n.Admission)
	return admission
}

// IntervalDuration returns the parsed resend.interval.
func (r ResendConfig) IntervalDuration() time.Duration { return mustDuration(r.Interval) }

// FlushIntervalDuration returns the parsed relay.flush_interval.
func (r RelayConfig) FlushIntervalDuration() time.Duration { return mustDuration(r.FlushInterval) }

// StopTimeoutDuration returns the parsed relay.stop_timeout.
func (r RelayConfig) StopTimeoutDuration() time.Duration { return mustDuration(r.StopTimeout) }

// EnsurePaths creates the spool directory and the relay socket's
// parent directory.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Spool.Dir,
		filepath.Dir(c.Relay.SocketPath),
	}

	for _, path := range paths {
		if path == "" || path == "." {
			continue
		}
		if err := os.MkdirAll(path, 0700); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}
