package config

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/wirehttp/wirehttp/pkg/protocol"
	"gopkg.in/yaml.v3"
)

// Load reads and parses a YAML configuration file from fs.
func Load(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validate checks the configuration for errors and fills per-target defaults.
func validate(cfg *Config) error {
	if len(cfg.Targets) == 0 {
		return fmt.Errorf("at least one target is required")
	}

	seen := make(map[string]bool, len(cfg.Targets))
	for i, t := range cfg.Targets {
		if t.Name == "" {
			return fmt.Errorf("target[%d]: name is required", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("target[%d]: duplicate name %q", i, t.Name)
		}
		seen[t.Name] = true

		if t.URL == "" {
			return fmt.Errorf("target[%d]: url is required", i)
		}
		if _, err := protocol.ParseURL(t.URL); err != nil {
			return fmt.Errorf("target[%d]: %w", i, err)
		}

		if t.Method == "" {
			cfg.Targets[i].Method = string(protocol.MethodGet)
		} else if m, ok := protocol.ParseMethod(t.Method); ok {
			cfg.Targets[i].Method = string(m)
		} else {
			return fmt.Errorf("target[%d]: unsupported method %q", i, t.Method)
		}

		if t.Weight <= 0 {
			cfg.Targets[i].Weight = 100
		}
	}

	if cfg.Client.Timeout < 0 || cfg.Client.ConnectTimeout < 0 {
		return fmt.Errorf("client timeouts must not be negative")
	}
	if cfg.Client.MaxRedirects < 0 {
		return fmt.Errorf("client.max_redirects must not be negative")
	}
	if cfg.Client.MaxResponseSize < 0 {
		return fmt.Errorf("client.max_response_size must not be negative")
	}

	if !protocol.ValidFingerprint(cfg.Transport.Fingerprint) {
		return fmt.Errorf("transport.fingerprint %q is not supported", cfg.Transport.Fingerprint)
	}

	if cfg.Controller.Rate <= 0 {
		return fmt.Errorf("controller.rate must be positive")
	}
	if cfg.Controller.Requests < 0 {
		return fmt.Errorf("controller.requests must not be negative")
	}

	if cfg.Worker.PoolSize <= 0 {
		return fmt.Errorf("worker.pool_size must be positive")
	}
	if cfg.Worker.QueueSize <= 0 {
		return fmt.Errorf("worker.queue_size must be positive")
	}

	if cfg.Health.Enabled && cfg.Health.Interval <= 0 {
		return fmt.Errorf("health.interval must be positive")
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}

	return nil
}
