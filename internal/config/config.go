package config

import (
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/wirehttp/wirehttp/pkg/protocol"
)

// Config is the root configuration structure.
type Config struct {
	Client     Client     `yaml:"client"`
	Transport  Transport  `yaml:"transport"`
	Targets    []Target   `yaml:"targets"`
	Controller Controller `yaml:"controller"`
	Worker     Worker     `yaml:"worker"`
	Health     Health     `yaml:"health"`
	Metrics    Metrics    `yaml:"metrics"`
	Log        Log        `yaml:"log"`
}

// Client holds the per-request defaults applied to every target.
type Client struct {
	Timeout         time.Duration `yaml:"timeout"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	FollowRedirects bool          `yaml:"follow_redirects"`
	MaxRedirects    int           `yaml:"max_redirects"`
	MaxResponseSize int64         `yaml:"max_response_size"` // bytes, 0 = unlimited
	VerifyTLS       bool          `yaml:"verify_tls"`
	CABundle        string        `yaml:"ca_bundle,omitempty"`
}

// RequestConfig converts the client section into a protocol.RequestConfig.
func (c Client) RequestConfig() protocol.RequestConfig {
	return protocol.RequestConfig{
		TotalTimeout:    c.Timeout,
		ConnectTimeout:  c.ConnectTimeout,
		FollowRedirects: c.FollowRedirects,
		MaxRedirects:    c.MaxRedirects,
		MaxResponseSize: c.MaxResponseSize,
		VerifyTLS:       c.VerifyTLS,
		CABundlePath:    c.CABundle,
	}
}

// Transport configures the shared transport context.
type Transport struct {
	Fingerprint string `yaml:"fingerprint,omitempty"` // chrome, firefox, safari, ios
}

// Target defines a single target endpoint.
type Target struct {
	Name    string            `yaml:"name"`
	URL     string            `yaml:"url"`
	Method  string            `yaml:"method"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Body    string            `yaml:"body,omitempty"`
	Weight  int               `yaml:"weight"`
	Timeout time.Duration     `yaml:"timeout"` // overrides client.timeout when set
}

// RequestMethod returns the target's method, defaulting to GET.
func (t Target) RequestMethod() protocol.Method {
	if m, ok := protocol.ParseMethod(t.Method); ok {
		return m
	}
	return protocol.MethodGet
}

// HeaderList returns the target headers sorted by name.
func (t Target) HeaderList() protocol.Headers {
	names := lo.Keys(t.Headers)
	sort.Strings(names)

	var h protocol.Headers
	for _, name := range names {
		h.Add(name, t.Headers[name])
	}
	return h
}

// RequestConfig applies the target overrides on top of the client defaults.
func (t Target) RequestConfig(c Client) protocol.RequestConfig {
	cfg := c.RequestConfig()
	if t.Timeout > 0 {
		cfg.TotalTimeout = t.Timeout
	}
	return cfg
}

// Controller configures how `run` generates traffic.
type Controller struct {
	Rate            float64       `yaml:"rate"`     // requests per second
	RampUp          time.Duration `yaml:"ramp_up"`  // time to reach rate from 1 rps
	Duration        time.Duration `yaml:"duration"` // 0 = until interrupted
	Requests        int64         `yaml:"requests"` // 0 = unlimited
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Worker configures the worker pool.
type Worker struct {
	PoolSize  int `yaml:"pool_size"`
	QueueSize int `yaml:"queue_size"`
}

// Health configures the health checker.
type Health struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Metrics configures Prometheus metrics.
type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

// Log configures logrus output.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
	File   string `yaml:"file,omitempty"`
}

// JSON reports whether the json formatter is selected.
func (l Log) JSON() bool {
	return strings.EqualFold(l.Format, "json")
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	req := protocol.DefaultRequestConfig()

	return &Config{
		Client: Client{
			Timeout:         req.TotalTimeout,
			ConnectTimeout:  req.ConnectTimeout,
			FollowRedirects: req.FollowRedirects,
			MaxRedirects:    req.MaxRedirects,
			MaxResponseSize: req.MaxResponseSize,
			VerifyTLS:       req.VerifyTLS,
		},
		Controller: Controller{
			Rate:            10,
			ShutdownTimeout: 30 * time.Second,
		},
		Worker: Worker{
			PoolSize:  16,
			QueueSize: 1024,
		},
		Health: Health{
			Enabled:  true,
			Interval: 10 * time.Second,
			Timeout:  5 * time.Second,
		},
		Metrics: Metrics{
			Enabled: true,
			Address: ":9090",
			Path:    "/metrics",
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}
