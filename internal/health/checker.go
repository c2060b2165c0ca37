package health

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wirehttp/wirehttp/internal/config"
	"github.com/wirehttp/wirehttp/pkg/protocol"
)

// Status is the outcome of one probe.
type Status struct {
	Target     string
	Healthy    bool
	StatusCode int
	Latency    time.Duration
	Err        error
}

// Checker performs periodic health checks on targets.
type Checker struct {
	cfg      config.Health
	client   config.Client
	targets  []config.Target
	metrics  *Metrics
	probe    protocol.Client
	log      logrus.FieldLogger
	statuses map[string]bool
	mu       sync.RWMutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewChecker creates a new health checker. Probes are sent through probe,
// using the client defaults with the health timeout applied.
func NewChecker(cfg config.Health, client config.Client, targets []config.Target, probe protocol.Client, metrics *Metrics) *Checker {
	c := &Checker{
		cfg:      cfg,
		client:   client,
		targets:  targets,
		metrics:  metrics,
		probe:    probe,
		log:      logrus.WithField("component", "health"),
		statuses: make(map[string]bool, len(targets)),
	}

	// Targets start healthy until a probe says otherwise.
	for _, t := range targets {
		c.statuses[t.Name] = true
		metrics.SetTargetHealth(t.Name, true)
	}
	return c
}

// Start begins periodic health checking.
func (c *Checker) Start(ctx context.Context) {
	if !c.cfg.Enabled {
		return
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.run(ctx)
}

// run is the main health check loop.
func (c *Checker) run(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CheckAll()
		}
	}
}

// CheckAll probes every target concurrently and returns the results in
// target order.
func (c *Checker) CheckAll() []Status {
	results := make([]Status, len(c.targets))

	var wg sync.WaitGroup
	for i, target := range c.targets {
		wg.Add(1)
		go func(i int, t config.Target) {
			defer wg.Done()
			results[i] = c.checkTarget(t)
		}(i, target)
	}
	wg.Wait()

	return results
}

// checkTarget performs a health check on a single target.
func (c *Checker) checkTarget(target config.Target) Status {
	reqCfg := c.client.RequestConfig()
	if c.cfg.Timeout > 0 {
		reqCfg.TotalTimeout = c.cfg.Timeout
		reqCfg.ConnectTimeout = min(reqCfg.ConnectTimeout, c.cfg.Timeout)
	}

	start := time.Now()
	// Health checks always use GET.
	resp, err := c.probe.Request(protocol.MethodGet, target.URL, target.HeaderList(), nil, reqCfg)

	st := Status{
		Target:  target.Name,
		Latency: time.Since(start),
		Err:     err,
	}
	if err == nil {
		st.StatusCode = resp.StatusCode
		st.Healthy = resp.StatusCode >= 200 && resp.StatusCode < 400
	}

	c.mu.Lock()
	prevStatus := c.statuses[target.Name]
	c.statuses[target.Name] = st.Healthy
	c.mu.Unlock()

	c.metrics.SetTargetHealth(target.Name, st.Healthy)

	// Log status changes
	if prevStatus != st.Healthy {
		entry := c.log.WithField("target", target.Name)
		if st.Healthy {
			entry.Info("target is now healthy")
		} else {
			entry.WithError(err).WithField("status", st.StatusCode).Warn("target is now unhealthy")
		}
	}

	return st
}

// IsHealthy returns whether a target is currently healthy.
func (c *Checker) IsHealthy(targetName string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.statuses[targetName]
}

// AnyHealthy reports whether at least one target is healthy.
func (c *Checker) AnyHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, healthy := range c.statuses {
		if healthy {
			return true
		}
	}
	return false
}

// GetHealthyTargets returns a slice of healthy targets.
func (c *Checker) GetHealthyTargets() []config.Target {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var healthy []config.Target
	for _, t := range c.targets {
		if c.statuses[t.Name] {
			healthy = append(healthy, t)
		}
	}
	return healthy
}

// Stop stops the health checker and waits for the loop to exit.
func (c *Checker) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}
