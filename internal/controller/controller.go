package controller

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wirehttp/wirehttp/internal/config"
	"github.com/wirehttp/wirehttp/internal/health"
	"github.com/wirehttp/wirehttp/internal/stats"
	"github.com/wirehttp/wirehttp/internal/worker"
)

// Controller feeds the worker pool with jobs for the configured targets.
type Controller struct {
	cfg      config.Controller
	client   config.Client
	targets  []config.Target
	pool     *worker.Pool
	checker  *health.Checker
	recorder *stats.Recorder
	log      logrus.FieldLogger

	// Weighted target selection
	totalWeight int
	rng         *rand.Rand

	submitted int64
	done      chan struct{}
	doneOnce  sync.Once

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewController creates a new controller. checker may be nil, in which case
// every target is always eligible.
func NewController(
	cfg config.Controller,
	client config.Client,
	targets []config.Target,
	pool *worker.Pool,
	checker *health.Checker,
	recorder *stats.Recorder,
) *Controller {
	c := &Controller{
		cfg:      cfg,
		client:   client,
		targets:  targets,
		pool:     pool,
		checker:  checker,
		recorder: recorder,
		log:      logrus.WithField("component", "controller"),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		done:     make(chan struct{}),
	}

	for _, t := range targets {
		c.totalWeight += t.Weight
	}
	return c
}

// selectTarget picks a target based on weights.
func (c *Controller) selectTarget() (config.Target, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.targets) == 0 || c.totalWeight <= 0 {
		return config.Target{}, false
	}

	r := c.rng.Intn(c.totalWeight)
	cumulative := 0

	for _, t := range c.targets {
		cumulative += t.Weight
		if r < cumulative {
			return t, true
		}
	}

	return c.targets[0], true
}

// Start begins traffic generation.
func (c *Controller) Start(ctx context.Context) {
	if c.cfg.Duration > 0 {
		ctx, c.cancel = context.WithTimeout(ctx, c.cfg.Duration)
	} else {
		ctx, c.cancel = context.WithCancel(ctx)
	}

	if c.cfg.RampUp > 0 {
		c.pool.SetRate(1)
		c.wg.Add(1)
		go c.rampUp(ctx)
	} else {
		c.pool.SetRate(c.cfg.Rate)
	}

	c.wg.Add(1)
	go c.generateLoop(ctx)

	c.log.WithFields(logrus.Fields{
		"rate":     c.cfg.Rate,
		"duration": c.cfg.Duration,
		"requests": c.cfg.Requests,
		"targets":  len(c.targets),
	}).Info("started")
}

// Done is closed when the request budget or duration is exhausted.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Submitted returns the number of jobs accepted by the pool.
func (c *Controller) Submitted() int64 {
	return atomic.LoadInt64(&c.submitted)
}

func (c *Controller) finish() {
	c.doneOnce.Do(func() { close(c.done) })
}

// rampUp gradually increases the rate from 1 rps to the configured rate.
func (c *Controller) rampUp(ctx context.Context) {
	defer c.wg.Done()

	startTime := time.Now()
	startRate := 1.0

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			elapsed := time.Since(startTime)
			if elapsed >= c.cfg.RampUp {
				c.pool.SetRate(c.cfg.Rate)
				c.log.WithField("rate", c.cfg.Rate).Info("ramp-up complete")
				return
			}

			progress := float64(elapsed) / float64(c.cfg.RampUp)
			c.pool.SetRate(startRate + (c.cfg.Rate-startRate)*progress)
		}
	}
}

// generateLoop keeps the pool queue fed. The pool's rate limiter decides the
// actual request rate.
func (c *Controller) generateLoop(ctx context.Context) {
	defer c.wg.Done()
	defer c.finish()

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.submitJobs(ctx) {
				return
			}
		}
	}
}

// submitJobs submits a small batch of jobs. It returns false once the request
// budget is spent.
func (c *Controller) submitJobs(ctx context.Context) bool {
	for i := 0; i < 10; i++ {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		if c.cfg.Requests > 0 && atomic.LoadInt64(&c.submitted) >= c.cfg.Requests {
			return false
		}

		target, ok := c.selectTarget()
		if !ok {
			return false
		}

		// Skip unhealthy targets
		if c.checker != nil && !c.checker.IsHealthy(target.Name) {
			continue
		}

		job := worker.Job{
			Target:   target,
			Config:   target.RequestConfig(c.client),
			Callback: c.record,
		}

		if !c.pool.Submit(job) {
			// Queue full, back off
			return true
		}
		atomic.AddInt64(&c.submitted, 1)
	}
	return true
}

func (c *Controller) record(r worker.Result) {
	// Jobs dropped at shutdown were never sent.
	if errors.Is(r.Err, context.Canceled) {
		return
	}
	if c.recorder != nil {
		c.recorder.Record(r.Response, r.Err, r.Duration)
	}
}

// Stop stops generating jobs. Jobs already queued are left to the pool.
func (c *Controller) Stop() {
	if c.cancel != nil {
		c.cancel()
	}

	c.wg.Wait()
	c.log.Info("stopped")
}
