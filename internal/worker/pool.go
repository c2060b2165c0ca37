package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wirehttp/wirehttp/internal/config"
	"github.com/wirehttp/wirehttp/internal/health"
	"github.com/wirehttp/wirehttp/pkg/protocol"
	"golang.org/x/time/rate"
)

// Job represents a single request job.
type Job struct {
	Target config.Target
	Config protocol.RequestConfig
	// Callback, when set, receives the outcome on the worker goroutine.
	Callback func(Result)
}

// Result is the outcome of a job.
type Result struct {
	Target   config.Target
	Response *protocol.Response
	Err      error
	Duration time.Duration
}

// ClientFactory creates the client owned by a single worker.
type ClientFactory func() protocol.Client

// Pool manages a pool of worker goroutines. Each worker issues requests
// through its own client, so clients never see concurrent calls.
type Pool struct {
	cfg       config.Worker
	metrics   *health.Metrics
	newClient ClientFactory
	limiter   *rate.Limiter
	jobs      chan Job
	wg        sync.WaitGroup
	active    int64
	pending   int64
	tpsCount  int64
	stopped   bool
	cancel    context.CancelFunc
	mu        sync.RWMutex
	stopOnce  sync.Once
	log       logrus.FieldLogger
}

// NewPool creates a new worker pool.
func NewPool(cfg config.Worker, newClient ClientFactory, metrics *health.Metrics) *Pool {
	return &Pool{
		cfg:       cfg,
		metrics:   metrics,
		newClient: newClient,
		limiter:   rate.NewLimiter(rate.Inf, 1),
		jobs:      make(chan Job, cfg.QueueSize),
		log:       logrus.WithField("component", "worker"),
	}
}

// Start launches the worker pool.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.cfg.PoolSize; i++ {
		p.wg.Add(1)
		go p.worker(ctx, p.newClient())
	}

	go p.measureTPS(ctx)

	p.log.WithFields(logrus.Fields{
		"workers": p.cfg.PoolSize,
		"queue":   p.cfg.QueueSize,
	}).Info("started workers")
}

// worker is the main worker goroutine.
func (p *Pool) worker(ctx context.Context, client protocol.Client) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.processJob(ctx, client, job)
		}
	}
}

// processJob executes a single job.
func (p *Pool) processJob(ctx context.Context, client protocol.Client, job Job) {
	defer atomic.AddInt64(&p.pending, -1)

	if err := p.limiter.Wait(ctx); err != nil {
		p.abandon(job, ctx.Err())
		return
	}

	p.metrics.SetQueuedRequests(len(p.jobs))
	p.metrics.SetActiveWorkers(int(atomic.AddInt64(&p.active, 1)))
	p.metrics.IncRequestsInFlight()
	defer func() {
		p.metrics.SetActiveWorkers(int(atomic.AddInt64(&p.active, -1)))
		p.metrics.DecRequestsInFlight()
	}()

	method := job.Target.RequestMethod()
	var body []byte
	if job.Target.Body != "" {
		body = []byte(job.Target.Body)
	}

	start := time.Now()
	resp, err := client.Request(method, job.Target.URL, job.Target.HeaderList(), body, job.Config)
	elapsed := time.Since(start)

	if err != nil {
		p.metrics.RecordError(job.Target.Name, err, elapsed.Seconds())
		p.log.WithError(err).WithField("target", job.Target.Name).Debug("request failed")
	} else {
		p.metrics.RecordResponse(job.Target.Name, method, resp, elapsed.Seconds())
	}

	atomic.AddInt64(&p.tpsCount, 1)

	if job.Callback != nil {
		job.Callback(Result{
			Target:   job.Target,
			Response: resp,
			Err:      err,
			Duration: elapsed,
		})
	}
}

// abandon reports a job that was accepted but never sent.
func (p *Pool) abandon(job Job, err error) {
	if err == nil {
		err = context.Canceled
	}
	if job.Callback != nil {
		job.Callback(Result{Target: job.Target, Err: err})
	}
}

// measureTPS periodically calculates and updates the actual TPS.
func (p *Pool) measureTPS(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count := atomic.SwapInt64(&p.tpsCount, 0)
			p.metrics.SetCurrentTPS(float64(count))
		}
	}
}

// Submit adds a job to the queue without blocking. It returns false when the
// queue is full or the pool is stopped.
func (p *Pool) Submit(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return false
	}

	atomic.AddInt64(&p.pending, 1)
	select {
	case p.jobs <- job:
		p.metrics.SetQueuedRequests(len(p.jobs))
		return true
	default:
		atomic.AddInt64(&p.pending, -1)
		p.metrics.IncDropped()
		return false
	}
}

// SetRate updates the rate limiter. A non-positive tps removes the limit.
func (p *Pool) SetRate(tps float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if tps <= 0 {
		p.limiter.SetLimit(rate.Inf)
		p.metrics.SetTargetTPS(0)
		return
	}

	p.limiter.SetLimit(rate.Limit(tps))
	p.limiter.SetBurst(max(int(tps/10), 1)) // Burst of 10% of TPS
	p.metrics.SetTargetTPS(tps)
}

// Active returns the number of currently active workers.
func (p *Pool) Active() int {
	return int(atomic.LoadInt64(&p.active))
}

// QueueSize returns the current queue length.
func (p *Pool) QueueSize() int {
	return len(p.jobs)
}

// Pending returns the number of submitted jobs that have not finished.
func (p *Pool) Pending() int {
	return int(atomic.LoadInt64(&p.pending))
}

// Drain waits until every submitted job has finished, or until timeout
// passes. It reports whether the pool drained.
func (p *Pool) Drain(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if atomic.LoadInt64(&p.pending) == 0 {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}

	p.log.WithFields(logrus.Fields{
		"in_flight": atomic.LoadInt64(&p.active),
		"queued":    len(p.jobs),
	}).Warn("drain timeout")
	return false
}

// Stop cancels the workers and waits for them to exit. Requests already on
// the wire finish first. Jobs still queued are not sent; their callbacks
// receive context.Canceled.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}

		p.mu.Lock()
		p.stopped = true
		close(p.jobs)
		p.mu.Unlock()

		p.wg.Wait()

		for job := range p.jobs {
			p.abandon(job, context.Canceled)
			atomic.AddInt64(&p.pending, -1)
		}

		p.log.Info("all workers stopped")
	})
}
