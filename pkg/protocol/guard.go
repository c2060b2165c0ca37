package protocol

import (
	"sync"
	"time"
)

// DeadlineGuard runs an abort function once a deadline passes, unless it is
// disarmed first. Blocking socket calls have no timeout of their own here;
// the abort closes the socket, the call fails, and Fired tells the caller the
// failure was a timeout.
type DeadlineGuard struct {
	mu       sync.Mutex
	timer    *time.Timer
	abort    func()
	fired    bool
	disarmed bool
}

// ArmGuard starts a guard. A non-positive d never fires.
func ArmGuard(d time.Duration, abort func()) *DeadlineGuard {
	g := &DeadlineGuard{abort: abort}
	if d > 0 {
		g.timer = time.AfterFunc(d, g.expire)
	}
	return g
}

func (g *DeadlineGuard) expire() {
	g.mu.Lock()
	if g.disarmed {
		g.mu.Unlock()
		return
	}
	g.fired = true
	g.mu.Unlock()

	if g.abort != nil {
		g.abort()
	}
}

// Disarm stops the guard and reports whether it had already fired. After
// Disarm returns false the abort function will not run. It is safe to call
// more than once.
func (g *DeadlineGuard) Disarm() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.disarmed = true
	if g.timer != nil {
		g.timer.Stop()
	}
	return g.fired
}

// Fired reports whether the deadline passed.
func (g *DeadlineGuard) Fired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fired
}
