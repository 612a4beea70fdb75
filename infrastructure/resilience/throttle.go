package resilience

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle enforces a minimum interval between runs of the same caller.
// Each caller gets a single-token bucket refilled once per interval, so a
// rejected call leaves the caller's state untouched.
type Throttle struct {
	mu          sync.Mutex
	minInterval time.Duration
	idleTTL     time.Duration
	callers     map[string]*callerLimiter
	lastSweep   time.Time
	now         func() time.Time
}

type callerLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ThrottleOption customizes a Throttle.
type ThrottleOption func(*Throttle)

// WithThrottleClock replaces time.Now, mainly for tests.
func WithThrottleClock(now func() time.Time) ThrottleOption {
	return func(t *Throttle) { t.now = now }
}

// WithIdleTTL sets how long an idle caller is remembered. Entries idle for
// longer than both the TTL and minInterval are swept.
func WithIdleTTL(ttl time.Duration) ThrottleOption {
	return func(t *Throttle) { t.idleTTL = ttl }
}

// NewThrottle creates a Throttle. A non-positive minInterval disables it.
func NewThrottle(minInterval time.Duration, opts ...ThrottleOption) *Throttle {
	t := &Throttle{
		minInterval: minInterval,
		idleTTL:     10 * time.Minute,
		callers:     make(map[string]*callerLimiter),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Allow reports whether callerKey may start a run now. A true result
// records the call; a false result changes nothing.
func (t *Throttle) Allow(callerKey string) bool {
	if t.minInterval <= 0 {
		return true
	}

	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.sweep(now)

	c, ok := t.callers[callerKey]
	if !ok {
		c = &callerLimiter{limiter: rate.NewLimiter(rate.Every(t.minInterval), 1)}
		t.callers[callerKey] = c
	}
	if !c.limiter.AllowN(now, 1) {
		return false
	}
	c.lastSeen = now
	return true
}

// Len returns the number of callers currently tracked.
func (t *Throttle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.callers)
}

// sweep drops callers idle past the TTL. It runs at most once per TTL and
// must be called with mu held.
func (t *Throttle) sweep(now time.Time) {
	if t.idleTTL <= 0 || now.Sub(t.lastSweep) < t.idleTTL {
		return
	}
	t.lastSweep = now
	horizon := max(t.idleTTL, t.minInterval)
	for key, c := range t.callers {
		if now.Sub(c.lastSeen) > horizon {
			delete(t.callers, key)
		}
	}
}
