package muxhandlers

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vitalvas/waypoint/mux"
	"go.uber.org/ratelimit"
)

// ErrInvalidRate is returned when ThrottleConfig.Rate is not positive.
var ErrInvalidRate = errors.New("throttle: rate must be greater than zero")

// ThrottleConfig configures the throttle stage.
type ThrottleConfig struct {
	// Rate is the number of requests admitted per Per interval for each
	// client. Required.
	Rate int

	// Per is the rate interval. Defaults to one second.
	Per time.Duration

	// Burst is the number of requests a client may accumulate while idle.
	// Zero disables bursting.
	Burst int

	// KeyFunc returns the throttling key. Defaults to ClientIP.
	KeyFunc func(c *mux.Context) string

	// IdleTimeout drops the state of clients not seen for this long.
	// Defaults to ten intervals, at least one minute.
	IdleTimeout time.Duration
}

type throttleEntry struct {
	limiter  ratelimit.Limiter
	lastSeen atomic.Int64
}

// Throttle paces requests per client with a leaky bucket. Requests above
// the rate are delayed, not rejected.
type Throttle struct {
	opts      []ratelimit.Option
	rate      int
	keyFunc   func(c *mux.Context) string
	idle      time.Duration
	now       func() time.Time
	limiters  sync.Map // map[string]*throttleEntry
	mu        sync.Mutex
	lastSweep atomic.Int64
}

// NewThrottle validates cfg and returns a Throttle.
func NewThrottle(cfg ThrottleConfig) (*Throttle, error) {
	if cfg.Rate <= 0 {
		return nil, ErrInvalidRate
	}

	per := cfg.Per
	if per <= 0 {
		per = time.Second
	}

	opts := []ratelimit.Option{ratelimit.Per(per)}
	if cfg.Burst > 0 {
		opts = append(opts, ratelimit.WithSlack(cfg.Burst))
	} else {
		opts = append(opts, ratelimit.WithoutSlack)
	}

	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = ClientIP
	}

	idle := cfg.IdleTimeout
	if idle <= 0 {
		idle = max(10*per, time.Minute)
	}

	t := &Throttle{opts: opts, rate: cfg.Rate, keyFunc: keyFunc, idle: idle, now: time.Now}
	t.lastSweep.Store(t.now().UnixNano())

	return t, nil
}

func (t *Throttle) limiter(key string) ratelimit.Limiter {
	now := t.now().UnixNano()
	t.sweep(now)

	if e, ok := t.limiters.Load(key); ok {
		entry := e.(*throttleEntry)
		entry.lastSeen.Store(now)
		return entry.limiter
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.limiters.Load(key); ok {
		entry := e.(*throttleEntry)
		entry.lastSeen.Store(now)
		return entry.limiter
	}

	entry := &throttleEntry{limiter: ratelimit.New(t.rate, t.opts...)}
	entry.lastSeen.Store(now)
	t.limiters.Store(key, entry)

	return entry.limiter
}

// sweep drops idle clients at most once per idle timeout.
func (t *Throttle) sweep(now int64) {
	last := t.lastSweep.Load()
	if now-last < int64(t.idle) || !t.lastSweep.CompareAndSwap(last, now) {
		return
	}

	cutoff := now - int64(t.idle)
	t.limiters.Range(func(key, e any) bool {
		if e.(*throttleEntry).lastSeen.Load() < cutoff {
			t.limiters.Delete(key)
		}
		return true
	})
}

// Clients returns the number of clients with throttling state.
func (t *Throttle) Clients() int {
	n := 0
	t.limiters.Range(func(_, _ any) bool {
		n++
		return true
	})

	return n
}

// Stage returns the throttling stage.
func (t *Throttle) Stage() mux.StageFunc {
	return func(c *mux.Context) mux.Result {
		t.limiter(t.keyFunc(c)).Take()

		if err := c.Context().Err(); err != nil {
			return mux.Fail(err)
		}

		return mux.Next()
	}
}

// ThrottleStage is a shorthand for NewThrottle followed by Stage.
func ThrottleStage(cfg ThrottleConfig) (mux.StageFunc, error) {
	t, err := NewThrottle(cfg)
	if err != nil {
		return nil, err
	}

	return t.Stage(), nil
}
