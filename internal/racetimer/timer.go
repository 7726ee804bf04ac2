// Package racetimer runs the countdown of one race: a short pre-race delay
// followed by a fixed-length race window.
package racetimer

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	DefaultDelay    = 2 * time.Second
	DefaultDuration = 10 * time.Second
)

// State of the timer.
type State int

const (
	Idle State = iota
	Armed
	Running
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// Config holds the delay before the race starts and the race length.
type Config struct {
	Delay    time.Duration `mapstructure:"delay" yaml:"delay"`
	Duration time.Duration `mapstructure:"duration" yaml:"duration"`
}

// DefaultConfig returns the stock timings.
func DefaultConfig() Config {
	return Config{Delay: DefaultDelay, Duration: DefaultDuration}
}

// Option configures a Timer.
type Option func(*Timer)

// WithClock overrides the clock used for scheduling.
func WithClock(clock clockwork.Clock) Option {
	return func(t *Timer) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// OnStart registers a hook called when the race window opens.
func OnStart(fn func(sessionID string)) Option {
	return func(t *Timer) {
		t.onStart = fn
	}
}

// OnExpire registers a hook called when the race window closes on its own.
// It is not called after Stop.
func OnExpire(fn func(sessionID string)) Option {
	return func(t *Timer) {
		t.onExpire = fn
	}
}

// Timer is safe for concurrent use. Hooks run without the timer lock held
// and may call back into the timer.
type Timer struct {
	mu sync.Mutex

	clock clockwork.Clock
	cfg   Config

	state      State
	session    string
	expired    string
	startedAt  time.Time
	pending    clockwork.Timer
	generation uint64

	onStart  func(sessionID string)
	onExpire func(sessionID string)
}

// New creates an idle timer. Non-positive durations fall back to defaults;
// a zero delay starts the race immediately.
func New(cfg Config, opts ...Option) *Timer {
	if cfg.Delay < 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultDuration
	}
	t := &Timer{
		clock: clockwork.NewRealClock(),
		cfg:   cfg,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start arms the timer for sessionID. Starting the session that is already
// armed, running or expired is a no-op and returns false. A different
// session replaces the current one.
func (t *Timer) Start(sessionID string) bool {
	t.mu.Lock()
	if (t.state != Idle && t.session == sessionID) || (sessionID != "" && sessionID == t.expired) {
		t.mu.Unlock()
		return false
	}
	t.cancelLocked()
	t.session = sessionID
	t.startedAt = time.Time{}
	gen := t.generation

	if t.cfg.Delay == 0 {
		t.mu.Unlock()
		t.begin(gen)
		return true
	}
	t.state = Armed
	t.pending = t.clock.AfterFunc(t.cfg.Delay, func() { t.begin(gen) })
	t.mu.Unlock()
	return true
}

// Stop cancels the timer in any state. No hook fires afterwards for the
// cancelled session.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
	t.session = ""
	t.startedAt = time.Time{}
}

// State reports the current state.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Session reports the session the timer is armed or running for.
func (t *Timer) Session() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session
}

// Elapsed is the time spent in the race window, zero unless running.
func (t *Timer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Running {
		return 0
	}
	return t.elapsedLocked()
}

// Remaining is the time left in the race window. It is the full duration
// while idle or armed.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Running {
		return t.cfg.Duration
	}
	left := t.cfg.Duration - t.elapsedLocked()
	if left < 0 {
		return 0
	}
	return left
}

// Duration is the configured race length.
func (t *Timer) Duration() time.Duration {
	return t.cfg.Duration
}

func (t *Timer) elapsedLocked() time.Duration {
	d := t.clock.Since(t.startedAt)
	if d > t.cfg.Duration {
		return t.cfg.Duration
	}
	return d
}

func (t *Timer) cancelLocked() {
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	t.generation++
	t.state = Idle
}

func (t *Timer) begin(gen uint64) {
	t.mu.Lock()
	if t.generation != gen {
		t.mu.Unlock()
		return
	}
	t.state = Running
	t.startedAt = t.clock.Now()
	t.pending = t.clock.AfterFunc(t.cfg.Duration, func() { t.expire(gen) })
	session, hook := t.session, t.onStart
	t.mu.Unlock()

	if hook != nil {
		hook(session)
	}
}

func (t *Timer) expire(gen uint64) {
	t.mu.Lock()
	if t.generation != gen || t.state != Running {
		t.mu.Unlock()
		return
	}
	t.pending = nil
	t.generation++
	t.state = Idle
	t.expired = t.session
	session, hook := t.session, t.onExpire
	t.mu.Unlock()

	if hook != nil {
		hook(session)
	}
}
