// Package boot coordinates the startup splash overlay: it stays up long
// enough to never flash, comes down as soon as the app underneath has real
// data, and is force-dismissed at a ceiling so a wedged source can never
// hold the screen forever.
package boot

import (
	"log/slog"
	"sync"
	"time"
)

// State is the splash overlay lifecycle phase.
type State string

const (
	// StateBooting means the overlay is fully opaque.
	StateBooting State = "booting"
	// StateDismissing means the fade-out is in progress.
	StateDismissing State = "dismissing"
	// StateDone means the overlay is unmounted.
	StateDone State = "done"
)

// Readiness is the answer a probe gives about the app underneath the splash.
// It carries the reason so dismissal decisions are observable in logs.
type Readiness struct {
	ready  bool
	reason string
}

// Ready constructs a positive readiness with the deciding reason.
func Ready(reason string) Readiness { return Readiness{ready: true, reason: reason} }

// NotReady constructs a negative readiness with the blocking reason.
func NotReady(reason string) Readiness { return Readiness{ready: false, reason: reason} }

func (r Readiness) IsReady() bool  { return r.ready }
func (r Readiness) Reason() string { return r.reason }

// DataReady evaluates the dismissal condition for the app state underneath
// the splash. Signed-out visitors have nothing to hydrate, so a settled
// session is enough for them; signed-in users additionally wait for the
// hydration flag to clear.
func DataReady(sessionSettled, signedIn, hydrating bool) Readiness {
	switch {
	case !sessionSettled:
		return NotReady("session resolving")
	case !signedIn:
		return Ready("signed out")
	case hydrating:
		return NotReady("hydrating")
	default:
		return Ready("hydrated")
	}
}

// Options are the splash timing bounds.
type Options struct {
	// MinDisplay is the minimum time the overlay stays fully opaque,
	// even when data is ready immediately.
	MinDisplay time.Duration
	// Ceiling is the hard upper bound on opaque display time.
	Ceiling time.Duration
	// Dismiss is the fade-out duration before the overlay unmounts.
	Dismiss time.Duration
}

func (o Options) withDefaults() Options {
	if o.MinDisplay <= 0 {
		o.MinDisplay = 1200 * time.Millisecond
	}
	if o.Ceiling <= 0 {
		o.Ceiling = 3 * time.Second
	}
	if o.Dismiss <= 0 {
		o.Dismiss = 250 * time.Millisecond
	}
	return o
}

// Splash runs the overlay state machine. The probe is polled on every Poke
// and when the minimum and ceiling timers fire; dismissal happens at the
// later of minimum display and data readiness, but never later than the
// ceiling.
type Splash struct {
	probe func() Readiness
	opts  Options
	log   *slog.Logger

	mu         sync.Mutex
	state      State
	startedAt  time.Time
	minElapsed bool
	minTimer   *time.Timer
	maxTimer   *time.Timer
	doneTimer  *time.Timer
	listeners  []chan State
}

// NewSplash creates a splash controller. probe reports whether the app
// underneath has data; it must be safe to call from timer goroutines.
func NewSplash(probe func() Readiness, opts Options, log *slog.Logger) *Splash {
	return &Splash{
		probe: probe,
		opts:  opts.withDefaults(),
		log:   log,
		state: StateBooting,
	}
}

// Start begins the overlay display and arms the minimum and ceiling timers.
func (s *Splash) Start() {
	s.mu.Lock()
	s.startedAt = time.Now()
	s.minTimer = time.AfterFunc(s.opts.MinDisplay, s.onMinElapsed)
	s.maxTimer = time.AfterFunc(s.opts.Ceiling, s.onCeiling)
	s.mu.Unlock()
}

// State returns the current overlay phase.
func (s *Splash) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Poke re-evaluates the dismissal condition. Call it whenever the app state
// underneath changes, e.g. on every hydration event.
func (s *Splash) Poke() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluateLocked()
}

// Notify registers a channel that receives each phase transition. Sends are
// non-blocking.
func (s *Splash) Notify(ch chan State) {
	s.mu.Lock()
	s.listeners = append(s.listeners, ch)
	s.mu.Unlock()
}

func (s *Splash) onMinElapsed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minElapsed = true
	s.evaluateLocked()
}

// onCeiling forces dismissal regardless of readiness.
func (s *Splash) onCeiling() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateBooting {
		return
	}
	s.log.Warn("splash ceiling reached, forcing dismissal",
		"after", time.Since(s.startedAt))
	s.dismissLocked("ceiling")
}

func (s *Splash) evaluateLocked() {
	if s.state != StateBooting || !s.minElapsed {
		return
	}
	r := s.probe()
	if !r.IsReady() {
		return
	}
	s.dismissLocked(r.Reason())
}

func (s *Splash) dismissLocked(reason string) {
	s.state = StateDismissing
	s.log.Info("splash dismissing",
		"reason", reason, "displayed", time.Since(s.startedAt))
	s.notifyLocked(StateDismissing)
	if s.minTimer != nil {
		s.minTimer.Stop()
	}
	if s.maxTimer != nil {
		s.maxTimer.Stop()
	}
	s.doneTimer = time.AfterFunc(s.opts.Dismiss, s.finish)
}

func (s *Splash) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateDismissing {
		return
	}
	s.state = StateDone
	s.notifyLocked(StateDone)
}

func (s *Splash) notifyLocked(st State) {
	for _, ch := range s.listeners {
		select {
		case ch <- st:
		default:
		}
	}
}
