// Package gauge animates summary numbers toward their targets. During an
// account switch the animation is suppressed so the gauges never visibly
// count from one account's figures to another's; they snap instead and play
// a single entrance animation once the switch settles.
package gauge

import (
	"math"
	"sync"
	"time"
)

// Phase is the animation state of a gauge.
type Phase string

const (
	// PhaseIdle means the gauge sits at its target.
	PhaseIdle Phase = "idle"
	// PhaseSuppressed means a switch is in progress and value changes
	// snap without animating.
	PhaseSuppressed Phase = "suppressed"
	// PhaseAnimating means the gauge is easing toward its target.
	PhaseAnimating Phase = "animating"
)

// Options are the animation parameters.
type Options struct {
	// Duration is the length of one ease toward a new target.
	Duration time.Duration
	// Epsilon is the smallest target change worth animating.
	Epsilon float64
}

func (o Options) withDefaults() Options {
	if o.Duration <= 0 {
		o.Duration = 380 * time.Millisecond
	}
	if o.Epsilon <= 0 {
		o.Epsilon = 0.01
	}
	return o
}

// Gauge holds one animated numeric display value.
type Gauge struct {
	opts Options
	now  func() time.Time

	mu        sync.Mutex
	phase     Phase
	from      float64
	target    float64
	startedAt time.Time
}

// New creates a gauge at rest on zero.
func New(opts Options) *Gauge {
	return &Gauge{
		opts:  opts.withDefaults(),
		now:   time.Now,
		phase: PhaseIdle,
	}
}

// easeOutCubic decelerates toward the end of the animation.
func easeOutCubic(t float64) float64 {
	u := 1 - t
	return 1 - u*u*u
}

// Phase returns the current animation phase, advancing it if a running
// animation has completed.
func (g *Gauge) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.advanceLocked()
	return g.phase
}

// Value returns the number the display should show right now.
func (g *Gauge) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.advanceLocked()
	return g.currentLocked()
}

// SetTarget points the gauge at a new value. While suppressed the value
// snaps; otherwise changes beyond epsilon restart the ease from the current
// displayed value.
func (g *Gauge) SetTarget(v float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.advanceLocked()

	// While suppressed, from keeps the value that was on screen when the
	// switch began; SwitchEnded compares against it.
	if g.phase == PhaseSuppressed {
		g.target = v
		return
	}
	if math.Abs(v-g.target) < g.opts.Epsilon {
		g.target = v
		return
	}

	g.from = g.currentLocked()
	g.target = v
	g.startedAt = g.now()
	g.phase = PhaseAnimating
}

// SwitchStarted suppresses animation for the duration of an account switch
// and captures the value on screen at that instant. Any in-flight animation
// stops where it is.
func (g *Gauge) SwitchStarted() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.advanceLocked()
	g.from = g.currentLocked()
	g.phase = PhaseSuppressed
}

// SwitchEnded lifts suppression. If the settled target differs from the
// captured pre-switch value by at least epsilon, the gauge plays one ease
// from that value to the target; otherwise it goes straight to idle, so
// switching between accounts with equal totals shows no movement at all.
func (g *Gauge) SwitchEnded() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != PhaseSuppressed {
		return
	}
	if math.Abs(g.target-g.from) < g.opts.Epsilon {
		g.phase = PhaseIdle
		g.from = g.target
		return
	}
	g.startedAt = g.now()
	g.phase = PhaseAnimating
}

// advanceLocked transitions Animating to Idle once the duration has passed.
func (g *Gauge) advanceLocked() {
	if g.phase != PhaseAnimating {
		return
	}
	if g.now().Sub(g.startedAt) >= g.opts.Duration {
		g.phase = PhaseIdle
		g.from = g.target
	}
}

// currentLocked is the displayed value at this instant.
func (g *Gauge) currentLocked() float64 {
	if g.phase != PhaseAnimating {
		return g.target
	}
	t := float64(g.now().Sub(g.startedAt)) / float64(g.opts.Duration)
	if t >= 1 {
		return g.target
	}
	return g.from + (g.target-g.from)*easeOutCubic(t)
}
