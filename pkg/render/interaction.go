package render

import (
	"math"
	"time"
)

// NodeState is the presentation state of a node. It never affects layout.
type NodeState int

const (
	Collapsed NodeState = iota
	Expanded
)

// String returns "collapsed" or "expanded".
func (s NodeState) String() string {
	if s == Expanded {
		return "expanded"
	}
	return "collapsed"
}

// Toggle returns the opposite state.
func (s NodeState) Toggle() NodeState {
	if s == Expanded {
		return Collapsed
	}
	return Expanded
}

// Expansion parameters.
const (
	ExpandWidthFactor  = 1.5
	ExpandHeightFactor = 1.2
	ExpandDuration     = 300 * time.Millisecond
	elasticAmplitude   = 1
	elasticPeriod      = 0.5
)

// Size is a node's drawn width and height.
type Size struct {
	Width, Height float64
}

// BaseSize returns a node's collapsed size, falling back to 150x50.
func BaseSize(width, height float64) Size {
	return Size{orFallback(width, fallbackNodeW), orFallback(height, fallbackNodeH)}
}

// SizeFor returns the drawn size of a node with the given base size.
func SizeFor(state NodeState, base Size) Size {
	if state == Expanded {
		return Size{base.Width * ExpandWidthFactor, base.Height * ExpandHeightFactor}
	}
	return base
}

// States tracks the presentation state of nodes by ID. Missing entries are
// collapsed.
type States map[string]NodeState

// Toggle flips the state of id and returns the new state.
func (s States) Toggle(id string) NodeState {
	next := s[id].Toggle()
	if next == Collapsed {
		delete(s, id)
	} else {
		s[id] = next
	}
	return next
}

// Clone returns an independent copy.
func (s States) Clone() States {
	out := make(States, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Transition animates a node between two sizes.
type Transition struct {
	From, To Size
	Duration time.Duration
	Ease     func(t float64) float64
}

// NewTransition returns the animation played when a node whose current
// state is from is clicked.
func NewTransition(base Size, from NodeState) Transition {
	return Transition{
		From:     SizeFor(from, base),
		To:       SizeFor(from.Toggle(), base),
		Duration: ExpandDuration,
		Ease:     EaseOutElastic(elasticAmplitude, elasticPeriod),
	}
}

// At returns the size after elapsed time. It is clamped to the end points.
func (tr Transition) At(elapsed time.Duration) Size {
	if tr.Duration <= 0 || elapsed >= tr.Duration {
		return tr.To
	}
	if elapsed <= 0 {
		return tr.From
	}
	p := tr.Ease(float64(elapsed) / float64(tr.Duration))
	return Size{
		Width:  tr.From.Width + (tr.To.Width-tr.From.Width)*p,
		Height: tr.From.Height + (tr.To.Height-tr.From.Height)*p,
	}
}

// Keyframes samples the transition at steps+1 evenly spaced times,
// including both ends.
func (tr Transition) Keyframes(steps int) []Size {
	if steps < 1 {
		steps = 1
	}
	out := make([]Size, steps+1)
	for i := 0; i <= steps; i++ {
		out[i] = tr.At(time.Duration(float64(tr.Duration) * float64(i) / float64(steps)))
	}
	return out
}

// EaseOutElastic returns an elastic ease-out curve that overshoots the end
// and settles. Amplitude is clamped to [1, 10] and period to [0.1, 2].
func EaseOutElastic(amplitude, period float64) func(float64) float64 {
	a := min(max(amplitude, 1), 10)
	p := min(max(period, 0.1), 2)
	in := func(t float64) float64 {
		if t == 0 || t == 1 {
			return t
		}
		return -a * math.Pow(2, 10*(t-1)) *
			math.Sin(((t-1)-(p/(2*math.Pi)*math.Asin(1/a)))*(2*math.Pi)/p)
	}
	return func(t float64) float64 { return 1 - in(1-t) }
}
