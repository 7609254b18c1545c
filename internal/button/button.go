// Package button classifies presses of a single active-low push button into
// gestures. This package has NO hardware dependencies (no GPIO, OS, or
// time.Sleep). Time is always injectable via time.Time parameters.
package button

import (
	"errors"
	"time"
)

// Gesture is the outcome of one complete press-and-release cycle.
type Gesture int

const (
	None Gesture = iota
	ShortPress
	LongPress
)

func (g Gesture) String() string {
	switch g {
	case None:
		return "NONE"
	case ShortPress:
		return "SHORT"
	case LongPress:
		return "LONG"
	default:
		return "UNKNOWN"
	}
}

// ErrInvalidThresholds is returned by Thresholds.Validate.
var ErrInvalidThresholds = errors.New("button: long-press threshold must exceed debounce threshold")

// Thresholds are the hold-time boundaries between gestures.
type Thresholds struct {
	Debounce  time.Duration
	LongPress time.Duration
}

// DefaultThresholds are 120ms debounce and 800ms long press.
var DefaultThresholds = Thresholds{
	Debounce:  120 * time.Millisecond,
	LongPress: 800 * time.Millisecond,
}

// Validate reports whether the thresholds are usable. Both must be positive
// and LongPress must exceed Debounce, otherwise every counted press is long.
func (t Thresholds) Validate() error {
	if t.Debounce <= 0 || t.LongPress <= 0 || t.LongPress <= t.Debounce {
		return ErrInvalidThresholds
	}
	return nil
}

// Classify maps a hold duration to a gesture. Holds no longer than the
// debounce window are discarded as bounce.
func Classify(held, debounce, longPress time.Duration) Gesture {
	if held <= debounce {
		return None
	}
	if held >= longPress {
		return LongPress
	}
	return ShortPress
}

// State is the classifier's memory between polls.
type State struct {
	// Last sampled pin level (true = high = released)
	LastSample bool
	// Time of the most recent high->low edge
	PressStart time.Time
	// Whether a press is in progress
	Pressing bool
}

// Classifier turns pin samples into gestures.
type Classifier struct {
	thresholds Thresholds
	state      State
}

// NewClassifier creates a classifier. initial is the pin level read at
// startup, so a button held during boot does not register a press edge.
func NewClassifier(th Thresholds, initial bool) *Classifier {
	return &Classifier{
		thresholds: th,
		state:      State{LastSample: initial},
	}
}

// Poll takes the current pin level and returns the gesture completed by this
// sample, if any. It must be called more often than the debounce window.
func (c *Classifier) Poll(pin bool, now time.Time) Gesture {
	g := None

	switch {
	case c.state.LastSample && !pin:
		// pressed
		c.state.PressStart = now
		c.state.Pressing = true
	case !c.state.LastSample && pin:
		// released; a release with no recorded press (held since boot) is ignored
		if c.state.Pressing {
			held := now.Sub(c.state.PressStart)
			g = Classify(held, c.thresholds.Debounce, c.thresholds.LongPress)
		}
		c.state.Pressing = false
	}

	c.state.LastSample = pin
	return g
}

// State returns a copy of the classifier state.
func (c *Classifier) State() State {
	return c.state
}

// Thresholds returns the configured thresholds.
func (c *Classifier) Thresholds() Thresholds {
	return c.thresholds
}
