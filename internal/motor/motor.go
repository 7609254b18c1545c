// Package motor maps the selected power level and enable flag to a motor
// duty cycle. This package has NO hardware dependencies; the duty percent it
// produces is handed to a PWM actuator by the caller.
package motor

import (
	"fmt"

	"github.com/sweeney/vacuum-controller/internal/button"
)

// PowerLevel is one of the discrete power settings.
type PowerLevel int

const (
	Low PowerLevel = iota
	Medium
	High
)

// Levels lists every power level in cycling order.
var Levels = []PowerLevel{Low, Medium, High}

// Next returns the level selected by a short press: Low -> Medium -> High -> Low.
// An unrecognised level restarts the cycle at Low.
func (l PowerLevel) Next() PowerLevel {
	switch l {
	case Low:
		return Medium
	case Medium:
		return High
	case High:
		return Low
	default:
		return Low
	}
}

// Label returns the display label for the level.
func (l PowerLevel) Label() string {
	switch l {
	case Low:
		return "LOW"
	case Medium:
		return "MED"
	case High:
		return "HIGH"
	default:
		return "UNK"
	}
}

func (l PowerLevel) String() string {
	return l.Label()
}

// ParseLevel is the inverse of Label.
func ParseLevel(s string) (PowerLevel, error) {
	for _, l := range Levels {
		if l.Label() == s {
			return l, nil
		}
	}
	return Low, fmt.Errorf("unknown power level %q", s)
}

// DutyTable holds the duty percent for each level, indexed by PowerLevel.
type DutyTable [3]int

// DefaultDutyTable is 35/65/100 percent.
var DefaultDutyTable = DutyTable{35, 65, 100}

// DutyTableFromSlice builds a table from an ordered list. The list must have
// exactly one entry per level.
func DutyTableFromSlice(pcts []int) (DutyTable, error) {
	var t DutyTable
	if len(pcts) != len(t) {
		return t, fmt.Errorf("duty table needs %d entries, got %d", len(t), len(pcts))
	}
	copy(t[:], pcts)
	return t, nil
}

// Percent returns the clamped duty for a level, or 0 for an unknown level.
func (t DutyTable) Percent(l PowerLevel) int {
	if l < 0 || int(l) >= len(t) {
		return 0
	}
	return clamp(t[l])
}

// State is the controller's only mutable state.
type State struct {
	Enabled bool
	Level   PowerLevel
}

// DefaultState is enabled at Low.
var DefaultState = State{Enabled: true, Level: Low}

// Controller owns the motor state and derives the duty cycle from it.
type Controller struct {
	table DutyTable
	state State
}

// NewController creates a controller in DefaultState.
func NewController(table DutyTable) *Controller {
	return &Controller{
		table: table,
		state: DefaultState,
	}
}

// ApplyGesture mutates state: a short press cycles the level, a long press
// toggles the enable flag.
func (c *Controller) ApplyGesture(g button.Gesture) {
	switch g {
	case button.ShortPress:
		c.state.Level = c.state.Level.Next()
	case button.LongPress:
		c.state.Enabled = !c.state.Enabled
	case button.None:
	}
}

// DutyPercent returns the duty for the current level, or 0 while disabled.
func (c *Controller) DutyPercent() int {
	if !c.state.Enabled {
		return 0
	}
	return c.table.Percent(c.state.Level)
}

// State returns a copy of the controller state.
func (c *Controller) State() State {
	return c.state
}

// DutyForPercent is the direct-percent entry point that bypasses levels:
// pct is clamped to [0,100] and forced to 0 when disabled.
func DutyForPercent(pct int, enabled bool) int {
	pct = clamp(pct)
	if !enabled {
		return 0
	}
	return pct
}

func clamp(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// PWMSpec describes the drive signal.
type PWMSpec struct {
	FrequencyHz    int
	ResolutionBits int
}

// DefaultPWM is 20kHz (above audible) at 13-bit resolution.
var DefaultPWM = PWMSpec{FrequencyHz: 20000, ResolutionBits: 13}

// Max returns the full-scale duty count.
func (s PWMSpec) Max() int {
	if s.ResolutionBits <= 0 {
		return 0
	}
	return (1 << s.ResolutionBits) - 1
}

// Counts converts a duty percent into timer counts.
func (s PWMSpec) Counts(pct int) int {
	return clamp(pct) * s.Max() / 100
}
