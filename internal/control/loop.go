// Package control composes the charge estimator, button classifier and power
// controller into the per-tick control loop. A Loop is owned by a single
// goroutine; it holds no locks.
package control

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/vacuum-controller/internal/adc"
	"github.com/sweeney/vacuum-controller/internal/battery"
	"github.com/sweeney/vacuum-controller/internal/button"
	"github.com/sweeney/vacuum-controller/internal/display"
	"github.com/sweeney/vacuum-controller/internal/gpio"
	"github.com/sweeney/vacuum-controller/internal/motor"
	"github.com/sweeney/vacuum-controller/internal/pwm"
)

// Config holds the loop's init-time constants.
type Config struct {
	Curve           battery.Curve
	Thresholds      button.Thresholds
	Duty            motor.DutyTable
	DisplayInterval time.Duration
	// FixedPercent, if set, replaces the per-level duty with a direct percent.
	// The enable toggle still applies.
	FixedPercent *int
}

// Deps are the hardware collaborators the loop consumes and drives.
type Deps struct {
	Source   adc.Source
	Pin      gpio.Reader
	Actuator pwm.Actuator
	Display  display.Sink
}

// Counts tracks classified gestures since startup.
type Counts struct {
	Short   int
	Long    int
	Ignored int // releases discarded as bounce
}

// Result describes one tick.
type Result struct {
	Time      time.Time
	Voltage   float64
	Percent   int
	Gesture   button.Gesture
	State     motor.State
	Duty      int
	Displayed bool

	// VoltageMissing is set until the first successful voltage read.
	// Voltage and Percent are zero and mean nothing while it is set.
	VoltageMissing bool
}

// Changed reports whether this tick's gesture mutated the controller state.
func (r Result) Changed() bool {
	return r.Gesture != button.None
}

// Loop runs the control logic one tick at a time.
type Loop struct {
	cfg        Config
	deps       Deps
	classifier *button.Classifier
	motor      *motor.Controller

	voltage     float64
	haveVoltage bool
	lastDisplay time.Time
	shown       bool
	counts      Counts
}

// New builds a loop. The button line is sampled once so a button held at
// power-on is not mistaken for a press edge.
func New(cfg Config, deps Deps) (*Loop, error) {
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, err
	}
	if deps.Source == nil || deps.Pin == nil || deps.Actuator == nil {
		return nil, errors.New("control: source, pin and actuator are required")
	}

	initial, err := deps.Pin.Read()
	if err != nil {
		return nil, fmt.Errorf("read initial button state: %w", err)
	}

	return &Loop{
		cfg:        cfg,
		deps:       deps,
		classifier: button.NewClassifier(cfg.Thresholds, initial),
		motor:      motor.NewController(cfg.Duty),
	}, nil
}

// Tick runs one iteration: voltage -> percent, pin -> gesture -> state,
// state -> duty -> actuator, and periodically state -> display.
//
// Collaborator errors are returned joined, but never stop the tick: a failed
// voltage read keeps the previous voltage, a failed pin read is treated as an
// unchanged pin. Until a voltage has been read the display is not refreshed.
func (l *Loop) Tick(now time.Time) (Result, error) {
	var errs []error

	if v, err := l.deps.Source.Voltage(); err != nil {
		errs = append(errs, fmt.Errorf("read voltage: %w", err))
	} else {
		l.voltage = v
		l.haveVoltage = true
	}
	var pct int
	if l.haveVoltage {
		pct = l.cfg.Curve.EstimatePercent(l.voltage)
	}

	g := button.None
	if pin, err := l.deps.Pin.Read(); err != nil {
		errs = append(errs, fmt.Errorf("read button: %w", err))
	} else {
		wasPressing := l.classifier.State().Pressing
		g = l.classifier.Poll(pin, now)
		l.count(g, wasPressing && !l.classifier.State().Pressing)
	}

	l.motor.ApplyGesture(g)
	duty := l.duty()
	if err := l.deps.Actuator.SetDuty(duty); err != nil {
		errs = append(errs, fmt.Errorf("apply duty: %w", err))
	}

	res := Result{
		Time:    now,
		Voltage: l.voltage,
		Percent: pct,
		Gesture: g,
		State:   l.motor.State(),
		Duty:    duty,

		VoltageMissing: !l.haveVoltage,
	}

	// Showing 0% before any reading would look like an empty pack.
	if l.haveVoltage && l.displayDue(now, g) {
		if err := l.deps.Display.Show(display.Frame{
			Voltage: res.Voltage,
			Percent: res.Percent,
			Mode:    res.State.Level.Label(),
		}); err != nil {
			errs = append(errs, fmt.Errorf("show display: %w", err))
		}
		l.lastDisplay = now
		l.shown = true
		res.Displayed = true
	}

	return res, errors.Join(errs...)
}

func (l *Loop) duty() int {
	st := l.motor.State()
	if l.cfg.FixedPercent != nil {
		return motor.DutyForPercent(*l.cfg.FixedPercent, st.Enabled)
	}
	return l.motor.DutyPercent()
}

// displayDue refreshes on the first tick, whenever a gesture changed the
// state, and then every DisplayInterval.
func (l *Loop) displayDue(now time.Time, g button.Gesture) bool {
	if l.deps.Display == nil {
		return false
	}
	if !l.shown || g != button.None {
		return true
	}
	return now.Sub(l.lastDisplay) >= l.cfg.DisplayInterval
}

func (l *Loop) count(g button.Gesture, released bool) {
	switch g {
	case button.ShortPress:
		l.counts.Short++
	case button.LongPress:
		l.counts.Long++
	case button.None:
		if released {
			l.counts.Ignored++
		}
	}
}

// State returns the current controller state.
func (l *Loop) State() motor.State {
	return l.motor.State()
}

// Counts returns a copy of the gesture counters.
func (l *Loop) Counts() Counts {
	return l.counts
}

// Stop drives the actuator to 0% regardless of state. Used on shutdown.
func (l *Loop) Stop() error {
	return l.deps.Actuator.SetDuty(0)
}
