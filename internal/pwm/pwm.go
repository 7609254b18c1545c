// Package pwm drives the motor controller's PWM and direction inputs.
package pwm

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	vgpio "github.com/sweeney/vacuum-controller/internal/gpio"
	"github.com/sweeney/vacuum-controller/internal/motor"
)

// Actuator accepts a duty percent in [0,100]. Callers guarantee the range.
type Actuator interface {
	SetDuty(pct int) error
	Close() error
}

// DefaultPin is the PWM output driving the motor driver. BCM18 carries PWM0
// on the Pi header; the pin must support hardware PWM at the configured
// frequency.
const DefaultPin = "GPIO18"

// PeriphActuator drives a hardware PWM pin through periph.io. The direction
// line is held high (forward) whenever a duty is applied.
type PeriphActuator struct {
	pin  gpio.PinOut
	dir  vgpio.Output
	spec motor.PWMSpec
}

// NewPeriphActuator initialises the periph host drivers, looks up pinName
// and starts it at 0% duty.
func NewPeriphActuator(pinName string, dir vgpio.Output, spec motor.PWMSpec) (*PeriphActuator, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph: %w", err)
	}

	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("failed to find pwm pin '%s'", pinName)
	}
	return NewActuator(pin, dir, spec)
}

// NewActuator wraps an already-resolved output pin.
func NewActuator(pin gpio.PinOut, dir vgpio.Output, spec motor.PWMSpec) (*PeriphActuator, error) {
	if spec.FrequencyHz <= 0 || spec.Max() <= 0 {
		return nil, fmt.Errorf("invalid pwm spec %+v", spec)
	}
	a := &PeriphActuator{pin: pin, dir: dir, spec: spec}
	if err := a.SetDuty(0); err != nil {
		return nil, err
	}
	return a, nil
}

// SetDuty applies pct of full scale at the configured frequency.
func (a *PeriphActuator) SetDuty(pct int) error {
	if a.dir != nil {
		if err := a.dir.Set(true); err != nil {
			return fmt.Errorf("set direction: %w", err)
		}
	}
	if err := a.pin.PWM(Duty(a.spec, pct), Frequency(a.spec)); err != nil {
		return fmt.Errorf("set pwm duty %d%%: %w", pct, err)
	}
	return nil
}

// Close stops the motor and releases the direction line.
func (a *PeriphActuator) Close() error {
	var errs []error
	if err := a.pin.Out(gpio.Low); err != nil {
		errs = append(errs, fmt.Errorf("stop pwm: %w", err))
	}
	if a.dir != nil {
		if err := a.dir.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Duty converts a percent into periph's fixed-point duty, quantised to the
// timer resolution in spec so the output matches the counts the driver sees.
func Duty(spec motor.PWMSpec, pct int) gpio.Duty {
	full := spec.Max()
	if full <= 0 {
		return 0
	}
	counts := spec.Counts(pct)
	return gpio.Duty(int64(gpio.DutyMax) * int64(counts) / int64(full))
}

// Frequency returns the PWM carrier frequency for spec.
func Frequency(spec motor.PWMSpec) physic.Frequency {
	return physic.Frequency(spec.FrequencyHz) * physic.Hertz
}

// FakeActuator records every duty applied.
type FakeActuator struct {
	Duties   []int
	SetError error
	Closed   bool
}

// SetDuty records pct.
func (f *FakeActuator) SetDuty(pct int) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.Duties = append(f.Duties, pct)
	return nil
}

// Close marks the actuator as closed.
func (f *FakeActuator) Close() error {
	f.Closed = true
	return nil
}

// Last returns the most recent duty, or -1 if none was applied.
func (f *FakeActuator) Last() int {
	if len(f.Duties) == 0 {
		return -1
	}
	return f.Duties[len(f.Duties)-1]
}
