// Package adc supplies the pack voltage to the control loop. Raw converter
// counts are averaged and scaled back through the resistor divider.
package adc

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/vacuum-controller/internal/battery"
)

// Source supplies a filtered pack voltage per request.
type Source interface {
	Voltage() (float64, error)
}

// Sampler performs one raw conversion.
type Sampler interface {
	ReadRaw() (int, error)
}

// IIOSampler reads a channel exposed by the Linux Industrial I/O subsystem,
// e.g. /sys/bus/iio/devices/iio:device0/in_voltage0_raw.
type IIOSampler struct {
	Path string
}

// ReadRaw reads and parses the raw count.
func (s IIOSampler) ReadRaw() (int, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", s.Path, err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", s.Path, err)
	}
	return v, nil
}

// AveragingSource averages several raw samples for stability and converts the
// mean to pack volts.
type AveragingSource struct {
	Sampler Sampler
	ADC     battery.ADCSpec
	Divider battery.Divider
	Samples int
	Gap     time.Duration

	// sleep is swapped out by tests.
	sleep func(time.Duration)
}

// NewAveragingSource creates a source with the default 10 samples 3ms apart.
func NewAveragingSource(s Sampler, spec battery.ADCSpec, div battery.Divider) *AveragingSource {
	return &AveragingSource{
		Sampler: s,
		ADC:     spec,
		Divider: div,
		Samples: 10,
		Gap:     3 * time.Millisecond,
		sleep:   time.Sleep,
	}
}

// Voltage returns the averaged pack voltage. A failed sample fails the whole
// reading; the caller keeps its previous value.
func (a *AveragingSource) Voltage() (float64, error) {
	n := a.Samples
	if n <= 0 {
		n = 1
	}
	sleep := a.sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	volts := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		raw, err := a.Sampler.ReadRaw()
		if err != nil {
			return 0, fmt.Errorf("adc sample %d: %w", i, err)
		}
		volts = append(volts, battery.PackVoltage(raw, a.ADC, a.Divider))
		if a.Gap > 0 && i < n-1 {
			sleep(a.Gap)
		}
	}
	return battery.Average(volts), nil
}

// FakeSource returns scripted voltages.
type FakeSource struct {
	// Voltages contains scripted readings. Each call consumes the next one;
	// the last is repeated once exhausted.
	Voltages []float64
	index    int

	// ReadError, if set, will be returned by Voltage()
	ReadError error
}

// NewFakeSource creates a FakeSource with the given readings.
func NewFakeSource(v ...float64) *FakeSource {
	return &FakeSource{Voltages: v}
}

// Voltage returns the next scripted reading.
func (f *FakeSource) Voltage() (float64, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if len(f.Voltages) == 0 {
		return 0, errors.New("no voltages configured")
	}
	v := f.Voltages[f.index]
	if f.index < len(f.Voltages)-1 {
		f.index++
	}
	return v, nil
}
