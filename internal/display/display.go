// Package display renders the appliance status for the operator.
// Pixel-level drawing is left to the panel driver; this package produces the
// text lines and battery bar geometry it needs.
package display

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Title is shown on the first line of every frame.
const Title = "GreenTech Vacuum"

// Frame is one refresh of the display.
type Frame struct {
	Voltage float64
	Percent int
	Mode    string
}

// Lines returns the text rows of the frame, top to bottom.
func (f Frame) Lines() []string {
	return []string{
		Title,
		fmt.Sprintf("V: %.2f", f.Voltage),
		fmt.Sprintf("Bat %d%%", f.Percent),
		f.Mode,
	}
}

// BarFill returns how many pixel rows of a battery bar of the given outer
// height are filled at pct charge. The outline takes one row top and bottom.
func BarFill(pct, height int) int {
	inner := height - 2
	if inner <= 0 {
		return 0
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct * inner / 100
}

// Sink accepts frames for rendering.
type Sink interface {
	Show(f Frame) error
}

// LogSink writes frames to the logger.
type LogSink struct {
	Logger logrus.FieldLogger
}

// Show logs the frame at debug level.
func (s LogSink) Show(f Frame) error {
	l := s.Logger
	if l == nil {
		l = logrus.StandardLogger()
	}
	l.WithFields(logrus.Fields{
		"voltage": fmt.Sprintf("%.2f", f.Voltage),
		"percent": f.Percent,
		"mode":    f.Mode,
	}).Debug("display: refresh")
	return nil
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Frame) error

// Show calls fn(f).
func (fn SinkFunc) Show(f Frame) error {
	return fn(f)
}

// MultiSink shows every frame on all sinks, returning the joined errors.
type MultiSink []Sink

// Show fans the frame out.
func (m MultiSink) Show(f Frame) error {
	var errs []error
	for _, s := range m {
		if err := s.Show(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FakeSink records frames for test assertions.
type FakeSink struct {
	Frames    []Frame
	ShowError error
}

// Show records the frame.
func (f *FakeSink) Show(fr Frame) error {
	if f.ShowError != nil {
		return f.ShowError
	}
	f.Frames = append(f.Frames, fr)
	return nil
}
