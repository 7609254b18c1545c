// Package battery estimates remaining pack charge from a measured voltage.
// This package has NO hardware dependencies; voltages arrive already converted
// to pack volts (see PackVoltage for the divider math).
package battery

import (
	"errors"
	"fmt"
)

// ErrInvalidCurve is returned when a discharge table cannot be scaled.
var ErrInvalidCurve = errors.New("invalid discharge curve")

// DischargePoint is one knot of a discharge curve.
type DischargePoint struct {
	Voltage float64
	Percent int
}

// ReferenceCurve is the per-cell Li-ion discharge curve, ordered by
// descending voltage.
var ReferenceCurve = []DischargePoint{
	{4.20, 100}, {4.00, 85}, {3.90, 75}, {3.80, 60}, {3.70, 50},
	{3.60, 40}, {3.50, 30}, {3.40, 20}, {3.30, 10}, {3.20, 5}, {3.00, 0},
}

// Curve is a discharge table scaled for a whole pack. It is immutable once
// built; the zero value is not usable.
type Curve struct {
	cells  int
	points []DischargePoint
}

// NewCurve scales every reference voltage by cells. The reference table must
// be non-empty and non-increasing in both voltage and percent.
func NewCurve(cells int, ref []DischargePoint) (Curve, error) {
	if cells <= 0 {
		return Curve{}, fmt.Errorf("%w: cell count %d", ErrInvalidCurve, cells)
	}
	if len(ref) == 0 {
		return Curve{}, fmt.Errorf("%w: empty table", ErrInvalidCurve)
	}

	points := make([]DischargePoint, len(ref))
	for i, p := range ref {
		if p.Percent < 0 || p.Percent > 100 {
			return Curve{}, fmt.Errorf("%w: knot %d percent %d out of range", ErrInvalidCurve, i, p.Percent)
		}
		if i > 0 && (p.Voltage > ref[i-1].Voltage || p.Percent > ref[i-1].Percent) {
			return Curve{}, fmt.Errorf("%w: knot %d not descending", ErrInvalidCurve, i)
		}
		points[i] = DischargePoint{
			Voltage: p.Voltage * float64(cells),
			Percent: p.Percent,
		}
	}

	return Curve{cells: cells, points: points}, nil
}

// MustCurve is like NewCurve but panics on error. Intended for package-level
// tables known to be valid.
func MustCurve(cells int, ref []DischargePoint) Curve {
	c, err := NewCurve(cells, ref)
	if err != nil {
		panic(err)
	}
	return c
}

// Cells returns the cell count the curve was scaled for.
func (c Curve) Cells() int {
	return c.cells
}

// Points returns a copy of the scaled knots.
func (c Curve) Points() []DischargePoint {
	out := make([]DischargePoint, len(c.points))
	copy(out, c.points)
	return out
}

// Full returns the pack voltage at the top of the curve.
func (c Curve) Full() float64 {
	if len(c.points) == 0 {
		return 0
	}
	return c.points[0].Voltage
}

// Empty returns the pack voltage at the bottom of the curve.
func (c Curve) Empty() float64 {
	if len(c.points) == 0 {
		return 0
	}
	return c.points[len(c.points)-1].Voltage
}

// EstimatePercent maps a pack voltage to a charge percentage in [0,100] by
// linear interpolation between the two surrounding knots. Voltages outside
// the table clamp to 100 or 0.
func (c Curve) EstimatePercent(packVoltage float64) int {
	n := len(c.points)
	if n == 0 {
		return 0
	}
	if packVoltage >= c.points[0].Voltage {
		return 100
	}
	if packVoltage <= c.points[n-1].Voltage {
		return 0
	}

	for i := 0; i < n-1; i++ {
		hi, lo := c.points[i], c.points[i+1]
		if packVoltage <= hi.Voltage && packVoltage >= lo.Voltage {
			if hi.Voltage == lo.Voltage {
				return clampPercent(hi.Percent)
			}
			t := (packVoltage - lo.Voltage) / (hi.Voltage - lo.Voltage)
			pct := int(float64(lo.Percent) + t*float64(hi.Percent-lo.Percent) + 0.5)
			return clampPercent(pct)
		}
	}
	return 0
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
