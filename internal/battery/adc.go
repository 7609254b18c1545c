package battery

// Divider describes the resistor divider feeding the ADC:
// Vadc = Vpack * R2 / (R1 + R2).
type Divider struct {
	R1 float64 // ohms, to pack positive
	R2 float64 // ohms, to ground
}

// DefaultDivider is 100k over 33k (ratio ~0.248).
var DefaultDivider = Divider{R1: 100000, R2: 33000}

// Ratio returns the fraction of pack voltage seen at the ADC pin.
func (d Divider) Ratio() float64 {
	if d.R1+d.R2 == 0 {
		return 0
	}
	return d.R2 / (d.R1 + d.R2)
}

// ADCSpec describes the converter's full-scale range.
type ADCSpec struct {
	MaxCount int     // e.g. 4095 for 12-bit
	RefVolts float64 // effective full-scale voltage
}

// DefaultADC is a 12-bit converter with 3.3V effective full scale.
var DefaultADC = ADCSpec{MaxCount: 4095, RefVolts: 3.30}

// PackVoltage converts a raw ADC count back to pack volts.
func PackVoltage(raw int, adc ADCSpec, div Divider) float64 {
	ratio := div.Ratio()
	if adc.MaxCount <= 0 || ratio == 0 {
		return 0
	}
	vadc := float64(raw) * adc.RefVolts / float64(adc.MaxCount)
	return vadc / ratio
}

// Average returns the arithmetic mean of samples, or 0 if there are none.
func Average(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}
