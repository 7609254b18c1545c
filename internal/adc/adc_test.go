package adc

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/vacuum-controller/internal/battery"
)

type scriptedSampler struct {
	raw   []int
	calls int
	err   error
	errAt int
}

func (s *scriptedSampler) ReadRaw() (int, error) {
	i := s.calls
	s.calls++
	if s.err != nil && i == s.errAt {
		return 0, s.err
	}
	return s.raw[i%len(s.raw)], nil
}

func TestIIOSampler(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in_voltage0_raw")
	require.NoError(t, os.WriteFile(path, []byte("3417\n"), 0644))

	v, err := IIOSampler{Path: path}.ReadRaw()
	require.NoError(t, err)
	assert.Equal(t, 3417, v)
}

func TestIIOSamplerErrors(t *testing.T) {
	_, err := IIOSampler{Path: filepath.Join(t.TempDir(), "missing")}.ReadRaw()
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))
	_, err = IIOSampler{Path: path}.ReadRaw()
	assert.Error(t, err)
}

func TestAveragingSource(t *testing.T) {
	s := &scriptedSampler{raw: []int{4000, 4095, 4095, 4000}}
	src := NewAveragingSource(s, battery.DefaultADC, battery.DefaultDivider)
	src.Samples = 4

	var slept []time.Duration
	src.sleep = func(d time.Duration) { slept = append(slept, d) }

	v, err := src.Voltage()
	require.NoError(t, err)

	want := battery.PackVoltage(4000, battery.DefaultADC, battery.DefaultDivider)/2 +
		battery.PackVoltage(4095, battery.DefaultADC, battery.DefaultDivider)/2
	assert.InDelta(t, want, v, 1e-9)
	assert.Equal(t, 4, s.calls)
	assert.Equal(t, []time.Duration{3 * time.Millisecond, 3 * time.Millisecond, 3 * time.Millisecond}, slept)
}

func TestAveragingSourceDefaults(t *testing.T) {
	src := NewAveragingSource(&scriptedSampler{raw: []int{1}}, battery.DefaultADC, battery.DefaultDivider)
	assert.Equal(t, 10, src.Samples)
	assert.Equal(t, 3*time.Millisecond, src.Gap)
}

func TestAveragingSourceError(t *testing.T) {
	s := &scriptedSampler{raw: []int{100}, err: errors.New("bus fault"), errAt: 2}
	src := NewAveragingSource(s, battery.DefaultADC, battery.DefaultDivider)
	src.sleep = func(time.Duration) {}

	_, err := src.Voltage()
	assert.Error(t, err)
	assert.Equal(t, 3, s.calls)
}

func TestFakeSource(t *testing.T) {
	f := NewFakeSource(12.0, 11.5)

	v, err := f.Voltage()
	require.NoError(t, err)
	assert.Equal(t, 12.0, v)
	v, _ = f.Voltage()
	assert.Equal(t, 11.5, v)
	v, _ = f.Voltage()
	assert.Equal(t, 11.5, v, "last reading repeats")

	f.ReadError = errors.New("adc down")
	_, err = f.Voltage()
	assert.Error(t, err)

	_, err = NewFakeSource().Voltage()
	assert.Error(t, err)
}
