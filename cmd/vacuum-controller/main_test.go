package main

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/vacuum-controller/internal/adc"
	"github.com/sweeney/vacuum-controller/internal/battery"
	"github.com/sweeney/vacuum-controller/internal/config"
	"github.com/sweeney/vacuum-controller/internal/gpio"
)

func noColor(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewCommand()
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "missing.toml")}, args...))
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	return out.String(), err
}

func TestPrintState(t *testing.T) {
	noColor(t)
	curve := battery.MustCurve(3, battery.ReferenceCurve)

	var buf bytes.Buffer
	err := printState(&buf, gpio.NewFakeReader([]bool{true}), adc.NewFakeSource(11.10), curve)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Button:  released")
	assert.Contains(t, out, "11.10 V (3S)")
	assert.Contains(t, out, "Charge:  50%")
}

func TestPrintStatePressed(t *testing.T) {
	noColor(t)
	curve := battery.MustCurve(3, battery.ReferenceCurve)

	var buf bytes.Buffer
	require.NoError(t, printState(&buf, gpio.NewFakeReader([]bool{false}), adc.NewFakeSource(12.60), curve))
	assert.Contains(t, buf.String(), "pressed")
	assert.Contains(t, buf.String(), "100%")
}

func TestPrintStateErrors(t *testing.T) {
	curve := battery.MustCurve(3, battery.ReferenceCurve)

	pin := gpio.NewFakeReader([]bool{true})
	pin.ReadError = errors.New("line busy")
	err := printState(io.Discard, pin, adc.NewFakeSource(11.10), curve)
	assert.ErrorContains(t, err, "read button")

	src := adc.NewFakeSource()
	src.ReadError = errors.New("no iio device")
	err = printState(io.Discard, gpio.NewFakeReader([]bool{true}), src, curve)
	assert.ErrorContains(t, err, "read voltage")
}

func TestChargeString(t *testing.T) {
	noColor(t)
	assert.Equal(t, "0%", chargeString(0))
	assert.Equal(t, "20%", chargeString(20))
	assert.Equal(t, "50%", chargeString(50))
	assert.Equal(t, "100%", chargeString(100))
}

func TestPrintCurve(t *testing.T) {
	noColor(t)

	var buf bytes.Buffer
	printCurve(&buf, battery.MustCurve(4, battery.ReferenceCurve))

	out := buf.String()
	assert.Contains(t, out, "4S pack (16.80 V full, 12.00 V empty)")
	assert.Contains(t, out, "VOLTS")
	assert.Contains(t, out, "16.80")
	assert.Contains(t, out, "100%")
	assert.Contains(t, out, "12.00")
}

func TestPrintConfig(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printConfig(&buf, config.Default()))

	out := buf.String()
	assert.Contains(t, out, "[battery]")
	assert.Contains(t, out, `debounce = "120ms"`)
	assert.Contains(t, out, "# levels: LOW=35% MED=65% HIGH=100%")
}

func TestCommandCurveWithCellsFlag(t *testing.T) {
	noColor(t)

	out, err := execute(t, "--cells", "4", "curve")
	require.NoError(t, err)
	assert.Contains(t, out, "4S pack")
}

func TestCommandConfigAppliesOverrides(t *testing.T) {
	out, err := execute(t, "--broker", "tcp://10.0.0.5:1883", "--http", ":9090", "config")
	require.NoError(t, err)
	assert.Contains(t, out, `broker = "tcp://10.0.0.5:1883"`)
	assert.Contains(t, out, `addr = ":9090"`)
	assert.Equal(t, "tcp://10.0.0.5:1883", cfg.MQTT.Broker)
}

func TestCommandRejectsInvalidConfig(t *testing.T) {
	_, err := execute(t, "--cells", "0", "curve")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidCells)
}

func TestCommandRejectsBadLogLevel(t *testing.T) {
	_, err := execute(t, "--log-level", "loud", "curve")
	assert.ErrorContains(t, err, "log level")
}

func TestCommandRejectsArgs(t *testing.T) {
	_, err := execute(t, "curve", "extra")
	assert.Error(t, err)
}
