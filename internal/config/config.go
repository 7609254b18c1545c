// Package config loads the controller's init-time constants from a TOML file
// layered over built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	pkgerrors "github.com/pkg/errors"

	"github.com/sweeney/vacuum-controller/internal/battery"
	"github.com/sweeney/vacuum-controller/internal/button"
	"github.com/sweeney/vacuum-controller/internal/gpio"
	"github.com/sweeney/vacuum-controller/internal/motor"
	"github.com/sweeney/vacuum-controller/internal/pwm"
)

// DefaultPath is where the daemon looks for its config file.
const DefaultPath = "/etc/vacuum-controller.toml"

var (
	ErrInvalidCells    = errors.New("cell count must be positive")
	ErrEmptyDutyTable  = errors.New("duty table must have one entry per power level")
	ErrInvalidInterval = errors.New("interval must be positive")
	ErrPollTooSlow     = errors.New("poll interval must be shorter than debounce")
)

// Duration is a time.Duration that reads and writes as a string ("120ms").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config holds all daemon configuration.
type Config struct {
	Battery BatteryConfig `toml:"battery"`
	Button  ButtonConfig  `toml:"button"`
	Motor   MotorConfig   `toml:"motor"`
	Loop    LoopConfig    `toml:"loop"`
	MQTT    MQTTConfig    `toml:"mqtt"`
	HTTP    HTTPConfig    `toml:"http"`
	History HistoryConfig `toml:"history"`
	Log     LogConfig     `toml:"log"`
}

// BatteryConfig describes the pack and the ADC front end.
type BatteryConfig struct {
	Cells       int     `toml:"cells"`
	DividerR1   float64 `toml:"divider_r1"`
	DividerR2   float64 `toml:"divider_r2"`
	ADCMax      int     `toml:"adc_max"`
	ADCRefVolts float64 `toml:"adc_ref_volts"`
	Samples     int     `toml:"samples"`
	IIOPath     string  `toml:"iio_path"`
}

// ButtonConfig describes the button line and gesture timing.
type ButtonConfig struct {
	Chip      string   `toml:"chip"`
	Line      int      `toml:"line"`
	Debounce  Duration `toml:"debounce"`
	LongPress Duration `toml:"long_press"`
}

// MotorConfig describes the drive signal.
type MotorConfig struct {
	Duty           []int  `toml:"duty"`
	FixedPercent   *int   `toml:"fixed_percent,omitempty"`
	PWMPin         string `toml:"pwm_pin"`
	DirLine        int    `toml:"dir_line"`
	FrequencyHz    int    `toml:"frequency_hz"`
	ResolutionBits int    `toml:"resolution_bits"`
}

// LoopConfig controls tick timing.
type LoopConfig struct {
	Poll            Duration `toml:"poll"`
	DisplayInterval Duration `toml:"display_interval"`
}

// MQTTConfig controls telemetry publishing. An empty broker disables it.
type MQTTConfig struct {
	Broker    string   `toml:"broker"`
	Heartbeat Duration `toml:"heartbeat"`
}

// HTTPConfig controls the status server. An empty address disables it.
type HTTPConfig struct {
	Addr string `toml:"addr"`
}

// HistoryConfig controls the reading log. An empty path disables it.
type HistoryConfig struct {
	Path     string   `toml:"path"`
	Interval Duration `toml:"interval"`
	Retain   Duration `toml:"retain"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the stock 3S configuration.
func Default() Config {
	return Config{
		Battery: BatteryConfig{
			Cells:       3,
			DividerR1:   battery.DefaultDivider.R1,
			DividerR2:   battery.DefaultDivider.R2,
			ADCMax:      battery.DefaultADC.MaxCount,
			ADCRefVolts: battery.DefaultADC.RefVolts,
			Samples:     10,
			IIOPath:     "/sys/bus/iio/devices/iio:device0/in_voltage0_raw",
		},
		Button: ButtonConfig{
			Chip:      gpio.DefaultChip,
			Line:      gpio.DefaultButtonPin,
			Debounce:  Duration{button.DefaultThresholds.Debounce},
			LongPress: Duration{button.DefaultThresholds.LongPress},
		},
		Motor: MotorConfig{
			Duty:           append([]int(nil), motor.DefaultDutyTable[:]...),
			PWMPin:         pwm.DefaultPin,
			DirLine:        gpio.DefaultDirPin,
			FrequencyHz:    motor.DefaultPWM.FrequencyHz,
			ResolutionBits: motor.DefaultPWM.ResolutionBits,
		},
		Loop: LoopConfig{
			Poll:            Duration{20 * time.Millisecond},
			DisplayInterval: Duration{500 * time.Millisecond},
		},
		MQTT: MQTTConfig{
			Heartbeat: Duration{15 * time.Minute},
		},
		HTTP: HTTPConfig{
			Addr: ":80",
		},
		History: HistoryConfig{
			Interval: Duration{time.Minute},
			Retain:   Duration{7 * 24 * time.Hour},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
// The result is not validated; call Validate before use.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, pkgerrors.Wrapf(err, "failed to open file %s", path)
	}
	defer f.Close()

	// Decoding into a fresh slice avoids appending to the default table.
	cfg.Motor.Duty = nil
	md, err := toml.NewDecoder(f).Decode(&cfg)
	if err != nil {
		return cfg, pkgerrors.Wrapf(err, "failed to parse config file %s", path)
	}
	if !md.IsDefined("motor", "duty") {
		cfg.Motor.Duty = Default().Motor.Duty
	}
	return cfg, nil
}

// Write encodes cfg as TOML.
func Write(w io.Writer, cfg Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return pkgerrors.Wrap(err, "failed to encode config")
	}
	return nil
}

// Validate rejects configurations the core cannot run with.
func (c Config) Validate() error {
	if c.Battery.Cells <= 0 {
		return pkgerrors.Wrapf(ErrInvalidCells, "battery.cells=%d", c.Battery.Cells)
	}
	if _, err := c.DutyTable(); err != nil {
		return err
	}
	if err := c.Thresholds().Validate(); err != nil {
		return pkgerrors.Wrapf(err, "button debounce=%s long_press=%s", c.Button.Debounce, c.Button.LongPress)
	}
	if c.Loop.Poll.Duration <= 0 {
		return pkgerrors.Wrap(ErrInvalidInterval, "loop.poll")
	}
	if c.Loop.DisplayInterval.Duration <= 0 {
		return pkgerrors.Wrap(ErrInvalidInterval, "loop.display_interval")
	}
	if c.Loop.Poll.Duration >= c.Button.Debounce.Duration {
		return pkgerrors.Wrapf(ErrPollTooSlow, "poll=%s debounce=%s", c.Loop.Poll, c.Button.Debounce)
	}
	if c.Motor.FrequencyHz <= 0 || c.Motor.ResolutionBits <= 0 || c.Motor.ResolutionBits > 24 {
		return fmt.Errorf("invalid pwm: frequency_hz=%d resolution_bits=%d", c.Motor.FrequencyHz, c.Motor.ResolutionBits)
	}
	if c.Battery.ADCMax <= 0 || c.Battery.ADCRefVolts <= 0 || c.Battery.DividerR2 <= 0 {
		return fmt.Errorf("invalid adc front end: adc_max=%d adc_ref_volts=%v divider_r2=%v",
			c.Battery.ADCMax, c.Battery.ADCRefVolts, c.Battery.DividerR2)
	}
	if c.History.Path != "" && c.History.Interval.Duration <= 0 {
		return pkgerrors.Wrap(ErrInvalidInterval, "history.interval")
	}
	return nil
}

// Curve builds the scaled discharge curve.
func (c Config) Curve() (battery.Curve, error) {
	return battery.NewCurve(c.Battery.Cells, battery.ReferenceCurve)
}

// Thresholds returns the gesture timing.
func (c Config) Thresholds() button.Thresholds {
	return button.Thresholds{
		Debounce:  c.Button.Debounce.Duration,
		LongPress: c.Button.LongPress.Duration,
	}
}

// DutyTable returns the per-level duty table.
func (c Config) DutyTable() (motor.DutyTable, error) {
	t, err := motor.DutyTableFromSlice(c.Motor.Duty)
	if err != nil {
		return t, pkgerrors.Wrap(ErrEmptyDutyTable, err.Error())
	}
	return t, nil
}

// PWM returns the drive signal spec.
func (c Config) PWM() motor.PWMSpec {
	return motor.PWMSpec{FrequencyHz: c.Motor.FrequencyHz, ResolutionBits: c.Motor.ResolutionBits}
}

// ADC returns the converter spec.
func (c Config) ADC() battery.ADCSpec {
	return battery.ADCSpec{MaxCount: c.Battery.ADCMax, RefVolts: c.Battery.ADCRefVolts}
}

// Divider returns the resistor divider.
func (c Config) Divider() battery.Divider {
	return battery.Divider{R1: c.Battery.DividerR1, R2: c.Battery.DividerR2}
}
