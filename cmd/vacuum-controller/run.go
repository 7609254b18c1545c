package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sweeney/vacuum-controller/internal/adc"
	"github.com/sweeney/vacuum-controller/internal/config"
	"github.com/sweeney/vacuum-controller/internal/control"
	"github.com/sweeney/vacuum-controller/internal/display"
	"github.com/sweeney/vacuum-controller/internal/gpio"
	"github.com/sweeney/vacuum-controller/internal/history"
	"github.com/sweeney/vacuum-controller/internal/mqtt"
	"github.com/sweeney/vacuum-controller/internal/pwm"
	"github.com/sweeney/vacuum-controller/internal/status"
	"github.com/sweeney/vacuum-controller/internal/web"
)

// NewRunCommand runs the daemon. It is also what the root command does.
func NewRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the controller (default)",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runDaemon(cfg)
		},
	}
}

// hardware is the set of real collaborators the control loop drives.
type hardware struct {
	pin      gpio.Reader
	actuator pwm.Actuator
	source   adc.Source
}

func openHardware(c config.Config) (*hardware, error) {
	pin, err := gpio.NewRealReader(c.Button.Chip, c.Button.Line)
	if err != nil {
		return nil, fmt.Errorf("init button: %w", err)
	}

	// Direction starts high (forward); the actuator keeps it there.
	dir, err := gpio.NewRealOutput(c.Button.Chip, c.Motor.DirLine, true)
	if err != nil {
		pin.Close()
		return nil, fmt.Errorf("init direction line: %w", err)
	}

	act, err := pwm.NewPeriphActuator(c.Motor.PWMPin, dir, c.PWM())
	if err != nil {
		dir.Close()
		pin.Close()
		return nil, fmt.Errorf("init pwm: %w", err)
	}

	return &hardware{
		pin:      pin,
		actuator: act,
		source:   newVoltageSource(c),
	}, nil
}

func newVoltageSource(c config.Config) *adc.AveragingSource {
	src := adc.NewAveragingSource(adc.IIOSampler{Path: c.Battery.IIOPath}, c.ADC(), c.Divider())
	if c.Battery.Samples > 0 {
		src.Samples = c.Battery.Samples
	}
	return src
}

// Close stops the motor and releases every line. The actuator owns dir.
func (h *hardware) Close() error {
	return errors.Join(h.actuator.Close(), h.pin.Close())
}

func controlConfig(c config.Config) (control.Config, error) {
	curve, err := c.Curve()
	if err != nil {
		return control.Config{}, err
	}
	duty, err := c.DutyTable()
	if err != nil {
		return control.Config{}, err
	}
	return control.Config{
		Curve:           curve,
		Thresholds:      c.Thresholds(),
		Duty:            duty,
		DisplayInterval: c.Loop.DisplayInterval.Duration,
		FixedPercent:    c.Motor.FixedPercent,
	}, nil
}

func statusConfig(c config.Config) status.Config {
	return status.Config{
		Cells:       c.Battery.Cells,
		Duty:        c.Motor.Duty,
		PollMs:      c.Loop.Poll.Milliseconds(),
		DebounceMs:  c.Button.Debounce.Milliseconds(),
		LongPressMs: c.Button.LongPress.Milliseconds(),
		HeartbeatMs: c.MQTT.Heartbeat.Milliseconds(),
		Broker:      c.MQTT.Broker,
		HTTPAddr:    c.HTTP.Addr,
	}
}

func runDaemon(c config.Config) error {
	log := logrus.StandardLogger()
	bootID := uuid.NewString()

	ctlCfg, err := controlConfig(c)
	if err != nil {
		return err
	}

	hw, err := openHardware(c)
	if err != nil {
		return err
	}
	defer func() {
		if err := hw.Close(); err != nil {
			log.WithError(err).Error("failed to release hardware")
		}
	}()

	tracker := status.NewTracker(time.Now(), bootID, statusConfig(c))

	// No panel driver on this board: frames go to the log and the status page.
	loop, err := control.New(ctlCfg, control.Deps{
		Source:   hw.source,
		Pin:      hw.pin,
		Actuator: hw.actuator,
		Display: display.MultiSink{
			display.LogSink{Logger: log.WithField("component", "display")},
			display.SinkFunc(tracker.ShowFrame),
		},
	})
	if err != nil {
		return fmt.Errorf("init control loop: %w", err)
	}

	d := &daemon{
		loop:            loop,
		tracker:         tracker,
		heartbeat:       c.MQTT.Heartbeat.Duration,
		historyInterval: c.History.Interval.Duration,
		retain:          c.History.Retain.Duration,
		log:             log,
	}

	if c.MQTT.Broker != "" {
		pub, err := mqtt.NewRealPublisher(c.MQTT.Broker, bootID, log.WithField("component", "mqtt"))
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer pub.Close()
		d.publisher, d.mqttStatus = pub, pub
	}

	var hist web.HistorySource
	if c.History.Path != "" {
		store, err := history.Open(c.History.Path)
		if err != nil {
			return fmt.Errorf("init history: %w", err)
		}
		defer store.Close()
		d.history, hist = store, store
	}

	if c.HTTP.Addr != "" {
		// Bind before the loop starts so a taken port fails the daemon.
		ln, err := net.Listen("tcp", c.HTTP.Addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", c.HTTP.Addr, err)
		}
		srv := web.New(c.HTTP.Addr, tracker, hist)
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("http server failed")
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
		log.WithField("addr", ln.Addr().String()).Info("http status server listening")
	}

	log.WithFields(logrus.Fields{
		"boot_id":    bootID,
		"cells":      c.Battery.Cells,
		"poll":       c.Loop.Poll,
		"debounce":   c.Button.Debounce,
		"long_press": c.Button.LongPress,
		"duty":       c.Motor.Duty,
		"broker":     c.MQTT.Broker,
	}).Info("started")

	ticker := time.NewTicker(c.Loop.Poll.Duration)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return d.run(time.Now, ticker.C, sigCh)
}
