package main

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/vacuum-controller/internal/control"
	"github.com/sweeney/vacuum-controller/internal/history"
	"github.com/sweeney/vacuum-controller/internal/mqtt"
	"github.com/sweeney/vacuum-controller/internal/status"
)

// recorder is the part of *history.Store the daemon writes to.
type recorder interface {
	Record(r history.Reading) error
	Prune(before time.Time) (int64, error)
}

// daemon wires the control loop to its observers. Publisher, mqttStatus and
// history are optional.
type daemon struct {
	loop       *control.Loop
	tracker    *status.Tracker
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	history    recorder

	heartbeat       time.Duration // 0 disables
	historyInterval time.Duration
	retain          time.Duration // 0 keeps everything

	log logrus.FieldLogger

	lastHeartbeat time.Time
	lastRecord    time.Time
	lastTickErr   string
}

// run publishes STARTUP, ticks the control loop on every tick until a signal
// arrives, then stops the motor and publishes SHUTDOWN.
func (d *daemon) run(now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	start := now()
	d.lastHeartbeat = start
	d.publishSystem(start, "STARTUP", "")

	for {
		select {
		case s := <-sig:
			return d.shutdown(now(), signalName(s))
		case <-tick:
			d.step(now())
		}
	}
}

func (d *daemon) step(t time.Time) {
	res, err := d.loop.Tick(t)
	d.logTickError(err)

	d.tracker.Update(res, d.loop.Counts())
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}

	if res.Changed() {
		d.announce(t, res)
	}

	if d.heartbeat > 0 && t.Sub(d.lastHeartbeat) >= d.heartbeat {
		d.lastHeartbeat = t
		d.log.WithFields(logrus.Fields{
			"voltage": fmt.Sprintf("%.2f", res.Voltage),
			"percent": res.Percent,
			"counts":  fmt.Sprintf("%+v", d.loop.Counts()),
		}).Info("heartbeat")
		d.publishSystem(t, "HEARTBEAT", "")
	}

	d.record(t, res)
}

// logTickError logs collaborator errors when they change, so a dead sensor
// does not log on every poll.
func (d *daemon) logTickError(err error) {
	switch {
	case err == nil && d.lastTickErr != "":
		d.log.Info("tick errors cleared")
		d.lastTickErr = ""
	case err != nil && err.Error() != d.lastTickErr:
		d.log.WithError(err).Warn("tick error")
		d.lastTickErr = err.Error()
	}
}

// announce logs and publishes the event for a state-changing gesture.
func (d *daemon) announce(t time.Time, res control.Result) {
	ev, ok := mqtt.NewEvent(t, res.Gesture, res.State, res.Duty, res.Voltage, res.Percent)
	if !ok {
		return
	}
	d.log.WithFields(logrus.Fields{
		"gesture": res.Gesture,
		"level":   res.State.Level.Label(),
		"enabled": res.State.Enabled,
		"duty":    res.Duty,
	}).Info(string(ev.Type))
	if d.publisher != nil {
		if err := d.publisher.Publish(ev); err != nil {
			d.log.WithError(err).Warn("failed to publish event")
		}
	}
}

func (d *daemon) record(t time.Time, res control.Result) {
	if d.history == nil || res.VoltageMissing {
		return
	}
	if !d.lastRecord.IsZero() && t.Sub(d.lastRecord) < d.historyInterval {
		return
	}
	d.lastRecord = t

	err := d.history.Record(history.Reading{
		Time:    t,
		Voltage: res.Voltage,
		Percent: res.Percent,
		Level:   res.State.Level,
		Enabled: res.State.Enabled,
		Duty:    res.Duty,
	})
	if err != nil {
		d.log.WithError(err).Warn("failed to record reading")
		return
	}
	if d.retain > 0 {
		if n, err := d.history.Prune(t.Add(-d.retain)); err != nil {
			d.log.WithError(err).Warn("failed to prune history")
		} else if n > 0 {
			d.log.WithField("removed", n).Debug("pruned history")
		}
	}
}

func (d *daemon) shutdown(t time.Time, reason string) error {
	d.log.WithField("signal", reason).Info("shutting down")

	// Motor off before anything that can block on the network.
	stopErr := d.loop.Stop()
	if stopErr != nil {
		d.log.WithError(stopErr).Error("failed to stop motor")
	}

	d.publishSystem(t, "SHUTDOWN", reason)

	if stopErr != nil {
		return fmt.Errorf("stop motor: %w", stopErr)
	}
	return nil
}

// publishSystem sends a lifecycle event carrying a full status snapshot.
// STARTUP and SHUTDOWN are retained so late subscribers see the last one.
func (d *daemon) publishSystem(t time.Time, event, reason string) {
	if d.publisher == nil {
		return
	}
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
	snap := d.tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  t,
		Event:      event,
		Reason:     reason,
		Retained:   event != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := d.publisher.PublishSystem(ev); err != nil {
		d.log.WithError(err).WithField("event", event).Warn("failed to publish system event")
		return
	}
	d.log.WithField("event", event).Debug("published system event")
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}
