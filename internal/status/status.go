// Package status provides a thread-safe view of the controller's state for
// the HTTP server and MQTT lifecycle events. The control loop writes; other
// goroutines read copies.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/vacuum-controller/internal/button"
	"github.com/sweeney/vacuum-controller/internal/control"
	"github.com/sweeney/vacuum-controller/internal/display"
	"github.com/sweeney/vacuum-controller/internal/motor"
)

// Config contains daemon configuration for display.
type Config struct {
	Cells       int
	Duty        []int
	PollMs      int64
	DebounceMs  int64
	LongPressMs int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Voltage        float64
	Percent        int
	VoltageMissing bool // no successful voltage read yet
	Level          motor.PowerLevel
	Enabled        bool
	Duty           int
	Ready          bool // at least one tick has run
	LastGesture    button.Gesture
	LastGestureAt  time.Time
	Counts         control.Counts
	Frame          display.Frame // last frame sent to the panel
	FrameAt        time.Time
	StartTime      time.Time
	Now            time.Time
	MQTTConnected  bool
	BootID         string
	Config         Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time, boot id and config.
func NewTracker(startTime time.Time, bootID string, cfg Config) *Tracker {
	cfg.Duty = append([]int(nil), cfg.Duty...)
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			BootID:    bootID,
			Config:    cfg,
		},
	}
}

// Update records one tick's result. Called from the run loop on every tick.
func (t *Tracker) Update(res control.Result, counts control.Counts) {
	t.mu.Lock()
	t.snap.Voltage = res.Voltage
	t.snap.Percent = res.Percent
	t.snap.VoltageMissing = res.VoltageMissing
	t.snap.Level = res.State.Level
	t.snap.Enabled = res.State.Enabled
	t.snap.Duty = res.Duty
	t.snap.Ready = true
	if res.Changed() {
		t.snap.LastGesture = res.Gesture
		t.snap.LastGestureAt = res.Time
	}
	t.snap.Counts = counts
	t.mu.Unlock()
}

// ShowFrame records a display refresh. Wrap it in display.SinkFunc to mirror
// the panel.
func (t *Tracker) ShowFrame(f display.Frame) error {
	t.mu.Lock()
	t.snap.Frame = f
	t.snap.FrameAt = time.Now()
	t.mu.Unlock()
	return nil
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a copy of the daemon state with Now set to the current time.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Config.Duty = append([]int(nil), s.Config.Duty...)
	s.Now = time.Now()
	return s
}
