package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	BootID        string       `json:"boot_id"`
	Ready         bool         `json:"ready"`
	Battery       *BatteryJSON `json:"battery,omitempty"`
	Motor         MotorJSON    `json:"motor"`
	LastGesture   *GestureJSON `json:"last_gesture,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"gesture_counts"`
	Config        ConfigJSON   `json:"config"`
}

// BatteryJSON reports the latest charge estimate. It is omitted until a
// voltage has been read.
type BatteryJSON struct {
	Voltage float64 `json:"voltage"`
	Percent int     `json:"percent"`
}

// MotorJSON reports the controller state and applied duty.
type MotorJSON struct {
	Level   string `json:"level"`
	Enabled bool   `json:"enabled"`
	Duty    int    `json:"duty"`
}

// GestureJSON reports the most recent classified gesture.
type GestureJSON struct {
	Gesture   string `json:"gesture"`
	Timestamp string `json:"timestamp"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of gesture counts.
type CountsJSON struct {
	Short   int `json:"short"`
	Long    int `json:"long"`
	Ignored int `json:"ignored"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Cells       int    `json:"cells"`
	Duty        []int  `json:"duty"`
	PollMs      int64  `json:"poll_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	LongPressMs int64  `json:"long_press_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		BootID: snap.BootID,
		Ready:  snap.Ready,
		Motor: MotorJSON{
			Level:   snap.Level.Label(),
			Enabled: snap.Enabled,
			Duty:    snap.Duty,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Short:   snap.Counts.Short,
			Long:    snap.Counts.Long,
			Ignored: snap.Counts.Ignored,
		},
		Config: ConfigJSON{
			Cells:       snap.Config.Cells,
			Duty:        snap.Config.Duty,
			PollMs:      snap.Config.PollMs,
			DebounceMs:  snap.Config.DebounceMs,
			LongPressMs: snap.Config.LongPressMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
	if snap.Ready && !snap.VoltageMissing {
		inner.Battery = &BatteryJSON{
			Voltage: float64(int(snap.Voltage*100+0.5)) / 100,
			Percent: snap.Percent,
		}
	}
	if !snap.LastGestureAt.IsZero() {
		inner.LastGesture = &GestureJSON{
			Gesture:   snap.LastGesture.String(),
			Timestamp: snap.LastGestureAt.UTC().Format(time.RFC3339),
		}
	}
	return inner
}

// FormatJSON returns the indented JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the compact JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
