// Package mqtt publishes vacuum telemetry to an MQTT broker, with an
// in-memory fake for tests.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/vacuum-controller/internal/button"
	"github.com/sweeney/vacuum-controller/internal/motor"
)

// TopicEvents is the MQTT topic for user-visible state changes.
const TopicEvents = "appliance/vacuum/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "appliance/vacuum/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a state-change event. Errors must not stop the control loop.
	Publish(event Event) error

	// PublishSystem sends a system lifecycle event.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// EventType names what a gesture did to the controller.
type EventType string

const (
	EventLevelChanged EventType = "LEVEL_CHANGED"
	EventMotorOn      EventType = "MOTOR_ON"
	EventMotorOff     EventType = "MOTOR_OFF"
)

// Event is a state change caused by a classified gesture.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Gesture   button.Gesture
	State     motor.State
	Duty      int
	Voltage   float64
	Percent   int
}

// NewEvent builds the event for a gesture that has already been applied to
// st. It reports false for button.None.
func NewEvent(ts time.Time, g button.Gesture, st motor.State, duty int, voltage float64, pct int) (Event, bool) {
	var typ EventType
	switch g {
	case button.ShortPress:
		typ = EventLevelChanged
	case button.LongPress:
		typ = EventMotorOff
		if st.Enabled {
			typ = EventMotorOn
		}
	default:
		return Event{}, false
	}
	return Event{
		Timestamp: ts,
		Type:      typ,
		Gesture:   g,
		State:     st,
		Duty:      duty,
		Voltage:   voltage,
		Percent:   pct,
	}, true
}

// SystemEvent represents a system lifecycle event (startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g. "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g. "SIGTERM" (shutdown only)
	RawPayload []byte // if set, FormatSystemPayload returns it unchanged
	Retained   bool
}

// Payload is the JSON envelope for an Event.
type Payload struct {
	Vacuum VacuumPayload `json:"vacuum"`
}

// VacuumPayload contains the event details.
type VacuumPayload struct {
	Timestamp string  `json:"timestamp"`
	Event     string  `json:"event"`
	Gesture   string  `json:"gesture"`
	Level     string  `json:"level"`
	Enabled   bool    `json:"enabled"`
	Duty      int     `json:"duty"`
	Voltage   float64 `json:"voltage"`
	Percent   int     `json:"percent"`
}

// FormatPayload creates the JSON payload for an event.
func FormatPayload(event Event) ([]byte, error) {
	payload := Payload{
		Vacuum: VacuumPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			Gesture:   event.Gesture.String(),
			Level:     event.State.Level.Label(),
			Enabled:   event.State.Enabled,
			Duty:      event.Duty,
			Voltage:   roundVolts(event.Voltage),
			Percent:   event.Percent,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload is the JSON envelope for simple system events (LWT,
// RECONNECTED) that carry no status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

func roundVolts(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
