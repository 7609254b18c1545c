package internal

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sweeney/vacuum-controller/internal/adc"
	"github.com/sweeney/vacuum-controller/internal/battery"
	"github.com/sweeney/vacuum-controller/internal/button"
	"github.com/sweeney/vacuum-controller/internal/control"
	"github.com/sweeney/vacuum-controller/internal/display"
	"github.com/sweeney/vacuum-controller/internal/gpio"
	"github.com/sweeney/vacuum-controller/internal/history"
	"github.com/sweeney/vacuum-controller/internal/motor"
	"github.com/sweeney/vacuum-controller/internal/mqtt"
	"github.com/sweeney/vacuum-controller/internal/pwm"
	"github.com/sweeney/vacuum-controller/internal/status"
	"github.com/sweeney/vacuum-controller/internal/web"
)

const pollInterval = 20 * time.Millisecond

var startTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// presses scripts the button line: idle, then each hold (in polls) followed
// by a few released polls. Released is true.
func presses(holds ...int) []bool {
	s := []bool{true, true}
	for _, h := range holds {
		for i := 0; i < h; i++ {
			s = append(s, false)
		}
		s = append(s, true, true, true)
	}
	return s
}

type rig struct {
	loop      *control.Loop
	actuator  *pwm.FakeActuator
	sink      *display.FakeSink
	publisher *mqtt.FakePublisher
	tracker   *status.Tracker
	store     *history.Store
	ticks     int
}

func newRig(t *testing.T, pins []bool, voltages ...float64) *rig {
	t.Helper()
	r := &rig{
		actuator:  &pwm.FakeActuator{},
		sink:      &display.FakeSink{},
		publisher: mqtt.NewFakePublisher(),
		tracker:   status.NewTracker(startTime, "integration", status.Config{Cells: 3, Duty: []int{35, 65, 100}}),
	}
	loop, err := control.New(control.Config{
		Curve:           battery.MustCurve(3, battery.ReferenceCurve),
		Thresholds:      button.DefaultThresholds,
		Duty:            motor.DefaultDutyTable,
		DisplayInterval: 500 * time.Millisecond,
	}, control.Deps{
		Source:   adc.NewFakeSource(voltages...),
		Pin:      gpio.NewFakeReader(pins),
		Actuator: r.actuator,
		Display:  r.sink,
	})
	if err != nil {
		t.Fatalf("control.New: %v", err)
	}
	r.loop = loop
	return r
}

// tick runs n iterations of the main loop body.
func (r *rig) tick(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		r.ticks++
		now := startTime.Add(time.Duration(r.ticks) * pollInterval)

		res, err := r.loop.Tick(now)
		if err != nil {
			t.Fatalf("tick %d: %v", r.ticks, err)
		}
		r.tracker.Update(res, r.loop.Counts())

		if ev, ok := mqtt.NewEvent(now, res.Gesture, res.State, res.Duty, res.Voltage, res.Percent); ok {
			// Publish errors are logged by the daemon, never fatal.
			_ = r.publisher.Publish(ev)
		}

		if r.store != nil {
			err := r.store.Record(history.Reading{
				Time:    now,
				Voltage: res.Voltage,
				Percent: res.Percent,
				Level:   res.State.Level,
				Enabled: res.State.Enabled,
				Duty:    res.Duty,
			})
			if err != nil {
				t.Fatalf("tick %d: record: %v", r.ticks, err)
			}
		}
	}
}

func (r *rig) eventTypes() []mqtt.EventType {
	var out []mqtt.EventType
	for _, e := range r.publisher.Events {
		out = append(out, e.Type)
	}
	return out
}

// TestIntegrationFullFlow cycles through every level, then toggles the motor
// off and back on.
func TestIntegrationFullFlow(t *testing.T) {
	pins := presses(10, 10, 10, 45, 45)
	r := newRig(t, pins, 11.10)
	r.tick(t, len(pins))

	want := []struct {
		typ     mqtt.EventType
		level   motor.PowerLevel
		enabled bool
		duty    int
	}{
		{mqtt.EventLevelChanged, motor.Medium, true, 65},
		{mqtt.EventLevelChanged, motor.High, true, 100},
		{mqtt.EventLevelChanged, motor.Low, true, 35},
		{mqtt.EventMotorOff, motor.Low, false, 0},
		{mqtt.EventMotorOn, motor.Low, true, 35},
	}

	if len(r.publisher.Events) != len(want) {
		t.Fatalf("expected %d events, got %d: %v", len(want), len(r.publisher.Events), r.eventTypes())
	}
	for i, w := range want {
		ev := r.publisher.Events[i]
		if ev.Type != w.typ {
			t.Errorf("event %d: expected %s, got %s", i, w.typ, ev.Type)
		}
		if ev.State.Level != w.level {
			t.Errorf("event %d: expected level %s, got %s", i, w.level.Label(), ev.State.Level.Label())
		}
		if ev.State.Enabled != w.enabled {
			t.Errorf("event %d: expected enabled=%v, got %v", i, w.enabled, ev.State.Enabled)
		}
		if ev.Duty != w.duty {
			t.Errorf("event %d: expected duty %d, got %d", i, w.duty, ev.Duty)
		}
		if ev.Percent != 50 {
			t.Errorf("event %d: expected 50%%, got %d", i, ev.Percent)
		}
	}

	if got := r.actuator.Last(); got != 35 {
		t.Errorf("expected final duty 35, got %d", got)
	}

	counts := r.loop.Counts()
	if counts.Short != 3 || counts.Long != 2 || counts.Ignored != 0 {
		t.Errorf("unexpected counts: %+v", counts)
	}
}

// TestIntegrationDutyFollowsState checks every applied duty matches the
// state at that tick.
func TestIntegrationDutyFollowsState(t *testing.T) {
	pins := presses(10, 45, 10, 45)
	r := newRig(t, pins, 11.10)
	r.tick(t, len(pins))

	if len(r.actuator.Duties) != len(pins) {
		t.Fatalf("expected one duty per tick (%d), got %d", len(pins), len(r.actuator.Duties))
	}
	for i, d := range r.actuator.Duties {
		switch d {
		case 0, 35, 65, 100:
		default:
			t.Errorf("tick %d: unexpected duty %d", i, d)
		}
	}

	// MED, off, HIGH while off, on again at HIGH.
	got := r.eventTypes()
	wantTypes := []mqtt.EventType{mqtt.EventLevelChanged, mqtt.EventMotorOff, mqtt.EventLevelChanged, mqtt.EventMotorOn}
	if len(got) != len(wantTypes) {
		t.Fatalf("expected %v, got %v", wantTypes, got)
	}
	for i := range wantTypes {
		if got[i] != wantTypes[i] {
			t.Errorf("event %d: expected %s, got %s", i, wantTypes[i], got[i])
		}
	}

	if d := r.publisher.Events[2].Duty; d != 0 {
		t.Errorf("level change while off: expected duty 0, got %d", d)
	}
	if d := r.publisher.Events[3].Duty; d != 100 {
		t.Errorf("re-enable: expected duty 100, got %d", d)
	}
}

// TestIntegrationHeldAtPowerOn verifies a button held through startup does
// not produce a gesture when it is released.
func TestIntegrationHeldAtPowerOn(t *testing.T) {
	pins := []bool{false, false, false, false, false, false, false, false, true, true}
	r := newRig(t, pins, 11.10)
	r.tick(t, len(pins))

	if len(r.publisher.Events) != 0 {
		t.Fatalf("expected no events, got %v", r.eventTypes())
	}
	if st := r.loop.State(); st != motor.DefaultState {
		t.Errorf("expected default state, got %+v", st)
	}
}

// TestIntegrationBounceRejection verifies presses inside the debounce window
// change nothing.
func TestIntegrationBounceRejection(t *testing.T) {
	// 40ms, 100ms and 120ms holds are all bounce
	pins := presses(2, 5, 6)
	r := newRig(t, pins, 11.10)
	r.tick(t, len(pins))

	if len(r.publisher.Events) != 0 {
		t.Fatalf("expected no events, got %v", r.eventTypes())
	}
	if got := r.loop.Counts().Ignored; got != 3 {
		t.Errorf("expected 3 ignored releases, got %d", got)
	}
	if got := r.actuator.Last(); got != 35 {
		t.Errorf("expected duty 35, got %d", got)
	}
}

// TestIntegrationPublishFailureDoesNotCrash verifies state still advances
// when the broker rejects every publish.
func TestIntegrationPublishFailureDoesNotCrash(t *testing.T) {
	pins := presses(10, 10)
	r := newRig(t, pins, 11.10)
	r.publisher.PublishError = errors.New("connection refused")
	r.tick(t, len(pins))

	if got := r.loop.State().Level; got != motor.High {
		t.Errorf("expected HIGH, got %s", got.Label())
	}
	if len(r.publisher.Events) != 0 {
		t.Errorf("expected no recorded events, got %d", len(r.publisher.Events))
	}
}

// TestIntegrationPayloadFormat verifies the exact JSON published for a short
// press.
func TestIntegrationPayloadFormat(t *testing.T) {
	pins := presses(10)
	r := newRig(t, pins, 11.10)
	r.tick(t, len(pins))

	if len(r.publisher.Payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(r.publisher.Payloads))
	}
	// Released at 12:00:00.240, truncated to the second.
	expected := `{"vacuum":{"timestamp":"2026-01-01T12:00:00Z","event":"LEVEL_CHANGED","gesture":"SHORT",` +
		`"level":"MED","enabled":true,"duty":65,"voltage":11.1,"percent":50}}`
	if string(r.publisher.Payloads[0]) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", r.publisher.Payloads[0], expected)
	}
}

// TestIntegrationDischarge feeds a falling pack voltage and checks the
// estimate only ever falls and the display tracks it.
func TestIntegrationDischarge(t *testing.T) {
	var volts []float64
	for v := 12.60; v >= 9.00; v -= 0.05 {
		volts = append(volts, v)
	}
	r := newRig(t, []bool{true}, volts...)
	r.tick(t, len(volts))

	last := 101
	for _, f := range r.sink.Frames {
		if f.Percent > last {
			t.Fatalf("charge rose from %d to %d", last, f.Percent)
		}
		last = f.Percent
	}
	if len(r.sink.Frames) < 2 {
		t.Fatalf("expected periodic display refreshes, got %d", len(r.sink.Frames))
	}
	if r.sink.Frames[0].Percent != 100 {
		t.Errorf("first frame: expected 100%%, got %d", r.sink.Frames[0].Percent)
	}
	if got := r.tracker.Snapshot().Percent; got != 0 {
		t.Errorf("expected empty pack, got %d%%", got)
	}
}

// TestIntegrationStatusServer serves the tracker and history store through
// the HTTP handler after a short session.
func TestIntegrationStatusServer(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	defer store.Close()

	pins := presses(10, 45)
	r := newRig(t, pins, 11.10)
	r.store = store
	r.tick(t, len(pins))

	h := web.New(":0", r.tracker, store).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("index.json: status %d", rec.Code)
	}
	var st status.StatusJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("index.json: %v", err)
	}
	if st.Status.Motor.Level != "MED" || st.Status.Motor.Enabled || st.Status.Motor.Duty != 0 {
		t.Errorf("unexpected motor: %+v", st.Status.Motor)
	}
	if st.Status.Counts.Short != 1 || st.Status.Counts.Long != 1 {
		t.Errorf("unexpected counts: %+v", st.Status.Counts)
	}
	if st.Status.LastGesture == nil || st.Status.LastGesture.Gesture != "LONG" {
		t.Errorf("unexpected last gesture: %+v", st.Status.LastGesture)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history.json?n=5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("history.json: status %d", rec.Code)
	}
	var hist web.HistoryJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &hist); err != nil {
		t.Fatalf("history.json: %v", err)
	}
	if len(hist.Readings) != 5 {
		t.Fatalf("expected 5 readings, got %d", len(hist.Readings))
	}
	lastReading := hist.Readings[len(hist.Readings)-1]
	if lastReading.Enabled || lastReading.Duty != 0 || lastReading.Level != "MED" {
		t.Errorf("unexpected newest reading: %+v", lastReading)
	}
}
