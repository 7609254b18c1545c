package button

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// press simulates a press held for the given duration, returning the gesture
// reported on release.
func press(c *Classifier, start time.Time, held time.Duration) Gesture {
	c.Poll(false, start)
	return c.Poll(true, start.Add(held))
}

func TestNewClassifier(t *testing.T) {
	c := NewClassifier(DefaultThresholds, true)
	s := c.State()
	assert.True(t, s.LastSample)
	assert.False(t, s.Pressing)
	assert.True(t, s.PressStart.IsZero())
	assert.Equal(t, DefaultThresholds, c.Thresholds())
}

func TestClassify(t *testing.T) {
	d, l := 120*time.Millisecond, 800*time.Millisecond

	assert.Equal(t, None, Classify(0, d, l))
	assert.Equal(t, None, Classify(50*time.Millisecond, d, l))
	assert.Equal(t, None, Classify(d, d, l), "hold equal to debounce is bounce")
	assert.Equal(t, ShortPress, Classify(d+time.Millisecond, d, l))
	assert.Equal(t, ShortPress, Classify(400*time.Millisecond, d, l))
	assert.Equal(t, ShortPress, Classify(l-time.Millisecond, d, l))
	assert.Equal(t, LongPress, Classify(l, d, l), "hold equal to long threshold is long")
	assert.Equal(t, LongPress, Classify(900*time.Millisecond, d, l))
}

func TestPollScenario(t *testing.T) {
	c := NewClassifier(Thresholds{Debounce: 120 * time.Millisecond, LongPress: 800 * time.Millisecond}, true)

	assert.Equal(t, None, press(c, t0, 50*time.Millisecond))
	assert.Equal(t, ShortPress, press(c, t0.Add(time.Second), 400*time.Millisecond))
	assert.Equal(t, LongPress, press(c, t0.Add(2*time.Second), 900*time.Millisecond))
}

func TestPollNoEdge(t *testing.T) {
	c := NewClassifier(DefaultThresholds, true)

	for i := 0; i < 10; i++ {
		g := c.Poll(true, t0.Add(time.Duration(i)*10*time.Millisecond))
		assert.Equal(t, None, g, "iteration %d", i)
	}
	assert.False(t, c.State().Pressing)
}

func TestPollPressEdgeRecordsStart(t *testing.T) {
	c := NewClassifier(DefaultThresholds, true)

	g := c.Poll(false, t0)
	assert.Equal(t, None, g)

	s := c.State()
	assert.False(t, s.LastSample)
	assert.True(t, s.Pressing)
	assert.Equal(t, t0, s.PressStart)

	// Holding does not move the start time or report anything.
	for i := 1; i <= 20; i++ {
		assert.Equal(t, None, c.Poll(false, t0.Add(time.Duration(i)*50*time.Millisecond)))
	}
	assert.Equal(t, t0, c.State().PressStart)

	// Release after 1s of holding.
	assert.Equal(t, LongPress, c.Poll(true, t0.Add(time.Second)))
	assert.False(t, c.State().Pressing)
	assert.True(t, c.State().LastSample)
}

func TestPollNewPressOverwritesStart(t *testing.T) {
	c := NewClassifier(DefaultThresholds, true)

	press(c, t0, 300*time.Millisecond)
	second := t0.Add(5 * time.Second)
	c.Poll(false, second)

	assert.Equal(t, second, c.State().PressStart)
}

func TestPollBounceThenPress(t *testing.T) {
	c := NewClassifier(DefaultThresholds, true)

	// Contact bounce: several very short low pulses.
	now := t0
	for i := 0; i < 3; i++ {
		assert.Equal(t, None, c.Poll(false, now))
		now = now.Add(5 * time.Millisecond)
		assert.Equal(t, None, c.Poll(true, now))
		now = now.Add(5 * time.Millisecond)
	}

	// Then a deliberate short press.
	assert.Equal(t, ShortPress, press(c, now, 250*time.Millisecond))
}

func TestPollHeldAtBootIgnored(t *testing.T) {
	c := NewClassifier(DefaultThresholds, false)

	assert.Equal(t, None, c.Poll(false, t0))
	assert.Equal(t, None, c.Poll(true, t0.Add(2*time.Second)))

	// The next full press is classified normally.
	assert.Equal(t, ShortPress, press(c, t0.Add(3*time.Second), 200*time.Millisecond))
}

func TestGestureString(t *testing.T) {
	assert.Equal(t, "NONE", None.String())
	assert.Equal(t, "SHORT", ShortPress.String())
	assert.Equal(t, "LONG", LongPress.String())
	assert.Equal(t, "UNKNOWN", Gesture(42).String())
}

func TestThresholdsValidate(t *testing.T) {
	assert.NoError(t, DefaultThresholds.Validate())

	bad := []Thresholds{
		{Debounce: 0, LongPress: time.Second},
		{Debounce: 100 * time.Millisecond, LongPress: 0},
		{Debounce: 800 * time.Millisecond, LongPress: 800 * time.Millisecond},
		{Debounce: time.Second, LongPress: 500 * time.Millisecond},
	}
	for _, th := range bad {
		assert.ErrorIs(t, th.Validate(), ErrInvalidThresholds, "%+v", th)
	}
}
