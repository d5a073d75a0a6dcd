package audio

import (
	"math"
	"testing"
	"time"
)

func TestLevelMeterSilence(t *testing.T) {
	meter := NewLevelMeter(nil)

	meter.Observe(make([]float32, 4096))

	if meter.Value() != 0 {
		t.Errorf("Expected zero level for silence, got %f", meter.Value())
	}
}

func TestLevelMeterSmoothing(t *testing.T) {
	meter := NewLevelMeter(nil)

	// Full-scale square wave: RMS = 1, normalized clamps to 1.
	frame := make([]float32, 512)
	for i := range frame {
		frame[i] = 1
	}

	meter.Observe(frame)
	if math.Abs(meter.Value()-0.25) > 1e-9 {
		t.Errorf("Expected 0.25 after first frame (0*0.75 + 1*0.25), got %f", meter.Value())
	}

	meter.Observe(frame)
	if math.Abs(meter.Value()-0.4375) > 1e-9 {
		t.Errorf("Expected 0.4375 after second frame, got %f", meter.Value())
	}
}

func TestLevelMeterRateLimit(t *testing.T) {
	var fired int
	meter := NewLevelMeter(func(float64) { fired++ })

	now := time.Now()
	meter.now = func() time.Time { return now }

	frame := make([]float32, 64)
	for i := range frame {
		frame[i] = 0.5
	}

	meter.Observe(frame) // first delivery: lastUpdate is zero, interval exceeded
	meter.Observe(frame) // same instant: suppressed
	meter.Observe(frame)

	if fired != 1 {
		t.Fatalf("Expected 1 callback within rate-limit window, got %d", fired)
	}

	now = now.Add(100 * time.Millisecond)
	meter.Observe(frame)

	if fired != 2 {
		t.Errorf("Expected 2 callbacks after 100ms, got %d", fired)
	}
}

func TestLevelMeterReset(t *testing.T) {
	var last float64 = -1
	meter := NewLevelMeter(func(v float64) { last = v })

	frame := make([]float32, 64)
	for i := range frame {
		frame[i] = 1
	}
	meter.Observe(frame)

	meter.Reset()

	if meter.Value() != 0 {
		t.Errorf("Expected zero level after reset, got %f", meter.Value())
	}
	if last != 0 {
		t.Errorf("Expected reset to report zero to the callback, got %f", last)
	}
}

func TestLevelMeterEmptyFrame(t *testing.T) {
	meter := NewLevelMeter(nil)
	meter.Observe(nil)

	if meter.Value() != 0 {
		t.Errorf("Empty frame must not change the level, got %f", meter.Value())
	}
}
