package audio

import (
	"math"
	"sync"
	"time"
)

const (
	// levelGain maps typical speech RMS (~0.05-0.3) onto a usable 0..1 meter range.
	levelGain = 3.5

	// smoothingPrev / smoothingNew weight the exponential moving average.
	smoothingPrev = 0.75
	smoothingNew  = 0.25

	// minUpdateInterval rate-limits deliveries to the level callback.
	minUpdateInterval = 80 * time.Millisecond
)

// LevelMeter tracks a smoothed loudness scalar in [0, 1] for UI feedback.
// It sits off the transmit path: Observe never blocks and a failed or absent
// meter simply reports zero. The callback fires at most once per 80ms.
type LevelMeter struct {
	mu         sync.Mutex
	value      float64
	lastUpdate time.Time
	onLevel    func(float64)

	now func() time.Time // injectable clock for tests
}

// NewLevelMeter creates a meter that reports smoothed levels to onLevel.
// A nil callback is allowed; the meter then only tracks Value.
func NewLevelMeter(onLevel func(float64)) *LevelMeter {
	return &LevelMeter{
		onLevel: onLevel,
		now:     time.Now,
	}
}

// Observe folds one frame into the smoothed level and delivers it to the
// callback if the rate limit allows. Empty frames are ignored.
func (m *LevelMeter) Observe(frame []float32) {
	if len(frame) == 0 {
		return
	}

	var sumSquares float64
	for _, s := range frame {
		sumSquares += float64(s) * float64(s)
	}
	rms := math.Sqrt(sumSquares / float64(len(frame)))

	normalized := rms * levelGain
	if normalized > 1 {
		normalized = 1
	}

	m.mu.Lock()
	m.value = m.value*smoothingPrev + normalized*smoothingNew
	value := m.value

	now := m.now()
	fire := m.onLevel != nil && now.Sub(m.lastUpdate) > minUpdateInterval
	if fire {
		m.lastUpdate = now
	}
	m.mu.Unlock()

	if fire {
		m.onLevel(value)
	}
}

// Value returns the current smoothed level.
func (m *LevelMeter) Value() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value
}

// Reset clears the accumulator and rate limiter; called on session start and stop.
func (m *LevelMeter) Reset() {
	m.mu.Lock()
	m.value = 0
	m.lastUpdate = time.Time{}
	m.mu.Unlock()

	if m.onLevel != nil {
		m.onLevel(0)
	}
}
