package align

import (
	"sort"
	"time"
)

// Measurement is one accepted zoom observation.
type Measurement struct {
	At          time.Time
	ZoomPercent float64
	Confidence  float64
}

const trackerWindow = 10

// Tracker keeps a short history of zoom measurements and interpolates a
// confidence- and recency-weighted linear trend between them, so the caller
// can carry a zoom prior across frames where full matching is skipped.
// Not safe for concurrent use; feed from the analysis goroutine.
type Tracker struct {
	history []Measurement
	maxAge  time.Duration
}

// NewTracker returns a tracker discarding measurements older than maxAge.
func NewTracker(maxAge time.Duration) *Tracker {
	if maxAge <= 0 {
		maxAge = 5 * time.Second
	}
	return &Tracker{maxAge: maxAge}
}

// Add records a measurement, keeping the window bounded.
func (t *Tracker) Add(m Measurement) {
	t.history = append(t.history, m)
	if len(t.history) > trackerWindow {
		t.history = t.history[len(t.history)-trackerWindow:]
	}
}

// valid returns the measurements still inside the age window.
func (t *Tracker) valid(now time.Time) []Measurement {
	out := t.history[:0:0]
	for _, m := range t.history {
		if now.Sub(m.At) <= t.maxAge {
			out = append(out, m)
		}
	}
	return out
}

// Current estimates the zoom level at time now from the trend of recent
// measurements. Returns (value, confidence, ok). A single measurement is
// returned directly with age-decayed confidence.
func (t *Tracker) Current(now time.Time) (float64, float64, bool) {
	ms := t.valid(now)
	if len(ms) == 0 {
		return 0, 0, false
	}
	if len(ms) == 1 {
		m := ms[0]
		ageFactor := 1.0 - now.Sub(m.At).Seconds()/t.maxAge.Seconds()
		if ageFactor < 0 {
			ageFactor = 0
		}
		return m.ZoomPercent, m.Confidence * ageFactor, true
	}
	// Weighted linear fit zoom(t) = a*t + b over seconds relative to now.
	var sw, swx, swy, swxx, swxy float64
	for _, m := range ms {
		x := m.At.Sub(now).Seconds()
		w := m.Confidence * (1.0 + x/t.maxAge.Seconds()) // recency weight, x <= 0
		if w <= 0 {
			continue
		}
		sw += w
		swx += w * x
		swy += w * m.ZoomPercent
		swxx += w * x * x
		swxy += w * x * m.ZoomPercent
	}
	det := sw*swxx - swx*swx
	if sw <= 0 || det == 0 {
		last := ms[len(ms)-1]
		return last.ZoomPercent, last.Confidence, true
	}
	// Value at x = 0 (now) is the intercept of the fit.
	b := (swxx*swy - swx*swxy) / det
	avgConf := 0.0
	for _, m := range ms {
		avgConf += m.Confidence
	}
	avgConf /= float64(len(ms))
	return b, avgConf, true
}

// RatePercentPerSecond reports the median zoom change rate over recent
// measurement pairs. Median is robust to single-frame outliers.
func (t *Tracker) RatePercentPerSecond(now time.Time) (float64, bool) {
	ms := t.valid(now)
	if len(ms) < 2 {
		return 0, false
	}
	var rates []float64
	for i := 1; i < len(ms); i++ {
		dt := ms[i].At.Sub(ms[i-1].At).Seconds()
		if dt <= 0 {
			continue
		}
		rates = append(rates, (ms[i].ZoomPercent-ms[i-1].ZoomPercent)/dt)
	}
	if len(rates) == 0 {
		return 0, false
	}
	sort.Float64s(rates)
	mid := len(rates) / 2
	if len(rates)%2 == 1 {
		return rates[mid], true
	}
	return (rates[mid-1] + rates[mid]) / 2, true
}
