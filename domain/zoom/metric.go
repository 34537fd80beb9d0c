// Package zoom quantifies small, sub-1% zoom changes between two frames of
// the same scene: scale-sensitive metrics, offline calibration of
// metric-to-zoom regressions, and online estimation with uncertainty bounds.
package zoom

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/soocke/map-align-go/domain/frame"
)

const eps = 1e-10

// Metric compares a reference frame against a candidate frame of identical
// dimensions and returns one scale-sensitive scalar. Implementations are
// pure and stateless.
type Metric interface {
	Name() string
	Compare(ref, cand *frame.Frame) (float64, error)
	// NoChange is the value the metric takes for identical frames.
	NoChange() float64
}

// ErrDimensionMismatch is returned when the two frames differ in size.
var ErrDimensionMismatch = errors.New("zoom: frame dimensions differ")

var (
	registryMu sync.RWMutex
	registry   = map[string]Metric{}
)

// Register adds a metric definition. New metrics slot in without changes to
// the estimator contract. Re-registering a name replaces the previous entry.
func Register(m Metric) {
	registryMu.Lock()
	registry[m.Name()] = m
	registryMu.Unlock()
}

// Lookup returns a registered metric by name.
func Lookup(name string) (Metric, bool) {
	registryMu.RLock()
	m, ok := registry[name]
	registryMu.RUnlock()
	return m, ok
}

// All returns the registered metrics in unspecified order.
func All() []Metric {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Metric, 0, len(registry))
	for _, m := range registry {
		out = append(out, m)
	}
	return out
}

func checkDims(ref, cand *frame.Frame) error {
	if ref == nil || cand == nil {
		return errors.New("zoom: nil frame")
	}
	if ref.W != cand.W || ref.H != cand.H {
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionMismatch, ref.W, ref.H, cand.W, cand.H)
	}
	return nil
}

// GradientHistogram measures the chi-square divergence between normalized
// gradient-magnitude histograms. Symmetric; 0 for identical frames; grows
// with zoom as fine detail redistributes across magnitude bins.
type GradientHistogram struct {
	Bins int
}

func (GradientHistogram) Name() string      { return "gradient_histogram" }
func (GradientHistogram) NoChange() float64 { return 0 }

func (m GradientHistogram) Compare(ref, cand *frame.Frame) (float64, error) {
	if err := checkDims(ref, cand); err != nil {
		return 0, err
	}
	bins := m.Bins
	if bins < 4 {
		bins = 32
	}
	h1 := gradientHistogram(ref, bins)
	h2 := gradientHistogram(cand, bins)
	var div float64
	for i := 0; i < bins; i++ {
		d := h1[i] - h2[i]
		div += d * d / (h1[i] + h2[i] + eps)
	}
	return div, nil
}

// gradientHistogram buckets Sobel magnitudes into bins over [0, 255] and
// normalizes to a probability distribution. Empty interiors yield a uniform
// zero histogram, which the epsilon in the divergence guards.
func gradientHistogram(f *frame.Frame, bins int) []float64 {
	hist := make([]float64, bins)
	if f.W < 3 || f.H < 3 {
		return hist
	}
	total := 0.0
	scale := float64(bins) / 256.0
	for y := 1; y < f.H-1; y++ {
		for x := 1; x < f.W-1; x++ {
			mag := gradientMagnitudeAt(f, x, y)
			if mag > 255 {
				mag = 255
			}
			hist[int(mag*scale)]++
			total++
		}
	}
	if total > 0 {
		for i := range hist {
			hist[i] /= total
		}
	}
	return hist
}

func gradientMagnitudeAt(f *frame.Frame, x, y int) float64 {
	w := f.W
	p := func(dx, dy int) float64 { return float64(f.Pix[(y+dy)*w+(x+dx)]) }
	gx := -p(-1, -1) - 2*p(-1, 0) - p(-1, 1) + p(1, -1) + 2*p(1, 0) + p(1, 1)
	gy := -p(-1, -1) - 2*p(0, -1) - p(1, -1) + p(-1, 1) + 2*p(0, 1) + p(1, 1)
	// Sobel responses reach 4*255; normalize back to the intensity range so
	// histogram bins match the configured [0,255] magnitude range.
	return math.Sqrt(gx*gx+gy*gy) / 4
}

// LaplacianVariance is the ratio of second-derivative response variances,
// candidate over reference. 1 for identical frames; drifts away from 1 as
// zoom adds or removes fine detail.
type LaplacianVariance struct{}

func (LaplacianVariance) Name() string      { return "laplacian_variance" }
func (LaplacianVariance) NoChange() float64 { return 1 }

func (LaplacianVariance) Compare(ref, cand *frame.Frame) (float64, error) {
	if err := checkDims(ref, cand); err != nil {
		return 0, err
	}
	return laplacianVar(cand) / (laplacianVar(ref) + eps), nil
}

// laplacianVar computes the variance of the 4-neighbour Laplacian over the
// frame interior.
func laplacianVar(f *frame.Frame) float64 {
	if f.W < 3 || f.H < 3 {
		return 0
	}
	var sum, sum2 float64
	n := 0
	for y := 1; y < f.H-1; y++ {
		for x := 1; x < f.W-1; x++ {
			c := float64(f.Pix[y*f.W+x])
			lap := float64(f.Pix[(y-1)*f.W+x]) + float64(f.Pix[(y+1)*f.W+x]) +
				float64(f.Pix[y*f.W+x-1]) + float64(f.Pix[y*f.W+x+1]) - 4*c
			sum += lap
			sum2 += lap * lap
			n++
		}
	}
	if n == 0 {
		return 0
	}
	mean := sum / float64(n)
	return sum2/float64(n) - mean*mean
}

// EdgeDensity counts edge pixels (gradient magnitude above a threshold) in
// each frame and returns the percentage delta of the candidate count from
// the reference count. Signed; 0 for identical frames. Intended for frames
// already reduced to the working resolution.
type EdgeDensity struct {
	Threshold float64
}

func (EdgeDensity) Name() string      { return "edge_density" }
func (EdgeDensity) NoChange() float64 { return 0 }

func (m EdgeDensity) Compare(ref, cand *frame.Frame) (float64, error) {
	if err := checkDims(ref, cand); err != nil {
		return 0, err
	}
	th := m.Threshold
	if th <= 0 {
		th = 60
	}
	refCount := edgeCount(ref, th)
	candCount := edgeCount(cand, th)
	if refCount == 0 {
		// Degenerate reference (no edges): defined as zero delta.
		return 0, nil
	}
	return 100 * float64(candCount-refCount) / float64(refCount), nil
}

func edgeCount(f *frame.Frame, threshold float64) int {
	if f.W < 3 || f.H < 3 {
		return 0
	}
	count := 0
	for y := 1; y < f.H-1; y++ {
		for x := 1; x < f.W-1; x++ {
			if gradientMagnitudeAt(f, x, y) > threshold {
				count++
			}
		}
	}
	return count
}

// DefaultMetrics returns the three built-in metric definitions configured
// with the given histogram bin count and edge threshold, and registers them.
func DefaultMetrics(bins int, edgeThreshold float64) []Metric {
	ms := []Metric{
		GradientHistogram{Bins: bins},
		LaplacianVariance{},
		EdgeDensity{Threshold: edgeThreshold},
	}
	for _, m := range ms {
		Register(m)
	}
	return ms
}

// compile-time interface checks
var (
	_ Metric = GradientHistogram{}
	_ Metric = LaplacianVariance{}
	_ Metric = EdgeDensity{}
)
