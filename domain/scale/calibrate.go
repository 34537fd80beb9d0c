package scale

import (
	"errors"
	"sort"

	"github.com/soocke/map-align-go/domain/features"
)

// LabeledDigest pairs a frame digest with the scale the external matcher
// eventually confirmed for that frame. MatchedScale below 1.0 means the
// frame only matched the reference at a reduced scale, i.e. it was zoomed
// out.
type LabeledDigest struct {
	Digest       features.Digest
	MatchedScale float64
}

// ErrInsufficientSamples is returned when too few labeled digests exist in
// either class to separate the density thresholds.
var ErrInsufficientSamples = errors.New("scale: not enough labeled digests per class")

// ErrInseparable is returned when the labeled classes overlap so much that no
// density split improves on the current thresholds.
var ErrInseparable = errors.New("scale: labeled digest densities are inseparable")

const minSamplesPerClass = 8

// RefitThresholds re-derives the density decision boundaries from labeled
// (digest, matched-scale) pairs. It leaves the informational and energy
// thresholds untouched and preserves the four-tier policy; only the density
// split points move. The current thresholds are returned unchanged alongside
// the error when the data is insufficient.
func RefitThresholds(cur Thresholds, samples []LabeledDigest) (Thresholds, error) {
	var zoomedOut, normal []float64
	for _, s := range samples {
		if s.MatchedScale < 1.0 {
			zoomedOut = append(zoomedOut, s.Digest.FeatureDensity)
		} else {
			normal = append(normal, s.Digest.FeatureDensity)
		}
	}
	if len(zoomedOut) < minSamplesPerClass || len(normal) < minSamplesPerClass {
		return cur, ErrInsufficientSamples
	}
	sort.Float64s(zoomedOut)
	sort.Float64s(normal)
	// Very-low boundary: the bulk of zoomed-out frames sit below it.
	veryLow := percentile(zoomedOut, 0.90)
	// Low boundary: midway between the very-low boundary and the onset of
	// normal-frame densities.
	low := (veryLow + percentile(normal, 0.10)) / 2
	if low <= veryLow {
		return cur, ErrInseparable
	}
	out := cur
	out.DensityVeryLow = veryLow
	out.DensityLow = low
	return out, nil
}

// percentile returns the value at fraction q of a sorted slice.
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(q * float64(len(sorted)-1))
	return sorted[idx]
}
