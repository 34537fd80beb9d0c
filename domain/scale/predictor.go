// Package scale predicts which candidate scales an external matcher should
// try first, from a cheap per-frame feature digest.
package scale

import (
	"log/slog"
	"sort"

	"github.com/soocke/map-align-go/config"
	"github.com/soocke/map-align-go/domain/features"
	"github.com/soocke/map-align-go/domain/frame"
)

// Thresholds are the calibrated decision constants of the predictor.
// ResponseWeak/ResponseNormal are informational: they label digest quality in
// logs but do not influence branching.
type Thresholds struct {
	DensityVeryLow float64
	DensityLow     float64
	ResponseWeak   float64
	ResponseNormal float64
	EnergyFloor    float64
	SizeCoarse     float64
}

// ThresholdsFromConfig pulls the predictor constants out of the app config.
func ThresholdsFromConfig(cfg *config.Config) Thresholds {
	return Thresholds{
		DensityVeryLow: cfg.DensityVeryLow,
		DensityLow:     cfg.DensityLow,
		ResponseWeak:   cfg.ResponseWeak,
		ResponseNormal: cfg.ResponseNormal,
		EnergyFloor:    cfg.EnergyFloor,
		SizeCoarse:     cfg.SizeCoarse,
	}
}

// Prediction is the immutable result of one scale prediction: an ordered
// candidate scale list (a permutation of the configured scale set, never
// empty), a confidence in [0,1], the digest that produced it, and a symbolic
// reason tag. The order is a hint; the matcher may still fall back to an
// exhaustive search.
type Prediction struct {
	Scales     []float64
	Confidence float64
	Digest     features.Digest
	Reason     string
}

// rule pairs a predicate with its outcome. Rules are evaluated top-down and
// the first match wins; each is checked only if prior rules did not match.
type rule struct {
	reason     string
	confidence float64
	order      [3]int // permutation indices into the ascending scale set
	match      func(features.Digest, Thresholds) bool
}

// The four-tier policy. The ordering is a calibrated heuristic and is part of
// the contract; recalibrate thresholds, not the tiers.
var rules = []rule{
	{
		reason:     "very_low_density",
		confidence: 0.85,
		order:      [3]int{1, 2, 0}, // [0.5, 1.0, 0.25]
		match: func(d features.Digest, t Thresholds) bool {
			return d.FeatureDensity < t.DensityVeryLow
		},
	},
	{
		reason:     "low_density_large_features",
		confidence: 0.70,
		order:      [3]int{1, 0, 2}, // [0.5, 0.25, 1.0]
		match: func(d features.Digest, t Thresholds) bool {
			return d.FeatureDensity < t.DensityLow && d.MeanSize > t.SizeCoarse
		},
	},
	{
		reason:     "low_gradient_energy",
		confidence: 0.60,
		order:      [3]int{1, 0, 2}, // [0.5, 0.25, 1.0]
		match: func(d features.Digest, t Thresholds) bool {
			return d.GradientEnergy < t.EnergyFloor
		},
	},
	{
		reason:     "normal",
		confidence: 0.50,
		order:      [3]int{0, 1, 2}, // [0.25, 0.5, 1.0]
		match:      func(features.Digest, Thresholds) bool { return true },
	},
}

// Predictor emits ordered candidate-scale lists from frame digests. Pure and
// safe for concurrent use: all state is fixed at construction.
type Predictor struct {
	thresholds  Thresholds
	scaleSet    []float64 // ascending
	roiFraction float64
	detector    features.DetectorConfig
	logger      *slog.Logger
}

// NewPredictor builds a predictor over the given ascending scale set. The
// set is copied and sorted; it must have at least one element (the default
// set is substituted otherwise).
func NewPredictor(th Thresholds, scaleSet []float64, roiFraction float64, det features.DetectorConfig, logger *slog.Logger) *Predictor {
	set := make([]float64, len(scaleSet))
	copy(set, scaleSet)
	sort.Float64s(set)
	if len(set) == 0 {
		set = []float64{0.25, 0.5, 1.0}
	}
	if roiFraction <= 0 || roiFraction > 1 {
		roiFraction = 0.5
	}
	return &Predictor{thresholds: th, scaleSet: set, roiFraction: roiFraction, detector: det, logger: logger}
}

// DigestFor extracts the feature digest the predictor decides on: the
// central ROI of the frame, analyzed with the fixed cheap detector config.
func (p *Predictor) DigestFor(f *frame.Frame) features.Digest {
	if f == nil {
		return features.Digest{}
	}
	return features.ExtractDigest(f.CenterROI(p.roiFraction), p.detector)
}

// Predict runs the full path: digest extraction plus the decision policy.
func (p *Predictor) Predict(f *frame.Frame) Prediction {
	return p.FromDigest(p.DigestFor(f))
}

// FromDigest applies the four-tier decision policy to an already computed
// digest.
func (p *Predictor) FromDigest(d features.Digest) Prediction {
	for _, r := range rules {
		if !r.match(d, p.thresholds) {
			continue
		}
		pred := Prediction{
			Scales:     p.orderedScales(r.order),
			Confidence: r.confidence,
			Digest:     d,
			Reason:     r.reason,
		}
		if p.logger != nil {
			p.logger.Debug("scale prediction",
				"reason", pred.Reason,
				"confidence", pred.Confidence,
				"density", d.FeatureDensity,
				"meanSize", d.MeanSize,
				"gradEnergy", d.GradientEnergy,
				"responseQuality", p.responseQuality(d.MeanResponse))
		}
		return pred
	}
	// Unreachable: the last rule always matches.
	return Prediction{Scales: append([]float64(nil), p.scaleSet...), Confidence: 0.5, Digest: d, Reason: "normal"}
}

// orderedScales maps a permutation of {0,1,2} onto the scale set. Sets with
// more than three scales keep the remaining scales appended in ascending
// order; sets with fewer simply take what exists.
func (p *Predictor) orderedScales(order [3]int) []float64 {
	out := make([]float64, 0, len(p.scaleSet))
	used := make([]bool, len(p.scaleSet))
	for _, idx := range order {
		if idx < len(p.scaleSet) && !used[idx] {
			out = append(out, p.scaleSet[idx])
			used[idx] = true
		}
	}
	for i, s := range p.scaleSet {
		if !used[i] {
			out = append(out, s)
		}
	}
	return out
}

// responseQuality labels mean response against the informational thresholds.
func (p *Predictor) responseQuality(meanResponse float64) string {
	switch {
	case meanResponse < p.thresholds.ResponseWeak:
		return "weak"
	case meanResponse < p.thresholds.ResponseNormal:
		return "normal"
	default:
		return "sharp"
	}
}
