package scale

import (
	"math"
	"testing"

	"github.com/soocke/map-align-go/config"
	"github.com/soocke/map-align-go/domain/features"
	"github.com/soocke/map-align-go/domain/frame"
)

func testPredictor() *Predictor {
	cfg := config.DefaultConfig()
	return NewPredictor(ThresholdsFromConfig(cfg), cfg.ScaleSet, cfg.ROIFraction, features.DefaultDetectorConfig(), nil)
}

func scalesEqual(got, want []float64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			return false
		}
	}
	return true
}

func TestFromDigest_PolicyScenarios(t *testing.T) {
	tests := []struct {
		name       string
		digest     features.Digest
		scales     []float64
		confidence float64
		reason     string
	}{
		{
			name:       "very low density",
			digest:     features.Digest{FeatureDensity: 1e-4, GradientEnergy: 8.0},
			scales:     []float64{0.5, 1.0, 0.25},
			confidence: 0.85,
			reason:     "very_low_density",
		},
		{
			name:       "low density with coarse features",
			digest:     features.Digest{FeatureDensity: 4e-4, MeanSize: 25, GradientEnergy: 8.0},
			scales:     []float64{0.5, 0.25, 1.0},
			confidence: 0.70,
			reason:     "low_density_large_features",
		},
		{
			name:       "low gradient energy",
			digest:     features.Digest{FeatureDensity: 2e-3, GradientEnergy: 3.0},
			scales:     []float64{0.5, 0.25, 1.0},
			confidence: 0.60,
			reason:     "low_gradient_energy",
		},
		{
			name:       "normal",
			digest:     features.Digest{FeatureDensity: 2e-3, GradientEnergy: 8.0},
			scales:     []float64{0.25, 0.5, 1.0},
			confidence: 0.50,
			reason:     "normal",
		},
	}
	p := testPredictor()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pred := p.FromDigest(tc.digest)
			if !scalesEqual(pred.Scales, tc.scales) {
				t.Fatalf("scales = %v, want %v", pred.Scales, tc.scales)
			}
			if pred.Confidence != tc.confidence {
				t.Fatalf("confidence = %f, want %f", pred.Confidence, tc.confidence)
			}
			if pred.Reason != tc.reason {
				t.Fatalf("reason = %q, want %q", pred.Reason, tc.reason)
			}
		})
	}
}

func TestFromDigest_TieBreakOrder(t *testing.T) {
	// Digest matching both tier 2 and tier 3 conditions must resolve to tier 2.
	p := testPredictor()
	d := features.Digest{FeatureDensity: 4e-4, MeanSize: 25, GradientEnergy: 1.0}
	pred := p.FromDigest(d)
	if pred.Reason != "low_density_large_features" {
		t.Fatalf("reason = %q, want tier 2 to win the tie", pred.Reason)
	}
}

func TestPredict_ZeroKeypointFrame(t *testing.T) {
	p := testPredictor()
	pix := make([]uint8, 240*108)
	for i := range pix {
		pix[i] = 128
	}
	f, _ := frame.New(pix, 240, 108)
	pred := p.Predict(f)
	if len(pred.Scales) == 0 {
		t.Fatal("prediction has empty scale list")
	}
	// Flat frame: zero density matches tier 1.
	if pred.Reason != "very_low_density" || pred.Confidence != 0.85 {
		t.Fatalf("flat frame classified as %q (%.2f), want very_low_density (0.85)", pred.Reason, pred.Confidence)
	}
}

func TestPredict_ScalesAlwaysPermutationOfSet(t *testing.T) {
	p := testPredictor()
	for _, d := range []features.Digest{
		{},
		{FeatureDensity: 1e-4},
		{FeatureDensity: 4e-4, MeanSize: 30},
		{FeatureDensity: 1e-2, GradientEnergy: 50},
	} {
		pred := p.FromDigest(d)
		if len(pred.Scales) != 3 {
			t.Fatalf("scale list length %d, want 3", len(pred.Scales))
		}
		seen := map[float64]bool{}
		for _, s := range pred.Scales {
			seen[s] = true
		}
		for _, s := range []float64{0.25, 0.5, 1.0} {
			if !seen[s] {
				t.Fatalf("scales %v missing %f", pred.Scales, s)
			}
		}
	}
}

func TestRefitThresholds_InsufficientSamples(t *testing.T) {
	cur := Thresholds{DensityVeryLow: 2e-4, DensityLow: 5e-4}
	got, err := RefitThresholds(cur, nil)
	if err != ErrInsufficientSamples {
		t.Fatalf("err = %v, want ErrInsufficientSamples", err)
	}
	if got != cur {
		t.Fatalf("thresholds changed on refusal: %+v", got)
	}
}

func TestRefitThresholds_SeparatesClasses(t *testing.T) {
	cur := Thresholds{DensityVeryLow: 2e-4, DensityLow: 5e-4}
	var samples []LabeledDigest
	for i := 0; i < 10; i++ {
		samples = append(samples, LabeledDigest{
			Digest:       features.Digest{FeatureDensity: 1e-4 + float64(i)*1e-6},
			MatchedScale: 0.5,
		})
		samples = append(samples, LabeledDigest{
			Digest:       features.Digest{FeatureDensity: 1e-3 + float64(i)*1e-5},
			MatchedScale: 1.0,
		})
	}
	got, err := RefitThresholds(cur, samples)
	if err != nil {
		t.Fatalf("RefitThresholds: %v", err)
	}
	if got.DensityVeryLow >= got.DensityLow {
		t.Fatalf("very low %.6f >= low %.6f", got.DensityVeryLow, got.DensityLow)
	}
	if got.DensityVeryLow < 1e-4 || got.DensityVeryLow > 1e-3 {
		t.Fatalf("very low boundary %.6f outside class gap", got.DensityVeryLow)
	}
}
