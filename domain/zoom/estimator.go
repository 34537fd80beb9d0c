package zoom

import (
	"math"
	"sort"
)

// Estimate is the online result of applying a calibration model to a live
// metric value.
type Estimate struct {
	ZoomPercent  float64
	Uncertainty  float64 // residual-std based; inflated when extrapolated
	Detectable   bool    // |ZoomPercent| >= the model's minimum detectable zoom
	Extrapolated bool    // metric value outside the trained domain
	MetricName   string
}

// extrapolationPenalty inflates the uncertainty of out-of-domain estimates.
const extrapolationPenalty = 3.0

// EstimateFromModel applies the fitted regression to one metric value.
// Values outside the training domain are estimated anyway but marked
// extrapolated with inflated uncertainty; consumers decide whether to trust
// them.
func EstimateFromModel(value float64, m *Model) Estimate {
	est := Estimate{
		ZoomPercent: m.Predict(value),
		Uncertainty: m.ResidualStd,
		MetricName:  m.MetricName,
	}
	if !m.InDomain(value) {
		est.Extrapolated = true
		est.Uncertainty *= extrapolationPenalty
	}
	est.Detectable = math.Abs(est.ZoomPercent) >= m.MinDetectable
	return est
}

// Combine merges per-metric estimates into one. In-domain estimates are
// averaged with inverse-noise-floor weights (quieter metrics count more).
// When every metric extrapolates, the estimate from the lowest-noise-floor
// model is returned with its Extrapolated flag intact. The returned slice
// names the metrics that contributed.
func Combine(values map[string]float64, models []*Model) (Estimate, []string) {
	if len(models) == 0 {
		return Estimate{}, nil
	}
	type scored struct {
		est   Estimate
		model *Model
	}
	var inDomain, all []scored
	for _, m := range models {
		v, ok := values[m.MetricName]
		if !ok {
			continue
		}
		s := scored{est: EstimateFromModel(v, m), model: m}
		all = append(all, s)
		if !s.est.Extrapolated {
			inDomain = append(inDomain, s)
		}
	}
	if len(all) == 0 {
		return Estimate{}, nil
	}
	pick := inDomain
	if len(pick) == 0 {
		// All extrapolated: fall back to the quietest model, flag preserved.
		sort.Slice(all, func(i, j int) bool {
			return all[i].model.NoiseFloor < all[j].model.NoiseFloor
		})
		return all[0].est, []string{all[0].est.MetricName}
	}
	var sumW, sumWZ, sumWU, minDetectable float64
	minDetectable = math.Inf(1)
	contributors := make([]string, 0, len(pick))
	for _, s := range pick {
		w := 1.0 / (s.model.NoiseFloor + eps)
		sumW += w
		sumWZ += w * s.est.ZoomPercent
		sumWU += w * s.est.Uncertainty
		minDetectable = math.Min(minDetectable, s.model.MinDetectable)
		contributors = append(contributors, s.est.MetricName)
	}
	sort.Strings(contributors)
	combined := Estimate{
		ZoomPercent: sumWZ / sumW,
		Uncertainty: sumWU / sumW,
		MetricName:  contributors[0],
	}
	if len(contributors) > 1 {
		combined.MetricName = "combined"
	}
	combined.Detectable = math.Abs(combined.ZoomPercent) >= minDetectable
	return combined, contributors
}
