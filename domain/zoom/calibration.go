package zoom

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/soocke/map-align-go/domain/frame"
)

// TrainingSample pairs a metric value with the known zoom delta (percent)
// that produced it.
type TrainingSample struct {
	MetricValue float64
	ZoomPercent float64
}

// Model is a fitted, immutable mapping from metric value to zoom-delta
// percentage for one metric definition. Built offline by the Engine;
// consumed concurrently by many estimation calls without further mutation.
type Model struct {
	ID               uuid.UUID
	MetricName       string
	Degree           int
	Coeffs           []float64 // ascending power order
	R2               float64
	ResidualStd      float64
	Domain           [2]float64 // metric value range covered by training
	NoiseFloor       float64    // metric std under zero true zoom
	SignalPerPercent float64    // metric units per 1% zoom at the zero-zoom operating point
	MinDetectable    float64    // percent; k * noiseFloor / signalPerPercent
	TrainedAt        time.Time
}

// Predict applies the fitted regression to a metric value.
func (m *Model) Predict(value float64) float64 {
	return polyval(m.Coeffs, value)
}

// InDomain reports whether a metric value falls inside the trained range,
// with a small margin to absorb float jitter at the boundary.
func (m *Model) InDomain(value float64) bool {
	margin := (m.Domain[1] - m.Domain[0]) * 0.05
	return value >= m.Domain[0]-margin && value <= m.Domain[1]+margin
}

// Engine refusal errors. The caller keeps its previous model (if any) or
// operates without zoom estimation.
var (
	ErrInsufficientData = errors.New("zoom: too few distinct training points")
	ErrPoorFit          = errors.New("zoom: fit residual exceeds tolerance")
)

// EngineOptions bound the calibration procedure.
type EngineOptions struct {
	ZoomMaxPercent    float64 // training range upper bound (e.g. 5.0)
	ZoomStepPercent   float64 // training step (e.g. 0.1)
	NoiseTrials       int     // repeated perturbations for the noise floor
	NoiseSigma        float64 // noise magnitude for the floor measurement
	ConfidenceK       float64 // sigma multiplier for min-detectable zoom
	MinTrainingPoints int
	ResidualTolerance float64 // max acceptable residual std, percent

	// WorkingWidth/WorkingHeight is the resolution metrics are computed at
	// during calibration. Both sides of every training comparison are
	// downsampled to it, exactly as the live pipeline downsamples both
	// consecutive frames, so the shared resampling footprint cancels instead
	// of registering as a zoom signal. Zero means half the scene resolution.
	WorkingWidth  int
	WorkingHeight int
}

// Engine fits calibration models. It runs offline or on a background path
// and must never block live per-frame estimation.
type Engine struct {
	opts   EngineOptions
	logger *slog.Logger
}

// NewEngine returns a calibration engine; zero option fields fall back to
// the documented defaults.
func NewEngine(opts EngineOptions, logger *slog.Logger) *Engine {
	if opts.ZoomMaxPercent <= 0 {
		opts.ZoomMaxPercent = 5.0
	}
	if opts.ZoomStepPercent <= 0 {
		opts.ZoomStepPercent = 0.1
	}
	if opts.NoiseTrials < 2 {
		opts.NoiseTrials = 30
	}
	if opts.NoiseSigma <= 0 {
		opts.NoiseSigma = 3.0
	}
	if opts.ConfidenceK <= 0 {
		opts.ConfidenceK = 3.0
	}
	if opts.MinTrainingPoints < 3 {
		opts.MinTrainingPoints = 10
	}
	if opts.ResidualTolerance <= 0 {
		opts.ResidualTolerance = 0.5
	}
	return &Engine{opts: opts, logger: logger}
}

// DegreeFor selects the regression order per metric by observed curvature:
// the histogram divergence bends quadratically over the operating range, the
// ratio and count metrics stay close to linear.
func DegreeFor(metricName string) int {
	if metricName == "gradient_histogram" {
		return 2
	}
	return 1
}

// workingDims returns the metric resolution for a scene: the configured
// working size, or half the scene when unconfigured. Calibration must never
// compare at the scene's own resolution: only one side of a training pair
// passes through the zoom resize, and without a shared downsample its
// interpolation footprint would dominate the first training step.
func (e *Engine) workingDims(scene *frame.Frame) (int, int) {
	if e.opts.WorkingWidth > 0 && e.opts.WorkingHeight > 0 {
		return e.opts.WorkingWidth, e.opts.WorkingHeight
	}
	return scene.W / 2, scene.H / 2
}

// BuildTrainingSet synthesizes (metric value, known zoom delta) pairs by
// applying center-crop-and-resize zoom to the scene in fixed steps across
// the configured range, including the zero point. Reference and candidate
// are both downsampled to the working resolution before comparison.
func (e *Engine) BuildTrainingSet(m Metric, scene *frame.Frame) ([]TrainingSample, error) {
	if scene == nil {
		return nil, frame.ErrEmptyFrame
	}
	w, h := e.workingDims(scene)
	ref := scene.Downsample(w, h)
	var samples []TrainingSample
	for pct := 0.0; pct <= e.opts.ZoomMaxPercent+1e-9; pct += e.opts.ZoomStepPercent {
		zoomed := frame.SimulateZoom(scene, 1.0-pct/100.0)
		v, err := m.Compare(ref, zoomed.Downsample(w, h))
		if err != nil {
			return nil, err
		}
		samples = append(samples, TrainingSample{MetricValue: v, ZoomPercent: pct})
	}
	return samples, nil
}

// NoiseFloor estimates the metric's standard deviation under zero true zoom:
// the same scene is repeatedly perturbed with independent noise of fixed
// magnitude and compared against the clean reference, through the same
// working-resolution downsample the training pairs go through. Noise enters
// at scene resolution so the downsample attenuates it the way it attenuates
// live capture noise.
func (e *Engine) NoiseFloor(m Metric, scene *frame.Frame, rng *rand.Rand) (float64, error) {
	if scene == nil {
		return 0, frame.ErrEmptyFrame
	}
	w, h := e.workingDims(scene)
	ref := scene.Downsample(w, h)
	values := make([]float64, 0, e.opts.NoiseTrials)
	for i := 0; i < e.opts.NoiseTrials; i++ {
		noisy := frame.AddNoise(scene, e.opts.NoiseSigma, rng)
		v, err := m.Compare(ref, noisy.Downsample(w, h))
		if err != nil {
			return 0, err
		}
		values = append(values, v)
	}
	return stddev(values), nil
}

// Fit fits the regression mapping metric value to zoom percent and attaches
// goodness-of-fit. It refuses to produce a model when fewer than the minimum
// number of distinct training points are supplied or when the residual
// spread exceeds the tolerance; an unreliable model is worse than none.
// NoiseFloor and MinDetectable are left zero; Calibrate fills them.
func (e *Engine) Fit(m Metric, samples []TrainingSample) (*Model, error) {
	distinct := map[float64]struct{}{}
	for _, s := range samples {
		distinct[s.ZoomPercent] = struct{}{}
	}
	if len(distinct) < e.opts.MinTrainingPoints {
		return nil, fmt.Errorf("%w: %d < %d", ErrInsufficientData, len(distinct), e.opts.MinTrainingPoints)
	}
	degree := DegreeFor(m.Name())
	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, s := range samples {
		xs[i] = s.MetricValue
		ys[i] = s.ZoomPercent
		lo = math.Min(lo, s.MetricValue)
		hi = math.Max(hi, s.MetricValue)
	}
	coeffs, err := polyfit(xs, ys, degree)
	if err != nil {
		return nil, err
	}
	var ssRes, ssTot, meanY float64
	for _, y := range ys {
		meanY += y
	}
	meanY /= float64(len(ys))
	residuals := make([]float64, len(ys))
	for i := range ys {
		r := ys[i] - polyval(coeffs, xs[i])
		residuals[i] = r
		ssRes += r * r
		d := ys[i] - meanY
		ssTot += d * d
	}
	residualStd := stddev(residuals)
	if residualStd > e.opts.ResidualTolerance {
		return nil, fmt.Errorf("%w: residual std %.4f > %.4f", ErrPoorFit, residualStd, e.opts.ResidualTolerance)
	}
	r2 := 0.0
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}
	// Sensitivity at the zero-zoom operating point: the fitted derivative
	// d(percent)/d(metric) there is what converts metric noise into percent
	// error. A domain-wide secant would be dominated by the steep end of a
	// curved fit and overstate sensitivity near zero.
	x0 := xs[0]
	minZoom := ys[0]
	for i := range ys {
		if ys[i] < minZoom {
			minZoom = ys[i]
			x0 = xs[i]
		}
	}
	percentPerUnit := math.Abs(polyvalDeriv(coeffs, x0))
	if percentPerUnit < eps {
		// Locally flat fit (quadratic vertex at the operating point): fall
		// back to the domain secant rather than claim infinite sensitivity.
		zoomSpan := maxFloat(ys) - minFloat(ys)
		if hi > lo && zoomSpan > 0 {
			percentPerUnit = zoomSpan / (hi - lo)
		}
	}
	signal := 0.0
	if percentPerUnit > eps {
		signal = 1 / percentPerUnit
	}
	model := &Model{
		ID:               uuid.New(),
		MetricName:       m.Name(),
		Degree:           degree,
		Coeffs:           coeffs,
		R2:               r2,
		ResidualStd:      residualStd,
		Domain:           [2]float64{lo, hi},
		SignalPerPercent: signal,
		TrainedAt:        time.Now(),
	}
	if e.logger != nil {
		e.logger.Info("calibration fit",
			"metric", model.MetricName, "degree", degree,
			"r2", r2, "residualStd", residualStd,
			"domainLo", lo, "domainHi", hi)
	}
	return model, nil
}

// Calibrate is the full offline procedure for one metric: synthesize the
// training corpus, fit the regression, measure the noise floor, and derive
// the minimum detectable zoom at the configured confidence multiplier.
func (e *Engine) Calibrate(m Metric, scene *frame.Frame, rng *rand.Rand) (*Model, error) {
	samples, err := e.BuildTrainingSet(m, scene)
	if err != nil {
		return nil, err
	}
	model, err := e.Fit(m, samples)
	if err != nil {
		return nil, err
	}
	floor, err := e.NoiseFloor(m, scene, rng)
	if err != nil {
		return nil, err
	}
	model.NoiseFloor = floor
	if model.SignalPerPercent < eps {
		return nil, fmt.Errorf("%w: metric insensitive to zoom on this scene", ErrPoorFit)
	}
	model.MinDetectable = e.opts.ConfidenceK * floor / model.SignalPerPercent
	if e.logger != nil {
		e.logger.Info("calibration complete",
			"metric", model.MetricName,
			"noiseFloor", floor,
			"minDetectablePct", model.MinDetectable)
	}
	return model, nil
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var m2 float64
	for _, v := range values {
		d := v - mean
		m2 += d * d
	}
	return math.Sqrt(m2 / float64(len(values)-1))
}

func minFloat(v []float64) float64 {
	out := math.Inf(1)
	for _, x := range v {
		out = math.Min(out, x)
	}
	return out
}

func maxFloat(v []float64) float64 {
	out := math.Inf(-1)
	for _, x := range v {
		out = math.Max(out, x)
	}
	return out
}
