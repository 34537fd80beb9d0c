// Package align is the per-frame analysis pipeline: scale prediction for the
// external matcher's search order, and zoom-delta estimation against the
// previous frame.
package align

import (
	"log/slog"
	"sync/atomic"

	"github.com/corona10/goimagehash"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/soocke/map-align-go/domain/features"
	"github.com/soocke/map-align-go/domain/frame"
	"github.com/soocke/map-align-go/domain/scale"
	"github.com/soocke/map-align-go/domain/zoom"
)

// ModelSet is an immutable snapshot of the active calibration models, one
// per metric name. Published via atomic swap; never mutated after creation.
type ModelSet struct {
	Models map[string]*zoom.Model
}

// List returns the models in unspecified order.
func (s *ModelSet) List() []*zoom.Model {
	out := make([]*zoom.Model, 0, len(s.Models))
	for _, m := range s.Models {
		out = append(out, m)
	}
	return out
}

// Result is the outcome of analyzing one frame.
type Result struct {
	Sequence     uint64
	Prediction   scale.Prediction
	Estimate     *zoom.Estimate // nil when no previous frame, no models, or scene changed
	Contributors []string       // metric names behind Estimate
	SceneChanged bool           // consecutive frames judged unrelated
}

// Options bound the analyzer's working state.
type Options struct {
	WorkingW        int
	WorkingH        int
	MaxHashDistance int // scene-change guard threshold (Hamming distance)
	DigestCacheSize int
}

// Analyzer runs prediction and estimation per frame. Analyze must be called
// from a single goroutine; SetModels may be called concurrently from a
// background recalibration path (atomic snapshot swap, no locking).
type Analyzer struct {
	predictor *scale.Predictor
	metrics   []zoom.Metric
	models    atomic.Pointer[ModelSet]
	digests   *lru.Cache[uint64, features.Digest]
	opts      Options
	logger    *slog.Logger

	prevWork *frame.Frame
	prevHash *goimagehash.ImageHash
}

// NewAnalyzer wires a predictor and metric set into a pipeline.
func NewAnalyzer(p *scale.Predictor, metrics []zoom.Metric, opts Options, logger *slog.Logger) (*Analyzer, error) {
	if opts.WorkingW <= 0 {
		opts.WorkingW = 240
	}
	if opts.WorkingH <= 0 {
		opts.WorkingH = 108
	}
	if opts.MaxHashDistance <= 0 {
		opts.MaxHashDistance = 10
	}
	if opts.DigestCacheSize <= 0 {
		opts.DigestCacheSize = 32
	}
	cache, err := lru.New[uint64, features.Digest](opts.DigestCacheSize)
	if err != nil {
		return nil, err
	}
	return &Analyzer{predictor: p, metrics: metrics, digests: cache, opts: opts, logger: logger}, nil
}

// SetModels atomically publishes a new immutable model snapshot. A nil map
// clears the estimator (prediction-only operation).
func (a *Analyzer) SetModels(models map[string]*zoom.Model) {
	if models == nil {
		a.models.Store(nil)
		return
	}
	copied := make(map[string]*zoom.Model, len(models))
	for k, v := range models {
		copied[k] = v
	}
	a.models.Store(&ModelSet{Models: copied})
}

// CurrentModels returns the active snapshot, or nil.
func (a *Analyzer) CurrentModels() *ModelSet { return a.models.Load() }

// Analyze produces a scale prediction for the frame and, when the previous
// frame belongs to the same scene and calibration models are available, a
// combined zoom-delta estimate. Every failure path degrades to
// prediction-only output; the pipeline never halts on estimation problems.
func (a *Analyzer) Analyze(f *frame.Frame, seq uint64) Result {
	res := Result{Sequence: seq}
	digest, ok := a.digests.Get(seq)
	if !ok {
		digest = a.predictor.DigestFor(f)
		a.digests.Add(seq, digest)
	}
	res.Prediction = a.predictor.FromDigest(digest)

	work := f.Downsample(a.opts.WorkingW, a.opts.WorkingH)
	hash, hashErr := goimagehash.PerceptionHash(work.Image())

	defer func() {
		a.prevWork = work
		if hashErr == nil {
			a.prevHash = hash
		} else {
			a.prevHash = nil
		}
	}()

	if a.prevWork == nil {
		return res
	}
	if hashErr == nil && a.prevHash != nil {
		dist, err := a.prevHash.Distance(hash)
		if err == nil && dist > a.opts.MaxHashDistance {
			res.SceneChanged = true
			if a.logger != nil {
				a.logger.Debug("scene change, skipping zoom estimate", "seq", seq, "hashDistance", dist)
			}
			return res
		}
	}
	set := a.models.Load()
	if set == nil || len(set.Models) == 0 {
		return res
	}
	values := make(map[string]float64, len(a.metrics))
	for _, m := range a.metrics {
		v, err := m.Compare(a.prevWork, work)
		if err != nil {
			if a.logger != nil {
				a.logger.Debug("metric failed", "metric", m.Name(), "err", err)
			}
			continue
		}
		values[m.Name()] = v
	}
	est, contributors := zoom.Combine(values, set.List())
	if len(contributors) > 0 {
		res.Estimate = &est
		res.Contributors = contributors
	}
	return res
}
