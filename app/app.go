// Package app wires capture, calibration, and per-frame analysis into a
// headless run loop.
package app

import (
	"image"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/soocke/map-align-go/capture"
	"github.com/soocke/map-align-go/config"
	"github.com/soocke/map-align-go/domain/align"
	"github.com/soocke/map-align-go/domain/features"
	"github.com/soocke/map-align-go/domain/frame"
	"github.com/soocke/map-align-go/domain/scale"
	"github.com/soocke/map-align-go/domain/zoom"
)

// firstFrameTimeout bounds how long calibration waits for a live frame
// before falling back to a synthetic scene.
const firstFrameTimeout = 10 * time.Second

// trackerMaxAge is how long a zoom measurement stays usable as a prior.
const trackerMaxAge = 5 * time.Second

// App owns the capture service and the analysis pipeline. Calibration runs
// on a background goroutine and publishes models to the analyzer via its
// atomic snapshot; the per-frame loop never waits on it.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	service  *capture.Service
	analyzer *align.Analyzer
	tracker  *align.Tracker
	engine   *zoom.Engine
	metrics  []zoom.Metric

	frameWait time.Duration // calibration's wait for a first live frame

	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// NewApp builds the full pipeline from configuration.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	det := features.DetectorConfig{
		Levels:    cfg.DetectorLevels,
		Threshold: cfg.DetectorThreshold,
	}
	predictor := scale.NewPredictor(scale.ThresholdsFromConfig(cfg), cfg.ScaleSet, cfg.ROIFraction, det, logger)
	metrics := zoom.DefaultMetrics(cfg.HistogramBins, cfg.EdgeThreshold)
	analyzer, err := align.NewAnalyzer(predictor, metrics, align.Options{
		WorkingW:        cfg.WorkingWidth,
		WorkingH:        cfg.WorkingHeight,
		MaxHashDistance: cfg.MaxHashDistance,
	}, logger)
	if err != nil {
		return nil, err
	}
	engine := zoom.NewEngine(zoom.EngineOptions{
		ZoomMaxPercent:    cfg.ZoomMaxPercent,
		ZoomStepPercent:   cfg.ZoomStepPercent,
		NoiseTrials:       cfg.NoiseTrials,
		NoiseSigma:        cfg.NoiseSigma,
		ConfidenceK:       cfg.ConfidenceK,
		MinTrainingPoints: cfg.MinTrainingPoints,
		ResidualTolerance: cfg.ResidualTolerance,
		// Training metrics are computed at the same resolution the analyzer
		// compares live frames at.
		WorkingWidth:  cfg.WorkingWidth,
		WorkingHeight: cfg.WorkingHeight,
	}, logger)

	interval := time.Duration(cfg.CaptureIntervalMs) * time.Millisecond
	service := capture.NewService(interval, selectionFromConfig(cfg), nil, capture.GameFocus(cfg.GameWindowTitle), logger)

	return &App{
		cfg:       cfg,
		logger:    logger,
		service:   service,
		analyzer:  analyzer,
		tracker:   align.NewTracker(trackerMaxAge),
		engine:    engine,
		metrics:   metrics,
		frameWait: firstFrameTimeout,
	}, nil
}

// Analyzer exposes the pipeline for callers that feed frames directly.
func (a *App) Analyzer() *align.Analyzer { return a.analyzer }

// Start launches capture, background calibration, and the analysis loop.
// Idempotent.
func (a *App) Start() {
	if !a.running.CompareAndSwap(false, true) {
		return
	}
	a.stop = make(chan struct{})
	a.done = make(chan struct{})
	a.service.Start()
	go a.calibrate()
	go a.run()
}

// Stop halts the loops and waits for the analysis goroutine to drain.
// Idempotent.
func (a *App) Stop() {
	if !a.running.CompareAndSwap(true, false) {
		return
	}
	close(a.stop)
	a.service.Stop()
	<-a.done
}

// calibrate trains one model per metric on a reference scene and publishes
// the set atomically. Failures are logged per metric; a metric that refuses
// to calibrate simply contributes no model.
func (a *App) calibrate() {
	scene := a.calibrationScene()
	if scene == nil {
		return // shutting down
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	models := make(map[string]*zoom.Model, len(a.metrics))
	for _, m := range a.metrics {
		model, err := a.engine.Calibrate(m, scene, rng)
		if err != nil {
			a.logger.Warn("metric calibration refused", "metric", m.Name(), "err", err)
			continue
		}
		models[m.Name()] = model
	}
	if len(models) == 0 {
		a.logger.Warn("no metric calibrated, running prediction-only")
		return
	}
	a.analyzer.SetModels(models)
	a.logger.Info("calibration published", "models", len(models))
}

// calibrationScene waits briefly for a live frame and falls back to a
// synthetic scene so calibration still produces usable models on a blank
// or unfocused screen. Returns nil only when the app is stopping.
func (a *App) calibrationScene() *frame.Frame {
	deadline := time.After(a.frameWait)
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-a.stop:
			return nil
		case <-deadline:
			a.logger.Info("no live frame yet, calibrating on synthetic scene")
			return frame.SyntheticScene(a.cfg.WorkingWidth*4, a.cfg.WorkingHeight*4)
		case <-tick.C:
		}
		snap := a.service.LatestFrame()
		if snap.Sequence == 0 || snap.Image == nil {
			continue
		}
		f, err := frame.FromRGBA(snap.Image)
		if err != nil {
			continue
		}
		// The analysis loop recycles a snapshot's buffer once a newer one has
		// been processed. If the sequence moved while we converted, our read
		// may have raced that recycle; discard the copy and take a fresh one.
		// An unchanged sequence proves no newer snapshot was published before
		// the conversion finished, so no recycle can have touched this buffer.
		if a.service.LatestFrame().Sequence != snap.Sequence {
			continue
		}
		return f
	}
}

// run is the per-frame analysis loop. It processes each captured sequence at
// most once and recycles a snapshot's buffer only after processing a newer
// one. The calibration goroutine is the only other snapshot reader, and it
// re-validates the sequence number after every read, so a recycled buffer is
// never consumed.
func (a *App) run() {
	defer close(a.done)
	interval := time.Duration(a.cfg.CaptureIntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastSeq uint64
	var prevImg *image.RGBA
	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
		}
		snap := a.service.LatestFrame()
		if snap.Sequence == 0 || snap.Sequence == lastSeq || snap.Image == nil {
			continue
		}
		f, err := frame.FromRGBA(snap.Image)
		if err != nil {
			a.logger.Debug("frame conversion failed", "seq", snap.Sequence, "err", err)
			continue
		}
		res := a.analyzer.Analyze(f, snap.Sequence)
		a.report(res, snap.CapturedAt)

		if prevImg != nil {
			capture.RecycleFrame(prevImg)
		}
		prevImg = snap.Image
		lastSeq = snap.Sequence
	}
}

// report logs one analysis result and feeds detectable estimates into the
// zoom trend tracker.
func (a *App) report(res align.Result, at time.Time) {
	attrs := []any{
		"seq", res.Sequence,
		"scales", res.Prediction.Scales,
		"reason", res.Prediction.Reason,
		"confidence", res.Prediction.Confidence,
	}
	if res.SceneChanged {
		attrs = append(attrs, "sceneChanged", true)
	}
	if res.Estimate != nil {
		attrs = append(attrs,
			"zoomPct", res.Estimate.ZoomPercent,
			"zoomUncertainty", res.Estimate.Uncertainty,
			"zoomDetectable", res.Estimate.Detectable,
			"zoomMetric", res.Estimate.MetricName,
		)
		if res.Estimate.Detectable && !res.Estimate.Extrapolated {
			a.tracker.Add(align.Measurement{
				At:          at,
				ZoomPercent: res.Estimate.ZoomPercent,
				Confidence:  1.0 / (1.0 + res.Estimate.Uncertainty),
			})
		}
	} else if zoomNow, conf, ok := a.tracker.Current(at); ok {
		// Carry the tracked prior across frames without a fresh estimate.
		attrs = append(attrs, "zoomPctTracked", zoomNow, "zoomTrackedConfidence", conf)
	}
	a.logger.Info("frame analyzed", attrs...)
}

// selectionFromConfig converts the persisted selection rectangle into a
// provider for the capture service. A zero-size selection means full screen.
func selectionFromConfig(cfg *config.Config) func() *image.Rectangle {
	if cfg.SelectionW <= 0 || cfg.SelectionH <= 0 {
		return nil
	}
	sel := image.Rect(cfg.SelectionX, cfg.SelectionY,
		cfg.SelectionX+cfg.SelectionW, cfg.SelectionY+cfg.SelectionH)
	return func() *image.Rectangle { return &sel }
}
