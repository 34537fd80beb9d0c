package capture

import (
	"image"
	"log/slog"
	"sync/atomic"
	"time"
)

const statsLogInterval = 5 * time.Second

// FrameSnapshot carries the latest captured frame and metadata.
type FrameSnapshot struct {
	Image      *image.RGBA
	CapturedAt time.Time
	Sequence   uint64
}

// Stats summarises capture loop behaviour for instrumentation.
type Stats struct {
	Captures       uint64
	Skipped        uint64
	AvgCapture     time.Duration
	LastCapture    time.Time
	LatestFrameAge time.Duration
	Sequence       uint64
}

// GrabFunc produces one frame. Injectable for tests; defaults to Grab or
// GrabSelection depending on the selection provider.
type GrabFunc func() (*image.RGBA, error)

// FocusFunc reports whether analysis should run right now (e.g. the game
// window is focused). A nil func means always run.
type FocusFunc func() bool

// Service acquires frames on an interval and exposes the latest snapshot via
// an atomic pointer, so readers never block the capture loop.
type Service struct {
	running      atomic.Bool
	latest       atomic.Pointer[FrameSnapshot]
	sequence     atomic.Uint64
	captures     atomic.Uint64
	skipped      atomic.Uint64
	captureNanos atomic.Uint64
	lastCapture  atomic.Int64 // unix nanos

	interval time.Duration
	selFn    func() *image.Rectangle
	grab     GrabFunc
	focused  FocusFunc
	logger   *slog.Logger
	stop     chan struct{}
}

// NewService builds a capture service. selectionFn may be nil (full screen);
// grab may be nil (OS capture); focused may be nil (always capture).
func NewService(interval time.Duration, selectionFn func() *image.Rectangle, grab GrabFunc, focused FocusFunc, logger *slog.Logger) *Service {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Service{interval: interval, selFn: selectionFn, grab: grab, focused: focused, logger: logger}
}

// LatestFrame returns the freshest snapshot, zero value when none exists yet.
func (s *Service) LatestFrame() FrameSnapshot {
	snap := s.latest.Load()
	if snap == nil {
		return FrameSnapshot{}
	}
	return *snap
}

// Running reports loop activity.
func (s *Service) Running() bool { return s.running.Load() }

// Stats returns instrumentation counters.
func (s *Service) Stats() Stats {
	captures := s.captures.Load()
	var avg time.Duration
	if captures > 0 {
		avg = time.Duration(s.captureNanos.Load() / captures)
	}
	st := Stats{
		Captures:    captures,
		Skipped:     s.skipped.Load(),
		AvgCapture:  avg,
		Sequence:    s.sequence.Load(),
		LastCapture: time.Unix(0, s.lastCapture.Load()),
	}
	if snap := s.latest.Load(); snap != nil {
		st.LatestFrameAge = time.Since(snap.CapturedAt)
	}
	return st
}

// Start launches the capture loop. Idempotent.
func (s *Service) Start() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	s.stop = make(chan struct{})
	go s.loop()
}

// Stop halts the capture loop. Idempotent.
func (s *Service) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.stop)
}

func (s *Service) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	lastStats := time.Now()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}
		if s.focused != nil && !s.focused() {
			s.skipped.Add(1)
			continue
		}
		start := time.Now()
		img, err := s.captureOnce()
		if err != nil || img == nil {
			s.skipped.Add(1)
			if err != nil && s.logger != nil {
				s.logger.Debug("capture failed", "err", err)
			}
			continue
		}
		snap := &FrameSnapshot{
			Image:      copyIntoPooled(img),
			CapturedAt: start,
			Sequence:   s.sequence.Add(1),
		}
		s.latest.Store(snap)
		s.captures.Add(1)
		s.captureNanos.Add(uint64(time.Since(start).Nanoseconds()))
		s.lastCapture.Store(start.UnixNano())
		if s.logger != nil && time.Since(lastStats) >= statsLogInterval {
			lastStats = time.Now()
			st := s.Stats()
			s.logger.Info("capture stats",
				"captures", st.Captures, "skipped", st.Skipped,
				"avgCaptureMs", float64(st.AvgCapture.Microseconds())/1000.0,
				"sequence", st.Sequence)
		}
	}
}

func (s *Service) captureOnce() (*image.RGBA, error) {
	if s.grab != nil {
		return s.grab()
	}
	if s.selFn != nil {
		if sel := s.selFn(); sel != nil && !sel.Empty() {
			return GrabSelection(*sel)
		}
	}
	return Grab()
}
